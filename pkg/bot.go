package bork

import (
	"context"
	"sort"
	"time"

	"github.com/dogecoinfoundation/borkbot/pkg/logger"
	"github.com/dogecoinfoundation/borkbot/pkg/metrics"
	"github.com/sirupsen/logrus"
)

const (
	SERVICE_KEY = "mentions" // service cursor name, stored in the database
)

// Collaborators are the external services the bot talks to.
type Collaborators struct {
	Chain    ChainRPC
	Signer   Signer
	Fees     FeeSource
	Mentions MentionSource
	Replies  ReplySink
	Gate     Gate // nil means AutoApprove
}

// Bot is the single worker: it recovers unfinished messages, then polls for
// mentions and drives each one through admission, funding and reply, one
// at a time.
type Bot struct {
	store     Store
	bus       MessageBus
	source    MentionSource
	Admission *Admission
	Ledger    *Ledger
	Fees      *FeeOracle
	Pipeline  *Pipeline
	Replier   *Replier

	pageSize     int
	maxPages     int
	relevantID   string
	pollInterval time.Duration

	watermark string // last processed mention id, loaded on first use
	loaded    bool
	log       *logrus.Entry
}

func NewBot(conf Config, store Store, bus MessageBus, c Collaborators) *Bot {
	gate := c.Gate
	if gate == nil {
		gate = AutoApprove{}
	}
	ledger := NewLedger(store, c.Chain, conf)
	fees := NewFeeOracle(store, c.Fees, conf)
	pageSize := conf.Twitter.PageSize
	if pageSize <= 0 {
		pageSize = 60
	}
	maxPages := conf.Twitter.MaxPages
	if maxPages <= 0 {
		maxPages = 10
	}
	interval := conf.Bork.PollInterval
	if interval <= 0 {
		interval = time.Hour
	}
	return &Bot{
		store:        store,
		bus:          bus,
		source:       c.Mentions,
		Admission:    NewAdmission(store, bus, conf),
		Ledger:       ledger,
		Fees:         fees,
		Pipeline:     NewPipeline(store, ledger, fees, c.Signer, c.Chain, gate, bus, conf),
		Replier:      NewReplier(store, c.Replies, gate, bus, conf),
		pageSize:     pageSize,
		maxPages:     maxPages,
		relevantID:   conf.Twitter.RelevantTweetID,
		pollInterval: interval,
		log:          logger.NewSublogger("bot"),
	}
}

// Implements conductor.Service
func (b *Bot) Run(started, stopped chan bool, stop chan context.Context) error {
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		<-stop
		cancel()
	}()
	go func() {
		defer close(stopped)
		started <- true
		b.bus.Send(SYS_STARTUP, map[string]string{"service": "bot"})
		if err := b.Recover(ctx); err != nil {
			b.log.WithError(err).Error("recovery did not finish")
		}
		for {
			if ctx.Err() != nil {
				return
			}
			if _, err := b.Poll(ctx); err != nil {
				b.log.WithError(err).Error("poll cycle ended early")
			}
			select {
			case <-ctx.Done():
				return
			case <-time.After(b.pollInterval):
			}
		}
	}()
	return nil
}

// Recover resumes every message a previous run left unfinished: replies
// first (their funds are already spent), then funding. Messages caught
// mid-funding by a crash are first marked fund_failed.
func (b *Bot) Recover(ctx context.Context) error {
	for _, st := range []MessageStatus{StatusAccepted, StatusFundingTx1, StatusFundingTx2} {
		msgs, err := b.store.ListMessagesByStatus(ctx, st, 0)
		if err != nil {
			return err
		}
		for i := range msgs {
			msg := &msgs[i]
			log := b.log.WithField("id", msg.ID)
			if err := msg.Fail(StatusFundFailed, NewErr(UnknownError, "interrupted in %s", st)); err != nil {
				log.WithError(err).Error("cannot mark interrupted message")
				continue
			}
			err := persistWithRetry(ctx, log, "UpdateMessage", func() error {
				return b.store.UpdateMessage(ctx, *msg)
			})
			if err != nil {
				// left as is: the next Recover tries again.
				log.WithError(err).Errorf("cannot mark message interrupted in %s", st)
				continue
			}
			log.Warnf("message interrupted in %s", st)
		}
	}

	replies, err := b.listOldestFirst(ctx, StatusReplyFailed, StatusAwaitingReply)
	if err != nil {
		return err
	}
	funds, err := b.listOldestFirst(ctx, StatusFundFailed)
	if err != nil {
		return err
	}
	b.log.WithFields(logrus.Fields{"replies": len(replies), "funding": len(funds)}).Info("recovery started")
	b.bus.Send(SYS_RECOVERY, map[string]int{"replies": len(replies), "funding": len(funds)})

	for i := range replies {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		b.Replier.Reply(ctx, &replies[i]) // failures are recorded on the message
	}
	for i := range funds {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		msg := &funds[i]
		if err := b.Pipeline.Fund(ctx, msg); err != nil {
			continue
		}
		b.Replier.Reply(ctx, msg)
	}
	return nil
}

func (b *Bot) listOldestFirst(ctx context.Context, statuses ...MessageStatus) ([]Message, error) {
	all := []Message{}
	for _, st := range statuses {
		msgs, err := b.store.ListMessagesByStatus(ctx, st, 0)
		if err != nil {
			return nil, err
		}
		all = append(all, msgs...)
	}
	sort.SliceStable(all, func(i, j int) bool {
		return all[i].Created.Before(all[j].Created)
	})
	return all, nil
}

// Poll fetches mentions newer than the watermark and processes them oldest
// first. Returns the number of mentions processed.
func (b *Bot) Poll(ctx context.Context) (int, error) {
	start := time.Now()
	defer func() {
		metrics.PollDuration.Observe(time.Since(start).Seconds())
	}()
	since, err := b.Watermark(ctx)
	if err != nil {
		return 0, err
	}
	mentions := b.collect(ctx, since)
	done := 0
	for _, m := range mentions {
		if ctx.Err() != nil {
			return done, ctx.Err()
		}
		if b.relevantID != "" && m.InReplyToID != b.relevantID {
			b.log.WithField("id", m.ID).Debug("mention is not a reply to the relevant post, skipping")
		} else if err := b.ProcessMention(ctx, m); err != nil {
			// not recorded: the watermark stays so it is fetched again.
			return done, err
		}
		if err := b.advanceWatermark(ctx, m.ID); err != nil {
			return done, err
		}
		metrics.MentionsProcessed.Inc()
		done++
	}
	if done > 0 {
		b.bus.Send(SYS_POLL, map[string]any{"mentions": done, "watermark": b.watermark})
	}
	return done, nil
}

// collect pages back from newest to since, up to maxPages pages, and
// returns the mentions oldest first. A fetch error ends collection early.
// Hitting the cap with a full last page is logged and counted.
func (b *Bot) collect(ctx context.Context, since string) []Mention {
	seen := map[string]bool{}
	all := []Mention{}
	maxID := ""
	truncated := false
	for page := 0; page < b.maxPages; page++ {
		batch, err := b.source.FetchMentions(ctx, since, maxID, b.pageSize)
		if err != nil {
			b.log.WithError(err).Warn("fetching mentions failed")
			break
		}
		fresh := 0
		for _, m := range batch {
			if seen[m.ID] || (since != "" && CompareIDs(m.ID, since) <= 0) {
				continue
			}
			seen[m.ID] = true
			all = append(all, m)
			fresh++
			if maxID == "" || CompareIDs(m.ID, maxID) < 0 {
				maxID = m.ID
			}
		}
		if len(batch) < b.pageSize || fresh == 0 {
			break
		}
		truncated = page == b.maxPages-1
	}
	if truncated {
		// the watermark moves past whatever is older than the last page.
		metrics.PollTruncatedTotal.Inc()
		b.log.WithFields(logrus.Fields{"since": since, "pages": b.maxPages, "oldest": maxID}).
			Warn("page cap reached, older mentions will not be fetched")
	}
	sort.SliceStable(all, func(i, j int) bool {
		return CompareIDs(all[i].ID, all[j].ID) < 0
	})
	b.log.WithFields(logrus.Fields{"since": since, "mentions": len(all)}).Info("mentions fetched")
	return all
}

// ProcessMention runs one mention to its terminal or resumable status.
// Only a failure to record the mention is returned.
func (b *Bot) ProcessMention(ctx context.Context, m Mention) error {
	res, err := b.Admission.Admit(ctx, m)
	if err != nil {
		return err
	}
	if res.Existing {
		b.log.WithField("id", m.ID).Debug("mention already recorded")
		return nil
	}
	msg := res.Message
	if !res.Accepted() {
		b.Replier.ReplyRejection(ctx, &msg)
		return nil
	}
	if err := b.Pipeline.Fund(ctx, &msg); err != nil {
		return nil // fund_failed: picked up by the next Recover
	}
	b.Replier.Reply(ctx, &msg)
	return nil
}

// Watermark is the last processed mention id: the stored cursor, or the
// highest stored message id before any cursor was written.
func (b *Bot) Watermark(ctx context.Context) (string, error) {
	if b.loaded {
		return b.watermark, nil
	}
	cursor, err := b.store.GetServiceCursor(ctx, SERVICE_KEY)
	if err != nil {
		return "", err
	}
	if cursor == "" {
		cursor, err = b.store.HighestMessageID(ctx)
		if err != nil {
			return "", err
		}
	}
	b.watermark, b.loaded = cursor, true
	return cursor, nil
}

func (b *Bot) advanceWatermark(ctx context.Context, id string) error {
	if CompareIDs(id, b.watermark) <= 0 {
		return nil
	}
	err := persistWithRetry(ctx, b.log, "SetServiceCursor", func() error {
		return b.store.SetServiceCursor(ctx, SERVICE_KEY, id)
	})
	if err != nil {
		return err
	}
	b.watermark = id
	return nil
}
