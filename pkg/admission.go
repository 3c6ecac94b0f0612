package bork

import (
	"context"
	"regexp"
	"strings"
	"time"

	"github.com/dogecoinfoundation/borkbot/pkg/logger"
	"github.com/dogecoinfoundation/borkbot/pkg/metrics"
	"github.com/sirupsen/logrus"
)

var linkPattern = regexp.MustCompile(`(?i)\bhttps?://\S+`)

type AdmissionResult struct {
	Message Message
	// Existing is true when the mention was admitted before; nothing was
	// written and no events were sent.
	Existing bool
}

func (r AdmissionResult) Accepted() bool {
	return r.Message.Status == StatusAccepted
}

// Admission decides whether a mention becomes a bork, and records the
// decision as a Message either way.
type Admission struct {
	store        Store
	bus          MessageBus
	maxTextBytes int
	botHandle    string
	log          *logrus.Entry
}

func NewAdmission(store Store, bus MessageBus, conf Config) *Admission {
	return &Admission{
		store:        store,
		bus:          bus,
		maxTextBytes: conf.Bork.MaxTextBytes,
		botHandle:    conf.Twitter.BotHandle,
		log:          logger.NewSublogger("admission"),
	}
}

func (a *Admission) Admit(ctx context.Context, m Mention) (AdmissionResult, error) {
	var existing Message
	found := false
	err := persistWithRetry(ctx, a.log, "GetMessage", func() error {
		msg, err := a.store.GetMessage(ctx, m.ID)
		if err == nil {
			existing, found = msg, true
			return nil
		}
		if IsNotFoundError(err) {
			return nil
		}
		return err
	})
	if err != nil {
		return AdmissionResult{}, err
	}
	if found {
		return AdmissionResult{Message: existing, Existing: true}, nil
	}

	var active bool
	err = persistWithRetry(ctx, a.log, "HasActiveMessage", func() (err error) {
		active, err = a.store.HasActiveMessage(ctx, m.UserID)
		return
	})
	if err != nil {
		return AdmissionResult{}, err
	}

	text := ExtractText(m.Text, a.botHandle)
	created := m.Created
	if created.IsZero() {
		created = time.Now()
	}
	msg := Message{
		ID:          m.ID,
		UserID:      m.UserID,
		UserHandle:  m.Handle,
		InReplyToID: m.InReplyToID,
		Created:     created,
		Text:        text,
		Status:      a.classify(m, text, active),
	}

	err = persistWithRetry(ctx, a.log, "CreateMessage", func() error {
		return a.store.CreateMessage(ctx, msg)
	})
	if IsAlreadyExistsError(err) {
		stored, gerr := a.store.GetMessage(ctx, m.ID)
		if gerr != nil {
			return AdmissionResult{}, gerr
		}
		return AdmissionResult{Message: stored, Existing: true}, nil
	}
	if err != nil {
		return AdmissionResult{}, err
	}

	metrics.MessagesTotal.WithLabelValues(string(msg.Status)).Inc()
	log := a.log.WithFields(logrus.Fields{"id": msg.ID, "user": msg.UserHandle, "status": msg.Status})
	if msg.Status == StatusAccepted {
		log.Info("mention accepted")
		a.bus.Send(MSG_ADMITTED, NewMessageEvent(msg))
	} else {
		log.Info("mention rejected")
		a.bus.Send(MSG_REJECTED, NewMessageEvent(msg))
	}
	return AdmissionResult{Message: msg}, nil
}

// classify applies the admission rules in order; the first match wins.
func (a *Admission) classify(m Mention, text string, active bool) MessageStatus {
	switch {
	case active:
		return StatusRejectedDuplicate
	case text == "":
		return StatusRejectedNoText
	case m.HasMedia || m.HasPoll || m.HasLinks || linkPattern.MatchString(text):
		return StatusRejectedMedia
	case len([]byte(text)) > a.maxTextBytes:
		return StatusRejectedTooLong
	}
	return StatusAccepted
}

// ExtractText strips the reply prefix: the leading @handle tokens up to
// and including the bot's own handle (matched case-insensitively). Handles
// after it, or a leading run that never names the bot, are content. With
// no botHandle only the first token is taken as the prefix.
func ExtractText(raw, botHandle string) string {
	text := strings.TrimSpace(raw)
	bot := "@" + strings.TrimPrefix(botHandle, "@")
	rest := text
	for strings.HasPrefix(rest, "@") {
		end := strings.IndexFunc(rest, isSpace)
		token := rest
		if end >= 0 {
			token = rest[:end]
		}
		if botHandle == "" || strings.EqualFold(token, bot) {
			if end < 0 {
				return ""
			}
			return strings.TrimSpace(rest[end:])
		}
		if end < 0 {
			break
		}
		rest = strings.TrimSpace(rest[end:])
	}
	return text
}

func isSpace(r rune) bool {
	return r == ' ' || r == '\t' || r == '\n' || r == '\r'
}
