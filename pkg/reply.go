package bork

import (
	"context"
	"fmt"

	"github.com/dogecoinfoundation/borkbot/pkg/logger"
	"github.com/dogecoinfoundation/borkbot/pkg/metrics"
	"github.com/sirupsen/logrus"
)

// Replier posts the outcome of a message back to its thread.
type Replier struct {
	store     Store
	sink      ReplySink
	gate      Gate
	bus       MessageBus
	rejection bool
	texts     map[MessageStatus]string
	log       *logrus.Entry
}

func NewReplier(store Store, sink ReplySink, gate Gate, bus MessageBus, conf Config) *Replier {
	if gate == nil {
		gate = AutoApprove{}
	}
	return &Replier{
		store:     store,
		sink:      sink,
		gate:      gate,
		bus:       bus,
		rejection: conf.Bork.RejectionReplies,
		texts: map[MessageStatus]string{
			StatusRejectedDuplicate: conf.Bork.ReplyDuplicate,
			StatusRejectedNoText:    conf.Bork.ReplyNoText,
			StatusRejectedTooLong:   conf.Bork.ReplyTooLong,
			StatusRejectedMedia:     conf.Bork.ReplyMedia,
		},
		log: logger.NewSublogger("reply"),
	}
}

// Reply posts the recorded txids and completes the message. A failure
// leaves it in reply_failed; funding is never repeated from here.
func (r *Replier) Reply(ctx context.Context, msg *Message) error {
	if msg.Status != StatusAwaitingReply && msg.Status != StatusReplyFailed {
		return NewErr(InvalidTransition, "message %s: cannot reply from %s", msg.ID, msg.Status)
	}
	log := r.log.WithFields(logrus.Fields{"id": msg.ID, "user": msg.UserHandle})
	replyID, err := r.post(ctx, msg)
	if err != nil {
		log.WithError(err).Error("reply failed")
		if ferr := msg.Fail(StatusReplyFailed, err); ferr != nil {
			return ferr
		}
		metrics.MessagesTotal.WithLabelValues(string(msg.Status)).Inc()
		if perr := r.persist(ctx, msg); perr != nil {
			log.WithError(perr).Error("cannot persist reply failure")
		}
		r.bus.Send(MSG_REPLY_FAILED, NewMessageEvent(*msg))
		return err
	}

	msg.ReplyID = replyID
	msg.LastError = ""
	if err := msg.Advance(StatusComplete); err != nil {
		return err
	}
	metrics.MessagesTotal.WithLabelValues(string(msg.Status)).Inc()
	if err := r.persist(ctx, msg); err != nil {
		return err
	}
	log.WithField("reply", replyID).Info("message complete")
	r.bus.Send(MSG_COMPLETE, NewMessageEvent(*msg))
	return nil
}

func (r *Replier) post(ctx context.Context, msg *Message) (string, error) {
	ok, err := r.gate.Approve(ctx, StepReply, *msg)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", NewErr(Declined, "reply declined by operator")
	}
	body := msg.ReplyBody()
	if body == "" {
		return "", NewErr(InvalidTxn, "message %s has no broadcast transactions", msg.ID)
	}
	replyID, err := r.sink.PostReply(ctx, msg.ID, msg.UserHandle, body)
	if err != nil {
		return "", NewErr(RPCError, "post reply: %v", err)
	}
	return replyID, nil
}

// ReplyRejection tells the user why their mention was rejected, when
// enabled and a text is configured for the status. The status never
// changes; failures are only logged.
func (r *Replier) ReplyRejection(ctx context.Context, msg *Message) {
	if !r.rejection || !msg.Status.IsRejected() || msg.ReplyID != "" {
		return
	}
	text := r.texts[msg.Status]
	if text == "" {
		return
	}
	log := r.log.WithFields(logrus.Fields{"id": msg.ID, "user": msg.UserHandle, "status": msg.Status})
	replyID, err := r.sink.PostReply(ctx, msg.ID, msg.UserHandle, text)
	if err != nil {
		log.WithError(err).Warn("rejection reply failed")
		return
	}
	msg.ReplyID = replyID
	if err := r.persist(ctx, msg); err != nil {
		log.WithError(err).Warn("cannot record rejection reply")
		return
	}
	log.WithField("reply", replyID).Info("rejection reply sent")
}

func (r *Replier) persist(ctx context.Context, msg *Message) error {
	return persistWithRetry(ctx, r.log, fmt.Sprintf("UpdateMessage %s", msg.ID), func() error {
		return r.store.UpdateMessage(ctx, *msg)
	})
}
