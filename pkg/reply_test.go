package bork_test

import (
	"errors"
	"testing"

	bork "github.com/dogecoinfoundation/borkbot/pkg"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReplyFailureIsResumable(t *testing.T) {
	r := newRig(t)
	r.fund("5")
	msg := admit(t, r, mention("1", "u1", "much wow"))
	require.NoError(t, r.bot.Pipeline.Fund(r.ctx, &msg))

	r.social.ReplyErr = errors.New("rate limited")
	err := r.bot.Replier.Reply(r.ctx, &msg)
	require.Error(t, err)
	stored := r.message(t, "1")
	assert.Equal(t, bork.StatusReplyFailed, stored.Status)
	assert.Contains(t, stored.LastError, "rate limited")
	assert.Equal(t, msg.TxID1, stored.TxID1)

	r.social.ReplyErr = nil
	require.NoError(t, r.bot.Replier.Reply(r.ctx, &stored))
	done := r.message(t, "1")
	assert.Equal(t, bork.StatusComplete, done.Status)
	assert.Empty(t, done.LastError)
	assert.Equal(t, "reply-1", done.ReplyID)

	replies := r.social.Replies()
	require.Len(t, replies, 1)
	assert.Equal(t, "1", replies[0].InReplyToID)
	assert.Equal(t, "useru1", replies[0].Handle)
	assert.Equal(t, done.TxID1, replies[0].Body)
	// funding was not repeated
	assert.Len(t, r.chain.Broadcasts(), 1)
}

func TestReplyFromWrongStatus(t *testing.T) {
	r := newRig(t)
	msg := bork.Message{ID: "1", Status: bork.StatusFundFailed}
	err := r.bot.Replier.Reply(r.ctx, &msg)
	assert.True(t, bork.IsError(err, bork.InvalidTransition))
	assert.Empty(t, r.social.Replies())
}

func TestRejectionReplies(t *testing.T) {
	r := newRig(t, func(c *bork.Config) { c.Bork.RejectionReplies = true })
	r.social.Add(
		mention("1", "u1", "much wow"),
		mention("2", "u1", "again"),
		mention("3", "u2", ""),
		mention("4", "u3", "https://example.com"),
	)
	r.fund("5")

	n, err := r.bot.Poll(r.ctx)
	require.NoError(t, err)
	assert.Equal(t, 4, n)

	replies := map[string]string{}
	for _, rep := range r.social.Replies() {
		replies[rep.InReplyToID] = rep.Body
	}
	assert.Equal(t, r.conf.Bork.ReplyDuplicate, replies["2"])
	assert.Equal(t, r.conf.Bork.ReplyNoText, replies["3"])
	// no text configured for media rejections
	_, found := replies["4"]
	assert.False(t, found)

	dup := r.message(t, "2")
	assert.Equal(t, bork.StatusRejectedDuplicate, dup.Status)
	assert.NotEmpty(t, dup.ReplyID)
}

func TestRejectionRepliesDisabled(t *testing.T) {
	r := newRig(t)
	msg := bork.Message{ID: "1", UserHandle: "x", Status: bork.StatusRejectedNoText}
	r.bot.Replier.ReplyRejection(r.ctx, &msg)
	assert.Empty(t, r.social.Replies())
}
