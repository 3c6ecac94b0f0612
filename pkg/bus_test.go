package bork

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/dogecoinfoundation/borkbot/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type chanSubscriber struct {
	ch chan BusMessage
}

func (s chanSubscriber) GetChan() chan BusMessage {
	return s.ch
}

func TestBusDeliversByCategory(t *testing.T) {
	bus := NewMessageBus()
	msgs := chanSubscriber{make(chan BusMessage, 10)}
	all := chanSubscriber{make(chan BusMessage, 10)}
	bus.Register(msgs, EVENT_MSG("MSG"))
	bus.Register(all, EVENT_ALL("ALL"))

	started := make(chan bool, 1)
	stopped := make(chan bool)
	stop := make(chan context.Context, 1)
	require.NoError(t, bus.Run(started, stopped, stop))
	<-started

	msg := Message{ID: "1", UserID: "u", UserHandle: "shibe", Status: StatusComplete, TxID1: "aa"}
	bus.Send(SYS_STARTUP, map[string]string{"service": "test"})
	bus.Send(MSG_COMPLETE, NewMessageEvent(msg), "fixed-id")

	got := <-msgs.ch
	assert.Equal(t, "COMPLETE", got.EventType.Name())
	assert.Equal(t, "fixed-id", got.ID)
	var ev MessageEvent
	require.NoError(t, json.Unmarshal(got.Message, &ev))
	assert.Equal(t, "1", ev.MessageID)
	assert.Equal(t, []string{"aa"}, ev.TxIDs)

	first := <-all.ch
	second := <-all.ch
	assert.Equal(t, "STARTUP", first.EventType.Name())
	assert.NotEmpty(t, first.ID)
	assert.Equal(t, "COMPLETE", second.EventType.Name())

	select {
	case extra := <-msgs.ch:
		t.Fatalf("unexpected event %s", extra.EventType.Name())
	case <-time.After(20 * time.Millisecond):
	}

	stop <- context.Background()
	<-stopped
}

func TestBusSendNeverBlocks(t *testing.T) {
	bus := NewMessageBus()
	// nobody drains the bus
	for i := 0; i < cap(bus.inbound)+10; i++ {
		require.NoError(t, bus.Send(SYS_POLL, i))
	}
	assert.Len(t, bus.inbound, cap(bus.inbound))
}

func TestGateAnswers(t *testing.T) {
	out := &strings.Builder{}
	g := NewPromptGate(strings.NewReader("y\nno\nYES\n"), out)
	msg := Message{ID: "1", UserHandle: "shibe", Text: "wow"}
	ctx := context.Background()

	ok, err := g.Approve(ctx, StepBroadcastTx1, msg)
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = g.Approve(ctx, StepBroadcastTx2, msg)
	require.NoError(t, err)
	assert.False(t, ok)
	ok, err = g.Approve(ctx, StepReply, msg)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Contains(t, out.String(), "broadcast_tx1 for message 1 (@shibe: \"wow\")?")

	// input exhausted
	_, err = g.Approve(ctx, StepReply, msg)
	assert.Error(t, err)

	ok, err = AutoApprove{}.Approve(ctx, StepReply, msg)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestPersistWithRetry(t *testing.T) {
	retryInitialInterval = time.Millisecond
	defer func() { retryInitialInterval = 500 * time.Millisecond }()
	log := logger.NewSublogger("test")

	calls := 0
	err := persistWithRetry(context.Background(), log, "flaky", func() error {
		calls++
		if calls < 3 {
			return NewErr(DBConflict, "database is locked")
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)

	calls = 0
	err = persistWithRetry(context.Background(), log, "missing", func() error {
		calls++
		return NewErr(NotFound, "gone")
	})
	assert.True(t, IsNotFoundError(err))
	assert.Equal(t, 1, calls)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err = persistWithRetry(ctx, log, "cancelled", func() error {
		return NewErr(NotAvailable, "down")
	})
	assert.Error(t, err)
}
