package bork

/*
The event subsystem gives integrations a view of each message's lifecycle.

A simple internal 'message bus' is passed around as a singleton, with an
internal goroutine and a non-blocking 'Send' method. Outbound destinations
are created from config (rotated event log files, HTTP callbacks) and are
registered as MessageSubscribers along with the EventTypes they want.
*/

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/dogecoinfoundation/borkbot/pkg/logger"
	"github.com/rs/xid"
	"github.com/sirupsen/logrus"
)

// MessageSubscribers are things that subscribe to the bus and handle
// events, ie: http callbacks, log files.
type MessageSubscriber interface {
	GetChan() chan BusMessage
}

// Created by the bus, wraps the payload sent with Send
type BusMessage struct {
	EventType EventType       `json:"type"`
	Message   json.RawMessage `json:"message"`
	ID        string          `json:"id"`
}

type Subscription struct {
	dest  MessageSubscriber
	types []EventType
}

func NewMessageBus() MessageBus {
	return MessageBus{
		receivers: &sync.Map{},
		inbound:   make(chan BusMessage, 1000),
		log:       logger.NewSublogger("bus"),
	}
}

type MessageBus struct {
	// Registered MessageSubscribers (*Subscription -> true).
	receivers *sync.Map

	// Messages from Send(), destined for MessageSubscribers
	inbound chan BusMessage

	log *logrus.Entry
}

// Send a message to the bus with a specific EventType.
// msg can be anything JSON serialisable. Send never blocks the caller:
// when the bus is saturated the event is dropped with a warning.
func (b MessageBus) Send(t EventType, msg interface{}, msgID ...string) error {
	j, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	id := xid.New().String()
	if len(msgID) > 0 {
		id = msgID[0]
	}
	select {
	case b.inbound <- BusMessage{t, j, id}:
	default:
		b.log.WithField("event", t.Type()+":"+string(t.Name())).Warn("event bus full, dropping event")
	}
	return nil
}

func (b MessageBus) Register(m MessageSubscriber, types ...EventType) {
	sub := Subscription{m, types}
	b.receivers.Store(&sub, true)
}

func (b MessageBus) Unregister(sub *Subscription) {
	b.receivers.Delete(sub)
}

func (sub *Subscription) wants(t EventType) bool {
	for _, want := range sub.types {
		if want.Type() == "ALL" || want.Type() == t.Type() {
			return true
		}
	}
	return false
}

// Implements conductor Service
func (b MessageBus) Run(started, stopped chan bool, stop chan context.Context) error {
	go func() {
		started <- true
		for {
			select {
			case <-stop:
				close(stopped)
				return
			case message := <-b.inbound:
				b.receivers.Range(func(key, _ any) bool {
					sub := key.(*Subscription)
					if !sub.wants(message.EventType) {
						return true
					}
					select {
					case sub.dest.GetChan() <- message:
					default:
						// if we are unable to send, cancel the sub
						b.log.Warn("receiver failed to handle event, unsubscribing")
						b.Unregister(sub)
					}
					return true
				})
			}
		}
	}()
	return nil
}
