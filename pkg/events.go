package bork

// Borkbot event types

// bus.Send(MSG_ADMITTED, msg)
// bus.Send(SYS_STARTUP, conf)

// Interface for any event
type EventType interface {
	Type() string
	Name() string
}

// slice of all event categories for config lookup
var EVENT_TYPES []EventType = []EventType{EVENT_ALL("ALL"),
	EVENT_SYS("SYS"),
	EVENT_MSG("MSG")}

// Special category, do not use directly, represents *
type EVENT_ALL string

func (e EVENT_ALL) Type() string {
	return "ALL"
}

func (e EVENT_ALL) Name() string {
	return string(e)
}

// System Events
type EVENT_SYS string

func (e EVENT_SYS) Type() string {
	return "SYS"
}

func (e EVENT_SYS) Name() string {
	return string(e)
}

const (
	SYS_STARTUP  EVENT_SYS = "STARTUP"
	SYS_RECOVERY EVENT_SYS = "RECOVERY"
	SYS_POLL     EVENT_SYS = "POLL"
	SYS_ERR      EVENT_SYS = "ERR"
	SYS_MSG      EVENT_SYS = "MSG"
)

// Message lifecycle events
type EVENT_MSG string

func (e EVENT_MSG) Type() string {
	return "MSG"
}

func (e EVENT_MSG) Name() string {
	return string(e)
}

const (
	MSG_ADMITTED     EVENT_MSG = "ADMITTED"
	MSG_REJECTED     EVENT_MSG = "REJECTED"
	MSG_BROADCAST    EVENT_MSG = "BROADCAST"
	MSG_COMPLETE     EVENT_MSG = "COMPLETE"
	MSG_FUND_FAILED  EVENT_MSG = "FUND_FAILED"
	MSG_REPLY_FAILED EVENT_MSG = "REPLY_FAILED"
)

// MessageEvent is the payload of every MSG event.
type MessageEvent struct {
	MessageID string        `json:"message_id"`
	UserID    string        `json:"user_id"`
	Handle    string        `json:"handle"`
	Status    MessageStatus `json:"status"`
	TxIDs     []string      `json:"txids,omitempty"`
	ReplyID   string        `json:"reply_id,omitempty"`
	Error     string        `json:"error,omitempty"`
}

func NewMessageEvent(m Message) MessageEvent {
	return MessageEvent{
		MessageID: m.ID,
		UserID:    m.UserID,
		Handle:    m.UserHandle,
		Status:    m.Status,
		TxIDs:     m.TxIDs(),
		ReplyID:   m.ReplyID,
		Error:     m.LastError,
	}
}

// BroadcastEvent is the payload of MSG_BROADCAST.
type BroadcastEvent struct {
	MessageID string `json:"message_id"`
	Slot      int    `json:"slot"`
	TxID      string `json:"txid"`
}
