package bork

// MessageStatus is the lifecycle state of a Message.
type MessageStatus string

const (
	StatusAccepted      MessageStatus = "accepted"
	StatusFundingTx1    MessageStatus = "funding_tx1"
	StatusFundingTx2    MessageStatus = "funding_tx2"
	StatusAwaitingReply MessageStatus = "awaiting_reply"
	StatusComplete      MessageStatus = "complete"
	StatusFundFailed    MessageStatus = "fund_failed"
	StatusReplyFailed   MessageStatus = "reply_failed"

	StatusRejectedDuplicate MessageStatus = "rejected_duplicate"
	StatusRejectedNoText    MessageStatus = "rejected_no_text"
	StatusRejectedMedia     MessageStatus = "rejected_contains_media"
	StatusRejectedTooLong   MessageStatus = "rejected_too_long"
)

// StatusTableVersion identifies the transition table below. Bump it whenever
// a status or an edge is added, so stored rows can be checked on upgrade.
const StatusTableVersion = 2

var transitions = map[MessageStatus][]MessageStatus{
	StatusAccepted:      {StatusFundingTx1, StatusFundFailed},
	StatusFundingTx1:    {StatusFundingTx2, StatusAwaitingReply, StatusFundFailed},
	StatusFundingTx2:    {StatusAwaitingReply, StatusFundFailed},
	StatusFundFailed:    {StatusFundingTx1, StatusFundingTx2, StatusAwaitingReply, StatusFundFailed},
	StatusAwaitingReply: {StatusComplete, StatusReplyFailed},
	StatusReplyFailed:   {StatusComplete, StatusReplyFailed},
}

// AllStatuses in lifecycle order (used by reporting).
var AllStatuses = []MessageStatus{
	StatusAccepted, StatusFundingTx1, StatusFundingTx2, StatusAwaitingReply,
	StatusComplete, StatusFundFailed, StatusReplyFailed,
	StatusRejectedDuplicate, StatusRejectedNoText, StatusRejectedMedia, StatusRejectedTooLong,
}

// ActiveStatuses block a second admission for the same user.
// Completed messages count: each user gets one bork.
var ActiveStatuses = []MessageStatus{
	StatusAccepted, StatusFundingTx1, StatusFundingTx2, StatusAwaitingReply,
	StatusFundFailed, StatusReplyFailed, StatusComplete,
}

// SpendingStatuses are those in which Message.Inputs may be committed to a
// signed (possibly broadcast) transaction.
var SpendingStatuses = []MessageStatus{
	StatusFundingTx1, StatusFundingTx2, StatusFundFailed,
	StatusAwaitingReply, StatusReplyFailed, StatusComplete,
}

func (s MessageStatus) IsValid() bool {
	for _, v := range AllStatuses {
		if v == s {
			return true
		}
	}
	return false
}

func (s MessageStatus) IsRejected() bool {
	switch s {
	case StatusRejectedDuplicate, StatusRejectedNoText, StatusRejectedMedia, StatusRejectedTooLong:
		return true
	}
	return false
}

// IsTerminal: no further transitions are possible.
func (s MessageStatus) IsTerminal() bool {
	return s == StatusComplete || s.IsRejected()
}

// IsResumable: Recovery picks these up on the next start.
func (s MessageStatus) IsResumable() bool {
	return s == StatusFundFailed || s == StatusReplyFailed
}

func (s MessageStatus) CanTransition(to MessageStatus) bool {
	for _, next := range transitions[s] {
		if next == to {
			return true
		}
	}
	return false
}
