package bork

import (
	"strings"
	"time"
)

// Message is one inbound mention and its processing record.
// Rows are created once at admission and never deleted.
type Message struct {
	ID          string        `json:"id" db:"id"`
	UserID      string        `json:"user_id" db:"user_id"`
	UserHandle  string        `json:"user_handle" db:"user_handle"`
	InReplyToID string        `json:"in_reply_to_id" db:"in_reply_to_id"`
	Created     time.Time     `json:"created" db:"created_at"`
	Updated     time.Time     `json:"updated" db:"updated_at"`
	Text        string        `json:"text" db:"text"`
	Status      MessageStatus `json:"status" db:"status"`
	TxID1       string        `json:"txid_1,omitempty" db:"txid_1"`
	TxID2       string        `json:"txid_2,omitempty" db:"txid_2"`
	// Signed transactions returned by the Signer. Persisted before the first
	// broadcast so a restart re-broadcasts exactly the same transactions.
	SignedTx1 string   `json:"-" db:"signed_tx_1"`
	SignedTx2 string   `json:"-" db:"signed_tx_2"`
	Inputs    []string `json:"inputs,omitempty" db:"-"` // UTXO txids consumed by the signed txns
	ReplyID   string   `json:"reply_id,omitempty" db:"reply_id"`
	LastError string   `json:"last_error,omitempty" db:"last_error"`
}

// Advance moves the message along the transition table.
func (m *Message) Advance(to MessageStatus) error {
	if !m.Status.CanTransition(to) {
		return NewErr(InvalidTransition, "message %s: cannot move from %s to %s", m.ID, m.Status, to)
	}
	m.Status = to
	return nil
}

// Fail records err and moves to the failed status (fund_failed or reply_failed).
func (m *Message) Fail(to MessageStatus, err error) error {
	if aerr := m.Advance(to); aerr != nil {
		return aerr
	}
	m.LastError = err.Error()
	return nil
}

// Content is the text carried on-chain: "@handle text".
func (m Message) Content() string {
	return "@" + m.UserHandle + " " + m.Text
}

// HasDraft reports whether signed transactions were already produced.
func (m Message) HasDraft() bool {
	return m.SignedTx1 != ""
}

// Spends lists every wallet txid the drafted transactions consume: the
// selected inputs plus, for a two-transaction draft, tx1's change which
// tx2 chains from.
func (m Message) Spends() []string {
	out := append([]string{}, m.Inputs...)
	if m.SignedTx2 != "" && m.TxID1 != "" {
		out = append(out, m.TxID1)
	}
	return out
}

// TxIDs returns the recorded broadcast txids in order.
func (m Message) TxIDs() []string {
	ids := []string{}
	for _, id := range []string{m.TxID1, m.TxID2} {
		if id != "" {
			ids = append(ids, id)
		}
	}
	return ids
}

// ReplyBody is the confirmation posted back to the user.
func (m Message) ReplyBody() string {
	return strings.Join(m.TxIDs(), "\n")
}

// Mention is one inbound post from the MentionSource.
type Mention struct {
	ID          string
	UserID      string
	Handle      string
	Text        string
	Created     time.Time
	InReplyToID string
	HasMedia    bool
	HasPoll     bool
	HasLinks    bool
}
