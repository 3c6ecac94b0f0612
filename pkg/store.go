package bork

import (
	"context"
	"time"
)

// Store is the only shared mutable state. All writes come from the single
// Bot worker; the admin API only reads.
type Store interface {
	// CreateMessage inserts a new message row.
	// Returns AlreadyExists if a message with the same ID is stored.
	CreateMessage(ctx context.Context, msg Message) error
	// GetMessage returns the message with the given ID, or NotFound.
	GetMessage(ctx context.Context, id string) (Message, error)
	// UpdateMessage writes every mutable column of msg (status, txids,
	// signed draft, inputs, reply id, last error) and bumps updated_at.
	UpdateMessage(ctx context.Context, msg Message) error
	// HasActiveMessage reports whether userID has a message in ActiveStatuses.
	HasActiveMessage(ctx context.Context, userID string) (bool, error)
	// ListMessagesByStatus returns messages in the given status, oldest first.
	// limit <= 0 means no limit.
	ListMessagesByStatus(ctx context.Context, status MessageStatus, limit int) ([]Message, error)
	// CountMessagesByStatus returns the number of messages in each status.
	CountMessagesByStatus(ctx context.Context) (map[MessageStatus]int, error)
	// HighestMessageID returns the numerically largest stored message ID,
	// or "" if no messages are stored.
	HighestMessageID(ctx context.Context) (string, error)
	// ReservedInputs returns every UTXO txid referenced as an input by a
	// message in SpendingStatuses, plus the TxID1 of any such message with
	// a second transaction (tx2 spends tx1's change).
	ReservedInputs(ctx context.Context) ([]string, error)

	// InsertUTXO stores a newly observed UTXO. Inserting a known TxID is a
	// no-op: inserted reports whether a row was added.
	InsertUTXO(ctx context.Context, utxo UTXO) (inserted bool, err error)
	// HasUTXO reports whether txid is known, spent or not.
	HasUTXO(ctx context.Context, txid string) (bool, error)
	// ListUnspentUTXOs returns unspent UTXOs ordered by received time, then txid.
	ListUnspentUTXOs(ctx context.Context) ([]UTXO, error)
	// ListUTXOs returns every UTXO, spent or not, newest first.
	ListUTXOs(ctx context.Context, limit int) ([]UTXO, error)
	// MarkUTXOsSpent sets spent_at on each txid whose spent_at is still null.
	MarkUTXOsSpent(ctx context.Context, txids []string, at time.Time) error

	// StoreFeeEstimate inserts a captured fee estimate.
	StoreFeeEstimate(ctx context.Context, fee FeeEstimate) error
	// LatestFeeEstimate returns the most recently captured estimate, or NotFound.
	LatestFeeEstimate(ctx context.Context) (FeeEstimate, error)

	// GetServiceCursor returns the stored cursor for a service ("" if none).
	GetServiceCursor(ctx context.Context, name string) (string, error)
	// SetServiceCursor stores the cursor for a service.
	SetServiceCursor(ctx context.Context, name string, cursor string) error

	Close()
}
