package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	bork "github.com/dogecoinfoundation/borkbot/pkg"
	"github.com/jmoiron/sqlx"
)

/****************** SQLStore implements bork.Store ********************/
var _ bork.Store = SQLStore{}

// SQLStore is a bork.Store over sqlite3 or postgres. Queries are written
// with '?' placeholders and rebound for the driver.
type SQLStore struct {
	db     *sqlx.DB
	driver string
}

// NewStore opens the configured driver: "sqlite3" (default) or "postgres".
func NewStore(driver string, dsn string) (SQLStore, error) {
	switch driver {
	case "", "sqlite3", "sqlite":
		return NewSQLiteStore(dsn)
	case "postgres":
		return NewPostgresStore(dsn)
	}
	return SQLStore{}, bork.NewErr(bork.BadRequest, "unknown store driver: %s", driver)
}

// Defer this until shutdown
func (s SQLStore) Close() {
	s.db.Close()
}

func (s SQLStore) dbErr(err error, where string) error {
	if s.driver == "postgres" {
		return pqErr(err, where)
	}
	return sqliteErr(err, where)
}

type messageInput struct {
	MessageID string `db:"message_id"`
	TxID      string `db:"txid"`
}

const messageColumns = `id, user_id, user_handle, in_reply_to_id, created_at, updated_at, text, status,
	txid_1, txid_2, signed_tx_1, signed_tx_2, reply_id, last_error`

func (s SQLStore) CreateMessage(ctx context.Context, msg bork.Message) error {
	now := time.Now().UTC()
	if msg.Created.IsZero() {
		msg.Created = now
	}
	msg.Created = msg.Created.UTC()
	msg.Updated = now
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return s.dbErr(err, "CreateMessage: begin")
	}
	defer tx.Rollback()
	_, err = tx.NamedExecContext(ctx, `INSERT INTO message (`+messageColumns+`) VALUES (
		:id, :user_id, :user_handle, :in_reply_to_id, :created_at, :updated_at, :text, :status,
		:txid_1, :txid_2, :signed_tx_1, :signed_tx_2, :reply_id, :last_error)`, msg)
	if err != nil {
		return s.dbErr(err, "CreateMessage: insert")
	}
	if err = s.storeInputs(ctx, tx, msg.ID, msg.Inputs); err != nil {
		return err
	}
	if err = tx.Commit(); err != nil {
		return s.dbErr(err, "CreateMessage: commit")
	}
	return nil
}

func (s SQLStore) GetMessage(ctx context.Context, id string) (bork.Message, error) {
	var msg bork.Message
	err := s.db.GetContext(ctx, &msg, s.db.Rebind(`SELECT `+messageColumns+` FROM message WHERE id = ?`), id)
	if errors.Is(err, sql.ErrNoRows) {
		return bork.Message{}, bork.NewErr(bork.NotFound, "message not found: %s", id)
	}
	if err != nil {
		return bork.Message{}, s.dbErr(err, "GetMessage: select")
	}
	msg.Inputs, err = s.loadInputs(ctx, id)
	if err != nil {
		return bork.Message{}, err
	}
	return msg, nil
}

func (s SQLStore) UpdateMessage(ctx context.Context, msg bork.Message) error {
	msg.Updated = time.Now().UTC()
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return s.dbErr(err, "UpdateMessage: begin")
	}
	defer tx.Rollback()
	res, err := tx.NamedExecContext(ctx, `UPDATE message SET updated_at = :updated_at, status = :status,
		txid_1 = :txid_1, txid_2 = :txid_2, signed_tx_1 = :signed_tx_1, signed_tx_2 = :signed_tx_2,
		reply_id = :reply_id, last_error = :last_error WHERE id = :id`, msg)
	if err != nil {
		return s.dbErr(err, "UpdateMessage: update")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return s.dbErr(err, "UpdateMessage: rows affected")
	}
	if n < 1 {
		return bork.NewErr(bork.NotFound, "message not found: %s", msg.ID)
	}
	_, err = tx.ExecContext(ctx, tx.Rebind(`DELETE FROM message_input WHERE message_id = ?`), msg.ID)
	if err != nil {
		return s.dbErr(err, "UpdateMessage: delete inputs")
	}
	if err = s.storeInputs(ctx, tx, msg.ID, msg.Inputs); err != nil {
		return err
	}
	if err = tx.Commit(); err != nil {
		return s.dbErr(err, "UpdateMessage: commit")
	}
	return nil
}

func (s SQLStore) storeInputs(ctx context.Context, tx *sqlx.Tx, id string, inputs []string) error {
	for _, txid := range inputs {
		_, err := tx.ExecContext(ctx, tx.Rebind(`INSERT INTO message_input (message_id, txid) VALUES (?, ?)
			ON CONFLICT DO NOTHING`), id, txid)
		if err != nil {
			return s.dbErr(err, "storeInputs: insert")
		}
	}
	return nil
}

func (s SQLStore) loadInputs(ctx context.Context, id string) ([]string, error) {
	rows := []messageInput{}
	err := s.db.SelectContext(ctx, &rows, s.db.Rebind(`SELECT message_id, txid FROM message_input WHERE message_id = ? ORDER BY txid`), id)
	if err != nil {
		return nil, s.dbErr(err, "loadInputs: select")
	}
	inputs := make([]string, 0, len(rows))
	for _, r := range rows {
		inputs = append(inputs, r.TxID)
	}
	return inputs, nil
}

func (s SQLStore) HasActiveMessage(ctx context.Context, userID string) (bool, error) {
	query, args, err := sqlx.In(`SELECT COUNT(*) FROM message WHERE user_id = ? AND status IN (?)`, userID, bork.ActiveStatuses)
	if err != nil {
		return false, s.dbErr(err, "HasActiveMessage: expanding query")
	}
	var count int
	err = s.db.GetContext(ctx, &count, s.db.Rebind(query), args...)
	if err != nil {
		return false, s.dbErr(err, "HasActiveMessage: select")
	}
	return count > 0, nil
}

func (s SQLStore) ListMessagesByStatus(ctx context.Context, status bork.MessageStatus, limit int) ([]bork.Message, error) {
	query := `SELECT ` + messageColumns + ` FROM message WHERE status = ? ORDER BY created_at, id`
	args := []any{status}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	msgs := []bork.Message{}
	err := s.db.SelectContext(ctx, &msgs, s.db.Rebind(query), args...)
	if err != nil {
		return nil, s.dbErr(err, "ListMessagesByStatus: select")
	}
	// load inputs after the result set is closed (sqlite runs on one connection)
	for i := range msgs {
		msgs[i].Inputs, err = s.loadInputs(ctx, msgs[i].ID)
		if err != nil {
			return nil, err
		}
	}
	return msgs, nil
}

func (s SQLStore) CountMessagesByStatus(ctx context.Context) (map[bork.MessageStatus]int, error) {
	rows := []struct {
		Status bork.MessageStatus `db:"status"`
		Count  int                `db:"n"`
	}{}
	err := s.db.SelectContext(ctx, &rows, `SELECT status, COUNT(*) AS n FROM message GROUP BY status`)
	if err != nil {
		return nil, s.dbErr(err, "CountMessagesByStatus: select")
	}
	counts := make(map[bork.MessageStatus]int, len(rows))
	for _, r := range rows {
		counts[r.Status] = r.Count
	}
	return counts, nil
}

func (s SQLStore) HighestMessageID(ctx context.Context) (string, error) {
	var id string
	// platform ids are decimal strings: longer is larger.
	err := s.db.GetContext(ctx, &id, `SELECT id FROM message ORDER BY LENGTH(id) DESC, id DESC LIMIT 1`)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", s.dbErr(err, "HighestMessageID: select")
	}
	return id, nil
}

func (s SQLStore) ReservedInputs(ctx context.Context) ([]string, error) {
	// tx2 of a two-transaction draft spends tx1's change, so txid_1 stays
	// reserved alongside the selected inputs.
	query, args, err := sqlx.In(`SELECT i.txid AS txid FROM message_input i
		JOIN message m ON m.id = i.message_id WHERE m.status IN (?)
		UNION
		SELECT txid_1 AS txid FROM message
		WHERE status IN (?) AND signed_tx_2 != '' AND txid_1 != ''
		ORDER BY txid`, bork.SpendingStatuses, bork.SpendingStatuses)
	if err != nil {
		return nil, s.dbErr(err, "ReservedInputs: expanding query")
	}
	ids := []string{}
	err = s.db.SelectContext(ctx, &ids, s.db.Rebind(query), args...)
	if err != nil {
		return nil, s.dbErr(err, "ReservedInputs: select")
	}
	return ids, nil
}

func (s SQLStore) InsertUTXO(ctx context.Context, utxo bork.UTXO) (bool, error) {
	if utxo.Received.IsZero() {
		utxo.Received = time.Now()
	}
	utxo.Received = utxo.Received.UTC()
	res, err := s.db.NamedExecContext(ctx, `INSERT INTO utxo (txid, received_at, spent_at, value, raw_tx)
		VALUES (:txid, :received_at, NULL, :value, :raw_tx) ON CONFLICT DO NOTHING`, utxo)
	if err != nil {
		return false, s.dbErr(err, "InsertUTXO: insert")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, s.dbErr(err, "InsertUTXO: rows affected")
	}
	return n > 0, nil
}

func (s SQLStore) HasUTXO(ctx context.Context, txid string) (bool, error) {
	var count int
	err := s.db.GetContext(ctx, &count, s.db.Rebind(`SELECT COUNT(*) FROM utxo WHERE txid = ?`), txid)
	if err != nil {
		return false, s.dbErr(err, "HasUTXO: select")
	}
	return count > 0, nil
}

func (s SQLStore) ListUnspentUTXOs(ctx context.Context) ([]bork.UTXO, error) {
	utxos := []bork.UTXO{}
	err := s.db.SelectContext(ctx, &utxos, `SELECT txid, received_at, spent_at, value, raw_tx FROM utxo
		WHERE spent_at IS NULL ORDER BY received_at, txid`)
	if err != nil {
		return nil, s.dbErr(err, "ListUnspentUTXOs: select")
	}
	return utxos, nil
}

func (s SQLStore) ListUTXOs(ctx context.Context, limit int) ([]bork.UTXO, error) {
	query := `SELECT txid, received_at, spent_at, value, raw_tx FROM utxo ORDER BY received_at DESC, txid`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	utxos := []bork.UTXO{}
	err := s.db.SelectContext(ctx, &utxos, s.db.Rebind(query), args...)
	if err != nil {
		return nil, s.dbErr(err, "ListUTXOs: select")
	}
	return utxos, nil
}

func (s SQLStore) MarkUTXOsSpent(ctx context.Context, txids []string, at time.Time) error {
	if len(txids) == 0 {
		return nil
	}
	query, args, err := sqlx.In(`UPDATE utxo SET spent_at = ? WHERE txid IN (?) AND spent_at IS NULL`, at.UTC(), txids)
	if err != nil {
		return s.dbErr(err, "MarkUTXOsSpent: expanding query")
	}
	_, err = s.db.ExecContext(ctx, s.db.Rebind(query), args...)
	if err != nil {
		return s.dbErr(err, "MarkUTXOsSpent: update")
	}
	return nil
}

func (s SQLStore) StoreFeeEstimate(ctx context.Context, fee bork.FeeEstimate) error {
	fee.Captured = fee.Captured.UTC()
	_, err := s.db.NamedExecContext(ctx, `INSERT INTO fee_estimate (captured_at, raw) VALUES (:captured_at, :raw)
		ON CONFLICT DO NOTHING`, fee)
	if err != nil {
		return s.dbErr(err, "StoreFeeEstimate: insert")
	}
	return nil
}

func (s SQLStore) LatestFeeEstimate(ctx context.Context) (bork.FeeEstimate, error) {
	var fee bork.FeeEstimate
	err := s.db.GetContext(ctx, &fee, `SELECT captured_at, raw FROM fee_estimate ORDER BY captured_at DESC LIMIT 1`)
	if errors.Is(err, sql.ErrNoRows) {
		return bork.FeeEstimate{}, bork.NewErr(bork.NotFound, "no fee estimate stored")
	}
	if err != nil {
		return bork.FeeEstimate{}, s.dbErr(err, "LatestFeeEstimate: select")
	}
	return fee, nil
}

func (s SQLStore) GetServiceCursor(ctx context.Context, name string) (string, error) {
	var cursor string
	err := s.db.GetContext(ctx, &cursor, s.db.Rebind(`SELECT cursor_id FROM service_cursor WHERE name = ?`), name)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", s.dbErr(err, "GetServiceCursor: select")
	}
	return cursor, nil
}

func (s SQLStore) SetServiceCursor(ctx context.Context, name string, cursor string) error {
	_, err := s.db.ExecContext(ctx, s.db.Rebind(`INSERT INTO service_cursor (name, cursor_id) VALUES (?, ?)
		ON CONFLICT (name) DO UPDATE SET cursor_id = excluded.cursor_id`), name, cursor)
	if err != nil {
		return s.dbErr(err, "SetServiceCursor: upsert")
	}
	return nil
}
