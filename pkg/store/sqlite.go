package store

import (
	"errors"

	bork "github.com/dogecoinfoundation/borkbot/pkg"
	"github.com/jmoiron/sqlx"
	"github.com/mattn/go-sqlite3"
)

var SETUP_SQL string = `
CREATE TABLE IF NOT EXISTS message (
	id TEXT NOT NULL PRIMARY KEY,
	user_id TEXT NOT NULL,
	user_handle TEXT NOT NULL,
	in_reply_to_id TEXT NOT NULL DEFAULT '',
	created_at DATETIME NOT NULL,
	updated_at DATETIME NOT NULL,
	text TEXT NOT NULL,
	status TEXT NOT NULL,
	txid_1 TEXT NOT NULL DEFAULT '',
	txid_2 TEXT NOT NULL DEFAULT '',
	signed_tx_1 TEXT NOT NULL DEFAULT '',
	signed_tx_2 TEXT NOT NULL DEFAULT '',
	reply_id TEXT NOT NULL DEFAULT '',
	last_error TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS message_user_i ON message (user_id);
CREATE INDEX IF NOT EXISTS message_status_i ON message (status);

CREATE TABLE IF NOT EXISTS message_input (
	message_id TEXT NOT NULL,
	txid TEXT NOT NULL,
	PRIMARY KEY (message_id, txid)
);

CREATE TABLE IF NOT EXISTS utxo (
	txid TEXT NOT NULL PRIMARY KEY,
	received_at DATETIME NOT NULL,
	spent_at DATETIME,
	value TEXT NOT NULL,
	raw_tx TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS utxo_unspent_i ON utxo (spent_at, received_at);

CREATE TABLE IF NOT EXISTS fee_estimate (
	captured_at DATETIME NOT NULL PRIMARY KEY,
	raw TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS service_cursor (
	name TEXT NOT NULL PRIMARY KEY,
	cursor_id TEXT NOT NULL
);
`

// NewSQLiteStore returns a bork.Store that uses sqlite.
// fileName may be ":memory:" for tests.
func NewSQLiteStore(fileName string) (SQLStore, error) {
	db, err := sqlx.Open("sqlite3", fileName)
	if err != nil {
		return SQLStore{}, sqliteErr(err, "opening database")
	}
	// a single writer; also keeps ":memory:" on one connection.
	db.SetMaxOpenConns(1)
	// init tables / indexes
	_, err = db.Exec(SETUP_SQL)
	if err != nil {
		db.Close()
		return SQLStore{}, sqliteErr(err, "creating database schema")
	}
	return SQLStore{db: db, driver: "sqlite3"}, nil
}

func sqliteErr(err error, where string) error {
	var sqErr sqlite3.Error
	if errors.As(err, &sqErr) {
		if sqErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey || sqErr.ExtendedCode == sqlite3.ErrConstraintUnique {
			// MUST detect 'AlreadyExists' to fulfil the API contract!
			return bork.NewErr(bork.AlreadyExists, "SQLiteStore error: %s: %v", where, err)
		}
		if sqErr.Code == sqlite3.ErrBusy || sqErr.Code == sqlite3.ErrLocked {
			// Transient database conflict: the caller should retry.
			return bork.NewErr(bork.DBConflict, "SQLiteStore error: %s: %v", where, err)
		}
	}
	return bork.NewErr(bork.NotAvailable, "SQLiteStore error: %s: %v", where, err)
}
