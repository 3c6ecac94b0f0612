package bork

import "time"

// UTXO is one spendable funding unit paid to the wallet address.
// Outputs are aggregated per transaction: TxID is the unique key.
type UTXO struct {
	TxID     string     `json:"txid" db:"txid"`
	Received time.Time  `json:"received" db:"received_at"`
	Spent    *time.Time `json:"spent,omitempty" db:"spent_at"` // set once, never cleared
	Value    CoinAmount `json:"value" db:"value"`
	RawTx    string     `json:"-" db:"raw_tx"` // hex, needed by the Signer
}

func (u UTXO) IsSpent() bool {
	return u.Spent != nil
}
