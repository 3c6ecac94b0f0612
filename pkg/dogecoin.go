package bork

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

type Address string
type CoinAmount = decimal.Decimal

var ZeroCoins = decimal.NewFromInt(0)                // 0 DOGE
var OneCoin = decimal.NewFromInt(1)                  // 1.0 DOGE
var TxnMinFee = OneCoin.Div(decimal.NewFromInt(100)) // 0.01 DOGE

// CoinsFromKoinu converts an integer amount of Koinu (1e-8) to a CoinAmount.
func CoinsFromKoinu(koinu int64) CoinAmount {
	return decimal.New(koinu, -8)
}

// ChainRPC is the blockchain node (or indexer) the wallet funds live on.
type ChainRPC interface {
	// ListUnspent lists every output currently paying to address.
	ListUnspent(ctx context.Context, address Address) ([]UnspentOutput, error)
	GetRawTransaction(ctx context.Context, txid string) (string, error)
	// Broadcast submits a signed transaction (hex) and returns its txid.
	Broadcast(ctx context.Context, signedHex string) (string, error)
}

// UnspentOutput is one row from ChainRPC.ListUnspent. The same TxID can
// appear several times (one row per vout).
type UnspentOutput struct {
	TxID  string     `json:"txid"`
	VOut  int        `json:"vout"`
	Value CoinAmount `json:"amount"`
}

// Signer builds and signs the bork transactions. Its internals (keys,
// serialization) are private to the signing service.
type Signer interface {
	BuildAndSign(ctx context.Context, req SignRequest) (SignResult, error)
}

type BorkPayload struct {
	Type        string `json:"type"` // always "comment"
	Content     string `json:"content"`
	ReferenceID string `json:"reference_id"`
}

type SignInput struct {
	TxID  string     `json:"txid"`
	RawTx string     `json:"raw_tx"`
	Value CoinAmount `json:"value"`
}

type SignRequest struct {
	Payload  BorkPayload `json:"payload"`
	Inputs   []SignInput `json:"inputs"`
	Change   Address     `json:"change_address"`
	FeeTotal CoinAmount  `json:"fee_total"`
	TxCount  int         `json:"tx_count"`
}

type SignResult struct {
	SignedTxs      []string `json:"signed_txs"`
	ConsumedInputs []string `json:"consumed_inputs"`
}

// FeeSource provides the latest network fee estimate.
type FeeSource interface {
	LatestFeeEstimate(ctx context.Context) (FeeEstimate, error)
}

// FeeEstimate is a captured snapshot of the fee source's rate table.
type FeeEstimate struct {
	Captured time.Time `json:"captured" db:"captured_at"`
	Raw      string    `json:"raw" db:"raw"`
}

// FeeRate is the fee paid per bork transaction.
type FeeRate = CoinAmount
