package dogecoin

import (
	"context"
	"fmt"
	"strings"
	"sync"

	bork "github.com/dogecoinfoundation/borkbot/pkg"
	"github.com/dogecoinfoundation/borkbot/pkg/doge"
	"github.com/shopspring/decimal"
)

// interface guards ensure the mocks implement the bork interfaces
var _ bork.ChainRPC = &ChainMock{}
var _ bork.Signer = &SignerMock{}
var _ bork.FeeSource = &FeeMock{}

// ChainMock is an in-memory chain: funded outputs, raw transactions and
// a log of every broadcast. Used by tests and --mock runs.
type ChainMock struct {
	mu         sync.Mutex
	outputs    map[bork.Address][]bork.UnspentOutput
	raw        map[string]string
	broadcasts []string
	attempts   int
	nonce      uint32

	// FailBroadcast fails the Nth broadcast attempt (1-based), 0 never.
	FailBroadcast int
	// FailListUnspent is returned by ListUnspent when set.
	FailListUnspent error
	// ChangeTo, when set, receives every spendable output of a broadcast
	// transaction, the way change returns to the wallet.
	ChangeTo bork.Address
}

func NewChainMock() *ChainMock {
	return &ChainMock{
		outputs: map[bork.Address][]bork.UnspentOutput{},
		raw:     map[string]string{},
	}
}

// Fund creates a transaction paying each amount (DOGE) to address as a
// separate output, and returns its txid.
func (c *ChainMock) Fund(address bork.Address, amounts ...string) string {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.nonce++
	tx := doge.Tx{
		Version: 1,
		VIn: []doge.TxIn{{
			TxID:     fmt.Sprintf("%064x", c.nonce),
			Sequence: 0xffffffff,
		}},
	}
	for _, amt := range amounts {
		tx.VOut = append(tx.VOut, doge.TxOut{Value: toKoinu(decimal.RequireFromString(amt)), Script: []byte{0x51}})
	}
	raw := tx.Encode()
	txid := doge.TxHashHex(raw)
	c.raw[txid] = doge.HexEncode(raw)
	for i, amt := range amounts {
		c.outputs[address] = append(c.outputs[address], bork.UnspentOutput{
			TxID: txid, VOut: i, Value: decimal.RequireFromString(amt),
		})
	}
	return txid
}

func (c *ChainMock) ListUnspent(ctx context.Context, address bork.Address) ([]bork.UnspentOutput, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.FailListUnspent != nil {
		return nil, c.FailListUnspent
	}
	return append([]bork.UnspentOutput{}, c.outputs[address]...), nil
}

func (c *ChainMock) GetRawTransaction(ctx context.Context, txid string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	raw, ok := c.raw[txid]
	if !ok {
		return "", fmt.Errorf("No such mempool or blockchain transaction: %s", txid)
	}
	return raw, nil
}

// Broadcast accepts any well-formed transaction and removes the outputs
// it spends from the unspent lists.
func (c *ChainMock) Broadcast(ctx context.Context, signedHex string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.attempts++
	if c.FailBroadcast == c.attempts {
		return "", fmt.Errorf("mock broadcast failure on attempt %d", c.attempts)
	}
	tx, err := doge.DecodeTxHex(signedHex)
	if err != nil {
		return "", fmt.Errorf("TX decode failed: %v", err)
	}
	for addr, outs := range c.outputs {
		kept := outs[:0]
		for _, out := range outs {
			if !spends(tx, out) {
				kept = append(kept, out)
			}
		}
		c.outputs[addr] = kept
	}
	if c.ChangeTo != "" {
		for i, out := range tx.VOut {
			if out.Value > 0 && !isOpReturn(out.Script) {
				c.outputs[c.ChangeTo] = append(c.outputs[c.ChangeTo], bork.UnspentOutput{
					TxID: tx.TxID, VOut: i, Value: bork.CoinsFromKoinu(out.Value),
				})
			}
		}
	}
	c.raw[tx.TxID] = signedHex
	c.broadcasts = append(c.broadcasts, signedHex)
	return tx.TxID, nil
}

// Broadcasts returns every accepted transaction hex, in order.
func (c *ChainMock) Broadcasts() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string{}, c.broadcasts...)
}

func isOpReturn(script []byte) bool {
	return len(script) > 0 && script[0] == 0x6a
}

func spends(tx doge.Tx, out bork.UnspentOutput) bool {
	for _, in := range tx.VIn {
		if in.TxID == out.TxID && int(in.VOut) == out.VOut {
			return true
		}
	}
	return false
}

// SignerMock builds real-format (unsigned) transactions: tx1 spends every
// spendable output of every input, and tx2 spends tx1's change. The
// payload is carried in OP_RETURN outputs, split in half for two txns.
type SignerMock struct {
	mu       sync.Mutex
	requests []bork.SignRequest

	// Err is returned by BuildAndSign when set.
	Err error
	// Tamper, when set, may rewrite the result before it is returned.
	Tamper func(req bork.SignRequest, res *bork.SignResult)
}

func NewSignerMock() *SignerMock {
	return &SignerMock{}
}

func (s *SignerMock) BuildAndSign(ctx context.Context, req bork.SignRequest) (bork.SignResult, error) {
	s.mu.Lock()
	s.requests = append(s.requests, req)
	s.mu.Unlock()
	if s.Err != nil {
		return bork.SignResult{}, s.Err
	}
	if req.TxCount < 1 || req.TxCount > 2 {
		return bork.SignResult{}, fmt.Errorf("unsupported tx count %d", req.TxCount)
	}

	total := bork.ZeroCoins
	res := bork.SignResult{}
	tx1 := doge.Tx{Version: 1}
	for _, in := range req.Inputs {
		for _, vout := range spendableOutputs(in.RawTx) {
			tx1.VIn = append(tx1.VIn, doge.TxIn{TxID: in.TxID, VOut: vout, Sequence: 0xffffffff})
		}
		total = total.Add(in.Value)
		res.ConsumedInputs = append(res.ConsumedInputs, in.TxID)
	}
	fees := toKoinu(req.FeeTotal)
	change := toKoinu(total) - fees
	if change < 0 {
		return bork.SignResult{}, fmt.Errorf("inputs %s do not cover fee %s", total, req.FeeTotal)
	}
	parts := splitPayload(req.Payload, req.TxCount)
	perTx := fees / int64(req.TxCount+1)

	tx1.VOut = []doge.TxOut{
		{Value: 0, Script: opReturn(parts[0])},
		{Value: change + fees - perTx, Script: []byte{0x51}},
	}
	raw1 := tx1.Encode()
	res.SignedTxs = append(res.SignedTxs, doge.HexEncode(raw1))
	if req.TxCount == 2 {
		tx2 := doge.Tx{
			Version: 1,
			VIn:     []doge.TxIn{{TxID: doge.TxHashHex(raw1), VOut: 1, Sequence: 0xffffffff}},
			VOut: []doge.TxOut{
				{Value: 0, Script: opReturn(parts[1])},
				{Value: change, Script: []byte{0x51}},
			},
		}
		res.SignedTxs = append(res.SignedTxs, doge.HexEncode(tx2.Encode()))
	}
	if s.Tamper != nil {
		s.Tamper(req, &res)
	}
	return res, nil
}

// Requests returns every request received, in order.
func (s *SignerMock) Requests() []bork.SignRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]bork.SignRequest{}, s.requests...)
}

// spendableOutputs lists the non OP_RETURN outputs of rawTx, or just
// output 0 when rawTx cannot be decoded.
func spendableOutputs(rawTx string) []uint32 {
	tx, err := doge.DecodeTxHex(rawTx)
	if err != nil {
		return []uint32{0}
	}
	vouts := []uint32{}
	for i, out := range tx.VOut {
		if out.Value > 0 && !isOpReturn(out.Script) {
			vouts = append(vouts, uint32(i))
		}
	}
	return vouts
}

func splitPayload(p bork.BorkPayload, n int) []string {
	body := strings.Join([]string{p.Type, p.ReferenceID, p.Content}, ":")
	if n == 1 {
		return []string{body}
	}
	half := len(body) / 2
	return []string{body[:half], body[half:]}
}

func opReturn(data string) []byte {
	script := []byte{0x6a, 0x4c, byte(len(data))}
	return append(script, data...)
}

func toKoinu(amt decimal.Decimal) int64 {
	return amt.Shift(8).IntPart()
}

// FeeMock serves a fixed fee rate table.
type FeeMock struct {
	mu    sync.Mutex
	calls int

	Raw string
	Err error
}

// NewFeeMock serves a table whose target entry has the given p2pkh total
// in satoshi.
func NewFeeMock(target string, satoshi int64) *FeeMock {
	return &FeeMock{Raw: FeeTable(target, satoshi)}
}

func (f *FeeMock) LatestFeeEstimate(ctx context.Context) (bork.FeeEstimate, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.Err != nil {
		return bork.FeeEstimate{}, f.Err
	}
	return bork.FeeEstimate{Raw: f.Raw}, nil
}

func (f *FeeMock) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// FeeTable formats a minimal rate table in the fee service's layout.
func FeeTable(target string, satoshi int64) string {
	return fmt.Sprintf(`{"timestamp":1700000000,"estimates":{"%s":{"sat_per_vbyte":1.0,"total":{"p2pkh":{"usd":0.01,"satoshi":%d}}}}}`, target, satoshi)
}
