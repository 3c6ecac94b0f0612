package core

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	bork "github.com/dogecoinfoundation/borkbot/pkg"
	"github.com/dogecoinfoundation/borkbot/pkg/doge"
	"github.com/go-resty/resty/v2"
	"github.com/shopspring/decimal"
)

// interface guard ensures CoreRPC implements bork.ChainRPC
var _ bork.ChainRPC = &CoreRPC{}

// NewDogecoinCoreRPC returns a bork.ChainRPC that uses dogecoin-core's RPC.
// The HTTP client is created on first use and reused after that.
func NewDogecoinCoreRPC(config bork.Config) *CoreRPC {
	addr := fmt.Sprintf("http://%s:%d", config.Core.RPCHost, config.Core.RPCPort)
	return &CoreRPC{
		url:  addr,
		user: config.Core.RPCUser,
		pass: config.Core.RPCPass,
	}
}

type CoreRPC struct {
	url    string
	user   string
	pass   string
	id     atomic.Uint64
	once   sync.Once
	client *resty.Client
}

type rpcRequest struct {
	Method string `json:"method"`
	Params []any  `json:"params"`
	Id     uint64 `json:"id"`
}
type rpcResponse struct {
	Id     uint64           `json:"id"`
	Result *json.RawMessage `json:"result"`
	Error  *rpcError        `json:"error"`
}
type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (l *CoreRPC) http() *resty.Client {
	l.once.Do(func() {
		l.client = resty.New().
			SetBaseURL(l.url).
			SetBasicAuth(l.user, l.pass).
			SetTimeout(60 * time.Second)
	})
	return l.client
}

func (l *CoreRPC) request(ctx context.Context, method string, params []any, result any) error {
	body := rpcRequest{
		Method: method,
		Params: params,
		Id:     l.id.Add(1), // each request should use a unique ID
	}
	res, err := l.http().R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(body).
		Post("/")
	if err != nil {
		return fmt.Errorf("json-rpc transport: %v", err)
	}
	// core answers RPC errors with status 500 and an error body.
	var rpcres rpcResponse
	if err := json.Unmarshal(res.Body(), &rpcres); err != nil {
		if !res.IsSuccess() {
			return fmt.Errorf("json-rpc status code: %s", res.Status())
		}
		return fmt.Errorf("json-rpc unmarshal response: %v", err)
	}
	if rpcres.Error != nil {
		return fmt.Errorf("json-rpc error returned: %d %s", rpcres.Error.Code, rpcres.Error.Message)
	}
	if !res.IsSuccess() {
		return fmt.Errorf("json-rpc status code: %s", res.Status())
	}
	if rpcres.Id != body.Id {
		return fmt.Errorf("json-rpc wrong ID returned: %v vs %v", rpcres.Id, body.Id)
	}
	if rpcres.Result == nil {
		return fmt.Errorf("json-rpc missing result")
	}
	err = json.Unmarshal(*rpcres.Result, result)
	if err != nil {
		return fmt.Errorf("json-rpc unmarshal result: %v | %v", err, string(*rpcres.Result))
	}
	return nil
}

type unspentEntry struct {
	TxID    string          `json:"txid"`
	VOut    int             `json:"vout"`
	Address string          `json:"address"`
	Amount  decimal.Decimal `json:"amount"`
}

// ListUnspent uses the node wallet's listunspent, so the address must be
// imported (watch-only is enough).
func (l *CoreRPC) ListUnspent(ctx context.Context, address bork.Address) ([]bork.UnspentOutput, error) {
	var entries []unspentEntry
	err := l.request(ctx, "listunspent", []any{0, 9999999, []string{string(address)}}, &entries)
	if err != nil {
		return nil, err
	}
	outputs := make([]bork.UnspentOutput, 0, len(entries))
	for _, e := range entries {
		outputs = append(outputs, bork.UnspentOutput{TxID: e.TxID, VOut: e.VOut, Value: e.Amount})
	}
	return outputs, nil
}

func (l *CoreRPC) GetRawTransaction(ctx context.Context, txid string) (hex string, err error) {
	verbose := false // to get back HEX rather than JSON
	err = l.request(ctx, "getrawtransaction", []any{txid, verbose}, &hex)
	return
}

func (l *CoreRPC) Broadcast(ctx context.Context, txnHex string) (txid string, err error) {
	txn, err := doge.HexDecode(txnHex)
	if err != nil {
		return "", fmt.Errorf("sendrawtransaction: invalid hex: %v", err)
	}
	err = l.request(ctx, "sendrawtransaction", []any{txnHex}, &txid)
	if err != nil {
		return "", err
	}
	// the node returns the hash of the txn it accepted.
	if expected := doge.TxHashHex(txn); txid != expected {
		return txid, fmt.Errorf("sendrawtransaction: node returned txid %s, expected %s", txid, expected)
	}
	return txid, nil
}

func (l *CoreRPC) GetBlockCount(ctx context.Context) (blockCount int64, err error) {
	err = l.request(ctx, "getblockcount", []any{}, &blockCount)
	return
}
