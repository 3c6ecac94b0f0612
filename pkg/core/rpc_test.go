package core

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"

	bork "github.com/dogecoinfoundation/borkbot/pkg"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testTxHex = "0100000002aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa00000000025152ffffffff" +
	"bbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb03000000025152ffffffff" +
	"0200e1f50500000000036a014180b2e60e00000000015100000000"
const testTxID = "251bd7c807a2fdce5d5e0e714e45401f6e1f7a9391804bb37474f0c5925743bd"

// fakeCore answers JSON-RPC calls from a method -> result table.
func fakeCore(t *testing.T, results map[string]string, seen *[]rpcRequest) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		assert.True(t, ok)
		assert.Equal(t, "user", user)
		assert.Equal(t, "pass", pass)
		var req rpcRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		if seen != nil {
			*seen = append(*seen, req)
		}
		result, found := results[req.Method]
		if !found {
			w.WriteHeader(http.StatusInternalServerError)
			w.Write([]byte(`{"id":` + strconv.FormatUint(req.Id, 10) + `,"result":null,"error":{"code":-32601,"message":"Method not found"}}`))
			return
		}
		w.Write([]byte(`{"id":` + strconv.FormatUint(req.Id, 10) + `,"result":` + result + `,"error":null}`))
	}))
}

func testRPC(srv *httptest.Server) *CoreRPC {
	conf := bork.TestConfig()
	host, port, _ := strings.Cut(strings.TrimPrefix(srv.URL, "http://"), ":")
	conf.Core.RPCHost = host
	conf.Core.RPCPort, _ = strconv.Atoi(port)
	conf.Core.RPCUser = "user"
	conf.Core.RPCPass = "pass"
	return NewDogecoinCoreRPC(conf)
}

func TestListUnspent(t *testing.T) {
	seen := []rpcRequest{}
	srv := fakeCore(t, map[string]string{
		"listunspent": `[{"txid":"aa","vout":0,"address":"DAddr","amount":1.5},{"txid":"aa","vout":1,"address":"DAddr","amount":2}]`,
	}, &seen)
	defer srv.Close()

	outs, err := testRPC(srv).ListUnspent(context.Background(), "DAddr")
	require.NoError(t, err)
	require.Len(t, outs, 2)
	assert.Equal(t, "aa", outs[0].TxID)
	assert.True(t, outs[0].Value.Equal(decimal.RequireFromString("1.5")))
	assert.Equal(t, 1, outs[1].VOut)

	require.Len(t, seen, 1)
	assert.Equal(t, "listunspent", seen[0].Method)
	assert.Equal(t, []any{float64(0), float64(9999999), []any{"DAddr"}}, seen[0].Params)
}

func TestGetRawTransaction(t *testing.T) {
	srv := fakeCore(t, map[string]string{"getrawtransaction": `"0100abcd"`}, nil)
	defer srv.Close()

	hex, err := testRPC(srv).GetRawTransaction(context.Background(), "aa")
	require.NoError(t, err)
	assert.Equal(t, "0100abcd", hex)
}

func TestBroadcastChecksTxID(t *testing.T) {
	srv := fakeCore(t, map[string]string{"sendrawtransaction": `"` + testTxID + `"`}, nil)
	defer srv.Close()
	rpc := testRPC(srv)

	txid, err := rpc.Broadcast(context.Background(), testTxHex)
	require.NoError(t, err)
	assert.Equal(t, testTxID, txid)

	_, err = rpc.Broadcast(context.Background(), "nothex")
	assert.Error(t, err)
}

func TestRPCErrorIsReturned(t *testing.T) {
	srv := fakeCore(t, map[string]string{}, nil)
	defer srv.Close()

	_, err := testRPC(srv).GetBlockCount(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Method not found")
}

func TestRequestIDsAreUnique(t *testing.T) {
	seen := []rpcRequest{}
	srv := fakeCore(t, map[string]string{"getblockcount": `100`}, &seen)
	defer srv.Close()
	rpc := testRPC(srv)

	for i := 0; i < 3; i++ {
		n, err := rpc.GetBlockCount(context.Background())
		require.NoError(t, err)
		assert.Equal(t, int64(100), n)
	}
	require.Len(t, seen, 3)
	assert.NotEqual(t, seen[0].Id, seen[1].Id)
	assert.NotEqual(t, seen[1].Id, seen[2].Id)
}
