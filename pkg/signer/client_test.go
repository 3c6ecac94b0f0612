package signer

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	bork "github.com/dogecoinfoundation/borkbot/pkg"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testClient(url string) *Client {
	conf := bork.TestConfig()
	conf.Signer.URL = url
	conf.Signer.Token = "secret"
	conf.Signer.Network = "testnet"
	return NewClient(conf)
}

func TestBuildAndSign(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/sign", r.URL.Path)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "testnet", body["network"])
		assert.Equal(t, float64(2), body["tx_count"])
		assert.Equal(t, "0.03", body["fee_total"])
		payload := body["payload"].(map[string]any)
		assert.Equal(t, "comment", payload["type"])
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"signed_txs":["aa","bb"],"consumed_inputs":["tx1"]}`))
	}))
	defer srv.Close()

	res, err := testClient(srv.URL).BuildAndSign(context.Background(), bork.SignRequest{
		Payload:  bork.BorkPayload{Type: "comment", Content: "@doge hi", ReferenceID: "00"},
		Inputs:   []bork.SignInput{{TxID: "tx1", RawTx: "00", Value: decimal.NewFromInt(2)}},
		Change:   "DChange",
		FeeTotal: decimal.RequireFromString("0.03"),
		TxCount:  2,
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"aa", "bb"}, res.SignedTxs)
	assert.Equal(t, []string{"tx1"}, res.ConsumedInputs)
}

func TestBuildAndSignError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnprocessableEntity)
		w.Write([]byte(`{"error":"insufficient input value"}`))
	}))
	defer srv.Close()

	_, err := testClient(srv.URL).BuildAndSign(context.Background(), bork.SignRequest{TxCount: 1})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "insufficient input value")
}
