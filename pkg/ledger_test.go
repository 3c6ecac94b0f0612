package bork_test

import (
	"context"
	"errors"
	"testing"
	"time"

	bork "github.com/dogecoinfoundation/borkbot/pkg"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func coins(s string) bork.CoinAmount {
	return decimal.RequireFromString(s)
}

func txids(utxos []bork.UTXO) []string {
	ids := []string{}
	for _, u := range utxos {
		ids = append(ids, u.TxID)
	}
	return ids
}

// seed stores UTXOs received one minute apart, in the given order.
func seed(t *testing.T, r *rig, values map[string]string, order ...string) {
	base := time.Date(2021, 5, 1, 0, 0, 0, 0, time.UTC)
	for i, id := range order {
		_, err := r.store.InsertUTXO(r.ctx, bork.UTXO{
			TxID: id, Received: base.Add(time.Duration(i) * time.Minute), Value: coins(values[id]), RawTx: "00",
		})
		require.NoError(t, err)
	}
}

func TestRefreshAggregatesOutputs(t *testing.T) {
	r := newRig(t)
	txid := r.fund("1", "2")
	other := r.fund("0.5")

	added, err := r.bot.Ledger.Refresh(r.ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, added)

	unspent, err := r.bot.Ledger.Unspent(r.ctx)
	require.NoError(t, err)
	require.Len(t, unspent, 2)
	byID := map[string]bork.UTXO{}
	for _, u := range unspent {
		byID[u.TxID] = u
	}
	assert.True(t, byID[txid].Value.Equal(coins("3")))
	assert.True(t, byID[other].Value.Equal(coins("0.5")))
	assert.NotEmpty(t, byID[txid].RawTx)

	balance, err := r.bot.Ledger.Balance(r.ctx)
	require.NoError(t, err)
	assert.True(t, balance.Equal(coins("3.5")))

	added, err = r.bot.Ledger.Refresh(r.ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, added)
}

func TestRefreshError(t *testing.T) {
	r := newRig(t)
	r.chain.FailListUnspent = errors.New("node down")
	_, err := r.bot.Ledger.Refresh(r.ctx)
	assert.True(t, bork.IsError(err, bork.RPCError))
}

func TestSelectOldestFirstMinimumPrefix(t *testing.T) {
	r := newRig(t)
	seed(t, r, map[string]string{"a": "1", "b": "2", "c": "5"}, "a", "b", "c")

	cases := []struct {
		required string
		want     []string
	}{
		{"0.5", []string{"a"}},
		{"1", []string{"a"}},
		{"2.5", []string{"a", "b"}},
		{"3", []string{"a", "b"}},
		{"3.01", []string{"a", "b", "c"}},
	}
	for _, c := range cases {
		got, err := bork.SelectCoins(r.ctx, bork.NewUTXOSource(r.bot.Ledger), coins(c.required))
		require.NoError(t, err, c.required)
		assert.Equal(t, c.want, txids(got), c.required)
	}
}

func TestSelectSkipsSpentAndReserved(t *testing.T) {
	r := newRig(t)
	seed(t, r, map[string]string{"a": "1", "b": "2", "c": "5"}, "a", "b", "c")
	require.NoError(t, r.bot.Ledger.MarkSpent(r.ctx, []string{"a"}))
	require.NoError(t, r.store.CreateMessage(r.ctx, bork.Message{
		ID: "1", UserID: "u1", Status: bork.StatusFundFailed, SignedTx1: "00", Inputs: []string{"b"},
	}))

	got, err := bork.SelectCoins(r.ctx, bork.NewUTXOSource(r.bot.Ledger), coins("1"))
	require.NoError(t, err)
	assert.Equal(t, []string{"c"}, txids(got))
}

func TestSelectRefreshesWhenShort(t *testing.T) {
	r := newRig(t)
	seed(t, r, map[string]string{"a": "1"}, "a")
	fresh := r.fund("4")

	got, err := bork.SelectCoins(r.ctx, bork.NewUTXOSource(r.bot.Ledger), coins("2"))
	require.NoError(t, err)
	assert.Equal(t, []string{"a", fresh}, txids(got))
}

func TestSelectInsufficientAfterEmptyRefresh(t *testing.T) {
	r := newRig(t)
	seed(t, r, map[string]string{"a": "1"}, "a")
	require.NoError(t, r.bot.Ledger.MarkSpent(r.ctx, []string{"a"}))

	_, err := bork.SelectCoins(r.ctx, bork.NewUTXOSource(r.bot.Ledger), coins("0.02"))
	assert.True(t, bork.IsInsufficientFundsError(err), "%v", err)
}

func TestArrayUTXOSource(t *testing.T) {
	src := bork.NewArrayUTXOSource([]bork.UTXO{
		{TxID: "a", Value: coins("1")},
		{TxID: "b", Value: coins("1")},
	})
	got, err := bork.SelectCoins(context.Background(), src, coins("1.5"))
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, txids(got))

	_, err = bork.SelectCoins(context.Background(), src, coins("3"))
	assert.True(t, bork.IsInsufficientFundsError(err))
}
