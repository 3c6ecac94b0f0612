package bork_test

import (
	"errors"
	"testing"
	"time"

	bork "github.com/dogecoinfoundation/borkbot/pkg"
	"github.com/dogecoinfoundation/borkbot/pkg/dogecoin"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFeeFetchedThenCached(t *testing.T) {
	r := newRig(t)
	r.fees.Raw = dogecoin.FeeTable("180", 2000000)

	fee, err := r.bot.Fees.CurrentFee(r.ctx)
	require.NoError(t, err)
	assert.True(t, fee.Equal(decimal.RequireFromString("0.02")), fee.String())

	fee, err = r.bot.Fees.CurrentFee(r.ctx)
	require.NoError(t, err)
	assert.True(t, fee.Equal(decimal.RequireFromString("0.02")))
	assert.Equal(t, 1, r.fees.Calls())

	stored, err := r.store.LatestFeeEstimate(r.ctx)
	require.NoError(t, err)
	assert.Equal(t, r.fees.Raw, stored.Raw)
}

func TestFreshStoredFeeIsUsed(t *testing.T) {
	r := newRig(t)
	require.NoError(t, r.store.StoreFeeEstimate(r.ctx, bork.FeeEstimate{
		Captured: time.Now().Add(-time.Minute),
		Raw:      dogecoin.FeeTable("180", 3000000),
	}))
	q, err := r.bot.Fees.Quote(r.ctx)
	require.NoError(t, err)
	assert.True(t, q.Rate.Equal(decimal.RequireFromString("0.03")))
	assert.False(t, q.Stale)
	assert.Equal(t, 0, r.fees.Calls())
}

func TestStaleFeeReplacedWhenFetchWorks(t *testing.T) {
	r := newRig(t)
	require.NoError(t, r.store.StoreFeeEstimate(r.ctx, bork.FeeEstimate{
		Captured: time.Now().Add(-2 * time.Hour),
		Raw:      dogecoin.FeeTable("180", 3000000),
	}))
	q, err := r.bot.Fees.Quote(r.ctx)
	require.NoError(t, err)
	assert.True(t, q.Rate.Equal(decimal.RequireFromString("0.01")))
	assert.False(t, q.Stale)
	assert.Equal(t, 1, r.fees.Calls())
}

func TestStaleFeeUsedWhenFetchFails(t *testing.T) {
	r := newRig(t)
	captured := time.Now().Add(-2 * time.Hour)
	require.NoError(t, r.store.StoreFeeEstimate(r.ctx, bork.FeeEstimate{
		Captured: captured,
		Raw:      dogecoin.FeeTable("180", 3000000),
	}))
	r.fees.Err = errors.New("fee service down")

	q, err := r.bot.Fees.Quote(r.ctx)
	require.NoError(t, err)
	assert.True(t, q.Stale)
	assert.True(t, q.Rate.Equal(decimal.RequireFromString("0.03")))
	assert.True(t, captured.Equal(q.Captured))
}

func TestNoFeeAtAll(t *testing.T) {
	r := newRig(t)
	r.fees.Err = errors.New("fee service down")
	_, err := r.bot.Fees.CurrentFee(r.ctx)
	assert.True(t, bork.IsError(err, bork.RPCError))
}

func TestFeeClampedToMinimum(t *testing.T) {
	r := newRig(t)
	r.fees.Raw = dogecoin.FeeTable("180", 100)
	fee, err := r.bot.Fees.CurrentFee(r.ctx)
	require.NoError(t, err)
	assert.True(t, fee.Equal(bork.TxnMinFee), fee.String())
}

func TestExtractFeeRate(t *testing.T) {
	rate, err := bork.ExtractFeeRate(dogecoin.FeeTable("180", 22600), "180")
	require.NoError(t, err)
	assert.True(t, rate.Equal(decimal.RequireFromString("0.000226")))

	_, err = bork.ExtractFeeRate(dogecoin.FeeTable("30", 22600), "180")
	assert.True(t, bork.IsError(err, bork.BadRequest))

	_, err = bork.ExtractFeeRate("not json", "180")
	assert.Error(t, err)
}
