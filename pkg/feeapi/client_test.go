package feeapi

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	bork "github.com/dogecoinfoundation/borkbot/pkg"
	"github.com/dogecoinfoundation/borkbot/pkg/dogecoin"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLatestFeeEstimate(t *testing.T) {
	table := dogecoin.FeeTable("180", 1500000)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(table))
	}))
	defer srv.Close()

	conf := bork.TestConfig()
	conf.Fees.URL = srv.URL
	c := NewClient(conf)
	at := time.Date(2021, 5, 1, 0, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return at }

	est, err := c.LatestFeeEstimate(context.Background())
	require.NoError(t, err)
	assert.Equal(t, at, est.Captured)
	assert.JSONEq(t, table, est.Raw)

	rate, err := bork.ExtractFeeRate(est.Raw, "180")
	require.NoError(t, err)
	assert.True(t, rate.Equal(decimal.RequireFromString("0.015")))
}

func TestLatestFeeEstimateErrors(t *testing.T) {
	status := http.StatusBadRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
		w.Write([]byte("<html>"))
	}))
	defer srv.Close()

	conf := bork.TestConfig()
	conf.Fees.URL = srv.URL
	c := NewClient(conf)

	_, err := c.LatestFeeEstimate(context.Background())
	assert.Error(t, err)

	status = http.StatusOK
	_, err = c.LatestFeeEstimate(context.Background())
	assert.Error(t, err)
}
