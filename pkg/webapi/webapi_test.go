package webapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	bork "github.com/dogecoinfoundation/borkbot/pkg"
	"github.com/dogecoinfoundation/borkbot/pkg/conductor"
	"github.com/dogecoinfoundation/borkbot/pkg/dogecoin"
	"github.com/dogecoinfoundation/borkbot/pkg/store"
	"github.com/julienschmidt/httprouter"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWebAPI(t *testing.T) {
	admin, db := newTestRig(t)
	ctx := context.Background()

	require.NoError(t, db.CreateMessage(ctx, bork.Message{
		ID: "1001", UserID: "7", UserHandle: "shibe", Text: "much wow", Status: bork.StatusAccepted,
	}))
	require.NoError(t, db.CreateMessage(ctx, bork.Message{
		ID: "1002", UserID: "8", UserHandle: "doge", Text: "", Status: bork.StatusRejectedNoText,
	}))
	_, err := db.InsertUTXO(ctx, bork.UTXO{TxID: "aa", Value: decimal.NewFromInt(3), RawTx: "00"})
	require.NoError(t, err)
	require.NoError(t, db.StoreFeeEstimate(ctx, bork.FeeEstimate{Captured: time.Now(), Raw: dogecoin.FeeTable("180", 2000000)}))

	// Get message
	var msg bork.Message
	request(t, admin, "/messages/1001", http.StatusOK, &msg)
	assert.Equal(t, "shibe", msg.UserHandle)
	assert.Equal(t, bork.StatusAccepted, msg.Status)

	// Missing message
	var failure struct {
		Error struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	request(t, admin, "/messages/999", http.StatusNotFound, &failure)
	assert.Equal(t, string(bork.NotFound), failure.Error.Code)

	// List by status
	var list []bork.Message
	request(t, admin, "/messages?status=rejected_no_text", http.StatusOK, &list)
	require.Len(t, list, 1)
	assert.Equal(t, "1002", list[0].ID)
	request(t, admin, "/messages?status=bogus", http.StatusBadRequest, &failure)
	request(t, admin, "/messages?status=accepted&limit=x", http.StatusBadRequest, &failure)

	// Status summary
	var status StatusResponse
	request(t, admin, "/status", http.StatusOK, &status)
	assert.Equal(t, 1, status.Counts[bork.StatusAccepted])
	assert.True(t, status.Balance.Equal(decimal.NewFromInt(3)))

	// UTXOs
	var utxos []bork.UTXO
	request(t, admin, "/utxos", http.StatusOK, &utxos)
	require.Len(t, utxos, 1)
	assert.Equal(t, "aa", utxos[0].TxID)

	// Fee
	var fee FeeResponse
	request(t, admin, "/fee", http.StatusOK, &fee)
	require.NotNil(t, fee.Rate)
	assert.True(t, fee.Rate.Equal(decimal.RequireFromString("0.02")))

	// Health
	var health map[string]string
	request(t, admin, "/health", http.StatusOK, &health)
	assert.Equal(t, "ok", health["status"])
}

func TestWalletQR(t *testing.T) {
	admin, _ := newTestRig(t)
	req := httptest.NewRequest("GET", "/wallet/qr.png?fg=ff0000", nil)
	res := httptest.NewRecorder()
	admin.ServeHTTP(res, req)
	assert.Equal(t, http.StatusOK, res.Code)
	assert.Equal(t, "image/png", res.Header().Get("Content-Type"))
	assert.Equal(t, []byte("\x89PNG"), res.Body.Bytes()[:4])
}

func TestMetricsEndpoint(t *testing.T) {
	admin, _ := newTestRig(t)
	req := httptest.NewRequest("GET", "/metrics", nil)
	res := httptest.NewRecorder()
	admin.ServeHTTP(res, req)
	assert.Equal(t, http.StatusOK, res.Code)
	assert.Contains(t, res.Body.String(), "borkbot_test_gauge")
}

func TestHttpStatusForError(t *testing.T) {
	assert.Equal(t, 404, HttpStatusForError(bork.NotFound))
	assert.Equal(t, 402, HttpStatusForError(bork.InsufficientFunds))
	assert.Equal(t, 500, HttpStatusForError(bork.ErrorCode("nope")))
}

// Helpers.

func request(t *testing.T, adminMux *httprouter.Router, path string, wantStatus int, out any) {
	req := httptest.NewRequest("GET", path, nil)
	res := httptest.NewRecorder()
	adminMux.ServeHTTP(res, req)
	require.Equal(t, wantStatus, res.Code, "%s: %s", path, res.Body.String())
	require.NoError(t, json.NewDecoder(res.Body).Decode(out), "%s bad json", path)
}

func newTestRig(t *testing.T) (*httprouter.Router, bork.Store) {
	config := bork.TestConfig()
	db, err := store.NewSQLiteStore(":memory:")
	require.NoError(t, err, "Cannot create in-memory database")
	t.Cleanup(db.Close)

	reg := prometheus.NewRegistry()
	gauge := prometheus.NewGauge(prometheus.GaugeOpts{Name: "borkbot_test_gauge", Help: "test"})
	reg.MustRegister(gauge)
	gauge.Set(1)

	web, err := NewWebAPI(config, db, reg)
	require.NoError(t, err)
	return web.createRouter(), db
}

type fixedStates []conductor.ServiceStatus

func (f fixedStates) States() []conductor.ServiceStatus { return f }

func TestHealthReportsServices(t *testing.T) {
	db, err := store.NewSQLiteStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(db.Close)
	web, err := NewWebAPI(bork.TestConfig(), db, prometheus.NewRegistry())
	require.NoError(t, err)

	running := fixedStates{{Name: "Bot", State: conductor.Running}, {Name: "Admin API", State: conductor.Running}}
	var health HealthResponse
	request(t, web.WithServices(running).createRouter(), "/health", http.StatusOK, &health)
	assert.Equal(t, "ok", health.Status)
	assert.Len(t, health.Services, 2)

	stopping := fixedStates{{Name: "Bot", State: conductor.Stopping}}
	request(t, web.WithServices(stopping).createRouter(), "/health", http.StatusServiceUnavailable, &health)
	assert.Equal(t, "degraded", health.Status)
	assert.Equal(t, conductor.Stopping, health.Services[0].State)
}
