package webapi

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	bork "github.com/dogecoinfoundation/borkbot/pkg"
	"github.com/dogecoinfoundation/borkbot/pkg/conductor"
	"github.com/julienschmidt/httprouter"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shopspring/decimal"
)

const defaultListLimit = 100

// WebAPI implements conductor.Service. It is read-only: every write to the
// store comes from the Bot.
type WebAPI struct {
	store    bork.Store
	config   bork.Config
	gatherer prometheus.Gatherer
	services ServiceReporter
}

// ServiceReporter is satisfied by *conductor.Conductor.
type ServiceReporter interface {
	States() []conductor.ServiceStatus
}

// interface guard ensures WebAPI implements conductor.Service
var _ conductor.Service = WebAPI{}

func NewWebAPI(config bork.Config, store bork.Store, gatherer prometheus.Gatherer) (WebAPI, error) {
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	return WebAPI{store: store, config: config, gatherer: gatherer}, nil
}

// WithServices makes /health report the state of each running service.
func (t WebAPI) WithServices(r ServiceReporter) WebAPI {
	t.services = r
	return t
}

func (t WebAPI) Run(started, stopped chan bool, stop chan context.Context) error {
	go func() {
		adminMux := t.createRouter()

		addr := t.config.WebAPI.Bind + ":" + t.config.WebAPI.Port
		adminServer := &http.Server{Addr: addr, Handler: adminMux}
		log.Infof("Admin API listening on %s", addr)
		go func() {
			if err := adminServer.ListenAndServe(); err != http.ErrServerClosed {
				log.Fatalf("HTTP server admin ListenAndServe: %v", err)
			}
		}()

		started <- true
		ctx := <-stop
		adminServer.Shutdown(ctx)
		stopped <- true
	}()
	return nil
}

func (t WebAPI) createRouter() *httprouter.Router {
	adminMux := httprouter.New()

	// GET /messages?status=fund_failed&limit=10 -> [ {message}, .. ] oldest first
	adminMux.GET("/messages", t.listMessages)

	// GET /messages/:id -> { message }
	adminMux.GET("/messages/:id", t.getMessage)

	// GET /status -> { counts per status, balance }
	adminMux.GET("/status", t.getStatus)

	// GET /utxos?limit=10 -> [ {utxo}, .. ] newest first
	adminMux.GET("/utxos", t.listUTXOs)

	// GET /fee -> { latest stored fee estimate and the rate it yields }
	adminMux.GET("/fee", t.getFee)

	// GET /wallet/qr.png?fg=000000&bg=ffffff -> funding address QR code
	adminMux.GET("/wallet/qr.png", t.getWalletQR)

	adminMux.Handler(http.MethodGet, "/metrics", promhttp.HandlerFor(t.gatherer, promhttp.HandlerOpts{}))

	// GET /health -> { status, services: [ {name, state}, .. ] }
	adminMux.GET("/health", t.getHealth)

	return adminMux
}

func listLimit(r *http.Request) (int, bool) {
	s := r.URL.Query().Get("limit")
	if s == "" {
		return defaultListLimit, true
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 1 {
		return 0, false
	}
	return n, true
}

func (t WebAPI) listMessages(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
	status := bork.MessageStatus(r.URL.Query().Get("status"))
	if !status.IsValid() {
		sendBadRequest(w, "missing or unknown 'status' query parameter")
		return
	}
	limit, ok := listLimit(r)
	if !ok {
		sendBadRequest(w, "limit must be a positive integer")
		return
	}
	msgs, err := t.store.ListMessagesByStatus(r.Context(), status, limit)
	if err != nil {
		sendError(w, "ListMessagesByStatus", err)
		return
	}
	sendResponse(w, msgs)
}

func (t WebAPI) getMessage(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
	id := p.ByName("id")
	if id == "" {
		sendBadRequest(w, "missing message ID in URL")
		return
	}
	msg, err := t.store.GetMessage(r.Context(), id)
	if err != nil {
		sendError(w, "GetMessage", err)
		return
	}
	sendResponse(w, msg)
}

type StatusResponse struct {
	Counts  map[bork.MessageStatus]int `json:"counts"`
	Balance bork.CoinAmount            `json:"balance"`
	Cursor  string                     `json:"cursor"`
}

func (t WebAPI) getStatus(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
	ctx := r.Context()
	counts, err := t.store.CountMessagesByStatus(ctx)
	if err != nil {
		sendError(w, "CountMessagesByStatus", err)
		return
	}
	utxos, err := t.store.ListUnspentUTXOs(ctx)
	if err != nil {
		sendError(w, "ListUnspentUTXOs", err)
		return
	}
	balance := bork.ZeroCoins
	for _, u := range utxos {
		balance = balance.Add(u.Value)
	}
	cursor, err := t.store.GetServiceCursor(ctx, bork.SERVICE_KEY)
	if err != nil {
		sendError(w, "GetServiceCursor", err)
		return
	}
	sendResponse(w, StatusResponse{Counts: counts, Balance: balance, Cursor: cursor})
}

func (t WebAPI) listUTXOs(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
	limit, ok := listLimit(r)
	if !ok {
		sendBadRequest(w, "limit must be a positive integer")
		return
	}
	utxos, err := t.store.ListUTXOs(r.Context(), limit)
	if err != nil {
		sendError(w, "ListUTXOs", err)
		return
	}
	sendResponse(w, utxos)
}

type FeeResponse struct {
	Captured string           `json:"captured"`
	Target   string           `json:"target"`
	Rate     *decimal.Decimal `json:"rate,omitempty"`
	Error    string           `json:"error,omitempty"`
}

func (t WebAPI) getFee(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
	est, err := t.store.LatestFeeEstimate(r.Context())
	if err != nil {
		sendError(w, "LatestFeeEstimate", err)
		return
	}
	res := FeeResponse{
		Captured: est.Captured.UTC().Format("2006-01-02T15:04:05Z"),
		Target:   t.config.Fees.Target,
	}
	rate, err := bork.ExtractFeeRate(est.Raw, t.config.Fees.Target)
	if err != nil {
		res.Error = err.Error()
	} else {
		res.Rate = &rate
	}
	sendResponse(w, res)
}

func (t WebAPI) getWalletQR(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
	qs := r.URL.Query()
	qr, err := GenerateQRCodePNG("dogecoin:"+string(t.config.Bork.WalletAddress), 512, qs.Get("fg"), qs.Get("bg"))
	if err != nil {
		sendError(w, "GenerateQRCodePNG", err)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	// the wallet address does not change while the bot is running.
	w.Header().Set("Cache-Control", "max-age=900")
	w.Write(qr)
}

type HealthResponse struct {
	Status   string                    `json:"status"`
	Services []conductor.ServiceStatus `json:"services,omitempty"`
}

func (t WebAPI) getHealth(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
	res := HealthResponse{Status: "ok"}
	if t.services != nil {
		res.Services = t.services.States()
		for _, s := range res.Services {
			if s.State != conductor.Running {
				res.Status = "degraded"
			}
		}
	}
	if res.Status != "ok" {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusServiceUnavailable)
		json.NewEncoder(w).Encode(res)
		return
	}
	sendResponse(w, res)
}
