package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	MessagesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "borkbot_messages_total",
			Help: "Message status transitions by resulting status",
		},
		[]string{"status"}, // accepted|funding_tx1|...|rejected_too_long
	)

	BroadcastsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "borkbot_broadcasts_total",
			Help: "Transaction broadcasts by outcome",
		},
		[]string{"result"}, // ok|error|skipped
	)

	LedgerRefreshTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "borkbot_ledger_refresh_total",
			Help: "UTXO ledger refreshes by outcome",
		},
		[]string{"result"}, // ok|empty|error
	)

	FeeFetchTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "borkbot_fee_fetch_total",
			Help: "Fee estimate lookups by source",
		},
		[]string{"source"}, // cache|store|network|stale
	)

	PollDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "borkbot_poll_duration_seconds",
			Help:    "Duration of one poll cycle",
			Buckets: prometheus.DefBuckets,
		},
	)

	MentionsProcessed = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "borkbot_mentions_processed_total",
			Help: "Mentions processed (admitted or rejected)",
		},
	)

	PollTruncatedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "borkbot_poll_truncated_total",
			Help: "Poll cycles that stopped at the page cap with older mentions unfetched",
		},
	)
)

func MustRegister(r prometheus.Registerer) {
	r.MustRegister(
		MessagesTotal,
		BroadcastsTotal,
		LedgerRefreshTotal,
		FeeFetchTotal,
		PollDuration,
		MentionsProcessed,
		PollTruncatedTotal,
	)
}
