package bork

import (
	"context"
	"encoding/json"
	"time"

	"github.com/dogecoinfoundation/borkbot/pkg/logger"
	"github.com/dogecoinfoundation/borkbot/pkg/metrics"
	"github.com/patrickmn/go-cache"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

const feeCacheKey = "fee"

// FeeQuote is the fee in use and where it came from.
type FeeQuote struct {
	Rate     FeeRate   `json:"rate"`
	Captured time.Time `json:"captured"`
	Stale    bool      `json:"stale"`
}

// FeeOracle keeps the current per-transaction fee. Fresh quotes are held in
// memory until they reach MaxAge; after that the stored estimate is checked
// and then the FeeSource is asked for a new one.
type FeeOracle struct {
	store  Store
	source FeeSource
	cache  *cache.Cache
	maxAge time.Duration
	target string
	minFee CoinAmount
	now    func() time.Time
	log    *logrus.Entry
}

func NewFeeOracle(store Store, source FeeSource, conf Config) *FeeOracle {
	minFee, err := decimal.NewFromString(conf.Fees.MinFee)
	if err != nil {
		minFee = TxnMinFee
	}
	maxAge := conf.Fees.MaxAge
	if maxAge <= 0 {
		maxAge = 30 * time.Minute
	}
	return &FeeOracle{
		store:  store,
		source: source,
		cache:  cache.New(maxAge, 2*maxAge),
		maxAge: maxAge,
		target: conf.Fees.Target,
		minFee: minFee,
		now:    time.Now,
		log:    logger.NewSublogger("fees"),
	}
}

// CurrentFee returns the fee to pay per bork transaction.
func (f *FeeOracle) CurrentFee(ctx context.Context) (FeeRate, error) {
	q, err := f.Quote(ctx)
	if err != nil {
		return FeeRate{}, err
	}
	return q.Rate, nil
}

func (f *FeeOracle) Quote(ctx context.Context) (FeeQuote, error) {
	if v, found := f.cache.Get(feeCacheKey); found {
		metrics.FeeFetchTotal.WithLabelValues("cache").Inc()
		return v.(FeeQuote), nil
	}

	var stale *FeeQuote
	latest, err := f.store.LatestFeeEstimate(ctx)
	if err != nil && !IsNotFoundError(err) {
		f.log.WithError(err).Warn("cannot load stored fee estimate")
	}
	if err == nil {
		q, qerr := f.quote(latest)
		if qerr != nil {
			f.log.WithError(qerr).Warn("stored fee estimate is unreadable")
		} else {
			age := f.now().Sub(latest.Captured)
			if age < f.maxAge {
				metrics.FeeFetchTotal.WithLabelValues("store").Inc()
				f.cache.Set(feeCacheKey, q, f.maxAge-age)
				return q, nil
			}
			q.Stale = true
			stale = &q
		}
	}

	est, err := f.source.LatestFeeEstimate(ctx)
	var q FeeQuote
	if err == nil {
		if est.Captured.IsZero() {
			est.Captured = f.now()
		}
		q, err = f.quote(est)
	}
	if err != nil {
		if stale != nil {
			metrics.FeeFetchTotal.WithLabelValues("stale").Inc()
			f.log.WithError(err).WithField("captured", stale.Captured).Warn("fee fetch failed, using stale estimate")
			return *stale, nil
		}
		return FeeQuote{}, NewErr(RPCError, "fee estimate unavailable: %v", err)
	}
	metrics.FeeFetchTotal.WithLabelValues("network").Inc()
	if serr := f.store.StoreFeeEstimate(ctx, est); serr != nil {
		f.log.WithError(serr).Warn("cannot store fee estimate")
	}
	f.cache.Set(feeCacheKey, q, f.maxAge)
	f.log.WithField("fee", q.Rate.String()).Info("fee estimate refreshed")
	return q, nil
}

func (f *FeeOracle) quote(est FeeEstimate) (FeeQuote, error) {
	rate, err := ExtractFeeRate(est.Raw, f.target)
	if err != nil {
		return FeeQuote{}, err
	}
	if rate.LessThan(f.minFee) {
		rate = f.minFee
	}
	return FeeQuote{Rate: rate, Captured: est.Captured}, nil
}

type feeTable struct {
	Estimates map[string]struct {
		Total struct {
			P2PKH struct {
				Satoshi decimal.Decimal `json:"satoshi"`
			} `json:"p2pkh"`
		} `json:"total"`
	} `json:"estimates"`
}

// ExtractFeeRate reads the p2pkh total fee (in the smallest unit) for the
// given confirmation target from a fee rate table.
func ExtractFeeRate(raw string, target string) (FeeRate, error) {
	var table feeTable
	if err := json.Unmarshal([]byte(raw), &table); err != nil {
		return FeeRate{}, NewErr(BadRequest, "fee table: %v", err)
	}
	entry, ok := table.Estimates[target]
	if !ok {
		return FeeRate{}, NewErr(BadRequest, "fee table: no estimate for target %s", target)
	}
	return entry.Total.P2PKH.Satoshi.Shift(-8), nil
}
