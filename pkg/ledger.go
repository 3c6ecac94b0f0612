package bork

import (
	"context"
	"time"

	"github.com/dogecoinfoundation/borkbot/pkg/logger"
	"github.com/dogecoinfoundation/borkbot/pkg/metrics"
	"github.com/sirupsen/logrus"
)

// Ledger tracks the wallet's funding UTXOs. Rows are added by Refresh and
// marked spent by the pipeline; they are never removed.
type Ledger struct {
	store   Store
	chain   ChainRPC
	address Address
	log     *logrus.Entry
}

func NewLedger(store Store, chain ChainRPC, conf Config) *Ledger {
	return &Ledger{
		store:   store,
		chain:   chain,
		address: conf.Bork.WalletAddress,
		log:     logger.NewSublogger("ledger"),
	}
}

// Unspent returns unspent UTXOs, oldest received first.
func (l *Ledger) Unspent(ctx context.Context) ([]UTXO, error) {
	return l.store.ListUnspentUTXOs(ctx)
}

func (l *Ledger) MarkSpent(ctx context.Context, txids []string) error {
	return l.store.MarkUTXOsSpent(ctx, txids, time.Now())
}

func (l *Ledger) Balance(ctx context.Context) (CoinAmount, error) {
	utxos, err := l.store.ListUnspentUTXOs(ctx)
	if err != nil {
		return ZeroCoins, err
	}
	total := ZeroCoins
	for _, u := range utxos {
		total = total.Add(u.Value)
	}
	return total, nil
}

// Refresh pulls the wallet's unspent outputs from the chain and stores any
// transaction not seen before. Outputs of the same transaction are summed
// into one UTXO. Returns the number of new rows.
func (l *Ledger) Refresh(ctx context.Context) (int, error) {
	outputs, err := l.chain.ListUnspent(ctx, l.address)
	if err != nil {
		metrics.LedgerRefreshTotal.WithLabelValues("error").Inc()
		return 0, NewErr(RPCError, "listunspent: %v", err)
	}

	order := []string{}
	values := map[string]CoinAmount{}
	for _, out := range outputs {
		v, seen := values[out.TxID]
		if !seen {
			order = append(order, out.TxID)
			v = ZeroCoins
		}
		values[out.TxID] = v.Add(out.Value)
	}

	added := 0
	for _, txid := range order {
		known, err := l.store.HasUTXO(ctx, txid)
		if err != nil {
			metrics.LedgerRefreshTotal.WithLabelValues("error").Inc()
			return added, err
		}
		if known {
			continue
		}
		raw, err := l.chain.GetRawTransaction(ctx, txid)
		if err != nil {
			metrics.LedgerRefreshTotal.WithLabelValues("error").Inc()
			return added, NewErr(RPCError, "getrawtransaction %s: %v", txid, err)
		}
		inserted, err := l.store.InsertUTXO(ctx, UTXO{
			TxID:     txid,
			Received: time.Now(),
			Value:    values[txid],
			RawTx:    raw,
		})
		if err != nil {
			metrics.LedgerRefreshTotal.WithLabelValues("error").Inc()
			return added, err
		}
		if inserted {
			added++
		}
	}
	if added == 0 {
		metrics.LedgerRefreshTotal.WithLabelValues("empty").Inc()
	} else {
		metrics.LedgerRefreshTotal.WithLabelValues("ok").Inc()
	}
	l.log.WithFields(logrus.Fields{"outputs": len(outputs), "new": added}).Info("ledger refreshed")
	return added, nil
}
