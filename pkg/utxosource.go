package bork

import "context"

// UTXOSource is used to find UTXOs to spend, oldest first.
type UTXOSource interface {
	// NextUnspentUTXO returns the oldest spendable UTXO not in taken, or
	// an InsufficientFunds error when none remain.
	NextUnspentUTXO(ctx context.Context, taken UTXOSet) (UTXO, error)
}

// LedgerUTXOSource reads unspent UTXOs from the Ledger and refreshes the
// Ledger from the chain when they run out.
type LedgerUTXOSource struct {
	ledger   *Ledger
	store    Store
	unspent  []UTXO
	reserved UTXOSet
	loaded   bool
	noMore   bool
}

var _ UTXOSource = &LedgerUTXOSource{}

func NewUTXOSource(ledger *Ledger) UTXOSource {
	return &LedgerUTXOSource{
		ledger:   ledger,
		store:    ledger.store,
		reserved: NewUTXOSet(),
	}
}

func NewArrayUTXOSource(utxos []UTXO) UTXOSource {
	// Used for tests: because noMore is true, it will not access the ledger.
	return &LedgerUTXOSource{
		unspent:  utxos,
		reserved: NewUTXOSet(),
		loaded:   true,
		noMore:   true,
	}
}

func (s *LedgerUTXOSource) load(ctx context.Context) error {
	utxos, err := s.ledger.Unspent(ctx)
	if err != nil {
		return err
	}
	// inputs of signed (possibly broadcast) txns are spent even if
	// spent_at was never written.
	reserved, err := s.store.ReservedInputs(ctx)
	if err != nil {
		return err
	}
	s.unspent = utxos
	s.reserved = NewUTXOSet()
	s.reserved.AddAll(reserved)
	s.loaded = true
	return nil
}

func (s *LedgerUTXOSource) fetchMoreUTXOs(ctx context.Context) error {
	added, err := s.ledger.Refresh(ctx)
	if err != nil {
		return err
	}
	if added < 1 {
		s.noMore = true // nothing new on chain.
		return nil
	}
	return s.load(ctx)
}

func (s *LedgerUTXOSource) NextUnspentUTXO(ctx context.Context, taken UTXOSet) (UTXO, error) {
	for {
		if !s.loaded {
			if err := s.load(ctx); err != nil {
				return UTXO{}, err
			}
		}
		for _, utxo := range s.unspent {
			// Exclude UTXOs that have already been taken from the source.
			if utxo.IsSpent() || taken.Includes(utxo.TxID) || s.reserved.Includes(utxo.TxID) {
				continue
			}
			return utxo, nil // found matching UTXO.
		}
		if !s.noMore {
			err := s.fetchMoreUTXOs(ctx)
			if err != nil {
				return UTXO{}, err // error fetching UTXOs.
			}
			continue
		}
		return UTXO{}, NewErr(InsufficientFunds, "not enough funds in wallet")
	}
}

// SelectCoins takes UTXOs from source, oldest first, until their total
// covers required. No UTXO is taken twice.
func SelectCoins(ctx context.Context, source UTXOSource, required CoinAmount) ([]UTXO, error) {
	taken := NewUTXOSet()
	selected := []UTXO{}
	total := ZeroCoins
	for total.LessThan(required) {
		utxo, err := source.NextUnspentUTXO(ctx, taken)
		if err != nil {
			if IsInsufficientFundsError(err) {
				return nil, NewErr(InsufficientFunds, "need %s, wallet has %s spendable", required.String(), total.String())
			}
			return nil, err
		}
		taken.Add(utxo.TxID)
		selected = append(selected, utxo)
		total = total.Add(utxo.Value)
	}
	return selected, nil
}
