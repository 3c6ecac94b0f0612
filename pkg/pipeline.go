package bork

import (
	"context"
	"fmt"

	"github.com/dogecoinfoundation/borkbot/pkg/doge"
	"github.com/dogecoinfoundation/borkbot/pkg/logger"
	"github.com/dogecoinfoundation/borkbot/pkg/metrics"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

const BorkTypeComment = "comment"

// Pipeline funds, signs and broadcasts the bork transactions of one
// accepted message. Progress is written to the Message after every step so
// a later run resumes where this one stopped.
type Pipeline struct {
	store       Store
	ledger      *Ledger
	fees        *FeeOracle
	signer      Signer
	chain       ChainRPC
	gate        Gate
	bus         MessageBus
	wallet      Address
	referenceID string
	splitBytes  int
	log         *logrus.Entry
}

func NewPipeline(store Store, ledger *Ledger, fees *FeeOracle, signer Signer, chain ChainRPC, gate Gate, bus MessageBus, conf Config) *Pipeline {
	if gate == nil {
		gate = AutoApprove{}
	}
	return &Pipeline{
		store:       store,
		ledger:      ledger,
		fees:        fees,
		signer:      signer,
		chain:       chain,
		gate:        gate,
		bus:         bus,
		wallet:      conf.Bork.WalletAddress,
		referenceID: conf.Bork.ReferenceID,
		splitBytes:  conf.Bork.SplitBytes,
		log:         logger.NewSublogger("pipeline"),
	}
}

// TxCount is the number of chained transactions needed for content.
func (p *Pipeline) TxCount(content string) int {
	if len(content) > p.splitBytes {
		return 2
	}
	return 1
}

// Fund takes msg from accepted (or fund_failed) to awaiting_reply.
// On error msg is left in fund_failed with LastError set, and its inputs
// are not marked spent.
func (p *Pipeline) Fund(ctx context.Context, msg *Message) error {
	if msg.Status != StatusAccepted && msg.Status != StatusFundFailed {
		return NewErr(InvalidTransition, "message %s: cannot fund from %s", msg.ID, msg.Status)
	}
	log := p.log.WithFields(logrus.Fields{"id": msg.ID, "user": msg.UserHandle})
	err := p.fund(ctx, msg, log)
	if err != nil {
		log.WithError(err).Error("funding failed")
		if ferr := msg.Fail(StatusFundFailed, err); ferr != nil {
			log.WithError(ferr).Error("cannot record funding failure")
			return err
		}
		metrics.MessagesTotal.WithLabelValues(string(msg.Status)).Inc()
		if perr := p.persist(ctx, msg); perr != nil {
			log.WithError(perr).Error("cannot persist funding failure")
		}
		p.bus.Send(MSG_FUND_FAILED, NewMessageEvent(*msg))
		return err
	}
	return nil
}

func (p *Pipeline) fund(ctx context.Context, msg *Message, log *logrus.Entry) error {
	if !msg.HasDraft() {
		if err := p.draft(ctx, msg, log); err != nil {
			return err
		}
	}

	if msg.TxID1 == "" {
		if err := p.advance(ctx, msg, StatusFundingTx1); err != nil {
			return err
		}
		if err := p.broadcast(ctx, msg, 1, log); err != nil {
			return err
		}
	} else {
		metrics.BroadcastsTotal.WithLabelValues("skipped").Inc()
		log.WithField("txid", msg.TxID1).Info("tx1 already broadcast")
	}

	if msg.SignedTx2 != "" {
		if msg.TxID2 == "" {
			if err := p.advance(ctx, msg, StatusFundingTx2); err != nil {
				return err
			}
			if err := p.broadcast(ctx, msg, 2, log); err != nil {
				return err
			}
		} else {
			metrics.BroadcastsTotal.WithLabelValues("skipped").Inc()
			log.WithField("txid", msg.TxID2).Info("tx2 already broadcast")
		}
	}

	err := persistWithRetry(ctx, log, "MarkSpent", func() error {
		return p.ledger.MarkSpent(ctx, msg.Spends())
	})
	if err != nil {
		return err
	}
	msg.LastError = ""
	if err := p.advance(ctx, msg, StatusAwaitingReply); err != nil {
		return err
	}
	log.WithField("txids", msg.TxIDs()).Info("message funded")
	return nil
}

// draft selects coins, has the Signer build the transactions and stores
// them on the message before anything is broadcast.
func (p *Pipeline) draft(ctx context.Context, msg *Message, log *logrus.Entry) error {
	content := msg.Content()
	txCount := p.TxCount(content)
	fee, err := p.fees.CurrentFee(ctx)
	if err != nil {
		return err
	}
	// one fee per bork txn plus one for the change output.
	feeTotal := fee.Mul(decimal.NewFromInt(int64(txCount + 1)))
	coins, err := SelectCoins(ctx, NewUTXOSource(p.ledger), feeTotal)
	if err != nil {
		return err
	}

	req := SignRequest{
		Payload: BorkPayload{
			Type:        BorkTypeComment,
			Content:     content,
			ReferenceID: p.referenceID,
		},
		Change:   p.wallet,
		FeeTotal: feeTotal,
		TxCount:  txCount,
	}
	candidates := NewUTXOSet()
	for _, c := range coins {
		req.Inputs = append(req.Inputs, SignInput{TxID: c.TxID, RawTx: c.RawTx, Value: c.Value})
		candidates.Add(c.TxID)
	}
	res, err := p.signer.BuildAndSign(ctx, req)
	if err != nil {
		return NewErr(RPCError, "signer: %v", err)
	}
	if err := validateSignResult(res, txCount, candidates); err != nil {
		return err
	}

	msg.SignedTx1 = res.SignedTxs[0]
	if txCount > 1 {
		msg.SignedTx2 = res.SignedTxs[1]
	}
	msg.Inputs = res.ConsumedInputs
	log.WithFields(logrus.Fields{"txns": txCount, "fee": feeTotal.String(), "inputs": len(msg.Inputs)}).Info("transactions signed")
	return p.persist(ctx, msg)
}

func validateSignResult(res SignResult, txCount int, candidates UTXOSet) error {
	if len(res.SignedTxs) != txCount {
		return NewErr(InvalidTxn, "signer returned %d transactions, expected %d", len(res.SignedTxs), txCount)
	}
	if len(res.ConsumedInputs) == 0 {
		return NewErr(InvalidTxn, "signer reported no consumed inputs")
	}
	for _, id := range res.ConsumedInputs {
		if !candidates.Includes(id) {
			return NewErr(InvalidTxn, "signer consumed unknown input %s", id)
		}
	}
	// the second txn may spend change of the first; nothing else.
	allowed := NewUTXOSet()
	allowed.AddAll(res.ConsumedInputs)
	for _, hex := range res.SignedTxs {
		tx, err := doge.DecodeTxHex(hex)
		if err != nil {
			return NewErr(InvalidTxn, "signer returned an undecodable transaction: %v", err)
		}
		for _, in := range tx.InputTxIDs() {
			if !allowed.Includes(in) {
				return NewErr(InvalidTxn, "signed transaction %s spends unexpected input %s", tx.TxID, in)
			}
		}
		allowed.Add(tx.TxID)
	}
	return nil
}

func (p *Pipeline) broadcast(ctx context.Context, msg *Message, slot int, log *logrus.Entry) error {
	step, signed := StepBroadcastTx1, msg.SignedTx1
	if slot == 2 {
		step, signed = StepBroadcastTx2, msg.SignedTx2
	}
	ok, err := p.gate.Approve(ctx, step, *msg)
	if err != nil {
		return err
	}
	if !ok {
		return NewErr(Declined, "%s declined by operator", step)
	}
	txid, err := p.chain.Broadcast(ctx, signed)
	if err != nil {
		metrics.BroadcastsTotal.WithLabelValues("error").Inc()
		return NewErr(RPCError, "broadcast tx%d: %v", slot, err)
	}
	metrics.BroadcastsTotal.WithLabelValues("ok").Inc()
	if expected, derr := doge.DecodeTxHex(signed); derr == nil && expected.TxID != txid {
		log.WithFields(logrus.Fields{"txid": txid, "expected": expected.TxID}).Warn("node returned an unexpected txid")
	}
	if slot == 1 {
		msg.TxID1 = txid
	} else {
		msg.TxID2 = txid
	}
	// the recorded txid is the checkpoint: never lose it.
	if err := p.persist(ctx, msg); err != nil {
		return err
	}
	log.WithFields(logrus.Fields{"slot": slot, "txid": txid}).Info("transaction broadcast")
	p.bus.Send(MSG_BROADCAST, BroadcastEvent{MessageID: msg.ID, Slot: slot, TxID: txid})
	return nil
}

func (p *Pipeline) advance(ctx context.Context, msg *Message, to MessageStatus) error {
	if err := msg.Advance(to); err != nil {
		return err
	}
	metrics.MessagesTotal.WithLabelValues(string(to)).Inc()
	return p.persist(ctx, msg)
}

func (p *Pipeline) persist(ctx context.Context, msg *Message) error {
	return persistWithRetry(ctx, p.log, fmt.Sprintf("UpdateMessage %s", msg.ID), func() error {
		return p.store.UpdateMessage(ctx, *msg)
	})
}

// ResetDraft discards the signed but never broadcast transactions of a
// fund_failed message so the next attempt selects coins again.
func (p *Pipeline) ResetDraft(ctx context.Context, id string) (Message, error) {
	msg, err := p.store.GetMessage(ctx, id)
	if err != nil {
		return Message{}, err
	}
	if msg.Status != StatusFundFailed {
		return msg, NewErr(BadRequest, "message %s is %s, not %s", id, msg.Status, StatusFundFailed)
	}
	if msg.TxID1 != "" || msg.TxID2 != "" {
		return msg, NewErr(BadRequest, "message %s has broadcast transactions: %v", id, msg.TxIDs())
	}
	msg.SignedTx1, msg.SignedTx2 = "", ""
	msg.Inputs = nil
	if err := p.store.UpdateMessage(ctx, msg); err != nil {
		return msg, err
	}
	p.log.WithField("id", id).Warn("signed draft discarded")
	return msg, nil
}
