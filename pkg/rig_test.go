package bork_test

import (
	"context"
	"testing"
	"time"

	bork "github.com/dogecoinfoundation/borkbot/pkg"
	"github.com/dogecoinfoundation/borkbot/pkg/dogecoin"
	"github.com/dogecoinfoundation/borkbot/pkg/store"
	"github.com/dogecoinfoundation/borkbot/pkg/twitter"
	"github.com/stretchr/testify/require"
)

// rig wires a Bot to an in-memory store and the mock collaborators.
type rig struct {
	ctx    context.Context
	conf   bork.Config
	store  store.SQLStore
	chain  *dogecoin.ChainMock
	signer *dogecoin.SignerMock
	fees   *dogecoin.FeeMock
	social *twitter.Mock
	bot    *bork.Bot
}

// 1000000 satoshi = 0.01 DOGE per transaction
const testFeeSatoshi = 1000000

func newRig(t *testing.T, configure ...func(*bork.Config)) *rig {
	conf := bork.TestConfig()
	for _, f := range configure {
		f(&conf)
	}
	db, err := store.NewSQLiteStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(db.Close)

	r := &rig{
		ctx:    context.Background(),
		conf:   conf,
		store:  db,
		chain:  dogecoin.NewChainMock(),
		signer: dogecoin.NewSignerMock(),
		fees:   dogecoin.NewFeeMock(conf.Fees.Target, testFeeSatoshi),
		social: twitter.NewMock(),
	}
	r.chain.ChangeTo = conf.Bork.WalletAddress
	r.bot = bork.NewBot(conf, db, bork.NewMessageBus(), bork.Collaborators{
		Chain:    r.chain,
		Signer:   r.signer,
		Fees:     r.fees,
		Mentions: r.social,
		Replies:  r.social,
	})
	return r
}

// fund pays amounts to the wallet on the mock chain.
func (r *rig) fund(amounts ...string) string {
	return r.chain.Fund(r.conf.Bork.WalletAddress, amounts...)
}

func (r *rig) message(t *testing.T, id string) bork.Message {
	msg, err := r.store.GetMessage(r.ctx, id)
	require.NoError(t, err)
	return msg
}

var mentionTime = time.Date(2021, 5, 1, 12, 0, 0, 0, time.UTC)

func mention(id, userID, text string) bork.Mention {
	return bork.Mention{
		ID:      id,
		UserID:  userID,
		Handle:  "user" + userID,
		Text:    "@borkbot " + text,
		Created: mentionTime,
	}
}
