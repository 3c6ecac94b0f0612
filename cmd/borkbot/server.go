package main

import (
	"context"
	"fmt"
	"os"

	bork "github.com/dogecoinfoundation/borkbot/pkg"
	"github.com/dogecoinfoundation/borkbot/pkg/conductor"
	"github.com/dogecoinfoundation/borkbot/pkg/core"
	"github.com/dogecoinfoundation/borkbot/pkg/doge"
	"github.com/dogecoinfoundation/borkbot/pkg/dogecoin"
	"github.com/dogecoinfoundation/borkbot/pkg/feeapi"
	"github.com/dogecoinfoundation/borkbot/pkg/logger"
	"github.com/dogecoinfoundation/borkbot/pkg/metrics"
	"github.com/dogecoinfoundation/borkbot/pkg/receivers"
	"github.com/dogecoinfoundation/borkbot/pkg/signer"
	"github.com/dogecoinfoundation/borkbot/pkg/store"
	"github.com/dogecoinfoundation/borkbot/pkg/twitter"
	"github.com/dogecoinfoundation/borkbot/pkg/webapi"
	"github.com/prometheus/client_golang/prometheus"
)

type ServerOptions struct {
	Confirm bool // operator approves every broadcast and reply
	Mock    bool // in-memory collaborators, nothing leaves the process
}

func Server(conf bork.Config, opts ServerOptions) {
	if err := logger.Init(conf.Log.Level, conf.Log.Format, conf.Log.File); err != nil {
		panic(err)
	}
	if err := checkWallet(conf, opts); err != nil {
		panic(err)
	}

	c := conductor.NewConductor(
		conductor.HookSignals(),
		conductor.Noisy(),
	)

	// Start the MessageBus Service
	bus := bork.NewMessageBus()
	c.Service("MessageBus", bus)

	// Set up all configured receivers
	receivers.SetUpReceivers(c, bus, conf)

	// Setup a Store
	store, err := store.NewStore(conf.Store.Driver, conf.Store.DSN)
	if err != nil {
		panic(err)
	}
	defer store.Close()

	metrics.MustRegister(prometheus.DefaultRegisterer)

	// The single worker: recovery, then polling
	bot := bork.NewBot(conf, store, bus, collaborators(conf, opts))
	c.Service("Bot", bot)

	// Start the admin API
	api, err := webapi.NewWebAPI(conf, store, prometheus.DefaultGatherer)
	if err != nil {
		panic(err)
	}
	c.Service("Admin API", api.WithServices(c))

	<-c.Start()
}

// Recover runs one recovery pass against the configured store and exits.
func Recover(conf bork.Config, opts ServerOptions) error {
	if err := logger.Init(conf.Log.Level, conf.Log.Format, conf.Log.File); err != nil {
		return err
	}
	if err := checkWallet(conf, opts); err != nil {
		return err
	}
	store, err := store.NewStore(conf.Store.Driver, conf.Store.DSN)
	if err != nil {
		return err
	}
	defer store.Close()
	bot := bork.NewBot(conf, store, bork.NewMessageBus(), collaborators(conf, opts))
	return bot.Recover(context.Background())
}

// ResetDraft discards the signed draft of one fund_failed message.
func ResetDraft(conf bork.Config, opts ServerOptions, id string) error {
	store, err := store.NewStore(conf.Store.Driver, conf.Store.DSN)
	if err != nil {
		return err
	}
	defer store.Close()
	bot := bork.NewBot(conf, store, bork.NewMessageBus(), collaborators(conf, opts))
	msg, err := bot.Pipeline.ResetDraft(context.Background(), id)
	if err != nil {
		return err
	}
	fmt.Printf("%s: draft discarded, status %s\n", msg.ID, msg.Status)
	return nil
}

func checkWallet(conf bork.Config, opts ServerOptions) error {
	if opts.Mock {
		return nil
	}
	chain, err := doge.ChainByName(conf.Signer.Network)
	if err != nil {
		return err
	}
	if !doge.ValidateP2PKH(doge.Address(conf.Bork.WalletAddress), chain) {
		return bork.NewErr(bork.BadRequest, "wallet %s is not a %s P2PKH address", conf.Bork.WalletAddress, chain.Name)
	}
	return nil
}

func collaborators(conf bork.Config, opts ServerOptions) bork.Collaborators {
	var c bork.Collaborators
	if opts.Mock {
		chain := dogecoin.NewChainMock()
		chain.ChangeTo = conf.Bork.WalletAddress
		chain.Fund(conf.Bork.WalletAddress, "100", "100", "100")
		social := twitter.NewMock()
		c = bork.Collaborators{
			Chain:    chain,
			Signer:   dogecoin.NewSignerMock(),
			Fees:     dogecoin.NewFeeMock(conf.Fees.Target, 1000000),
			Mentions: social,
			Replies:  social,
		}
	} else {
		social := twitter.NewClient(conf)
		c = bork.Collaborators{
			Chain:    core.NewDogecoinCoreRPC(conf),
			Signer:   signer.NewClient(conf),
			Fees:     feeapi.NewClient(conf),
			Mentions: social,
			Replies:  social,
		}
	}
	if opts.Confirm {
		c.Gate = bork.NewPromptGate(os.Stdin, os.Stdout)
	}
	return c
}
