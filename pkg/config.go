package bork

import (
	"time"

	"github.com/jinzhu/configor"
)

type Config struct {
	Bork struct {
		// Wallet address that holds the funding UTXOs and receives change.
		WalletAddress Address `required:"true" env:"BORK_WALLET"`
		// Bork payload reference id: the first two characters of the
		// bork being commented on.
		ReferenceID  string        `default:"00"`
		MaxTextBytes int           `default:"59"`
		SplitBytes   int           `default:"74"`
		PollInterval time.Duration `default:"1h"`

		RejectionReplies bool `default:"false"`
		ReplyDuplicate   string `default:"You are only allowed one message."`
		ReplyNoText      string `default:"You cannot send an empty message. Please add some text."`
		ReplyTooLong     string `default:"Your message is too big. Must be 59 characters or less, including spaces."`
		ReplyMedia       string `default:""`
	}

	Twitter struct {
		BaseURL         string `default:"https://api.twitter.com/2"`
		BearerToken     string `env:"BORK_TWITTER_TOKEN"`
		UserID          string // the bot account whose mentions are polled
		// screen name; the reply prefix ends at it
		BotHandle       string `default:"borkbot"`
		PageSize        int    `default:"60"`
		MaxPages        int    `default:"10"`
		RelevantTweetID string // only process replies to this post, if set
		RequestsPerMin  int    `default:"15"`
	}

	// info for connecting to dogecoin-core daemon
	Core struct {
		RPCHost string `default:"localhost"`
		RPCPort int    `default:"22555"`
		RPCUser string `default:"borkbot"`
		RPCPass string `default:"borkbot" env:"BORK_RPC_PASS"`
	}

	Signer struct {
		URL     string `default:"http://localhost:8555"`
		Token   string `env:"BORK_SIGNER_TOKEN"`
		Network string `default:"mainnet"`
	}

	Fees struct {
		URL    string        `default:"https://bitcoiner.live/api/fees/estimates/latest"`
		Target string        `default:"180"` // confirmation target key in the rate table
		MaxAge time.Duration `default:"30m"`
		MinFee string        `default:"0.01"`
	}

	Store struct {
		Driver string `default:"sqlite3"` // sqlite3 | postgres
		DSN    string `default:"borkbot.db"`
	}

	WebAPI struct {
		Bind string `default:"localhost"`
		Port string `default:"8089"`
	}

	Log struct {
		Level  string `default:"info"`
		Format string `default:"text"`
		File   string
	}

	// Event log files (rotated) for bus events.
	Loggers map[string]LoggersConfig

	// HTTP endpoints that receive bus events.
	Callbacks map[string]CallbackConfig
}

type LoggersConfig struct {
	Path  string
	Types []string
}

type CallbackConfig struct {
	Path       string
	Types      []string
	HMACSecret string
}

func LoadConfig(confPath string) (Config, error) {
	c := Config{}
	err := configor.New(&configor.Config{ENVPrefix: "BORK"}).Load(&c, confPath)
	return c, err
}

// TestConfig returns defaults suitable for tests: in-memory sqlite and a
// fixed wallet address.
func TestConfig() Config {
	c := Config{}
	c.Bork.WalletAddress = "DTestWalletAddressxxxxxxxxxxxxxxxx"
	c.Bork.ReferenceID = "00"
	c.Bork.MaxTextBytes = 59
	c.Bork.SplitBytes = 74
	c.Bork.PollInterval = time.Hour
	c.Bork.ReplyDuplicate = "You are only allowed one message."
	c.Bork.ReplyNoText = "You cannot send an empty message. Please add some text."
	c.Bork.ReplyTooLong = "Your message is too big. Must be 59 characters or less, including spaces."
	c.Twitter.BotHandle = "borkbot"
	c.Twitter.PageSize = 60
	c.Twitter.MaxPages = 10
	c.Fees.Target = "180"
	c.Fees.MaxAge = 30 * time.Minute
	c.Fees.MinFee = "0.01"
	c.Store.Driver = "sqlite3"
	c.Store.DSN = ":memory:"
	return c
}
