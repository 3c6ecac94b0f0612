package main

import (
	"encoding/json"
	"fmt"
	"os"

	bork "github.com/dogecoinfoundation/borkbot/pkg"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func main() {
	var configPath string
	var opts ServerOptions
	var sub SubCommandArgs

	// define root command
	rootCmd := &cobra.Command{
		Use:   "borkbot",
		Short: "Turns social mentions into Dogecoin bork transactions",
		Run: func(cmd *cobra.Command, args []string) {
			cmd.Help()
			os.Exit(0)
		},
	}

	// Flags that override the config file
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file (default: search ./, /etc/borkbot/, $HOME/.borkbot)")
	rootCmd.PersistentFlags().String("wallet", "", "Wallet address")
	rootCmd.PersistentFlags().String("store-driver", "", "Store driver (sqlite3|postgres)")
	rootCmd.PersistentFlags().String("store-dsn", "", "Store DSN or sqlite file")
	rootCmd.PersistentFlags().String("webapi-bind", "", "Web API bind")
	rootCmd.PersistentFlags().String("webapi-port", "", "Web API port")
	rootCmd.PersistentFlags().String("log-level", "", "Log level")
	rootCmd.PersistentFlags().BoolVar(&opts.Mock, "mock", false, "Use in-memory chain, signer, fees and mentions")
	// Bind flags to config fields
	viper.BindPFlags(rootCmd.PersistentFlags())

	load := func() bork.Config {
		conf, err := LoadConfig(configPath)
		if err != nil {
			fmt.Println("failed to load config: ", err)
			os.Exit(1)
		}
		return conf
	}

	serverCmd := &cobra.Command{
		Use:   "server",
		Short: "Start the bot and its admin API",
		Run: func(cmd *cobra.Command, args []string) {
			Server(load(), opts)
		},
	}
	serverCmd.Flags().BoolVar(&opts.Confirm, "confirm", false, "Ask before every broadcast and reply")

	configCmd := &cobra.Command{
		Use:   "showconf",
		Short: "Print the config state and exit",
		Run: func(cmd *cobra.Command, args []string) {
			o, _ := json.MarshalIndent(load(), ">", " ")
			fmt.Println(string(o))
			os.Exit(0)
		},
	}

	recoverCmd := &cobra.Command{
		Use:   "recover",
		Short: "Resume unfinished messages once and exit",
		Run: func(cmd *cobra.Command, args []string) {
			exitOn(Recover(load(), opts))
		},
	}
	recoverCmd.Flags().BoolVar(&opts.Confirm, "confirm", false, "Ask before every broadcast and reply")

	resetCmd := &cobra.Command{
		Use:   "reset <message-id>",
		Short: "Discard the unbroadcast signed draft of a fund_failed message",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			exitOn(ResetDraft(load(), opts, args[0]))
		},
	}

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Print message counts and wallet balance from a running bot",
		Run: func(cmd *cobra.Command, args []string) {
			exitOn(PrintStatus(load(), sub))
		},
	}
	statusCmd.Flags().StringVar(&sub.RemoteAdminServer, "remote", "", "Admin API base URL (default: from config)")

	listCmd := &cobra.Command{
		Use:   "list <status>",
		Short: "List messages in a status from a running bot",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			exitOn(ListMessages(load(), sub, args[0]))
		},
	}
	listCmd.Flags().StringVar(&sub.RemoteAdminServer, "remote", "", "Admin API base URL (default: from config)")

	rootCmd.AddCommand(serverCmd, configCmd, recoverCmd, resetCmd, statusCmd, listCmd)

	// Execute the Cobra command
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
	}
}

func exitOn(err error) {
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
	os.Exit(0)
}

// LoadConfig finds the config file (BORK_ENV names it, default "config")
// with viper, loads it with configor so defaults and env overrides apply,
// then applies any flags given on the command line.
func LoadConfig(configPath string) (bork.Config, error) {
	if configPath == "" {
		configFileName, set := os.LookupEnv("BORK_ENV")
		if set {
			viper.SetConfigName(configFileName)
		} else {
			viper.SetConfigName("config")
		}

		// Set config file name and search paths
		viper.SetConfigType("toml")
		viper.AddConfigPath(".")
		viper.AddConfigPath("/etc/borkbot/")
		viper.AddConfigPath("$HOME/.borkbot")

		if err := viper.ReadInConfig(); err != nil {
			return bork.Config{}, fmt.Errorf("failed to find config file: %v", err)
		}
		configPath = viper.ConfigFileUsed()
	}

	conf, err := bork.LoadConfig(configPath)
	if err != nil {
		return conf, err
	}
	applyFlags(&conf)
	return conf, nil
}

func applyFlags(conf *bork.Config) {
	set := func(key string, dst *string) {
		if viper.IsSet(key) && viper.GetString(key) != "" {
			*dst = viper.GetString(key)
		}
	}
	wallet := string(conf.Bork.WalletAddress)
	set("wallet", &wallet)
	conf.Bork.WalletAddress = bork.Address(wallet)
	set("store-driver", &conf.Store.Driver)
	set("store-dsn", &conf.Store.DSN)
	set("webapi-bind", &conf.WebAPI.Bind)
	set("webapi-port", &conf.WebAPI.Port)
	set("log-level", &conf.Log.Level)
}
