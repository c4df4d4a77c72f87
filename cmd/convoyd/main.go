// Command convoyd is the conversational platform's server process: it
// wires every domain package into an HTTP surface, a set of channel
// adapters, and a cron-poll scheduler, then serves until interrupted.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/soulisrael/ai-comm-platform-sub001/internal/appconfig"
	"github.com/soulisrael/ai-comm-platform-sub001/internal/obslog"
)

var (
	v       = viper.New()
	cfgFile string
)

var rootCmd = &cobra.Command{
	Use:   "convoyd",
	Short: "convoyd runs the multi-channel conversational platform",
	Long:  "convoyd serves inbound channel webhooks, drives the conversation engine and automation flows, and exposes the operator HTTP API.",
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
		os.Exit(1)
	},
}

func loadConfig() (appconfig.Config, error) {
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName("convoyd")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.convoyd")
	}
	return appconfig.Load(v)
}

func main() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "path to a convoyd config file (yaml)")
	rootCmd.PersistentFlags().String("log-level", "info", "log level: panic, fatal, error, warn, info, debug, trace")
	if err := appconfig.BindFlags(rootCmd, v); err != nil {
		fmt.Fprintln(os.Stderr, "binding flags:", err)
		os.Exit(1)
	}
	v.SetDefault("log_level", "info")
	if err := v.BindPFlag("log_level", rootCmd.PersistentFlags().Lookup("log-level")); err != nil {
		fmt.Fprintln(os.Stderr, "binding flags:", err)
		os.Exit(1)
	}

	cobra.OnInitialize(func() {
		if lvl, err := logrus.ParseLevel(v.GetString("log_level")); err == nil {
			obslog.SetLevel(lvl)
		}
	})

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(reloadKnowledgeCmd)
	rootCmd.AddCommand(replayBroadcastCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func mustLoadConfig(ctx context.Context) appconfig.Config {
	cfg, err := loadConfig()
	if err != nil {
		obslog.ErrorCF("convoyd", "loading config", map[string]interface{}{"error": err.Error()})
		os.Exit(1)
	}
	return cfg
}
