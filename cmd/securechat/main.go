package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	version = "dev"

	flagConfig   string
	flagAPIBase  string
	flagLogLevel string
)

var rootCmd = &cobra.Command{
	Use:   "securechat",
	Short: "Terminal client for the SecureChat collaboration backend",
	Long: `securechat is a terminal client for the SecureChat backend.

It keeps a live server-push connection per session, folds inbound events
into a bounded message window, derives who is around from recent activity,
and lets you send messages from a plain composer line.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "", "path to config file")
	rootCmd.PersistentFlags().StringVar(&flagAPIBase, "api", "", "API base URL (overrides config)")
	rootCmd.PersistentFlags().StringVar(&flagLogLevel, "log-level", "", "log level (overrides config)")

	rootCmd.AddCommand(chatCmd, announcementsCmd, tasksCmd, whoCmd)
}
