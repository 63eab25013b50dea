// shrikectl is a CLI for a running shrike daemon.
//
// Usage:
//
//	shrikectl evaluate -f event.json
//	shrikectl history u1 --action NEVER --limit 20
//	shrikectl rules list
//	shrikectl rules add -f rules.json
//	shrikectl status
//	shrikectl stats
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	version   = "dev"
	serverURL string
	outputFmt string
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "shrikectl",
		Short: "Control a running shrike notification engine",
		Long: `shrikectl talks to the shrike daemon's HTTP API.

It evaluates events, inspects decision history and rules, and reports
engine health and aggregate stats.`,
		Version: version,
	}

	rootCmd.PersistentFlags().StringVar(&serverURL, "server", "http://localhost:8080", "Base URL of the shrike daemon")
	rootCmd.PersistentFlags().StringVarP(&outputFmt, "output", "o", "table", "Output format: table, json")

	rootCmd.AddCommand(evaluateCmd())
	rootCmd.AddCommand(historyCmd())
	rootCmd.AddCommand(rulesCmd())
	rootCmd.AddCommand(statusCmd())
	rootCmd.AddCommand(statsCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
