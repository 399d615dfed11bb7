package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "drover",
	Short: "drover - command lifecycle coordinator",
	Long:  `drover coordinates typed commands between a coordinator and worker agents, guaranteeing each command is reported exactly once and never silently lost.`,
	// No RunE - defaults to showing help when no subcommand is provided
}

var (
	apiAddr string
)

func init() {
	rootCmd.PersistentFlags().StringVar(&apiAddr, "api", "http://127.0.0.1:7533", "Coordinator API address")

	// Add subcommands
	rootCmd.AddCommand(coordinatorCmd)
	rootCmd.AddCommand(agentCmd)
	rootCmd.AddCommand(commandCmd)
	rootCmd.AddCommand(tuiCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
