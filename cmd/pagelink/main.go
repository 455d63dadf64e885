package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

// Version information set at build time.
var (
	version = "dev"
	commit  = "none"
)

// root flags shared by all commands.
var (
	flagServer string
	flagToken  string
	flagConfig string
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "pagelink",
		Short: "Command-line client for Pagelink hosts",
		Long: `pagelink drives a Pagelink rendering host from the command line.

It connects to a host over websocket, registers a page, and lets you
add content and watch user events without writing a program.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVar(&flagServer, "server", "", "host websocket URL")
	rootCmd.PersistentFlags().StringVar(&flagToken, "token", "", "host auth token")
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "", "path to config file (default pagelink.yml)")

	rootCmd.AddCommand(
		pageCmd(),
		versionCmd(),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
}
