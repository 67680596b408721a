package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/cryptoguard/cryptoguard/client"
	"github.com/cryptoguard/cryptoguard/internal/present/nativemsg"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Run as the browser's native-messaging host",
	Long: "Reads tab events from stdin using the browser native-messaging framing and " +
		"answers each with the badge for the tab's domain.",
	RunE: func(cmd *cobra.Command, args []string) error {
		// stdout carries the protocol
		setupLogger(os.Stderr)

		server := viper.GetString("server")
		if server == "" {
			return fmt.Errorf("--server or CRYPTOGUARD_SERVER is required")
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		host := nativemsg.NewHost(client.New(server), os.Stdin, os.Stdout)
		return host.Serve(ctx)
	},
}

func init() {
	watchCmd.Flags().String("server", "", "base url of the cryptoguard node")
	_ = viper.BindPFlag("server", watchCmd.Flags().Lookup("server"))
}
