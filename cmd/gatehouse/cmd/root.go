package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

// Version is set at build time via -ldflags.
var Version = "dev"

var rootCmd = &cobra.Command{
	Use:   "gatehouse",
	Short: "Gatehouse is a session security and abuse detection service",
	Long: `Gatehouse guards an API with JWT-backed sessions: device fingerprinting,
risk scoring, sliding-window rate limiting with escalating bans, and a
security event monitor with correlation and alerting.`,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
