package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/orris-inc/autopay/internal/interfaces/cli/migrate"
	"github.com/orris-inc/autopay/internal/interfaces/cli/server"
	"github.com/orris-inc/autopay/internal/interfaces/cli/worker"
	"github.com/orris-inc/autopay/internal/shared/version"
)

//	@title						autopay API
//	@version					1.0
//	@description				Subscription auto-renewal: subscriptions, trials, promotions, provider webhooks and operator endpoints.
//	@BasePath					/
//	@securityDefinitions.apikey	AdminToken
//	@in							header
//	@name						X-Admin-Token
func main() {
	rootCmd := &cobra.Command{
		Use:     "autopay",
		Short:   "autopay - subscription auto-renewal service",
		Long:    `autopay charges saved payment methods for due subscriptions, handles provider webhooks and exposes the subscription and admin APIs.`,
		Version: version.String(),
	}

	rootCmd.AddCommand(
		server.NewCommand(),
		worker.NewCommand(),
		migrate.NewCommand(),
	)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
