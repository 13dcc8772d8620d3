package cli

import (
	"github.com/spf13/cobra"

	"github.com/mayhapottabi/docchat/internal/app"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API",
	Long: `Start the HTTP API on server.addr (or $PORT).

The server stops gracefully on SIGINT or SIGTERM.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	logger := app.NewLogger(cfg.Logging.Level, cfg.Logging.Format)

	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	return a.Server.ListenAndServe(ctx, cfg.Server.Addr, cfg.ShutdownTimeout())
}
