// Package cli defines the docchat command tree.
package cli

import (
	"context"
	"fmt"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/mayhapottabi/docchat/config"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "docchat",
	Short: "Upload PDFs and chat with them",
	Long: `docchat ingests PDF documents into a vector store and answers
questions about them with a streaming language model.

Run "docchat serve" to start the HTTP API, then use "docchat tui" or
"docchat upload" against it.`,
	SilenceUsage: true,
	PersistentPreRun: func(*cobra.Command, []string) {
		// A missing .env is fine; real deployments set the environment.
		_ = godotenv.Load()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file (default ~/.docchat/config.yaml)")
}

// Execute runs the command named by os.Args.
func Execute(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}
