// Package cli implements the pondctl command tree and the interactive
// admin TUI.
package cli

import (
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	_ "github.com/joho/godotenv/autoload"
	"github.com/spf13/cobra"

	"github.com/duckpond-io/pondctl/api"
	"github.com/duckpond-io/pondctl/config"
)

var (
	flagConfig string
	flagServer string
	flagAPIKey string
)

var rootCmd = &cobra.Command{
	Use:   "pondctl",
	Short: "Admin client for a duckpond deployment",
	Long: `pondctl manages duckpond notebooks and their compute sessions.

Run 'pondctl admin' for the interactive dashboard, or use the one-shot
subcommands (status, sync, query, mcp) for scripting.`,
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "", "Path to config file (default ~/.config/pondctl/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&flagServer, "server", "", "Server base URL (overrides config)")
	rootCmd.PersistentFlags().StringVar(&flagAPIKey, "api-key", "", "API key (overrides config and DUCKPOND_API_KEY)")

	rootCmd.AddCommand(adminCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(syncCmd)
	rootCmd.AddCommand(queryCmd)
	rootCmd.AddCommand(mcpCmd)
}

// loadConfig merges the config file with flag overrides.
func loadConfig() (*config.Config, error) {
	path := flagConfig
	if path == "" {
		path = config.DefaultPath()
	}
	cfg := config.Default()
	if err := loadConfigFile(path, cfg); err != nil {
		return nil, err
	}
	if flagServer != "" {
		cfg.Server.BaseURL = flagServer
	}
	if flagAPIKey != "" {
		cfg.Server.APIKey = flagAPIKey
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func loadConfigFile(path string, cfg *config.Config) error {
	if err := config.Load(path, cfg); err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	return nil
}

func newLogger(cfg *config.Config) *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.Log.Level}))
}

func newAPIClient(cfg *config.Config, logger *slog.Logger, opts ...api.Option) *api.Client {
	base := []api.Option{
		api.WithAPIKey(cfg.Server.APIKey),
		api.WithLogger(logger),
		api.WithHTTPClient(&http.Client{Timeout: 30 * time.Second}),
	}
	return api.New(cfg.Server.BaseURL, append(base, opts...)...)
}
