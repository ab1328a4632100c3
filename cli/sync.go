package cli

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/duckpond-io/pondctl/syncer"
)

var (
	syncDir  string
	syncOnce bool
)

var syncCmd = &cobra.Command{
	Use:   "sync [dir]",
	Short: "Push local notebook files to the server",
	Long: `Pushes every .py file in the local directory to the server, then
keeps watching for changes until interrupted. Local deletes propagate.

The directory defaults to sync.local_dir from the config file.
Use --once to push the current state and exit.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runSync,
}

func init() {
	syncCmd.Flags().StringVar(&syncDir, "dir", "", "Local notebook directory (default from config)")
	syncCmd.Flags().BoolVar(&syncOnce, "once", false, "Push once and exit instead of watching")
}

func runSync(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := newLogger(cfg)
	client := newAPIClient(cfg, logger)

	dir := syncDir
	if len(args) == 1 {
		dir = args[0]
	}
	if dir == "" {
		dir = cfg.Sync.LocalDir
	}
	if dir == "" {
		return fmt.Errorf("no sync directory: pass one or set sync.local_dir in config")
	}

	s := syncer.New(client, dir, logger,
		syncer.WithEventCallback(func(kind, filename string) {
			fmt.Printf("%-9s %s\n", kind, filename)
		}),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if syncOnce {
		return s.SyncOnce(ctx)
	}

	fmt.Printf("Watching %s, Ctrl+C to stop\n", dir)
	if err := s.Watch(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
