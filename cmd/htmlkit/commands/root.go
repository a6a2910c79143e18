package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"htmlkit/lib/telemetry"

	"github.com/spf13/cobra"
)

var (
	verbose    *bool
	configPath *string
	noJs       *bool
	useCache   *bool
	waitJs     *int
)

var (
	config Config
	tel    *telemetry.Telemetry
)

func init() {
	flags := rootCmd.PersistentFlags()
	verbose = flags.BoolP("verbose", "v", false, "Enables debug logging and HTTP dumps.")
	configPath = flags.String("config", "htmlkit.json5", "The config file to read, a .local variant is merged over it.")
	noJs = flags.Bool("no-js", false, "Fetches pages with plain HTTP instead of a headless browser.")
	useCache = flags.Bool("cache", false, "Serves pages from the page cache when they are fresh.")
	waitJs = flags.Int("wait-js", 0, "Waits up to this many seconds for background scripts after loading.")
}

var rootCmd = &cobra.Command{
	Use:   "htmlkit",
	Short: "htmlkit fetches pages and runs element lookups against them.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		telemetry.InitSlog(*verbose)

		var err error
		config, err = LoadConfig(*configPath)
		if err != nil {
			return fmt.Errorf("read config: %w", err)
		}

		t, err := telemetry.SetupFromEnv(cmd.Context(), "htmlkit")
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		if err != nil {
			slog.Warn("failed to setup telemetry", "err", err)
			return nil
		}
		tel = &t
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if tel == nil {
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), time.Second*5)
		defer cancel()
		err := tel.Shutdown(ctx)
		if err != nil {
			slog.Warn("failed to flush telemetry", "err", err)
		}
	},
}

func ExecuteContext(ctx context.Context) {
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
