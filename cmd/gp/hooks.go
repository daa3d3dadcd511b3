package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alfredjeanlab/gridpanel/internal/client"
	"github.com/alfredjeanlab/gridpanel/internal/config"
	"github.com/alfredjeanlab/gridpanel/internal/events"
	"github.com/alfredjeanlab/gridpanel/internal/grid"
	"github.com/alfredjeanlab/gridpanel/internal/hooks"
	"github.com/alfredjeanlab/gridpanel/internal/model"
	"github.com/spf13/cobra"
)

var hooksCmd = &cobra.Command{
	Use:     "hooks",
	Short:   "Run on_data_changed hooks for data-changed events from NATS",
	Long:    "Runs the on_data_changed commands of each grid whenever a server publishes a data-changed event.\nStart the servers with --hooks=off (or bus) so commands do not run twice.",
	GroupID: "events",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

		cfg, err := config.Load()
		if err != nil {
			return err
		}
		if cmd.Flags().Changed("grids") {
			cfg.GridsFile, _ = cmd.Flags().GetString("grids")
		}
		if cfg.NATSURL == "" {
			return fmt.Errorf("GRIDPANEL_NATS_URL is required")
		}
		defs, err := config.LoadDefinitions(cfg.GridsFile)
		if err != nil {
			return err
		}

		sub, err := events.NewNATSSubscriber(cfg.NATSURL)
		if err != nil {
			return fmt.Errorf("connecting to NATS: %w", err)
		}
		defer sub.Close()

		h := hooks.NewHandler(remoteHookSource(defs, httpClient), logger)
		h.Timeout, _ = cmd.Flags().GetDuration("timeout")
		h.Dir, _ = cmd.Flags().GetString("dir")

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		logger.Info("hooks runner started", "nats_url", cfg.NATSURL, "grids", len(defs.Grids))
		return h.StartSubscriber(ctx, sub)
	},
}

func init() {
	hooksCmd.Flags().String("grids", "", "grid definitions file (default $GRIDPANEL_GRIDS_FILE or grids.toml)")
	hooksCmd.Flags().Duration("timeout", hooks.DefaultTimeout, "per-command timeout")
	hooksCmd.Flags().String("dir", "", "working directory of the commands")
}

// remoteHookSource resolves the hooks of a grid from its definition and the
// settings override persisted on the server.
func remoteHookSource(defs *config.Definitions, c *client.HTTPClient) hooks.Source {
	return func(ctx context.Context, id string) ([]string, error) {
		def, ok := defs.Grids[id]
		if !ok {
			return nil, fmt.Errorf("%w %q", grid.ErrUnknownGrid, id)
		}
		var persisted config.Layer
		ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()
		saved, err := c.GetConfig(ctx, model.ConfigKey(id, grid.SettingsName))
		var apiErr *client.APIError
		switch {
		case errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound:
		case err != nil:
			return nil, err
		default:
			if persisted, err = config.ParseLayer(saved.Value); err != nil {
				return nil, err
			}
		}
		st, err := config.ResolveSettings(model.DefaultGridSettings(), def.Instance, persisted)
		if err != nil {
			return nil, err
		}
		return st.OnDataChanged, nil
	}
}
