package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alfredjeanlab/gridpanel/internal/config"
	"github.com/alfredjeanlab/gridpanel/internal/events"
	"github.com/alfredjeanlab/gridpanel/internal/model"
	"github.com/alfredjeanlab/gridpanel/internal/server"
	"github.com/alfredjeanlab/gridpanel/internal/session"
	"github.com/alfredjeanlab/gridpanel/internal/store"
	"github.com/alfredjeanlab/gridpanel/internal/store/memory"
	"github.com/alfredjeanlab/gridpanel/internal/store/postgres"
	gridsync "github.com/alfredjeanlab/gridpanel/internal/sync"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:     "serve",
	Short:   "Start the grid HTTP and gRPC server",
	GroupID: "system",
	// Override PersistentPreRunE so we don't create a client.
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return nil },
	RunE: func(cmd *cobra.Command, args []string) error {
		logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
		slog.SetDefault(logger)

		cfg, err := config.Load()
		if err != nil {
			return err
		}
		if cmd.Flags().Changed("memory") {
			cfg.Memory, _ = cmd.Flags().GetBool("memory")
		}
		if cmd.Flags().Changed("grids") {
			cfg.GridsFile, _ = cmd.Flags().GetString("grids")
		}
		hooksMode, _ := cmd.Flags().GetString("hooks")
		switch hooksMode {
		case "inline", "bus", "off":
		default:
			return fmt.Errorf("unknown hooks mode %q (must be inline, bus or off)", hooksMode)
		}

		defs, err := config.LoadDefinitions(cfg.GridsFile)
		if err != nil {
			return err
		}

		st, err := openStore(cfg)
		if err != nil {
			return err
		}
		if seed, _ := cmd.Flags().GetString("seed"); seed != "" {
			ms, ok := st.(*memory.Store)
			if !ok {
				st.Close()
				return fmt.Errorf("--seed needs the in-memory store")
			}
			if err := seedStore(ms, defs, seed); err != nil {
				return err
			}
			logger.Info("seeded in-memory store", "file", seed)
		}

		sessions, err := openSessions(cfg)
		if err != nil {
			st.Close()
			return err
		}

		// Create event publisher.
		var publisher events.Publisher
		if cfg.NATSURL != "" {
			pub, err := events.NewNATSPublisher(cfg.NATSURL)
			if err != nil {
				sessions.Close()
				st.Close()
				return err
			}
			publisher = pub
			logger.Info("events enabled", "nats_url", cfg.NATSURL)
		} else {
			publisher = &events.NoopPublisher{}
			logger.Info("events disabled (GRIDPANEL_NATS_URL not set)")
		}
		if hooksMode == "bus" && cfg.NATSURL == "" {
			return fmt.Errorf("--hooks=bus needs GRIDPANEL_NATS_URL")
		}

		gridServer := server.NewGridServer(defs, st, sessions, publisher)
		gridServer.InlineHooks = hooksMode == "inline"
		grpcServer := server.NewGRPCServer(gridServer, cfg.AuthToken)

		lis, err := net.Listen("tcp", cfg.GRPCAddr)
		if err != nil {
			publisher.Close()
			sessions.Close()
			st.Close()
			return err
		}
		go func() {
			logger.Info("gRPC server listening", "addr", cfg.GRPCAddr)
			if err := grpcServer.Serve(lis); err != nil {
				logger.Error("gRPC server error", "err", err)
			}
		}()

		httpServer := &http.Server{
			Addr:              cfg.HTTPAddr,
			Handler:           gridServer.NewHTTPHandler(cfg.AuthToken),
			ReadHeaderTimeout: 10 * time.Second,
		}
		go func() {
			logger.Info("HTTP server listening", "addr", cfg.HTTPAddr)
			if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Error("HTTP server error", "err", err)
			}
		}()

		var scheduler *gridsync.Scheduler
		if cfg.SyncInterval > 0 {
			if dests := syncDestinations(context.Background(), cfg, logger); len(dests) > 0 {
				scheduler = gridsync.NewScheduler(st, dests, cfg.SyncInterval, logger)
				scheduler.Start()
				logger.Info("sync scheduler started", "interval", cfg.SyncInterval)
			}
		}

		var hooksCancel context.CancelFunc
		if hooksMode == "bus" {
			sub, err := events.NewNATSSubscriber(cfg.NATSURL)
			if err != nil {
				logger.Error("failed to create hooks subscriber", "err", err)
			} else {
				var hooksCtx context.Context
				hooksCtx, hooksCancel = context.WithCancel(context.Background())
				go func() {
					if err := gridServer.Hooks().StartSubscriber(hooksCtx, sub); err != nil {
						logger.Error("hooks subscriber error", "err", err)
					}
					sub.Close()
				}()
				logger.Info("hooks subscriber started")
			}
		}

		logger.Info("grid server started",
			"grids", len(defs.Grids),
			"grpc_addr", cfg.GRPCAddr,
			"http_addr", cfg.HTTPAddr,
			"hooks", hooksMode,
		)

		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigCh
		logger.Info("received signal, shutting down", "signal", sig)

		if hooksCancel != nil {
			hooksCancel()
			logger.Info("hooks subscriber stopped")
		}
		if scheduler != nil {
			scheduler.Stop()
			logger.Info("sync scheduler stopped")
		}

		grpcServer.GracefulStop()
		logger.Info("gRPC server stopped")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown error", "err", err)
		}
		logger.Info("HTTP server stopped")

		if err := publisher.Close(); err != nil {
			logger.Error("error closing publisher", "err", err)
		}
		if err := sessions.Close(); err != nil {
			logger.Error("error closing session store", "err", err)
		}
		if err := st.Close(); err != nil {
			logger.Error("error closing store", "err", err)
		}

		logger.Info("shutdown complete")
		return nil
	},
}

func init() {
	serveCmd.Flags().Bool("memory", false, "serve from the in-memory store instead of Postgres")
	serveCmd.Flags().String("grids", "", "grid definitions file (default $GRIDPANEL_GRIDS_FILE or grids.toml)")
	serveCmd.Flags().String("seed", "", "JSON file of rows per entity to load into the in-memory store")
	serveCmd.Flags().String("hooks", "inline", "where on_data_changed hooks run: inline, bus (NATS subscriber) or off")
}

// sessionCloser is a session store the server shuts down.
type sessionCloser interface {
	session.Store
	Close() error
}

func openStore(cfg *config.Config) (store.Store, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.Memory {
		return memory.New(), nil
	}
	return postgres.New(cfg.DatabaseURL)
}

// openStoreFromEnv loads the environment configuration and opens its store.
func openStoreFromEnv() (store.Store, *config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	s, err := openStore(cfg)
	if err != nil {
		return nil, nil, err
	}
	return s, cfg, nil
}

func openSessions(cfg *config.Config) (sessionCloser, error) {
	if cfg.RedisAddr != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return session.NewRedisStore(ctx, session.RedisConfig{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
			Prefix:   "gridpanel:session:",
			TTL:      cfg.SessionTTL,
		})
	}
	m := session.NewMemoryStore(cfg.SessionTTL)
	m.StartReaper(&session.ReaperConfig{})
	return m, nil
}

func syncDestinations(ctx context.Context, cfg *config.Config, logger *slog.Logger) []gridsync.Destination {
	var dests []gridsync.Destination
	if cfg.SyncS3Bucket != "" {
		s3Dest, err := gridsync.NewS3Destination(ctx, cfg.SyncS3Bucket, cfg.SyncS3Key, cfg.SyncS3Region, cfg.SyncS3Endpoint)
		if err != nil {
			logger.Error("failed to create S3 sync destination", "err", err)
		} else {
			dests = append(dests, s3Dest)
			logger.Info("sync S3 destination enabled", "bucket", cfg.SyncS3Bucket, "key", cfg.SyncS3Key)
		}
	}
	if cfg.SyncGitRepo != "" {
		dests = append(dests, gridsync.NewGitDestination(cfg.SyncGitRepo, cfg.SyncGitFile, cfg.SyncGitBranch))
		logger.Info("sync git destination enabled", "repo", cfg.SyncGitRepo, "file", cfg.SyncGitFile)
	}
	return dests
}

// seedStore loads a JSON object of entity name to row list, casting each
// value to its attribute type.
func seedStore(ms *memory.Store, defs *config.Definitions, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read seed file: %w", err)
	}
	var seed map[string][]map[string]any
	if err := json.Unmarshal(data, &seed); err != nil {
		return fmt.Errorf("parse seed file %s: %w", path, err)
	}
	for name, rows := range seed {
		e, ok := defs.Registry.Get(name)
		if !ok {
			return fmt.Errorf("seed file %s: unknown entity %q", path, name)
		}
		records := make([]model.Record, 0, len(rows))
		for i, row := range rows {
			r := model.Record{}
			for k, v := range row {
				a, ok := e.Attribute(k)
				if k == e.PK() {
					a, ok = e.PKAttribute(), true
				}
				if !ok {
					return fmt.Errorf("seed %s[%d]: unknown attribute %q", name, i, k)
				}
				cv, err := model.Cast(a, v)
				if err != nil {
					return fmt.Errorf("seed %s[%d].%s: %w", name, i, k, err)
				}
				r[k] = cv
			}
			records = append(records, r)
		}
		if err := ms.Seed(e, records...); err != nil {
			return fmt.Errorf("seed %s: %w", name, err)
		}
	}
	return nil
}
