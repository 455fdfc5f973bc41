// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/jeranaias/polychat/internal/catalog"
	"github.com/jeranaias/polychat/internal/chat"
	"github.com/jeranaias/polychat/internal/cloud"
	"github.com/jeranaias/polychat/internal/config"
	"github.com/jeranaias/polychat/internal/logger"
	"github.com/jeranaias/polychat/internal/mentor"
	"github.com/jeranaias/polychat/internal/metrics"
	"github.com/jeranaias/polychat/internal/ratelimit"
	"github.com/jeranaias/polychat/internal/reply"
	"github.com/jeranaias/polychat/internal/server"
	"github.com/jeranaias/polychat/internal/store"
)

// shutdownTimeout bounds graceful shutdown after SIGINT/SIGTERM.
const shutdownTimeout = 10 * time.Second

func newServeCmd(a *app) *cobra.Command {
	var opts struct {
		Addr    string
		Driver  string
		DSN     string
		Mentors string
		Watch   bool
		Debug   bool
	}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the polychat HTTP API",
		Long: `Run the polychat HTTP API.

The server persists users, conversations and messages in SQLite or Postgres,
routes each message to a mentor persona, and calls OpenRouter for replies.
Set OPENROUTER_API_KEY (or provider.api_key) before serving real traffic.`,
		Example: `  polychat serve
  polychat serve --addr 0.0.0.0:8787 --driver postgres --dsn postgres://localhost/polychat
  polychat serve --mentors ./mentors --watch`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := a.cfg
			if opts.Addr != "" {
				cfg.Server.Addr = opts.Addr
			}
			if opts.Driver != "" {
				cfg.Database.Driver = opts.Driver
			}
			if opts.DSN != "" {
				cfg.Database.DSN = opts.DSN
			}
			if opts.Mentors != "" {
				cfg.Mentors.Dir = opts.Mentors
			}
			if cmd.Flags().Changed("watch") {
				cfg.Mentors.Watch = opts.Watch
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			rt, err := buildRuntime(ctx, cfg, a.log, opts.Debug)
			if err != nil {
				return err
			}
			defer rt.Close()
			return rt.Run(ctx)
		},
	}

	cmd.Flags().StringVar(&opts.Addr, "addr", "", "Listen address (overrides server.addr)")
	cmd.Flags().StringVar(&opts.Driver, "driver", "", "Database driver: sqlite or postgres")
	cmd.Flags().StringVar(&opts.DSN, "dsn", "", "Database DSN")
	cmd.Flags().StringVar(&opts.Mentors, "mentors", "", "Mentor registry directory")
	cmd.Flags().BoolVar(&opts.Watch, "watch", false, "Reload the mentor registry when its files change")
	cmd.Flags().BoolVar(&opts.Debug, "debug", false, "Run gin in debug mode")
	return cmd
}

// =============================================================================
// RUNTIME
// =============================================================================

// runtime is a fully wired server and the resources it owns.
type runtime struct {
	server   *server.Server
	store    *store.Store
	registry *mentor.Registry
	watcher  *mentor.Watcher
	log      *logger.Logger
}

// buildRuntime opens the store, loads mentors, and wires the services.
func buildRuntime(ctx context.Context, cfg *config.Config, log *logger.Logger, debug bool) (*runtime, error) {
	if log == nil {
		log = logger.Nop()
	}
	st, err := store.Open(ctx, cfg.Database.Driver, cfg.Database.DSN, log)
	if err != nil {
		return nil, fmt.Errorf("open %s store: %w", cfg.Database.Driver, err)
	}
	rt := &runtime{store: st, log: log}

	rt.registry = mentor.NewRegistry()
	if cfg.Mentors.Dir != "" {
		if err := rt.registry.LoadDir(cfg.Mentors.Dir); err != nil {
			rt.Close()
			return nil, err
		}
	}
	if err := rt.applyPublished(ctx); err != nil {
		log.Warn().Err(err).Msg("failed to apply published mentor configs")
	}
	if cfg.Mentors.Dir != "" && cfg.Mentors.Watch {
		w, err := mentor.NewWatcher(rt.registry, cfg.Mentors.Dir, 0, log)
		if err != nil {
			rt.Close()
			return nil, err
		}
		// A directory reload rebuilds the registry from scratch, so the
		// published overlay has to be reapplied.
		w.OnReload = func(err error) {
			if err != nil {
				return
			}
			rctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := rt.applyPublished(rctx); err != nil {
				log.Warn().Err(err).Msg("failed to reapply published mentor configs")
			}
		}
		if err := w.Start(); err != nil {
			rt.Close()
			return nil, err
		}
		rt.watcher = w
	}

	m := metrics.New()
	provider := cloud.NewOpenRouterClient(cloud.Options{
		BaseURL: cfg.Provider.BaseURL,
		APIKey:  cfg.Provider.APIKey,
		Timeout: cfg.ProviderTimeout(),
		Referer: cfg.Provider.Referer,
		Title:   cfg.Provider.Title,
	}, log)
	if !provider.IsConfigured() {
		log.Warn().Msg("no provider API key configured; replies will fail until one is set")
	}
	generator := reply.NewGenerator(provider, rt.registry, reply.Options{
		DefaultModel: cfg.Provider.DefaultModel,
		Timeout:      cfg.ProviderTimeout(),
	}, log, m)

	svc := chat.NewService(chat.Deps{
		Store: st,
		Limiter: ratelimit.New(st, ratelimit.Config{
			Window:      cfg.RateLimitWindow(),
			MaxMessages: cfg.RateLimit.MaxMessages,
		}, log, m),
		Generator: generator,
		Mentors:   rt.registry,
		Log:       log,
		Metrics:   m,
	})

	srv, err := server.New(server.Config{
		Addr:            cfg.Server.Addr,
		ReadTimeout:     time.Duration(cfg.Server.ReadTimeoutSecs) * time.Second,
		WriteTimeout:    time.Duration(cfg.Server.WriteTimeoutSecs) * time.Second,
		CORSOrigins:     cfg.Server.CORSOrigins,
		TrustedProxies:  cfg.Server.TrustedProxies,
		IPRatePerSecond: cfg.Server.IPRatePerSecond,
		IPBurst:         cfg.Server.IPBurst,
		Admin: server.AdminConfig{
			TokenHash:  cfg.Admin.TokenHash,
			TOTPSecret: cfg.Admin.TOTPSecret,
		},
		Debug: debug,
	}, server.Deps{
		Chat:          svc,
		Catalog:       catalog.New(st, log),
		Overrides:     st,
		MentorConfigs: st,
		Mentors:       rt.registry,
		Log:           log,
		Metrics:       m,
	})
	if err != nil {
		rt.Close()
		return nil, err
	}
	if cfg.Admin.TokenHash == "" {
		log.Warn().Msg("admin token not configured; mentor config endpoints are unauthenticated")
	}
	rt.server = srv
	log.LogServerStart(cfg.Server.Addr, cfg.Database.Driver)
	return rt, nil
}

// applyPublished overlays every published mentor config on the registry.
func (rt *runtime) applyPublished(ctx context.Context) error {
	configs, err := rt.store.PublishedMentorConfigs(ctx)
	if err != nil {
		return err
	}
	var errs []error
	for _, cfg := range configs {
		if err := rt.registry.Put(cfg); err != nil {
			errs = append(errs, fmt.Errorf("mentor %s: %w", cfg.ID, err))
		}
	}
	return errors.Join(errs...)
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (rt *runtime) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() { errCh <- rt.server.Start() }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	rt.log.LogServerShutdown()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := rt.server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	select {
	case err := <-errCh:
		return err
	case <-shutdownCtx.Done():
		return shutdownCtx.Err()
	}
}

// Close releases the watcher and the store.
func (rt *runtime) Close() {
	if rt.watcher != nil {
		if err := rt.watcher.Close(); err != nil {
			rt.log.Warn().Err(err).Msg("failed to stop mentor watcher")
		}
	}
	if rt.store != nil {
		if err := rt.store.Close(); err != nil {
			rt.log.Warn().Err(err).Msg("failed to close store")
		}
	}
}
