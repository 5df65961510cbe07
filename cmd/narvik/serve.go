package main

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/narvik-app/narvik/internal/config"
	"github.com/narvik-app/narvik/pkg/api"
	"github.com/narvik-app/narvik/pkg/files"
	"github.com/narvik-app/narvik/pkg/guard"
	"github.com/narvik-app/narvik/pkg/navigate"
	"github.com/narvik-app/narvik/pkg/persist"
	"github.com/narvik-app/narvik/pkg/presence"
	"github.com/narvik-app/narvik/pkg/session"
)

func serveCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the session gateway",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(configPath)
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", config.ConfigFileName, "path to narvik.json")
	return cmd
}

func runServe(configPath string) error {
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	store, err := buildStore(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	client := api.NewClient(cfg.API.BaseURL, api.WithLogger(logger))

	sess := session.New(
		session.WithTokenTransport(client),
		session.WithProfileTransport(client),
		session.WithStore(store, "self"),
		session.WithNavigator(navigate.Func(func(path string, opts ...navigate.Option) {
			logger.Info("navigation requested", "path", path)
		})),
		session.WithLogger(logger),
	)
	client.SetTokenSource(sess)

	sess.SetFileFetcher(files.NewHTTPFetcher(files.WithAuthorizer(sess)))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if restored, err := sess.Restore(ctx); err != nil {
		logger.Warn("session restore failed", "error", err)
	} else if restored {
		logger.Info("session restored from persisted state")
	}

	g, err := guard.New(sess, guard.WithLogger(logger))
	if err != nil {
		return err
	}

	if cfg.Presence.URL != "" {
		feed := presence.NewFeed(cfg.Presence.URL, sess, presence.WithLogger(logger))
		go func() {
			if err := feed.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Warn("presence feed stopped", "error", err)
			}
		}()
	}

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Group(func(r chi.Router) {
		r.Use(g.Middleware())
		r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			json.NewEncoder(w).Encode(map[string]any{
				"session": sess.Snapshot(),
			})
		})
	})

	srv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logger.Info("gateway listening", "addr", cfg.Addr(), "api", cfg.API.BaseURL)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// buildStore selects the persistence backend: Redis when configured, memory
// otherwise.
func buildStore(cfg *config.Config) (persist.Store, error) {
	if cfg.Redis.Addr == "" {
		return persist.NewMemoryStore(), nil
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	return persist.NewRedisStore(client), nil
}
