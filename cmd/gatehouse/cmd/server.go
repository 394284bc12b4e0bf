package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/spf13/cobra"

	"gatehouse/api"
	"gatehouse/auth"
	"gatehouse/internal/config"
	"gatehouse/monitor"
	"gatehouse/ratelimit"
	"gatehouse/session"
	"gatehouse/token"
)

// sweepInterval is how often background maintenance runs: expired sessions,
// drained rate-limit entries, stale correlation state, old revocations.
const sweepInterval = 5 * time.Minute

// revocationRetention keeps revocation entries well past the longest token
// TTL so a revoked refresh token can never outlive its tombstone.
const revocationRetention = 14 * 24 * time.Hour

var (
	listenAddr string
	dataDir    string
	usersFile  string
)

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Start the session security service",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		if listenAddr != "" {
			cfg.ListenAddr = listenAddr
		}
		if dataDir != "" {
			cfg.DataDir = dataDir
		}

		logger := slog.New(slog.NewJSONHandler(os.Stderr, nil))
		slog.SetDefault(logger)

		secret, err := token.NewSecret([]byte(cfg.SigningSecret))
		if err != nil {
			return fmt.Errorf("signing secret rejected: %w", err)
		}
		defer secret.Destroy()

		codec := token.NewCodec(secret, cfg.Issuer, cfg.Audience,
			token.WithTTLs(cfg.AccessTokenTTL(), cfg.RefreshTokenTTL()))
		revocations := token.NewRevocations()

		var monOpts []monitor.Option
		if cfg.AlertWebhookURL != "" {
			sink := monitor.NewWebhookSink(cfg.AlertWebhookURL, cfg.AlertWebhookAuthHeader)
			defer sink.Close()
			monOpts = append(monOpts, monitor.WithSink(monitor.ActionWebhook, sink))
		}
		mon := monitor.New(logger, monOpts...)

		var store session.Store
		if cfg.DataDir != "" {
			if err := os.MkdirAll(cfg.DataDir, 0o700); err != nil {
				return fmt.Errorf("creating data directory: %w", err)
			}
			bolt, err := session.NewBoltStoreFromFile(filepath.Join(cfg.DataDir, "sessions.db"), nil)
			if err != nil {
				return fmt.Errorf("opening session store: %w", err)
			}
			defer bolt.Close()
			store = bolt
		} else {
			store = session.NewMemoryStore()
		}

		registry := session.NewRegistry(store, codec, revocations, mon, logger,
			session.WithMaxPerUser(cfg.MaxSessionsPerUser),
			session.WithLifetimes(cfg.MaxInactivity(), cfg.MaxDuration()))
		limiter := ratelimit.New(nil)

		if usersFile == "" {
			return errors.New("--users-file is required")
		}
		authenticator, err := auth.LoadFile(usersFile)
		if err != nil {
			return err
		}

		proxies, err := api.ParseTrustedProxies(cfg.TrustedProxyList())
		if err != nil {
			return fmt.Errorf("parsing trusted proxies: %w", err)
		}

		a := api.New(registry, codec, revocations, limiter, mon, authenticator,
			api.WithLogger(logger),
			api.WithTrustedProxies(proxies))

		r := chi.NewRouter()
		r.Use(chimiddleware.Recoverer)
		r.Mount("/", a.Router())

		server := &http.Server{
			Addr:              cfg.ListenAddr,
			Handler:           r,
			ReadHeaderTimeout: 10 * time.Second,
			ReadTimeout:       15 * time.Second,
			WriteTimeout:      30 * time.Second,
			IdleTimeout:       60 * time.Second,
		}

		// Background maintenance.
		stopSweep := make(chan struct{})
		go func() {
			ticker := time.NewTicker(sweepInterval)
			defer ticker.Stop()
			for {
				select {
				case <-stopSweep:
					return
				case <-ticker.C:
					destroyed := registry.Sweep()
					limiter.Sweep()
					mon.Sweep()
					revocations.Sweep(revocationRetention)
					if destroyed > 0 {
						logger.Info("session sweep", "destroyed", destroyed)
					}
				}
			}
		}()
		defer close(stopSweep)

		done := make(chan error, 1)
		go func() {
			var err error
			if cfg.TLSCertFile != "" {
				err = server.ListenAndServeTLS(cfg.TLSCertFile, cfg.TLSKeyFile)
			} else {
				err = server.ListenAndServe()
			}
			if err != nil && !errors.Is(err, http.ErrServerClosed) {
				done <- fmt.Errorf("server failed: %w", err)
				return
			}
			done <- nil
		}()

		logger.Info("gatehouse listening",
			"addr", cfg.ListenAddr,
			"version", Version,
			"tls", cfg.TLSCertFile != "",
			"persistent_sessions", cfg.DataDir != "",
		)

		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

		select {
		case sig := <-quit:
			logger.Info("shutting down", "signal", sig.String())
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := server.Shutdown(ctx); err != nil {
				return fmt.Errorf("server shutdown failed: %w", err)
			}
			return nil
		case err := <-done:
			return err
		}
	},
}

func init() {
	rootCmd.AddCommand(serverCmd)
	serverCmd.Flags().StringVar(&listenAddr, "listen", "", "Listen address (overrides GATEHOUSE_LISTEN_ADDR)")
	serverCmd.Flags().StringVar(&dataDir, "data-dir", "", "Directory for persistent session data (overrides GATEHOUSE_DATA_DIR)")
	serverCmd.Flags().StringVar(&usersFile, "users-file", "", "Path to the JSON users file")
}
