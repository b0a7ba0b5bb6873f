package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/cors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/rpattn/leadstream/internal/auth"
	"github.com/rpattn/leadstream/internal/db"
	"github.com/rpattn/leadstream/internal/enrichment"
	"github.com/rpattn/leadstream/internal/export"
	"github.com/rpattn/leadstream/internal/ingestion"
	"github.com/rpattn/leadstream/internal/middleware"
)

var runMigrations bool

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API and enrichment workers",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().BoolVar(&runMigrations, "migrate", false, "apply database migrations before serving")
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, logger, err := bootstrap()
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cfg, logger)
	if err != nil {
		return err
	}

	if runMigrations && a.conn != nil {
		if err := db.RunMigrations(a.conn.Pool, logger); err != nil {
			_ = a.close(context.Background())
			return err
		}
	}

	// Batches interrupted by a previous shutdown or crash are settled before new work arrives.
	if _, err := a.enrichment.RecoverStale(ctx, cfg.Enrichment.StaleAfter); err != nil {
		logger.Error("startup recovery sweep failed", zap.Error(err))
	}

	server := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      newRouter(a),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("starting HTTP server", zap.String("addr", cfg.Server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			_ = a.close(context.Background())
			return err
		}
	case <-ctx.Done():
	}
	logger.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", zap.Error(err))
	}
	if err := a.close(shutdownCtx); err != nil {
		logger.Warn("unclean shutdown", zap.Error(err))
	}
	logger.Info("server exited")
	return nil
}

func newRouter(a *app) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		if a.conn != nil {
			if err := a.conn.Ping(r.Context()); err != nil {
				middleware.WriteJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
				return
			}
		}
		middleware.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	ingestion.NewHTTPHandler(a.uploads).Register(mux)
	enrichment.NewHTTPHandler(a.enrichment).Register(mux)
	export.NewHTTPHandler(a.exports, a.uploads).Register(mux)

	corsHandler := cors.New(cors.Options{
		AllowedOrigins:   a.cfg.Server.AllowedOrigins,
		AllowCredentials: true,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"*"},
		ExposedHeaders:   []string{"Content-Disposition", middleware.RequestIDHeader},
	})

	var h http.Handler = mux
	h = middleware.DataLoaderMiddleware(a.store.Persons())(h)
	h = auth.Middleware(auth.Config{Secret: a.cfg.Auth.JWTSecret, Issuer: a.cfg.Auth.Issuer}, a.logger.Named("auth"))(h)
	h = middleware.Recoverer(a.logger)(h)
	h = middleware.LoggingMiddleware(a.logger.Named("http"))(h)
	return corsHandler.Handler(h)
}
