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

	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"github.com/mmynk/schoolfees/internal/auth"
	"github.com/mmynk/schoolfees/internal/config"
	"github.com/mmynk/schoolfees/internal/middleware"
	"github.com/mmynk/schoolfees/internal/service"
	"github.com/mmynk/schoolfees/internal/storage/sqlite"
	"github.com/mmynk/schoolfees/pkg/logging"
)

func main() {
	cfg, err := config.LoadServer()
	if err != nil {
		logging.Setup()
		slog.Error("Failed to load config", "error", err)
		os.Exit(1)
	}
	logging.Configure(cfg.LogLevel, cfg.LogFormat)

	if err := run(cfg); err != nil {
		slog.Error("Server failed", "error", err)
		os.Exit(1)
	}
}

func run(cfg config.Server) error {
	// Initialize SQLite storage
	store, err := sqlite.New(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}
	defer store.Close()
	slog.Info("Storage initialized", "database", cfg.DBPath)

	jwtManager := auth.NewJWTManager(cfg.JWTSecret, cfg.TokenTTL)
	fees := service.NewFeeService(store, service.WithSchool(cfg.SchoolName, cfg.Currency))

	mux := http.NewServeMux()
	fees.Register(mux, middleware.RequireAuth(jwtManager))

	// Register Connect services
	ledgerPath, ledgerHandler := service.NewLedgerServiceHandler(
		service.NewLedgerService(fees),
		service.Interceptors(middleware.RequireAuthInterceptor(jwtManager)),
	)
	mux.Handle(ledgerPath, ledgerHandler)

	// Add logging and CORS middleware
	handler := middleware.Logging(middleware.CORS(mux))

	// Wrap with h2c for HTTP/2 without TLS (required for Connect)
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           h2c.NewHandler(handler, &http2.Server{}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		slog.Info("Fee server starting", "address", srv.Addr, "school", cfg.SchoolName)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	slog.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
