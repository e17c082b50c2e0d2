package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/park285/chess-live/internal/bus"
	appcfg "github.com/park285/chess-live/internal/config"
	"github.com/park285/chess-live/internal/gateway"
	"github.com/park285/chess-live/internal/httpapi"
	"github.com/park285/chess-live/internal/identity"
	"github.com/park285/chess-live/internal/msgcat"
	"github.com/park285/chess-live/internal/obslog"
	"github.com/park285/chess-live/internal/record"
	"github.com/park285/chess-live/internal/session"
)

func main() {
	cfg, err := appcfg.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}
	if err := obslog.InitFromEnv(); err != nil {
		log.Fatalf("logger init error: %v", err)
	}
	defer obslog.Sync()

	b, err := bus.New(cfg.RedisURL)
	if err != nil {
		log.Fatalf("bus init error: %v", err)
	}
	defer b.Close()

	var store record.Store
	if cfg.DatabaseURL != "" {
		store, err = record.NewPostgresStore(cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("store init error: %v", err)
		}
	} else {
		// No database configured: games live only as long as the process.
		obslog.L().Warn("store_memory_fallback")
		store = record.NewMemoryStore()
	}
	defer store.Close()

	cat, err := msgcat.New(cfg.MsgOverrideDir)
	if err != nil {
		log.Fatalf("message catalog error: %v", err)
	}

	var accounts *identity.Client
	if cfg.AccountsBaseURL != "" {
		accounts = identity.NewClient(cfg.AccountsBaseURL)
	}
	resolver := identity.NewResolver(accounts, cfg.GuestAccess)

	hub := session.NewHub(store, b)
	gw := gateway.New(hub, b, resolver, cat, cfg.AllowedOrigins)
	api := httpapi.NewServer(store, b, gw)

	server := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           api.Router(),
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		obslog.L().Info("http_listening", zap.String("addr", cfg.HTTPAddr))
		errCh <- server.ListenAndServe()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		obslog.L().Info("shutdown_signal", zap.String("signal", sig.String()))
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		obslog.L().Error("shutdown_error", zap.Error(err))
	}
}
