package main

import (
	"context"
	"errors"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/zhouzirui/penpal/backend/internal/app"
	"github.com/zhouzirui/penpal/backend/internal/config"
	"github.com/zhouzirui/penpal/backend/internal/handler"
	"github.com/zhouzirui/penpal/backend/pkg/logger"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Load .env file
	if err := godotenv.Load(); err != nil {
		log.Printf("warning: failed to load .env file: %v", err)
		log.Println("continuing with system environment variables only")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	zl, err := logger.New(logger.Config{Level: cfg.Log.Level, Development: cfg.Log.Development})
	if err != nil {
		log.Fatalf("failed to build logger: %v", err)
	}
	defer zl.Sync()
	zap.ReplaceGlobals(zl)

	backend, err := app.New(ctx, cfg, zl)
	if err != nil {
		zl.Fatal("failed to initialize chat backend", zap.Error(err))
	}
	defer func() {
		if err := backend.Close(); err != nil {
			zl.Warn("failed to close dependencies", zap.Error(err))
		}
	}()

	backend.StartEventRelay(ctx)

	router := handler.NewRouter(handler.Deps{
		Chat:     backend.Chat,
		Verifier: backend.Verifier,
		Live:     backend.Hub,
		Logger:   zl,
	})

	startServer(ctx, zl, cfg.Server, router)
}

func startServer(ctx context.Context, zl *zap.Logger, serverCfg config.ServerConfig, router http.Handler) {
	addr := serverCfg.Addr
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
		// Long-lived event streams end with the process context.
		BaseContext: func(net.Listener) context.Context { return ctx },
	}

	zl.Info("penpal chat backend listening", zap.String("addr", addr))
	if err := runServer(ctx, srv); err != nil {
		zl.Error("server error", zap.Error(err))
		return
	}
	zl.Info("server stopped")
}

func runServer(ctx context.Context, srv *http.Server) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		err := <-errCh
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
