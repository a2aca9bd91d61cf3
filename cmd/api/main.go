package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
)

func main() {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM, syscall.SIGINT)

	cfg := loadConfig()
	logger := newLogger(os.Stdout, cfg.log.level, cfg.log.format)

	startCtx, cancel := context.WithTimeout(context.Background(), time.Minute)
	app, err := bootstrap(startCtx, cfg, logger)
	cancel()
	if err != nil {
		logger.Error("startup failed", "error", err)
		os.Exit(1)
	}
	defer app.close()

	server := &http.Server{
		Addr:         ":" + cfg.port,
		Handler:      app.routes(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	serverErrors := make(chan error, 1)

	go func() {
		logger.Info("server listening",
			"addr", server.Addr, "env", cfg.env, "store", cfg.storeDriver,
			"read_timeout", server.ReadTimeout, "write_timeout", server.WriteTimeout, "idle_timeout", server.IdleTimeout)
		serverErrors <- server.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", "error", err)
			app.close()
			os.Exit(1)
		}

	case sig := <-quit:
		logger.Info("shutdown signal received", "signal", sig.String(), "timeout", cfg.shutdownTimeout)

		ctx, cancel := context.WithTimeout(context.Background(), cfg.shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(ctx); err != nil {
			logger.Error("graceful shutdown failed", "error", err)
			server.Close()
		}
		logger.Info("server stopped")
	}
}
