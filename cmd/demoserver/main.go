package main

import (
	"context"
	"flag"
	stdlog "log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/vovakirdan/securechat-client/internal/demoserver"
	"github.com/vovakirdan/securechat-client/internal/log"
)

func main() {
	addr := flag.String("addr", ":8080", "HTTP listen address")
	level := flag.String("log-level", "info", "log level (debug, info, warn, error)")
	keepAlive := flag.Duration("keep-alive", 15*time.Second, "SSE keep-alive interval")
	flag.Parse()

	logger := log.New(*level, os.Stderr)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv := &http.Server{
		Addr:              *addr,
		Handler:           demoserver.New(logger, *keepAlive).Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	logger.Info().Str("addr", *addr).Msg("demo chat backend listening")

	select {
	case err := <-errCh:
		if err != nil {
			stdlog.Fatalf("server exited with error: %v", err)
		}
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Warn().Err(err).Msg("shutdown")
		}
		<-errCh
	}
	logger.Info().Msg("server stopped")
}
