package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/five82/storyboard/internal/authority"
)

// startDemo serves a seeded authority on a loopback port and returns its URL.
func startDemo(ctx context.Context, logger *slog.Logger) (string, func(), error) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return "", nil, fmt.Errorf("listen for demo server: %w", err)
	}

	srv := authority.New(logger.With("component", "authority"))
	srv.SeedDemo()
	httpSrv := &http.Server{
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := httpSrv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("demo server stopped", "error", err)
		}
	}()

	stop := func() {
		srv.Close()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
		defer cancel()
		_ = httpSrv.Shutdown(shutdownCtx)
	}
	return "http://" + ln.Addr().String(), stop, nil
}
