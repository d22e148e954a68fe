package session

import (
	"context"
	"log/slog"

	"github.com/five82/storyboard/internal/updates"
)

// startUpdates runs the push stream in a background goroutine and closes done
// when it returns. It returns immediately.
func startUpdates(ctx context.Context, bridge *updates.Bridge, logger *slog.Logger, done chan struct{}) {
	go func() {
		defer close(done)
		if err := bridge.Run(ctx); err != nil {
			logger.Warn("update stream stopped; collection will only change on manual refresh", "error", err)
			return
		}
		logger.Debug("update stream closed")
	}()
}
