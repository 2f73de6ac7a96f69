package tui

import (
	"squeeze/internal/logger"
	"squeeze/internal/processor"
)

// Start runs the UI in its own goroutine. The returned channel is closed
// once run has returned and updates has been closed. If the UI exits early,
// remaining updates are discarded so the batch never blocks on a full
// channel.
func Start(run func() error, updates <-chan processor.ProgressUpdate) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := run(); err != nil {
			logger.Error("Terminal UI stopped", "error", err)
		}
		for range updates {
		}
	}()
	return done
}
