package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
)

// interruptExitCode is the conventional status for a process ended by SIGINT.
const interruptExitCode = 130

// interruptContext returns a context canceled by the first SIGINT/SIGTERM.
// A second signal calls exit. Canceling abandons the command's request, but
// a session renewal under way runs detached and still reaches the store.
// stop releases the signal handler.
func interruptContext(parent context.Context, logger *slog.Logger, exit func(code int)) (ctx context.Context, stop func()) {
	ctx, cancel := context.WithCancel(parent)
	done := make(chan struct{})

	sigCh := make(chan os.Signal, 2)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		defer signal.Stop(sigCh)

		var sig os.Signal

		select {
		case sig = <-sigCh:
		case <-done:
			return
		}

		logger.Info("interrupted, abandoning request", slog.String("signal", sig.String()))
		cancel()

		select {
		case sig = <-sigCh:
			logger.Warn("interrupted again, exiting", slog.String("signal", sig.String()))
			exit(interruptExitCode)
		case <-done:
		}
	}()

	return ctx, sync.OnceFunc(func() {
		close(done)
		cancel()
	})
}
