package run

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"
)

type Runner struct {
	Logger *zap.Logger
}

func New(log *zap.Logger) *Runner {
	return &Runner{Logger: log}
}

// WithSignals runs start until it returns or SIGINT/SIGTERM arrives, and
// translates the outcome into a process exit code.
func (r *Runner) WithSignals(start func(ctx context.Context) error) int {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		errCh <- start(ctx)
	}()

	var err error
	select {
	case <-ctx.Done():
		r.Logger.Info("shutdown signal received")
		// start observes ctx.Done and shuts down; wait for it to finish
		err = <-errCh
	case err = <-errCh:
	}
	if err == nil || errors.Is(err, http.ErrServerClosed) {
		return 0
	}
	r.Logger.Error("service exited with error", zap.Error(err))
	return 1
}

func Exit(code int) {
	os.Exit(code)
}
