package worker

import (
	"fmt"
	"log/slog"
)

// slogAdapter routes asynq's internal logging through slog.
type slogAdapter struct {
	logger *slog.Logger
}

func newSlogAdapter(logger *slog.Logger) *slogAdapter {
	if logger == nil {
		logger = slog.Default()
	}
	return &slogAdapter{logger: logger.With("component", "asynq")}
}

func (a *slogAdapter) Debug(args ...any) { a.logger.Debug(fmt.Sprint(args...)) }
func (a *slogAdapter) Info(args ...any)  { a.logger.Info(fmt.Sprint(args...)) }
func (a *slogAdapter) Warn(args ...any)  { a.logger.Warn(fmt.Sprint(args...)) }
func (a *slogAdapter) Error(args ...any) { a.logger.Error(fmt.Sprint(args...)) }

// Fatal logs at error level and panics; asynq expects Fatal not to return.
func (a *slogAdapter) Fatal(args ...any) {
	msg := fmt.Sprint(args...)
	a.logger.Error(msg)
	panic(msg)
}
