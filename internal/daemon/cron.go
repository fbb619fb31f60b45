package daemon

import (
	"log/slog"

	"github.com/robfig/cron/v3"

	"jobsieve/internal/logging"
)

// cronLogger adapts slog to the cron.Logger interface. Cron's info chatter
// goes to debug.
type cronLogger struct {
	logger *slog.Logger
}

var _ cron.Logger = cronLogger{}

func newCronLogger(logger *slog.Logger) cronLogger {
	return cronLogger{logger: logging.NewComponentLogger(logger, "cron")}
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Debug(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	args := append([]any{logging.Error(err)}, keysAndValues...)
	l.logger.Error(msg, args...)
}
