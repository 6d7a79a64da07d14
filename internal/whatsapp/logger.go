// ABOUTME: Bridges whatsmeow's printf-style logger onto log/slog
// ABOUTME: Sub-loggers become a "module" attribute

package whatsapp

import (
	"context"
	"fmt"
	"log/slog"

	waLog "go.mau.fi/whatsmeow/util/log"
)

type slogLogger struct {
	logger *slog.Logger
}

// newLogger adapts logger for whatsmeow.
func newLogger(logger *slog.Logger) waLog.Logger {
	return slogLogger{logger: logger}
}

func (l slogLogger) log(level slog.Level, msg string, args []any) {
	if !l.logger.Enabled(context.Background(), level) {
		return
	}
	l.logger.Log(context.Background(), level, fmt.Sprintf(msg, args...))
}

func (l slogLogger) Errorf(msg string, args ...any) { l.log(slog.LevelError, msg, args) }
func (l slogLogger) Warnf(msg string, args ...any)  { l.log(slog.LevelWarn, msg, args) }
func (l slogLogger) Infof(msg string, args ...any)  { l.log(slog.LevelInfo, msg, args) }
func (l slogLogger) Debugf(msg string, args ...any) { l.log(slog.LevelDebug, msg, args) }

func (l slogLogger) Sub(module string) waLog.Logger {
	return slogLogger{logger: l.logger.With("module", module)}
}
