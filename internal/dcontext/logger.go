// Package dcontext carries a structured logger on a context.Context, in the
// same style the teacher's context-scoped logging uses: handlers derive a
// child logger with request-specific fields (such as the request path)
// rather than passing a logger as a separate parameter.
package dcontext

import (
	"context"
	"sync"

	"github.com/sirupsen/logrus"
)

var (
	defaultLogger   = logrus.StandardLogger()
	defaultLoggerMu sync.RWMutex
)

type loggerKey struct{}

// WithLogger returns a context carrying logger, overriding any logger
// already present on ctx.
func WithLogger(ctx context.Context, logger *logrus.Entry) context.Context {
	return context.WithValue(ctx, loggerKey{}, logger)
}

// WithFields returns a context whose logger (the one already on ctx, or the
// process default) has the given fields attached.
func WithFields(ctx context.Context, fields logrus.Fields) context.Context {
	return WithLogger(ctx, GetLogger(ctx).WithFields(fields))
}

// GetLogger returns the logger carried on ctx, or the process default
// logger if none was attached.
func GetLogger(ctx context.Context) *logrus.Entry {
	if logger, ok := ctx.Value(loggerKey{}).(*logrus.Entry); ok {
		return logger
	}

	defaultLoggerMu.RLock()
	defer defaultLoggerMu.RUnlock()
	return logrus.NewEntry(defaultLogger)
}

// SetDefaultLogger replaces the fallback logger used when a context has
// none attached, e.g. to install the logger whose level and formatter were
// configured at startup.
func SetDefaultLogger(logger *logrus.Logger) {
	defaultLoggerMu.Lock()
	defer defaultLoggerMu.Unlock()
	defaultLogger = logger
}
