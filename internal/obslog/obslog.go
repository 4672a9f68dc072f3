// Package obslog wraps go.uber.org/zap for circuitbus's own diagnostic
// logging: listener panics, message bus dispatch, and config reload
// failures. It is deliberately small — one
// constructor for production use, one no-op for callers who never
// configure a logger — following the same "logger is optional, defaults
// to silence" posture sneha4175-gateway-pro's services take toward
// their own *zap.SugaredLogger fields.
package obslog

import "go.uber.org/zap"

// Logger is the narrow surface circuitbus needs from a structured
// logger. *zap.SugaredLogger satisfies it directly.
type Logger interface {
	Warnw(msg string, keysAndValues ...any)
	Errorw(msg string, keysAndValues ...any)
	Infow(msg string, keysAndValues ...any)
}

// New builds a production zap logger (JSON encoding, info level) and
// returns its SugaredLogger, matching the zap.NewProduction() call
// sneha4175-gateway-pro's cmd/gateway/main.go makes at startup.
func New() (*zap.SugaredLogger, error) {
	l, err := zap.NewProduction()
	if err != nil {
		return nil, err
	}
	return l.Sugar(), nil
}

// Must panics if New fails to construct a logger — for callers (tests,
// examples) that have no sensible fallback.
func Must() *zap.SugaredLogger {
	l, err := New()
	if err != nil {
		panic(err)
	}
	return l
}

type nop struct{}

func (nop) Warnw(string, ...any)  {}
func (nop) Errorw(string, ...any) {}
func (nop) Infow(string, ...any)  {}

// Nop returns a Logger that discards everything. It is the default
// breakerconfig.WatchAndReload uses when given a nil logger, so that circuitbus never
// forces a logging backend on a caller who doesn't want one.
func Nop() Logger { return nop{} }
