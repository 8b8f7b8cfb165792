package logging

import (
	"log"
	"log/slog"
	"os"
	"strings"
)

// Setup configures process-wide structured logging and returns the root
// logger. Development environments get human-readable text output;
// everything else emits JSON for log shipping. Every line carries the
// service name and, when provided, the environment.
func Setup(service, env string) *slog.Logger {
	env = strings.TrimSpace(env)

	var handler slog.Handler
	opts := &slog.HandlerOptions{Level: slog.LevelInfo}
	if isDevelopment(env) {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	attrs := []slog.Attr{slog.String("service", strings.TrimSpace(service))}
	if env != "" {
		attrs = append(attrs, slog.String("env", env))
	}
	handler = handler.WithAttrs(attrs)

	base := slog.New(handler)
	slog.SetDefault(base)

	// Bridge the standard library logger so dependencies still using
	// log.Printf flow through the same handler.
	stdBridge := slog.NewLogLogger(handler, slog.LevelInfo)
	log.SetOutput(stdBridge.Writer())
	log.SetFlags(0)
	log.SetPrefix("")

	return base
}

// isDevelopment treats an unset environment as development so a bare
// binary stays readable on a terminal.
func isDevelopment(env string) bool {
	switch strings.ToLower(env) {
	case "", "dev", "development", "local":
		return true
	}
	return false
}
