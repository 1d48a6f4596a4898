package pupmigrate

import (
	"context"
	"fmt"
	"io"
	"log"
	"log/slog"
	"strings"
)

// Reporter receives per-step progress from an orchestration run. It replaces
// any process-wide output state: callers choose console, silent, or
// structured reporting and pass it in explicitly.
type Reporter interface {
	// Info reports normal progress. kv are alternating key/value pairs.
	Info(ctx context.Context, msg string, kv ...any)

	// Warn reports a condition the run tolerated, such as a compatible but
	// newer database version.
	Warn(ctx context.Context, msg string, kv ...any)

	// Error reports a failure. The run also surfaces the error to its caller.
	Error(ctx context.Context, msg string, kv ...any)
}

// ConsoleReporter writes human-readable progress lines to a writer.
type ConsoleReporter struct {
	logger *log.Logger
}

// NewConsoleReporter creates a ConsoleReporter writing to w.
func NewConsoleReporter(w io.Writer) *ConsoleReporter {
	return &ConsoleReporter{logger: log.New(w, "", log.LstdFlags)}
}

func (r *ConsoleReporter) Info(_ context.Context, msg string, kv ...any) {
	r.logger.Print(formatLine(msg, kv))
}

func (r *ConsoleReporter) Warn(_ context.Context, msg string, kv ...any) {
	r.logger.Print("WARNING: " + formatLine(msg, kv))
}

func (r *ConsoleReporter) Error(_ context.Context, msg string, kv ...any) {
	r.logger.Print("ERROR: " + formatLine(msg, kv))
}

func formatLine(msg string, kv []any) string {
	if len(kv) == 0 {
		return msg
	}
	var b strings.Builder
	b.WriteString(msg)
	for i := 0; i+1 < len(kv); i += 2 {
		fmt.Fprintf(&b, " %v=%v", kv[i], kv[i+1])
	}
	if len(kv)%2 != 0 {
		fmt.Fprintf(&b, " %v", kv[len(kv)-1])
	}
	return b.String()
}

// SilentReporter discards all progress. Used for quiet mode.
type SilentReporter struct{}

func (SilentReporter) Info(context.Context, string, ...any)  {}
func (SilentReporter) Warn(context.Context, string, ...any)  {}
func (SilentReporter) Error(context.Context, string, ...any) {}

// SlogReporter emits structured log records through an *slog.Logger.
type SlogReporter struct {
	logger *slog.Logger
}

// NewSlogReporter creates a SlogReporter backed by logger.
func NewSlogReporter(logger *slog.Logger) *SlogReporter {
	return &SlogReporter{logger: logger}
}

func (r *SlogReporter) Info(ctx context.Context, msg string, kv ...any) {
	r.logger.InfoContext(ctx, msg, kv...)
}

func (r *SlogReporter) Warn(ctx context.Context, msg string, kv ...any) {
	r.logger.WarnContext(ctx, msg, kv...)
}

func (r *SlogReporter) Error(ctx context.Context, msg string, kv ...any) {
	r.logger.ErrorContext(ctx, msg, kv...)
}
