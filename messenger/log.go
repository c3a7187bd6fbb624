package messenger

import (
	"context"
	"log/slog"
	"sync"
)

// Log is a Transport that only writes to the structured logger. It backs
// dry runs where no bot token is configured.
type Log struct {
	Logger *slog.Logger
}

func (l Log) SendLog(ctx context.Context, text string) error {
	l.logger().InfoContext(ctx, "log message", slog.String("channel", "log"), slog.String("text", text))
	return nil
}

func (l Log) SendResult(ctx context.Context, text string) error {
	l.logger().InfoContext(ctx, "result message", slog.String("channel", "result"), slog.String("text", text))
	return nil
}

func (l Log) logger() *slog.Logger {
	if l.Logger != nil {
		return l.Logger
	}
	return slog.Default()
}

// Recorder is a Transport that keeps every message in memory. A non-nil
// FailResult makes SendResult return that error without recording.
type Recorder struct {
	mu         sync.Mutex
	Logs       []string
	Results    []string
	FailResult func(text string) error
}

func (r *Recorder) SendLog(ctx context.Context, text string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Logs = append(r.Logs, text)
	return nil
}

func (r *Recorder) SendResult(ctx context.Context, text string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.FailResult != nil {
		if err := r.FailResult(text); err != nil {
			return err
		}
	}
	r.Results = append(r.Results, text)
	return nil
}

// Snapshot returns copies of the recorded messages.
func (r *Recorder) Snapshot() (logs, results []string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.Logs...), append([]string(nil), r.Results...)
}
