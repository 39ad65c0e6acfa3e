package chatlog

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Sink receives flushed entry batches. Implementations are selected at
// stream creation time.
type Sink interface {
	Append(ctx context.Context, batch []Entry) error
	Close() error
}

// ConsoleSink writes entries line by line to a writer, normally stdout.
type ConsoleSink struct {
	mu sync.Mutex
	w  io.Writer
}

// NewConsoleSink creates a console sink. A nil writer defaults to stdout.
func NewConsoleSink(w io.Writer) *ConsoleSink {
	if w == nil {
		w = os.Stdout
	}
	return &ConsoleSink{w: w}
}

// Append writes one line per entry.
func (s *ConsoleSink) Append(_ context.Context, batch []Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range batch {
		if _, err := fmt.Fprintln(s.w, e.Line()); err != nil {
			return err
		}
	}
	return nil
}

// Close is a no-op; the sink does not own its writer.
func (s *ConsoleSink) Close() error { return nil }

// FileSink appends entries to a per-stream dated log file owned by the sink.
type FileSink struct {
	mu   sync.Mutex
	file *os.File
}

// NewFileSink opens (creating if needed) dir/YYYYMMDD_<streamID>.log for
// appending.
func NewFileSink(dir, streamID string) (*FileSink, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create chat log dir: %w", err)
	}
	name := fmt.Sprintf("%s_%s.log", time.Now().Format("20060102"), streamID)
	f, err := os.OpenFile(filepath.Join(dir, name), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open chat log file: %w", err)
	}
	return &FileSink{file: f}, nil
}

// Append writes one line per entry.
func (s *FileSink) Append(_ context.Context, batch []Entry) error {
	var b strings.Builder
	for _, e := range batch {
		b.WriteString(e.Line())
		b.WriteByte('\n')
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.file.WriteString(b.String())
	return err
}

// Close closes the owned file handle.
func (s *FileSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.file.Close()
}

// RedisSink pushes rendered lines onto a per-stream Redis list so external
// tooling can tail chat activity. The client is shared and not closed here.
type RedisSink struct {
	client *redis.Client
	key    string
}

// NewRedisSink creates a sink writing to chatlog:<streamID>.
func NewRedisSink(client *redis.Client, streamID string) *RedisSink {
	return &RedisSink{client: client, key: "chatlog:" + streamID}
}

// Append pushes the whole batch in one pipeline round trip.
func (s *RedisSink) Append(ctx context.Context, batch []Entry) error {
	pipe := s.client.Pipeline()
	for _, e := range batch {
		pipe.RPush(ctx, s.key, e.Line())
	}
	_, err := pipe.Exec(ctx)
	return err
}

// Close is a no-op; the Redis client is owned by the process.
func (s *RedisSink) Close() error { return nil }
