// Package chatlog provides the per-stream append-only chat event log.
// Producers enqueue entries without blocking; a writer goroutine coalesces
// bursts and flushes batches to every configured sink.
package chatlog

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// DefaultDebounce is how long the writer waits after the first queued entry
// before flushing, so bursts land in a single batch.
const DefaultDebounce = 500 * time.Millisecond

// Kind classifies a log entry.
type Kind string

const (
	KindMessage Kind = "message"
	KindStatus  Kind = "status"
)

// Entry is one chat log record.
type Entry struct {
	Kind Kind
	Time time.Time
	Text string
}

// Line renders the entry as a single log line.
func (e Entry) Line() string {
	return fmt.Sprintf("[%s] %s | %s", e.Kind, e.Time.Format(time.RFC3339), e.Text)
}

// Logger batches entries and fans each batch out to all sinks. Log calls
// never block on sink I/O; sink failures are logged and dropped, never
// retried.
type Logger struct {
	sinks    []Sink
	debounce time.Duration
	zlog     *zap.Logger

	mu    sync.Mutex
	queue []Entry

	notify chan struct{}
	cancel context.CancelFunc
	done   chan struct{}
	once   sync.Once
}

// New creates a logger and starts its writer goroutine.
func New(sinks []Sink, debounce time.Duration, zlog *zap.Logger) *Logger {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	if zlog == nil {
		zlog = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(context.Background())
	l := &Logger{
		sinks:    sinks,
		debounce: debounce,
		zlog:     zlog,
		notify:   make(chan struct{}, 1),
		cancel:   cancel,
		done:     make(chan struct{}),
	}
	go l.run(ctx)
	return l
}

// LogMessage records a chat message attributed to user.
func (l *Logger) LogMessage(user, text string) {
	l.log(KindMessage, user+": "+text)
}

// LogStatus records a stream status change.
func (l *Logger) LogStatus(status string) {
	l.log(KindStatus, status)
}

func (l *Logger) log(kind Kind, text string) {
	e := Entry{Kind: kind, Time: time.Now(), Text: text}
	l.mu.Lock()
	l.queue = append(l.queue, e)
	l.mu.Unlock()
	select {
	case l.notify <- struct{}{}:
	default:
	}
}

// Close stops the writer, flushes anything still queued, then closes all
// sinks. Safe to call more than once.
func (l *Logger) Close() {
	l.once.Do(func() {
		l.cancel()
		<-l.done
		for _, s := range l.sinks {
			if err := s.Close(); err != nil {
				l.zlog.Warn("chat log sink close failed", zap.Error(err))
			}
		}
	})
}

func (l *Logger) run(ctx context.Context) {
	defer close(l.done)
	for {
		select {
		case <-ctx.Done():
			l.flush()
			return
		case <-l.notify:
		}
		select {
		case <-ctx.Done():
			l.flush()
			return
		case <-time.After(l.debounce):
		}
		l.flush()
	}
}

// flush swaps the queue for an empty one and appends the captured batch to
// every sink concurrently. Each sink receives the whole batch in one call.
func (l *Logger) flush() {
	l.mu.Lock()
	batch := l.queue
	l.queue = nil
	l.mu.Unlock()
	if len(batch) == 0 {
		return
	}
	var wg sync.WaitGroup
	for _, s := range l.sinks {
		wg.Add(1)
		go func(s Sink) {
			defer wg.Done()
			if err := s.Append(context.Background(), batch); err != nil {
				l.zlog.Warn("chat log sink append failed", zap.Error(err))
			}
		}(s)
	}
	wg.Wait()
}
