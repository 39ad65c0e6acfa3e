package gateway

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/overlaychat/gateway/internal/chatlog"
	"github.com/overlaychat/gateway/internal/protocol"
)

// DefaultViewerInterval is how often the heartbeat task broadcasts the
// viewer count while a stream has an audience.
const DefaultViewerInterval = 5 * time.Second

// Stream is one chat room inside an organization: its member sessions, the
// deferred-delete flag, its chat log and its two background tasks.
type Stream struct {
	ID  string
	Org *Organization

	// connected fires when a session joins, disconnected when one leaves.
	connected    *signal
	disconnected *signal

	log      *chatlog.Logger
	zlog     *zap.Logger
	interval time.Duration

	mu       sync.RWMutex
	sessions map[*Session]struct{}
	deleted  bool

	cancel context.CancelFunc
	once   sync.Once
}

func newStream(id string, org *Organization, log *chatlog.Logger, interval time.Duration, zlog *zap.Logger) *Stream {
	if interval <= 0 {
		interval = DefaultViewerInterval
	}
	return &Stream{
		ID:           id,
		Org:          org,
		connected:    newSignal(),
		disconnected: newSignal(),
		log:          log,
		zlog:         zlog,
		interval:     interval,
		sessions:     make(map[*Session]struct{}),
	}
}

// start launches the heartbeat and reaper tasks. onDrained is invoked by
// the reaper exactly once when a deleted stream's membership empties.
func (st *Stream) start(onDrained func(*Stream)) {
	ctx, cancel := context.WithCancel(context.Background())
	st.cancel = cancel
	go st.runHeartbeat(ctx)
	go st.runReaper(ctx, onDrained)
}

// runHeartbeat broadcasts the viewer count at a fixed interval, suspending
// while the stream has no audience.
func (st *Stream) runHeartbeat(ctx context.Context) {
	st.zlog.Debug("heartbeat task started", zap.String("stream_id", st.ID))
	for {
		if st.Count() == 0 {
			if !st.connected.Wait(ctx) {
				return
			}
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(st.interval):
		}
		st.BroadcastEvent(protocol.NewViewersEvent(st.Count()))
	}
}

// runReaper finalizes the stream once it is both marked deleted and empty.
// Closing is triggered by whichever disconnect empties the room after the
// delete mark was set.
func (st *Stream) runReaper(ctx context.Context, onDrained func(*Stream)) {
	st.zlog.Debug("reaper task started", zap.String("stream_id", st.ID))
	for {
		if !st.disconnected.Wait(ctx) {
			return
		}
		st.mu.RLock()
		drained := len(st.sessions) == 0 && st.deleted
		st.mu.RUnlock()
		if drained {
			st.zlog.Info("stream drained, closing", zap.String("stream_id", st.ID))
			onDrained(st)
			return
		}
	}
}

// addSession registers a member and fires the connected signal.
func (st *Stream) addSession(sess *Session) {
	st.mu.Lock()
	st.sessions[sess] = struct{}{}
	st.mu.Unlock()
	st.connected.Set()
}

// removeSession deregisters a member and fires the disconnected signal.
// Safe to call for a session that was already removed.
func (st *Stream) removeSession(sess *Session) {
	st.mu.Lock()
	delete(st.sessions, sess)
	st.mu.Unlock()
	st.disconnected.Set()
}

// Count returns the current number of member sessions.
func (st *Stream) Count() int {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return len(st.sessions)
}

// markDeleted flags the stream for deferred teardown. One-way.
func (st *Stream) markDeleted() {
	st.mu.Lock()
	st.deleted = true
	st.mu.Unlock()
}

// Broadcast fans a pre-encoded frame out to every current member. Slow or
// closing members are skipped, never block the caller.
func (st *Stream) Broadcast(data []byte) {
	st.mu.RLock()
	members := make([]*Session, 0, len(st.sessions))
	for sess := range st.sessions {
		members = append(members, sess)
	}
	st.mu.RUnlock()
	for _, sess := range members {
		sess.enqueue(data)
	}
}

// BroadcastEvent encodes a server frame and fans it out.
func (st *Stream) BroadcastEvent(event any) {
	data, err := json.Marshal(event)
	if err != nil {
		st.zlog.Error("encode broadcast frame", zap.Error(err))
		return
	}
	st.Broadcast(data)
}

// LogStatus appends a status entry to the stream's chat log.
func (st *Stream) LogStatus(status string) {
	st.log.LogStatus(status)
}

// LogMessage appends a chat message entry attributed to user.
func (st *Stream) LogMessage(user, text string) {
	st.log.LogMessage(user, text)
}

// close cancels the background tasks, closes the chat log and force-closes
// any lingering member connections. Idempotent; detaching from the
// organization and registry is the server's job.
func (st *Stream) close() {
	st.once.Do(func() {
		if st.cancel != nil {
			st.cancel()
		}
		st.log.Close()
		st.mu.RLock()
		members := make([]*Session, 0, len(st.sessions))
		for sess := range st.sessions {
			members = append(members, sess)
		}
		st.mu.RUnlock()
		for _, sess := range members {
			sess.closeConn()
		}
		st.zlog.Info("stream closed", zap.String("stream_id", st.ID))
	})
}
