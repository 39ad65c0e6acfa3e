package gateway

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/overlaychat/gateway/internal/protocol"
)

const (
	// pingInterval and pongWait drive the keepalive; writeWait bounds a
	// single frame write.
	pingInterval = 30 * time.Second
	pongWait     = 60 * time.Second
	writeWait    = 10 * time.Second

	maxFrameSize  = 65536
	sendQueueSize = 256
)

// Session is one live connection to a stream. It is a member (and counts as
// a viewer) from admission, but cannot chat until a valid setup frame
// establishes its identity.
type Session struct {
	ID     string
	stream *Stream
	conn   *websocket.Conn
	send   chan []byte
	zlog   *zap.Logger

	mu     sync.RWMutex
	name   string
	email  string
	joined bool
}

func newSession(id string, conn *websocket.Conn, stream *Stream, zlog *zap.Logger) *Session {
	return &Session{
		ID:     id,
		stream: stream,
		conn:   conn,
		send:   make(chan []byte, sendQueueSize),
		zlog:   zlog,
	}
}

// identity returns the display name and whether setup has completed.
func (s *Session) identity() (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.name, s.joined
}

// setIdentity promotes the session to joined. Returns false if a setup
// frame was already processed; identity transitions exactly once.
func (s *Session) setIdentity(name, email string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.joined {
		return false
	}
	s.name = name
	s.email = email
	s.joined = true
	return true
}

// enqueue queues a pre-encoded frame for delivery. Never blocks; a full
// queue drops the frame for this session only.
func (s *Session) enqueue(data []byte) {
	select {
	case s.send <- data:
	default:
		s.zlog.Debug("send queue full, dropping frame",
			zap.String("session_id", s.ID),
			zap.String("stream_id", s.stream.ID))
	}
}

// sendEvent encodes and queues a server frame.
func (s *Session) sendEvent(event any) {
	data, err := json.Marshal(event)
	if err != nil {
		s.zlog.Error("encode frame", zap.Error(err))
		return
	}
	s.enqueue(data)
}

// closeConn force-closes the underlying connection, which unwinds both
// pumps and runs the normal disconnect path.
func (s *Session) closeConn() {
	_ = s.conn.Close()
}

// readPump is the session's inbound loop and state machine. Invalid frames
// are dropped silently in every state. Returns when the connection closes
// for any reason; cleanup (membership removal, disconnect signal, "left"
// status entry) always runs.
func (s *Session) readPump() {
	defer func() {
		s.stream.removeSession(s)
		if name, joined := s.identity(); joined {
			s.stream.LogStatus(name + " left the chat")
		}
		_ = s.conn.Close()
		s.zlog.Info("connection closed",
			zap.String("session_id", s.ID),
			zap.String("stream_id", s.stream.ID))
	}()

	s.conn.SetReadLimit(maxFrameSize)
	_ = s.conn.SetReadDeadline(time.Now().Add(pongWait))
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			return
		}
		_ = s.conn.SetReadDeadline(time.Now().Add(pongWait))

		frame, err := protocol.ParseClientFrame(data)
		if err != nil {
			continue
		}
		switch f := frame.(type) {
		case protocol.SetupFrame:
			if !s.setIdentity(f.Name, f.Email) {
				continue
			}
			s.stream.LogStatus(f.Name + " joined the chat")
		case protocol.TextFrame:
			name, joined := s.identity()
			if !joined {
				continue
			}
			s.stream.LogMessage(name, f.Text)
			s.stream.BroadcastEvent(protocol.NewTextEvent(name, time.Now(), f.Text))
		}
	}
}

// writePump drains the send queue and keeps the connection alive with
// pings. Returns on the first write failure; readPump notices the closed
// connection and runs cleanup.
func (s *Session) writePump() {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		_ = s.conn.Close()
	}()

	for {
		select {
		case data := <-s.send:
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
