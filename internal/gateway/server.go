// Package gateway implements the session gateway: the tenant registry, the
// admin route table, connection admission and the per-stream broadcast and
// lifecycle machinery.
package gateway

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/overlaychat/gateway/internal/chatlog"
	"github.com/overlaychat/gateway/internal/emotes"
	"github.com/overlaychat/gateway/internal/models"
	"github.com/overlaychat/gateway/internal/protocol"
	"github.com/overlaychat/gateway/internal/router"
)

// EmoteStore is the persistence boundary for organization emote sets.
// Fetch failures degrade to an empty list; Replace and Purge failures
// surface to the admin caller.
type EmoteStore interface {
	Fetch(ctx context.Context, orgID string) ([]models.Emote, error)
	Replace(ctx context.Context, orgID string, list []models.Emote) ([]models.Emote, error)
	Purge(ctx context.Context, orgID string) error
}

// Options configures gateway behavior. Zero values select defaults.
type Options struct {
	// ViewerInterval is the heartbeat broadcast period.
	ViewerInterval time.Duration
	// LogDebounce is the chat log batching window.
	LogDebounce time.Duration
	// ChatLogDir enables the per-stream file sink when non-empty.
	ChatLogDir string
	// Redis enables the per-stream Redis chat log sink when non-nil.
	Redis *redis.Client
}

// Server is the registry of live organizations and streams and the owner of
// the admin surface and connection admission.
type Server struct {
	mu      sync.RWMutex
	orgs    map[string]*Organization
	streams map[string]*Stream

	store  EmoteStore
	opts   Options
	logger *zap.Logger
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // overlay clients connect from arbitrary origins
	},
}

// New creates a gateway server.
func New(store EmoteStore, opts Options, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		orgs:    make(map[string]*Organization),
		streams: make(map[string]*Stream),
		store:   store,
		opts:    opts,
		logger:  logger,
	}
}

// Routes builds the admin route table. The GET /stream/{stream_id} entry has
// no handler: it is the upgrade target and dispatches to admission. Returns
// an error only on a misconfigured pattern.
func (s *Server) Routes() (*router.Table, error) {
	t := router.New(s.admit)
	entries := []struct {
		method  string
		pattern string
		handler router.HandlerFunc
	}{
		{http.MethodPost, "/org/{org_id}", s.handleOrgSetup},
		{http.MethodDelete, "/org/{org_id}", s.handleOrgTeardown},
		{http.MethodPut, "/org/{org_id}/emotes", s.handleUpdateEmotes},
		{http.MethodGet, "/org/{org_id}/emotes", s.handleListEmotes},
		{http.MethodPut, "/org/{org_id}/streams/{stream_id}", s.handleStreamSetup},
		{http.MethodGet, "/stream/{stream_id}", nil},
		{http.MethodDelete, "/stream/{stream_id}", s.handleStreamTeardown},
		{router.Wildcard, router.Wildcard, s.handleUnknown},
	}
	for _, e := range entries {
		if err := t.Handle(e.method, e.pattern, e.handler); err != nil {
			return nil, err
		}
	}
	return t, nil
}

// createOrg returns the organization with the given id, creating it first
// if needed. A freshly created organization loads its persisted emotes,
// degrading to an empty set on store failure.
func (s *Server) createOrg(ctx context.Context, id string) (*Organization, bool) {
	s.mu.Lock()
	if org, ok := s.orgs[id]; ok {
		s.mu.Unlock()
		return org, false
	}
	org := newOrganization(id)
	s.orgs[id] = org
	s.mu.Unlock()

	s.logger.Info("setting up org", zap.String("org_id", id))
	list, err := s.store.Fetch(ctx, id)
	if err != nil {
		s.logger.Warn("load persisted emotes", zap.String("org_id", id), zap.Error(err))
		list = nil
	}
	org.setEmotes(list)
	return org, true
}

// POST /org/{org_id}
func (s *Server) handleOrgSetup(r *http.Request, p router.Params) router.Response {
	if _, created := s.createOrg(r.Context(), p["org_id"]); !created {
		return router.Response{Status: http.StatusNotModified}
	}
	return router.Response{Status: http.StatusCreated}
}

// DELETE /org/{org_id}
func (s *Server) handleOrgTeardown(r *http.Request, p router.Params) router.Response {
	orgID := p["org_id"]
	s.mu.Lock()
	org, ok := s.orgs[orgID]
	if !ok {
		s.mu.Unlock()
		return router.Response{Status: http.StatusNotFound}
	}
	delete(s.orgs, orgID)
	owned := org.Streams()
	for _, st := range owned {
		delete(s.streams, st.ID)
	}
	s.mu.Unlock()

	s.logger.Info("tearing down org", zap.String("org_id", orgID))
	for _, st := range owned {
		org.removeStream(st)
		st.close()
	}
	if err := s.store.Purge(r.Context(), orgID); err != nil {
		s.logger.Error("purge emotes", zap.String("org_id", orgID), zap.Error(err))
		return router.Response{Status: http.StatusInternalServerError}
	}
	return router.Response{Status: http.StatusOK}
}

// PUT /org/{org_id}/emotes
func (s *Server) handleUpdateEmotes(r *http.Request, p router.Params) router.Response {
	orgID := p["org_id"]
	s.mu.RLock()
	org, ok := s.orgs[orgID]
	s.mu.RUnlock()
	if !ok {
		return router.Response{Status: http.StatusNotFound}
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		return router.Response{Status: http.StatusBadRequest}
	}
	list, err := emotes.ParseReplacePayload(body)
	if err != nil {
		s.logger.Warn("bad emotes payload", zap.String("org_id", orgID), zap.Error(err))
		return router.Response{Status: http.StatusBadRequest}
	}
	if len(list) == 0 {
		return router.Response{Status: http.StatusNoContent}
	}

	stored, err := s.store.Replace(r.Context(), orgID, list)
	if err != nil {
		s.logger.Error("replace emotes", zap.String("org_id", orgID), zap.Error(err))
		return router.Response{Status: http.StatusInternalServerError}
	}
	org.setEmotes(stored)

	event := protocol.NewEmotesEvent(stored)
	for _, st := range org.Streams() {
		st.BroadcastEvent(event)
	}
	return router.Response{Status: http.StatusOK}
}

// GET /org/{org_id}/emotes
func (s *Server) handleListEmotes(_ *http.Request, p router.Params) router.Response {
	s.mu.RLock()
	org, ok := s.orgs[p["org_id"]]
	s.mu.RUnlock()
	if !ok {
		return router.Response{Status: http.StatusNotFound}
	}
	body, err := json.Marshal(org.Emotes())
	if err != nil {
		return router.Response{Status: http.StatusInternalServerError}
	}
	h := make(http.Header)
	h.Set("Content-Type", "application/json")
	return router.Response{Status: http.StatusOK, Header: h, Body: body}
}

// PUT /org/{org_id}/streams/{stream_id}
func (s *Server) handleStreamSetup(r *http.Request, p router.Params) router.Response {
	org, _ := s.createOrg(r.Context(), p["org_id"])
	streamID := p["stream_id"]

	s.mu.Lock()
	if _, ok := s.streams[streamID]; ok {
		s.mu.Unlock()
		return router.Response{Status: http.StatusNotModified}
	}
	st := newStream(streamID, org, s.newChatLog(streamID), s.opts.ViewerInterval, s.logger)
	s.streams[streamID] = st
	s.mu.Unlock()

	s.logger.Info("setting up stream", zap.String("org_id", org.ID), zap.String("stream_id", streamID))
	org.addStream(st)
	st.start(s.finalizeStream)
	return router.Response{Status: http.StatusCreated}
}

// DELETE /stream/{stream_id}
func (s *Server) handleStreamTeardown(_ *http.Request, p router.Params) router.Response {
	streamID := p["stream_id"]
	s.mu.RLock()
	st, ok := s.streams[streamID]
	s.mu.RUnlock()
	if !ok {
		return router.Response{Status: http.StatusNotFound}
	}
	s.logger.Info("stream marked for teardown", zap.String("stream_id", streamID))
	st.markDeleted()
	return router.Response{Status: http.StatusOK}
}

// Terminal wildcard route.
func (s *Server) handleUnknown(_ *http.Request, _ router.Params) router.Response {
	return router.Response{Status: http.StatusNotFound}
}

// admit gates and runs one persistent connection. An unknown stream is
// refused with a 404 before any upgrade happens; otherwise the connection
// is upgraded, the session registered, and the inbound loop runs until the
// peer disconnects.
func (s *Server) admit(w http.ResponseWriter, r *http.Request, p router.Params) {
	streamID := p["stream_id"]
	s.mu.RLock()
	st, ok := s.streams[streamID]
	s.mu.RUnlock()
	if !ok {
		s.logger.Info("connection refused, unknown stream", zap.String("stream_id", streamID))
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.WriteHeader(http.StatusNotFound)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", zap.String("stream_id", streamID), zap.Error(err))
		return
	}

	sess := newSession(uuid.New().String(), conn, st, s.logger)
	s.logger.Info("connection opened",
		zap.String("session_id", sess.ID),
		zap.String("stream_id", streamID))

	// Members receive broadcasts from admission onward, before identity
	// setup completes.
	st.addSession(sess)
	sess.sendEvent(protocol.NewViewersEvent(st.Count()))
	sess.sendEvent(protocol.NewEmotesEvent(st.Org.Emotes()))

	go sess.writePump()
	sess.readPump()
}

// newChatLog assembles the sink set for one stream: console always, file
// and Redis when configured.
func (s *Server) newChatLog(streamID string) *chatlog.Logger {
	sinks := []chatlog.Sink{chatlog.NewConsoleSink(os.Stdout)}
	if s.opts.ChatLogDir != "" {
		fs, err := chatlog.NewFileSink(s.opts.ChatLogDir, streamID)
		if err != nil {
			s.logger.Warn("file sink disabled", zap.String("stream_id", streamID), zap.Error(err))
		} else {
			sinks = append(sinks, fs)
		}
	}
	if s.opts.Redis != nil {
		sinks = append(sinks, chatlog.NewRedisSink(s.opts.Redis, streamID))
	}
	return chatlog.New(sinks, s.opts.LogDebounce, s.logger)
}

// finalizeStream removes a drained stream from the registry and its
// organization and closes it. Called by the reaper task.
func (s *Server) finalizeStream(st *Stream) {
	s.mu.Lock()
	delete(s.streams, st.ID)
	s.mu.Unlock()
	st.Org.removeStream(st)
	st.close()
}

// Shutdown closes every live stream: background tasks stop, chat logs
// flush and close, member connections are force-closed.
func (s *Server) Shutdown() {
	s.mu.Lock()
	streams := make([]*Stream, 0, len(s.streams))
	for _, st := range s.streams {
		streams = append(streams, st)
	}
	s.streams = make(map[string]*Stream)
	s.orgs = make(map[string]*Organization)
	s.mu.Unlock()

	for _, st := range streams {
		st.Org.removeStream(st)
		st.close()
	}
	s.logger.Info("gateway shut down", zap.Int("streams_closed", len(streams)))
}
