package gateway

import (
	"sync"

	"github.com/overlaychat/gateway/internal/models"
)

// Organization is one tenant: an emote set and the streams it owns. Stream
// lifetime is governed by the registry; the organization only indexes them.
type Organization struct {
	ID string

	mu      sync.RWMutex
	emotes  []models.Emote
	streams map[string]*Stream
}

func newOrganization(id string) *Organization {
	return &Organization{
		ID:      id,
		streams: make(map[string]*Stream),
	}
}

// Emotes returns a copy of the current emote list in display order.
func (o *Organization) Emotes() []models.Emote {
	o.mu.RLock()
	defer o.mu.RUnlock()
	out := make([]models.Emote, len(o.emotes))
	copy(out, o.emotes)
	return out
}

func (o *Organization) setEmotes(emotes []models.Emote) {
	o.mu.Lock()
	o.emotes = emotes
	o.mu.Unlock()
}

func (o *Organization) addStream(st *Stream) {
	o.mu.Lock()
	o.streams[st.ID] = st
	o.mu.Unlock()
}

func (o *Organization) removeStream(st *Stream) {
	o.mu.Lock()
	delete(o.streams, st.ID)
	o.mu.Unlock()
}

// Streams returns a snapshot of the organization's streams.
func (o *Organization) Streams() []*Stream {
	o.mu.RLock()
	defer o.mu.RUnlock()
	out := make([]*Stream, 0, len(o.streams))
	for _, st := range o.streams {
		out = append(out, st)
	}
	return out
}
