// Package protocol defines the JSON envelopes exchanged over the persistent
// channel and validates client-supplied frames field by field.
package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/overlaychat/gateway/internal/models"
)

// Frame types. Setup and text arrive from clients; text, emotes and viewers
// are sent to clients.
const (
	TypeSetup   = "setup"
	TypeText    = "text"
	TypeEmotes  = "emotes"
	TypeViewers = "viewers"
)

// ErrInvalidFrame is returned for any client frame that is not valid JSON,
// is missing its type, carries an unknown type, or fails the per-type field
// checks. Callers drop such frames silently.
var ErrInvalidFrame = errors.New("invalid frame")

// SetupFrame is the first message a client must send to establish identity.
type SetupFrame struct {
	Name  string
	Email string
}

// TextFrame is a chat message from a joined client.
type TextFrame struct {
	Text string
}

// ParseClientFrame validates a raw client frame and returns either a
// SetupFrame or a TextFrame. Validation is a presence plus primitive type
// check, nothing deeper.
func ParseClientFrame(data []byte) (any, error) {
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: bad json", ErrInvalidFrame)
	}
	typ, ok := raw["type"].(string)
	if !ok {
		return nil, fmt.Errorf("%w: missing type", ErrInvalidFrame)
	}
	switch typ {
	case TypeSetup:
		name, okName := raw["name"].(string)
		email, okEmail := raw["email"].(string)
		if !okName || !okEmail {
			return nil, fmt.Errorf("%w: setup requires name and email strings", ErrInvalidFrame)
		}
		return SetupFrame{Name: name, Email: email}, nil
	case TypeText:
		text, okText := raw["text"].(string)
		if !okText {
			return nil, fmt.Errorf("%w: text requires a text string", ErrInvalidFrame)
		}
		return TextFrame{Text: text}, nil
	default:
		return nil, fmt.Errorf("%w: unknown type %q", ErrInvalidFrame, typ)
	}
}

// TextEvent is a rendered chat message fanned out to every session.
type TextEvent struct {
	Type string `json:"type"`
	User string `json:"user"`
	Time string `json:"time"`
	Text string `json:"text"`
}

// NewTextEvent builds a text event attributed to user at the given time.
func NewTextEvent(user string, at time.Time, text string) TextEvent {
	return TextEvent{Type: TypeText, User: user, Time: at.Format(time.RFC3339), Text: text}
}

// EmotesEvent carries an organization's full emote list.
type EmotesEvent struct {
	Type   string         `json:"type"`
	Emotes []models.Emote `json:"emotes"`
}

// NewEmotesEvent builds an emotes event. The list is never null on the wire.
func NewEmotesEvent(emotes []models.Emote) EmotesEvent {
	if emotes == nil {
		emotes = []models.Emote{}
	}
	return EmotesEvent{Type: TypeEmotes, Emotes: emotes}
}

// ViewersEvent carries the current viewer count of a stream.
type ViewersEvent struct {
	Type    string `json:"type"`
	Viewers int    `json:"viewers"`
}

// NewViewersEvent builds a viewers event.
func NewViewersEvent(viewers int) ViewersEvent {
	return ViewersEvent{Type: TypeViewers, Viewers: viewers}
}
