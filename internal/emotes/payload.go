package emotes

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/overlaychat/gateway/internal/models"
)

// ErrMalformedPayload marks a replace body that is neither a valid emote
// list nor a known default-set directive.
var ErrMalformedPayload = errors.New("malformed emotes payload")

// ParseReplacePayload interprets the body of an emote replace request:
// either an explicit JSON list of {name,url} objects, or a
// {"default_set":"bttv"} directive selecting the built-in list. Every field
// must be present and a string.
func ParseReplacePayload(body []byte) ([]models.Emote, error) {
	var rawList []map[string]any
	if err := json.Unmarshal(body, &rawList); err == nil {
		out := make([]models.Emote, 0, len(rawList))
		for _, o := range rawList {
			name, okName := o["name"].(string)
			url, okURL := o["url"].(string)
			if !okName || !okURL {
				return nil, fmt.Errorf("%w: entries require name and url strings", ErrMalformedPayload)
			}
			out = append(out, models.Emote{Name: name, URL: url})
		}
		return out, nil
	}

	var directive struct {
		DefaultSet *string `json:"default_set"`
	}
	if err := json.Unmarshal(body, &directive); err != nil || directive.DefaultSet == nil {
		return nil, fmt.Errorf("%w: expected emote list or default_set directive", ErrMalformedPayload)
	}
	if *directive.DefaultSet != "bttv" {
		return nil, fmt.Errorf("%w: unknown default set %q", ErrMalformedPayload, *directive.DefaultSet)
	}
	return DefaultBTTV(), nil
}
