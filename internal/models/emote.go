package models

// Emote is a named overlay image scoped to one organization.
// Insertion order is display order.
type Emote struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}
