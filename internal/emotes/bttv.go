package emotes

import "github.com/overlaychat/gateway/internal/models"

// bttvDefaults is the built-in emote set selected by {"default_set":"bttv"}.
var bttvDefaults = []models.Emote{
	{Name: "FeelsGoodMan", URL: "https://cdn.betterttv.net/emote/566c9fc265dbbdab32ec053b/3x"},
	{Name: "FeelsBadMan", URL: "https://cdn.betterttv.net/emote/566c9fde65dbbdab32ec053e/3x"},
	{Name: "monkaS", URL: "https://cdn.betterttv.net/emote/56e9f494fff3cc5c35e5287e/3x"},
	{Name: "SourPls", URL: "https://cdn.betterttv.net/emote/566ca38765dbbdab32ec0560/3x"},
	{Name: "LuL", URL: "https://cdn.betterttv.net/emote/567b5b520e984428652809b6/3x"},
	{Name: "PogU", URL: "https://cdn.betterttv.net/emote/5e2bee6acbdbdf5d37403a80/3x"},
	{Name: "catJAM", URL: "https://cdn.betterttv.net/emote/5f1b0186cf6d2144653d2970/3x"},
	{Name: "pepeD", URL: "https://cdn.betterttv.net/emote/5b1740221c5a6065a7bad4b5/3x"},
	{Name: "blobDance", URL: "https://cdn.betterttv.net/emote/5ada077451d4120ea3918426/3x"},
	{Name: "HYPERS", URL: "https://cdn.betterttv.net/emote/5980af4e3a1ac5330e89dc76/3x"},
}

// DefaultBTTV returns a copy of the built-in BTTV emote set.
func DefaultBTTV() []models.Emote {
	out := make([]models.Emote, len(bttvDefaults))
	copy(out, bttvDefaults)
	return out
}
