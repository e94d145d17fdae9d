package sources

import (
	"regexp"
	"strings"

	"github.com/aaditx/vibeanime/services/streaming-resolver/internal/provider"
)

const (
	DefaultEmbedBase = "https://megaplay.buzz"
	// DefaultAltEmbedBase serves the same s-2 ids from a second host.
	DefaultAltEmbedBase = "https://vidwish.live"
)

var slugUnsafe = regexp.MustCompile(`[^a-z0-9]+`)

// EmbedURL builds the fallback player URL for an episode. It needs only the
// numeric episode id; without one it degrades to a slug of the whole id and,
// failing that, to the embed host itself.
func EmbedURL(embedBase, episodeID string, category provider.Category) string {
	base := strings.TrimRight(strings.TrimSpace(embedBase), "/")
	if base == "" {
		base = DefaultEmbedBase
	}
	lang := "sub"
	if category == provider.CategoryDub {
		lang = "dub"
	}
	if num, ok := provider.EpisodeNumericID(episodeID); ok {
		return base + "/stream/s-2/" + num + "/" + lang
	}
	if slug := Slug(episodeID); slug != "" {
		return base + "/stream/s-2/" + slug + "/" + lang
	}
	return base
}

// AltEmbedURL builds the second embed host's URL. It is empty when altBase
// is unset or the same host as primaryBase, or when the episode id carries
// no numeric id.
func AltEmbedURL(altBase, primaryBase, episodeID string, category provider.Category) string {
	alt := strings.TrimRight(strings.TrimSpace(altBase), "/")
	if alt == "" || strings.EqualFold(alt, strings.TrimRight(strings.TrimSpace(primaryBase), "/")) {
		return ""
	}
	if _, ok := provider.EpisodeNumericID(episodeID); !ok {
		return ""
	}
	return EmbedURL(alt, episodeID, category)
}

// Slug lowercases s and joins its alphanumeric runs with dashes.
func Slug(s string) string {
	return strings.Trim(slugUnsafe.ReplaceAllString(strings.ToLower(s), "-"), "-")
}
