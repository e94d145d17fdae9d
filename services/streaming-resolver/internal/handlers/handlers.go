// Package handlers is the resolver's HTTP surface.
package handlers

import (
	"context"
	"net/http"

	"github.com/aaditx/vibeanime/services/streaming-resolver/internal/catalog"
	"github.com/aaditx/vibeanime/services/streaming-resolver/internal/provider"
	"github.com/aaditx/vibeanime/services/streaming-resolver/internal/sources"
)

type SourceResolver interface {
	Resolve(ctx context.Context, req sources.Request) sources.Resolved
}

type CatalogLookup interface {
	Lookup(ctx context.Context, id int) (catalog.Entry, error)
}

type EpisodeResolver interface {
	ProviderID(ctx context.Context, title, formatHint string) (string, bool)
	Episodes(ctx context.Context, animeID string) ([]provider.Episode, error)
}

type CacheInvalidator interface {
	Invalidate(ctx context.Context, key string) error
}

// Preflight answers CORS preflight requests; the router middleware has
// already written the Access-Control headers.
func Preflight(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusNoContent)
}
