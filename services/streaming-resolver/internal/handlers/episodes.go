package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/aaditx/vibeanime/internal/platform/api"
	"github.com/aaditx/vibeanime/internal/platform/httpserver"
	"github.com/aaditx/vibeanime/services/streaming-resolver/internal/provider"
)

type episodesResponse struct {
	Episodes        []provider.Episode `json:"episodes"`
	ProviderAnimeID *string            `json:"providerAnimeId"`
	Title           string             `json:"title,omitempty"`
	EpisodeCount    int                `json:"episodeCount,omitempty"`
}

// Episodes serves GET /episodes?id=<catalogId>. Catalog and provider
// failures produce an empty listing, not an error.
func Episodes(cat CatalogLookup, eps EpisodeResolver, log *zap.Logger) http.HandlerFunc {
	if log == nil {
		log = zap.NewNop()
	}
	return func(w http.ResponseWriter, r *http.Request) {
		rid := httpserver.RequestIDFromContext(r.Context())
		raw := strings.TrimSpace(r.URL.Query().Get("id"))
		id, err := strconv.Atoi(raw)
		if err != nil || id <= 0 {
			api.BadRequest(w, "INVALID_ID", "id must be a positive catalog id", rid, map[string]any{"id": raw})
			return
		}

		out := episodesResponse{Episodes: []provider.Episode{}}
		entry, err := cat.Lookup(r.Context(), id)
		if err != nil {
			log.Info("catalog lookup failed", zap.Int("id", id), zap.Error(err), zap.String("request_id", rid))
			api.WriteJSON(w, http.StatusOK, out)
			return
		}
		out.Title, out.EpisodeCount = entry.Title, entry.EpisodeCount

		animeID, ok := eps.ProviderID(r.Context(), entry.Title, entry.Format)
		if !ok {
			api.WriteJSON(w, http.StatusOK, out)
			return
		}
		list, err := eps.Episodes(r.Context(), animeID)
		if err != nil {
			log.Info("episode listing failed", zap.String("provider_anime_id", animeID), zap.Error(err), zap.String("request_id", rid))
			api.WriteJSON(w, http.StatusOK, out)
			return
		}
		out.Episodes = list
		out.ProviderAnimeID = &animeID
		api.WriteJSON(w, http.StatusOK, out)
	}
}
