package handlers

import (
	"net/http"
	"strings"

	"github.com/aaditx/vibeanime/internal/platform/api"
	"github.com/aaditx/vibeanime/internal/platform/auth"
	"github.com/aaditx/vibeanime/internal/platform/httpserver"
	"github.com/aaditx/vibeanime/services/streaming-resolver/internal/provider"
	"github.com/aaditx/vibeanime/services/streaming-resolver/internal/sources"
)

// Sources serves GET /sources. Only malformed input is an error; everything
// else is a 200 carrying at least the embed URL.
func Sources(resolver SourceResolver) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rid := httpserver.RequestIDFromContext(r.Context())
		q := r.URL.Query()

		episodeID := strings.TrimSpace(q.Get("episodeId"))
		if episodeID == "" {
			api.BadRequest(w, "MISSING_PARAM", "episodeId is required", rid, nil)
			return
		}
		server, ok := provider.ParseServer(q.Get("server"))
		if !ok {
			api.BadRequest(w, "INVALID_SERVER", "server must be A or B", rid, map[string]any{"server": q.Get("server")})
			return
		}
		category, ok := provider.ParseCategory(q.Get("category"))
		if !ok {
			api.BadRequest(w, "INVALID_CATEGORY", "category must be sub, dub or raw", rid, map[string]any{"category": q.Get("category")})
			return
		}

		uid, _ := auth.UserIDFromContext(r.Context())
		res := resolver.Resolve(r.Context(), sources.Request{
			EpisodeID: episodeID,
			Server:    server,
			Category:  category,
			UserID:    uid,
		})
		w.Header().Set("Cache-Control", "no-store")
		api.WriteJSON(w, http.StatusOK, res)
	}
}
