package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/aaditx/vibeanime/internal/platform/api"
	"github.com/aaditx/vibeanime/internal/platform/httpserver"
)

type invalidateRequest struct {
	Key string `json:"key"`
}

// InvalidateCache serves POST /admin/cache/invalidate. An empty key or "ALL"
// drops every cached lookup.
func InvalidateCache(inv CacheInvalidator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rid := httpserver.RequestIDFromContext(r.Context())
		var req invalidateRequest
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 4<<10)).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
			api.BadRequest(w, "INVALID_BODY", "body must be {\"key\": string}", rid, nil)
			return
		}
		key := strings.TrimSpace(req.Key)
		if key == "" {
			key = "ALL"
		}
		if err := inv.Invalidate(r.Context(), key); err != nil {
			api.Internal(w, rid)
			return
		}
		api.WriteJSON(w, http.StatusAccepted, map[string]string{"status": "accepted", "key": key})
	}
}
