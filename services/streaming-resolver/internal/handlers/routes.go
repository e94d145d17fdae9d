package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/aaditx/vibeanime/internal/platform/auth"
)

type Deps struct {
	Sources     SourceResolver
	Catalog     CatalogLookup
	Episodes    EpisodeResolver
	Invalidator CacheInvalidator
	Verifier    auth.JWTVerifier
	Log         *zap.Logger
}

// Mount registers the resolver routes on r. The admin route exists only
// when both an invalidator and a JWT secret are configured.
func Mount(r chi.Router, d Deps) {
	r.With(auth.OptionalUser(d.Verifier)).Get("/sources", Sources(d.Sources))
	r.Get("/episodes", Episodes(d.Catalog, d.Episodes, d.Log))
	r.MethodFunc(http.MethodOptions, "/sources", Preflight)
	r.MethodFunc(http.MethodOptions, "/episodes", Preflight)

	if d.Invalidator != nil && len(d.Verifier.Secret) > 0 {
		r.With(auth.RequireUser(d.Verifier), auth.RequireAdmin).
			Post("/admin/cache/invalidate", InvalidateCache(d.Invalidator))
	}
}
