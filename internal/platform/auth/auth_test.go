package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"

	"github.com/aaditx/vibeanime/internal/platform/api"
)

var testSecret = []byte("resolver-admin-secret-32-bytes!!")

func makeToken(subject, role string, exp time.Time) string {
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			ExpiresAt: jwt.NewNumericDate(exp),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
		Role: role,
	}
	signed, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(testSecret)
	return signed
}

func newVerifier() JWTVerifier { return JWTVerifier{Secret: testSecret} }

func withRole(ctx context.Context, role string) context.Context {
	return context.WithValue(ctx, ctxKeyRole{}, role)
}

func decodeError(t *testing.T, rr *httptest.ResponseRecorder) api.APIError {
	t.Helper()
	var out api.ErrorResponse
	if err := json.NewDecoder(rr.Body).Decode(&out); err != nil {
		t.Fatalf("decode error body: %v", err)
	}
	return out.Error
}

// ─── JWTVerifier ─────────────────────────────────────────────────────────────

func TestJWTVerifier_ValidToken(t *testing.T) {
	claims, err := newVerifier().Parse(makeToken("viewer-1", "user", time.Now().Add(time.Hour)))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if claims.Subject != "viewer-1" || claims.Role != "user" {
		t.Fatalf("unexpected claims %+v", claims)
	}
}

func TestJWTVerifier_Rejects(t *testing.T) {
	valid := makeToken("viewer-1", "admin", time.Now().Add(time.Hour))
	parts := strings.Split(valid, ".")
	cases := map[string]struct {
		verifier JWTVerifier
		token    string
	}{
		"expired":      {newVerifier(), makeToken("viewer-1", "user", time.Now().Add(-time.Hour))},
		"wrong secret": {JWTVerifier{Secret: []byte("another-secret")}, valid},
		"malformed":    {newVerifier(), "not.a.valid.token"},
		"tampered":     {newVerifier(), parts[0] + ".dGFtcGVyZWQ." + parts[2]},
	}
	for name, tc := range cases {
		if _, err := tc.verifier.Parse(tc.token); err == nil {
			t.Errorf("%s: expected error", name)
		}
	}
}

// ─── RequireUser ─────────────────────────────────────────────────────────────

func callRequireUser(req *http.Request) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	RequireUser(newVerifier())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		uid, _ := UserIDFromContext(r.Context())
		role, _ := RoleFromContext(r.Context())
		_, _ = w.Write([]byte(uid + "/" + role))
	})).ServeHTTP(rr, req)
	return rr
}

func TestRequireUser_ValidBearer(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/admin/cache/invalidate", nil)
	req.Header.Set("Authorization", "Bearer "+makeToken("ops-1", "admin", time.Now().Add(time.Hour)))

	rr := callRequireUser(req)
	if rr.Code != http.StatusOK || rr.Body.String() != "ops-1/admin" {
		t.Fatalf("got %d %q", rr.Code, rr.Body.String())
	}
}

func TestRequireUser_Unauthorized(t *testing.T) {
	headers := map[string]string{
		"missing": "",
		"basic":   "Basic dXNlcjpwYXNz",
		"invalid": "Bearer invalid.token.here",
		"expired": "Bearer " + makeToken("ops-1", "admin", time.Now().Add(-time.Hour)),
	}
	for name, h := range headers {
		req := httptest.NewRequest(http.MethodPost, "/admin/cache/invalidate", nil)
		if h != "" {
			req.Header.Set("Authorization", h)
		}
		rr := callRequireUser(req)
		if rr.Code != http.StatusUnauthorized {
			t.Errorf("%s: expected 401, got %d", name, rr.Code)
			continue
		}
		if e := decodeError(t, rr); e.Code != "UNAUTHORIZED" {
			t.Errorf("%s: unexpected error code %q", name, e.Code)
		}
	}
}

// ─── OptionalUser ────────────────────────────────────────────────────────────

func callOptionalUser(v JWTVerifier, authz string) (int, string) {
	req := httptest.NewRequest(http.MethodGet, "/sources?episodeId=x%3Fep%3D1", nil)
	if authz != "" {
		req.Header.Set("Authorization", authz)
	}
	var uid string
	rr := httptest.NewRecorder()
	OptionalUser(v)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		uid, _ = UserIDFromContext(r.Context())
	})).ServeHTTP(rr, req)
	return rr.Code, uid
}

func TestOptionalUser(t *testing.T) {
	valid := "Bearer " + makeToken("viewer-7", "user", time.Now().Add(time.Hour))
	cases := []struct {
		name     string
		verifier JWTVerifier
		authz    string
		wantUID  string
	}{
		{"anonymous", newVerifier(), "", ""},
		{"invalid token stays anonymous", newVerifier(), "Bearer invalid.token.here", ""},
		{"valid token attributes", newVerifier(), valid, "viewer-7"},
		{"no secret skips parsing", JWTVerifier{}, valid, ""},
	}
	for _, tc := range cases {
		code, uid := callOptionalUser(tc.verifier, tc.authz)
		if code != http.StatusOK || uid != tc.wantUID {
			t.Errorf("%s: got %d uid=%q, want 200 uid=%q", tc.name, code, uid, tc.wantUID)
		}
	}
}

// ─── RequireRole ─────────────────────────────────────────────────────────────

func callRequireAdmin(ctx context.Context) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/admin/cache/invalidate", nil).WithContext(ctx)
	rr := httptest.NewRecorder()
	RequireAdmin(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusAccepted)
	})).ServeHTTP(rr, req)
	return rr
}

func TestRequireAdmin(t *testing.T) {
	for role, want := range map[string]int{
		"admin": http.StatusAccepted,
		"ADMIN": http.StatusAccepted,
		"user":  http.StatusForbidden,
	} {
		if rr := callRequireAdmin(withRole(context.Background(), role)); rr.Code != want {
			t.Errorf("role %q: expected %d, got %d", role, want, rr.Code)
		}
	}
}

func TestRequireAdmin_NoRoleIsForbiddenEnvelope(t *testing.T) {
	rr := callRequireAdmin(context.Background())
	if rr.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rr.Code)
	}
	if e := decodeError(t, rr); e.Code != "FORBIDDEN" || e.Message != "admin role required" {
		t.Fatalf("unexpected envelope %+v", e)
	}
}

func TestRequireRole_Custom(t *testing.T) {
	h := RequireRole("operator")(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {}))
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil).WithContext(withRole(context.Background(), "Operator")))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
}
