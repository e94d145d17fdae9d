package httpserver

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
)

func serveWithID(incoming string) (header, fromCtx string) {
	h := RequestIDMiddleware("")(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		fromCtx = RequestIDFromContext(r.Context())
	}))
	req := httptest.NewRequest(http.MethodGet, "/proxy", nil)
	if incoming != "" {
		req.Header.Set("X-Request-Id", incoming)
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr.Header().Get("X-Request-Id"), fromCtx
}

func TestRequestID_EchoesValidID(t *testing.T) {
	header, ctxID := serveWithID("player-7f3a.seg:12")
	if header != "player-7f3a.seg:12" || ctxID != header {
		t.Fatalf("got header=%q ctx=%q", header, ctxID)
	}
}

func TestRequestID_ReplacesMissingOrUnsafe(t *testing.T) {
	for _, in := range []string{"", "bad id\r\nX-Injected: 1", "<script>", strings.Repeat("a", maxRequestIDLen+1)} {
		header, ctxID := serveWithID(in)
		if _, err := uuid.Parse(header); err != nil {
			t.Errorf("incoming %q: expected generated uuid, got %q", in, header)
		}
		if ctxID != header {
			t.Errorf("incoming %q: context %q differs from header %q", in, ctxID, header)
		}
	}
}
