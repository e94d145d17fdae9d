package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/aaditx/vibeanime/services/streaming-resolver/internal/cache"
)

func newAniList(t *testing.T, status int, body string, hits *atomic.Int32) *AniList {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits != nil {
			hits.Add(1)
		}
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}
		var req struct {
			Query     string         `json:"query"`
			Variables map[string]int `json:"variables"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if !strings.Contains(req.Query, "Media(id: $id") || req.Variables["id"] != 21 {
			t.Errorf("unexpected request %+v", req)
		}
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return New(srv.URL, time.Second)
}

func TestLookup_PrefersEnglishTitle(t *testing.T) {
	a := newAniList(t, 200, `{"data":{"Media":{"title":{"english":"ONE PIECE","romaji":"ONE PIECE","native":"ワンピース"},"format":"TV","episodes":null}}}`, nil)

	e, err := a.Lookup(context.Background(), 21)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if e.Title != "ONE PIECE" || e.Format != "TV" || e.EpisodeCount != 0 {
		t.Fatalf("unexpected entry %+v", e)
	}
}

func TestLookup_FallsBackToRomajiThenNative(t *testing.T) {
	a := newAniList(t, 200, `{"data":{"Media":{"title":{"english":null,"romaji":"Sousou no Frieren","native":"葬送のフリーレン"},"format":"TV","episodes":28}}}`, nil)
	e, err := a.Lookup(context.Background(), 21)
	if err != nil || e.Title != "Sousou no Frieren" || e.EpisodeCount != 28 {
		t.Fatalf("unexpected entry %+v err=%v", e, err)
	}

	a = newAniList(t, 200, `{"data":{"Media":{"title":{"english":" ","romaji":"","native":"葬送のフリーレン"},"format":"TV","episodes":28}}}`, nil)
	e, err = a.Lookup(context.Background(), 21)
	if err != nil || e.Title != "葬送のフリーレン" {
		t.Fatalf("unexpected entry %+v err=%v", e, err)
	}
}

func TestLookup_NotFound(t *testing.T) {
	a := newAniList(t, 404, `{"data":{"Media":null},"errors":[{"message":"Not Found.","status":404}]}`, nil)
	if _, err := a.Lookup(context.Background(), 21); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestLookup_ErrorFormat(t *testing.T) {
	a := newAniList(t, 500, strings.Repeat("x", 400), nil)
	_, err := a.Lookup(context.Background(), 21)
	if err == nil || !strings.HasPrefix(err.Error(), "anilist: status 500 body=") {
		t.Fatalf("unexpected error %v", err)
	}
	if strings.Count(err.Error(), "x") != 200 {
		t.Fatalf("body should be truncated to 200 bytes: %v", err)
	}
}

func TestLookup_Cached(t *testing.T) {
	var hits atomic.Int32
	a := newAniList(t, 200, `{"data":{"Media":{"title":{"english":"Dandadan"},"format":"TV","episodes":12}}}`, &hits)
	WithCache(cache.NewMemoryCache(8, time.Hour), time.Hour)(a)

	for i := 0; i < 3; i++ {
		if e, err := a.Lookup(context.Background(), 21); err != nil || e.Title != "Dandadan" {
			t.Fatalf("unexpected entry %+v err=%v", e, err)
		}
	}
	if hits.Load() != 1 {
		t.Fatalf("expected one upstream call, got %d", hits.Load())
	}
}
