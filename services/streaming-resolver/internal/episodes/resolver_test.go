package episodes

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/aaditx/vibeanime/services/streaming-resolver/internal/cache"
	"github.com/aaditx/vibeanime/services/streaming-resolver/internal/provider"
)

type fakeBackend struct {
	name      string
	results   []provider.SearchResult
	searchErr error
	episodes  []provider.Episode
	epErr     error

	searches atomic.Int32
	lists    atomic.Int32
	gate     chan struct{}
}

func (f *fakeBackend) Name() string { return f.name }

func (f *fakeBackend) Search(_ context.Context, _ string) ([]provider.SearchResult, error) {
	f.searches.Add(1)
	if f.gate != nil {
		<-f.gate
	}
	return f.results, f.searchErr
}

func (f *fakeBackend) Episodes(_ context.Context, _ string) ([]provider.Episode, error) {
	f.lists.Add(1)
	return f.episodes, f.epErr
}

func (f *fakeBackend) Sources(context.Context, string, provider.Server, provider.Category) (*provider.Payload, error) {
	return nil, provider.ErrNotFound
}

// ─── Match ───────────────────────────────────────────────────────────────────

func TestMatch(t *testing.T) {
	results := []provider.SearchResult{
		{ID: "one-piece-film-red-18236", Name: "One Piece Film: Red", Format: provider.FormatMovie},
		{ID: "one-piece-100", Name: "One Piece", Format: provider.FormatTV},
		{ID: "one-piece-special-1", Name: "One Piece: Episode of Skypiea", Format: provider.FormatSpecial},
	}
	cases := []struct {
		name   string
		title  string
		hint   provider.Format
		wantID string
		wantOK bool
	}{
		{"exact name wins", "ONE PIECE", provider.FormatMovie, "one-piece-100", true},
		{"strict special without containment", "One Piece Something", provider.FormatSpecial, "", false},
		{"strict needs containment", "Film: Red", provider.FormatMovie, "one-piece-film-red-18236", true},
		{"strict without containment fails", "Stampede", provider.FormatMovie, "", false},
		{"tv preferred without hint", "piece", provider.FormatUnknown, "one-piece-100", true},
		{"ona hint falls back to tv", "piece", provider.FormatONA, "one-piece-100", true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			id, ok := Match(results, tc.title, tc.hint)
			if ok != tc.wantOK || id != tc.wantID {
				t.Fatalf("Match(%q, %q) = (%q, %v), want (%q, %v)", tc.title, tc.hint, id, ok, tc.wantID, tc.wantOK)
			}
		})
	}
}

func TestMatch_FirstResultWhenNoTV(t *testing.T) {
	results := []provider.SearchResult{
		{ID: "", Name: "broken"},
		{ID: "x-ova-1", Name: "X OVA", Format: provider.FormatOVA},
		{ID: "x-ona-2", Name: "X ONA", Format: provider.FormatONA},
	}
	id, ok := Match(results, "x", provider.FormatUnknown)
	if !ok || id != "x-ova-1" {
		t.Fatalf("expected first non-empty result, got %q %v", id, ok)
	}
}

// ─── ProviderID ──────────────────────────────────────────────────────────────

func TestProviderID_OverrideShortCircuits(t *testing.T) {
	b := &fakeBackend{name: "a", results: []provider.SearchResult{{ID: "wrong-1", Name: "One Piece"}}}
	r := New([]provider.Backend{b}, nil)

	id, ok := r.ProviderID(context.Background(), "  One   PIECE ", "TV")
	if !ok || id != "one-piece-100" {
		t.Fatalf("expected override id, got %q %v", id, ok)
	}
	if _, ok := r.ProviderID(context.Background(), "One Piece: Stampede", "MOVIE"); ok {
		t.Fatal("none override must yield no provider id")
	}
	if n := b.searches.Load(); n != 0 {
		t.Fatalf("expected no searches, got %d", n)
	}
}

func TestProviderID_FallsBackToSecondBackend(t *testing.T) {
	a := &fakeBackend{name: "a", searchErr: errors.New("hianime: status 503 body=\"\"")}
	b := &fakeBackend{name: "b", results: []provider.SearchResult{{ID: "frieren-18542", Name: "Frieren: Beyond Journey's End", Format: provider.FormatTV}}}
	r := New([]provider.Backend{a, b}, nil, WithOverrides(nil))

	id, ok := r.ProviderID(context.Background(), "Frieren: Beyond Journey's End", "TV")
	if !ok || id != "frieren-18542" {
		t.Fatalf("unexpected result %q %v", id, ok)
	}
	if a.searches.Load() != 1 || b.searches.Load() != 1 {
		t.Fatalf("expected one search per backend, got a=%d b=%d", a.searches.Load(), b.searches.Load())
	}
}

func TestProviderID_CachesPositiveOnly(t *testing.T) {
	c := cache.NewMemoryCache(16, time.Hour)
	miss := &fakeBackend{name: "a"}
	r := New([]provider.Backend{miss}, c, WithOverrides(nil))

	if _, ok := r.ProviderID(context.Background(), "Unknown Show", "TV"); ok {
		t.Fatal("expected no match")
	}
	if _, ok := r.ProviderID(context.Background(), "Unknown Show", "TV"); ok {
		t.Fatal("expected no match")
	}
	if n := miss.searches.Load(); n != 2 {
		t.Fatalf("negative result must not be cached, got %d searches", n)
	}

	hit := &fakeBackend{name: "a", results: []provider.SearchResult{{ID: "dandadan-19319", Name: "Dandadan", Format: provider.FormatTV}}}
	r = New([]provider.Backend{hit}, c, WithOverrides(nil))
	for i := 0; i < 3; i++ {
		if id, ok := r.ProviderID(context.Background(), "Dandadan", "TV"); !ok || id != "dandadan-19319" {
			t.Fatalf("unexpected result %q %v", id, ok)
		}
	}
	if n := hit.searches.Load(); n != 1 {
		t.Fatalf("expected cached result after first search, got %d searches", n)
	}
	// Different hint is a different key.
	r.ProviderID(context.Background(), "Dandadan", "MOVIE")
	if n := hit.searches.Load(); n != 2 {
		t.Fatalf("expected a second search for another format, got %d", n)
	}
}

func TestProviderID_CoalescesConcurrentLookups(t *testing.T) {
	b := &fakeBackend{
		name:    "a",
		results: []provider.SearchResult{{ID: "mashle-18", Name: "Mashle", Format: provider.FormatTV}},
		gate:    make(chan struct{}),
	}
	r := New([]provider.Backend{b}, nil, WithOverrides(nil))

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if id, ok := r.ProviderID(context.Background(), "Mashle", "TV"); !ok || id != "mashle-18" {
				t.Errorf("unexpected result %q %v", id, ok)
			}
		}()
	}
	for b.searches.Load() == 0 {
		time.Sleep(time.Millisecond)
	}
	time.Sleep(20 * time.Millisecond)
	close(b.gate)
	wg.Wait()

	if n := b.searches.Load(); n > 8 || n < 1 {
		t.Fatalf("unexpected search count %d", n)
	}
}

// ─── Episodes ────────────────────────────────────────────────────────────────

func TestEpisodes_RejectsPartialList(t *testing.T) {
	a := &fakeBackend{name: "a", episodes: []provider.Episode{
		{ID: "one-piece-100?ep=2142", Number: 1},
		{ID: "", Number: 2},
	}}
	b := &fakeBackend{name: "b", episodes: []provider.Episode{
		{ID: "one-piece-100?ep=2142", Number: 1},
		{ID: "one-piece-100?ep=2143", Number: 2},
	}}
	r := New([]provider.Backend{a, b}, nil)

	eps, err := r.Episodes(context.Background(), "one-piece-100")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(eps) != 2 || eps[1].ID != "one-piece-100?ep=2143" {
		t.Fatalf("expected backend b list, got %+v", eps)
	}
}

func TestEpisodes_AllBackendsFail(t *testing.T) {
	a := &fakeBackend{name: "a", epErr: provider.ErrNotFound}
	b := &fakeBackend{name: "b"}
	c := cache.NewMemoryCache(16, time.Hour)
	r := New([]provider.Backend{a, b}, c)

	if _, err := r.Episodes(context.Background(), "missing-1"); !errors.Is(err, ErrNoEpisodes) {
		t.Fatalf("expected ErrNoEpisodes, got %v", err)
	}
	if _, err := r.Episodes(context.Background(), "missing-1"); !errors.Is(err, ErrNoEpisodes) {
		t.Fatalf("expected ErrNoEpisodes, got %v", err)
	}
	if a.lists.Load() != 2 {
		t.Fatalf("failures must not be cached, got %d calls", a.lists.Load())
	}
}

func TestEpisodes_Cached(t *testing.T) {
	a := &fakeBackend{name: "a", episodes: []provider.Episode{{ID: "x-1?ep=1", Number: 1, Title: "Start", IsFiller: true}}}
	r := New([]provider.Backend{a}, cache.NewMemoryCache(16, time.Hour))

	for i := 0; i < 2; i++ {
		eps, err := r.Episodes(context.Background(), "x-1")
		if err != nil || len(eps) != 1 || !eps[0].IsFiller || eps[0].Title != "Start" {
			t.Fatalf("unexpected result %+v %v", eps, err)
		}
	}
	if a.lists.Load() != 1 {
		t.Fatalf("expected a single backend call, got %d", a.lists.Load())
	}
}
