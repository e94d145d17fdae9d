// Package provider defines the capability every streaming backend implements
// and the values they exchange.
package provider

import (
	"context"
	"errors"
	"regexp"
	"strings"
)

var (
	// ErrNotFound means the backend answered but had nothing for the request.
	ErrNotFound = errors.New("provider: not found")
	// ErrEncrypted means the embed host returned an encrypted source list.
	ErrEncrypted = errors.New("provider: encrypted sources")
)

// Backend is one source of search results, episode lists and stream links.
type Backend interface {
	Name() string
	Search(ctx context.Context, query string) ([]SearchResult, error)
	Episodes(ctx context.Context, animeID string) ([]Episode, error)
	Sources(ctx context.Context, episodeID string, server Server, category Category) (*Payload, error)
}

type SearchResult struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	JName  string `json:"jname,omitempty"`
	Format Format `json:"format,omitempty"`
}

type Episode struct {
	ID       string `json:"id"`
	Number   int    `json:"number"`
	Title    string `json:"title,omitempty"`
	IsFiller bool   `json:"isFiller"`
}

type StreamSource struct {
	URL     string `json:"url"`
	Quality string `json:"quality,omitempty"`
	IsHLS   bool   `json:"isHls"`
}

type Subtitle struct {
	URL  string `json:"url"`
	Lang string `json:"lang"`
	// Kind is "captions" or "thumbnails"; only captions reach clients.
	Kind string `json:"-"`
}

// IsThumbnails reports whether the track is a seek-preview sprite track
// rather than a subtitle.
func (s Subtitle) IsThumbnails() bool {
	return strings.EqualFold(s.Kind, "thumbnails") || strings.EqualFold(s.Lang, "thumbnails")
}

// TimeRange is an intro or outro marker in seconds.
type TimeRange struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

type Payload struct {
	Sources   []StreamSource
	Subtitles []Subtitle
	Headers   map[string]string
	Intro     *TimeRange
	Outro     *TimeRange
}

// Empty reports whether the payload carries no playable source.
func (p *Payload) Empty() bool {
	return p == nil || len(p.Sources) == 0
}

var episodeNumeric = regexp.MustCompile(`ep=(\d+)`)

// EpisodeNumericID extracts 2142 from "one-piece-100?ep=2142".
func EpisodeNumericID(episodeID string) (string, bool) {
	m := episodeNumeric.FindStringSubmatch(episodeID)
	if m == nil {
		return "", false
	}
	return m[1], true
}

var animeNumeric = regexp.MustCompile(`-(\d+)$`)

// AnimeNumericID extracts 100 from "one-piece-100".
func AnimeNumericID(animeID string) (string, bool) {
	base, _, _ := strings.Cut(animeID, "?")
	m := animeNumeric.FindStringSubmatch(base)
	if m == nil {
		return "", false
	}
	return m[1], true
}
