// Package playback drives one viewer's player: server and track selection,
// the stream session lifecycle, stall detection and the fall back to the
// embed player.
package playback

import "strings"

type Server string

const (
	ServerA Server = "A"
	ServerB Server = "B"
)

type Track string

const (
	TrackSub Track = "sub"
	TrackDub Track = "dub"
)

// Option is the viewer's server and language choice.
type Option struct {
	Server Server
	Track  Track
}

func DefaultOption() Option { return Option{Server: ServerA, Track: TrackSub} }

// Episode identifies what is being watched.
type Episode struct {
	SeriesID  string
	Number    int
	EpisodeID string
	HasNext   bool
}

type Source struct {
	URL     string `json:"url"`
	Quality string `json:"quality,omitempty"`
	IsHLS   bool   `json:"isHls"`
}

type Subtitle struct {
	URL  string `json:"url"`
	Lang string `json:"lang"`
}

type TimeRange struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

// Resolved mirrors the resolver's /sources body.
type Resolved struct {
	Sources            []Source          `json:"sources"`
	Subtitles          []Subtitle        `json:"subtitles"`
	UpstreamHeaders    map[string]string `json:"upstreamHeaders"`
	GuaranteedEmbedURL string            `json:"guaranteedEmbedUrl"`
	AltEmbedURL        string            `json:"altEmbedUrl,omitempty"`
	Intro              *TimeRange        `json:"intro,omitempty"`
	Outro              *TimeRange        `json:"outro,omitempty"`
}

// Best returns the first source flagged HLS, else the first source.
func (r Resolved) Best() (Source, bool) {
	for _, s := range r.Sources {
		if s.IsHLS && s.URL != "" {
			return s, true
		}
	}
	for _, s := range r.Sources {
		if s.URL != "" {
			return s, true
		}
	}
	return Source{}, false
}

// Referer is the upstream Referer header, matched case-insensitively.
func (r Resolved) Referer() string {
	for k, v := range r.UpstreamHeaders {
		if strings.EqualFold(k, "referer") {
			return v
		}
	}
	return ""
}
