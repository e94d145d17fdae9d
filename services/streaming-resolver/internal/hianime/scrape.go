package hianime

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/aaditx/vibeanime/services/streaming-resolver/internal/provider"
)

func (c *Client) Search(ctx context.Context, query string) ([]provider.SearchResult, error) {
	b, err := c.get(ctx, c.endpoint("/search", url.Values{"keyword": {query}}), c.BaseURL+"/", false)
	if err != nil {
		return nil, err
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(string(b)))
	if err != nil {
		return nil, fmt.Errorf("hianime: parse search page: %w", err)
	}

	var out []provider.SearchResult
	doc.Find(".flw-item").Each(func(_ int, s *goquery.Selection) {
		link := s.Find(".film-name a").First()
		href, _ := link.Attr("href")
		id := animeIDFromHref(href)
		if id == "" {
			return
		}
		name := strings.TrimSpace(link.Text())
		if title, ok := link.Attr("title"); ok && strings.TrimSpace(title) != "" {
			name = strings.TrimSpace(title)
		}
		jname, _ := link.Attr("data-jname")
		out = append(out, provider.SearchResult{
			ID:     id,
			Name:   name,
			JName:  strings.TrimSpace(jname),
			Format: provider.ParseFormat(s.Find(".fd-infor .fdi-item").First().Text()),
		})
	})
	return out, nil
}

// animeIDFromHref turns "/one-piece-100?ref=search" into "one-piece-100".
func animeIDFromHref(href string) string {
	href, _, _ = strings.Cut(href, "?")
	href = strings.TrimPrefix(href, "/watch")
	return strings.Trim(href, "/")
}

func (c *Client) Episodes(ctx context.Context, animeID string) ([]provider.Episode, error) {
	num, ok := provider.AnimeNumericID(animeID)
	if !ok {
		return nil, fmt.Errorf("hianime: anime id %q has no numeric suffix: %w", animeID, provider.ErrNotFound)
	}
	html, err := c.ajaxHTML(ctx, c.endpoint("/ajax/v2/episode/list/"+num, nil))
	if err != nil {
		return nil, err
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("hianime: parse episode list: %w", err)
	}

	var out []provider.Episode
	doc.Find("a.ep-item").Each(func(_ int, s *goquery.Selection) {
		number, _ := strconv.Atoi(s.AttrOr("data-number", ""))
		id := ""
		if href := s.AttrOr("href", ""); href != "" {
			id = strings.TrimPrefix(strings.TrimPrefix(href, "/watch"), "/")
		}
		if id == "" {
			if dataID := s.AttrOr("data-id", ""); dataID != "" {
				id = animeID + "?ep=" + dataID
			}
		}
		out = append(out, provider.Episode{
			ID:       id,
			Number:   number,
			Title:    strings.TrimSpace(s.AttrOr("title", "")),
			IsFiller: s.HasClass("ssl-item-filler"),
		})
	})
	return out, nil
}

// serverID finds the data-id of the requested server for a category in the
// servers fragment. Server names are matched on their label (HD-1, HD-2).
func (c *Client) serverID(ctx context.Context, numericEpisodeID string, server provider.Server, category provider.Category) (string, error) {
	html, err := c.ajaxHTML(ctx, c.endpoint("/ajax/v2/episode/servers", url.Values{"episodeId": {numericEpisodeID}}))
	if err != nil {
		return "", err
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "", fmt.Errorf("hianime: parse servers: %w", err)
	}
	var found string
	doc.Find(".server-item").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if !strings.EqualFold(s.AttrOr("data-type", ""), string(category)) {
			return true
		}
		if strings.EqualFold(strings.TrimSpace(s.Text()), string(server)) {
			found = s.AttrOr("data-id", "")
			return false
		}
		return true
	})
	if found == "" {
		return "", fmt.Errorf("hianime: no %s server for %s: %w", server, category, provider.ErrNotFound)
	}
	return found, nil
}

var embedLink = regexp.MustCompile(`^(https?://[^/]+)/embed-(\d+)/(?:v\d+/)?e-(\d+)/([^?/]+)`)

type embedSources struct {
	Sources   json.RawMessage     `json:"sources"`
	Tracks    []embedTrack        `json:"tracks"`
	Encrypted bool                `json:"encrypted"`
	Intro     *provider.TimeRange `json:"intro"`
	Outro     *provider.TimeRange `json:"outro"`
}

type embedTrack struct {
	File  string `json:"file"`
	Label string `json:"label"`
	Kind  string `json:"kind"`
}

type embedSource struct {
	File string `json:"file"`
	Type string `json:"type"`
}

func (c *Client) Sources(ctx context.Context, episodeID string, server provider.Server, category provider.Category) (*provider.Payload, error) {
	num, ok := provider.EpisodeNumericID(episodeID)
	if !ok {
		return nil, fmt.Errorf("hianime: episode id %q has no ep param: %w", episodeID, provider.ErrNotFound)
	}
	sid, err := c.serverID(ctx, num, server, category)
	if err != nil {
		return nil, err
	}

	b, err := c.get(ctx, c.endpoint("/ajax/v2/episode/sources", url.Values{"id": {sid}}), c.BaseURL+"/watch/"+episodeID, true)
	if err != nil {
		return nil, err
	}
	var link struct {
		Type string `json:"type"`
		Link string `json:"link"`
	}
	if err := json.Unmarshal(b, &link); err != nil {
		return nil, fmt.Errorf("hianime: decode source link: %w", err)
	}
	m := embedLink.FindStringSubmatch(link.Link)
	if m == nil {
		return nil, fmt.Errorf("hianime: unexpected embed link %q", link.Link)
	}
	host, embedType, eNum, embedID := m[1], m[2], m[3], m[4]

	getSources := fmt.Sprintf("%s/embed-%s/ajax/e-%s/getSources?id=%s", host, embedType, eNum, url.QueryEscape(embedID))
	b, err = c.get(ctx, getSources, link.Link, true)
	if err != nil {
		return nil, err
	}
	var es embedSources
	if err := json.Unmarshal(b, &es); err != nil {
		return nil, fmt.Errorf("hianime: decode embed sources: %w", err)
	}

	var srcs []embedSource
	if es.Encrypted || (len(es.Sources) > 0 && json.Unmarshal(es.Sources, &srcs) != nil) {
		c.Log.Debug("embed sources encrypted", zap.String("host", host), zap.String("episode_id", episodeID))
		return nil, provider.ErrEncrypted
	}

	p := &provider.Payload{
		Headers: map[string]string{"Referer": host + "/"},
		Intro:   nonEmpty(es.Intro),
		Outro:   nonEmpty(es.Outro),
	}
	for _, s := range srcs {
		if s.File == "" {
			continue
		}
		isHLS := strings.EqualFold(s.Type, "hls") || strings.Contains(strings.ToLower(s.File), ".m3u8")
		p.Sources = append(p.Sources, provider.StreamSource{URL: s.File, Quality: s.Type, IsHLS: isHLS})
	}
	for _, t := range es.Tracks {
		if t.File == "" {
			continue
		}
		lang := t.Label
		if lang == "" {
			lang = t.Kind
		}
		p.Subtitles = append(p.Subtitles, provider.Subtitle{URL: t.File, Lang: lang, Kind: t.Kind})
	}
	return p, nil
}

func nonEmpty(r *provider.TimeRange) *provider.TimeRange {
	if r == nil || r.End <= 0 {
		return nil
	}
	return r
}
