// Package allowlist decides which hosts the proxy may fetch from.
package allowlist

import (
	"net"
	"sort"
	"strings"
)

// DefaultHosts are the provider and CDN domains the proxy relays for.
// Subdomains of each entry are allowed too.
var DefaultHosts = []string{
	// embed and player hosts
	"megacloud.blog",
	"megacloud.tv",
	"megacloud.club",
	"megaplay.buzz",
	"vidwish.live",
	"rapid-cloud.co",
	// catalog sites the sources are scraped from
	"hianime.to",
	"hianimez.to",
	"aniwatch.to",
	// HLS CDNs seen behind the embeds
	"netmagcdn.com",
	"mgstatic.xyz",
	"biananset.net",
	"lightningspark77.pro",
	"sunburst66.pro",
	"rainveil36.xyz",
	"haildrop77.pro",
	"douvid.xyz",
	"gogocdn.net",
}

// Guard holds a fixed host set. It is safe for concurrent use once built.
type Guard struct {
	hosts map[string]struct{}
}

// New returns a Guard over DefaultHosts plus extra.
func New(extra ...string) *Guard {
	g := &Guard{hosts: make(map[string]struct{}, len(DefaultHosts)+len(extra))}
	for _, h := range DefaultHosts {
		g.add(h)
	}
	for _, h := range extra {
		g.add(h)
	}
	return g
}

func (g *Guard) add(h string) {
	if h = normalize(h); h != "" {
		g.hosts[h] = struct{}{}
	}
}

// Allowed reports whether hostname equals an approved domain or is a
// subdomain of one. It only looks at the name, never resolves it.
func (g *Guard) Allowed(hostname string) bool {
	h := normalize(hostname)
	if h == "" {
		return false
	}
	for {
		if _, ok := g.hosts[h]; ok {
			return true
		}
		i := strings.IndexByte(h, '.')
		if i < 0 {
			return false
		}
		h = h[i+1:]
	}
}

// Hosts returns the approved domains, sorted.
func (g *Guard) Hosts() []string {
	out := make([]string, 0, len(g.hosts))
	for h := range g.hosts {
		out = append(out, h)
	}
	sort.Strings(out)
	return out
}

func normalize(h string) string {
	h = strings.ToLower(strings.TrimSpace(h))
	if host, _, err := net.SplitHostPort(h); err == nil {
		h = host
	}
	return strings.TrimSuffix(h, ".")
}
