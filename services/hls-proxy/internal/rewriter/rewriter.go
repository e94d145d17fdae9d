// Package rewriter routes every media URI in an HLS playlist back through the
// proxy.
package rewriter

import (
	"net/url"
	"strings"
)

// Tags whose URI attribute points at bytes the player fetches directly.
var uriTags = []string{"#EXT-X-MAP:", "#EXT-X-KEY:"}

// Rewrite returns playlist with each segment line and each EXT-X-MAP /
// EXT-X-KEY URI replaced by a proxy URL carrying the absolute target and
// referer. Line count, line endings and every other tag are preserved.
func Rewrite(playlist, baseURL, proxyBase, referer string) string {
	base, _ := url.Parse(baseURL)
	lines := strings.Split(playlist, "\n")
	for i, raw := range lines {
		line, cr := strings.CutSuffix(raw, "\r")
		trim := strings.TrimSpace(line)
		switch {
		case trim == "":
			continue
		case !strings.HasPrefix(trim, "#"):
			if proxied, ok := proxyURL(base, trim, proxyBase, referer); ok {
				line = proxied
			}
		case hasURITag(trim):
			line = rewriteURIAttr(line, base, proxyBase, referer)
		default:
			continue
		}
		if cr {
			line += "\r"
		}
		lines[i] = line
	}
	return strings.Join(lines, "\n")
}

func hasURITag(line string) bool {
	for _, tag := range uriTags {
		if strings.HasPrefix(line, tag) {
			return true
		}
	}
	return false
}

func rewriteURIAttr(line string, base *url.URL, proxyBase, referer string) string {
	start := strings.Index(line, `URI="`)
	if start == -1 {
		return line
	}
	start += len(`URI="`)
	end := strings.IndexByte(line[start:], '"')
	if end == -1 {
		return line
	}
	proxied, ok := proxyURL(base, line[start:start+end], proxyBase, referer)
	if !ok {
		return line
	}
	return line[:start] + proxied + line[start+end:]
}

// proxyURL resolves ref against base and wraps it. URIs that do not resolve
// to http(s), such as data: keys, are reported as not rewritable.
func proxyURL(base *url.URL, ref, proxyBase, referer string) (string, bool) {
	abs, ok := Resolve(base, ref)
	if !ok {
		return "", false
	}
	return BuildProxyURL(proxyBase, abs, referer), true
}

// Resolve turns ref into an absolute http(s) URL relative to base.
func Resolve(base *url.URL, ref string) (string, bool) {
	u, err := url.Parse(strings.TrimSpace(ref))
	if err != nil {
		return "", false
	}
	if !u.IsAbs() {
		if base == nil || !base.IsAbs() {
			return "", false
		}
		u = base.ResolveReference(u)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", false
	}
	return u.String(), true
}

// BuildProxyURL wraps target as proxyBase?url=<target>&referer=<referer>.
func BuildProxyURL(proxyBase, target, referer string) string {
	var b strings.Builder
	b.WriteString(proxyBase)
	if strings.Contains(proxyBase, "?") {
		b.WriteByte('&')
	} else {
		b.WriteByte('?')
	}
	b.WriteString("url=")
	b.WriteString(url.QueryEscape(target))
	if referer != "" {
		b.WriteString("&referer=")
		b.WriteString(url.QueryEscape(referer))
	}
	return b.String()
}

// IsPlaylist reports whether a response looks like an HLS playlist, by
// content type or by the target path's extension.
func IsPlaylist(contentType, path string) bool {
	ct := strings.ToLower(contentType)
	if strings.Contains(ct, "mpegurl") {
		return true
	}
	p := strings.ToLower(path)
	return strings.HasSuffix(p, ".m3u8") || strings.HasSuffix(p, ".m3u")
}
