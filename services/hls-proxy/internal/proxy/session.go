package proxy

import (
	"net/url"
	"regexp"
)

var episodeParam = regexp.MustCompile(`(?:^|[?&])ep=(\d+)`)

// SessionKey scopes the upstream cookie. Requests for the same episode share
// one key so that the playlist's cookie reaches its segments; requests with
// no episode id fall back to the client IP.
func SessionKey(target *url.URL, clientIP string) string {
	if target != nil {
		if m := episodeParam.FindStringSubmatch(target.RawQuery); m != nil {
			return "ep:" + m[1]
		}
	}
	return "ip:" + clientIP
}
