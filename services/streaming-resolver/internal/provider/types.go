package provider

import "strings"

// Server is one of the two upstream video servers a backend exposes.
type Server string

const (
	ServerA Server = "hd-1"
	ServerB Server = "hd-2"
)

func (s Server) Other() Server {
	if s == ServerB {
		return ServerA
	}
	return ServerB
}

// ParseServer accepts A, B, hd-1 and hd-2 in any case. Empty means A.
func ParseServer(raw string) (Server, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", "a", "hd-1":
		return ServerA, true
	case "b", "hd-2":
		return ServerB, true
	}
	return "", false
}

// Category is the language track.
type Category string

const (
	CategorySub Category = "sub"
	CategoryDub Category = "dub"
	CategoryRaw Category = "raw"
)

// ParseCategory accepts sub, dub and raw. Empty means sub.
func ParseCategory(raw string) (Category, bool) {
	switch c := Category(strings.ToLower(strings.TrimSpace(raw))); c {
	case "":
		return CategorySub, true
	case CategorySub, CategoryDub, CategoryRaw:
		return c, true
	}
	return "", false
}

// Format is the provider's own media type taxonomy.
type Format string

const (
	FormatUnknown Format = ""
	FormatTV      Format = "TV"
	FormatMovie   Format = "Movie"
	FormatOVA     Format = "OVA"
	FormatONA     Format = "ONA"
	FormatSpecial Format = "Special"
)

// FormatFromHint maps a catalog format (TV, TV_SHORT, MOVIE, OVA, ONA,
// SPECIAL, MUSIC) onto the provider taxonomy.
func FormatFromHint(hint string) Format {
	switch strings.ToUpper(strings.TrimSpace(hint)) {
	case "TV", "TV_SHORT":
		return FormatTV
	case "MOVIE":
		return FormatMovie
	case "OVA":
		return FormatOVA
	case "ONA":
		return FormatONA
	case "SPECIAL":
		return FormatSpecial
	}
	return FormatUnknown
}

// ParseFormat reads a provider's own format label.
func ParseFormat(label string) Format {
	switch strings.ToLower(strings.TrimSpace(label)) {
	case "tv":
		return FormatTV
	case "movie":
		return FormatMovie
	case "ova":
		return FormatOVA
	case "ona":
		return FormatONA
	case "special":
		return FormatSpecial
	}
	return FormatUnknown
}

// Strict reports whether a search for this format must not fall back to an
// unrelated TV series.
func (f Format) Strict() bool {
	switch f {
	case FormatMovie, FormatOVA, FormatSpecial:
		return true
	}
	return false
}
