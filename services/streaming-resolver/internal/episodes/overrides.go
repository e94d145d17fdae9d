package episodes

// NoProvider marks a title that must skip provider search entirely and go
// straight to the embed fallback.
const NoProvider = "none"

// DefaultOverrides maps normalized catalog titles to provider anime ids for
// series where search picks the wrong season or OVA.
var DefaultOverrides = map[string]string{
	"one piece":                         "one-piece-100",
	"naruto: shippuden":                 "naruto-shippuden-355",
	"attack on titan":                   "attack-on-titan-112",
	"bleach":                            "bleach-806",
	"hunter x hunter (2011)":            "hunter-x-hunter-2011-2",
	"gintama":                           "gintama-2",
	"dragon ball":                       "dragon-ball-8",
	"detective conan":                   "detective-conan-323",
	"one piece: stampede":               NoProvider,
	"attack on titan: the final season": NoProvider,
}
