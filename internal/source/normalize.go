package source

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var (
	bracketed  = regexp.MustCompile(`[\(\[][^\)\]]*[\)\]]`)
	nonWord    = regexp.MustCompile(`[^\p{L}\p{N}+#/&]+`)
	multiSpace = regexp.MustCompile(`\s{2,}`)
)

// postingNoise are tokens job boards add to titles that say nothing about
// the role itself.
var postingNoise = map[string]bool{
	"remote":    true,
	"hybrid":    true,
	"onsite":    true,
	"urgent":    true,
	"hiring":    true,
	"immediate": true,
	"start":     true,
	"wfh":       true,
	"m/f/d":     true,
	"f/m/d":     true,
	"m/w/d":     true,
}

// NormalizeTitle folds case, strips diacritics, bracketed asides and
// posting noise so that "Sénior Software-Engineer (Remote)" and
// "senior software engineer" compare equal.
func NormalizeTitle(title string) string {
	t := stripMarks(title)
	t = cases.Fold().String(t)
	t = bracketed.ReplaceAllString(t, " ")
	t = nonWord.ReplaceAllString(t, " ")

	fields := strings.Fields(t)
	kept := fields[:0]
	for _, f := range fields {
		if !postingNoise[f] {
			kept = append(kept, f)
		}
	}
	return multiSpace.ReplaceAllString(strings.Join(kept, " "), " ")
}

func stripMarks(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return out
}

// LocationPattern turns a free-text location into an ILIKE pattern on its
// most specific part: "Austin, TX" matches "%austin%". Empty input gives "".
func LocationPattern(location string) string {
	city := strings.TrimSpace(strings.Split(location, ",")[0])
	city = cases.Fold().String(stripMarks(city))
	if city == "" || postingNoise[city] {
		return ""
	}
	city = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(city)
	return "%" + city + "%"
}

// Region derives the benchmark region from a location: a trailing two-letter
// code ("Austin, TX") becomes "TX", anything else falls back to def.
func Region(location, def string) string {
	parts := strings.Split(location, ",")
	last := strings.TrimSpace(parts[len(parts)-1])
	if len(parts) > 1 && len(last) == 2 && isLetters(last) {
		return strings.ToUpper(last)
	}
	return def
}

func isLetters(s string) bool {
	for _, r := range s {
		if !unicode.IsLetter(r) {
			return false
		}
	}
	return s != ""
}
