package facematch

import (
	"strings"
	"unicode"

	"github.com/kozaktomas/visagium/internal/constants"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// RemoveDiacritics removes diacritical marks from a string (e.g., "Jiří" -> "Jiri").
func RemoveDiacritics(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	result, _, _ := transform.String(t, s)
	return result
}

// NormalizePersonName normalizes a name for comparison (lowercase, no diacritics, spaces for dashes).
func NormalizePersonName(name string) string {
	name = RemoveDiacritics(name)
	name = strings.ToLower(name)
	name = strings.ReplaceAll(name, "-", " ")
	return strings.Join(strings.Fields(name), " ")
}

// Slug turns a person name into a safe file name component ("Jan Novák" -> "jan_novak").
func Slug(name string) string {
	var b strings.Builder
	lastUnderscore := true
	for _, r := range NormalizePersonName(name) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
			lastUnderscore = false
			continue
		}
		if !lastUnderscore {
			b.WriteByte('_')
			lastUnderscore = true
		}
	}
	slug := strings.TrimSuffix(b.String(), "_")
	if slug == "" {
		return "face"
	}
	return slug
}

// DisplayLabel is the overlay text for a recognized face: first name and id.
func DisplayLabel(id Identity) string {
	fields := strings.Fields(id.Name)
	if len(fields) == 0 {
		return "(" + id.ID + ")"
	}
	return fields[0] + " (" + id.ID + ")"
}

// Label returns DisplayLabel for a match, or the unknown label.
func Label(m Match, matched bool) string {
	if !matched {
		return constants.UnknownLabel
	}
	return DisplayLabel(m.Identity)
}
