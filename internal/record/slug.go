package record

import (
	"fmt"
	"strings"
	"time"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// SlugMaxLen caps derived slugs. Long enough for any sane event name,
// short enough to stay usable in tags and URLs.
const SlugMaxLen = 50

// deaccent strips combining marks so "Fête d'Été" slugs to "fete-d-ete".
// NFD exposes the marks, runes.Remove drops them, NFC recomposes.
var deaccent = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// Slugify derives the normalized slug for a name: lower-case, diacritics
// folded, non-alphanumeric runs collapsed to single hyphens, trimmed,
// capped at SlugMaxLen. Returns "" when nothing survives; callers fall
// back to SlugPlaceholder.
//
// Slugs are not guaranteed globally unique across renames - identity is
// the (slug, start_date) pair, and ultimately the record ID.
func Slugify(name string) string {
	folded, _, err := transform.String(deaccent, name)
	if err != nil {
		// Transform failure means malformed UTF-8; fall through with the
		// raw input, the filter below drops anything non-alphanumeric.
		folded = name
	}
	folded = strings.ToLower(folded)

	var b strings.Builder
	b.Grow(len(folded))
	pendingSep := false
	for _, r := range folded {
		isAlnum := (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9')
		if !isAlnum {
			pendingSep = b.Len() > 0
			continue
		}
		if pendingSep {
			b.WriteByte('-')
			pendingSep = false
		}
		b.WriteRune(r)
	}

	slug := b.String()
	if len(slug) > SlugMaxLen {
		slug = strings.TrimRight(slug[:SlugMaxLen], "-")
	}
	return slug
}

// SlugPlaceholder is the fallback for names that slug to nothing (all
// punctuation, all non-Latin scripts the filter drops). Time-based so two
// such events created in different seconds stay distinguishable.
func SlugPlaceholder(now time.Time) string {
	return fmt.Sprintf("event-%d", now.Unix())
}

// ShortID returns the short form of a record ID used in tags: the first
// eight characters (the first UUID group).
func ShortID(id string) string {
	if len(id) <= 8 {
		return id
	}
	return id[:8]
}

// Tag composes the human identity string slug+date+short-id, e.g.
// "fall-league-20251001-a1b2c3d4". The date is compacted to digits so the
// tag stays a single hyphen-delimited token.
func Tag(slug, startDate, id string) string {
	compact := strings.ReplaceAll(startDate, "-", "")
	return slug + "-" + compact + "-" + ShortID(id)
}
