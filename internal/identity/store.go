package identity

import (
	"context"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Store provides read access to enrolled identity templates. Implementations
// must return templates that are safe to hold for a whole session without
// further store access.
type Store interface {
	// Get returns the template for a name. Names are matched after
	// normalization, so "jan-novak" finds "Jan Novák".
	Get(ctx context.Context, name string) (*Template, error)
	// List returns all enrolled templates ordered by name.
	List(ctx context.Context) ([]*Template, error)
	// Has reports whether an identity is enrolled.
	Has(ctx context.Context, name string) (bool, error)
}

// RemoveDiacritics removes diacritical marks from a string (e.g., "Jiří" -> "Jiri").
func RemoveDiacritics(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	result, _, _ := transform.String(t, s)
	return result
}

// NormalizeName normalizes an identity name for comparison (lowercase, no
// diacritics, dashes to spaces). CLI slugs and enrolled display names meet
// in this form.
func NormalizeName(name string) string {
	name = RemoveDiacritics(name)
	name = strings.ToLower(name)
	name = strings.ReplaceAll(name, "-", " ")
	return strings.TrimSpace(name)
}
