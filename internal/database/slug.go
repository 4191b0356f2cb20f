package database

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
	"gorm.io/gorm"
)

const maxSlugLength = 50

var nonSlugChars = regexp.MustCompile(`[^a-z0-9]+`)

// Slugify derives a lowercase, URL-safe slug from s.
// Accents are folded to their base letter; everything else that is not
// an ASCII letter or digit collapses into a single dash.
func Slugify(s string) string {
	folded, _, err := transform.String(transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)), norm.NFC), s)
	if err != nil {
		folded = s
	}
	slug := nonSlugChars.ReplaceAllString(strings.ToLower(folded), "-")
	slug = strings.Trim(slug, "-")
	if len(slug) > maxSlugLength {
		slug = strings.TrimRight(slug[:maxSlugLength], "-")
	}
	return slug
}

// uniqueSlug returns the first free slug for model, trying base, base-2, base-3, ...
// An empty base falls back to fallback.
func uniqueSlug(ctx context.Context, db *gorm.DB, model any, base, fallback string) (string, error) {
	if base == "" {
		base = fallback
	}
	candidate := base
	for i := 2; ; i++ {
		var count int64
		if err := db.WithContext(ctx).Model(model).Where("slug = ?", candidate).Count(&count).Error; err != nil {
			return "", fmt.Errorf("failed to check slug: %w", err)
		}
		if count == 0 {
			return candidate, nil
		}
		candidate = fmt.Sprintf("%s-%d", base, i)
	}
}
