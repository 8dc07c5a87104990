package bizengine

import (
	"context"
	"fmt"
	"strings"
)

// fallbackSlug is used when normalization strips a candidate down to
// nothing (e.g. an all-punctuation title). Without it every such title
// would collide on the empty string.
const fallbackSlug = "post"

// Slugify converts a title or caller-supplied candidate to a URL-safe slug:
// lowercase, characters outside [a-z0-9 -] stripped, whitespace runs
// collapsed to a single hyphen, hyphen runs collapsed, leading/trailing
// hyphens trimmed. Already-normalized input is a fixed point.
func Slugify(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	var b strings.Builder
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '-', r == ' ':
			b.WriteRune(r)
		}
	}
	out := strings.Join(strings.Fields(b.String()), "-")
	for strings.Contains(out, "--") {
		out = strings.ReplaceAll(out, "--", "-")
	}
	return strings.Trim(out, "-")
}

// allocateSlug derives a unique slug from candidate by normalizing it and
// probing storage, appending -2, -3, ... until an unused value is found.
// Existing numeric suffixes are never parsed or incremented; collisions on
// "title-2" yield "title-2-2". A failed probe propagates; it is never
// treated as "slug is free". selfID excludes a post's own row from the
// probe on edits (0 for creation).
//
// The probe is optimistic: two concurrent creations of the same title can
// both see the base slug as free. The slug UNIQUE constraint in storage is
// the correctness backstop for that race.
func (s *Store) allocateSlug(ctx context.Context, candidate string, selfID int64) (string, error) {
	base := Slugify(candidate)
	if base == "" {
		base = fallbackSlug
	}
	slug := base
	for n := 2; ; n++ {
		taken, err := s.slugTaken(ctx, slug, selfID)
		if err != nil {
			return "", err
		}
		if !taken {
			return slug, nil
		}
		slug = fmt.Sprintf("%s-%d", base, n)
	}
}
