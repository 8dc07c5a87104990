package bizengine

import (
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"
)

// ErrNotFound is returned when a requested post does not exist.
var ErrNotFound = sql.ErrNoRows

// ErrConflict is returned when an insert loses the race the slug allocator's
// pre-check cannot eliminate and the slug UNIQUE constraint fires. Callers
// may retry with a fresh candidate.
var ErrConflict = errors.New("slug already exists")

// ValidationError reports structurally invalid caller input with field-level
// detail. It is never retried and causes no side effects.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return "validation failed"
	}
	names := make([]string, 0, len(e.Fields))
	for f := range e.Fields {
		names = append(names, f)
	}
	sort.Strings(names)
	return fmt.Sprintf("validation failed: %s", strings.Join(names, ", "))
}

// isUniqueViolation reports whether err is a sqlite UNIQUE constraint
// failure. The driver exposes no typed error, so this matches the message
// text the same way schema migrations match "duplicate column".
func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
