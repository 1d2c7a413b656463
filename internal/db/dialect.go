package db

import (
	"strings"
	"time"
)

// Dialect adapts the shared SQL text of the repositories to one backend.
// Queries are written with Postgres-style $N placeholders.
type Dialect int

const (
	Postgres Dialect = iota
	SQLite
)

// Rebind rewrites $N placeholders to ?N for SQLite. Postgres queries pass through.
func (d Dialect) Rebind(query string) string {
	if d != SQLite {
		return query
	}
	var b strings.Builder
	b.Grow(len(query))
	inQuote := false
	for i := 0; i < len(query); i++ {
		c := query[i]
		if c == '\'' {
			inQuote = !inQuote
		}
		if c == '$' && !inQuote && i+1 < len(query) && query[i+1] >= '0' && query[i+1] <= '9' {
			b.WriteByte('?')
			continue
		}
		b.WriteByte(c)
	}
	return b.String()
}

// ToMillis converts t to Unix milliseconds in UTC; timestamps are stored this way in both backends.
func ToMillis(t time.Time) int64 {
	return t.UTC().UnixMilli()
}

// FromMillis is the inverse of ToMillis.
func FromMillis(v int64) time.Time {
	return time.UnixMilli(v).UTC()
}
