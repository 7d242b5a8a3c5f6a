package route

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

var (
	ErrInvalidPrefix = errors.New("route prefix must start with '/'")
	ErrInvalidTarget = errors.New("route target must be an absolute http or https URL")
)

// Entry maps a path prefix to a backend base URL.
type Entry struct {
	Prefix string
	Target string
}

// Target is the outcome of a successful resolution.
type Target struct {
	Entry Entry
	URL   *url.URL
}

// Table is an ordered, read-only route table.
type Table struct {
	entries  []Entry
	prefixes []string
}

// NewTable builds a Table from entries, preserving their order.
func NewTable(entries []Entry) (*Table, error) {
	t := &Table{
		entries:  make([]Entry, 0, len(entries)),
		prefixes: make([]string, 0, len(entries)),
	}

	for _, e := range entries {
		if !strings.HasPrefix(e.Prefix, "/") {
			return nil, fmt.Errorf("%w: %q", ErrInvalidPrefix, e.Prefix)
		}

		u, err := url.Parse(e.Target)
		if err != nil || !u.IsAbs() || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
			return nil, fmt.Errorf("%w: %q", ErrInvalidTarget, e.Target)
		}

		t.entries = append(t.entries, e)
		// Request paths are matched in escaped form, so prefixes are too.
		// "/api/" and "/api" match the same segments; "/" matches everything.
		escaped := (&url.URL{Path: e.Prefix}).EscapedPath()
		t.prefixes = append(t.prefixes, strings.TrimRight(escaped, "/"))
	}

	return t, nil
}

// Entries returns a copy of the table in evaluation order.
func (t *Table) Entries() []Entry {
	out := make([]Entry, len(t.entries))
	copy(out, t.entries)
	return out
}

// Len returns the number of entries.
func (t *Table) Len() int {
	return len(t.entries)
}

// Match returns the first entry whose prefix is a segment prefix of path,
// together with the unmatched remainder of the path.
func (t *Table) Match(path string) (Entry, string, bool) {
	if path == "" {
		return Entry{}, "", false
	}

	for i, prefix := range t.prefixes {
		if remainder, ok := startsWithSegments(path, prefix); ok {
			return t.entries[i], remainder, true
		}
	}

	return Entry{}, "", false
}

// Resolve computes the backend URL for an escaped request path and raw
// query. The boolean is false when no entry claims the path; that is a
// delegation signal, not an error.
func (t *Table) Resolve(path, rawQuery string) (Target, bool) {
	entry, remainder, ok := t.Match(path)
	if !ok {
		return Target{}, false
	}

	uri := entry.Target + remainder
	if uri == "" {
		return Target{}, false
	}

	if rawQuery != "" {
		uri = appendQuery(uri, rawQuery)
	}

	u, err := url.Parse(uri)
	if err != nil || !u.IsAbs() {
		return Target{}, false
	}

	return Target{Entry: entry, URL: u}, true
}

// startsWithSegments reports whether path begins with prefix on a segment
// boundary. Comparison ignores ASCII case.
func startsWithSegments(path, prefix string) (string, bool) {
	if len(path) < len(prefix) {
		return "", false
	}

	if !strings.EqualFold(path[:len(prefix)], prefix) {
		return "", false
	}

	if len(path) == len(prefix) || path[len(prefix)] == '/' {
		return path[len(prefix):], true
	}

	return "", false
}

// appendQuery re-encodes each key/value pair of rawQuery onto uri without
// sorting, so pairs keep their inbound order and multiplicity.
func appendQuery(uri, rawQuery string) string {
	var b strings.Builder
	b.WriteString(uri)

	sep := "?"
	if strings.Contains(uri, "?") {
		sep = "&"
	}

	for _, pair := range strings.Split(rawQuery, "&") {
		if pair == "" {
			continue
		}

		key, value, _ := strings.Cut(pair, "=")

		b.WriteString(sep)
		b.WriteString(url.QueryEscape(unescape(key)))
		b.WriteByte('=')
		b.WriteString(url.QueryEscape(unescape(value)))
		sep = "&"
	}

	return b.String()
}

func unescape(s string) string {
	if u, err := url.QueryUnescape(s); err == nil {
		return u
	}
	return s
}
