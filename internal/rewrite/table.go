package rewrite

import (
	"errors"
	"fmt"
	"slices"
	"strings"
)

// HostToken is the placeholder expanded to the request host.
const HostToken = "host"

var (
	ErrEmptyFragment = errors.New("rewrite backend fragment must not be empty")
	ErrDuplicateRule = errors.New("duplicate rewrite public fragment")
)

// Rule maps a public-facing fragment to the backend fragment it replaces.
type Rule struct {
	Public  string
	Backend string
}

// Table holds rewrite rules sorted for application.
type Table struct {
	rules []Rule
}

// NewTable validates rules and sorts them by descending public fragment.
func NewTable(rules []Rule) (*Table, error) {
	seen := make(map[string]struct{}, len(rules))
	sorted := make([]Rule, 0, len(rules))

	for _, r := range rules {
		if r.Backend == "" {
			return nil, fmt.Errorf("%w: public %q", ErrEmptyFragment, r.Public)
		}
		if _, dup := seen[r.Public]; dup {
			return nil, fmt.Errorf("%w: %q", ErrDuplicateRule, r.Public)
		}
		seen[r.Public] = struct{}{}
		sorted = append(sorted, r)
	}

	slices.SortStableFunc(sorted, func(a, b Rule) int {
		return compareKeys(b.Public, a.Public)
	})

	return &Table{rules: sorted}, nil
}

// Rules returns the rules in application order.
func (t *Table) Rules() []Rule {
	return slices.Clone(t.rules)
}

// Apply runs every rule over body for a request addressed to host.
func (t *Table) Apply(body, host string) string {
	for _, r := range t.rules {
		body = strings.ReplaceAll(body, r.Backend, r.replacement(host))
	}
	return body
}

func (r Rule) replacement(host string) string {
	if strings.Contains(r.Public, HostToken) {
		return "https://" + strings.ReplaceAll(r.Public, HostToken, host)
	}
	return r.Public
}

// compareKeys orders keys the way a word sort does: hyphens and apostrophes
// are skipped on the first pass, so "/api-host/" sorts above "/api/". Keys
// that tie on that pass fall back to byte order.
func compareKeys(a, b string) int {
	if c := strings.Compare(wordKey(a), wordKey(b)); c != 0 {
		return c
	}
	return strings.Compare(a, b)
}

var wordKeyReplacer = strings.NewReplacer("-", "", "'", "")

func wordKey(s string) string {
	return wordKeyReplacer.Replace(s)
}
