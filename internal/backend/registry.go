package backend

import (
	"net/url"
)

// Registry holds one Backend per distinct origin. It is built once from the
// route targets and read concurrently without locking.
type Registry struct {
	byOrigin map[string]*Backend
	ordered  []*Backend
}

// NewRegistry creates backends for the origins of targets, in first-seen
// order. Targets that do not parse are skipped.
func NewRegistry(targets []string) *Registry {
	r := &Registry{byOrigin: make(map[string]*Backend)}

	for _, t := range targets {
		u, err := url.Parse(t)
		if err != nil || u.Host == "" {
			continue
		}

		b := New(u)
		key := b.String()
		if _, exists := r.byOrigin[key]; exists {
			continue
		}

		r.byOrigin[key] = b
		r.ordered = append(r.ordered, b)
	}

	return r
}

// Lookup returns the backend serving u, or nil.
func (r *Registry) Lookup(u *url.URL) *Backend {
	return r.byOrigin[(&url.URL{Scheme: u.Scheme, Host: u.Host}).String()]
}

// All returns every backend in first-seen order.
func (r *Registry) All() []*Backend {
	out := make([]*Backend, len(r.ordered))
	copy(out, r.ordered)
	return out
}
