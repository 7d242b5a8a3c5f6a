package forwarder

import (
	"net/http"
	"net/url"
	"strings"
)

var canonicalMethods = []string{
	http.MethodGet,
	http.MethodHead,
	http.MethodDelete,
	http.MethodTrace,
	http.MethodOptions,
	http.MethodPost,
	http.MethodPut,
}

// CanonicalMethod maps a method to its standard token, ignoring case.
// Unknown verbs are returned unchanged.
func CanonicalMethod(method string) string {
	for _, m := range canonicalMethods {
		if strings.EqualFold(method, m) {
			return m
		}
	}
	return method
}

// CarriesBody reports whether requests with this method forward a body.
func CarriesBody(method string) bool {
	switch CanonicalMethod(method) {
	case http.MethodGet, http.MethodHead, http.MethodDelete, http.MethodTrace:
		return false
	default:
		return true
	}
}

// Forwarder sends requests to backends over a shared client.
type Forwarder struct {
	client *http.Client
}

func New(client *http.Client) *Forwarder {
	return &Forwarder{client: client}
}

// NewRequest builds the outbound equivalent of r addressed to target.
func NewRequest(target *url.URL, r *http.Request) (*http.Request, error) {
	method := CanonicalMethod(r.Method)

	out, err := http.NewRequestWithContext(r.Context(), method, target.String(), nil)
	if err != nil {
		return nil, err
	}
	out.Host = target.Host

	if !CarriesBody(method) {
		return out, nil
	}

	out.ContentLength = r.ContentLength
	if r.Body == nil || r.ContentLength == 0 {
		out.Body = http.NoBody
		out.ContentLength = 0
	} else {
		out.Body = r.Body
	}

	for key, values := range r.Header {
		out.Header[key] = append([]string(nil), values...)
	}

	return out, nil
}

// Forward issues the outbound request and returns once response headers are
// in. The caller owns resp.Body.
func (f *Forwarder) Forward(target *url.URL, r *http.Request) (*http.Response, error) {
	out, err := NewRequest(target, r)
	if err != nil {
		return nil, Classify(r.Context(), "build", target.String(), err)
	}

	resp, err := f.client.Do(out)
	if err != nil {
		return nil, Classify(r.Context(), "send", target.String(), err)
	}

	return resp, nil
}
