package rewrite

import (
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strconv"
	"strings"
	"unicode/utf8"
)

// ErrMalformedBody is returned when an eligible body is not valid UTF-8.
var ErrMalformedBody = errors.New("response body is not valid UTF-8")

// eligibleTypes are the media types whose bodies are rewritten.
var eligibleTypes = map[string]struct{}{
	"text/html":              {},
	"application/javascript": {},
	"text/javascript":        {},
	"text/xml":               {},
	"application/json":       {},
}

// Result describes the body to send to the client.
type Result struct {
	// Rewritten is false when the response must be streamed untouched.
	Rewritten     bool
	Body          []byte
	ContentType   string
	ContentLength int64
}

// Rewriter applies a Table to backend responses.
type Rewriter struct {
	table *Table
}

func NewRewriter(table *Table) *Rewriter {
	return &Rewriter{table: table}
}

// MediaType returns the lowercased media type of a Content-Type value, or ""
// when there is none.
func MediaType(contentType string) string {
	if contentType == "" {
		return ""
	}

	mt, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		mt, _, _ = strings.Cut(contentType, ";")
		return strings.ToLower(strings.TrimSpace(mt))
	}

	return mt
}

// IsEligible reports whether a media type is subject to rewriting.
func IsEligible(mediaType string) bool {
	_, ok := eligibleTypes[mediaType]
	return ok
}

// Eligible reports whether resp carries a body that should be rewritten.
// HEAD responses and content-encoded bodies are never rewritten.
func (rw *Rewriter) Eligible(resp *http.Response) (string, bool) {
	if resp.Request != nil && resp.Request.Method == http.MethodHead {
		return "", false
	}

	if ce := resp.Header.Get("Content-Encoding"); ce != "" && !strings.EqualFold(ce, "identity") {
		return "", false
	}

	mt := MediaType(resp.Header.Get("Content-Type"))
	return mt, IsEligible(mt)
}

// MaybeRewrite buffers and rewrites resp's body when it is eligible. An
// ineligible body is left unread.
func (rw *Rewriter) MaybeRewrite(resp *http.Response, host string) (Result, error) {
	mt, ok := rw.Eligible(resp)
	if !ok {
		return Result{}, nil
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return Result{}, fmt.Errorf("read response body: %w", err)
	}

	if !utf8.Valid(raw) {
		return Result{}, ErrMalformedBody
	}

	body := []byte(rw.table.Apply(string(raw), host))

	return Result{
		Rewritten:     true,
		Body:          body,
		ContentType:   mt + "; charset=utf-8",
		ContentLength: int64(len(body)),
	}, nil
}

// ContentLengthHeader formats the recomputed length for the response header.
func (r Result) ContentLengthHeader() string {
	return strconv.FormatInt(r.ContentLength, 10)
}
