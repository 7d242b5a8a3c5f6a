// Package forwarder issues the outbound request for a resolved route.
//
// A Forwarder rebuilds the inbound request against the backend URL,
// mirrors its method, and decides whether the body travels with it. Methods
// that never carry a body (GET, HEAD, DELETE, TRACE) are sent without one,
// and for those methods none of the inbound headers are copied either.
// Every other method streams the inbound body and carries all inbound
// headers verbatim.
//
// Forward returns as soon as response headers arrive; the body is left for
// the caller to stream or buffer. The inbound request context is propagated,
// so a client that disconnects cancels the upstream call.
//
// One *http.Client, built by NewClient at startup, is shared by every
// request. It never follows redirects and only speaks HTTP/1.1.
package forwarder
