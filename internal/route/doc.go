// Package route maps inbound request paths to backend URLs.
//
// A Table is an ordered list of prefix entries. Resolution walks the list in
// configured order and the first entry whose prefix matches the request path
// on a segment boundary wins, even when a later entry would match more of the
// path. The remainder of the path is appended to the entry's target and the
// inbound query string is carried over pair by pair in its original order.
//
// Tables are immutable once built and safe for concurrent use.
package route
