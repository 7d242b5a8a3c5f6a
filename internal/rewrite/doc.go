// Package rewrite replaces backend-internal URL fragments in textual response
// bodies with their gateway-facing equivalents.
//
// Rules are applied one after another in descending key order, so a longer
// or more specific public fragment is substituted before a shorter one that
// could otherwise clobber part of it. Each substitution is a literal,
// case-sensitive replace-all over whatever the previous rules left behind.
//
// A public fragment containing the token "host" is expanded per request: the
// token is replaced by the inbound Host and the result is prefixed with
// "https://".
//
// Only a fixed set of text media types is rewritten. Eligible bodies are
// buffered in full before substitution, so memory use grows with response
// size; very large HTML or JSON responses are held in memory while they are
// rewritten.
package rewrite
