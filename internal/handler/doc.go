// Package handler implements the gateway middleware. It resolves a request
// against the route table, forwards it to the backend, rewrites eligible
// response bodies and relays the result. Requests no route claims are handed
// to the wrapped handler untouched.
package handler
