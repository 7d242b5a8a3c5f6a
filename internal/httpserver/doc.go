// Package httpserver runs the gateway's inbound listener with validated
// addresses, configurable timeouts and graceful shutdown.
package httpserver
