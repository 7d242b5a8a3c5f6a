// Package logger builds the gateway's structured logger on log/slog. Production
// deployments get JSON output; other environments get key=value text. Every
// record carries the service name and environment.
package logger
