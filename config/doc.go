// Package config loads the gateway configuration from YAML files and
// environment variables. It defines the listener, upstream client, health
// check, metrics and logging settings together with the ordered route and
// rewrite tables.
package config
