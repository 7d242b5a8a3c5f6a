package config

import (
	"errors"
	"log/slog"
	"net"
	"net/url"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
	"github.com/spf13/viper"

	"github.com/angeloszaimis/rewriting-gateway/internal/rewrite"
	"github.com/angeloszaimis/rewriting-gateway/internal/route"
)

const (
	EnvDev     = "dev"
	EnvStaging = "staging"
	EnvProd    = "prod"
)

const (
	LogLevelDebug = "debug"
	LogLevelInfo  = "info"
	LogLevelWarn  = "warn"
	LogLevelError = "error"
)

type ServerConfig struct {
	Address      string        `mapstructure:"address"`
	Environment  string        `mapstructure:"environment"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	IdleTimeout  time.Duration `mapstructure:"idle_timeout"`
}

type UpstreamConfig struct {
	ResponseHeaderTimeout time.Duration `mapstructure:"response_header_timeout"`
	DialTimeout           time.Duration `mapstructure:"dial_timeout"`
	IdleConnTimeout       time.Duration `mapstructure:"idle_conn_timeout"`
	MaxIdleConnsPerHost   int           `mapstructure:"max_idle_conns_per_host"`
	TLSSkipVerify         bool          `mapstructure:"tls_skip_verify"`
}

type HealthCheckConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Interval time.Duration `mapstructure:"interval"`
	Path     string        `mapstructure:"path"`
}

type MetricsConfig struct {
	BufferSize int `mapstructure:"buffer_size"`
}

type LoggingConfig struct {
	Level     string `mapstructure:"level"`
	AddSource bool   `mapstructure:"add_source"`
}

// RouteConfig maps a request path prefix to a backend base URL.
type RouteConfig struct {
	Prefix string `mapstructure:"prefix"`
	Target string `mapstructure:"target"`
}

// RewriteConfig replaces every occurrence of Backend in eligible response
// bodies with Public. A Public value containing "host" is expanded to an
// https URL on the request host.
type RewriteConfig struct {
	Public  string `mapstructure:"public"`
	Backend string `mapstructure:"backend"`
}

type Config struct {
	Server      ServerConfig      `mapstructure:"server"`
	Upstream    UpstreamConfig    `mapstructure:"upstream"`
	HealthCheck HealthCheckConfig `mapstructure:"health_check"`
	Metrics     MetricsConfig     `mapstructure:"metrics"`
	Logging     LoggingConfig     `mapstructure:"logging"`
	Routes      []RouteConfig     `mapstructure:"routes"`
	Rewrites    []RewriteConfig   `mapstructure:"rewrites"`
}

// Load reads config.yaml from ./config or the working directory, overlays
// environment variables and validates the result.
func Load() (*Config, error) {
	return LoadFrom("./config", ".")
}

// LoadFrom is Load with explicit search paths.
func LoadFrom(paths ...string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	for _, p := range paths {
		v.AddConfigPath(p)
	}

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			slog.Error("failed to read config file", slog.String("error", err.Error()))
			return nil, err
		}
		slog.Warn("config file not found, using defaults and environment variables")
	} else {
		slog.Info("loaded config file", slog.String("file", v.ConfigFileUsed()))
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		slog.Error("failed to unmarshal config", slog.String("error", err.Error()))
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		slog.Error("invalid configuration", slog.String("error", err.Error()))
		return nil, err
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.environment", EnvDev)
	v.SetDefault("server.address", ":8080")
	v.SetDefault("server.read_timeout", "15s")
	v.SetDefault("server.write_timeout", "60s")
	v.SetDefault("server.idle_timeout", "60s")

	v.SetDefault("upstream.response_header_timeout", "30s")
	v.SetDefault("upstream.dial_timeout", "5s")
	v.SetDefault("upstream.idle_conn_timeout", "90s")
	v.SetDefault("upstream.max_idle_conns_per_host", 32)
	v.SetDefault("upstream.tls_skip_verify", false)

	v.SetDefault("health_check.enabled", true)
	v.SetDefault("health_check.interval", "10s")
	v.SetDefault("health_check.path", "/health")

	v.SetDefault("metrics.buffer_size", 1000)

	v.SetDefault("logging.level", LogLevelInfo)
	v.SetDefault("logging.add_source", false)
}

func (c *Config) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Server,
			validation.Required,
			validation.By(func(value interface{}) error {
				sc, ok := value.(ServerConfig)
				if !ok {
					return validation.NewError("validation_invalid_type", "must be a ServerConfig")
				}
				return validation.ValidateStruct(&sc,
					validation.Field(&sc.Environment,
						validation.Required,
						validation.In(EnvDev, EnvStaging, EnvProd),
					),
					validation.Field(&sc.Address,
						validation.Required,
						validation.By(validateHostPort),
					),
					validation.Field(&sc.ReadTimeout, validation.By(validatePositiveDuration)),
					validation.Field(&sc.WriteTimeout, validation.By(validatePositiveDuration)),
					validation.Field(&sc.IdleTimeout, validation.By(validatePositiveDuration)),
				)
			}),
		),
		validation.Field(&c.Upstream,
			validation.By(func(value interface{}) error {
				uc, ok := value.(UpstreamConfig)
				if !ok {
					return validation.NewError("validation_invalid_type", "must be an UpstreamConfig")
				}
				return validation.ValidateStruct(&uc,
					validation.Field(&uc.ResponseHeaderTimeout, validation.By(validatePositiveDuration)),
					validation.Field(&uc.DialTimeout, validation.By(validatePositiveDuration)),
					validation.Field(&uc.IdleConnTimeout, validation.By(validatePositiveDuration)),
					validation.Field(&uc.MaxIdleConnsPerHost,
						validation.Required,
						validation.Min(1),
					),
				)
			}),
		),
		validation.Field(&c.Logging,
			validation.Required,
			validation.By(func(value interface{}) error {
				lc, ok := value.(LoggingConfig)
				if !ok {
					return validation.NewError("validation_invalid_type", "must be a LoggingConfig")
				}
				return validation.ValidateStruct(&lc,
					validation.Field(&lc.Level,
						validation.Required,
						validation.In(LogLevelDebug, LogLevelInfo, LogLevelWarn, LogLevelError),
					),
				)
			}),
		),
		validation.Field(&c.HealthCheck,
			validation.By(func(value interface{}) error {
				hc, ok := value.(HealthCheckConfig)
				if !ok {
					return validation.NewError("validation_invalid_type", "must be a HealthCheckConfig")
				}
				if !hc.Enabled {
					return nil
				}
				return validation.ValidateStruct(&hc,
					validation.Field(&hc.Interval,
						validation.Required,
						validation.By(validatePositiveDuration),
					),
					validation.Field(&hc.Path,
						validation.Required,
						validation.By(validatePrefix),
					),
				)
			}),
		),
		validation.Field(&c.Metrics,
			validation.By(func(value interface{}) error {
				mc, ok := value.(MetricsConfig)
				if !ok {
					return validation.NewError("validation_invalid_type", "must be a MetricsConfig")
				}
				return validation.ValidateStruct(&mc,
					validation.Field(&mc.BufferSize,
						validation.Required,
						validation.Min(1),
					),
				)
			}),
		),
		validation.Field(&c.Routes,
			validation.Required,
			validation.Length(1, 0),
			validation.Each(validation.By(validateRouteConfig)),
		),
		validation.Field(&c.Rewrites,
			validation.Each(validation.By(validateRewriteConfig)),
			validation.By(validateUniquePublic),
		),
	)
}

// RouteEntries returns the routes in configured order.
func (c *Config) RouteEntries() []route.Entry {
	entries := make([]route.Entry, 0, len(c.Routes))
	for _, r := range c.Routes {
		entries = append(entries, route.Entry{Prefix: r.Prefix, Target: r.Target})
	}
	return entries
}

// RewriteRules returns the rewrite rules in configured order.
func (c *Config) RewriteRules() []rewrite.Rule {
	rules := make([]rewrite.Rule, 0, len(c.Rewrites))
	for _, r := range c.Rewrites {
		rules = append(rules, rewrite.Rule{Public: r.Public, Backend: r.Backend})
	}
	return rules
}

// RouteTargets returns every route target, for building the backend registry.
func (c *Config) RouteTargets() []string {
	targets := make([]string, 0, len(c.Routes))
	for _, r := range c.Routes {
		targets = append(targets, r.Target)
	}
	return targets
}

func validateHostPort(value interface{}) error {
	addr, ok := value.(string)
	if !ok {
		return validation.NewError("validation_invalid_type", "must be a string")
	}

	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return validation.NewError("validation_invalid_hostport", "must be in host:port format")
	}

	if port == "" {
		return validation.NewError("validation_invalid_port", "port cannot be empty")
	}

	if host != "" {
		if err := is.Host.Validate(host); err != nil {
			return validation.NewError("validation_invalid_host", "invalid host")
		}
	}

	return nil
}

func validatePositiveDuration(value interface{}) error {
	d, ok := value.(time.Duration)
	if !ok {
		return validation.NewError("validation_invalid_type", "must be a duration")
	}

	if d <= 0 {
		return validation.NewError("validation_invalid_duration", "must be a positive duration (e.g., 2s, 5m, 1h)")
	}

	return nil
}

func validatePrefix(value interface{}) error {
	p, ok := value.(string)
	if !ok {
		return validation.NewError("validation_invalid_type", "must be a string")
	}

	if !strings.HasPrefix(p, "/") {
		return validation.NewError("validation_invalid_prefix", "must start with '/'")
	}

	return nil
}

func validateServerURL(value interface{}) error {
	serverURL, ok := value.(string)
	if !ok {
		return validation.NewError("validation_invalid_type", "must be a string")
	}

	if serverURL == "" {
		return validation.NewError("validation_empty_url", "server URL cannot be empty")
	}

	parsedURL, err := url.Parse(serverURL)
	if err != nil {
		return validation.NewError("validation_invalid_url", "must be a valid URL")
	}

	if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
		return validation.NewError("validation_invalid_scheme", "URL must use http or https scheme")
	}

	if parsedURL.Host == "" {
		return validation.NewError("validation_missing_host", "URL must have a host")
	}

	if parsedURL.Fragment != "" {
		return validation.NewError("validation_url_fragment", "URL must not have a fragment")
	}

	return nil
}

func validateRouteConfig(value interface{}) error {
	rc, ok := value.(RouteConfig)
	if !ok {
		return validation.NewError("validation_invalid_type", "must be a RouteConfig")
	}

	return validation.ValidateStruct(&rc,
		validation.Field(&rc.Prefix, validation.Required, validation.By(validatePrefix)),
		validation.Field(&rc.Target, validation.Required, validation.By(validateServerURL)),
	)
}

func validateRewriteConfig(value interface{}) error {
	rc, ok := value.(RewriteConfig)
	if !ok {
		return validation.NewError("validation_invalid_type", "must be a RewriteConfig")
	}

	return validation.ValidateStruct(&rc,
		validation.Field(&rc.Backend, validation.Required),
	)
}

func validateUniquePublic(value interface{}) error {
	rewrites, ok := value.([]RewriteConfig)
	if !ok {
		return validation.NewError("validation_invalid_type", "must be a list of rewrites")
	}

	seen := make(map[string]struct{}, len(rewrites))
	for _, r := range rewrites {
		if _, dup := seen[r.Public]; dup {
			return validation.NewError("validation_duplicate_public", "public fragment "+r.Public+" is listed twice")
		}
		seen[r.Public] = struct{}{}
	}

	return nil
}
