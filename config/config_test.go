package config_test

import (
	"os"
	"path/filepath"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/angeloszaimis/rewriting-gateway/config"
	"github.com/angeloszaimis/rewriting-gateway/internal/rewrite"
	"github.com/angeloszaimis/rewriting-gateway/internal/route"
)

const validConfig = `
server:
  address: ":8080"
  environment: "dev"
  read_timeout: "5s"

upstream:
  response_header_timeout: "20s"
  max_idle_conns_per_host: 8

health_check:
  interval: "10s"
  path: "/healthz"

routes:
  - prefix: "/api"
    target: "http://api.internal:9000/v1"
  - prefix: "/"
    target: "http://web.internal:9100"

rewrites:
  - public: "/api/"
    backend: "http://api.internal:9000/v1/"
  - public: "host/static"
    backend: "http://web.internal:9100/static"

logging:
  level: "info"
`

func validBase() *config.Config {
	return &config.Config{
		Server: config.ServerConfig{
			Address:      ":8080",
			Environment:  config.EnvDev,
			ReadTimeout:  time.Second,
			WriteTimeout: time.Second,
			IdleTimeout:  time.Second,
		},
		Upstream: config.UpstreamConfig{
			ResponseHeaderTimeout: time.Second,
			DialTimeout:           time.Second,
			IdleConnTimeout:       time.Second,
			MaxIdleConnsPerHost:   1,
		},
		HealthCheck: config.HealthCheckConfig{Enabled: true, Interval: time.Second, Path: "/health"},
		Metrics:     config.MetricsConfig{BufferSize: 10},
		Logging:     config.LoggingConfig{Level: config.LogLevelInfo},
		Routes:      []config.RouteConfig{{Prefix: "/api", Target: "http://localhost:9000"}},
	}
}

var _ = Describe("Config", func() {
	var tempDir string

	BeforeEach(func() {
		var err error
		tempDir, err = os.MkdirTemp("", "config-test-*")
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		os.RemoveAll(tempDir)
		os.Unsetenv("SERVER_ADDRESS")
		os.Unsetenv("LOGGING_LEVEL")
	})

	writeConfig := func(content string) {
		err := os.WriteFile(filepath.Join(tempDir, "config.yaml"), []byte(content), 0644)
		Expect(err).NotTo(HaveOccurred())
	}

	Describe("LoadFrom", func() {
		Context("with valid config file", func() {
			BeforeEach(func() {
				writeConfig(validConfig)
			})

			It("should load configuration successfully", func() {
				cfg, err := config.LoadFrom(tempDir)
				Expect(err).NotTo(HaveOccurred())
				Expect(cfg).NotTo(BeNil())
			})

			It("should keep routes in file order", func() {
				cfg, _ := config.LoadFrom(tempDir)
				Expect(cfg.RouteEntries()).To(Equal([]route.Entry{
					{Prefix: "/api", Target: "http://api.internal:9000/v1"},
					{Prefix: "/", Target: "http://web.internal:9100"},
				}))
			})

			It("should keep rewrite rules as written", func() {
				cfg, _ := config.LoadFrom(tempDir)
				Expect(cfg.RewriteRules()).To(Equal([]rewrite.Rule{
					{Public: "/api/", Backend: "http://api.internal:9000/v1/"},
					{Public: "host/static", Backend: "http://web.internal:9100/static"},
				}))
			})

			It("should parse durations", func() {
				cfg, _ := config.LoadFrom(tempDir)
				Expect(cfg.Server.ReadTimeout).To(Equal(5 * time.Second))
				Expect(cfg.Upstream.ResponseHeaderTimeout).To(Equal(20 * time.Second))
				Expect(cfg.HealthCheck.Interval).To(Equal(10 * time.Second))
			})

			It("should fill unset values with defaults", func() {
				cfg, _ := config.LoadFrom(tempDir)
				Expect(cfg.Server.WriteTimeout).To(Equal(60 * time.Second))
				Expect(cfg.Upstream.DialTimeout).To(Equal(5 * time.Second))
				Expect(cfg.HealthCheck.Enabled).To(BeTrue())
				Expect(cfg.Metrics.BufferSize).To(Equal(1000))
			})

			It("should list route targets for the backend registry", func() {
				cfg, _ := config.LoadFrom(tempDir)
				Expect(cfg.RouteTargets()).To(ConsistOf(
					"http://api.internal:9000/v1",
					"http://web.internal:9100",
				))
			})
		})

		Context("with the shipped example config", func() {
			It("should load and apply rewrites in descending key order", func() {
				cfg, err := config.LoadFrom(".")
				Expect(err).NotTo(HaveOccurred())

				table, err := rewrite.NewTable(cfg.RewriteRules())
				Expect(err).NotTo(HaveOccurred())

				rules := table.Rules()
				Expect(rules).To(HaveLen(2))
				Expect(rules[0].Public).To(Equal("host/static"))
				Expect(rules[1].Public).To(Equal("host/api"))
			})
		})

		Context("with environment variables", func() {
			BeforeEach(func() {
				writeConfig(validConfig)
				os.Setenv("SERVER_ADDRESS", "127.0.0.1:9090")
				os.Setenv("LOGGING_LEVEL", "debug")
			})

			It("should let the environment override the file", func() {
				cfg, err := config.LoadFrom(tempDir)
				Expect(err).NotTo(HaveOccurred())
				Expect(cfg.Server.Address).To(Equal("127.0.0.1:9090"))
				Expect(cfg.Logging.Level).To(Equal("debug"))
			})
		})

		Context("without a config file", func() {
			It("should fail because no routes are configured", func() {
				cfg, err := config.LoadFrom(tempDir)
				Expect(err).To(HaveOccurred())
				Expect(cfg).To(BeNil())
			})
		})

		Context("with malformed YAML", func() {
			It("should return the parse error", func() {
				writeConfig("routes: [unterminated")
				_, err := config.LoadFrom(tempDir)
				Expect(err).To(HaveOccurred())
			})
		})
	})

	Describe("Validate", func() {
		var cfg *config.Config

		BeforeEach(func() {
			cfg = validBase()
		})

		It("should accept a complete configuration", func() {
			Expect(cfg.Validate()).To(Succeed())
		})

		DescribeTable("rejecting invalid settings",
			func(mutate func(*config.Config)) {
				mutate(cfg)
				Expect(cfg.Validate()).NotTo(Succeed())
			},
			Entry("unknown environment", func(c *config.Config) { c.Server.Environment = "qa" }),
			Entry("address without port", func(c *config.Config) { c.Server.Address = "localhost" }),
			Entry("unknown log level", func(c *config.Config) { c.Logging.Level = "verbose" }),
			Entry("negative upstream timeout", func(c *config.Config) { c.Upstream.DialTimeout = -time.Second }),
			Entry("no idle connections", func(c *config.Config) { c.Upstream.MaxIdleConnsPerHost = 0 }),
			Entry("zero metrics buffer", func(c *config.Config) { c.Metrics.BufferSize = 0 }),
			Entry("no routes", func(c *config.Config) { c.Routes = nil }),
			Entry("prefix without slash", func(c *config.Config) {
				c.Routes = []config.RouteConfig{{Prefix: "api", Target: "http://localhost:9000"}}
			}),
			Entry("relative target", func(c *config.Config) {
				c.Routes = []config.RouteConfig{{Prefix: "/api", Target: "/v1"}}
			}),
			Entry("ftp target", func(c *config.Config) {
				c.Routes = []config.RouteConfig{{Prefix: "/api", Target: "ftp://localhost"}}
			}),
			Entry("target with fragment", func(c *config.Config) {
				c.Routes = []config.RouteConfig{{Prefix: "/api", Target: "http://localhost:9000/#top"}}
			}),
			Entry("empty backend fragment", func(c *config.Config) {
				c.Rewrites = []config.RewriteConfig{{Public: "/api/", Backend: ""}}
			}),
			Entry("duplicate public fragment", func(c *config.Config) {
				c.Rewrites = []config.RewriteConfig{
					{Public: "/api/", Backend: "http://a"},
					{Public: "/api/", Backend: "http://b"},
				}
			}),
			Entry("health path without slash", func(c *config.Config) { c.HealthCheck.Path = "health" }),
		)

		It("should skip health check settings when disabled", func() {
			cfg.HealthCheck = config.HealthCheckConfig{Enabled: false}
			Expect(cfg.Validate()).To(Succeed())
		})

		It("should accept an empty rewrite public fragment", func() {
			cfg.Rewrites = []config.RewriteConfig{{Public: "", Backend: "http://internal"}}
			Expect(cfg.Validate()).To(Succeed())
		})
	})
})
