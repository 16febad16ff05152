package config

import (
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"runtime"
	"strings"

	"github.com/searchktools/mini-server/core/static"
)

// EnvPrefix marks environment variables read by Load, e.g. MINI_PORT
const EnvPrefix = "MINI_"

// Config holds all application configuration.
type Config struct {
	Port           int      `config:"port"`
	Workers        int      `config:"workers"`
	QueueSize      int      `config:"queue.size"`
	MaxConnections int      `config:"max.connections"`
	PublicDir      string   `config:"public.dir"`
	StaticPaths    []string `config:"static.paths"`
	TemplatePath   string   `config:"template.path"`
	StatsPath      string   `config:"stats.path"`
	Env            string   `config:"env"`
	LogLevel       string   `config:"log.level"`
	Telemetry      bool     `config:"telemetry"`
	ServiceName    string   `config:"service.name"`
}

// Default returns the configuration used when nothing overrides it
func Default() *Config {
	return &Config{
		Port:         8080,
		Workers:      runtime.NumCPU(),
		QueueSize:    256,
		PublicDir:    "public",
		StaticPaths:  append([]string(nil), static.DefaultPaths...),
		TemplatePath: static.DefaultTemplatePath,
		Env:          "development",
		LogLevel:     "info",
		ServiceName:  "mini-server",
	}
}

// Load builds the configuration from args (without the program name).
// Flags given explicitly win over MINI_* environment variables, which win
// over the JSON file named by -config, which wins over defaults.
func Load(args []string) (*Config, error) {
	cfg := Default()

	fs := flag.NewFlagSet("mini-server", flag.ContinueOnError)
	configFile := fs.String("config", "", "JSON configuration file")
	fs.IntVar(&cfg.Port, "port", cfg.Port, "HTTP server port")
	fs.IntVar(&cfg.Workers, "workers", cfg.Workers, "Connections handled concurrently")
	fs.IntVar(&cfg.QueueSize, "queue-size", cfg.QueueSize, "Accepted connections queued per worker")
	fs.IntVar(&cfg.MaxConnections, "max-connections", cfg.MaxConnections, "Cap on open connections (0 = unlimited)")
	fs.StringVar(&cfg.PublicDir, "public-dir", cfg.PublicDir, "Directory holding static resources")
	fs.Func("static-paths", "Comma-separated whitelist of static paths", func(s string) error {
		cfg.StaticPaths = splitList(s)
		return nil
	})
	fs.StringVar(&cfg.TemplatePath, "template-path", cfg.TemplatePath, "Static path whose {time} placeholder is filled in")
	fs.StringVar(&cfg.StatsPath, "stats-path", cfg.StatsPath, "Serve engine statistics on this GET path (empty disables)")
	fs.StringVar(&cfg.Env, "env", cfg.Env, "Environment (development/production)")
	fs.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "Log level (debug/info/warn/error)")
	fs.BoolVar(&cfg.Telemetry, "telemetry", cfg.Telemetry, "Export traces, metrics and logs over OTLP")
	fs.StringVar(&cfg.ServiceName, "service-name", cfg.ServiceName, "Service name reported to telemetry")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	m := NewManager()
	if *configFile != "" {
		if err := m.LoadFromJSON(*configFile); err != nil {
			return nil, err
		}
	}
	m.LoadFromEnv(EnvPrefix)

	// Explicit flags take precedence over everything loaded so far
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "config":
		case "static-paths":
			m.Set("static.paths", cfg.StaticPaths)
		default:
			m.Set(strings.ReplaceAll(f.Name, "-", "."), f.Value.String())
		}
	})

	if err := m.Unmarshal("", cfg); err != nil {
		return nil, err
	}
	return cfg, cfg.Validate()
}

// Validate checks value ranges
func (c *Config) Validate() error {
	var errs []error
	if c.Port < 0 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("port %d out of range", c.Port))
	}
	if c.Workers <= 0 {
		errs = append(errs, fmt.Errorf("workers must be positive, got %d", c.Workers))
	}
	if c.QueueSize < 0 {
		errs = append(errs, fmt.Errorf("queue size must not be negative, got %d", c.QueueSize))
	}
	if c.MaxConnections < 0 {
		errs = append(errs, fmt.Errorf("max connections must not be negative, got %d", c.MaxConnections))
	}
	if c.StatsPath != "" && !strings.HasPrefix(c.StatsPath, "/") {
		errs = append(errs, fmt.Errorf("stats path %q must start with /", c.StatsPath))
	}
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		errs = append(errs, fmt.Errorf("log level: %w", err))
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	return nil
}

// Addr returns the listen address for Port
func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}

func splitList(s string) []string {
	var out []string
	for _, item := range strings.Split(s, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
