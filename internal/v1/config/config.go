// Package config resolves the server's configuration from CLI flags
// and environment variables. Flags cover the documented CLI surface;
// the environment covers operational knobs with defaults. All
// validation failures are collected and reported together.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/pflag"
)

// Config holds the validated runtime configuration.
type Config struct {
	// CLI surface
	ShowVersion    bool
	Port           uint16
	MaxConnections int

	// Environment knobs
	MaxFrameBytes int
	MetricsAddr   string // empty disables the ops HTTP endpoint
	Development   bool
}

const (
	defaultPort           = 31337
	defaultMaxConnections = 256
	defaultMaxFrameBytes  = 64 * 1024
)

// Load parses args (excluding the program name) and the environment
// into a Config.
func Load(args []string) (*Config, error) {
	cfg := &Config{}

	flags := pflag.NewFlagSet("incognita-socket-server", pflag.ContinueOnError)
	flags.BoolVar(&cfg.ShowVersion, "version", false, "Print version number and then exit")
	flags.Uint16VarP(&cfg.Port, "port", "p", defaultPort, "Listen on this port")
	flags.IntVar(&cfg.MaxConnections, "max-connections", defaultMaxConnections, "Maximum concurrent client connections")
	if err := flags.Parse(args); err != nil {
		return nil, err
	}

	var errs []string

	maxFrameBytes, err := getEnvIntOrDefault("MAX_FRAME_BYTES", defaultMaxFrameBytes)
	if err != nil {
		errs = append(errs, err.Error())
	}
	cfg.MaxFrameBytes = maxFrameBytes
	cfg.MetricsAddr = os.Getenv("METRICS_ADDR")
	cfg.Development = os.Getenv("DEVELOPMENT_MODE") == "true"

	if cfg.MaxConnections <= 0 {
		errs = append(errs, fmt.Sprintf("--max-connections must be positive (got %d)", cfg.MaxConnections))
	}
	if cfg.MaxFrameBytes <= 0 {
		errs = append(errs, fmt.Sprintf("MAX_FRAME_BYTES must be positive (got %d)", cfg.MaxFrameBytes))
	}

	if len(errs) > 0 {
		return nil, fmt.Errorf("configuration validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}

	return cfg, nil
}

// ListenAddr is the TCP bind address for the lobby listener.
func (c *Config) ListenAddr() string {
	return fmt.Sprintf("0.0.0.0:%d", c.Port)
}

func getEnvIntOrDefault(key string, defaultValue int) (int, error) {
	raw, ok := os.LookupEnv(key)
	if !ok || raw == "" {
		return defaultValue, nil
	}
	parsed, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s=%q: %v", key, raw, err)
	}
	return parsed, nil
}
