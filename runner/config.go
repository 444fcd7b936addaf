package runner

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ipfs-shipyard/ipfshttp-tests/client"

	"github.com/goccy/go-json"
	"github.com/tailscale/hujson"
	"gopkg.in/yaml.v3"
)

// Config describes a test run: which daemon to start, if any, and which test packages to run
// against it.
type Config struct {
	Daemon DaemonConfig `yaml:"daemon" json:"daemon"`

	// API is the daemon API address given to the tests. If a daemon is started, it is told to
	// listen there.
	API string `yaml:"api" json:"api"`

	// TimeoutMS bounds each request the fixtures' clients make; 0 means unbounded. If unset the
	// fixtures use client.DefaultTimeout.
	TimeoutMS *int `yaml:"timeout_ms" json:"timeout_ms"`

	// Packages are the `go test` package patterns to run.
	Packages []string `yaml:"packages" json:"packages"`

	// GoTestArgs are passed to `go test` before the package patterns.
	GoTestArgs []string `yaml:"go_test_args" json:"go_test_args"`

	// Report, if set, is a file the results are written to as JSON.
	Report string `yaml:"report" json:"report"`
}

type DaemonConfig struct {
	// Start makes the runner spawn a daemon for the run; otherwise one must already be
	// listening at API.
	Start bool `yaml:"start" json:"start"`

	// Binary is the ipfs executable.
	Binary string `yaml:"binary" json:"binary"`

	// Repo is passed to the daemon as IPFS_PATH. Empty means the daemon's default.
	Repo string `yaml:"repo" json:"repo"`

	// Offline starts the daemon without networking.
	Offline bool `yaml:"offline" json:"offline"`

	// Args are extra arguments after `daemon`.
	Args []string `yaml:"args" json:"args"`

	// StartTimeoutMS is how long to wait for the API to answer after starting the daemon.
	StartTimeoutMS int `yaml:"start_timeout_ms" json:"start_timeout_ms"`
}

const (
	defaultBinary         = "ipfs"
	defaultStartTimeoutMS = 30000
)

// DefaultConfig returns the configuration used when no file is given.
func DefaultConfig() Config {
	return Config{
		Daemon: DaemonConfig{
			Binary:         defaultBinary,
			StartTimeoutMS: defaultStartTimeoutMS,
		},
		API:      client.DefaultAddr,
		Packages: []string{"./functional/..."},
	}
}

// LoadConfig reads a configuration file over the defaults. Files ending in .json or .jsonc are
// parsed as JSON with comments and trailing commas allowed; anything else is parsed as YAML.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("reading config: %w", err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".json", ".jsonc":
		standardized, err := hujson.Standardize(data)
		if err != nil {
			return Config{}, fmt.Errorf("parsing %s: %w", path, err)
		}
		if err := json.Unmarshal(standardized, &cfg); err != nil {
			return Config{}, fmt.Errorf("parsing %s: %w", path, err)
		}
	default:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parsing %s: %w", path, err)
		}
	}
	return cfg, cfg.Validate()
}

// Validate checks the configuration for values that cannot work.
func (c Config) Validate() error {
	var errs []error
	if _, err := client.BaseURL(c.API); err != nil {
		errs = append(errs, fmt.Errorf("api: %w", err))
	}
	if c.TimeoutMS != nil && *c.TimeoutMS < 0 {
		errs = append(errs, errors.New("timeout_ms must not be negative"))
	}
	if len(c.Packages) == 0 {
		errs = append(errs, errors.New("packages must not be empty"))
	}
	if c.Daemon.Start {
		if c.Daemon.Binary == "" {
			errs = append(errs, errors.New("daemon.binary is required when daemon.start is set"))
		}
		if c.Daemon.StartTimeoutMS <= 0 {
			errs = append(errs, errors.New("daemon.start_timeout_ms must be positive"))
		}
	}
	return errors.Join(errs...)
}
