package framework

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/ipfs-shipyard/ipfshttp-tests/client"

	"gopkg.in/launchdarkly/go-sdk-common.v2/ldvalue"
)

// Environment variables read by ConfigFromEnv and Daemon. The runner sets them for the test
// processes it starts.
const (
	EnvAPIAddr       = "IPFSHTTP_TEST_API"
	EnvTimeoutMS     = "IPFSHTTP_TEST_TIMEOUT_MS"
	EnvDebug         = "IPFSHTTP_TEST_DEBUG"
	EnvDaemonPID     = "IPFSHTTP_TEST_DAEMON_PID"
	EnvDaemonOffline = "IPFSHTTP_TEST_DAEMON_OFFLINE"
)

// Config describes how fixtures reach the daemon.
type Config struct {
	// APIAddr is the daemon API address; see client.Options.Addr.
	APIAddr string

	// TimeoutMS bounds each request. Undefined means client.DefaultTimeout; a defined 0 means
	// requests are only bounded by their context.
	TimeoutMS ldvalue.OptionalInt

	// Debug makes function-scoped clients log their requests for every test, not only for
	// failed ones.
	Debug bool
}

// ConfigFromEnv builds a Config from the IPFSHTTP_TEST_* environment variables.
func ConfigFromEnv() (Config, error) {
	c := Config{APIAddr: os.Getenv(EnvAPIAddr)}
	if c.APIAddr == "" {
		c.APIAddr = client.DefaultAddr
	}
	if s := os.Getenv(EnvTimeoutMS); s != "" {
		ms, err := strconv.Atoi(s)
		if err != nil || ms < 0 {
			return Config{}, fmt.Errorf("%s must be a non-negative integer, got %q", EnvTimeoutMS, s)
		}
		c.TimeoutMS = ldvalue.NewOptionalInt(ms)
	}
	if s := os.Getenv(EnvDebug); s != "" {
		debug, err := strconv.ParseBool(s)
		if err != nil {
			return Config{}, fmt.Errorf("%s must be a boolean, got %q", EnvDebug, s)
		}
		c.Debug = debug
	}
	return c, nil
}

// ClientOptions returns the client options for a handle in the given mode.
func (c Config) ClientOptions(offline bool) client.Options {
	opts := client.Options{Addr: c.APIAddr, Offline: offline, Timeout: client.DefaultTimeout}
	if c.TimeoutMS.IsDefined() {
		opts.Timeout = time.Duration(c.TimeoutMS.IntValue()) * time.Millisecond
	}
	return opts
}

// DaemonInfo describes a daemon process started by the test runner.
type DaemonInfo struct {
	PID     int
	Offline bool
}

// Daemon returns the daemon started by the test runner, or nil if the tests were started some
// other way, for instance against a daemon that was already running.
func Daemon() *DaemonInfo {
	pid, err := strconv.Atoi(os.Getenv(EnvDaemonPID))
	if err != nil || pid <= 0 {
		return nil
	}
	offline, _ := strconv.ParseBool(os.Getenv(EnvDaemonOffline))
	return &DaemonInfo{PID: pid, Offline: offline}
}
