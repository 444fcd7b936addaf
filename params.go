package main

import (
	"fmt"
	"os"

	"github.com/ipfs-shipyard/ipfshttp-tests/runner"

	"github.com/spf13/pflag"
)

type commandParams struct {
	configPath  string
	ipfsBinary  string
	api         string
	repo        string
	offline     bool
	startDaemon bool
	noDaemon    bool
	keepDaemon  bool
	timeoutMS   int
	report      string
	filters     runner.RegexFilters
	debug       bool
	debugAll    bool
	packages    []string

	flags *pflag.FlagSet
}

func (c *commandParams) Read(args []string) bool {
	fs := pflag.NewFlagSet(args[0], pflag.ContinueOnError)
	fs.StringVar(&c.configPath, "config", "", "YAML or JSON file describing the test run")
	fs.StringVar(&c.ipfsBinary, "ipfs", "", "ipfs executable used to start the daemon")
	fs.StringVar(&c.api, "api", "", "daemon API address, as a multiaddr or URL")
	fs.StringVar(&c.repo, "repo", "", "IPFS_PATH of the daemon to start; initialized if empty")
	fs.BoolVar(&c.offline, "offline", false, "start the daemon without networking")
	fs.BoolVar(&c.startDaemon, "start-daemon", false, "start a daemon for the test run")
	fs.BoolVar(&c.noDaemon, "no-daemon", false, "do not start a daemon, even if the config file says so")
	fs.BoolVar(&c.keepDaemon, "keep-daemon", false, "leave the started daemon running after the tests")
	fs.IntVar(&c.timeoutMS, "timeout-ms", 0, "timeout for each request the tests make, in milliseconds; 0 disables it")
	fs.StringVar(&c.report, "report", "", "write the results as JSON to this file")
	fs.Var(&c.filters.MustMatch, "run", "regex pattern(s) to select tests to run")
	fs.Var(&c.filters.MustNotMatch, "skip", "regex pattern(s) to select tests not to run")
	fs.BoolVar(&c.debug, "debug", false, "show the requests made by failed tests")
	fs.BoolVar(&c.debugAll, "debug-all", false, "show the requests made by all tests, and runner debug output")
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [flags] [packages...]\n", args[0])
		fs.PrintDefaults()
	}

	if err := fs.Parse(args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, err)
		fs.Usage()
		return false
	}
	if c.startDaemon && c.noDaemon {
		fmt.Fprintln(os.Stderr, "--start-daemon and --no-daemon are mutually exclusive")
		fs.Usage()
		return false
	}
	c.packages = fs.Args()
	c.flags = fs
	return true
}

// Config loads the config file, if any, and applies the flags that were given on top of it.
func (c *commandParams) Config() (runner.Config, error) {
	cfg := runner.DefaultConfig()
	if c.configPath != "" {
		loaded, err := runner.LoadConfig(c.configPath)
		if err != nil {
			return runner.Config{}, err
		}
		cfg = loaded
	}

	if c.changed("ipfs") {
		cfg.Daemon.Binary = c.ipfsBinary
	}
	if c.changed("api") {
		cfg.API = c.api
	}
	if c.changed("repo") {
		cfg.Daemon.Repo = c.repo
	}
	if c.changed("offline") {
		cfg.Daemon.Offline = c.offline
	}
	if c.changed("timeout-ms") {
		timeoutMS := c.timeoutMS
		cfg.TimeoutMS = &timeoutMS
	}
	if c.changed("report") {
		cfg.Report = c.report
	}
	if c.startDaemon {
		cfg.Daemon.Start = true
	}
	if c.noDaemon {
		cfg.Daemon.Start = false
	}
	if len(c.packages) > 0 {
		cfg.Packages = c.packages
	}
	return cfg, cfg.Validate()
}

func (c *commandParams) changed(name string) bool {
	return c.flags != nil && c.flags.Changed(name)
}
