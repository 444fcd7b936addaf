package runner

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/ipfs-shipyard/ipfshttp-tests/client"
	"github.com/ipfs-shipyard/ipfshttp-tests/logging"

	"github.com/alessio/shellescape"
	ma "github.com/multiformats/go-multiaddr"
)

const (
	readinessPollInterval = 100 * time.Millisecond
	readinessProbeTimeout = 2 * time.Second
	stopGracePeriod       = 10 * time.Second
)

type commandBuilder []string

func (b *commandBuilder) add(args ...string) {
	for _, a := range args {
		*b = append(*b, shellescape.Quote(a))
	}
}

func (b commandBuilder) String() string {
	return strings.Join(b, " ")
}

func describeCommand(env []string, name string, args ...string) string {
	var b commandBuilder
	b.add(env...)
	b.add(name)
	b.add(args...)
	return b.String()
}

// Daemon is a daemon process started by StartDaemon.
type Daemon struct {
	cmd     *exec.Cmd
	api     string
	offline bool
	logger  logging.Logger
	output  logging.Logger
	exited  chan struct{}
	waitErr error
	stop    sync.Once
	stopErr error
}

// StartDaemon starts `ipfs daemon` as described by cfg and waits until its API answers a
// version request.
//
// If cfg.Daemon.Repo is set, the daemon runs with that IPFS_PATH; the repo is initialized first
// if it has no config file, and its API address is set to cfg.API. Without a repo the daemon's
// own configuration decides where it listens.
func StartDaemon(ctx context.Context, cfg Config, logger logging.Logger) (*Daemon, error) {
	if logger == nil {
		logger = logging.NullLogger()
	}
	env := daemonEnv(cfg.Daemon)

	if cfg.Daemon.Repo != "" {
		if err := prepareRepo(ctx, cfg, env, logger); err != nil {
			return nil, err
		}
	}

	args := []string{"daemon"}
	if cfg.Daemon.Offline {
		args = append(args, "--offline")
	}
	args = append(args, cfg.Daemon.Args...)

	logger.Printf("Starting daemon: %s", describeCommand(env, cfg.Daemon.Binary, args...))
	cmd := exec.Command(cfg.Daemon.Binary, args...)
	cmd.Env = append(os.Environ(), env...)
	output, err := cmd.StdoutPipe()
	if err != nil {
		return nil, err
	}
	cmd.Stderr = cmd.Stdout
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("starting daemon: %w", err)
	}

	d := &Daemon{
		cmd:     cmd,
		api:     cfg.API,
		offline: cfg.Daemon.Offline,
		logger:  logger,
		output:  logging.WithPrefix(logger, "daemon: "),
		exited:  make(chan struct{}),
	}
	go d.forward(output)

	timeout := time.Duration(cfg.Daemon.StartTimeoutMS) * time.Millisecond
	if err := d.waitUntilReady(ctx, timeout); err != nil {
		_ = d.Stop()
		return nil, err
	}
	return d, nil
}

func daemonEnv(cfg DaemonConfig) []string {
	if cfg.Repo == "" {
		return nil
	}
	repo, err := filepath.Abs(cfg.Repo)
	if err != nil {
		repo = cfg.Repo
	}
	return []string{"IPFS_PATH=" + repo}
}

func prepareRepo(ctx context.Context, cfg Config, env []string, logger logging.Logger) error {
	if _, err := os.Stat(filepath.Join(cfg.Daemon.Repo, "config")); errors.Is(err, os.ErrNotExist) {
		if err := os.MkdirAll(cfg.Daemon.Repo, 0o755); err != nil {
			return fmt.Errorf("creating repo: %w", err)
		}
		if err := runCommand(ctx, env, logger, cfg.Daemon.Binary, "init", "--profile", "test"); err != nil {
			return err
		}
	}
	if _, err := ma.NewMultiaddr(cfg.API); err != nil {
		logger.Printf("API address %s is not a multiaddr, leaving the repo's API address unchanged", cfg.API)
		return nil
	}
	return runCommand(ctx, env, logger, cfg.Daemon.Binary, "config", "Addresses.API", cfg.API)
}

func runCommand(ctx context.Context, env []string, logger logging.Logger, name string, args ...string) error {
	desc := describeCommand(env, name, args...)
	logger.Printf("Running: %s", desc)
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Env = append(os.Environ(), env...)
	output, err := cmd.CombinedOutput()
	if len(output) > 0 {
		logger.Printf("Output of %s: %s", name, strings.TrimSpace(string(output)))
	}
	if err != nil {
		return fmt.Errorf("running %s: %w", desc, err)
	}
	return nil
}

func (d *Daemon) forward(output io.Reader) {
	scanner := bufio.NewScanner(output)
	for scanner.Scan() {
		d.output.Printf("%s", scanner.Text())
	}
	d.waitErr = d.cmd.Wait()
	close(d.exited)
}

func (d *Daemon) waitUntilReady(ctx context.Context, timeout time.Duration) error {
	d.logger.Printf("Waiting for daemon API at %s", d.api)
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	opts := client.Options{Addr: d.api, Timeout: readinessProbeTimeout}
	for {
		c, err := client.Connect(ctx, opts)
		if err == nil {
			_ = c.Close()
			d.logger.Printf("Daemon is ready (pid %d)", d.PID())
			return nil
		}
		if errors.Is(err, client.ErrVersionMismatch) || errors.Is(err, client.ErrAddress) {
			return err
		}
		select {
		case <-d.exited:
			return fmt.Errorf("daemon exited before its API was ready: %v", d.waitErr)
		case <-ctx.Done():
			return fmt.Errorf("timed out waiting for daemon API, result of last query was: %w", err)
		case <-time.After(readinessPollInterval):
		}
	}
}

// PID returns the daemon's process ID.
func (d *Daemon) PID() int {
	return d.cmd.Process.Pid
}

// Offline reports whether the daemon was started without networking.
func (d *Daemon) Offline() bool {
	return d.offline
}

// Exited is closed when the daemon process has exited.
func (d *Daemon) Exited() <-chan struct{} {
	return d.exited
}

// Stop interrupts the daemon and waits for it to exit, killing it if it does not exit within
// a grace period. Calling Stop again has no effect.
func (d *Daemon) Stop() error {
	d.stop.Do(func() {
		select {
		case <-d.exited:
			return
		default:
		}
		d.logger.Printf("Stopping daemon (pid %d)", d.PID())
		if err := d.cmd.Process.Signal(os.Interrupt); err != nil {
			d.stopErr = d.cmd.Process.Kill()
		}
		select {
		case <-d.exited:
		case <-time.After(stopGracePeriod):
			d.logger.Printf("Daemon did not exit after interrupt, killing it")
			d.stopErr = d.cmd.Process.Kill()
			<-d.exited
		}
	})
	return d.stopErr
}
