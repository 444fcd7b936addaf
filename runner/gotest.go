package runner

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strconv"

	"github.com/ipfs-shipyard/ipfshttp-tests/framework"
	"github.com/ipfs-shipyard/ipfshttp-tests/logging"
)

// GoTest describes one `go test -json` invocation.
type GoTest struct {
	// GoBinary is the go command; defaults to "go".
	GoBinary string
	Dir      string
	Packages []string
	Args     []string
	Filters  RegexFilters

	// Env is added to the environment of the test processes.
	Env []string
}

// TestEnv returns the environment variables that point the fixtures at the daemon under test.
func TestEnv(cfg Config, daemon *Daemon, debug bool) []string {
	env := []string{framework.EnvAPIAddr + "=" + cfg.API}
	if cfg.TimeoutMS != nil {
		env = append(env, framework.EnvTimeoutMS+"="+strconv.Itoa(*cfg.TimeoutMS))
	}
	if debug {
		env = append(env, framework.EnvDebug+"=true")
	}
	if daemon != nil {
		env = append(env,
			framework.EnvDaemonPID+"="+strconv.Itoa(daemon.PID()),
			framework.EnvDaemonOffline+"="+strconv.FormatBool(daemon.Offline()),
		)
	}
	return env
}

func (g GoTest) command() (string, []string) {
	name := g.GoBinary
	if name == "" {
		name = "go"
	}
	args := []string{"test", "-json"}
	args = append(args, g.Filters.GoTestArgs()...)
	args = append(args, g.Args...)
	args = append(args, g.Packages...)
	return name, args
}

// Run runs the tests and collects their results, notifying testLogger as tests finish. A
// non-zero exit status of `go test` is not an error in itself, since failing tests cause one;
// the returned Results tell whether the run succeeded.
func (g GoTest) Run(ctx context.Context, testLogger TestLogger, logger logging.Logger) (Results, error) {
	if logger == nil {
		logger = logging.NullLogger()
	}
	name, args := g.command()
	logger.Printf("Running: %s", describeCommand(g.Env, name, args...))

	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = g.Dir
	cmd.Env = append(os.Environ(), g.Env...)
	cmd.Stderr = &logWriter{logger: logger}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return Results{}, err
	}
	if err := cmd.Start(); err != nil {
		return Results{}, fmt.Errorf("starting go test: %w", err)
	}

	collector := NewCollector(testLogger)
	_, readErr := collector.ReadFrom(stdout)
	waitErr := cmd.Wait()
	results := collector.Results()

	if readErr != nil {
		return results, fmt.Errorf("reading go test output: %w", readErr)
	}
	var exitErr *exec.ExitError
	if waitErr != nil && !errors.As(waitErr, &exitErr) {
		return results, fmt.Errorf("running go test: %w", waitErr)
	}
	if exitErr != nil && len(results.Tests) == 0 && len(results.Packages) == 0 {
		return results, fmt.Errorf("go test failed without reporting any results: %w", waitErr)
	}
	return results, nil
}

type logWriter struct {
	logger logging.Logger
}

func (w *logWriter) Write(p []byte) (int, error) {
	w.logger.Printf("%s", string(p))
	return len(p), nil
}
