package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"

	"github.com/ipfs-shipyard/ipfshttp-tests/logging"
	"github.com/ipfs-shipyard/ipfshttp-tests/runner"
)

func main() {
	os.Exit(run(os.Args))
}

func run(args []string) int {
	var params commandParams
	if !params.Read(args) {
		return 2
	}
	cfg, err := params.Config()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid configuration: %s\n", err)
		return 2
	}

	mainDebugLogger := logging.NullLogger()
	if params.debugAll {
		mainDebugLogger = log.New(os.Stdout, "", log.LstdFlags)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	var daemon *runner.Daemon
	if cfg.Daemon.Start {
		fmt.Printf("Starting daemon %s\n", cfg.Daemon.Binary)
		daemon, err = runner.StartDaemon(ctx, cfg, mainDebugLogger)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Daemon error: %s\n", err)
			return 1
		}
		if params.keepDaemon {
			defer fmt.Printf("Daemon left running with pid %d\n", daemon.PID())
		} else {
			defer func() {
				if err := daemon.Stop(); err != nil {
					fmt.Fprintf(os.Stderr, "Stopping daemon: %s\n", err)
				}
			}()
		}
	}

	fmt.Println()
	if description := params.filters.Describe(); description != "" {
		fmt.Println(description)
	}
	fmt.Println("Running test suite")

	testLogger := &ConsoleTestLogger{
		Out:                  os.Stdout,
		DebugOutputOnSuccess: params.debugAll,
	}
	goTest := runner.GoTest{
		Packages: cfg.Packages,
		Args:     cfg.GoTestArgs,
		Filters:  params.filters,
		Env:      runner.TestEnv(cfg, daemon, params.debug || params.debugAll),
	}
	results, err := goTest.Run(ctx, testLogger, mainDebugLogger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Test run error: %s\n", err)
		return 1
	}

	fmt.Println()
	printResults(os.Stdout, results)
	if cfg.Report != "" {
		if err := runner.WriteReport(cfg.Report, results); err != nil {
			fmt.Fprintln(os.Stderr, err)
			return 1
		}
	}
	if !results.OK() {
		return 1
	}
	return 0
}
