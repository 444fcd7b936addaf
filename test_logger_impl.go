package main

import (
	"fmt"
	"io"

	"github.com/ipfs-shipyard/ipfshttp-tests/logging"
	"github.com/ipfs-shipyard/ipfshttp-tests/runner"

	"github.com/fatih/color"
)

var (
	failedColor  = color.New(color.FgRed, color.Bold)
	skippedColor = color.New(color.FgYellow)
	passedColor  = color.New(color.FgGreen)
)

type ConsoleTestLogger struct {
	Out                  io.Writer
	DebugOutputOnSuccess bool
}

func (c *ConsoleTestLogger) TestStarted(id runner.TestID) {
	fmt.Fprintf(c.Out, "[%s]\n", id)
}

func (c *ConsoleTestLogger) TestFinished(id runner.TestID, failed bool, output logging.CapturedOutput) {
	if failed {
		failedColor.Fprintf(c.Out, "  FAILED: %s\n", id)
	}
	if len(output) > 0 && (failed || c.DebugOutputOnSuccess) {
		for _, m := range output {
			fmt.Fprintf(c.Out, "    %s\n", m.Message)
		}
	}
}

func (c *ConsoleTestLogger) TestSkipped(id runner.TestID, reason string) {
	if reason == "" {
		skippedColor.Fprintf(c.Out, "  SKIPPED: %s\n", id)
	} else {
		skippedColor.Fprintf(c.Out, "  SKIPPED: %s (%s)\n", id, reason)
	}
}

func printResults(out io.Writer, results runner.Results) {
	for _, p := range results.Packages {
		if p.Outcome == runner.Failed && len(p.Output) > 0 {
			failedColor.Fprintf(out, "Package %s failed:\n", p.Package)
			p.Output.Dump(out, "  ")
		}
	}

	summary := fmt.Sprintf("%d passed, %d failed, %d skipped",
		results.Passed(), len(results.Failures), len(results.Skips))
	switch {
	case !results.OK():
		failedColor.Fprintf(out, "FAIL: %s\n", summary)
		for _, f := range results.Failures {
			fmt.Fprintf(out, "  %s\n", f.TestID)
		}
	case len(results.Tests) > 0 && len(results.Skips) == len(results.Tests):
		skippedColor.Fprintf(out, "SKIPPED: %s\n", summary)
	default:
		passedColor.Fprintf(out, "PASS: %s\n", summary)
	}
}
