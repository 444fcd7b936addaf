package runner

import (
	"strings"
	"time"

	"github.com/ipfs-shipyard/ipfshttp-tests/logging"
)

// TestID identifies one test or subtest of a run.
type TestID struct {
	Package string
	Path    []string
}

func (t TestID) String() string {
	return strings.Join(t.Path, "/")
}

// Parent returns the ID of the enclosing test, or false for a top-level test.
func (t TestID) Parent() (TestID, bool) {
	if len(t.Path) < 2 {
		return TestID{}, false
	}
	return TestID{Package: t.Package, Path: t.Path[:len(t.Path)-1]}, true
}

func parseTestID(pkg, name string) TestID {
	return TestID{Package: pkg, Path: strings.Split(name, "/")}
}

type Outcome string

const (
	Passed  Outcome = "pass"
	Failed  Outcome = "fail"
	Skipped Outcome = "skip"
)

type TestResult struct {
	TestID     TestID
	Outcome    Outcome
	SkipReason string
	Elapsed    time.Duration
	Output     logging.CapturedOutput
}

type PackageResult struct {
	Package string
	Outcome Outcome
	Output  logging.CapturedOutput
}

// Results is the outcome of a whole run. Skipped tests are not failures: without a daemon,
// every test that needs one is skipped and the run still succeeds.
type Results struct {
	Tests    []TestResult
	Failures []TestResult
	Skips    []TestResult
	Packages []PackageResult
}

func (r Results) OK() bool {
	if len(r.Failures) != 0 {
		return false
	}
	for _, p := range r.Packages {
		if p.Outcome == Failed {
			return false
		}
	}
	return true
}

// Passed returns the number of tests that neither failed nor were skipped.
func (r Results) Passed() int {
	return len(r.Tests) - len(r.Failures) - len(r.Skips)
}

// TestLogger is notified as test events arrive.
type TestLogger interface {
	TestStarted(id TestID)
	TestFinished(id TestID, failed bool, output logging.CapturedOutput)
	TestSkipped(id TestID, reason string)
}

type nullTestLogger struct{}

func (n nullTestLogger) TestStarted(TestID)                                {}
func (n nullTestLogger) TestFinished(TestID, bool, logging.CapturedOutput) {}
func (n nullTestLogger) TestSkipped(TestID, string)                        {}
