package runner

import (
	"bufio"
	"io"
	"math"
	"regexp"
	"strings"
	"time"

	"github.com/ipfs-shipyard/ipfshttp-tests/logging"

	"github.com/goccy/go-json"
)

// Event is one line of `go test -json` output, as defined by `go doc test2json`.
type Event struct {
	Time       time.Time `json:"Time"`
	Action     string    `json:"Action"`
	Package    string    `json:"Package"`
	ImportPath string    `json:"ImportPath"`
	Test       string    `json:"Test"`
	Elapsed    float64   `json:"Elapsed"`
	Output     string    `json:"Output"`
}

var sourceLocationPrefix = regexp.MustCompile(`^\s*[^\s:]+\.go:\d+: `)

type testState struct {
	id     TestID
	output []logging.CapturedMessage
}

// Collector turns a stream of test2json events into Results, notifying a TestLogger as tests
// start and finish.
type Collector struct {
	logger   TestLogger
	results  Results
	running  map[string]*testState
	order    []string
	packages map[string][]logging.CapturedMessage
}

// NewCollector creates a Collector. A nil logger is allowed.
func NewCollector(logger TestLogger) *Collector {
	if logger == nil {
		logger = nullTestLogger{}
	}
	return &Collector{
		logger:   logger,
		running:  make(map[string]*testState),
		packages: make(map[string][]logging.CapturedMessage),
	}
}

func stateKey(pkg, test string) string {
	return pkg + "\x00" + test
}

// ReadFrom consumes events until r is exhausted. Lines that are not JSON, such as compiler
// errors from older toolchains, are kept as output of an unnamed package.
func (c *Collector) ReadFrom(r io.Reader) (int64, error) {
	var n int64
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		n += int64(len(line)) + 1
		var ev Event
		if len(line) == 0 || line[0] != '{' || json.Unmarshal(line, &ev) != nil {
			c.Handle(Event{Time: time.Now(), Action: "output", Output: string(line)})
			continue
		}
		c.Handle(ev)
	}
	return n, scanner.Err()
}

// Handle processes a single event.
func (c *Collector) Handle(ev Event) {
	switch ev.Action {
	case "run":
		if ev.Test == "" {
			return
		}
		key := stateKey(ev.Package, ev.Test)
		if _, ok := c.running[key]; !ok {
			c.running[key] = &testState{id: parseTestID(ev.Package, ev.Test)}
			c.order = append(c.order, key)
			c.logger.TestStarted(c.running[key].id)
		}
	case "output", "build-output":
		c.output(ev)
	case "pass", "fail", "skip":
		if ev.Test == "" {
			c.finishPackage(ev)
		} else {
			c.finishTest(ev)
		}
	case "build-fail":
		c.results.Packages = append(c.results.Packages, PackageResult{
			Package: ev.ImportPath,
			Outcome: Failed,
			Output:  c.packages[ev.ImportPath],
		})
	}
}

func (c *Collector) output(ev Event) {
	text := strings.TrimRight(ev.Output, "\n")
	if text == "" {
		return
	}
	msg := logging.CapturedMessage{Time: ev.Time, Message: text}
	if ev.Test != "" {
		if state := c.running[stateKey(ev.Package, ev.Test)]; state != nil {
			if !isFramingLine(text) {
				state.output = append(state.output, msg)
			}
			return
		}
	}
	pkg := ev.Package
	if pkg == "" {
		pkg = ev.ImportPath
	}
	c.packages[pkg] = append(c.packages[pkg], msg)
}

func (c *Collector) finishTest(ev Event) {
	key := stateKey(ev.Package, ev.Test)
	state := c.running[key]
	if state == nil {
		state = &testState{id: parseTestID(ev.Package, ev.Test)}
	}
	delete(c.running, key)

	result := TestResult{
		TestID:  state.id,
		Outcome: Outcome(ev.Action),
		Elapsed: time.Duration(math.Round(ev.Elapsed * float64(time.Second))),
		Output:  state.output,
	}
	c.results.Tests = append(c.results.Tests, result)
	switch result.Outcome {
	case Failed:
		c.results.Failures = append(c.results.Failures, result)
		c.logger.TestFinished(result.TestID, true, result.Output)
	case Skipped:
		result.SkipReason = skipReason(state.output)
		c.results.Tests[len(c.results.Tests)-1] = result
		c.results.Skips = append(c.results.Skips, result)
		c.logger.TestSkipped(result.TestID, result.SkipReason)
	default:
		c.logger.TestFinished(result.TestID, false, result.Output)
	}
}

func (c *Collector) finishPackage(ev Event) {
	c.results.Packages = append(c.results.Packages, PackageResult{
		Package: ev.Package,
		Outcome: Outcome(ev.Action),
		Output:  c.packages[ev.Package],
	})
}

// Results returns what has been collected. Tests that started but never finished, because the
// test binary crashed or timed out, are reported as failures.
func (c *Collector) Results() Results {
	ret := c.results
	for _, key := range c.order {
		state := c.running[key]
		if state == nil {
			continue
		}
		result := TestResult{TestID: state.id, Outcome: Failed, Output: state.output}
		ret.Tests = append(ret.Tests, result)
		ret.Failures = append(ret.Failures, result)
	}
	return ret
}

func isFramingLine(text string) bool {
	trimmed := strings.TrimLeft(text, " ")
	return strings.HasPrefix(trimmed, "=== ") || strings.HasPrefix(trimmed, "--- ")
}

// skipReason returns the last message logged with a source location, without the location.
// That is the message passed to t.Skip, since a skipped test stops right after it.
func skipReason(output []logging.CapturedMessage) string {
	for i := len(output) - 1; i >= 0; i-- {
		if loc := sourceLocationPrefix.FindString(output[i].Message); loc != "" {
			return strings.TrimSpace(output[i].Message[len(loc):])
		}
	}
	if len(output) > 0 {
		return strings.TrimSpace(output[len(output)-1].Message)
	}
	return ""
}
