package framework

import (
	"fmt"
	"strings"
)

// recordingT runs a test body outside the Go test runner so that tests can observe failures and
// skips without failing themselves. Like testing.T, Fatalf and Skip stop the body, and cleanup
// functions run in reverse order once the body has exited, however it exited.
type recordingT struct {
	name       string
	failed     bool
	skipped    bool
	skipReason string
	errors     []string
	logs       []string
	cleanups   []func()
}

func runT(name string, action func(*recordingT)) *recordingT {
	t := &recordingT{name: name}
	t.run(action)
	for i := len(t.cleanups) - 1; i >= 0; i-- {
		t.run(func(*recordingT) { t.cleanups[i]() })
	}
	return t
}

func (t *recordingT) run(action func(*recordingT)) {
	defer func() {
		if r := recover(); r != nil {
			if _, ok := r.(*recordingT); !ok {
				panic(r)
			}
		}
	}()
	action(t)
}

func (t *recordingT) Helper()           {}
func (t *recordingT) Name() string      { return t.name }
func (t *recordingT) Cleanup(f func())  { t.cleanups = append(t.cleanups, f) }
func (t *recordingT) Failed() bool      { return t.failed }
func (t *recordingT) Skipped() bool     { return t.skipped }
func (t *recordingT) Output() string    { return strings.Join(t.logs, "\n") }
func (t *recordingT) ErrorText() string { return strings.Join(t.errors, "\n") }

func (t *recordingT) FailNow() {
	t.failed = true
	panic(t)
}

func (t *recordingT) Errorf(format string, args ...interface{}) {
	t.failed = true
	t.errors = append(t.errors, fmt.Sprintf(format, args...))
}

func (t *recordingT) Fatalf(format string, args ...interface{}) {
	t.Errorf(format, args...)
	panic(t)
}

func (t *recordingT) Skip(args ...interface{}) {
	t.skipped = true
	t.skipReason = fmt.Sprint(args...)
	panic(t)
}

func (t *recordingT) Logf(format string, args ...interface{}) {
	t.logs = append(t.logs, fmt.Sprintf(format, args...))
}
