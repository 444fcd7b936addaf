package logging

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"
)

const timestampFormat = "2006-01-02 15:04:05.000"

// Logger is the minimal logging interface used throughout the test tooling. *log.Logger
// satisfies it, as does *testing.T via LoggerFunc(t.Logf).
type Logger interface {
	Printf(message string, args ...interface{})
}

// LoggerFunc adapts a Printf-style function to the Logger interface.
type LoggerFunc func(message string, args ...interface{})

func (f LoggerFunc) Printf(message string, args ...interface{}) { f(message, args...) }

type nullLogger struct{}

func (n nullLogger) Printf(message string, args ...interface{}) {}

func NullLogger() Logger { return nullLogger{} }

// WithPrefix returns a Logger that prepends prefix to every message.
func WithPrefix(logger Logger, prefix string) Logger {
	if logger == nil {
		return NullLogger()
	}
	return LoggerFunc(func(message string, args ...interface{}) {
		logger.Printf("%s%s", prefix, fmt.Sprintf(message, args...))
	})
}

type CapturedMessage struct {
	Time    time.Time
	Message string
}

type CapturedOutput []CapturedMessage

// CapturingLogger buffers messages so they can be shown only if a test fails.
type CapturingLogger struct {
	output []CapturedMessage
	lock   sync.Mutex
}

func (l *CapturingLogger) Printf(message string, args ...interface{}) {
	l.lock.Lock()
	l.output = append(l.output, CapturedMessage{Time: time.Now(), Message: fmt.Sprintf(message, args...)})
	l.lock.Unlock()
}

func (l *CapturingLogger) Output() CapturedOutput {
	l.lock.Lock()
	ret := append([]CapturedMessage(nil), l.output...)
	l.lock.Unlock()
	return ret
}

func (output CapturedOutput) Dump(dest io.Writer, prefix string) {
	for _, m := range output {
		fmt.Fprintf(dest, "%s[%s] %s\n",
			prefix,
			m.Time.Format(timestampFormat),
			m.Message,
		)
	}
}

// String renders the output the same way as Dump with no prefix.
func (output CapturedOutput) String() string {
	var b strings.Builder
	output.Dump(&b, "")
	return b.String()
}
