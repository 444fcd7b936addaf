package runner

import (
	"fmt"
	"regexp"
	"strings"
)

// RegexFilters selects tests by name. Both lists are passed on to `go test` as -run and -skip,
// so a pattern applies to test names the way those flags do.
type RegexFilters struct {
	MustMatch    RegexList
	MustNotMatch RegexList
}

// Match reports whether id would be selected, treating each pattern as matching the full
// slash-separated test name.
func (r RegexFilters) Match(id TestID) bool {
	name := id.String()
	return (!r.MustMatch.IsDefined() || r.MustMatch.AnyMatch(name)) &&
		!r.MustNotMatch.AnyMatch(name)
}

// GoTestArgs returns the `go test` flags that apply the filters.
func (r RegexFilters) GoTestArgs() []string {
	var args []string
	if r.MustMatch.IsDefined() {
		args = append(args, "-run", r.MustMatch.Alternation())
	}
	if r.MustNotMatch.IsDefined() {
		args = append(args, "-skip", r.MustNotMatch.Alternation())
	}
	return args
}

// Describe returns a human-readable summary of the filters, or "" if there are none.
func (r RegexFilters) Describe() string {
	if !r.MustMatch.IsDefined() && !r.MustNotMatch.IsDefined() {
		return ""
	}
	var b strings.Builder
	b.WriteString("Some tests will be skipped based on the filter criteria for this test run:\n")
	if r.MustMatch.IsDefined() {
		fmt.Fprintf(&b, "  skip any not matching %s\n", r.MustMatch)
	}
	if r.MustNotMatch.IsDefined() {
		fmt.Fprintf(&b, "  skip any matching %s\n", r.MustNotMatch)
	}
	return b.String()
}

// RegexList is a repeatable command-line flag holding regular expressions. It implements
// pflag.Value.
type RegexList struct {
	patterns []*regexp.Regexp
}

func (r RegexList) String() string {
	var ss []string
	for _, p := range r.patterns {
		ss = append(ss, `"`+p.String()+`"`)
	}
	return strings.Join(ss, " or ")
}

// Set is called by the command line parser
func (r *RegexList) Set(value string) error {
	rx, err := regexp.Compile(value)
	if err != nil {
		return fmt.Errorf("invalid regex: %w", err)
	}
	r.patterns = append(r.patterns, rx)
	return nil
}

func (r *RegexList) Type() string {
	return "regex"
}

func (r RegexList) IsDefined() bool {
	return len(r.patterns) != 0
}

func (r RegexList) AnyMatch(s string) bool {
	for _, p := range r.patterns {
		if p.MatchString(s) {
			return true
		}
	}
	return false
}

// Alternation combines the patterns into a single expression that matches if any of them does.
func (r RegexList) Alternation() string {
	if len(r.patterns) == 1 {
		return r.patterns[0].String()
	}
	var ss []string
	for _, p := range r.patterns {
		ss = append(ss, "(?:"+p.String()+")")
	}
	return strings.Join(ss, "|")
}
