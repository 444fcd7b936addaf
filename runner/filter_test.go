package runner

import (
	"testing"

	"github.com/spf13/pflag"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func parseFilters(t *testing.T, args ...string) RegexFilters {
	var filters RegexFilters
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	fs.Var(&filters.MustMatch, "run", "")
	fs.Var(&filters.MustNotMatch, "skip", "")
	require.NoError(t, fs.Parse(args))
	return filters
}

func TestRegexFiltersAsFlags(t *testing.T) {
	filters := parseFilters(t, "--run", "^TestPin", "--run", "Cat$", "--skip", "Offline")

	assert.True(t, filters.MustMatch.IsDefined())
	assert.Equal(t, `"^TestPin" or "Cat$"`, filters.MustMatch.String())
	assert.Equal(t, []string{"-run", "(?:^TestPin)|(?:Cat$)", "-skip", "Offline"}, filters.GoTestArgs())
}

func TestRegexFiltersMatch(t *testing.T) {
	filters := parseFilters(t, "--run", "^TestPin", "--skip", "Offline")

	assert.True(t, filters.Match(parseTestID("p", "TestPinLs")))
	assert.True(t, filters.Match(parseTestID("p", "TestPinLs/recursive")))
	assert.False(t, filters.Match(parseTestID("p", "TestPinLsOffline")))
	assert.False(t, filters.Match(parseTestID("p", "TestCat")))
}

func TestEmptyRegexFilters(t *testing.T) {
	var filters RegexFilters
	assert.Nil(t, filters.GoTestArgs())
	assert.Equal(t, "", filters.Describe())
	assert.True(t, filters.Match(parseTestID("p", "TestAnything")))
}

func TestRegexFiltersDescribe(t *testing.T) {
	filters := parseFilters(t, "--run", "Pin", "--skip", "Offline")
	assert.Equal(t,
		"Some tests will be skipped based on the filter criteria for this test run:\n"+
			"  skip any not matching \"Pin\"\n"+
			"  skip any matching \"Offline\"\n",
		filters.Describe())
}

func TestInvalidRegexIsRejected(t *testing.T) {
	var filters RegexFilters
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	fs.Var(&filters.MustMatch, "run", "")
	err := fs.Parse([]string{"--run", "("})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid regex")
}
