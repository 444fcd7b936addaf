// Package runner drives a functional test run: it can start a daemon in a scratch repo, runs the
// test packages with `go test -json` pointed at that daemon, and collects per-test outcomes.
//
// Skips are kept apart from failures throughout. A run against a machine with no daemon is
// expected to skip everything and still succeed.
package runner
