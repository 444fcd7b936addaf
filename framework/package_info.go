// Package framework contains the fixtures that functional tests use to talk to a running
// storage daemon.
//
// The general model is:
//
// 1. A TestMain creates one Provider for the package. The Provider owns an Availability cache
// that probes the daemon once, the first time any test asks for a client.
//
// 2. Tests ask the Provider for clients. If the daemon could not be reached, the test is
// skipped, not failed: "cannot test this" is a different outcome from "test failed". Clients
// are released automatically when the test ends, however it ends.
//
// 3. Tests that pin objects call CleanupPins first, so that whatever they pinned is unpinned
// afterward and the daemon's pin set is left as it was found.
//
// The fixtures accept a TB, which *testing.T and *testing.B satisfy.
package framework
