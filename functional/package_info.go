// Package functional holds tests that run against a live daemon through the framework fixtures.
//
// Without a reachable daemon every test here is skipped. Point the tests at a daemon with
// IPFSHTTP_TEST_API, or let the ipfshttp-tests command start one.
package functional
