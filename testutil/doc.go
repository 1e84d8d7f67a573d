// Package testutil provides shared test helpers: a recording forwarder, a
// manual clock, handler callback captures, a scripted NATS publisher, sample
// messages, and a testcontainers-backed NATS server for integration tests.
//
// Helpers here carry no lifecycle semantics of their own. They exist so that
// package tests do not each reinvent the same fakes.
package testutil
