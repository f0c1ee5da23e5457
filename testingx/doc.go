// Package testingx provides testing helpers and fakes for the lifecycle host.
//
// # Overview
//
// testingx contains small utilities to speed up unit tests: a mock logger
// with in-memory capture and assertions, a recording terminator standing in
// for os.Exit, and a concurrency-safe buffer for captured stderr.
//
// # Features
//
//   - MockLogger with hierarchical names shared across children
//   - Terminator recording exit codes and their timing
//   - Error assertion helpers for core/errors codes
//
// # Usage
//
//	logger := testingx.NewMockLogger(t)
//	term := testingx.NewTerminator()
//	code, ok := term.Wait(time.Second)
package testingx
