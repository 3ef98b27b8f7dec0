package orchestrator

import "errors"

// ErrBootstrapInProgress is returned when RunBootstrap is called while a
// bootstrap is already running.
var ErrBootstrapInProgress = errors.New("bootstrap already in progress")

// ErrLockTimeout is returned when the distributed bootstrap lock could not be
// acquired before the run context expired.
var ErrLockTimeout = errors.New("timed out waiting for bootstrap lock")

// Store implementations wrap their driver errors with these so the index
// phases can tell expected no-ops from genuine faults.
var (
	// ErrIndexNotFound means a dropped index (or its collection) did not exist.
	ErrIndexNotFound = errors.New("index not found")
	// ErrIndexConflict means an index with the same name or keys but a
	// different definition already exists.
	ErrIndexConflict = errors.New("conflicting index exists")
)
