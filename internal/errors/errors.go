// Package errors defines the sentinel errors shared across pomodash.
//
// Callers categorize failures with errors.Is against these values.
// This package must not import other internal packages.
package errors

import "errors"

var (
	// ErrNoIdentity indicates that a store operation was attempted without an
	// authenticated user. Store methods swallow it and return zero values;
	// it is exported for callers that want to detect the condition.
	ErrNoIdentity = errors.New("no authenticated identity")

	// ErrNotFound indicates that a record does not exist for the current user.
	ErrNotFound = errors.New("record not found")

	// ErrInvalidTask indicates that a task failed validation before a write.
	ErrInvalidTask = errors.New("invalid task")

	// ErrInvalidProject indicates that a project failed validation before a write.
	ErrInvalidProject = errors.New("invalid project")

	// ErrInvalidTarget indicates that a target failed validation before a write.
	ErrInvalidTarget = errors.New("invalid target")

	// ErrAlreadyRunning indicates Start was called on a running timer.
	ErrAlreadyRunning = errors.New("timer already running")

	// ErrSnapshotCorrupt indicates that the persisted timer snapshot could not
	// be parsed.
	ErrSnapshotCorrupt = errors.New("timer snapshot corrupt")

	// ErrSlotEmpty indicates that the snapshot slot holds no value.
	ErrSlotEmpty = errors.New("snapshot slot empty")

	// ErrNoPendingCompletion indicates Continue was called with no completion
	// dialog open.
	ErrNoPendingCompletion = errors.New("no pending phase completion")

	// ErrHistoryWrite indicates that appending a pomodoro history record failed
	// and the paired task update was rolled back.
	ErrHistoryWrite = errors.New("history write failed")

	// ErrInvalidConfig indicates a configuration value failed validation.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrInvalidExportFormat indicates an unsupported export format.
	ErrInvalidExportFormat = errors.New("invalid export format")

	// ErrCoachUnavailable indicates that the content-generation backend is
	// not configured or returned nothing.
	ErrCoachUnavailable = errors.New("coach unavailable")
)
