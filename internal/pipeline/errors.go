package pipeline

import "errors"

var (
	// ErrPreconditionNotMet marks a stage invoked while its predecessor
	// has not reached a satisfying status.
	ErrPreconditionNotMet = errors.New("stage precondition not met")

	// ErrAlreadyRunning is published when a folder-organize job arrives
	// while another is active in this process.
	ErrAlreadyRunning = errors.New("folder organization already in progress")
)
