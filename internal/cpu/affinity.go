// Package cpu holds the processor bit-set used for affinity masks and the thin
// platform adapters that move those masks in and out of the operating system.
package cpu

import (
	"errors"
	"runtime"
)

// ErrUnsupported is returned by the affinity adapter on platforms without
// thread affinity support.
var ErrUnsupported = errors.New("cpu: thread affinity not supported on this platform")

// Affinity is the boundary to the OS affinity primitives.
type Affinity interface {
	// Current returns the processors the calling thread is allowed to run on.
	Current() (CPUSet, error)

	// SetCurrentThread replaces the calling OS thread's affinity mask.
	// The goroutine must already be locked to its thread (see LockThread).
	SetCurrentThread(set CPUSet) error
}

// System returns the affinity adapter for the running platform.
func System() Affinity {
	return systemAffinity{}
}

// LockThread wires the calling goroutine to its current OS thread.
//
// There is no matching unlock: a pinned thread must never be handed back to
// the runtime, so it exits together with the goroutine.
func LockThread() {
	runtime.LockOSThread()
}
