//go:build linux

package cpu

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// maxCPUs is the capacity of a unix.CPUSet (CPU_SETSIZE).
const maxCPUs = 1024

type systemAffinity struct{}

// Current reads the affinity mask of the calling thread.
func (systemAffinity) Current() (CPUSet, error) {
	var mask unix.CPUSet
	if err := unix.SchedGetaffinity(0, &mask); err != nil { // 0 = current thread
		return CPUSet{}, fmt.Errorf("sched_getaffinity: %w", err)
	}
	return fromUnix(&mask), nil
}

// SetCurrentThread pins the calling OS thread to set.
// Must be called after runtime.LockOSThread().
func (systemAffinity) SetCurrentThread(set CPUSet) error {
	mask, err := toUnix(set)
	if err != nil {
		return err
	}

	if err := unix.SchedSetaffinity(0, mask); err != nil {
		return fmt.Errorf("sched_setaffinity %s: %w", set, err)
	}
	return nil
}

func fromUnix(mask *unix.CPUSet) CPUSet {
	var set CPUSet
	for id := range maxCPUs {
		if mask.IsSet(id) {
			set.Set(id)
		}
	}
	return set
}

func toUnix(set CPUSet) (*unix.CPUSet, error) {
	var mask unix.CPUSet
	mask.Zero()
	for id := range set.All() {
		if id >= maxCPUs {
			return nil, fmt.Errorf("cpu %d exceeds affinity mask capacity %d", id, maxCPUs)
		}
		mask.Set(id)
	}
	return &mask, nil
}
