package pool

import (
	"runtime"
	"sync/atomic"

	"github.com/utkarsh5026/corebind/affinity"
)

// defaultWorkers is the process-wide worker count; 0 means GOMAXPROCS.
var defaultWorkers atomic.Int64

// SetDefaultWorkerCount sets the worker count used by pools created without
// WithWorkerCount. n <= 0 restores the GOMAXPROCS default.
func SetDefaultWorkerCount(n int) {
	if n < 0 {
		n = 0
	}
	defaultWorkers.Store(int64(n))
}

// DefaultWorkerCount returns the current process-wide worker count.
func DefaultWorkerCount() int {
	if n := defaultWorkers.Load(); n > 0 {
		return int(n)
	}
	return runtime.GOMAXPROCS(0)
}

// ApplyAffinity lets m choose the default worker count. requested is the
// count the caller asked for; 0 means automatic, in which case the count
// becomes the number of physical cores when binding is allowed.
func ApplyAffinity(m *affinity.Manager, requested int) {
	if m == nil {
		return
	}
	m.RecommendThreadCount(requested, SetDefaultWorkerCount)
}
