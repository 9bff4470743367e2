package affinity

import (
	"sync"

	"github.com/utkarsh5026/corebind/topology"
)

var shared = sync.OnceValue(func() *Manager {
	return New(topology.Discover())
})

// Default returns the process-wide Manager, discovering the topology on first
// use. Prefer building one with New at startup and passing it around; Default
// exists for code that has no way to receive it.
func Default() *Manager {
	return shared()
}
