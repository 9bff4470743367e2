package affinity

import (
	"sync/atomic"

	"github.com/utkarsh5026/corebind/internal/cpu"
	"github.com/utkarsh5026/corebind/topology"
)

// CPUSet is a set of logical processor ids.
type CPUSet = cpu.CPUSet

// OSAffinity reads and writes thread affinity masks. Tests substitute it to
// observe bind calls without touching the real scheduler.
type OSAffinity = cpu.Affinity

// Manager decides whether compute threads may be pinned and pins them one
// per physical core.
//
// Everything except the GPU flag is fixed at construction, so a Manager can be
// shared by any number of workers without locking. The GPU toggles are meant
// to be flipped by one control goroutine before workers start binding.
type Manager struct {
	collection *topology.Collection
	affinity   cpu.Affinity

	envOverride    string
	hasEnvOverride bool
	gpuEnabled     atomic.Bool

	// currentCPUSet holds the processors this process may run on.
	currentCPUSet cpu.CPUSet
	// currentCoreSet holds one processor per physical core.
	currentCoreSet cpu.CPUSet
}

// New builds a Manager over the given topology.
//
// Example:
//
//	m := affinity.New(topology.Discover())
//	pool.ApplyAffinity(m, 0)
//	wp := pool.NewWorkerPool[Job, Out](pool.WithAffinity(m))
func New(c *topology.Collection, opts ...Option) *Manager {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}

	if c == nil {
		c = topology.NewCollection(topology.NewSource(""))
	}

	m := &Manager{
		collection: c,
		affinity:   cfg.affinity,
	}
	m.gpuEnabled.Store(cfg.gpuEnabled)

	m.envOverride, m.hasEnvOverride = findEnvOverride(cfg.lookupEnv)
	if m.hasEnvOverride {
		debugLog("%s is set, thread binding disabled", m.envOverride)
	}

	m.currentCPUSet = m.loadCPUSet()
	m.currentCoreSet = m.deriveCoreSet()

	debugLog("cpus=%s cores=%s (%d sockets, %d physical cores)",
		m.currentCPUSet, m.currentCoreSet, c.TotalSockets(), c.TotalCores())
	return m
}

// loadCPUSet asks the OS for the allowed processors and falls back to every
// discovered processor when that fails.
func (m *Manager) loadCPUSet() cpu.CPUSet {
	set, err := m.affinity.Current()
	if err != nil {
		debugLog("affinity query failed, assuming all %d processors: %v",
			m.collection.NumProcessors(), err)
		return cpu.FullCPUSet(m.collection.NumProcessors())
	}
	return set
}

// deriveCoreSet keeps the first allowed processor of every physical core.
// Processors p and q share a core when p mod totalCores == q mod totalCores,
// which holds for symmetric sockets with contiguous numbering only.
func (m *Manager) deriveCoreSet() cpu.CPUSet {
	var used, cores cpu.CPUSet
	for p := range m.currentCPUSet.All() {
		bucket := m.coreBucket(p)
		if used.IsSet(bucket) {
			continue
		}
		used.Set(bucket)
		cores.Set(p)
	}
	return cores
}

// coreBucket maps a processor to its physical core. Without a core count in
// the topology every processor is its own core.
func (m *Manager) coreBucket(p int) int {
	total := m.collection.TotalCores()
	if total <= 0 {
		return p
	}
	return p % total
}

// IsBindingAllowed reports whether threads may be pinned: no monitored
// variable is set and GPU execution is off. The GPU flag is read on every call.
func (m *Manager) IsBindingAllowed() bool {
	return !m.hasEnvOverride && !m.gpuEnabled.Load()
}

// EnvOverride returns the first monitored variable found at construction.
func (m *Manager) EnvOverride() (string, bool) {
	return m.envOverride, m.hasEnvOverride
}

// AvailableCoreCount returns the number of physical cores threads can be
// spread over.
func (m *Manager) AvailableCoreCount() int {
	return m.currentCoreSet.Count()
}

// CPUSet returns a copy of the processors this process may run on.
func (m *Manager) CPUSet() cpu.CPUSet {
	return m.currentCPUSet.Clone()
}

// CoreSet returns a copy of the one-processor-per-core set.
func (m *Manager) CoreSet() cpu.CPUSet {
	return m.currentCoreSet.Clone()
}

// Topology returns the collection the Manager was built from.
func (m *Manager) Topology() *topology.Collection {
	return m.collection
}

// SetGPUEnabled disables binding while GPU execution owns the placement.
func (m *Manager) SetGPUEnabled() {
	m.gpuEnabled.Store(true)
}

// SetGPUDisabled re-enables binding unless an environment override exists.
func (m *Manager) SetGPUDisabled() {
	m.gpuEnabled.Store(false)
}

// GPUEnabled reports the current GPU flag.
func (m *Manager) GPUEnabled() bool {
	return m.gpuEnabled.Load()
}

// RecommendThreadCount applies the worker count policy: when the caller asks
// for an automatic count (requested == 0) and binding is allowed, set is
// called with AvailableCoreCount. Otherwise the existing count stays, as it
// does when no core was discovered.
func (m *Manager) RecommendThreadCount(requested int, set func(int)) {
	if requested != 0 || !m.IsBindingAllowed() || set == nil {
		return
	}
	if m.AvailableCoreCount() == 0 {
		return
	}
	set(m.AvailableCoreCount())
}

// physicalProcessor maps a zero-based core index to its processor id in the
// core set. Indices past the end wrap around.
func (m *Manager) physicalProcessor(coreIndex int) (int, bool) {
	n := m.currentCoreSet.Count()
	if coreIndex < 0 || n == 0 {
		return 0, false
	}
	if coreIndex >= n {
		debugLog("core index %d out of range [0, %d), wrapping", coreIndex, n)
		coreIndex %= n
	}
	return m.currentCoreSet.Nth(coreIndex)
}

// BindWorkerToCore pins the calling goroutine's OS thread to exactly one
// processor: the workerIndex-th entry of the core set. The goroutine stays
// locked to that thread. Returns false when binding is not allowed or the OS
// refused the mask.
func (m *Manager) BindWorkerToCore(workerIndex int) bool {
	if !m.IsBindingAllowed() {
		return false
	}

	p, ok := m.physicalProcessor(workerIndex)
	if !ok {
		return false
	}
	return m.apply(cpu.NewCPUSet(p))
}

// BindSiblingsOfCore pins the calling goroutine's OS thread to every allowed
// processor on the coreIndex-th physical core, leaving the OS free to choose
// among its hyperthreads.
func (m *Manager) BindSiblingsOfCore(coreIndex int) bool {
	if !m.IsBindingAllowed() {
		return false
	}

	p, ok := m.physicalProcessor(coreIndex)
	if !ok {
		return false
	}
	return m.apply(m.siblingsOf(p))
}

// BindAuxiliaryThreadIfPossible pins a single background thread to the
// siblings of the second core, or of the first one on single-core machines,
// keeping it off the core the first compute worker uses.
func (m *Manager) BindAuxiliaryThreadIfPossible() bool {
	coreIndex := 0
	if m.AvailableCoreCount() > 1 {
		coreIndex = 1
	}
	return m.BindSiblingsOfCore(coreIndex)
}

func (m *Manager) siblingsOf(p int) cpu.CPUSet {
	bucket := m.coreBucket(p)

	var set cpu.CPUSet
	for q := range m.currentCPUSet.All() {
		if m.coreBucket(q) == bucket {
			set.Set(q)
		}
	}
	return set
}

func (m *Manager) apply(set cpu.CPUSet) bool {
	cpu.LockThread()
	if err := m.affinity.SetCurrentThread(set); err != nil {
		debugLog("bind to %s failed: %v", set, err)
		return false
	}
	return true
}
