package affinity

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/utkarsh5026/corebind/internal/cpu"
	"github.com/utkarsh5026/corebind/topology"
)

// fakeAffinity records bind calls instead of touching the scheduler.
type fakeAffinity struct {
	mu         sync.Mutex
	current    cpu.CPUSet
	currentErr error
	setErr     error
	applied    []cpu.CPUSet
}

func (f *fakeAffinity) Current() (cpu.CPUSet, error) {
	if f.currentErr != nil {
		return cpu.CPUSet{}, f.currentErr
	}
	return f.current.Clone(), nil
}

func (f *fakeAffinity) SetCurrentThread(set cpu.CPUSet) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.setErr != nil {
		return f.setErr
	}
	f.applied = append(f.applied, set.Clone())
	return nil
}

func (f *fakeAffinity) last() (cpu.CPUSet, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.applied) == 0 {
		return cpu.CPUSet{}, false
	}
	return f.applied[len(f.applied)-1], true
}

func (f *fakeAffinity) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.applied)
}

// cpuinfo renders a symmetric topology with Intel style numbering.
func cpuinfo(sockets, coresPerSocket, threadsPerCore int) *topology.Collection {
	var sb strings.Builder
	id := 0
	for range threadsPerCore {
		for socket := range sockets {
			for core := range coresPerSocket {
				fmt.Fprintf(&sb, "processor\t: %d\n", id)
				sb.WriteString("model name\t: Test CPU @ 2.00GHz\n")
				fmt.Fprintf(&sb, "physical id\t: %d\n", socket)
				fmt.Fprintf(&sb, "siblings\t: %d\n", coresPerSocket*threadsPerCore)
				fmt.Fprintf(&sb, "core id\t\t: %d\n", core)
				fmt.Fprintf(&sb, "cpu cores\t: %d\n\n", coresPerSocket)
				id++
			}
		}
	}
	return topology.NewCollection(topology.NewSource(sb.String()))
}

func newTestManager(c *topology.Collection, fake *fakeAffinity, opts ...Option) *Manager {
	opts = append([]Option{WithEnvironment(nil), WithAffinity(fake)}, opts...)
	return New(c, opts...)
}

func TestManager_CoreSet(t *testing.T) {
	c := cpuinfo(2, 4, 2)

	tests := []struct {
		name    string
		allowed cpu.CPUSet
		cpus    string
		cores   string
	}{
		{"all processors", cpu.FullCPUSet(16), "0-15", "0-7"},
		{"siblings only", cpu.NewCPUSet(8, 9, 10, 11, 12, 13, 14, 15), "8-15", "8-15"},
		{"one socket with hyperthreads", cpu.NewCPUSet(0, 1, 2, 3, 8, 9, 10, 11), "0-3,8-11", "0-3"},
		{"sibling pair collapses", cpu.NewCPUSet(1, 9, 2), "1-2,9", "1-2"},
		{"single processor", cpu.NewCPUSet(5), "5", "5"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := newTestManager(c, &fakeAffinity{current: tt.allowed})

			if got := m.CPUSet().String(); got != tt.cpus {
				t.Errorf("expected cpu set %s, got %s", tt.cpus, got)
			}
			if got := m.CoreSet().String(); got != tt.cores {
				t.Errorf("expected core set %s, got %s", tt.cores, got)
			}
			if m.AvailableCoreCount() != m.CoreSet().Count() {
				t.Errorf("expected available cores %d, got %d", m.CoreSet().Count(), m.AvailableCoreCount())
			}
		})
	}
}

func TestManager_CoreSetProperties(t *testing.T) {
	shapes := [][3]int{{1, 1, 1}, {1, 4, 2}, {2, 4, 2}, {2, 8, 1}, {4, 6, 2}, {1, 2, 4}}

	for _, shape := range shapes {
		c := cpuinfo(shape[0], shape[1], shape[2])
		t.Run(fmt.Sprintf("%dx%dx%d", shape[0], shape[1], shape[2]), func(t *testing.T) {
			m := newTestManager(c, &fakeAffinity{current: cpu.FullCPUSet(c.NumProcessors())})

			cores, cpus := m.CoreSet(), m.CPUSet()
			if cores.Count() > cpus.Count() {
				t.Errorf("core set %s larger than cpu set %s", cores, cpus)
			}
			if cores.Count() != c.TotalCores() {
				t.Errorf("expected %d cores, got %d", c.TotalCores(), cores.Count())
			}

			buckets := map[int]int{}
			for p := range cores.All() {
				if !cpus.IsSet(p) {
					t.Errorf("core processor %d not in cpu set", p)
				}
				bucket := p % c.TotalCores()
				if prev, dup := buckets[bucket]; dup {
					t.Errorf("processors %d and %d share bucket %d", prev, p, bucket)
				}
				buckets[bucket] = p
			}
		})
	}
}

func TestManager_AffinityQueryFailure(t *testing.T) {
	c := cpuinfo(2, 4, 2)
	m := newTestManager(c, &fakeAffinity{currentErr: errors.New("EPERM")})

	if got := m.CPUSet().String(); got != "0-15" {
		t.Errorf("expected fallback to all processors, got %s", got)
	}
	if m.AvailableCoreCount() != 8 {
		t.Errorf("expected 8 cores, got %d", m.AvailableCoreCount())
	}
}

func TestManager_MissingCoreCount(t *testing.T) {
	c := topology.NewCollection(topology.NewSource("processor : 0\n\nprocessor : 1\n\nprocessor : 2\n"))
	m := newTestManager(c, &fakeAffinity{current: cpu.FullCPUSet(3)})

	if c.TotalCores() != 0 {
		t.Fatalf("expected no core count, got %d", c.TotalCores())
	}
	if got := m.CoreSet().String(); got != "0-2" {
		t.Errorf("expected every processor to be its own core, got %s", got)
	}
}

func TestManager_BindingAllowed(t *testing.T) {
	c := cpuinfo(1, 4, 2)

	t.Run("allowed by default", func(t *testing.T) {
		m := newTestManager(c, &fakeAffinity{current: cpu.FullCPUSet(8)})
		if !m.IsBindingAllowed() {
			t.Error("expected binding to be allowed")
		}
		if _, ok := m.EnvOverride(); ok {
			t.Error("expected no environment override")
		}
	})

	t.Run("gpu toggle is re-evaluated", func(t *testing.T) {
		m := newTestManager(c, &fakeAffinity{current: cpu.FullCPUSet(8)})

		m.SetGPUEnabled()
		if m.IsBindingAllowed() || !m.GPUEnabled() {
			t.Error("expected binding disallowed while GPU is enabled")
		}

		m.SetGPUDisabled()
		if !m.IsBindingAllowed() || m.GPUEnabled() {
			t.Error("expected binding allowed after GPU is disabled")
		}
	})

	t.Run("initial gpu flag", func(t *testing.T) {
		m := newTestManager(c, &fakeAffinity{current: cpu.FullCPUSet(8)}, WithGPUEnabled(true))
		if m.IsBindingAllowed() {
			t.Error("expected binding disallowed")
		}
	})

	for _, name := range MonitoredEnvVars {
		t.Run("env "+name, func(t *testing.T) {
			fake := &fakeAffinity{current: cpu.FullCPUSet(8)}
			m := newTestManager(c, fake, WithEnvironment([]string{"PATH=/bin", name + "="}))

			if got, ok := m.EnvOverride(); !ok || got != name {
				t.Errorf("expected override %s, got %q (ok=%v)", name, got, ok)
			}
			for _, gpu := range []bool{false, true} {
				if gpu {
					m.SetGPUEnabled()
				} else {
					m.SetGPUDisabled()
				}
				if m.IsBindingAllowed() {
					t.Errorf("expected binding disallowed with gpu=%v", gpu)
				}
			}

			m.SetGPUDisabled()
			if m.BindWorkerToCore(0) || m.BindAuxiliaryThreadIfPossible() || m.BindSiblingsOfCore(0) {
				t.Error("expected bind calls to be no-ops")
			}
			if fake.calls() != 0 {
				t.Errorf("expected no affinity calls, got %d", fake.calls())
			}
		})
	}

	t.Run("env lookup function", func(t *testing.T) {
		m := New(c, WithAffinity(&fakeAffinity{}), WithEnvLookup(func(key string) (string, bool) {
			return "4", key == "OMP_NUM_THREADS"
		}))
		if m.IsBindingAllowed() {
			t.Error("expected OMP_NUM_THREADS to disable binding")
		}
	})
}

func TestManager_BindWorkerToCore(t *testing.T) {
	c := cpuinfo(2, 4, 2)

	t.Run("pins to the i-th core processor", func(t *testing.T) {
		fake := &fakeAffinity{current: cpu.NewCPUSet(8, 9, 10, 11, 12, 13, 14, 15)}
		m := newTestManager(c, fake)

		for i := range m.AvailableCoreCount() {
			if !m.BindWorkerToCore(i) {
				t.Fatalf("expected bind of worker %d to succeed", i)
			}
			got, _ := fake.last()
			want, _ := m.CoreSet().Nth(i)
			if got.Count() != 1 || !got.IsSet(want) {
				t.Errorf("worker %d: expected mask {%d}, got %s", i, want, got)
			}
		}
	})

	t.Run("index past the end wraps", func(t *testing.T) {
		fake := &fakeAffinity{current: cpu.FullCPUSet(16)}
		m := newTestManager(c, fake)

		if !m.BindWorkerToCore(10) {
			t.Fatal("expected bind to succeed")
		}
		if got, _ := fake.last(); got.String() != "2" {
			t.Errorf("expected mask 2, got %s", got)
		}
	})

	t.Run("negative index is ignored", func(t *testing.T) {
		fake := &fakeAffinity{current: cpu.FullCPUSet(16)}
		m := newTestManager(c, fake)
		if m.BindWorkerToCore(-1) {
			t.Error("expected negative index to be rejected")
		}
		if fake.calls() != 0 {
			t.Errorf("expected no affinity calls, got %d", fake.calls())
		}
	})

	t.Run("os failure reports false", func(t *testing.T) {
		fake := &fakeAffinity{current: cpu.FullCPUSet(16), setErr: errors.New("EINVAL")}
		m := newTestManager(c, fake)
		if m.BindWorkerToCore(0) {
			t.Error("expected bind to fail")
		}
	})

	t.Run("concurrent workers each get their own core", func(t *testing.T) {
		fake := &fakeAffinity{current: cpu.FullCPUSet(16)}
		m := newTestManager(c, fake)

		var wg sync.WaitGroup
		for i := range m.AvailableCoreCount() {
			wg.Add(1)
			go func() {
				defer wg.Done()
				m.BindWorkerToCore(i)
			}()
		}
		wg.Wait()

		var union cpu.CPUSet
		for _, set := range fake.applied {
			for p := range set.All() {
				union.Set(p)
			}
		}
		if !union.Equal(m.CoreSet()) {
			t.Errorf("expected workers to cover %s, got %s", m.CoreSet(), union)
		}
	})
}

func TestManager_BindSiblings(t *testing.T) {
	c := cpuinfo(2, 4, 2)

	t.Run("all hyperthreads of the core", func(t *testing.T) {
		fake := &fakeAffinity{current: cpu.FullCPUSet(16)}
		m := newTestManager(c, fake)

		if !m.BindSiblingsOfCore(3) {
			t.Fatal("expected bind to succeed")
		}
		if got, _ := fake.last(); got.String() != "3,11" {
			t.Errorf("expected mask 3,11, got %s", got)
		}
	})

	t.Run("restricted to allowed processors", func(t *testing.T) {
		fake := &fakeAffinity{current: cpu.NewCPUSet(0, 1, 2, 3, 8)}
		m := newTestManager(c, fake)

		m.BindSiblingsOfCore(0)
		if got, _ := fake.last(); got.String() != "0,8" {
			t.Errorf("expected mask 0,8, got %s", got)
		}
		m.BindSiblingsOfCore(1)
		if got, _ := fake.last(); got.String() != "1" {
			t.Errorf("expected mask 1, got %s", got)
		}
	})
}

func TestManager_BindAuxiliaryThread(t *testing.T) {
	t.Run("second core when several exist", func(t *testing.T) {
		fake := &fakeAffinity{current: cpu.FullCPUSet(16)}
		m := newTestManager(cpuinfo(2, 4, 2), fake)

		if !m.BindAuxiliaryThreadIfPossible() {
			t.Fatal("expected bind to succeed")
		}
		if got, _ := fake.last(); got.String() != "1,9" {
			t.Errorf("expected mask 1,9, got %s", got)
		}
	})

	t.Run("first core on a single core machine", func(t *testing.T) {
		fake := &fakeAffinity{current: cpu.FullCPUSet(2)}
		m := newTestManager(cpuinfo(1, 1, 2), fake)

		if m.AvailableCoreCount() != 1 {
			t.Fatalf("expected 1 core, got %d", m.AvailableCoreCount())
		}
		if !m.BindAuxiliaryThreadIfPossible() {
			t.Fatal("expected bind to succeed")
		}
		if got, _ := fake.last(); got.String() != "0-1" {
			t.Errorf("expected mask 0-1, got %s", got)
		}
	})

	t.Run("gpu enabled skips binding", func(t *testing.T) {
		fake := &fakeAffinity{current: cpu.FullCPUSet(16)}
		m := newTestManager(cpuinfo(2, 4, 2), fake)
		m.SetGPUEnabled()

		if m.BindAuxiliaryThreadIfPossible() {
			t.Error("expected no binding with GPU enabled")
		}
		if fake.calls() != 0 {
			t.Errorf("expected no affinity calls, got %d", fake.calls())
		}
	})
}

func TestManager_RecommendThreadCount(t *testing.T) {
	c := cpuinfo(2, 4, 2)

	record := func() (*[]int, func(int)) {
		var got []int
		return &got, func(n int) { got = append(got, n) }
	}

	t.Run("automatic count becomes core count", func(t *testing.T) {
		m := newTestManager(c, &fakeAffinity{current: cpu.FullCPUSet(16)})
		got, set := record()

		m.RecommendThreadCount(0, set)
		if len(*got) != 1 || (*got)[0] != m.AvailableCoreCount() {
			t.Errorf("expected count %d, got %v", m.AvailableCoreCount(), *got)
		}
	})

	t.Run("explicit count is left alone", func(t *testing.T) {
		m := newTestManager(c, &fakeAffinity{current: cpu.FullCPUSet(16)})
		got, set := record()

		m.RecommendThreadCount(3, set)
		if len(*got) != 0 {
			t.Errorf("expected no change, got %v", *got)
		}
	})

	t.Run("disallowed binding leaves the default", func(t *testing.T) {
		m := newTestManager(c, &fakeAffinity{current: cpu.FullCPUSet(16)}, WithGPUEnabled(true))
		got, set := record()

		m.RecommendThreadCount(0, set)
		if len(*got) != 0 {
			t.Errorf("expected no change, got %v", *got)
		}
	})

	t.Run("nil setter is tolerated", func(t *testing.T) {
		m := newTestManager(c, &fakeAffinity{current: cpu.FullCPUSet(16)})
		m.RecommendThreadCount(0, nil)
	})
}

func TestManager_UnsupportedPlatform(t *testing.T) {
	fake := &fakeAffinity{currentErr: cpu.ErrUnsupported}
	m := newTestManager(topology.NewCollection(topology.NewSource("")), fake)

	if m.AvailableCoreCount() != 0 {
		t.Errorf("expected 0 cores, got %d", m.AvailableCoreCount())
	}
	if m.BindWorkerToCore(0) || m.BindAuxiliaryThreadIfPossible() || m.BindSiblingsOfCore(0) {
		t.Error("expected all binds to be no-ops")
	}

	called := false
	m.RecommendThreadCount(0, func(int) { called = true })
	if called {
		t.Error("expected thread count untouched without cores")
	}
}

func TestNew_NilCollection(t *testing.T) {
	m := New(nil, WithEnvironment(nil), WithAffinity(&fakeAffinity{currentErr: errors.New("x")}))
	if m.Topology().NumProcessors() != 0 || m.AvailableCoreCount() != 0 {
		t.Error("expected empty manager")
	}
}
