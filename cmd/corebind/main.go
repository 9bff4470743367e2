// Command corebind reports the processor topology of the machine and shows
// how worker threads would be pinned to physical cores.
package main

import (
	"context"
	"errors"
	"flag"
	"os"
	"sync"
	"time"

	"github.com/schollz/progressbar/v3"

	"github.com/utkarsh5026/corebind/affinity"
	"github.com/utkarsh5026/corebind/internal/cpu"
	"github.com/utkarsh5026/corebind/pool"
	"github.com/utkarsh5026/corebind/topology"
)

func makeProgressBar(workers int) *progressbar.ProgressBar {
	return progressbar.NewOptions(workers,
		progressbar.OptionSetDescription("Pinning workers"),
		progressbar.OptionSetWidth(50),
		progressbar.OptionShowCount(),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "█",
			SaucerHead:    "█",
			SaucerPadding: "░",
			BarStart:      "│",
			BarEnd:        "│",
		}),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionThrottle(65*time.Millisecond),
		progressbar.OptionClearOnFinish(),
	)
}

// runBind starts one pinned worker per default worker slot and records the
// mask each of them reads back from the OS.
func runBind(ctx context.Context, m *affinity.Manager) ([]placement, error) {
	wp := pool.NewWorkerPool[struct{}, struct{}](pool.WithAffinity(m))
	bar := makeProgressBar(wp.WorkerCount())
	defer func() { _ = bar.Finish() }()

	placements := make([]placement, wp.WorkerCount())
	var mu sync.Mutex
	sys := cpu.System()

	err := wp.Run(ctx, func(_ context.Context, workerID int) error {
		p := placement{worker: workerID, expected: -1}
		if m.IsBindingAllowed() && m.AvailableCoreCount() > 0 {
			if id, ok := m.CoreSet().Nth(workerID % m.AvailableCoreCount()); ok {
				p.expected = id
			}
		}

		set, err := sys.Current()
		if err != nil {
			p.err = err
		} else {
			p.actual = set.String()
		}

		mu.Lock()
		placements[workerID] = p
		mu.Unlock()
		_ = bar.Add(1)
		return nil
	})
	return placements, err
}

func main() {
	cfg, err := parseConfig(os.Args[1:])
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return
		}
		_, _ = red.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(2)
	}

	collection := topology.NewCollection(topology.LoadSource(cfg.CPUInfo))
	m := affinity.New(collection, affinity.WithGPUEnabled(cfg.GPU))

	pool.ApplyAffinity(m, cfg.Threads)
	if cfg.Threads > 0 {
		pool.SetDefaultWorkerCount(cfg.Threads)
	}

	printTopology(os.Stdout, cfg.CPUInfo, collection)
	printAffinity(os.Stdout, m, pool.DefaultWorkerCount())

	if !cfg.Bind {
		return
	}

	placements, err := runBind(context.Background(), m)
	if err != nil {
		_, _ = red.Fprintf(os.Stderr, "Error: bind run failed: %v\n", err)
		os.Exit(1)
	}
	printPlacements(os.Stdout, placements)
}
