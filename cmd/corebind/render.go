package main

import (
	"fmt"
	"io"
	"strconv"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"

	"github.com/utkarsh5026/corebind/affinity"
	"github.com/utkarsh5026/corebind/topology"
)

var (
	bold   = color.New(color.Bold)
	red    = color.New(color.FgRed)
	green  = color.New(color.FgGreen)
	yellow = color.New(color.FgYellow)
)

// placement is where one worker of the bind run ended up.
type placement struct {
	worker   int
	expected int
	actual   string
	err      error
}

func printSectionHeader(w io.Writer, title string) {
	_, _ = fmt.Fprintln(w)
	_, _ = bold.Fprintln(w, title)
	_, _ = fmt.Fprintln(w)
}

func printTopology(w io.Writer, path string, c *topology.Collection) {
	printSectionHeader(w, "CPU TOPOLOGY")

	_, _ = fmt.Fprintf(w, "  Source:      %s\n", path)
	_, _ = fmt.Fprintf(w, "  Sockets:     %d\n", c.TotalSockets())
	_, _ = fmt.Fprintf(w, "  Cores:       %d\n", c.TotalCores())
	_, _ = fmt.Fprintf(w, "  Processors:  %d\n", c.NumProcessors())
	if mhz := c.SpeedMHz(); mhz > 0 {
		_, _ = fmt.Fprintf(w, "  Speed:       %d MHz\n", mhz)
	} else {
		_, _ = fmt.Fprintf(w, "  Speed:       unknown\n")
	}

	if c.NumProcessors() == 0 {
		_, _ = yellow.Fprintln(w, "\n  No processor records found.")
		return
	}

	_, _ = fmt.Fprintln(w)
	table := tablewriter.NewWriter(w)
	table.Header("Processor", "Socket", "Core", "Siblings", "Cores/Socket", "MHz")
	for _, p := range c.Processors() {
		_ = table.Append(
			strconv.Itoa(p.ID),
			strconv.Itoa(p.PhysicalID),
			strconv.Itoa(p.CoreID),
			strconv.Itoa(p.Siblings),
			strconv.Itoa(p.CPUCores),
			strconv.FormatUint(uint64(p.SpeedMHz), 10),
		)
	}
	_ = table.Render()
}

func printAffinity(w io.Writer, m *affinity.Manager, workers int) {
	printSectionHeader(w, "THREAD BINDING")

	_, _ = fmt.Fprintf(w, "  Allowed CPUs:     %s\n", m.CPUSet())
	_, _ = fmt.Fprintf(w, "  Core CPUs:        %s (%d)\n", m.CoreSet(), m.AvailableCoreCount())
	_, _ = fmt.Fprintf(w, "  Default workers:  %d\n", workers)

	switch name, overridden := m.EnvOverride(); {
	case overridden:
		_, _ = yellow.Fprintf(w, "  Binding:          disabled, %s is set\n", name)
	case m.GPUEnabled():
		_, _ = yellow.Fprintln(w, "  Binding:          disabled, GPU runtime active")
	default:
		_, _ = green.Fprintln(w, "  Binding:          enabled")
	}
}

func printPlacements(w io.Writer, placements []placement) {
	printSectionHeader(w, "WORKER PLACEMENT")

	table := tablewriter.NewWriter(w)
	table.Header("Worker", "Core CPU", "Running On", "Status")
	for _, p := range placements {
		expected := "-"
		if p.expected >= 0 {
			expected = strconv.Itoa(p.expected)
		}

		status := "pinned"
		switch {
		case p.err != nil:
			status = "error: " + p.err.Error()
		case p.expected < 0:
			status = "unpinned"
		case p.actual != strconv.Itoa(p.expected):
			status = "not pinned"
		}

		_ = table.Append(strconv.Itoa(p.worker), expected, p.actual, status)
	}
	_ = table.Render()
}
