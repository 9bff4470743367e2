// Package topology parses the kernel's per-processor description into a model
// of sockets, physical cores and logical processors.
package topology

import (
	"math"
	"strconv"
	"strings"
)

// Processor is one logical processor block. Fields missing from the input
// stay zero.
type Processor struct {
	ID         int  // "processor"
	PhysicalID int  // "physical id", the socket
	Siblings   int  // "siblings", logical processors on the socket
	CoreID     int  // "core id"
	CPUCores   int  // "cpu cores", physical cores on the socket
	SpeedMHz   uint // from the "@ 2.40GHz" part of "model name"
}

// Collection is the parsed topology. It is immutable once built and safe for
// concurrent reads.
type Collection struct {
	processors   []Processor
	totalSockets int
	totalCores   int
}

// NewCollection parses every processor block from src.
func NewCollection(src LineSource) *Collection {
	c := &Collection{
		processors: make([]Processor, 0, 96),
	}
	c.parse(src)
	c.aggregate()
	return c
}

// NumProcessors returns the number of logical processors found.
func (c *Collection) NumProcessors() int {
	return len(c.processors)
}

// Processor returns the i-th processor in discovery order.
func (c *Collection) Processor(i int) Processor {
	return c.processors[i]
}

// Processors returns a copy of all processors in discovery order.
func (c *Collection) Processors() []Processor {
	out := make([]Processor, len(c.processors))
	copy(out, c.processors)
	return out
}

// TotalSockets returns the number of distinct physical ids.
func (c *Collection) TotalSockets() int {
	return c.totalSockets
}

// TotalCores returns the number of physical cores summed over sockets.
func (c *Collection) TotalCores() int {
	return c.totalCores
}

// SpeedMHz returns the nominal clock of the first processor, or 0.
func (c *Collection) SpeedMHz() uint {
	if len(c.processors) == 0 {
		return 0
	}
	return c.processors[0].SpeedMHz
}

type field struct {
	key   string
	apply func(p *Processor, value string)
}

var fields = []field{
	{"processor", func(p *Processor, v string) { p.ID = parseInt(v) }},
	{"physical id", func(p *Processor, v string) { p.PhysicalID = parseInt(v) }},
	{"siblings", func(p *Processor, v string) { p.Siblings = parseInt(v) }},
	{"core id", func(p *Processor, v string) { p.CoreID = parseInt(v) }},
	{"cpu cores", func(p *Processor, v string) { p.CPUCores = parseInt(v) }},
	{"model name", func(p *Processor, v string) { p.SpeedMHz = ParseSpeedMHz(v) }},
}

func (c *Collection) parse(src LineSource) {
	var current *Processor

	for line, ok := src.FirstLine(); ok; line, ok = src.NextLine() {
		key, value, found := strings.Cut(line, ":")
		if !found {
			current = nil
			continue
		}

		for _, f := range fields {
			if !strings.HasPrefix(key, f.key) {
				continue
			}
			if current == nil {
				c.processors = append(c.processors, Processor{})
				current = &c.processors[len(c.processors)-1]
			}
			f.apply(current, strings.TrimSpace(value))
		}
	}
}

// aggregate counts sockets and credits each newly seen socket with the core
// count of its first processor. A socket whose processors reappear after
// another socket's is not credited again, and sockets with differing core
// counts are summed from their first record only.
func (c *Collection) aggregate() {
	seen := make(map[int]struct{})
	for _, p := range c.processors {
		seen[p.PhysicalID] = struct{}{}
		if len(seen) == c.totalSockets {
			continue
		}
		c.totalSockets = len(seen)
		c.totalCores += p.CPUCores
	}
}

// parseInt reads the leading decimal digits of s like C atol, after optional
// blanks and one '+'. Anything unparsable, and negative values, become 0.
func parseInt(s string) int {
	s = strings.TrimLeft(s, " \t")
	s = strings.TrimPrefix(s, "+")
	end := 0
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	n, err := strconv.Atoi(s[:end])
	if err != nil {
		return 0
	}
	return n
}

// ParseSpeedMHz extracts the clock from a model name such as
// "Intel(R) Xeon(R) CPU E5-2699 v4 @ 2.20GHz". Without a unit, values below
// 100 are taken as GHz and everything else as MHz. Returns 0 when there is no
// '@' marker.
func ParseSpeedMHz(modelName string) uint {
	_, after, found := strings.Cut(modelName, "@")
	if !found {
		return 0
	}

	speed, rest := parseFloatPrefix(after)
	unit := strings.TrimLeft(rest, " \t\n\v\f\r")

	isMHz := strings.HasPrefix(unit, "MHz")
	isGHz := strings.HasPrefix(unit, "GHz")

	if isGHz || (speed < 100 && !isMHz) {
		speed *= 1000
	}
	if speed <= 0 || speed >= math.MaxUint {
		return 0
	}
	return uint(math.Floor(speed + 0.5))
}

// parseFloatPrefix parses the longest floating point number at the start of s,
// after optional whitespace, and returns it with the unparsed remainder. When
// no number is present it returns 0 and s unchanged.
func parseFloatPrefix(s string) (float64, string) {
	i := len(s) - len(strings.TrimLeft(s, " \t\n\v\f\r"))
	start := i

	if i < len(s) && (s[i] == '+' || s[i] == '-') {
		i++
	}
	digits := 0
	for i < len(s) && isDigit(s[i]) {
		i++
		digits++
	}
	if i < len(s) && s[i] == '.' {
		i++
		for i < len(s) && isDigit(s[i]) {
			i++
			digits++
		}
	}
	if digits == 0 {
		return 0, s
	}

	if i < len(s) && (s[i] == 'e' || s[i] == 'E') {
		j := i + 1
		if j < len(s) && (s[j] == '+' || s[j] == '-') {
			j++
		}
		if j < len(s) && isDigit(s[j]) {
			for j < len(s) && isDigit(s[j]) {
				j++
			}
			i = j
		}
	}

	v, err := strconv.ParseFloat(s[start:i], 64)
	if err != nil {
		return 0, s
	}
	return v, s[i:]
}

func isDigit(b byte) bool {
	return b >= '0' && b <= '9'
}
