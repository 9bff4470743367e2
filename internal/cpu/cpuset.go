package cpu

import (
	"iter"
	"math/bits"
	"strconv"
	"strings"
)

const wordBits = 64

// CPUSet is a bit-set over logical processor ids. It is independent of any OS
// representation; the platform adapters translate it at the syscall boundary.
//
// The zero value is an empty set ready to use. A CPUSet that is no longer
// mutated is safe for concurrent reads.
type CPUSet struct {
	words []uint64
}

// NewCPUSet returns a set containing the given processor ids.
func NewCPUSet(ids ...int) CPUSet {
	var s CPUSet
	for _, id := range ids {
		s.Set(id)
	}
	return s
}

// FullCPUSet returns a set containing every processor id in [0, n).
func FullCPUSet(n int) CPUSet {
	var s CPUSet
	for id := range n {
		s.Set(id)
	}
	return s
}

// Set adds id to the set. Negative ids are ignored.
func (s *CPUSet) Set(id int) {
	if id < 0 {
		return
	}
	w := id / wordBits
	if w >= len(s.words) {
		grown := make([]uint64, w+1)
		copy(grown, s.words)
		s.words = grown
	}
	s.words[w] |= 1 << uint(id%wordBits)
}

// IsSet reports whether id is in the set.
func (s CPUSet) IsSet(id int) bool {
	if id < 0 {
		return false
	}
	w := id / wordBits
	if w >= len(s.words) {
		return false
	}
	return s.words[w]&(1<<uint(id%wordBits)) != 0
}

// Count returns the number of ids in the set.
func (s CPUSet) Count() int {
	n := 0
	for _, w := range s.words {
		n += bits.OnesCount64(w)
	}
	return n
}

// All yields the ids in ascending order.
func (s CPUSet) All() iter.Seq[int] {
	return func(yield func(int) bool) {
		for i, w := range s.words {
			for w != 0 {
				b := bits.TrailingZeros64(w)
				if !yield(i*wordBits + b) {
					return
				}
				w &^= 1 << uint(b)
			}
		}
	}
}

// Nth returns the n-th (zero-based) id in ascending order.
func (s CPUSet) Nth(n int) (int, bool) {
	if n < 0 {
		return 0, false
	}
	for id := range s.All() {
		if n == 0 {
			return id, true
		}
		n--
	}
	return 0, false
}

// IDs returns the ids in ascending order.
func (s CPUSet) IDs() []int {
	ids := make([]int, 0, s.Count())
	for id := range s.All() {
		ids = append(ids, id)
	}
	return ids
}

// Clone returns an independent copy of the set.
func (s CPUSet) Clone() CPUSet {
	if s.words == nil {
		return CPUSet{}
	}
	words := make([]uint64, len(s.words))
	copy(words, s.words)
	return CPUSet{words: words}
}

// Equal reports whether both sets hold the same ids.
func (s CPUSet) Equal(o CPUSet) bool {
	n := max(len(s.words), len(o.words))
	for i := range n {
		var a, b uint64
		if i < len(s.words) {
			a = s.words[i]
		}
		if i < len(o.words) {
			b = o.words[i]
		}
		if a != b {
			return false
		}
	}
	return true
}

// String formats the set the way the kernel prints cpulists, e.g. "0-3,8,10-11".
func (s CPUSet) String() string {
	var sb strings.Builder
	start, prev := -1, -1

	flush := func() {
		if start < 0 {
			return
		}
		if sb.Len() > 0 {
			sb.WriteByte(',')
		}
		sb.WriteString(strconv.Itoa(start))
		if prev > start {
			sb.WriteByte('-')
			sb.WriteString(strconv.Itoa(prev))
		}
	}

	for id := range s.All() {
		if id == prev+1 && start >= 0 {
			prev = id
			continue
		}
		flush()
		start, prev = id, id
	}
	flush()

	return sb.String()
}
