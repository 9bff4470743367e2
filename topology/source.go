package topology

import (
	"iter"
	"os"
	"strings"
)

// DefaultPath is the Linux pseudo-file describing every logical processor.
const DefaultPath = "/proc/cpuinfo"

// LineSource is a restartable sequence of lines.
// FirstLine rewinds to the beginning; both methods return false once the
// input is exhausted.
type LineSource interface {
	FirstLine() (string, bool)
	NextLine() (string, bool)
}

// Source owns raw topology text and hands it out one line at a time.
// Lines are substrings of the owned content, nothing is copied per line.
type Source struct {
	content string
	pos     int
	active  bool
}

// NewSource wraps in-memory topology text, typically for tests.
func NewSource(content string) *Source {
	return &Source{content: content}
}

// LoadSource reads the topology text at path. An unreadable file yields an
// empty source rather than an error.
func LoadSource(path string) *Source {
	data, err := os.ReadFile(path)
	if err != nil {
		debugLog("cannot read %s, using empty topology: %v", path, err)
		return NewSource("")
	}
	return NewSource(string(data))
}

// SystemSource reads DefaultPath.
func SystemSource() *Source {
	return LoadSource(DefaultPath)
}

// FirstLine restarts the sequence and returns its first line.
func (s *Source) FirstLine() (string, bool) {
	s.pos = 0
	s.active = len(s.content) > 0
	return s.NextLine()
}

// NextLine returns the line after the previous one, or false at the end.
func (s *Source) NextLine() (string, bool) {
	if !s.active {
		return "", false
	}

	line, next := cutLine(s.content, s.pos)
	s.pos = next
	if s.pos >= len(s.content) {
		s.active = false
	}
	return line, true
}

// Lines yields every line from the start. It keeps its own position, so it
// may be ranged over repeatedly and does not move the FirstLine/NextLine cursor.
func (s *Source) Lines() iter.Seq[string] {
	return func(yield func(string) bool) {
		for pos := 0; pos < len(s.content); {
			var line string
			line, pos = cutLine(s.content, pos)
			if !yield(line) {
				return
			}
		}
	}
}

// cutLine returns the line starting at pos and the offset of the next one.
// A trailing '\r' is dropped so CRLF text parses like LF text.
func cutLine(content string, pos int) (string, int) {
	rest := content[pos:]
	i := strings.IndexByte(rest, '\n')
	if i < 0 {
		return strings.TrimSuffix(rest, "\r"), len(content)
	}
	return strings.TrimSuffix(rest[:i], "\r"), pos + i + 1
}
