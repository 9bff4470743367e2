//go:build linux

package topology

// Discover parses the running machine's topology from DefaultPath.
func Discover() *Collection {
	return NewCollection(SystemSource())
}
