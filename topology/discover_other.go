//go:build !linux

package topology

// Discover returns an empty collection; topology discovery is Linux only.
func Discover() *Collection {
	return NewCollection(NewSource(""))
}
