//go:build !debug

package topology

func debugLog(string, ...any) {}
