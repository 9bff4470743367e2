//go:build !debug

package affinity

func debugLog(string, ...any) {}
