package affinity

import (
	"os"
	"strings"

	"github.com/utkarsh5026/corebind/internal/cpu"
)

// Option is a functional option for configuring a Manager.
type Option func(*config)

type config struct {
	lookupEnv  LookupEnvFunc
	affinity   OSAffinity
	gpuEnabled bool
}

func defaultConfig() *config {
	return &config{
		lookupEnv: os.LookupEnv,
		affinity:  cpu.System(),
	}
}

// WithEnvLookup replaces os.LookupEnv for the monitored variable scan.
func WithEnvLookup(lookup LookupEnvFunc) Option {
	return func(cfg *config) {
		if lookup != nil {
			cfg.lookupEnv = lookup
		}
	}
}

// WithEnvironment scans a fixed "KEY=VALUE" list instead of the process
// environment.
func WithEnvironment(environ []string) Option {
	vars := make(map[string]string, len(environ))
	for _, kv := range environ {
		if key, value, ok := strings.Cut(kv, "="); ok {
			vars[key] = value
		}
	}
	return WithEnvLookup(func(key string) (string, bool) {
		v, ok := vars[key]
		return v, ok
	})
}

// WithAffinity sets the OS affinity adapter. Defaults to the platform one.
func WithAffinity(a OSAffinity) Option {
	return func(cfg *config) {
		if a != nil {
			cfg.affinity = a
		}
	}
}

// WithGPUEnabled sets the initial GPU flag.
func WithGPUEnabled(enabled bool) Option {
	return func(cfg *config) {
		cfg.gpuEnabled = enabled
	}
}
