package main

import (
	"flag"
	"fmt"

	"github.com/BurntSushi/toml"

	"github.com/utkarsh5026/corebind/topology"
)

// Config holds the settings of a corebind run. Command-line flags that were
// set explicitly take precedence over values from the TOML file.
type Config struct {
	CPUInfo string `toml:"cpuinfo"`
	Threads int    `toml:"threads"`
	GPU     bool   `toml:"gpu"`
	Bind    bool   `toml:"bind"`
}

// LoadConfig decodes the TOML file at path. An empty path yields the defaults.
func LoadConfig(path string) (*Config, error) {
	var cfg Config
	if path == "" {
		return validateAndSetDefaults(&cfg)
	}

	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, fmt.Errorf("failed to decode TOML config from %s: %w", path, err)
	}

	return validateAndSetDefaults(&cfg)
}

// LoadConfigFromString decodes a TOML document.
func LoadConfigFromString(data string) (*Config, error) {
	var cfg Config
	if _, err := toml.Decode(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to decode TOML config string: %w", err)
	}

	return validateAndSetDefaults(&cfg)
}

func validateAndSetDefaults(cfg *Config) (*Config, error) {
	if cfg.CPUInfo == "" {
		cfg.CPUInfo = topology.DefaultPath
	}

	if cfg.Threads < 0 {
		return nil, fmt.Errorf("threads must be zero (automatic) or positive, got %d", cfg.Threads)
	}

	return cfg, nil
}

// cliFlags are the command-line values. Only flags the user actually set are
// applied over the file config.
type cliFlags struct {
	configPath string
	cpuinfo    string
	threads    int
	gpu        bool
	bind       bool
}

func registerFlags(fs *flag.FlagSet) *cliFlags {
	f := &cliFlags{}
	fs.StringVar(&f.configPath, "config", "", "TOML config file with cpuinfo, threads, gpu and bind keys")
	fs.StringVar(&f.cpuinfo, "cpuinfo", topology.DefaultPath, "Path of the cpuinfo file to parse")
	fs.IntVar(&f.threads, "threads", 0, "Requested worker count (0 = one per physical core)")
	fs.BoolVar(&f.gpu, "gpu", false, "Mark a GPU runtime as active, which disables thread binding")
	fs.BoolVar(&f.bind, "bind", false, "Run a pinned parallel region and report where each worker landed")
	return f
}

// apply overlays the flags that were set on fs onto cfg.
func (f *cliFlags) apply(fs *flag.FlagSet, cfg *Config) error {
	fs.Visit(func(fl *flag.Flag) {
		switch fl.Name {
		case "cpuinfo":
			cfg.CPUInfo = f.cpuinfo
		case "threads":
			cfg.Threads = f.threads
		case "gpu":
			cfg.GPU = f.gpu
		case "bind":
			cfg.Bind = f.bind
		}
	})
	_, err := validateAndSetDefaults(cfg)
	return err
}

// parseConfig parses args and merges them with the config file they name.
func parseConfig(args []string) (*Config, error) {
	fs := flag.NewFlagSet("corebind", flag.ContinueOnError)
	f := registerFlags(fs)
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	cfg, err := LoadConfig(f.configPath)
	if err != nil {
		return nil, err
	}

	if err := f.apply(fs, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
