package config

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"
)

// Load reads and parses a TOML config file, rejects unknown keys, and
// validates the result. Strictness on unknown keys is deliberate: a
// silently ignored typo in the config file is a hard bug to find.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	md, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return nil, fmt.Errorf("parsing config file %s: %w", path, err)
	}

	if err := checkUnknownKeys(&md); err != nil {
		return nil, err
	}

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// LoadOrDefault reads a TOML config file if it exists, otherwise
// returns defaults. Supports running with no config file at all, every
// setting coming from flags.
func LoadOrDefault(path string) (*Config, error) {
	if path == "" {
		return DefaultConfig(), nil
	}

	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return DefaultConfig(), nil
	}

	return Load(path)
}

// Resolve applies the full override chain:
// defaults -> config file -> environment variables -> CLI flags.
func Resolve(env EnvOverrides, cli CLIOverrides) (*Config, error) {
	cfgPath := DefaultConfigPath()
	if env.ConfigPath != "" {
		cfgPath = env.ConfigPath
	}

	if cli.ConfigPath != "" {
		cfgPath = cli.ConfigPath
	}

	cfg, err := LoadOrDefault(cfgPath)
	if err != nil {
		return nil, err
	}

	apply := func(dst *string, envVal, cliVal string) {
		if envVal != "" {
			*dst = envVal
		}

		if cliVal != "" {
			*dst = cliVal
		}
	}

	apply(&cfg.Tenant, env.Tenant, cli.Tenant)
	apply(&cfg.Subscription, env.Subscription, cli.Subscription)
	apply(&cfg.ResourceGroup, env.ResourceGroup, cli.ResourceGroup)
	apply(&cfg.StorageAccount, env.StorageAccount, cli.StorageAccount)
	apply(&cfg.Container, env.Container, cli.Container)

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return cfg, nil
}

// knownKeys are the valid top-level keys in the config file.
var knownKeys = map[string]bool{
	"tenant": true, "subscription": true, "resource_group": true,
	"storage_account": true, "container": true, "log_level": true,
}

// checkUnknownKeys rejects keys the decoder did not map to a field,
// with a sorted list of valid keys in the message.
func checkUnknownKeys(md *toml.MetaData) error {
	undecoded := md.Undecoded()
	if len(undecoded) == 0 {
		return nil
	}

	valid := make([]string, 0, len(knownKeys))
	for k := range knownKeys {
		valid = append(valid, k)
	}

	sort.Strings(valid)

	names := make([]string, len(undecoded))
	for i, key := range undecoded {
		names[i] = key.String()
	}

	return fmt.Errorf("unknown config key(s) %s (valid keys: %s)",
		strings.Join(names, ", "), strings.Join(valid, ", "))
}
