// Package config loads the TOML config file and applies the override
// chain: defaults, then the config file, then ADLSCTL_* environment
// variables, then CLI flags. Flags always win so one-off overrides
// never require editing the file.
package config

import (
	"fmt"
	"os"
)

// Config holds every setting the CLI reads. All fields are optional in
// the file; commands that need a value and don't get one fail with a
// message naming the flag that would provide it.
type Config struct {
	// Tenant is the Azure AD tenant (domain or GUID) to sign in to.
	Tenant string `toml:"tenant"`

	// Subscription is a subscription ID or display name.
	Subscription string `toml:"subscription"`

	// ResourceGroup holds the storage account.
	ResourceGroup string `toml:"resource_group"`

	// StorageAccount is the ADLS Gen2 account name.
	StorageAccount string `toml:"storage_account"`

	// Container is the default filesystem (container) for path
	// operations.
	Container string `toml:"container"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `toml:"log_level"`
}

// DefaultConfig returns a Config with defaults applied.
func DefaultConfig() *Config {
	return &Config{
		Tenant:   "organizations",
		LogLevel: "warn",
	}
}

// validLogLevels are the accepted log_level values.
var validLogLevels = map[string]bool{
	"debug": true, "info": true, "warn": true, "error": true,
}

// Validate checks field values that have a closed set of valid inputs.
func Validate(cfg *Config) error {
	if cfg.LogLevel != "" && !validLogLevels[cfg.LogLevel] {
		return fmt.Errorf("invalid log_level %q (valid: debug, info, warn, error)", cfg.LogLevel)
	}

	return nil
}

// Environment variable names for overrides.
const (
	EnvConfig         = "ADLSCTL_CONFIG"
	EnvTenant         = "ADLSCTL_TENANT"
	EnvSubscription   = "ADLSCTL_SUBSCRIPTION"
	EnvResourceGroup  = "ADLSCTL_RESOURCE_GROUP"
	EnvStorageAccount = "ADLSCTL_STORAGE_ACCOUNT"
	EnvContainer      = "ADLSCTL_CONTAINER"
)

// EnvOverrides holds values read from the environment.
type EnvOverrides struct {
	ConfigPath     string
	Tenant         string
	Subscription   string
	ResourceGroup  string
	StorageAccount string
	Container      string
}

// ReadEnvOverrides reads the ADLSCTL_* environment variables.
func ReadEnvOverrides() EnvOverrides {
	return EnvOverrides{
		ConfigPath:     os.Getenv(EnvConfig),
		Tenant:         os.Getenv(EnvTenant),
		Subscription:   os.Getenv(EnvSubscription),
		ResourceGroup:  os.Getenv(EnvResourceGroup),
		StorageAccount: os.Getenv(EnvStorageAccount),
		Container:      os.Getenv(EnvContainer),
	}
}

// CLIOverrides holds flag values. Empty string means the flag was not
// set; no current flag needs to distinguish "set to empty".
type CLIOverrides struct {
	ConfigPath     string
	Tenant         string
	Subscription   string
	ResourceGroup  string
	StorageAccount string
	Container      string
}
