package main

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/adlsctl/adlsctl/internal/azauth"
	"github.com/adlsctl/adlsctl/internal/config"
	"github.com/adlsctl/adlsctl/internal/lakeops"
)

// version is set at build time via ldflags.
var version = "dev"

// Global persistent flags, bound in newRootCmd().
var (
	flagConfigPath    string
	flagTenant        string
	flagSubscription  string
	flagResourceGroup string
	flagAccount       string
	flagContainer     string
	flagJSON          bool
	flagVerbose       bool
	flagQuiet         bool
)

// resolvedCfg holds the effective configuration loaded by
// PersistentPreRunE. Available to all subcommands.
var resolvedCfg *config.Config

// httpClientTimeout bounds every HTTP request so a hung connection
// cannot block a CLI command indefinitely.
const httpClientTimeout = 60 * time.Second

// defaultHTTPClient returns an HTTP client with a sensible timeout.
func defaultHTTPClient() *http.Client {
	return &http.Client{Timeout: httpClientTimeout}
}

// newRootCmd builds and returns the fully-assembled root command with
// all subcommands registered. Called once from main().
func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "adlsctl",
		Short:   "Manage ADLS Gen2 folders and POSIX ACLs",
		Long:    "A CLI for Azure Data Lake Storage Gen2: create and move folders,\nand grant or revoke POSIX ACLs for users, groups, and service principals.",
		Version: version,
		// Silence Cobra's default error/usage printing — we handle it ourselves.
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			return loadConfig()
		},
	}

	cmd.PersistentFlags().StringVar(&flagConfigPath, "config", "", "config file path")
	cmd.PersistentFlags().StringVar(&flagTenant, "tenant", "", "Azure AD tenant (domain or GUID)")
	cmd.PersistentFlags().StringVar(&flagSubscription, "subscription", "", "Azure subscription ID or display name")
	cmd.PersistentFlags().StringVar(&flagResourceGroup, "resource-group", "", "resource group of the storage account")
	cmd.PersistentFlags().StringVar(&flagAccount, "account", "", "ADLS Gen2 storage account name")
	cmd.PersistentFlags().StringVar(&flagContainer, "container", "", "container (filesystem) for path operations")
	cmd.PersistentFlags().BoolVar(&flagJSON, "json", false, "output in JSON format")
	cmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "enable debug logging")
	cmd.PersistentFlags().BoolVarP(&flagQuiet, "quiet", "q", false, "suppress informational output")

	// Register subcommands.
	cmd.AddCommand(newLoginCmd())
	cmd.AddCommand(newLogoutCmd())
	cmd.AddCommand(newWhoamiCmd())
	cmd.AddCommand(newResolveCmd())
	cmd.AddCommand(newAccountCmd())
	cmd.AddCommand(newMkdirCmd())
	cmd.AddCommand(newRmCmd())
	cmd.AddCommand(newMvCmd())
	cmd.AddCommand(newACLCmd())
	cmd.AddCommand(newDoctorCmd())

	return cmd
}

// loadConfig resolves the effective configuration from the override
// chain and stores the result in resolvedCfg for use by subcommands.
func loadConfig() error {
	cli := config.CLIOverrides{
		ConfigPath:     flagConfigPath,
		Tenant:         flagTenant,
		Subscription:   flagSubscription,
		ResourceGroup:  flagResourceGroup,
		StorageAccount: flagAccount,
		Container:      flagContainer,
	}

	resolved, err := config.Resolve(config.ReadEnvOverrides(), cli)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	resolvedCfg = resolved

	return nil
}

// buildLogger creates an slog.Logger configured by the resolved config
// and CLI flags. Config-file log level provides the baseline;
// --verbose and --quiet override it because CLI flags always win.
func buildLogger() *slog.Logger {
	level := slog.LevelWarn

	if resolvedCfg != nil {
		switch resolvedCfg.LogLevel {
		case "debug":
			level = slog.LevelDebug
		case "info":
			level = slog.LevelInfo
		case "error":
			level = slog.LevelError
		}
	}

	if flagVerbose {
		level = slog.LevelDebug
	}

	if flagQuiet {
		level = slog.LevelError
	}

	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// exitOnError prints a user-friendly error message to stderr and exits.
// Auth errors get a hint about the login command.
func exitOnError(err error) {
	if errors.Is(err, azauth.ErrNotLoggedIn) || errors.Is(err, lakeops.ErrAuthRequired) {
		fmt.Fprintln(os.Stderr, "Error: not logged in — run 'adlsctl login' first")
		os.Exit(1)
	}

	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(1)
}

// requireConfigValue returns a uniform error for a missing required
// setting, naming the flag that provides it.
func requireConfigValue(value, what, flag string) (string, error) {
	if value == "" {
		return "", fmt.Errorf("%s not set (use --%s or set it in the config file)", what, flag)
	}

	return value, nil
}
