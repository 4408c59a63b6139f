package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/adlsctl/adlsctl/internal/azauth"
	"github.com/adlsctl/adlsctl/internal/dfs"
	"github.com/adlsctl/adlsctl/internal/lakeops"
)

func newDoctorCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Check connectivity to the directory, management, and storage APIs",
		RunE:  runDoctor,
	}
}

func runDoctor(_ *cobra.Command, _ []string) error {
	logger := buildLogger()
	ctx := context.Background()

	probes := []lakeops.Probe{
		{Capability: lakeops.CapabilityDirectory, Check: checkDirectory(logger)},
		{Capability: lakeops.CapabilityManagement, Check: checkManagement(logger)},
		{Capability: lakeops.CapabilityStorage, Check: checkStorage(logger)},
	}

	missing := lakeops.Preflight(ctx, logger, probes)

	failed := make(map[lakeops.Capability]error, len(missing))
	for _, m := range missing {
		failed[m.Capability] = m.Err
	}

	for _, probe := range probes {
		if err, ok := failed[probe.Capability]; ok {
			fmt.Printf("%-12s FAILED: %v\n", probe.Capability, err)
		} else {
			fmt.Printf("%-12s ok\n", probe.Capability)
		}
	}

	if len(missing) > 0 {
		os.Exit(1)
	}

	return nil
}

// checkDirectory verifies the Graph API is reachable with the saved
// credentials.
func checkDirectory(logger *slog.Logger) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		client, err := graphClient(ctx, logger)
		if err != nil {
			return err
		}

		_, err = client.Me(ctx)

		return err
	}
}

// checkManagement verifies ARM is reachable and at least one
// subscription is visible.
func checkManagement(logger *slog.Logger) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		mgmt, err := armClient(ctx, logger)
		if err != nil {
			return err
		}

		subs, err := mgmt.ListSubscriptions(ctx)
		if err != nil {
			return err
		}

		if len(subs) == 0 {
			return fmt.Errorf("no subscriptions visible to this account")
		}

		return nil
	}
}

// checkStorage verifies the DFS endpoint answers for the configured
// container.
func checkStorage(logger *slog.Logger) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		container, err := requireConfigValue(resolvedCfg.Container, "container", "container")
		if err != nil {
			return err
		}

		endpoint, err := dfsEndpoint(ctx, logger)
		if err != nil {
			return err
		}

		ts, err := azauth.TokenSource(ctx, tokenStore(), resolvedCfg.Tenant, azauth.ResourceStorage, nil, logger)
		if err != nil {
			return err
		}

		client := dfs.NewClient(endpoint, defaultHTTPClient(), ts, logger)

		exists, err := client.Exists(ctx, container, "")
		if err != nil {
			return err
		}

		if !exists {
			return fmt.Errorf("container %q not found", container)
		}

		return nil
	}
}
