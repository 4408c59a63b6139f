package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

func newAccountCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "account [subscription]",
		Short: "Display the subscription and storage account",
		Long: `Display the subscription (and, when a resource group and storage
account are configured, the storage account's DFS endpoint). An
argument overrides the configured subscription for this invocation.`,
		Args: cobra.MaximumNArgs(1),
		RunE: runAccount,
	}
}

// accountOutput is the JSON schema for `account --json`.
type accountOutput struct {
	SubscriptionID   string `json:"subscription_id"`
	SubscriptionName string `json:"subscription_name"`
	State            string `json:"state"`
	StorageAccount   string `json:"storage_account,omitempty"`
	Location         string `json:"location,omitempty"`
	DfsEndpoint      string `json:"dfs_endpoint,omitempty"`
	HnsEnabled       bool   `json:"hns_enabled,omitempty"`
}

func runAccount(_ *cobra.Command, args []string) error {
	logger := buildLogger()
	ctx := context.Background()

	if len(args) == 1 {
		resolvedCfg.Subscription = args[0]
	}

	mgmt, err := armClient(ctx, logger)
	if err != nil {
		return err
	}

	sub, err := resolveSubscription(ctx, mgmt)
	if err != nil {
		return err
	}

	out := accountOutput{
		SubscriptionID:   sub.ID,
		SubscriptionName: sub.DisplayName,
		State:            sub.State,
	}

	// Storage account details need the resource group; without one the
	// command still shows the subscription.
	if resolvedCfg.StorageAccount != "" && resolvedCfg.ResourceGroup != "" {
		sa, saErr := mgmt.GetStorageAccount(ctx, sub.ID, resolvedCfg.ResourceGroup, resolvedCfg.StorageAccount)
		if saErr != nil {
			return fmt.Errorf("looking up storage account %q: %w", resolvedCfg.StorageAccount, saErr)
		}

		out.StorageAccount = sa.Name
		out.Location = sa.Location
		out.DfsEndpoint = sa.DfsEndpoint
		out.HnsEnabled = sa.HnsEnabled
	}

	if flagJSON {
		return printJSON(out)
	}

	fmt.Printf("Subscription: %s (%s)\n", out.SubscriptionName, out.SubscriptionID)
	fmt.Printf("State:        %s\n", out.State)

	if out.StorageAccount != "" {
		fmt.Printf("\nStorage account: %s (%s)\n", out.StorageAccount, out.Location)
		fmt.Printf("  DFS endpoint:  %s\n", out.DfsEndpoint)
		fmt.Printf("  HNS enabled:   %t\n", out.HnsEnabled)
	}

	return nil
}
