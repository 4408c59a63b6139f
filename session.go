package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/adlsctl/adlsctl/internal/arm"
	"github.com/adlsctl/adlsctl/internal/azauth"
	"github.com/adlsctl/adlsctl/internal/config"
	"github.com/adlsctl/adlsctl/internal/dfs"
	"github.com/adlsctl/adlsctl/internal/graph"
	"github.com/adlsctl/adlsctl/internal/identity"
	"github.com/adlsctl/adlsctl/internal/lakeops"
	"github.com/adlsctl/adlsctl/internal/tokenfile"
)

// tokenStore returns the on-disk token store.
func tokenStore() *tokenfile.Store {
	return tokenfile.NewStore(config.TokensDir())
}

// graphClient builds a Microsoft Graph client authenticated for the
// directory resource.
func graphClient(ctx context.Context, logger *slog.Logger) (*graph.Client, error) {
	ts, err := azauth.TokenSource(ctx, tokenStore(), resolvedCfg.Tenant, azauth.ResourceGraph, nil, logger)
	if err != nil {
		return nil, err
	}

	return graph.NewClient(graph.BaseURL, defaultHTTPClient(), ts, logger), nil
}

// armClient builds an Azure Resource Manager client.
func armClient(ctx context.Context, logger *slog.Logger) (*arm.Client, error) {
	ts, err := azauth.TokenSource(ctx, tokenStore(), resolvedCfg.Tenant, azauth.ResourceARM, nil, logger)
	if err != nil {
		return nil, err
	}

	return arm.NewClient(arm.BaseURL, defaultHTTPClient(), ts, logger), nil
}

// resolveSubscription looks up the configured subscription by ID or
// display name.
func resolveSubscription(ctx context.Context, mgmt *arm.Client) (*arm.Subscription, error) {
	nameOrID, err := requireConfigValue(resolvedCfg.Subscription, "subscription", "subscription")
	if err != nil {
		return nil, err
	}

	sub, err := mgmt.FindSubscription(ctx, nameOrID)
	if err != nil {
		return nil, fmt.Errorf("looking up subscription %q: %w", nameOrID, err)
	}

	if sub == nil {
		return nil, fmt.Errorf("subscription %q not found (not visible to this account?)", nameOrID)
	}

	return sub, nil
}

// dfsEndpoint determines the DFS endpoint for the configured storage
// account. When a subscription and resource group are configured the
// account is resolved through ARM, which also verifies the
// hierarchical namespace is enabled; otherwise the conventional
// endpoint URL is derived from the account name.
func dfsEndpoint(ctx context.Context, logger *slog.Logger) (string, error) {
	account, err := requireConfigValue(resolvedCfg.StorageAccount, "storage account", "account")
	if err != nil {
		return "", err
	}

	if resolvedCfg.Subscription == "" || resolvedCfg.ResourceGroup == "" {
		logger.Debug("no subscription/resource group configured, deriving DFS endpoint from account name",
			slog.String("account", account))

		return dfs.EndpointURL(account), nil
	}

	mgmt, err := armClient(ctx, logger)
	if err != nil {
		return "", err
	}

	sub, err := resolveSubscription(ctx, mgmt)
	if err != nil {
		return "", err
	}

	sa, err := mgmt.GetStorageAccount(ctx, sub.ID, resolvedCfg.ResourceGroup, account)
	if err != nil {
		return "", fmt.Errorf("looking up storage account %q: %w", account, err)
	}

	if !sa.HnsEnabled {
		return "", fmt.Errorf("storage account %q does not have a hierarchical namespace (not ADLS Gen2)", account)
	}

	return sa.DfsEndpoint, nil
}

// lakeOps wires the full operations stack: DFS store, directory
// resolver, and the orchestration layer on top.
func lakeOps(ctx context.Context, logger *slog.Logger) (*lakeops.Ops, error) {
	endpoint, err := dfsEndpoint(ctx, logger)
	if err != nil {
		return nil, err
	}

	storageTS, err := azauth.TokenSource(ctx, tokenStore(), resolvedCfg.Tenant, azauth.ResourceStorage, nil, logger)
	if err != nil {
		return nil, err
	}

	store := dfs.NewClient(endpoint, defaultHTTPClient(), storageTS, logger)

	dir, err := graphClient(ctx, logger)
	if err != nil {
		return nil, err
	}

	return lakeops.New(store, identity.NewResolver(dir, logger), logger), nil
}

// target builds a lakeops.Target from the configured account/container
// and a path argument.
func target(path string) (lakeops.Target, error) {
	account, err := requireConfigValue(resolvedCfg.StorageAccount, "storage account", "account")
	if err != nil {
		return lakeops.Target{}, err
	}

	container, err := requireConfigValue(resolvedCfg.Container, "container", "container")
	if err != nil {
		return lakeops.Target{}, err
	}

	return lakeops.Target{Account: account, Container: container, Path: path}, nil
}
