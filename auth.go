package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/adlsctl/adlsctl/internal/azauth"
)

func newLoginCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "login",
		Short: "Authenticate with Azure using device code flow",
		RunE:  runLogin,
	}
}

func newLogoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Remove saved authentication tokens",
		RunE:  runLogout,
	}
}

func newWhoamiCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Display the signed-in user",
		RunE:  runWhoami,
	}
}

func runLogin(_ *cobra.Command, _ []string) error {
	logger := buildLogger()
	ctx := context.Background()

	err := azauth.Login(ctx, tokenStore(), resolvedCfg.Tenant, func(da azauth.DeviceAuth) {
		// Device code prompts must always be visible — not suppressed by --quiet.
		fmt.Fprintf(os.Stderr, "To sign in, visit: %s\n", da.VerificationURI)
		fmt.Fprintf(os.Stderr, "Enter code: %s\n", da.UserCode)
	}, logger)
	if err != nil {
		return err
	}

	statusf("Login successful.\n")

	return nil
}

func runLogout(_ *cobra.Command, _ []string) error {
	if err := azauth.Logout(tokenStore(), buildLogger()); err != nil {
		return err
	}

	statusf("Logged out.\n")

	return nil
}

// whoamiOutput is the JSON schema for `whoami --json`.
type whoamiOutput struct {
	ID            string `json:"id"`
	DisplayName   string `json:"display_name"`
	PrincipalName string `json:"principal_name"`
	Tenant        string `json:"tenant"`
}

func runWhoami(_ *cobra.Command, _ []string) error {
	logger := buildLogger()
	ctx := context.Background()

	client, err := graphClient(ctx, logger)
	if err != nil {
		return err
	}

	me, err := client.Me(ctx)
	if err != nil {
		return fmt.Errorf("fetching user profile: %w", err)
	}

	if flagJSON {
		return printJSON(whoamiOutput{
			ID:            me.ID,
			DisplayName:   me.DisplayName,
			PrincipalName: me.UserPrincipalName,
			Tenant:        resolvedCfg.Tenant,
		})
	}

	fmt.Printf("User:   %s (%s)\n", me.DisplayName, me.UserPrincipalName)
	fmt.Printf("ID:     %s\n", me.ID)
	fmt.Printf("Tenant: %s\n", resolvedCfg.Tenant)

	return nil
}

// printJSON writes v to stdout as indented JSON.
func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")

	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encoding JSON output: %w", err)
	}

	return nil
}
