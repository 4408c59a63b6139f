package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/adlsctl/adlsctl/internal/identity"
)

func newResolveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "resolve <name>",
		Short: "Resolve a directory identity to its object ID",
		Long: `Resolve a user principal name, group display name, or service principal
display name to its Azure AD object ID. Lookup order is user, then
group, then service principal; the first match wins.`,
		Args: cobra.ExactArgs(1),
		RunE: runResolve,
	}
}

// resolveOutput is the JSON schema for `resolve --json`.
type resolveOutput struct {
	Name        string `json:"name"`
	ObjectID    string `json:"object_id"`
	Kind        string `json:"kind"`
	DisplayName string `json:"display_name"`
}

func runResolve(_ *cobra.Command, args []string) error {
	logger := buildLogger()
	ctx := context.Background()

	client, err := graphClient(ctx, logger)
	if err != nil {
		return err
	}

	ref, err := identity.NewResolver(client, logger).Resolve(ctx, args[0])
	if err != nil {
		return err
	}

	if flagJSON {
		return printJSON(resolveOutput{
			Name:        args[0],
			ObjectID:    ref.ObjectID,
			Kind:        ref.Kind.String(),
			DisplayName: ref.DisplayName,
		})
	}

	fmt.Printf("Object ID: %s\n", ref.ObjectID)
	fmt.Printf("Kind:      %s\n", ref.Kind)
	fmt.Printf("Name:      %s\n", ref.DisplayName)

	return nil
}
