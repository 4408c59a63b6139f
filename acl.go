package main

import (
	"context"
	"os"

	"github.com/spf13/cobra"

	"github.com/adlsctl/adlsctl/internal/aclspec"
	"github.com/adlsctl/adlsctl/internal/identity"
	"github.com/adlsctl/adlsctl/internal/lakeops"
)

func newACLCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "acl",
		Short: "Manage POSIX ACLs on folders",
	}

	cmd.AddCommand(newACLSetCmd())
	cmd.AddCommand(newACLGetCmd())
	cmd.AddCommand(newACLRmCmd())

	return cmd
}

func newACLSetCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "set <path>",
		Short: "Grant an identity access to a folder",
		Long: `Grant a user, group, or service principal Read or Write access to a
folder. The grant recurses to every descendant unless --no-recurse is
given. --default-scope repeats the grant as a default entry so files
created later inherit it.`,
		Args: cobra.ExactArgs(1),
		RunE: runACLSet,
	}

	cmd.Flags().StringP("identity", "i", "", "user principal name, group name, or service principal name (required)")
	cmd.Flags().StringP("access", "a", "Read", "access level: Read or Write")
	cmd.Flags().Bool("default-scope", false, "also add a default-scope entry inherited by new children")
	cmd.Flags().Bool("container-acl", false, "also grant read access on the container root for traversal")
	cmd.Flags().Bool("no-recurse", false, "apply to the target folder only")
	_ = cmd.MarkFlagRequired("identity")

	return cmd
}

func newACLGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get [path]",
		Short: "List named ACL entries on a folder (container root when no path)",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runACLGet,
	}
}

func newACLRmCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rm [path]",
		Short: "Revoke an identity's access to a folder (container root when no path)",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runACLRm,
	}

	cmd.Flags().StringP("identity", "i", "", "identity whose entries to remove (required)")
	cmd.Flags().Bool("no-recurse", false, "apply to the target folder only")
	_ = cmd.MarkFlagRequired("identity")

	return cmd
}

// aclOptionsFromFlags reads the shared ACL flags.
func aclOptionsFromFlags(cmd *cobra.Command) lakeops.AclOptions {
	opts := lakeops.AclOptions{Propagation: lakeops.PropagateRecursive}

	if noRecurse, _ := cmd.Flags().GetBool("no-recurse"); noRecurse {
		opts.Propagation = lakeops.PropagateSingleNode
	}

	if cmd.Flags().Lookup("default-scope") != nil {
		opts.IncludeDefaultScope, _ = cmd.Flags().GetBool("default-scope")
	}

	if cmd.Flags().Lookup("container-acl") != nil {
		opts.SetContainerACL, _ = cmd.Flags().GetBool("container-acl")
	}

	return opts
}

func runACLSet(cmd *cobra.Command, args []string) error {
	logger := buildLogger()
	ctx := context.Background()

	t, err := target(args[0])
	if err != nil {
		return err
	}

	identityName, _ := cmd.Flags().GetString("identity")

	accessValue, _ := cmd.Flags().GetString("access")

	level, err := aclspec.ParseAccessLevel(accessValue)
	if err != nil {
		return err
	}

	ops, err := lakeOps(ctx, logger)
	if err != nil {
		return err
	}

	if err := ops.SetACL(ctx, t, identityName, level, aclOptionsFromFlags(cmd)); err != nil {
		return err
	}

	statusf("Granted %s %s on %s/%s\n", identityName, level, t.Container, t.Path)

	return nil
}

// pathArg returns the optional path argument, empty for the container
// root.
func pathArg(args []string) string {
	if len(args) == 0 {
		return ""
	}

	return args[0]
}

func runACLRm(cmd *cobra.Command, args []string) error {
	logger := buildLogger()
	ctx := context.Background()

	t, err := target(pathArg(args))
	if err != nil {
		return err
	}

	identityName, _ := cmd.Flags().GetString("identity")

	ops, err := lakeOps(ctx, logger)
	if err != nil {
		return err
	}

	if err := ops.RemoveACL(ctx, t, identityName, aclOptionsFromFlags(cmd)); err != nil {
		return err
	}

	statusf("Revoked %s on %s/%s\n", identityName, t.Container, t.Path)

	return nil
}

// aclGetOutput is the JSON schema for one `acl get --json` row.
type aclGetOutput struct {
	DisplayName  string `json:"display_name,omitempty"`
	ObjectID     string `json:"object_id"`
	Kind         string `json:"kind,omitempty"`
	Permissions  string `json:"permissions"`
	DefaultScope bool   `json:"default_scope"`
}

func runACLGet(_ *cobra.Command, args []string) error {
	logger := buildLogger()
	ctx := context.Background()

	t, err := target(pathArg(args))
	if err != nil {
		return err
	}

	ops, err := lakeOps(ctx, logger)
	if err != nil {
		return err
	}

	entries, err := ops.GetACL(ctx, t)
	if err != nil {
		return err
	}

	if flagJSON {
		out := make([]aclGetOutput, 0, len(entries))
		for _, e := range entries {
			row := aclGetOutput{
				DisplayName:  e.DisplayName,
				ObjectID:     e.ObjectID,
				Permissions:  e.Permissions,
				DefaultScope: e.DefaultScope,
			}
			if e.Kind != identity.KindUnknown {
				row.Kind = e.Kind.String()
			}

			out = append(out, row)
		}

		return printJSON(out)
	}

	printACLTable(entries)

	return nil
}

func printACLTable(entries []lakeops.AclEntry) {
	rows := make([][]string, 0, len(entries))

	for _, e := range entries {
		name := e.DisplayName
		if name == "" {
			name = "(unknown)"
		}

		scope := "access"
		if e.DefaultScope {
			scope = "default"
		}

		rows = append(rows, []string{name, e.Kind.String(), e.Permissions, scope, e.ObjectID})
	}

	printTable(os.Stdout, []string{"NAME", "KIND", "PERMS", "SCOPE", "OBJECT ID"}, rows, stdoutIsTerminal())
}
