package main

import (
	"context"

	"github.com/spf13/cobra"
)

func newMkdirCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mkdir <path>",
		Short: "Create a folder",
		Args:  cobra.ExactArgs(1),
		RunE:  runMkdir,
	}

	cmd.Flags().Bool("strict", false, "fail if the folder already exists")

	return cmd
}

func newRmCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rm <path>",
		Short: "Delete a folder and all its contents",
		Args:  cobra.ExactArgs(1),
		RunE:  runRmFolder,
	}

	cmd.Flags().Bool("strict", false, "fail if the folder does not exist")

	return cmd
}

func newMvCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mv <source-path> <dest-path>",
		Short: "Move or rename a folder",
		Long: `Move or rename a folder within the container, or into another container
of the same storage account with --dest-container. The folder's ACLs
travel with it.`,
		Args: cobra.ExactArgs(2),
		RunE: runMv,
	}

	cmd.Flags().String("dest-container", "", "destination container (defaults to the source container)")

	return cmd
}

func runMkdir(cmd *cobra.Command, args []string) error {
	logger := buildLogger()
	ctx := context.Background()

	t, err := target(args[0])
	if err != nil {
		return err
	}

	ops, err := lakeOps(ctx, logger)
	if err != nil {
		return err
	}

	strict, _ := cmd.Flags().GetBool("strict")

	folder, err := ops.CreateFolder(ctx, t, strict)
	if err != nil {
		return err
	}

	statusf("Created %s/%s\n", folder.Container, folder.Path)

	return nil
}

func runRmFolder(cmd *cobra.Command, args []string) error {
	logger := buildLogger()
	ctx := context.Background()

	t, err := target(args[0])
	if err != nil {
		return err
	}

	ops, err := lakeOps(ctx, logger)
	if err != nil {
		return err
	}

	strict, _ := cmd.Flags().GetBool("strict")

	if err := ops.DeleteFolder(ctx, t, strict); err != nil {
		return err
	}

	statusf("Deleted %s/%s\n", t.Container, t.Path)

	return nil
}

func runMv(cmd *cobra.Command, args []string) error {
	logger := buildLogger()
	ctx := context.Background()

	src, err := target(args[0])
	if err != nil {
		return err
	}

	destContainer, _ := cmd.Flags().GetString("dest-container")

	ops, err := lakeOps(ctx, logger)
	if err != nil {
		return err
	}

	folder, err := ops.MoveFolder(ctx, src, destContainer, args[1])
	if err != nil {
		return err
	}

	statusf("Moved %s/%s to %s/%s\n", src.Container, src.Path, folder.Container, folder.Path)

	return nil
}
