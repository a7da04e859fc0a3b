package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jbweber/forge/internal/disk"
	"github.com/jbweber/forge/internal/dispatch"
	"github.com/jbweber/forge/internal/naming"
	"github.com/jbweber/forge/internal/output"
	"github.com/jbweber/forge/internal/rpc"
)

// Single-step block device commands. They map 1:1 to daemon operations and
// never compensate.

func init() {
	rootCmd.AddCommand(blockCreateCmd)
	rootCmd.AddCommand(blockAttachCmd)
	rootCmd.AddCommand(blockDetachCmd)
	rootCmd.AddCommand(blockDeleteCmd)
	rootCmd.AddCommand(blockListCmd)

	blockCreateCmd.Flags().StringVar(&blockCreateSize, "size", "", "size of an empty device (default "+disk.DefaultSize+")")
	blockCreateCmd.Flags().StringVar(&blockCreateSource, "source", "", "qcow2 image to import instead of creating an empty device")

	blockListCmd.Flags().StringVarP(&blockListFormat, "format", "o", string(output.FormatTable), "output format: table, json, yaml or csv")
	blockListCmd.Flags().BoolVar(&blockListNoHeaders, "no-headers", false, "omit the header row in table and csv output")
}

var (
	blockCreateSize    string
	blockCreateSource  string
	blockListFormat    string
	blockListNoHeaders bool
)

var blockCreateCmd = &cobra.Command{
	Use:   "block-create <name>",
	Short: "Create a block device",
	Args:  args(cobra.ExactArgs(1)),
	RunE: func(cmd *cobra.Command, a []string) error {
		if err := naming.ValidateCustomName(a[0]); err != nil {
			return dispatch.Errorf(dispatch.CommandLineError, "invalid block device name: %w", err)
		}

		req := &rpc.CreateBlockRequest{Name: a[0]}
		switch {
		case blockCreateSize != "" && blockCreateSource != "":
			return dispatch.Errorf(dispatch.CommandLineError, "--size and --source are mutually exclusive")
		case blockCreateSource != "":
			path, err := disk.ValidateImagePath(blockCreateSource)
			if err != nil {
				return dispatch.WithCode(dispatch.CommandLineError, err)
			}
			req.SourcePath = path
		default:
			req.Size = blockCreateSize
			if req.Size == "" {
				req.Size = disk.DefaultSize
			}
			if err := disk.ValidateSize(req.Size); err != nil {
				return dispatch.WithCode(dispatch.CommandLineError, err)
			}
		}

		s, err := connect(cmd)
		if err != nil {
			return err
		}
		defer s.close()

		_, err = diskWorkflows(cmd, s).CreateBlock(s.ctx, req)
		return err
	},
}

var blockAttachCmd = &cobra.Command{
	Use:   "block-attach <block> <instance>",
	Short: "Attach a block device to a stopped instance",
	Args:  args(cobra.ExactArgs(2)),
	RunE: func(cmd *cobra.Command, a []string) error {
		s, err := connect(cmd)
		if err != nil {
			return err
		}
		defer s.close()

		return diskWorkflows(cmd, s).AttachBlock(s.ctx, a[0], a[1])
	},
}

var blockDetachCmd = &cobra.Command{
	Use:   "block-detach <block> <instance>",
	Short: "Detach a block device from a stopped instance",
	Args:  args(cobra.ExactArgs(2)),
	RunE: func(cmd *cobra.Command, a []string) error {
		s, err := connect(cmd)
		if err != nil {
			return err
		}
		defer s.close()

		return diskWorkflows(cmd, s).DetachBlock(s.ctx, a[0], a[1])
	},
}

var blockDeleteCmd = &cobra.Command{
	Use:   "block-delete <name>",
	Short: "Delete a block device that is not attached",
	Args:  args(cobra.ExactArgs(1)),
	RunE: func(cmd *cobra.Command, a []string) error {
		s, err := connect(cmd)
		if err != nil {
			return err
		}
		defer s.close()

		return diskWorkflows(cmd, s).DeleteBlock(s.ctx, a[0])
	},
}

var blockListCmd = &cobra.Command{
	Use:     "disks",
	Aliases: []string{"block-list"},
	Short:   "List block devices",
	Long: `List every block device with its size, path and the instance it is
attached to.

Example:
  forge disks --format json`,
	Args: args(cobra.NoArgs),
	RunE: func(cmd *cobra.Command, a []string) error {
		if err := output.ValidateFormat(blockListFormat); err != nil {
			return dispatch.WithCode(dispatch.CommandLineError, err)
		}
		f, err := output.NewFormatter(output.Options{Format: output.Format(blockListFormat), NoHeaders: blockListNoHeaders})
		if err != nil {
			return dispatch.WithCode(dispatch.CommandLineError, err)
		}

		s, err := connect(cmd)
		if err != nil {
			return err
		}
		defer s.close()

		list, err := diskWorkflows(cmd, s).ListBlocks(s.ctx)
		if err != nil {
			return err
		}
		text, err := f.FormatBlockList(list.GetBlockDevices())
		if err != nil {
			return dispatch.WithCode(dispatch.CommandFail, err)
		}
		fmt.Fprint(cmd.OutOrStdout(), text)
		return nil
	},
}
