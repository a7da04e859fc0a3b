package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jbweber/forge/internal/disk"
	"github.com/jbweber/forge/internal/dispatch"
	"github.com/jbweber/forge/internal/naming"
	"github.com/jbweber/forge/internal/output"
)

func init() {
	rootCmd.AddCommand(addDiskCmd)
	rootCmd.AddCommand(moveDiskCmd)
	rootCmd.AddCommand(copyDiskCmd)
	rootCmd.AddCommand(deleteDiskCmd)

	addDiskCmd.Flags().StringVar(&addDiskName, "name", "", "name of the new block device (generated if empty)")
	copyDiskCmd.Flags().StringVar(&copyDiskName, "name", "", "name of the copy (default <device>-copy-xx)")
	deleteDiskCmd.Flags().BoolVar(&deleteDiskAll, "all", false, "delete every block device that is not attached")
}

var (
	addDiskName   string
	copyDiskName  string
	deleteDiskAll bool
)

func diskWorkflows(cmd *cobra.Command, s *session) *disk.Workflows {
	return disk.NewWorkflows(s.stub, disk.Reporter{Out: cmd.OutOrStdout(), Err: cmd.ErrOrStderr()}, verbosity)
}

var addDiskCmd = &cobra.Command{
	Use:   "add-disk <size|image> [instance]",
	Short: "Create a block device and attach it to an instance",
	Long: `Create a block device and attach it to a stopped instance.

The first argument is either a size ("5G") for an empty device or the path of
a disk image to import. With a single argument that names an instance, a
` + disk.DefaultSize + ` device is added to it; if no such instance exists the
argument is taken as the size of a standalone device instead.

If attaching fails, the created device is deleted again.

Examples:
  forge add-disk 5G primary
  forge add-disk ./data.qcow2 primary
  forge add-disk primary
  forge add-disk 20G --name scratch`,
	Args: args(cobra.RangeArgs(1, 2)),
	RunE: func(cmd *cobra.Command, a []string) error {
		opts := disk.AddOptions{Name: addDiskName}
		if err := disk.ValidateAddArgs(a, opts); err != nil {
			return err
		}

		s, err := connect(cmd)
		if err != nil {
			return err
		}
		defer s.close()

		return diskWorkflows(cmd, s).AddDisk(s.ctx, a, opts)
	},
}

var moveDiskCmd = &cobra.Command{
	Use:   "move-disk <device> <instance>",
	Short: "Attach a block device to another instance",
	Long: `Detach a block device from its current instance and attach it to another.

Both instances must be stopped. If the final attach fails the device is left
detached; it is not attached back to its previous instance.`,
	Args: args(cobra.ExactArgs(2)),
	RunE: func(cmd *cobra.Command, a []string) error {
		s, err := connect(cmd)
		if err != nil {
			return err
		}
		defer s.close()

		return diskWorkflows(cmd, s).MoveDisk(s.ctx, a[0], a[1])
	},
}

var copyDiskCmd = &cobra.Command{
	Use:   "copy-disk <device>",
	Short: "Copy a block device",
	Long: `Create a new block device with the contents of an existing one.

A device attached to a running instance cannot be copied.`,
	Args: args(cobra.ExactArgs(1)),
	RunE: func(cmd *cobra.Command, a []string) error {
		if copyDiskName != "" {
			if err := naming.ValidateCustomName(copyDiskName); err != nil {
				return dispatch.Errorf(dispatch.CommandLineError, "invalid block device name: %w", err)
			}
		}

		s, err := connect(cmd)
		if err != nil {
			return err
		}
		defer s.close()

		name, err := diskWorkflows(cmd, s).CopyDisk(s.ctx, a[0], disk.CopyOptions{Name: copyDiskName})
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Copied block device '%s' to '%s'\n", a[0], name)
		return nil
	},
}

var deleteDiskCmd = &cobra.Command{
	Use:   "delete-disk <device> | --all",
	Short: "Delete a block device",
	Long: `Delete a block device, detaching it from its instance first.

With --all, every block device that is not attached is deleted after a
confirmation prompt.`,
	Args: args(func(cmd *cobra.Command, a []string) error {
		if deleteDiskAll {
			return cobra.NoArgs(cmd, a)
		}
		return cobra.ExactArgs(1)(cmd, a)
	}),
	RunE: func(cmd *cobra.Command, a []string) error {
		s, err := connect(cmd)
		if err != nil {
			return err
		}
		defer s.close()

		w := diskWorkflows(cmd, s)
		if deleteDiskAll {
			return w.DeleteAll(s.ctx, output.NewPrompter().Confirm)
		}
		return w.DeleteDisk(s.ctx, a[0])
	},
}
