package main

import (
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/jbweber/forge/internal/dispatch"
	"github.com/jbweber/forge/internal/instance"
	"github.com/jbweber/forge/internal/output"
)

func init() {
	rootCmd.AddCommand(startCmd)
	rootCmd.AddCommand(shellCmd)
	rootCmd.AddCommand(launchCmd)
	rootCmd.AddCommand(infoCmd)

	for _, c := range []*cobra.Command{startCmd, shellCmd, launchCmd} {
		c.Flags().IntVar(&timeoutSeconds, "timeout", 0, "give up after this many seconds (0 waits as long as the daemon does)")
	}

	startCmd.Flags().BoolVar(&startAll, "all", false, "start every instance")

	launchCmd.Flags().StringVarP(&launchOpts.Name, "name", "n", "", "instance name (generated if empty)")
	launchCmd.Flags().StringVar(&launchOpts.Image, "image", "", "image volume, pool:volume or local image file")
	launchCmd.Flags().IntVarP(&launchOpts.CPUs, "cpus", "c", 0, "number of virtual CPUs")
	launchCmd.Flags().StringVarP(&launchOpts.Memory, "memory", "m", "", "memory size, e.g. 2G")
	launchCmd.Flags().StringVarP(&launchOpts.Disk, "disk", "d", "", "boot disk size, e.g. 20G")

	infoCmd.Flags().StringVarP(&infoFormat, "format", "o", string(output.FormatTable), "output format: table, json, yaml or csv")
	infoCmd.Flags().BoolVar(&infoNoHeaders, "no-headers", false, "omit the header row in table and csv output")
}

var (
	timeoutSeconds int
	startAll       bool
	launchOpts     instance.LaunchOptions
	infoFormat     string
	infoNoHeaders  bool
)

func timeout() (time.Duration, error) {
	if timeoutSeconds < 0 {
		return 0, dispatch.Errorf(dispatch.CommandLineError, "--timeout must not be negative, got %d", timeoutSeconds)
	}
	return time.Duration(timeoutSeconds) * time.Second, nil
}

func instanceWorkflows(cmd *cobra.Command, s *session) *instance.Workflows {
	errOut := cmd.ErrOrStderr()
	return instance.NewWorkflows(s.stub, instance.Options{
		Primary:   s.cfg.PrimaryInstance,
		Out:       cmd.OutOrStdout(),
		Err:       errOut,
		Terminal:  output.NewPrompter(),
		Spinner:   output.NewSpinner(errOut, output.IsTerminal(os.Stderr)),
		Verbosity: verbosity,
	})
}

var startCmd = &cobra.Command{
	Use:   "start [instance...]",
	Short: "Start instances",
	Long: `Start the named instances and wait until they have an address.

Without arguments the primary instance is started; if it does not exist yet
it is launched first.`,
	RunE: func(cmd *cobra.Command, a []string) error {
		d, err := timeout()
		if err != nil {
			return err
		}
		s, err := connect(cmd)
		if err != nil {
			return err
		}
		defer s.close()

		return instanceWorkflows(cmd, s).Start(s.ctx, instance.StartOptions{Names: a, All: startAll, Timeout: d})
	},
}

var shellCmd = &cobra.Command{
	Use:   "shell [instance]",
	Short: "Print the SSH target of an instance",
	Long: `Print user@host:port for an SSH session to the instance.

A stopped instance is started first, and a missing primary instance is
launched.`,
	Args: args(cobra.MaximumNArgs(1)),
	RunE: func(cmd *cobra.Command, a []string) error {
		d, err := timeout()
		if err != nil {
			return err
		}
		s, err := connect(cmd)
		if err != nil {
			return err
		}
		defer s.close()

		opts := instance.ShellOptions{Timeout: d}
		if len(a) == 1 {
			opts.Name = a[0]
		}
		return instanceWorkflows(cmd, s).Shell(s.ctx, opts)
	},
}

var launchCmd = &cobra.Command{
	Use:   "launch",
	Short: "Create and start a new instance",
	Long: `Create a new instance from an image and start it.

Fields left empty are chosen by the daemon.

Examples:
  forge launch --name build --cpus 4 --memory 8G --disk 40G
  forge launch --image ./noble-server-cloudimg-amd64.img`,
	Args: args(cobra.NoArgs),
	RunE: func(cmd *cobra.Command, a []string) error {
		d, err := timeout()
		if err != nil {
			return err
		}
		s, err := connect(cmd)
		if err != nil {
			return err
		}
		defer s.close()

		opts := launchOpts
		opts.Timeout = d
		return instanceWorkflows(cmd, s).Launch(s.ctx, opts)
	},
}

var infoCmd = &cobra.Command{
	Use:   "info [instance...]",
	Short: "Show instance state and addresses",
	RunE: func(cmd *cobra.Command, a []string) error {
		f, err := output.NewFormatter(output.Options{Format: output.Format(infoFormat), NoHeaders: infoNoHeaders})
		if err != nil {
			return dispatch.WithCode(dispatch.CommandLineError, err)
		}
		s, err := connect(cmd)
		if err != nil {
			return err
		}
		defer s.close()

		return instanceWorkflows(cmd, s).Info(s.ctx, a, f)
	},
}
