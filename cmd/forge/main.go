package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/jbweber/forge/internal/config"
	"github.com/jbweber/forge/internal/direct"
	"github.com/jbweber/forge/internal/dispatch"
	"github.com/jbweber/forge/internal/logging"
	"github.com/jbweber/forge/internal/rpc"
)

var (
	version = "dev"
	commit  = "unknown"
)

// Persistent flags.
var (
	configPath string
	address    string
	transport  string
	verbosity  int
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	}
	os.Exit(dispatch.ExitCode(err))
}

var rootCmd = &cobra.Command{
	Use:   "forge",
	Short: "Forge - manage instances and their block devices",
	Long: `Forge manages virtual machine instances and the block devices attached
to them.

Commands talk to the forge daemon over gRPC, or with --transport libvirt
run the same operations directly against the local libvirt daemon.`,
	Version:       fmt.Sprintf("%s (commit: %s)", version, commit),
	SilenceErrors: true,
	SilenceUsage:  true,
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&configPath, "config", "", "config file (default $XDG_CONFIG_HOME/forge/config.yaml)")
	flags.StringVar(&address, "address", "", "daemon address, overrides the config file")
	flags.StringVar(&transport, "transport", "", "how to reach the daemon operations: grpc or libvirt")
	flags.CountVarP(&verbosity, "verbose", "v", "increase diagnostic output (-v, -vv, -vvv)")

	rootCmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return dispatch.WithCode(dispatch.CommandLineError, err)
	})
}

// args marks positional argument errors as command line errors.
func args(validate cobra.PositionalArgs) cobra.PositionalArgs {
	return func(cmd *cobra.Command, a []string) error {
		return dispatch.WithCode(dispatch.CommandLineError, validate(cmd, a))
	}
}

// session is what every command needs: the configuration, a logger in the
// context and a stub for the selected transport.
type session struct {
	ctx  context.Context
	cfg  *config.Config
	stub rpc.Stub
}

func (s *session) close() {
	if err := s.stub.Close(); err != nil {
		zerolog.Ctx(s.ctx).Warn().Err(err).Msg("failed to close connection")
	}
}

// connect loads the configuration, applies the persistent flags and opens
// the transport. The caller must close the session.
func connect(cmd *cobra.Command) (*session, error) {
	logger := logging.New(cmd.ErrOrStderr(), verbosity)
	ctx := logger.WithContext(cmd.Context())

	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, dispatch.WithCode(dispatch.CommandLineError, err)
	}
	if address != "" {
		cfg.Daemon.Address = address
	}
	if transport != "" {
		cfg.Daemon.Transport = config.Transport(transport)
	}

	var stub rpc.Stub
	switch cfg.Daemon.Transport {
	case config.TransportGRPC:
		logger.Debug().Str("address", cfg.Daemon.Address).Msg("using the grpc transport")
		stub, err = rpc.Dial(cfg.Daemon.Address, cfg.Daemon.DialTimeout)
	case config.TransportLibvirt:
		logger.Debug().Str("socket", cfg.Libvirt.Socket).Msg("using the libvirt transport")
		stub, err = direct.New(ctx, cfg)
	default:
		return nil, dispatch.Errorf(dispatch.CommandLineError,
			"unknown transport %q (supported: %s, %s)", cfg.Daemon.Transport, config.TransportGRPC, config.TransportLibvirt)
	}
	if err != nil {
		return nil, dispatch.Errorf(dispatch.CommandFail, "failed to connect to daemon: %w", err)
	}

	return &session{ctx: ctx, cfg: cfg, stub: stub}, nil
}
