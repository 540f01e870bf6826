package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/oshokin/node-bin-gen/internal/logger"
	"github.com/oshokin/node-bin-gen/internal/service/linker"
	"github.com/oshokin/node-bin-gen/internal/version"
)

var (
	// options collects flag values for the linker.
	options linker.Options

	// exitCode is the package manager's exit code, reported as our own.
	exitCode int

	// rootCmd represents the base command run from a metapackage install script.
	rootCmd = &cobra.Command{
		Use:           "node-bin-setup <version>",
		Short:         "Install the platform package of a Node.js metapackage and link its binary",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(_ *cobra.Command, args []string) error {
			// Setup graceful shutdown handling.
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
			defer stop()

			options.Version = args[0]

			code, err := linker.Run(ctx, &options)
			exitCode = code

			return err
		},
	}
)

// Execute runs the node-bin-setup CLI and exits with the package manager's status.
func Execute() {
	version.AttachCobraVersionCommand(rootCmd)

	if err := rootCmd.Execute(); err != nil {
		logger.ErrorKV(context.Background(), "node-bin-setup failed", "error", err)
		os.Exit(1)
	}

	os.Exit(exitCode)
}

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	flags := rootCmd.Flags()

	// Setup command flags with consistent naming and descriptions.
	flags.StringVarP(&options.Scope, "scope", "s", "", "npm scope of the metapackage")
	flags.StringVarP(&options.PackageName, "package-name", "n", "node", "metapackage name")
	flags.StringVar(&options.PackageManager, "package-manager", "", "npm, pnpm or yarn; detected when empty")
	flags.StringVar(&options.Dir, "dir", "", "metapackage directory, the working directory when empty")
}
