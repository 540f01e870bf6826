package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/oshokin/node-bin-gen/internal/config"
	"github.com/oshokin/node-bin-gen/internal/logger"
	"github.com/oshokin/node-bin-gen/internal/service/packager"
	"github.com/oshokin/node-bin-gen/internal/version"
)

var (
	// options collects flag values for the packager.
	options packager.Options

	// logLevel is the minimum level written to stderr.
	logLevel string

	// rootCmd represents the base command for generating the packages.
	rootCmd = &cobra.Command{
		Use:   "node-bin-gen <version> [prerelease]",
		Short: "Generate npm packages wrapping a Node.js release",
		Long: "Download the Node.js release archives of every platform, wrap each binary in its own npm package " +
			"and write a metapackage that installs the right one for the consumer's platform.",
		Args:          cobra.RangeArgs(1, 2),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			level, ok := logger.ParseLogLevel(logLevel)
			if !ok {
				return fmt.Errorf("unknown log level %q", logLevel)
			}

			logger.SetLevel(level)

			return nil
		},
		RunE: func(_ *cobra.Command, args []string) error {
			// Setup graceful shutdown handling.
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
			defer stop()

			options.Version = args[0]
			if len(args) > 1 {
				options.Prerelease = args[1]
			}

			return packager.Run(ctx, &options)
		},
	}
)

// Execute runs the node-bin-gen CLI and exits with non-zero status on error.
func Execute() {
	version.AttachCobraVersionCommand(rootCmd)

	if err := rootCmd.Execute(); err != nil {
		logger.ErrorKV(context.Background(), "node-bin-gen failed", "error", err)
		os.Exit(1)
	}
}

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	flags := rootCmd.Flags()

	// Setup command flags with consistent naming and descriptions.
	flags.StringVarP(&options.ConfigPath, "config", "c", config.DefaultConfigFilename, "path to configuration file")
	flags.BoolVar(&options.SkipBinaries, "skip-binaries", false, "do not read the release index; build arch packages only for --only")
	flags.StringVar(&options.Only, "only", "", "build a single platform, e.g. linux-x64")
	flags.StringVarP(&options.Scope, "scope", "s", "", "npm scope of the generated packages")
	flags.StringVarP(&options.PackageName, "package-name", "n", "", "metapackage name and arch package prefix")
	flags.StringVarP(&options.OutputDir, "output", "o", "", "directory the packages are written to")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level: debug, info, warn or error")
}
