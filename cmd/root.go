package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/giantswarm/kopkit/internal/config"
	"github.com/giantswarm/kopkit/pkg/logging"
	"github.com/giantswarm/kopkit/pkg/patch"
)

// Exit codes for CLI commands.
const (
	// ExitCodeSuccess indicates successful execution.
	ExitCodeSuccess = 0
	// ExitCodeError indicates a general error (command failed, invalid arguments).
	ExitCodeError = 1
	// ExitCodeFormatError indicates that an input document does not fit the
	// merge strategy its schema declares.
	ExitCodeFormatError = 2
)

var (
	// configPath overrides the default configuration directory.
	configPath string

	// debug enables verbose logging.
	debug bool

	// loadedConfig holds the configuration after PersistentPreRunE ran.
	loadedConfig = config.GetDefaultConfig()
)

// rootCmd represents the base command for the kopkit application.
// It is the entry point when the application is called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "kopkit",
	Short: "Compute and apply three-way patches for Kubernetes resources",
	Long: `kopkit computes the JSON patch that moves a live Kubernetes resource to
the state a caller asks for, while leaving fields owned by other managers
untouched. Merge strategies come from OpenAPI v2 documents or
CustomResourceDefinitions.`,
	// SilenceUsage prevents Cobra from printing the usage message on errors that are handled by the application.
	SilenceUsage:      true,
	PersistentPreRunE: loadConfiguration,
}

// SetVersion sets the version for the root command.
// This function is typically called from the main package to inject the application version at build time.
func SetVersion(v string) {
	rootCmd.Version = v
}

// GetVersion returns the current version of the application.
func GetVersion() string {
	return rootCmd.Version
}

// Execute is the main entry point for the CLI application.
// This function is called by main.main().
func Execute() {
	rootCmd.SetVersionTemplate(`{{printf "kopkit version %s\n" .Version}}`)

	err := rootCmd.Execute()
	if err != nil {
		os.Exit(getExitCode(err))
	}
}

// getExitCode determines the appropriate exit code based on the error type.
func getExitCode(err error) int {
	if err == nil {
		return ExitCodeSuccess
	}
	if patch.IsFormatError(err) {
		return ExitCodeFormatError
	}
	return ExitCodeError
}

// loadConfiguration reads the configuration file and sets up logging before
// any subcommand runs.
func loadConfiguration(cmd *cobra.Command, _ []string) error {
	path := configPath
	if path == "" {
		defaultPath, err := config.GetDefaultConfigPath()
		if err != nil {
			return err
		}
		path = defaultPath
	}

	cfg, err := config.LoadConfig(path)
	if err != nil {
		var cerr config.ConfigurationError
		if errors.As(err, &cerr) {
			fmt.Fprintln(cmd.ErrOrStderr(), cerr.DetailedError())
		}
		return err
	}
	if debug {
		cfg.LogLevel = "debug"
	}

	level, err := logging.ParseLevel(cfg.LogLevel)
	if err != nil {
		return err
	}
	logging.InitForCLI(level, cmd.ErrOrStderr())

	loadedConfig = cfg
	return nil
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config-path", "", "Configuration directory (default is $HOME/.config/kopkit)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "Enable debug logging")

	rootCmd.AddCommand(newVersionCmd())
	rootCmd.AddCommand(newPatchCmd())
	rootCmd.AddCommand(newKindsCmd())
	rootCmd.AddCommand(newWatchCmd())
}
