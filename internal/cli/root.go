/*
Package cli provides the command line interface of the exporter.
*/
package cli

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/shineum/oft-eml-exporter/internal/format"
	"github.com/shineum/oft-eml-exporter/internal/format/eml"
	"github.com/shineum/oft-eml-exporter/internal/format/oft"
	"github.com/shineum/oft-eml-exporter/internal/logger"
)

type rootOptions struct {
	cfgFile string
	envFile string
	verbose bool
}

// NewRootCommand builds the command tree.
func NewRootCommand() *cobra.Command {
	opts := &rootOptions{}

	rootCmd := &cobra.Command{
		Use:   "oft-eml-exporter",
		Short: "Convert JSON email descriptions into Outlook templates and EML files",
		Long: `oft-eml-exporter turns a JSON description of an email (recipients,
subject, HTML/text body, attachments) into an Outlook template (.oft)
and an internet mail file (.eml).

Example:
  oft-eml-exporter serve                       # Run the HTTP API
  oft-eml-exporter export --input req.json     # Export files locally
  oft-eml-exporter inspect Report.oft          # Summarize an exported file`,
		SilenceUsage: true,
	}

	// Global flags
	rootCmd.PersistentFlags().StringVarP(&opts.cfgFile, "config", "c", "", "YAML config file (optional)")
	rootCmd.PersistentFlags().StringVar(&opts.envFile, "env-file", ".env", "dotenv file loaded into the environment if present")
	rootCmd.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "enable debug output for offline commands")

	// Add subcommands
	rootCmd.AddCommand(newServeCommand(opts))
	rootCmd.AddCommand(newExportCommand(opts))
	rootCmd.AddCommand(newInspectCommand(opts))

	return rootCmd
}

// Execute runs the command tree with the process arguments.
func Execute() error {
	return NewRootCommand().Execute()
}

func newRegistry() *format.Registry {
	return format.NewRegistry(oft.New(), eml.New())
}

// setupOfflineLogger sends text logs to stderr for the offline commands.
func setupOfflineLogger(opts *rootOptions) error {
	level := "warn"
	if opts.verbose {
		level = "debug"
	}
	return logger.Setup(os.Stderr, level, "text")
}
