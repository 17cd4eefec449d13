package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/shineum/oft-eml-exporter/internal/email"
	"github.com/shineum/oft-eml-exporter/internal/format/oft"
	"github.com/shineum/oft-eml-exporter/internal/parser"
	"github.com/shineum/oft-eml-exporter/internal/report"
)

func newInspectCommand(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "inspect <file.eml|file.oft>",
		Short: "Summarize an exported message file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := setupOfflineLogger(root); err != nil {
				return err
			}

			raw, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("failed to read %s: %w", args[0], err)
			}

			msg, err := readMessage(raw)
			if err != nil {
				return fmt.Errorf("failed to parse %s: %w", args[0], err)
			}

			return report.New(cmd.OutOrStdout()).Message(args[0], msg)
		},
	}
}

// readMessage detects the file format from its content, not its name.
func readMessage(raw []byte) (*email.Message, error) {
	if oft.IsCompound(raw) {
		return oft.Read(raw)
	}
	return parser.Parse(raw)
}
