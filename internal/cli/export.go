package cli

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/shineum/oft-eml-exporter/internal/report"
	"github.com/shineum/oft-eml-exporter/internal/service"
)

type exportOptions struct {
	input   string
	outDir  string
	formats []string
}

func newExportCommand(root *rootOptions) *cobra.Command {
	opts := &exportOptions{}

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export a JSON request to message files",
		Long: `Read an export request (the JSON body accepted by POST /export) and
write the resulting files to a directory.

Formats given with --format replace any formats in the request. Without
--format the request decides, defaulting to oft and eml.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := setupOfflineLogger(root); err != nil {
				return err
			}

			req, err := readExportRequest(cmd, opts.input)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("format") {
				formats := make([]string, 0, len(opts.formats))
				for _, f := range opts.formats {
					formats = append(formats, strings.TrimSpace(f))
				}
				req.Formats = &formats
			}

			files, err := service.New(newRegistry(), nil).Export(cmd.Context(), req)
			if err != nil {
				return fmt.Errorf("export failed: %w", err)
			}

			written, err := writeFiles(opts.outDir, files)
			if err != nil {
				return err
			}

			return report.New(cmd.OutOrStdout()).Export(written)
		},
	}

	cmd.Flags().StringVarP(&opts.input, "input", "i", "-", "request JSON file, - for stdin")
	cmd.Flags().StringVarP(&opts.outDir, "out", "o", ".", "output directory")
	cmd.Flags().StringSliceVarP(&opts.formats, "format", "f", nil, "output format (repeatable): oft, eml")

	return cmd
}

func readExportRequest(cmd *cobra.Command, input string) (service.ExportRequest, error) {
	var r io.Reader = cmd.InOrStdin()

	if input != "-" {
		f, err := os.Open(input)
		if err != nil {
			return service.ExportRequest{}, fmt.Errorf("failed to open input: %w", err)
		}
		defer f.Close()
		r = f
	}

	var req service.ExportRequest
	if err := json.NewDecoder(r).Decode(&req); err != nil {
		return service.ExportRequest{}, fmt.Errorf("failed to parse request: %w", err)
	}
	return req, nil
}

func writeFiles(dir string, files []service.File) ([]report.WrittenFile, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	written := make([]report.WrittenFile, 0, len(files))
	for _, f := range files {
		data, err := base64.StdEncoding.DecodeString(f.ContentBase64)
		if err != nil {
			return nil, fmt.Errorf("failed to decode %s: %w", f.Filename, err)
		}

		path := filepath.Join(dir, f.Filename)
		if err := os.WriteFile(path, data, 0o644); err != nil {
			return nil, fmt.Errorf("failed to write %s: %w", path, err)
		}
		slog.Debug("file written", "path", path, "bytes", len(data))

		written = append(written, report.WrittenFile{Path: path, Mime: f.Mime, Size: len(data)})
	}
	return written, nil
}
