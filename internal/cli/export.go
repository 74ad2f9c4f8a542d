package cli

import (
	"bytes"
	"fmt"
	"os"

	"github.com/natefinch/atomic"
	"github.com/spf13/cobra"

	"github.com/user/booknotes/internal/storage"
)

var (
	exportFormat string
	exportOutput string
	exportForce  bool
)

var exportCmd = &cobra.Command{
	Use:   "export [file]",
	Short: "Export the journal to a file",
	Long: `Export every book, notes included, as JSONL (one book per line) or YAML.

If no file is specified, writes to stdout. Files are replaced atomically.

Examples:
  booknotes export                         # JSONL to stdout
  booknotes export journal.jsonl
  booknotes export journal.yaml --format yaml
  booknotes export -o backup.jsonl --force`,
	Args: cobra.MaximumNArgs(1),
	RunE: runExport,
}

func init() {
	exportCmd.Flags().StringVar(&exportFormat, "format", storage.FormatJSONL, "Output format: jsonl, yaml")
	exportCmd.Flags().StringVarP(&exportOutput, "output", "o", "", "Output file (default: stdout)")
	exportCmd.Flags().BoolVarP(&exportForce, "force", "f", false, "Overwrite existing file without warning")
	rootCmd.AddCommand(exportCmd)
}

func runExport(cmd *cobra.Command, args []string) error {
	format, err := storage.ParseFormat(exportFormat)
	if err != nil {
		return err
	}

	output := exportOutput
	if len(args) > 0 {
		output = args[0]
	}
	if output != "" && !exportForce {
		if _, err := os.Stat(output); err == nil {
			return fmt.Errorf("file '%s' already exists (use --force to overwrite)", output)
		}
	}

	ctx := cmd.Context()
	store, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer store.Close()

	if output == "" {
		_, err := store.Export(ctx, cmd.OutOrStdout(), format)
		return err
	}

	var buf bytes.Buffer
	n, err := store.Export(ctx, &buf, format)
	if err != nil {
		return err
	}
	if err := atomic.WriteFile(output, &buf); err != nil {
		return fmt.Errorf("failed to write %s: %w", output, err)
	}

	if GetJSONOutput() {
		return writeJSON(cmd, map[string]interface{}{"exported": n, "file": output, "format": format})
	}
	if !IsQuiet() {
		fmt.Fprintf(cmd.OutOrStdout(), "Exported %d books to %s\n", n, output)
	}
	return nil
}
