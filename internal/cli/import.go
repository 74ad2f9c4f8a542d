package cli

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/user/booknotes/internal/storage"
)

var importFormat string

var importCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Import books from an export file",
	Long: `Import books from a JSONL or YAML export. Use "-" to read stdin.

Every imported book gets a new id and a fresh note file. Import stops at the
first invalid entry; books before it stay imported.

The format is taken from the file extension (.yaml/.yml for YAML) unless
--format is given.

Examples:
  booknotes import journal.jsonl
  booknotes import journal.yaml
  cat journal.jsonl | booknotes import - --format jsonl`,
	Args: cobra.ExactArgs(1),
	RunE: runImport,
}

func init() {
	importCmd.Flags().StringVar(&importFormat, "format", "", "Input format: jsonl, yaml (default: from extension)")
	rootCmd.AddCommand(importCmd)
}

func runImport(cmd *cobra.Command, args []string) error {
	path := args[0]

	format, err := storage.ParseFormat(formatFor(path, importFormat))
	if err != nil {
		return err
	}

	var r io.Reader = cmd.InOrStdin()
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return fmt.Errorf("failed to open %s: %w", path, err)
		}
		defer f.Close()
		r = f
	}

	ctx := cmd.Context()
	store, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer store.Close()

	n, err := store.Import(ctx, r, format)
	if err != nil {
		return fmt.Errorf("imported %d books before failing: %w", n, err)
	}

	if GetJSONOutput() {
		return writeJSON(cmd, map[string]interface{}{"imported": n, "format": format})
	}
	if !IsQuiet() {
		fmt.Fprintf(cmd.OutOrStdout(), "Imported %d books\n", n)
	}
	return nil
}

// formatFor picks the archive format from the flag or the file extension.
func formatFor(path, flag string) string {
	if flag != "" {
		return flag
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return storage.FormatYAML
	default:
		return storage.FormatJSONL
	}
}
