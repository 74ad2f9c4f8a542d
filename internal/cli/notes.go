package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/user/booknotes/internal/storage"
)

var notesCmd = &cobra.Command{
	Use:   "notes",
	Short: "Inspect and repair the note files",
	Long: `Every book's notes are mirrored to <notes-dir>/<id>.txt. The database is
the source of truth; these commands compare the files against it.`,
}

var notesCheckCmd = &cobra.Command{
	Use:   "check",
	Short: "Report note files that disagree with the database",
	Long: `Report note files that are missing, differ from the database (stale), or
belong to no book (orphan). Nothing is changed.

Exits with code 5 when drift is found.`,
	Args: cobra.NoArgs,
	RunE: runNotesCheck,
}

var notesSyncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Rewrite note files from the database",
	Long: `Rewrite stale note files, recreate missing ones and remove orphans so the
notes directory matches the database exactly.`,
	Args: cobra.NoArgs,
	RunE: runNotesSync,
}

func init() {
	notesCmd.AddCommand(notesCheckCmd)
	notesCmd.AddCommand(notesSyncCmd)
	rootCmd.AddCommand(notesCmd)
}

func runNotesCheck(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	store, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer store.Close()

	drift, err := store.CheckNotes(ctx)
	if err != nil {
		return fmt.Errorf("failed to check note files: %w", err)
	}

	out := cmd.OutOrStdout()
	if GetJSONOutput() {
		if drift == nil {
			drift = []storage.Drift{}
		}
		if err := writeJSON(cmd, map[string]interface{}{"ok": len(drift) == 0, "drift": drift}); err != nil {
			return err
		}
	} else if len(drift) == 0 {
		if !IsQuiet() {
			fmt.Fprintln(out, "All note files match the database.")
		}
	} else {
		for _, d := range drift {
			switch d.Kind {
			case storage.DriftStale:
				fmt.Fprintf(out, "%-7s %d.txt  %q  (db %s, file %s)\n", d.Kind, d.ID, d.Title, d.RowHash, d.MirrorHash)
			case storage.DriftOrphan:
				fmt.Fprintf(out, "%-7s %d.txt\n", d.Kind, d.ID)
			default:
				fmt.Fprintf(out, "%-7s %d.txt  %q\n", d.Kind, d.ID, d.Title)
			}
		}
		fmt.Fprintf(out, "\n%d note files out of sync (run 'booknotes notes sync')\n", len(drift))
	}

	if len(drift) > 0 {
		Exit(5)
	}
	return nil
}

func runNotesSync(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	store, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer store.Close()

	report, err := store.SyncNotes(ctx)
	if err != nil {
		return fmt.Errorf("failed to sync note files: %w", err)
	}

	if GetJSONOutput() {
		return writeJSON(cmd, report)
	}
	if !IsQuiet() {
		fmt.Fprintf(cmd.OutOrStdout(), "Wrote %d, removed %d, unchanged %d\n", report.Written, report.Removed, report.Unchanged)
	}
	return nil
}

// writeJSON prints v as indented JSON on the command's stdout.
func writeJSON(cmd *cobra.Command, v interface{}) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
