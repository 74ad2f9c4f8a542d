package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/user/booknotes/internal/daemon"
)

var infoCmd = &cobra.Command{
	Use:   "info",
	Short: "Show where the journal lives and what it holds",
	Long: `Show the resolved configuration, book and note file counts, and whether a
server is running for this data directory.

Examples:
  booknotes info
  booknotes info --json`,
	Args: cobra.NoArgs,
	RunE: runInfo,
}

func init() {
	rootCmd.AddCommand(infoCmd)
}

// infoOutput is the JSON shape of booknotes info.
type infoOutput struct {
	DataDir   string `json:"data_dir"`
	Config    string `json:"config,omitempty"`
	Driver    string `json:"driver"`
	DBPath    string `json:"db_path"`
	NotesDir  string `json:"notes_dir"`
	Books     int    `json:"books"`
	MaxID     int64  `json:"max_id"`
	NoteFiles int    `json:"note_files"`
	ServerPID int    `json:"server_pid,omitempty"`
}

func runInfo(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	store, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer store.Close()

	st, err := store.Stats(ctx)
	if err != nil {
		return fmt.Errorf("failed to read journal stats: %w", err)
	}

	info := infoOutput{
		DataDir:   cfg.DataDir,
		Config:    cfg.Source,
		Driver:    cfg.DBDriver,
		DBPath:    st.DBPath,
		NotesDir:  st.NotesDir,
		Books:     st.Books,
		MaxID:     st.MaxID,
		NoteFiles: st.NoteFiles,
	}
	pid, err := daemon.ReadPID(cfg.PIDPath())
	switch {
	case err == nil && daemon.IsProcessRunning(pid):
		info.ServerPID = pid
	case err != nil && !errors.Is(err, daemon.ErrPIDFileNotFound) && !errors.Is(err, daemon.ErrInvalidPID):
		return err
	}

	if GetJSONOutput() {
		return writeJSON(cmd, info)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Data directory: %s\n", info.DataDir)
	if info.Config != "" {
		fmt.Fprintf(out, "Config file:    %s\n", info.Config)
	}
	fmt.Fprintf(out, "Database:       %s (%s)\n", info.DBPath, info.Driver)
	fmt.Fprintf(out, "Notes:          %s\n", info.NotesDir)
	fmt.Fprintf(out, "Books:          %d (last id %d)\n", info.Books, info.MaxID)
	fmt.Fprintf(out, "Note files:     %d\n", info.NoteFiles)
	if info.ServerPID > 0 {
		fmt.Fprintf(out, "Server:         running (pid %d)\n", info.ServerPID)
	} else {
		fmt.Fprintln(out, "Server:         not running")
	}
	return nil
}
