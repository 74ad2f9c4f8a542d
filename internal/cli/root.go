// Package cli provides the command-line interface for booknotes.
package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/user/booknotes/internal/config"
	"github.com/user/booknotes/internal/storage"
)

// Global flags
var (
	jsonOutput bool
	quiet      bool
	dataDir    string
	configPath string
	logLevel   string
)

// cfg is resolved before every command that needs it.
var cfg config.Config

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "booknotes",
	Short: "A personal reading journal",
	Long: `Booknotes keeps a journal of the books you have read: when you read
them, how you rated them, a short summary and free-form notes.

The journal lives in a SQLite database in the data directory, and every
book's notes are mirrored to notes/<id>.txt next to it.

Run "booknotes serve" to open the web interface.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		ExitOnError(err)
	}
}

func init() {
	rootCmd.PersistentPreRunE = setup
	rootCmd.PersistentFlags().StringVar(&dataDir, "data-dir", "", "Data directory (default: $BOOKNOTES_DATA_DIR or ./data)")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file (default: <data-dir>/"+config.FileName+" if present)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level: debug, info, warn, error")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Output in JSON format")
	rootCmd.PersistentFlags().BoolVar(&quiet, "quiet", false, "Suppress non-essential output")
}

// skipConfig lists commands that run without loading configuration.
var skipConfig = map[string]bool{
	"version":    true,
	"help":       true,
	"completion": true,
}

func setup(cmd *cobra.Command, args []string) error {
	if skipConfig[cmd.Name()] {
		return nil
	}

	loaded, err := config.Load(config.LoadInput{
		DataDir:    dataDir,
		ConfigPath: configPath,
		Env:        config.EnvMap(),
		Overrides:  overridesFor(cmd),
	})
	if err != nil {
		return err
	}
	cfg = loaded

	level := cfg.LogLevel
	if quiet {
		level = "warn"
	}
	setupLogger(cmd.ErrOrStderr(), level)
	return nil
}

// overridesFor collects the flags that override config for cmd.
func overridesFor(cmd *cobra.Command) config.Overrides {
	o := config.Overrides{LogLevel: logLevel}
	if cmd == serveCmd {
		o.Addr = serveAddr
		o.NoWatch = serveNoWatch
	}
	return o
}

// openStore opens the journal described by cfg.
func openStore(ctx context.Context) (*storage.Store, error) {
	for _, dir := range []string{cfg.DataDir, filepath.Dir(cfg.DBPath)} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create data directory: %w", err)
		}
	}
	store, err := storage.NewStore(ctx, storage.Options{
		Driver:   cfg.DBDriver,
		DBPath:   cfg.DBPath,
		NotesDir: cfg.NotesDir,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}
	return store, nil
}

// ExitCode is used to communicate exit codes for testing
var ExitCode int

// ExitFunc is the function called to exit the program
// Can be overridden for testing
var ExitFunc = os.Exit

// Exit sets the exit code and calls the exit function
func Exit(code int) {
	ExitCode = code
	ExitFunc(code)
}

// GetJSONOutput returns whether JSON output is enabled
func GetJSONOutput() bool {
	return jsonOutput
}

// IsQuiet returns whether quiet mode is enabled
func IsQuiet() bool {
	return quiet
}
