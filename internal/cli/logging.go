package cli

import (
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/lmittmann/tint"
	"github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"
)

// parseLevel maps a config level name to a slog level.
func parseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// setupLogger installs a tint handler on w as the default slog logger.
// Colour is used only when w is a terminal.
func setupLogger(w io.Writer, level string) {
	noColor := true
	if f, ok := w.(*os.File); ok {
		noColor = !isatty.IsTerminal(f.Fd())
		w = colorable.NewColorable(f)
	}
	slog.SetDefault(slog.New(tint.NewHandler(w, &tint.Options{
		Level:       parseLevel(level),
		TimeFormat:  "15:04:05.000",
		NoColor:     noColor,
		ReplaceAttr: dropEmpty,
	})))
}

// dropEmpty removes zero-valued attributes.
func dropEmpty(groups []string, a slog.Attr) slog.Attr {
	skip := false
	switch t := a.Value.Any().(type) {
	case string:
		skip = t == ""
	case time.Time:
		skip = t.IsZero() && a.Key != slog.TimeKey
	case time.Duration:
		skip = t == 0
	case nil:
		skip = true
	}
	if skip {
		return slog.Attr{}
	}
	return a
}
