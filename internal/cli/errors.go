package cli

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/user/booknotes/internal/config"
	"github.com/user/booknotes/internal/model"
	"github.com/user/booknotes/internal/storage"
)

// Error codes for structured error responses
const (
	ErrCodeBookNotFound  = "BOOK_NOT_FOUND"
	ErrCodeValidation    = "VALIDATION_ERROR"
	ErrCodeConfig        = "CONFIG_ERROR"
	ErrCodeServerRunning = "SERVER_RUNNING"
	ErrCodeMirrorStale   = "MIRROR_STALE"
	ErrCodeMirrorDrift   = "MIRROR_DRIFT"
	ErrCodeInternal      = "INTERNAL_ERROR"
)

// JSONError represents a structured error response for --json output
type JSONError struct {
	Error   bool                   `json:"error"`
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}

// ExitWithError outputs an error message and exits.
// If --json flag is set, outputs structured JSON error to stdout.
// Otherwise outputs plain text to stderr.
func ExitWithError(code int, errCode, message string, details map[string]interface{}) {
	if GetJSONOutput() {
		errResp := JSONError{
			Error:   true,
			Code:    errCode,
			Message: message,
			Details: details,
		}
		data, _ := json.Marshal(errResp)
		fmt.Fprintln(rootCmd.OutOrStdout(), string(data))
	} else {
		fmt.Fprintln(rootCmd.ErrOrStderr(), "Error:", message)
	}
	Exit(code)
}

// ExitOnError maps err to an exit code and error code and exits.
func ExitOnError(err error) {
	code, errCode := classify(err)
	ExitWithError(code, errCode, err.Error(), nil)
}

// classify returns the exit code and error code for err.
func classify(err error) (int, string) {
	switch {
	case errors.Is(err, model.ErrBookNotFound), errors.Is(err, model.ErrNoteNotFound):
		return 1, ErrCodeBookNotFound
	case errors.Is(err, model.ErrInvalidInput),
		errors.Is(err, model.ErrInvalidDate),
		errors.Is(err, model.ErrInvalidSortOrder),
		errors.Is(err, storage.ErrUnknownFormat):
		return 2, ErrCodeValidation
	case errors.Is(err, config.ErrConfigInvalid), errors.Is(err, config.ErrConfigFileNotFound):
		return 2, ErrCodeConfig
	case errors.Is(err, model.ErrServerRunning):
		return 3, ErrCodeServerRunning
	case errors.Is(err, model.ErrMirrorStale):
		return 4, ErrCodeMirrorStale
	default:
		return 1, ErrCodeInternal
	}
}
