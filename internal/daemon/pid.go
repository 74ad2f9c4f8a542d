// Package daemon holds the long-running pieces of the booknotes server: the
// note file watcher and the PID file that keeps one server per data directory.
package daemon

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"syscall"

	"github.com/natefinch/atomic"

	"github.com/user/booknotes/internal/model"
)

var (
	// ErrPIDFileNotFound indicates the PID file does not exist.
	ErrPIDFileNotFound = errors.New("pid file not found")
	// ErrInvalidPID indicates the PID file contains invalid data.
	ErrInvalidPID = errors.New("invalid pid in file")
)

// WritePID atomically writes pid to path.
func WritePID(path string, pid int) error {
	if err := atomic.WriteFile(path, strings.NewReader(strconv.Itoa(pid)+"\n")); err != nil {
		return fmt.Errorf("writing pid file: %w", err)
	}
	return nil
}

// ReadPID reads the PID from path.
// Returns ErrPIDFileNotFound if the file doesn't exist and ErrInvalidPID if
// it does not hold a positive integer.
func ReadPID(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, ErrPIDFileNotFound
		}
		return 0, fmt.Errorf("reading pid file: %w", err)
	}

	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil || pid <= 0 {
		return 0, ErrInvalidPID
	}
	return pid, nil
}

// RemovePID removes the PID file at path. A missing file is not an error.
func RemovePID(path string) error {
	err := os.Remove(path)
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("removing pid file: %w", err)
	}
	return nil
}

// IsProcessRunning checks if a process with the given PID is running.
func IsProcessRunning(pid int) bool {
	if pid <= 0 {
		return false
	}

	process, err := os.FindProcess(pid)
	if err != nil {
		return false
	}

	// On Unix, FindProcess always succeeds, so send signal 0
	// to check if the process actually exists
	err = process.Signal(syscall.Signal(0))
	return err == nil || errors.Is(err, syscall.EPERM)
}

// CleanStalePID removes the PID file if it references a dead process or
// holds garbage. Returns true if a file was removed.
func CleanStalePID(path string) (bool, error) {
	pid, err := ReadPID(path)
	switch {
	case errors.Is(err, ErrPIDFileNotFound):
		return false, nil
	case errors.Is(err, ErrInvalidPID):
		return true, RemovePID(path)
	case err != nil:
		return false, err
	}

	if IsProcessRunning(pid) {
		return false, nil
	}
	return true, RemovePID(path)
}

// PIDLock marks a data directory as served by this process.
type PIDLock struct {
	path string
	pid  int
}

// AcquirePID claims path for the current process. It fails with
// model.ErrServerRunning when another live process already holds it.
func AcquirePID(path string) (*PIDLock, error) {
	if _, err := CleanStalePID(path); err != nil {
		return nil, err
	}

	self := os.Getpid()
	if pid, err := ReadPID(path); err == nil && pid != self {
		return nil, fmt.Errorf("%w (pid %d, %s)", model.ErrServerRunning, pid, path)
	}

	if err := WritePID(path, self); err != nil {
		return nil, err
	}
	return &PIDLock{path: path, pid: self}, nil
}

// Path returns the PID file path.
func (l *PIDLock) Path() string {
	return l.path
}

// Release removes the PID file if it still names this process.
func (l *PIDLock) Release() error {
	pid, err := ReadPID(l.path)
	if errors.Is(err, ErrPIDFileNotFound) {
		return nil
	}
	if err == nil && pid != l.pid {
		return nil
	}
	return RemovePID(l.path)
}
