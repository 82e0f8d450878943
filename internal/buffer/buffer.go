// Package buffer manages the per-session temp input file, output
// file, and named pipe.
package buffer

import (
	"fmt"
	"os"
	"path/filepath"

	"golang.org/x/sys/unix"

	"github.com/medo6/shim/internal/logging"
)

// worldRW is the permission mode the backend process (which may run
// as a different user than the gateway) needs to read and write the
// session's buffers.
const worldRW = 0o666

// Paths names the three filesystem artifacts owned by a single slot.
type Paths struct {
	InputPath  string
	OutputPath string
	PipePath   string
}

// Manager creates and destroys Paths rooted at a configured temp
// directory.
type Manager struct {
	dir string
}

// NewManager builds a Manager rooted at dir.
func NewManager(dir string) *Manager {
	return &Manager{dir: dir}
}

// Create allocates a unique input file, output file, and named pipe
// for the session identified by id. Any failure during creation
// invokes Cleanup on whatever was created so far and returns an
// error.
func (m *Manager) Create(id string) (Paths, error) {
	var p Paths

	inFile, err := os.CreateTemp(m.dir, "shim_input_buf_")
	if err != nil {
		return Paths{}, fmt.Errorf("create input buffer: %w", err)
	}
	p.InputPath = inFile.Name()
	_ = inFile.Close()
	if err := os.Chmod(p.InputPath, worldRW); err != nil {
		m.Cleanup(p)
		return Paths{}, fmt.Errorf("chmod input buffer: %w", err)
	}

	outFile, err := os.CreateTemp(m.dir, "shim_output_buf_")
	if err != nil {
		m.Cleanup(p)
		return Paths{}, fmt.Errorf("create output buffer: %w", err)
	}
	p.OutputPath = outFile.Name()
	_ = outFile.Close()
	if err := os.Chmod(p.OutputPath, worldRW); err != nil {
		m.Cleanup(p)
		return Paths{}, fmt.Errorf("chmod output buffer: %w", err)
	}

	pipePath, err := m.createPipe(id)
	if err != nil {
		m.Cleanup(p)
		return Paths{}, fmt.Errorf("create output pipe: %w", err)
	}
	p.PipePath = pipePath

	return p, nil
}

// createPipe produces a unique path by creating an empty regular file
// with a unique suffix, then replacing it with a named pipe via
// rename. The rename gives pipe creation the same atomic-uniqueness
// guarantee CreateTemp gives regular files.
func (m *Manager) createPipe(id string) (string, error) {
	placeholder, err := os.CreateTemp(m.dir, "shim_output_pipe_")
	if err != nil {
		return "", err
	}
	uniquePath := placeholder.Name()
	_ = placeholder.Close()

	fifoName := filepath.Join(m.dir, fmt.Sprintf(".shim_fifo_%s", id))
	if err := unix.Mkfifo(fifoName, worldRW); err != nil {
		return "", err
	}
	if err := os.Chmod(fifoName, worldRW); err != nil {
		_ = os.Remove(fifoName)
		return "", err
	}
	if err := os.Rename(fifoName, uniquePath); err != nil {
		_ = os.Remove(fifoName)
		return "", err
	}
	return uniquePath, nil
}

// Cleanup unlinks every non-empty path in p. Errors are logged, not
// returned — cleanup is always best-effort.
func (m *Manager) Cleanup(p Paths) {
	if err := Unlink(p); err != nil {
		logging.Warnf("buffer cleanup: %v", err)
	}
}

// Unlink removes every non-empty path in p, returning the first error
// encountered (if any) after attempting all three.
func Unlink(p Paths) error {
	var firstErr error
	for _, path := range []string{p.InputPath, p.OutputPath, p.PipePath} {
		if path == "" {
			continue
		}
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
