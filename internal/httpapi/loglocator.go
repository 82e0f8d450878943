package httpapi

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ProcLogLocator finds the backend server's log file by scanning
// /proc for a process matching processName and reading its open file
// descriptors for one whose target path ends in logSuffix. This is a
// heuristic, not a protocol: if the backend ever changes how it names
// its log file, this needs updating alongside it.
type ProcLogLocator struct {
	ProcessName string
	LogSuffix   string
	TailBytes   int64
}

// NewProcLogLocator builds a locator with the conventional scidb
// server process name and log suffix.
func NewProcLogLocator() *ProcLogLocator {
	return &ProcLogLocator{
		ProcessName: "SciDB-0",
		LogSuffix:   "scidb.log",
		TailBytes:   64 * 1024,
	}
}

// TailLog implements LogLocator.
func (l *ProcLogLocator) TailLog() (string, error) {
	path, err := l.findLogPath()
	if err != nil {
		return "", err
	}
	return tailFile(path, l.TailBytes)
}

func (l *ProcLogLocator) findLogPath() (string, error) {
	entries, err := os.ReadDir("/proc")
	if err != nil {
		return "", fmt.Errorf("scan /proc: %w", err)
	}

	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		cmdline, err := os.ReadFile(filepath.Join("/proc", e.Name(), "cmdline"))
		if err != nil || !strings.Contains(string(cmdline), l.ProcessName) {
			continue
		}
		fdDir := filepath.Join("/proc", e.Name(), "fd")
		fds, err := os.ReadDir(fdDir)
		if err != nil {
			continue
		}
		for _, fd := range fds {
			target, err := os.Readlink(filepath.Join(fdDir, fd.Name()))
			if err != nil {
				continue
			}
			if strings.HasSuffix(target, l.LogSuffix) {
				return target, nil
			}
		}
	}
	return "", fmt.Errorf("backend log file not found via /proc scan")
}

func tailFile(path string, maxBytes int64) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return "", err
	}

	offset := int64(0)
	if info.Size() > maxBytes {
		offset = info.Size() - maxBytes
	}
	if _, err := f.Seek(offset, 0); err != nil {
		return "", err
	}

	buf := make([]byte, info.Size()-offset)
	if _, err := f.Read(buf); err != nil {
		return "", err
	}
	return string(buf), nil
}
