// Package pidfile guards against two hosts binding the same configuration.
// The file holds the owning process id; a file left behind by a dead process
// is reclaimed.
package pidfile

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
)

// File is an acquired pid file. Release removes it.
type File struct {
	path string
}

// Acquire writes the current pid to path. It fails when another live
// process already holds the file.
func Acquire(path string) (*File, error) {
	if pid, ok := readPid(path); ok && pidAlive(pid) {
		return nil, fmt.Errorf("another instance is running (pid %d, %s)", pid, path)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create pidfile directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(strconv.Itoa(os.Getpid())), 0644); err != nil {
		return nil, fmt.Errorf("failed to write pidfile: %w", err)
	}
	return &File{path: path}, nil
}

// Release removes the pid file. Safe to call when the file is already gone.
func (f *File) Release() {
	_ = os.Remove(f.path)
}

// Path returns the pid file location.
func (f *File) Path() string {
	return f.path
}

func readPid(path string) (int, bool) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, false
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil || pid <= 0 {
		return 0, false
	}
	return pid, true
}

// pidAlive reports whether a process with the given pid exists. Signal 0
// performs the existence check without delivering anything.
func pidAlive(pid int) bool {
	proc, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	return proc.Signal(syscall.Signal(0)) == nil
}
