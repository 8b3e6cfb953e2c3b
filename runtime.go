package main

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"

	"ghostedit/config"
)

// runtimeFiles locates the files a daemon and its clients share. Everything
// lives next to the executable so every editor instance finds the same daemon.
type runtimeFiles struct {
	dir string
}

func newRuntimeFiles(dir string) runtimeFiles {
	return runtimeFiles{dir: dir}
}

func (r runtimeFiles) socket() string    { return filepath.Join(r.dir, "ghostedit.sock") }
func (r runtimeFiles) pid() string       { return filepath.Join(r.dir, "ghostedit.pid") }
func (r runtimeFiles) daemonLog() string { return filepath.Join(r.dir, "ghostedit.log") }
func (r runtimeFiles) clientLog() string { return filepath.Join(r.dir, "ghostedit-client.log") }
func (r runtimeFiles) config() string    { return config.FilePath(r.dir) }

// daemonPID returns the pid recorded in the pid file when that process is
// still alive.
func (r runtimeFiles) daemonPID() (int, bool) {
	data, err := os.ReadFile(r.pid())
	if err != nil {
		return 0, false
	}

	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil || pid <= 0 {
		return 0, false
	}

	process, err := os.FindProcess(pid)
	if err != nil {
		return 0, false
	}

	// On Unix, Signal(0) checks if process exists
	if err := process.Signal(syscall.Signal(0)); err != nil {
		return 0, false
	}
	return pid, true
}

func (r runtimeFiles) writePID() error {
	return os.WriteFile(r.pid(), []byte(strconv.Itoa(os.Getpid())), 0644)
}

func (r runtimeFiles) removePID() error {
	if err := os.Remove(r.pid()); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}
