package main

import (
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"os/exec"
	"syscall"
	"time"

	"ghostedit/logger"
)

const (
	defaultStartupWait = 5 * time.Second
	pollInterval       = 100 * time.Millisecond
)

// Client relays one editor's msgpack-rpc stream between stdio and the shared
// daemon socket.
type Client struct {
	files       runtimeFiles
	startupWait time.Duration

	in  io.Reader
	out io.Writer

	// spawn starts a detached daemon process; replaced in tests.
	spawn func() (int, error)
}

func NewClient(files runtimeFiles) *Client {
	c := &Client{
		files:       files,
		startupWait: defaultStartupWait,
		in:          os.Stdin,
		out:         os.Stdout,
	}
	c.spawn = c.spawnDaemon
	return c
}

// Connect relays until the daemon closes the connection. When the editor
// closes its side first, the write half of the socket is shut so the daemon
// sees EOF and hangs up.
func (c *Client) Connect() error {
	conn, err := net.Dial("unix", c.files.socket())
	if err != nil {
		return fmt.Errorf("dial daemon: %w", err)
	}
	defer conn.Close()
	logger.Debug("client: connected to %s", c.files.socket())

	go func() {
		n, err := io.Copy(conn, c.in)
		if err != nil && !errors.Is(err, net.ErrClosed) {
			logger.Warn("client: editor relay failed after %d bytes: %v", n, err)
		} else {
			logger.Debug("client: editor input closed after %d bytes", n)
		}
		if uc, ok := conn.(*net.UnixConn); ok {
			uc.CloseWrite()
		} else {
			conn.Close()
		}
	}()

	n, err := io.Copy(c.out, conn)
	if err != nil && !errors.Is(err, net.ErrClosed) {
		return fmt.Errorf("relay daemon output after %d bytes: %w", n, err)
	}
	logger.Debug("client: daemon closed connection after %d bytes", n)
	return nil
}

// EnsureDaemonRunning starts a daemon unless the pid file names a live one,
// then waits until its socket accepts connections.
func (c *Client) EnsureDaemonRunning() error {
	if pid, ok := c.files.daemonPID(); ok {
		logger.Debug("client: daemon already running with PID %d", pid)
		return c.waitForDaemon()
	}

	pid, err := c.spawn()
	if err != nil {
		return fmt.Errorf("start daemon: %w", err)
	}
	logger.Info("client: started daemon with PID %d", pid)

	return c.waitForDaemon()
}

func (c *Client) spawnDaemon() (int, error) {
	exe, err := os.Executable()
	if err != nil {
		return 0, err
	}

	cmd := exec.Command(exe, "--daemon")
	cmd.Env = os.Environ()
	// own session, so the daemon outlives the editor that started it
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}
	if err := cmd.Start(); err != nil {
		return 0, err
	}

	pid := cmd.Process.Pid
	if err := cmd.Process.Release(); err != nil {
		logger.Debug("client: release daemon process: %v", err)
	}
	return pid, nil
}

// waitForDaemon polls until a live daemon owns the pid file and its socket
// exists. It never dials: every connection takes over the daemon's buffer.
func (c *Client) waitForDaemon() error {
	deadline := time.Now().Add(c.startupWait)
	for !c.daemonReady() {
		if time.Now().After(deadline) {
			return fmt.Errorf("daemon not ready within %s", c.startupWait)
		}
		time.Sleep(pollInterval)
	}
	return nil
}

func (c *Client) daemonReady() bool {
	if _, ok := c.files.daemonPID(); !ok {
		return false
	}
	info, err := os.Stat(c.files.socket())
	return err == nil && info.Mode()&os.ModeSocket != 0
}
