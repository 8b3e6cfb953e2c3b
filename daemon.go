package main

import (
	"context"
	"io"
	"log"
	"net"
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"ghostedit/buffer"
	"ghostedit/config"
	"ghostedit/engine"
	"ghostedit/logger"
	"ghostedit/provider"

	"github.com/neovim/go-client/nvim"
)

type Daemon struct {
	mu     sync.RWMutex
	config config.Config
	files  runtimeFiles

	buffer      *buffer.NvimBuffer
	engine      *engine.Engine
	listener    net.Listener
	clientCount int64
	ctx         context.Context
	cancel      context.CancelFunc
}

func engineConfig(cfg config.Config) engine.EngineConfig {
	return engine.EngineConfig{
		CompletionTimeout: time.Duration(cfg.CompletionTimeout) * time.Millisecond,
	}
}

func NewDaemon(cfg config.Config, files runtimeFiles) *Daemon {
	buf := buffer.New(buffer.Config{NsID: cfg.NsID})
	eng := engine.NewEngine(provider.New(cfg.Provider()), buf, buf, engineConfig(cfg))

	ctx, cancel := context.WithCancel(context.Background())

	return &Daemon{
		config: cfg,
		files:  files,
		buffer: buf,
		engine: eng,
		ctx:    ctx,
		cancel: cancel,
	}
}

func (d *Daemon) Start() error {
	d.writePidFile()
	defer d.removePidFile()

	if err := d.setupSocket(); err != nil {
		return err
	}
	defer d.cleanup()

	log.Printf("daemon listening on socket: %s", d.files.socket())

	d.engine.Start(d.ctx)
	d.setupShutdownHandling()

	go d.acceptConnections()
	go d.monitorIdleShutdown()
	go d.watchConfig()

	<-d.ctx.Done()
	log.Printf("daemon shutting down...")
	return nil
}

func (d *Daemon) setupSocket() error {
	// Remove existing socket
	os.Remove(d.files.socket())

	listener, err := net.Listen("unix", d.files.socket())
	if err != nil {
		return err
	}
	d.listener = listener
	return nil
}

func (d *Daemon) setupShutdownHandling() {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		log.Printf("received shutdown signal")
		d.Stop()
	}()
}

func (d *Daemon) acceptConnections() {
	for {
		conn, err := d.listener.Accept()
		if err != nil {
			select {
			case <-d.ctx.Done():
				return // Server is shutting down
			default:
				log.Printf("error accepting connection: %v", err)
				continue
			}
		}

		atomic.AddInt64(&d.clientCount, 1)
		log.Printf("new client connected, total clients: %d", atomic.LoadInt64(&d.clientCount))
		go d.handleConnection(conn)
	}
}

func (d *Daemon) handleConnection(conn net.Conn) {
	defer conn.Close()
	defer func() {
		atomic.AddInt64(&d.clientCount, -1)
		log.Printf("client disconnected, remaining clients: %d", atomic.LoadInt64(&d.clientCount))
	}()

	n, err := nvim.New(conn, conn, conn, log.Printf)
	if err != nil {
		log.Printf("error creating nvim client: %v", err)
		return
	}

	// The most recent connection owns the buffer
	d.buffer.SetClient(n)
	if err := d.engine.Listen(d.buffer); err != nil {
		log.Printf("error registering handlers: %v", err)
		return
	}

	if err := n.Serve(); err != nil && err != io.EOF {
		log.Printf("error serving connection: %v", err)
	}
}

// watchConfig applies config file changes to later requests.
func (d *Daemon) watchConfig() {
	updates, err := config.Watch(d.ctx, d.files.config())
	if err != nil {
		logger.Warn("config reload disabled: %v", err)
		return
	}
	for cfg := range updates {
		d.applyConfig(cfg)
	}
}

func (d *Daemon) applyConfig(cfg config.Config) {
	d.mu.Lock()
	d.config = cfg
	d.mu.Unlock()

	logger.SetLevel(logger.ParseLevel(cfg.LogLevel))
	d.engine.SetSource(provider.New(cfg.Provider()))
	d.engine.SetConfig(engineConfig(cfg))
}

func (d *Daemon) idleTimeout() time.Duration {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.config.IdleShutdown <= 0 {
		return 30 * time.Second
	}
	return time.Duration(d.config.IdleShutdown) * time.Millisecond
}

func (d *Daemon) monitorIdleShutdown() {
	d.mu.RLock()
	immediate := d.config.DebugImmediateShutdown
	d.mu.RUnlock()

	// In debug mode, shut down immediately when no clients are connected
	if immediate {
		ticker := time.NewTicker(1 * time.Second)
		defer ticker.Stop()

		for {
			select {
			case <-d.ctx.Done():
				return
			case <-ticker.C:
				if atomic.LoadInt64(&d.clientCount) == 0 {
					log.Printf("debug mode: no clients connected, shutting down daemon immediately")
					d.Stop()
					return
				}
			}
		}
	}

	// Normal mode: wait for timeout period before shutting down
	idleTimer := time.NewTimer(d.idleTimeout())
	defer idleTimer.Stop()

	for {
		select {
		case <-d.ctx.Done():
			return
		case <-idleTimer.C:
			if atomic.LoadInt64(&d.clientCount) == 0 {
				log.Printf("no clients connected for timeout period, shutting down daemon")
				d.Stop()
				return
			}
		}
		idleTimer.Reset(d.idleTimeout())
	}
}

func (d *Daemon) Stop() {
	d.engine.Stop()
	if d.listener != nil {
		d.listener.Close()
	}
	d.cancel()
}

func (d *Daemon) cleanup() {
	os.Remove(d.files.socket())
}

func (d *Daemon) writePidFile() {
	if err := d.files.writePID(); err != nil {
		log.Printf("warning: could not write PID file: %v", err)
	}
	log.Printf("server started with PID %d", os.Getpid())
}

func (d *Daemon) removePidFile() {
	if err := d.files.removePID(); err != nil {
		log.Printf("warning: could not remove PID file: %v", err)
	}
}
