package main

import (
	"log"
	"os"
	"path/filepath"

	"ghostedit/config"
	"ghostedit/logger"
)

type ServerMode string

const (
	ModeDaemon ServerMode = "daemon"
	ModeClient ServerMode = "client"
)

func execDir() string {
	execPath, err := os.Executable()
	if err != nil {
		log.Fatalf("error getting executable path: %v", err)
	}
	return filepath.Dir(execPath)
}

// Setup logger to log to path and route the standard log package into it.
// Caller must defer logger.Close()
func setupLogger(path, logLevel string) *logger.FileLogger {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0666)
	if err != nil {
		log.Fatalf("error opening file: %v", err)
	}

	fileLogger := logger.New(f, logger.ParseLevel(logLevel))
	log.SetOutput(fileLogger)
	return fileLogger
}

func runDaemon(files runtimeFiles) {
	cfg, err := config.Load(files.dir)
	if err != nil {
		log.Fatalf("invalid config: %v", err)
	}

	fileLogger := setupLogger(files.daemonLog(), cfg.LogLevel)
	defer fileLogger.Close()

	logger.Info("config: model=%s url=%s timeout=%dms", cfg.ProviderModel, cfg.ProviderURL, cfg.CompletionTimeout)

	daemon := NewDaemon(cfg, files)
	if err := daemon.Start(); err != nil {
		log.Fatalf("error starting daemon: %v", err)
	}
}

func runClient(files runtimeFiles) {
	// The client shares the daemon's log level but not its file; the daemon
	// trims its log in place.
	level := config.Default().LogLevel
	if cfg, err := config.Load(files.dir); err == nil {
		level = cfg.LogLevel
	}
	fileLogger := setupLogger(files.clientLog(), level)
	defer fileLogger.Close()

	client := NewClient(files)

	if err := client.EnsureDaemonRunning(); err != nil {
		logger.Error("client: %v", err)
		log.Fatalf("error ensuring daemon is running: %v", err)
	}

	if err := client.Connect(); err != nil {
		logger.Error("client: %v", err)
		log.Fatalf("error connecting to daemon: %v", err)
	}
}

func main() {
	var mode ServerMode = ModeClient

	// Check command line arguments
	if len(os.Args) > 1 && os.Args[1] == "--daemon" {
		mode = ModeDaemon
	}

	files := newRuntimeFiles(execDir())
	switch mode {
	case ModeDaemon:
		runDaemon(files)
	case ModeClient:
		runClient(files)
	}
}
