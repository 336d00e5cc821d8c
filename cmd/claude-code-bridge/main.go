package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/RandyBoBandy92/claude-code-bridge/internal/config"
	"github.com/RandyBoBandy92/claude-code-bridge/internal/lockfile"
	"github.com/RandyBoBandy92/claude-code-bridge/internal/logger"
	"github.com/RandyBoBandy92/claude-code-bridge/internal/socketserver"
	"github.com/RandyBoBandy92/claude-code-bridge/internal/workspace"
)

type stringSlice []string

func (s *stringSlice) String() string {
	if s == nil {
		return ""
	}
	return strings.Join(*s, ",")
}

func (s *stringSlice) Set(value string) error {
	if value == "" {
		return fmt.Errorf("value cannot be empty")
	}
	*s = append(*s, value)
	return nil
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() (err error) {
	var workspaces stringSlice
	flag.Var(&workspaces, "workspace", "workspace root directory (repeatable)")
	configPath := flag.String("config", config.GetConfigPath(), "path to config file")
	logLevel := flag.String("log-level", "", "log level override (debug, info, warn, error, none)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if *logLevel != "" {
		cfg.LogLevel = *logLevel
	}
	if len(workspaces) > 0 {
		cfg.WorkspaceDirs = workspaces
	}
	if len(cfg.WorkspaceDirs) == 0 {
		cwd, cwdErr := os.Getwd()
		if cwdErr != nil {
			return fmt.Errorf("no workspace configured and cwd unavailable: %w", cwdErr)
		}
		cfg.WorkspaceDirs = []string{cwd}
	}

	if cfg.LogPath == "" && cfg.LogLevel != "none" {
		cacheDir, cacheErr := os.UserCacheDir()
		if cacheErr == nil {
			cfg.LogPath = filepath.Join(cacheDir, "claude-code-bridge", "bridge.log")
		}
	}
	if err := logger.Init(logger.ParseLevel(cfg.LogLevel), cfg.LogPath); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer func() {
		if err != nil {
			logger.Error("Fatal error: %v", err)
		}
		if closeErr := logger.Global().Close(); closeErr != nil {
			fmt.Fprintf(os.Stderr, "Warning: failed to close logger: %v\n", closeErr)
		}
	}()

	editor, err := workspace.NewFSEditor(cfg.WorkspaceDirs)
	if err != nil {
		return fmt.Errorf("failed to create workspace editor: %w", err)
	}

	watcher, err := workspace.NewWatcher(editor.Roots(), editor.EventSink())
	if err != nil {
		logger.Warn("File watching disabled: %v", err)
	} else {
		defer watcher.Close()
	}

	srv, err := socketserver.NewServer(cfg, editor, editor.Events())
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := srv.Start(ctx); err != nil {
		return fmt.Errorf("failed to start server: %w", err)
	}
	defer srv.Stop()

	lockDir := cfg.LockDir
	if lockDir == "" {
		lockDir, err = lockfile.DefaultDir()
		if err != nil {
			return fmt.Errorf("failed to resolve lock directory: %w", err)
		}
	}

	// Descriptors from crashed instances would point clients at dead ports
	lockfile.CleanStale(lockDir)

	publisher := lockfile.NewPublisher(lockDir)
	if err := publisher.Write(lockfile.Descriptor{
		WorkspaceFolders: editor.Roots(),
		AuthToken:        srv.Credential(),
		Port:             srv.Port(),
	}); err != nil {
		return fmt.Errorf("failed to publish discovery descriptor: %w", err)
	}
	defer func() {
		if removeErr := publisher.Remove(); removeErr != nil {
			logger.Warn("Failed to remove discovery descriptor: %v", removeErr)
		}
	}()

	fmt.Printf("claude-code-bridge listening on 127.0.0.1:%d\n", srv.Port())
	logger.Info("Bridge ready on port %d for workspaces %v", srv.Port(), editor.Roots())

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	sig := <-sigChan
	logger.Info("Received %v, shutting down", sig)

	return nil
}
