// Package lockfile publishes the discovery descriptor the external client
// uses to find a running server: a JSON file named after the listening
// port, containing the process id, workspace roots and the auth token.
// The token makes the file sensitive, so it is always written 0600.
package lockfile

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/RandyBoBandy92/claude-code-bridge/internal/logger"
)

const (
	// IdeName is the fixed identifier clients match on when scanning
	// descriptor files
	IdeName = "claude-code-bridge"

	// Transport is the wire transport advertised to clients
	Transport = "ws"

	// lockExt is the descriptor file suffix
	lockExt = ".lock"
)

// ErrNotPublished is returned by Remove when no descriptor was written
var ErrNotPublished = errors.New("no descriptor published")

// Descriptor advertises one running server instance
type Descriptor struct {
	PID              int      `json:"pid"`
	WorkspaceFolders []string `json:"workspaceFolders"`
	IdeName          string   `json:"ideName"`
	Transport        string   `json:"transport"`
	RunningInWindows bool     `json:"runningInWindows"`
	AuthToken        string   `json:"authToken"`
	Port             int      `json:"port"`
}

// Publisher writes and removes the descriptor for one server lifetime
type Publisher struct {
	dir  string
	path string
}

// DefaultDir returns the per-user descriptor directory
func DefaultDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to resolve home directory: %w", err)
	}
	return filepath.Join(home, ".claude", "ide"), nil
}

// NewPublisher creates a publisher rooted at dir
func NewPublisher(dir string) *Publisher {
	return &Publisher{dir: dir}
}

// Write publishes desc as <dir>/<port>.lock. PID, platform flag and the
// fixed identity fields are filled in here; callers supply the port, the
// workspace roots and the auth token.
func (p *Publisher) Write(desc Descriptor) error {
	if desc.Port <= 0 {
		return fmt.Errorf("descriptor requires a positive port, got %d", desc.Port)
	}
	if desc.AuthToken == "" {
		return fmt.Errorf("descriptor requires an auth token")
	}

	desc.PID = os.Getpid()
	desc.IdeName = IdeName
	desc.Transport = Transport
	desc.RunningInWindows = runtime.GOOS == "windows"

	// Directory itself is also user-only: every file in it embeds a token
	if err := os.MkdirAll(p.dir, 0700); err != nil {
		return fmt.Errorf("failed to create descriptor directory: %w", err)
	}

	data, err := json.Marshal(desc)
	if err != nil {
		return fmt.Errorf("failed to encode descriptor: %w", err)
	}

	path := filepath.Join(p.dir, fmt.Sprintf("%d%s", desc.Port, lockExt))
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write descriptor: %w", err)
	}

	p.path = path
	logger.Info("Discovery descriptor published at %s", path)
	return nil
}

// Remove deletes the published descriptor. Safe to call more than once.
func (p *Publisher) Remove() error {
	if p.path == "" {
		return ErrNotPublished
	}

	if err := os.Remove(p.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove descriptor: %w", err)
	}

	logger.Info("Discovery descriptor removed: %s", p.path)
	p.path = ""
	return nil
}

// Path returns the published descriptor path, or "" before Write
func (p *Publisher) Path() string {
	return p.path
}

// Read parses a descriptor file
func Read(path string) (Descriptor, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Descriptor{}, fmt.Errorf("failed to read descriptor: %w", err)
	}

	var desc Descriptor
	if err := json.Unmarshal(data, &desc); err != nil {
		return Descriptor{}, fmt.Errorf("failed to parse descriptor: %w", err)
	}
	return desc, nil
}

// CleanStale removes descriptors in dir whose owning process is gone.
// Crashed servers never run their Remove, so every start sweeps the
// directory. Returns the number of descriptors removed.
func CleanStale(dir string) int {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0
	}

	removed := 0
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), lockExt) {
			continue
		}

		path := filepath.Join(dir, entry.Name())
		desc, err := Read(path)
		if err != nil {
			// Unparsable descriptors are useless to any client
			if os.Remove(path) == nil {
				logger.Warn("Removed corrupt descriptor %s", path)
				removed++
			}
			continue
		}

		if running, _ := isProcessRunning(desc.PID); running {
			continue
		}

		if err := os.Remove(path); err != nil {
			logger.Warn("Failed to remove stale descriptor %s: %v", path, err)
			continue
		}
		logger.Info("Removed stale descriptor %s (pid %d gone)", path, desc.PID)
		removed++
	}
	return removed
}
