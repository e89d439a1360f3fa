package cmd

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"syscall"
	"time"
)

// SessionMetadata describes a running `dirworld run`. It is written to a
// sidecar file so other invocations can find live sessions.
type SessionMetadata struct {
	PID         int       `json:"pid"`
	Root        string    `json:"root"`
	CacheDB     string    `json:"cache_db,omitempty"`
	MetricsAddr string    `json:"metrics_addr,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
}

// sessionsDir is where sidecars live. Tests point it elsewhere.
var sessionsDir = func() (string, error) {
	dir := filepath.Join(os.TempDir(), "dirworld")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	return dir, nil
}

// generateSessionName creates a readable, stable name for a world root.
// Format: basename-hash (e.g., "world-a1b2c3")
func generateSessionName(root string) string {
	hash := sha256.Sum256([]byte(root))
	return fmt.Sprintf("%s-%s", filepath.Base(root), hex.EncodeToString(hash[:3]))
}

func sidecarPath(dir, root string) string {
	return filepath.Join(dir, generateSessionName(root)+".session.json")
}

func saveSession(meta *SessionMetadata) (string, error) {
	dir, err := sessionsDir()
	if err != nil {
		return "", err
	}
	data, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return "", err
	}
	path := sidecarPath(dir, meta.Root)
	return path, os.WriteFile(path, data, 0o644)
}

// listSessions reads every sidecar. Unreadable files are skipped.
func listSessions() ([]*SessionMetadata, error) {
	dir, err := sessionsDir()
	if err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var out []*SessionMetadata
	for _, e := range entries {
		if !strings.HasSuffix(e.Name(), ".session.json") {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, e.Name()))
		if err != nil {
			continue
		}
		var meta SessionMetadata
		if err := json.Unmarshal(data, &meta); err != nil {
			continue
		}
		out = append(out, &meta)
	}
	return out, nil
}

// isProcessRunning checks if a process with the given PID is running.
func isProcessRunning(pid int) bool {
	process, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	// On Unix, FindProcess always succeeds. Send signal 0 to check if alive.
	return process.Signal(syscall.Signal(0)) == nil
}
