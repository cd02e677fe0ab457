package core

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// WriteChangelog writes the compiled changelog to path under the given root directory.
// - root: base directory, normally the workspace checkout.
// - path: file path relative to root; absolute paths are re-rooted under root.
// Behavior:
// - Creates parent directories as needed (0755 perms).
// - Overwrites an existing file (0644 perms).
// - Rejects paths that escape the provided root via path traversal.
func WriteChangelog(_ context.Context, root, path, content string) (string, error) {
	log := slog.With("op", "WriteChangelog")
	if strings.TrimSpace(root) == "" {
		return "", fmt.Errorf("root path cannot be empty")
	}
	p := strings.TrimSpace(path)
	if p == "" {
		return "", fmt.Errorf("changelog path cannot be empty")
	}

	root = filepath.Clean(root)

	rel := filepath.Clean(p)
	// Disallow absolute paths by making them relative.
	if filepath.IsAbs(rel) {
		rel = strings.TrimPrefix(rel, string(os.PathSeparator))
	}
	full := filepath.Clean(filepath.Join(root, rel))

	if !isPathWithinRoot(root, full) || full == root {
		return "", fmt.Errorf("changelog path escapes root: %s", path)
	}

	dir := filepath.Dir(full)
	log.Debug("Creating directory", "dir", dir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create directories for %s: %w", full, err)
	}

	log.Debug("Writing changelog", "rel", rel, "full", full)
	if err := os.WriteFile(full, []byte(content), 0o644); err != nil {
		return "", fmt.Errorf("failed to write changelog %s: %w", full, err)
	}
	return full, nil
}

// isPathWithinRoot checks whether target is inside root directory.
func isPathWithinRoot(root, target string) bool {
	rootClean := filepath.Clean(root)
	targetClean := filepath.Clean(target)

	rel, err := filepath.Rel(rootClean, targetClean)
	if err != nil {
		return false
	}
	if rel == "." {
		return true
	}
	if rel == ".." {
		return false
	}
	if strings.HasPrefix(rel, ".."+string(os.PathSeparator)) {
		return false
	}
	return true
}
