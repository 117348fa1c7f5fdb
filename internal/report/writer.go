package report

import (
	"crypto/sha256"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
)

// writeFileIfChanged writes content only if it differs from what is already
// on disk, so regenerating with the same data produces no changes. Returns
// whether the file was written.
func writeFileIfChanged(path string, content []byte, logger *slog.Logger) (bool, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return false, fmt.Errorf("failed to create directory: %w", err)
	}

	if existing, err := os.ReadFile(path); err == nil {
		if sha256.Sum256(existing) == sha256.Sum256(content) {
			logger.Debug("file unchanged, skipping", "path", path)
			return false, nil
		}
	}

	if err := os.WriteFile(path, content, 0644); err != nil {
		return false, fmt.Errorf("failed to write file: %w", err)
	}
	return true, nil
}
