package fetch

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// CacheStats summarizes the contents of the download cache.
type CacheStats struct {
	Files      int   `json:"files"`
	TotalBytes int64 `json:"total_bytes"`
}

// Stats walks the cache directory and reports file count and size.
// In-flight temp files are excluded.
func (d *Downloader) Stats() (CacheStats, error) {
	var stats CacheStats

	entries, err := os.ReadDir(d.cfg.CacheDir)
	if err != nil {
		return stats, fmt.Errorf("failed to read cache directory: %w", err)
	}

	for _, entry := range entries {
		if entry.IsDir() || strings.HasPrefix(entry.Name(), ".download-") {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		stats.Files++
		stats.TotalBytes += info.Size()
	}
	return stats, nil
}

// Clear removes all cached files and returns the number removed.
func (d *Downloader) Clear() (int, error) {
	entries, err := os.ReadDir(d.cfg.CacheDir)
	if err != nil {
		return 0, fmt.Errorf("failed to read cache directory: %w", err)
	}

	removed := 0
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if err := os.Remove(filepath.Join(d.cfg.CacheDir, entry.Name())); err != nil {
			return removed, fmt.Errorf("failed to remove %q: %w", entry.Name(), err)
		}
		removed++
	}
	return removed, nil
}
