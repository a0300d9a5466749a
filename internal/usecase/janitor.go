package usecase

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"
)

// Janitor sweeps the scratch directories for files older than the maximum
// age. Frames orphaned by a dropped inference batch and audio renders left
// behind by crashed workers land here eventually; everything the pipeline
// still needs is younger than the age cutoff by a wide margin.
type Janitor struct {
	dirs     []string
	interval time.Duration
	maxAge   time.Duration
	logger   *zap.Logger
}

func NewJanitor(dirs []string, interval, maxAge time.Duration, logger *zap.Logger) *Janitor {
	return &Janitor{dirs: dirs, interval: interval, maxAge: maxAge, logger: logger}
}

// Run sweeps on the configured interval until the context is canceled.
func (j *Janitor) Run(ctx context.Context) {
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			j.Sweep()
		}
	}
}

// Sweep removes stale files once and prunes directories left empty.
func (j *Janitor) Sweep() {
	cutoff := time.Now().Add(-j.maxAge)
	removed := 0

	for _, dir := range j.dirs {
		err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
			if err != nil || d.IsDir() {
				return nil
			}
			info, err := d.Info()
			if err != nil {
				return nil
			}
			if info.ModTime().After(cutoff) {
				return nil
			}
			if err := os.Remove(path); err != nil {
				j.logger.Warn("janitor failed to remove stale file", zap.String("path", path), zap.Error(err))
				return nil
			}
			removed++
			return nil
		})
		if err != nil {
			j.logger.Warn("janitor sweep failed", zap.String("dir", dir), zap.Error(err))
		}
		j.pruneEmptyDirs(dir)
	}

	if removed > 0 {
		j.logger.Info("janitor removed stale scratch files", zap.Int("removed", removed))
	}
}

// pruneEmptyDirs removes empty subdirectories under root, deepest first.
// The root itself is kept.
func (j *Janitor) pruneEmptyDirs(root string) {
	var dirs []string
	_ = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err == nil && d.IsDir() && path != root {
			dirs = append(dirs, path)
		}
		return nil
	})
	for i := len(dirs) - 1; i >= 0; i-- {
		entries, err := os.ReadDir(dirs[i])
		if err != nil || len(entries) > 0 {
			continue
		}
		_ = os.Remove(dirs[i])
	}
}
