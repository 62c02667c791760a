package compile

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const (
	DefaultScratchTTL    = time.Hour
	DefaultSweepInterval = 10 * time.Minute
)

// StartSweeper removes orphaned scratch files (left by a crash or a failed
// cleanup) every interval until ctx is cancelled.
func (c *LocalCompiler) StartSweeper(ctx context.Context, interval, ttl time.Duration) {
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	if ttl <= 0 {
		ttl = DefaultScratchTTL
	}
	go c.sweepLoop(ctx, interval, ttl)
}

func (c *LocalCompiler) sweepLoop(ctx context.Context, interval, ttl time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			if removed := c.Sweep(now, ttl); removed > 0 {
				c.logger.Info("swept stale scratch files", "removed", removed)
			}
		}
	}
}

// Sweep deletes scratch files in WorkDir last modified before now-ttl and
// returns how many were removed. Files not named like scratch files are left alone.
func (c *LocalCompiler) Sweep(now time.Time, ttl time.Duration) int {
	entries, err := os.ReadDir(c.WorkDir)
	if err != nil {
		c.logger.Warn("read work dir failed", "error", err)
		return 0
	}
	cutoff := now.Add(-ttl)
	removed := 0
	for _, entry := range entries {
		if entry.IsDir() || !isScratchFile(entry.Name()) {
			continue
		}
		info, err := entry.Info()
		if err != nil || info.ModTime().After(cutoff) {
			continue
		}
		path := filepath.Join(c.WorkDir, entry.Name())
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			c.logger.Warn("remove stale scratch file failed", "path", path, "error", err)
			continue
		}
		removed++
	}
	return removed
}

func isScratchFile(name string) bool {
	stem := strings.TrimSuffix(name, filepath.Ext(name))
	return strings.HasSuffix(stem, scratchSuffix) && strings.Count(stem, "_") >= 3
}
