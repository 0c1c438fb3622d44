package logging

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// CleanupOldLogs prunes run logs under dir that match pattern and are older
// than retentionDays. The file named by keep survives regardless of age, so
// the active run log is never removed. A retentionDays value of 0 disables
// pruning.
func CleanupOldLogs(logger *slog.Logger, retentionDays int, dir, pattern, keep string) {
	dir = strings.TrimSpace(dir)
	if retentionDays <= 0 || dir == "" || strings.TrimSpace(pattern) == "" {
		return
	}
	cutoff := time.Now().AddDate(0, 0, -retentionDays)

	if abs, err := filepath.Abs(strings.TrimSpace(keep)); err == nil && keep != "" {
		keep = abs
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return
	}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if matched, err := filepath.Match(pattern, entry.Name()); err != nil || !matched {
			continue
		}
		fullPath := filepath.Join(dir, entry.Name())
		if abs, err := filepath.Abs(fullPath); err == nil {
			fullPath = abs
		}
		if keep != "" && fullPath == keep {
			continue
		}
		info, err := entry.Info()
		if err != nil || !info.ModTime().Before(cutoff) {
			continue
		}
		if err := os.Remove(fullPath); err != nil {
			WarnWithContext(logger, "log retention remove failed; file remains", "log_retention_failed",
				String("path", fullPath),
				Error(err),
				String(FieldErrorHint, "check file permissions and log_dir ownership"),
				String(FieldImpact, "old log file remains on disk"),
			)
			continue
		}
		if logger != nil {
			logger.Info("log pruned",
				String("path", fullPath),
				String(FieldEventType, "log_pruned"),
			)
		}
	}
}
