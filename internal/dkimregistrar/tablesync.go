package dkimregistrar

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/ignite/sparkpost-monitor/internal/pkg/distlock"
	"github.com/ignite/sparkpost-monitor/internal/pkg/logger"
)

// SyncEntry is one (domain, selector, key path) triple to materialize into
// the key and signing tables.
type SyncEntry struct {
	Apex           string
	Selector       string
	PrivateKeyPath string
}

// SyncReport summarizes the outcome of a TableSync.Run call.
type SyncReport struct {
	KeyLines     int
	SigningLines int
	Skipped      []string // "{apex}.{selector}: {reason}"
}

// TableSync atomically rewrites opendkim's KeyTable and SigningTable from
// the full set of active DkimKeys, then signals the milter to reload.
type TableSync struct {
	keyTablePath     string
	signingTablePath string
	pidFile          string
	lockFactory      func(key string) distlock.DistLock
}

// NewTableSync builds a TableSync. lockFactory constructs a DistLock scoped
// to an arbitrary key (callers pass the Redis- or Postgres-backed
// distlock.NewLock closure).
func NewTableSync(keyTablePath, signingTablePath, pidFile string, lockFactory func(key string) distlock.DistLock) *TableSync {
	return &TableSync{keyTablePath: keyTablePath, signingTablePath: signingTablePath, pidFile: pidFile, lockFactory: lockFactory}
}

// Run rewrites both tables from entries. The distributed lock is held only
// for the file-rewrite section; it is released before the milter-reload
// exec/signal call so a file lock never spans a network or process call.
func (t *TableSync) Run(ctx context.Context, entries []SyncEntry) (*SyncReport, error) {
	lock := t.lockFactory("dkim:table-sync")
	acquired, err := lock.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("dkimregistrar: acquire table sync lock: %w", err)
	}
	if !acquired {
		return nil, fmt.Errorf("dkimregistrar: table sync already in progress")
	}

	report := &SyncReport{}
	err = func() error {
		defer func() {
			if relErr := lock.Release(ctx); relErr != nil {
				logger.Warn("dkim table sync lock release failed", "error", relErr.Error())
			}
		}()

		keyLines := make(map[string]bool)
		signingLines := make(map[string]bool)

		for _, e := range entries {
			apex := strings.ToLower(strings.TrimSpace(e.Apex))
			selector := strings.ToLower(strings.TrimSpace(e.Selector))
			if !selectorRe.MatchString(selector) {
				report.Skipped = append(report.Skipped, fmt.Sprintf("%s.%s: invalid selector", apex, selector))
				continue
			}
			if _, statErr := os.Stat(e.PrivateKeyPath); statErr != nil {
				report.Skipped = append(report.Skipped, fmt.Sprintf("%s.%s: key file unreadable: %s", apex, selector, statErr.Error()))
				continue
			}

			keyLines[fmt.Sprintf("%s.%s %s:%s:%s", apex, selector, apex, selector, e.PrivateKeyPath)] = true
			signingLines[fmt.Sprintf("*@%s %s.%s", apex, apex, selector)] = true
			signingLines[fmt.Sprintf("*@*.%s %s.%s", apex, apex, selector)] = true
		}

		if err := writeTableAtomic(t.keyTablePath, sortedKeys(keyLines)); err != nil {
			return err
		}
		if err := writeTableAtomic(t.signingTablePath, sortedKeys(signingLines)); err != nil {
			return err
		}
		report.KeyLines = len(keyLines)
		report.SigningLines = len(signingLines)
		return nil
	}()
	if err != nil {
		return nil, err
	}

	if err := reloadMilter(t.pidFile); err != nil {
		logger.Warn("dkim milter reload failed", "error", err.Error())
	}

	return report, nil
}

func sortedKeys(set map[string]bool) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func writeTableAtomic(path string, lines []string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0750); err != nil {
		return fmt.Errorf("dkimregistrar: mkdir table dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".dkim-table-*.tmp")
	if err != nil {
		return fmt.Errorf("dkimregistrar: create temp table file: %w", err)
	}
	tmpPath := tmp.Name()

	content := strings.Join(lines, "\n")
	if len(lines) > 0 {
		content += "\n"
	}
	if _, err := tmp.WriteString(content); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("dkimregistrar: write temp table file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("dkimregistrar: close temp table file: %w", err)
	}
	if err := os.Chmod(tmpPath, 0644); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("dkimregistrar: chmod temp table file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("dkimregistrar: rename temp table file: %w", err)
	}
	return nil
}
