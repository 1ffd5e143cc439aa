package dkimregistrar

import (
	"context"
	"fmt"
	"os"
	"strings"
	"syscall"
)

// Registrar is the append-only, single-domain update path: it adds one
// signing-table line without rewriting the whole file, for callers that
// only need to onboard a single domain and don't want to pay for a full
// TableSync.
type Registrar struct {
	signingTablePath string
	pidFile          string
}

// NewRegistrar builds a Registrar over the signing table and opendkim's
// pid file.
func NewRegistrar(signingTablePath, pidFile string) *Registrar {
	return &Registrar{signingTablePath: signingTablePath, pidFile: pidFile}
}

// AppendSigningEntry appends `*@{apex} {apex}.{selector}` to the signing
// table under an exclusive file lock, skipping if the line is already
// present. A PID-file based SIGHUP is sent best-effort after the write.
func (r *Registrar) AppendSigningEntry(ctx context.Context, apex, selector string) error {
	apex = strings.ToLower(strings.TrimSpace(apex))
	selector = strings.ToLower(strings.TrimSpace(selector))
	if !selectorRe.MatchString(selector) {
		return fmt.Errorf("dkimregistrar: invalid selector %q", selector)
	}

	f, err := os.OpenFile(r.signingTablePath, os.O_RDWR|os.O_CREATE, 0644)
	if err != nil {
		return fmt.Errorf("dkimregistrar: open signing table: %w", err)
	}
	defer f.Close()

	if err := syscall.Flock(int(f.Fd()), syscall.LOCK_EX); err != nil {
		return fmt.Errorf("dkimregistrar: lock signing table: %w", err)
	}
	defer syscall.Flock(int(f.Fd()), syscall.LOCK_UN)

	existing, err := os.ReadFile(r.signingTablePath)
	if err != nil {
		return fmt.Errorf("dkimregistrar: read signing table: %w", err)
	}

	line := fmt.Sprintf("*@%s %s.%s", apex, apex, selector)
	if strings.Contains(string(existing), line+"\n") {
		return nil
	}

	if _, err := f.Seek(0, 2); err != nil {
		return fmt.Errorf("dkimregistrar: seek signing table: %w", err)
	}
	if _, err := f.WriteString(line + "\n"); err != nil {
		return fmt.Errorf("dkimregistrar: append signing table: %w", err)
	}
	if err := f.Sync(); err != nil {
		return fmt.Errorf("dkimregistrar: flush signing table: %w", err)
	}

	if pid, ok := readPID(r.pidFile); ok {
		_ = syscall.Kill(pid, syscall.SIGHUP)
	}
	return nil
}

func readPID(path string) (int, bool) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return 0, false
	}
	var pid int
	if _, err := fmt.Sscanf(strings.TrimSpace(string(raw)), "%d", &pid); err != nil {
		return 0, false
	}
	return pid, true
}
