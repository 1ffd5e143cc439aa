package dkimregistrar

import (
	"os"
	"os/exec"
	"strconv"
	"strings"
	"syscall"

	"github.com/ignite/sparkpost-monitor/internal/pkg/logger"
)

// reloadMilter signals opendkim to pick up the rewritten tables, preferring
// systemctl, falling back to service, and finally a direct SIGUSR1 to the
// PID recorded in pidFile.
func reloadMilter(pidFile string) error {
	if err := exec.Command("systemctl", "reload", "opendkim").Run(); err == nil {
		return nil
	}
	if err := exec.Command("service", "opendkim", "reload").Run(); err == nil {
		return nil
	}
	return sigusr1(pidFile)
}

func sigusr1(pidFile string) error {
	raw, err := os.ReadFile(pidFile)
	if err != nil {
		return err
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(raw)))
	if err != nil {
		return err
	}
	if err := syscall.Kill(pid, syscall.SIGUSR1); err != nil {
		logger.Warn("dkim milter SIGUSR1 failed", "pid", pid, "error", err.Error())
		return err
	}
	return nil
}
