package runstore

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"syscall"
	"time"
)

const (
	stateLockDirName   = ".serve.lock"
	stateLockOwnerFile = "owner.json"
)

// StateLock marks a state directory as owned by one running server so two
// servers never share the same history database.
type StateLock struct {
	lockDir string
}

type stateLockOwner struct {
	PID       int    `json:"pid"`
	CreatedAt string `json:"created_at"`
	Hostname  string `json:"hostname,omitempty"`
	Listen    string `json:"listen,omitempty"`
}

// AcquireStateLock locks stateDir. A lock left behind by a process that no
// longer exists on this host is taken over.
func AcquireStateLock(stateDir, listen string) (StateLock, error) {
	target := strings.TrimSpace(stateDir)
	if target == "" {
		return StateLock{}, fmt.Errorf("state directory is required")
	}
	if err := Mkdir(target); err != nil {
		return StateLock{}, err
	}

	lockDir := filepath.Join(target, stateLockDirName)
	ownerPath := filepath.Join(lockDir, stateLockOwnerFile)
	if err := os.Mkdir(lockDir, 0o755); err != nil {
		if !os.IsExist(err) {
			return StateLock{}, fmt.Errorf("acquire state lock for %s: %w", target, err)
		}
		var owner stateLockOwner
		if readErr := ReadJSON(ownerPath, &owner); readErr == nil && owner.PID > 0 {
			if owner.Hostname != hostnameOrUnknown() || processAlive(owner.PID) {
				return StateLock{}, fmt.Errorf(
					"state directory is locked: %s (pid=%d created_at=%s host=%s listen=%s)",
					target, owner.PID, owner.CreatedAt, owner.Hostname, owner.Listen,
				)
			}
		} else if readErr != nil && !errors.Is(readErr, os.ErrNotExist) {
			return StateLock{}, fmt.Errorf("state directory is locked: %s", target)
		}
		// Stale lock: its owner is gone.
	}

	owner := stateLockOwner{
		PID:       os.Getpid(),
		CreatedAt: time.Now().UTC().Format(time.RFC3339),
		Hostname:  hostnameOrUnknown(),
		Listen:    listen,
	}
	if err := WriteJSON(ownerPath, owner); err != nil {
		_ = os.RemoveAll(lockDir)
		return StateLock{}, fmt.Errorf("write state lock owner for %s: %w", target, err)
	}
	return StateLock{lockDir: lockDir}, nil
}

func (l StateLock) Release() error {
	if strings.TrimSpace(l.lockDir) == "" {
		return nil
	}
	_ = os.Remove(filepath.Join(l.lockDir, stateLockOwnerFile))
	if err := os.Remove(l.lockDir); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("release state lock %s: %w", l.lockDir, err)
	}
	return nil
}

func processAlive(pid int) bool {
	proc, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	err = proc.Signal(syscall.Signal(0))
	return err == nil || errors.Is(err, syscall.EPERM)
}

func hostnameOrUnknown() string {
	host, err := os.Hostname()
	if err != nil {
		return "unknown"
	}
	host = strings.TrimSpace(host)
	if host == "" {
		return "unknown"
	}
	return host
}
