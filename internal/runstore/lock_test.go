package runstore

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestAcquireStateLock_BlocksConcurrentAcquire(t *testing.T) {
	stateDir := t.TempDir()

	lock, err := AcquireStateLock(stateDir, "127.0.0.1:8080")
	if err != nil {
		t.Fatalf("acquire first lock: %v", err)
	}
	defer func() {
		_ = lock.Release()
	}()

	if _, err := AcquireStateLock(stateDir, "127.0.0.1:8081"); err == nil {
		t.Fatalf("expected second acquire to fail")
	}

	if err := lock.Release(); err != nil {
		t.Fatalf("release lock: %v", err)
	}

	lock2, err := AcquireStateLock(stateDir, "")
	if err != nil {
		t.Fatalf("acquire after release: %v", err)
	}
	if err := lock2.Release(); err != nil {
		t.Fatalf("release second lock: %v", err)
	}
}

func TestAcquireStateLock_TakesOverStaleLock(t *testing.T) {
	stateDir := t.TempDir()
	lockDir := filepath.Join(stateDir, stateLockDirName)
	if err := os.Mkdir(lockDir, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	// A pid far above any default pid_max.
	stale := stateLockOwner{PID: 1 << 30, CreatedAt: "2020-01-01T00:00:00Z", Hostname: hostnameOrUnknown()}
	if err := WriteJSON(filepath.Join(lockDir, stateLockOwnerFile), stale); err != nil {
		t.Fatalf("write owner: %v", err)
	}

	lock, err := AcquireStateLock(stateDir, "")
	if err != nil {
		t.Fatalf("expected stale lock to be taken over: %v", err)
	}
	var owner stateLockOwner
	if err := ReadJSON(filepath.Join(lockDir, stateLockOwnerFile), &owner); err != nil {
		t.Fatalf("read owner: %v", err)
	}
	if owner.PID != os.Getpid() {
		t.Fatalf("owner pid = %d, want %d", owner.PID, os.Getpid())
	}
	_ = lock.Release()
}

func TestWriteJSONIsReadable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "value.json")
	if err := WriteJSON(path, map[string]int{"a": 1}); err != nil {
		t.Fatalf("write: %v", err)
	}
	var got map[string]int
	if err := ReadJSON(path, &got); err != nil {
		t.Fatalf("read: %v", err)
	}
	if got["a"] != 1 {
		t.Fatalf("unexpected content: %v", got)
	}
	if err := ReadJSON(filepath.Join(t.TempDir(), "missing.json"), &got); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("expected not-exist error, got %v", err)
	}
}
