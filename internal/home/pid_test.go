package home

import (
	"os"
	"path/filepath"
	"testing"
)

func TestPidFileRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "serve.pid")

	if err := WritePidFile(path); err != nil {
		t.Fatalf("WritePidFile: %v", err)
	}

	pid, err := ReadPidFile(path)
	if err != nil {
		t.Fatalf("ReadPidFile: %v", err)
	}
	if pid != os.Getpid() {
		t.Errorf("expected pid %d, got %d", os.Getpid(), pid)
	}

	RemovePidFile(path)
	if _, err := ReadPidFile(path); err == nil {
		t.Error("expected error reading removed pid file")
	}
}

func TestReadPidFile_Invalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.pid")
	if err := os.WriteFile(path, []byte("not-a-pid\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	if _, err := ReadPidFile(path); err == nil {
		t.Error("expected error for garbage pid file")
	}
}

func TestIsProcessAlive(t *testing.T) {
	if !IsProcessAlive(os.Getpid()) {
		t.Error("expected current process to be alive")
	}

	// PIDs above the kernel default pid_max should never exist.
	if IsProcessAlive(1 << 30) {
		t.Error("expected absurd pid to be dead")
	}
}
