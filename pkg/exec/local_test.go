package exec

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"
)

func skipOnWindows(t *testing.T) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("uses POSIX shell commands")
	}
}

func TestLocalLauncher_Run_Success(t *testing.T) {
	skipOnWindows(t)
	l := NewLocalLauncher(DefaultOpts())

	result, err := l.Run(context.Background(), "echo hello world")
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if result.ExitCode != 0 {
		t.Errorf("Expected exit code 0, got %d", result.ExitCode)
	}
	if strings.TrimSpace(result.Stdout) != "hello world" {
		t.Errorf("Expected stdout 'hello world', got %s", result.Stdout)
	}
	if result.Duration <= 0 {
		t.Error("Expected positive duration")
	}
}

func TestLocalLauncher_Launch_NonZeroExit(t *testing.T) {
	skipOnWindows(t)
	l := NewLocalLauncher(DefaultOpts())

	code, err := l.Launch(context.Background(), "exit 3")
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if code != 3 {
		t.Errorf("Expected exit code 3, got %d", code)
	}
}

func TestLocalLauncher_EmptyCommand(t *testing.T) {
	l := NewLocalLauncher(DefaultOpts())

	if _, err := l.Launch(context.Background(), "   "); err == nil {
		t.Error("Expected error for empty command")
	}
}

func TestLocalLauncher_Timeout(t *testing.T) {
	skipOnWindows(t)
	l := NewLocalLauncher(Opts{Timeout: 50 * time.Millisecond})

	start := time.Now()
	code, err := l.Launch(context.Background(), "sleep 5")
	if err == nil {
		t.Fatal("Expected timeout error")
	}
	if code != -1 {
		t.Errorf("Expected exit code -1 on timeout, got %d", code)
	}
	if time.Since(start) > 3*time.Second {
		t.Errorf("Expected launch to be cut off by the timeout, took %v", time.Since(start))
	}
}

func TestLocalLauncher_WorkDir(t *testing.T) {
	skipOnWindows(t)
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "marker.txt"), []byte("x"), 0o600); err != nil {
		t.Fatal(err)
	}

	l := NewLocalLauncher(Opts{WorkDir: dir})
	result, err := l.Run(context.Background(), "ls")
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if !strings.Contains(result.Stdout, "marker.txt") {
		t.Errorf("Expected ls output to contain marker.txt, got %s", result.Stdout)
	}

	missing := NewLocalLauncher(Opts{WorkDir: filepath.Join(dir, "nope")})
	if _, err := missing.Run(context.Background(), "ls"); err == nil {
		t.Error("Expected error for missing working directory")
	}
}

func TestShellCommand(t *testing.T) {
	if got := shellCommand("windows", "start notepad"); strings.Join(got, " ") != "cmd /C start notepad" {
		t.Errorf("Unexpected windows argv %v", got)
	}
	if got := shellCommand("linux", "xdg-open x"); len(got) != 3 || got[0] != "sh" || got[2] != "xdg-open x" {
		t.Errorf("Unexpected linux argv %v", got)
	}
}
