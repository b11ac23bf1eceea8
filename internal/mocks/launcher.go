package mocks

import (
	"context"
	"sync"
)

// Launcher implements exec.ProcessLauncher by recording commands.
type Launcher struct {
	mu       sync.Mutex
	commands []string

	// ExitCode and Err are returned from every Launch.
	ExitCode int
	Err      error
}

// NewLauncher creates a launcher that reports success.
func NewLauncher() *Launcher {
	return &Launcher{}
}

// Launch records command.
func (l *Launcher) Launch(_ context.Context, command string) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.commands = append(l.commands, command)
	return l.ExitCode, l.Err
}

// Commands returns the launched command lines in order.
func (l *Launcher) Commands() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.commands...)
}
