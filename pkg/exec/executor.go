// Package exec launches allow-listed OS commands on behalf of the dispatcher.
// Handlers depend on ProcessLauncher so tests never spawn processes.
package exec

import (
	"context"
	"time"
)

// DefaultLaunchTimeout bounds a single process launch.
const DefaultLaunchTimeout = 10 * time.Second

// ProcessLauncher runs a shell command line and reports its exit code.
type ProcessLauncher interface {
	// Launch runs command through the platform shell. A non-zero exit code is not an error;
	// err is set only when the process could not be started or timed out.
	Launch(ctx context.Context, command string) (exitCode int, err error)
}

// Opts contains options for a launch.
type Opts struct {
	// Timeout is the maximum duration of one launch.
	Timeout time.Duration

	// WorkDir is the working directory for the command.
	WorkDir string

	// Env contains extra environment variables (KEY=VALUE format).
	Env []string
}

// Result contains the outcome of a launch.
type Result struct {
	// Stdout contains the standard output.
	Stdout string

	// Stderr contains the standard error output.
	Stderr string

	// Duration is how long the command took to execute.
	Duration time.Duration

	// ExitCode is the exit code of the command.
	ExitCode int
}

// DefaultOpts returns default launch options.
func DefaultOpts() Opts {
	return Opts{Timeout: DefaultLaunchTimeout}
}
