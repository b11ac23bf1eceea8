package exec

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"runtime"
	"strings"
	"time"

	"assistant/pkg/logx"
)

// LocalLauncher runs commands directly on the host through its shell.
type LocalLauncher struct {
	opts   Opts
	goos   string
	logger *logx.Logger
}

// NewLocalLauncher creates a launcher. A zero timeout uses DefaultLaunchTimeout.
func NewLocalLauncher(opts Opts) *LocalLauncher {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultLaunchTimeout
	}
	return &LocalLauncher{
		opts:   opts,
		goos:   runtime.GOOS,
		logger: logx.NewLogger("launcher"),
	}
}

// Launch implements ProcessLauncher.
func (l *LocalLauncher) Launch(ctx context.Context, command string) (int, error) {
	result, err := l.Run(ctx, command)
	if err != nil {
		l.logger.Warn("launch %q failed: %v", command, err)
		return result.ExitCode, err
	}
	if result.ExitCode != 0 {
		l.logger.Warn("launch %q exited with %d: %s", command, result.ExitCode, strings.TrimSpace(result.Stderr))
	} else {
		l.logger.Debug("launched %q in %v", command, result.Duration)
	}
	return result.ExitCode, nil
}

// Run executes command and captures its output.
func (l *LocalLauncher) Run(ctx context.Context, command string) (Result, error) {
	if strings.TrimSpace(command) == "" {
		return Result{ExitCode: -1}, fmt.Errorf("command cannot be empty")
	}

	ctx, cancel := context.WithTimeout(ctx, l.opts.Timeout)
	defer cancel()

	argv := shellCommand(l.goos, command)
	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	// Children of the shell may hold the output pipes open after it is killed.
	cmd.WaitDelay = time.Second

	if l.opts.WorkDir != "" {
		if _, err := os.Stat(l.opts.WorkDir); os.IsNotExist(err) {
			return Result{ExitCode: -1}, fmt.Errorf("working directory does not exist: %s", l.opts.WorkDir)
		}
		cmd.Dir = l.opts.WorkDir
	}
	if len(l.opts.Env) > 0 {
		cmd.Env = append(os.Environ(), l.opts.Env...)
	}

	var stdoutBuf, stderrBuf strings.Builder
	cmd.Stdout = &stdoutBuf
	cmd.Stderr = &stderrBuf

	start := time.Now()
	err := cmd.Run()
	result := Result{
		Stdout:   stdoutBuf.String(),
		Stderr:   stderrBuf.String(),
		Duration: time.Since(start),
	}

	if ctx.Err() == context.DeadlineExceeded {
		result.ExitCode = -1
		return result, fmt.Errorf("command timed out after %v", l.opts.Timeout)
	}
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			// Non-zero exit codes are reported, not returned as errors.
			result.ExitCode = exitErr.ExitCode()
			return result, nil
		}
		result.ExitCode = -1
		return result, fmt.Errorf("failed to start command: %w", err)
	}
	return result, nil
}

// shellCommand wraps a command line for the platform shell.
func shellCommand(goos, command string) []string {
	if goos == "windows" {
		return []string{"cmd", "/C", command}
	}
	return []string{"sh", "-c", command}
}
