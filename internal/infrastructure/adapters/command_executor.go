package adapters

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	domainErrors "netconfd/internal/domain/errors"
	"netconfd/internal/domain/interfaces"
	"netconfd/internal/infrastructure/metrics"

	"github.com/sirupsen/logrus"
)

// RealCommandExecutor is a CommandExecutor implementation that executes actual system commands
type RealCommandExecutor struct {
	logger *logrus.Logger
}

// NewRealCommandExecutor creates a new RealCommandExecutor
func NewRealCommandExecutor(logger *logrus.Logger) interfaces.CommandExecutor {
	return &RealCommandExecutor{logger: logger}
}

// Run executes a command and returns its stdout. The child sees only the
// caller's PATH in its environment.
func (e *RealCommandExecutor) Run(ctx context.Context, path string, args []string, opts interfaces.RunOptions) (string, error) {
	if !isExecutable(path) {
		metrics.RecordCommand(filepath.Base(path), "missing", 0)
		return "", domainErrors.NewScriptMissingError(path)
	}

	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, path, args...)
	cmd.Env = []string{"PATH=" + os.Getenv("PATH")}
	cmd.WaitDelay = time.Second

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	e.logger.WithField("args", strings.Join(args, " ")).Debugf("exec: %s", path)

	start := time.Now()
	err := cmd.Run()
	elapsed := time.Since(start).Seconds()

	if err != nil {
		scriptErr := &domainErrors.ScriptError{
			Path:   path,
			Args:   args,
			Cause:  describeFailure(err),
			Stdout: stdout.String(),
			Stderr: stderr.String(),
			Err:    err,
		}
		result := "error"
		if ctx.Err() == context.DeadlineExceeded {
			scriptErr.TimedOut = true
			scriptErr.Cause = fmt.Sprintf("timed out after %v", opts.Timeout)
			result = "timeout"
		}
		metrics.RecordCommand(filepath.Base(path), result, elapsed)
		return "", scriptErr
	}

	metrics.RecordCommand(filepath.Base(path), "success", elapsed)
	if opts.LogOutput {
		e.logger.WithFields(logrus.Fields{
			"command": path,
			"args":    strings.Join(args, " "),
		}).Debugf("output: %s", strings.TrimSpace(stdout.String()))
	}

	return stdout.String(), nil
}

// Fork starts a command and returns without waiting for it. The child is
// reaped in the background.
func (e *RealCommandExecutor) Fork(_ context.Context, path string, args []string) error {
	if !isExecutable(path) {
		return domainErrors.NewScriptMissingError(path)
	}

	cmd := exec.Command(path, args...)
	cmd.Env = []string{"PATH=" + os.Getenv("PATH")}
	if err := cmd.Start(); err != nil {
		return &domainErrors.ScriptError{Path: path, Args: args, Cause: err.Error(), Err: err}
	}

	e.logger.WithField("pid", cmd.Process.Pid).Debugf("forked: %s %s", path, strings.Join(args, " "))
	go func() {
		if err := cmd.Wait(); err != nil {
			e.logger.WithError(err).WithField("command", path).Debug("forked command exited abnormally")
		}
	}()
	metrics.RecordCommand(filepath.Base(path), "forked", 0)
	return nil
}

func isExecutable(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return info.Mode().IsRegular() && info.Mode().Perm()&0o111 != 0
}

func describeFailure(err error) string {
	var exitErr *exec.ExitError
	if !errors.As(err, &exitErr) {
		return err.Error()
	}

	if status, ok := exitErr.Sys().(syscall.WaitStatus); ok {
		switch {
		case status.Signaled():
			return fmt.Sprintf("killed by signal %d", int(status.Signal()))
		case status.Stopped():
			return fmt.Sprintf("stopped by signal %d", int(status.StopSignal()))
		}
	}
	return fmt.Sprintf("exit code %d", exitErr.ExitCode())
}
