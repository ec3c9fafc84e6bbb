package adapters

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	domainErrors "netconfd/internal/domain/errors"
	"netconfd/internal/domain/interfaces"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func writeScript(t *testing.T, body string, perm os.FileMode) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "tool")
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+body+"\n"), perm))
	return path
}

func TestRealCommandExecutor_Run(t *testing.T) {
	tests := []struct {
		name        string
		body        string
		perm        os.FileMode
		args        []string
		timeout     time.Duration
		wantOutput  string
		wantMissing bool
		wantScript  bool
		wantTimeout bool
		wantCause   string
		wantStderr  string
	}{
		{
			name:       "captures stdout",
			body:       `echo "hello $1"`,
			perm:       0o755,
			args:       []string{"world"},
			wantOutput: "hello world\n",
		},
		{
			name:       "child sees only PATH",
			body:       `echo "${HOME:-unset}"`,
			perm:       0o755,
			wantOutput: "unset\n",
		},
		{
			name:        "not executable",
			body:        "true",
			perm:        0o644,
			wantMissing: true,
		},
		{
			name:       "non-zero exit",
			body:       "echo oops >&2; exit 3",
			perm:       0o755,
			wantScript: true,
			wantCause:  "exit code 3",
			wantStderr: "oops\n",
		},
		{
			name:       "killed by signal",
			body:       "kill -9 $$",
			perm:       0o755,
			wantScript: true,
			wantCause:  "killed by signal 9",
		},
		{
			name:        "timeout",
			body:        "exec sleep 5",
			perm:        0o755,
			timeout:     100 * time.Millisecond,
			wantScript:  true,
			wantTimeout: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeScript(t, tt.body, tt.perm)
			executor := NewRealCommandExecutor(newTestLogger())

			output, err := executor.Run(context.Background(), path, tt.args, interfaces.RunOptions{Timeout: tt.timeout})

			switch {
			case tt.wantMissing:
				require.Error(t, err)
				assert.True(t, domainErrors.IsScriptMissing(err))
			case tt.wantScript:
				require.Error(t, err)
				assert.True(t, domainErrors.IsScriptError(err))
				assert.Equal(t, tt.wantTimeout, domainErrors.IsTimeoutError(err))

				var scriptErr *domainErrors.ScriptError
				require.ErrorAs(t, err, &scriptErr)
				assert.Equal(t, path, scriptErr.Path)
				if tt.wantCause != "" {
					assert.Equal(t, tt.wantCause, scriptErr.Cause)
				}
				if tt.wantStderr != "" {
					assert.Equal(t, tt.wantStderr, scriptErr.Stderr)
				}
			default:
				require.NoError(t, err)
				assert.Equal(t, tt.wantOutput, output)
			}
		})
	}
}

func TestRealCommandExecutor_RunMissingPath(t *testing.T) {
	executor := NewRealCommandExecutor(newTestLogger())

	_, err := executor.Run(context.Background(), "/nonexistent/tool", nil, interfaces.RunOptions{})

	require.Error(t, err)
	assert.True(t, domainErrors.IsScriptMissing(err))
	assert.False(t, domainErrors.IsScriptError(err))
}

func TestRealCommandExecutor_Fork(t *testing.T) {
	marker := filepath.Join(t.TempDir(), "done")
	path := writeScript(t, `touch "$1"`, 0o755)
	executor := NewRealCommandExecutor(newTestLogger())

	require.NoError(t, executor.Fork(context.Background(), path, []string{marker}))

	assert.Eventually(t, func() bool {
		_, err := os.Stat(marker)
		return err == nil
	}, 5*time.Second, 20*time.Millisecond)
}

func TestRealCommandExecutor_ForkMissing(t *testing.T) {
	executor := NewRealCommandExecutor(newTestLogger())

	err := executor.Fork(context.Background(), "/nonexistent/tool", nil)

	assert.True(t, domainErrors.IsScriptMissing(err))
}
