package interfaces

import (
	"context"
	"os"
	"time"
)

// RunOptions controls a single tool invocation
type RunOptions struct {
	// Timeout bounds the invocation; zero means no timeout
	Timeout time.Duration
	// LogOutput logs captured stdout of a successful invocation
	LogOutput bool
}

// CommandExecutor runs external network-configuration tools
type CommandExecutor interface {
	// Run executes path with args and returns captured stdout
	Run(ctx context.Context, path string, args []string, opts RunOptions) (string, error)

	// Fork starts path with args and does not wait for it to finish
	Fork(ctx context.Context, path string, args []string) error
}

// FileSystem abstracts file system operations
type FileSystem interface {
	// ReadFile reads a whole file
	ReadFile(path string) ([]byte, error)

	// WriteFile writes data, creating parent directories
	WriteFile(path string, data []byte, perm os.FileMode) error

	// Exists reports whether a file or directory exists
	Exists(path string) bool

	// MkdirAll creates a directory tree
	MkdirAll(path string, perm os.FileMode) error

	// Remove deletes a file or an empty directory
	Remove(path string) error

	// ListFiles returns the names of regular files in a directory
	ListFiles(path string) ([]string, error)

	// ListDirs returns the names of directories in a directory
	ListDirs(path string) ([]string, error)
}

// Clock abstracts time
type Clock interface {
	// Now returns the current time
	Now() time.Time
}
