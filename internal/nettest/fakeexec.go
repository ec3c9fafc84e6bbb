// Package nettest provides recording fakes of the tool-calling capabilities
// for package tests.
package nettest

import (
	"context"
	"path/filepath"
	"strings"
	"sync"

	"netconfd/internal/domain/interfaces"
)

// ExpectedCmd is a canned response for one command line. Cmd is the tool's
// base name followed by its arguments, joined by single spaces.
type ExpectedCmd struct {
	Cmd    string
	Output string
	Err    error
	// Action runs when the command is executed, before the response is returned
	Action func()
}

// Call is one recorded invocation
type Call struct {
	Cmd     string
	Path    string
	Args    []string
	Options interfaces.RunOptions
	Forked  bool
}

// FakeExec is a CommandExecutor that records every invocation. Commands
// without a canned response succeed with empty output. Several responses for
// the same command are consumed in order; the last one is reused.
type FakeExec struct {
	mu        sync.Mutex
	responses map[string][]*ExpectedCmd
	calls     []Call
}

// NewFakeExec creates an empty FakeExec
func NewFakeExec() *FakeExec {
	return &FakeExec{responses: make(map[string][]*ExpectedCmd)}
}

var _ interfaces.CommandExecutor = (*FakeExec)(nil)

// CommandLine renders a path and its arguments the way ExpectedCmd.Cmd does
func CommandLine(path string, args []string) string {
	return strings.Join(append([]string{filepath.Base(path)}, args...), " ")
}

// AddFakeCmd registers a canned response
func (f *FakeExec) AddFakeCmd(cmd *ExpectedCmd) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.responses[cmd.Cmd] = append(f.responses[cmd.Cmd], cmd)
}

// AddFakeCmdsNoOutputNoError registers successful empty responses
func (f *FakeExec) AddFakeCmdsNoOutputNoError(cmds []string) {
	for _, cmd := range cmds {
		f.AddFakeCmd(&ExpectedCmd{Cmd: cmd})
	}
}

func (f *FakeExec) respond(call Call) (string, error) {
	f.mu.Lock()
	f.calls = append(f.calls, call)
	queue := f.responses[call.Cmd]
	var resp *ExpectedCmd
	if len(queue) > 0 {
		resp = queue[0]
		if len(queue) > 1 {
			f.responses[call.Cmd] = queue[1:]
		}
	}
	f.mu.Unlock()

	if resp == nil {
		return "", nil
	}
	if resp.Action != nil {
		resp.Action()
	}
	return resp.Output, resp.Err
}

// Run implements interfaces.CommandExecutor
func (f *FakeExec) Run(_ context.Context, path string, args []string, opts interfaces.RunOptions) (string, error) {
	return f.respond(Call{Cmd: CommandLine(path, args), Path: path, Args: args, Options: opts})
}

// Fork implements interfaces.CommandExecutor
func (f *FakeExec) Fork(_ context.Context, path string, args []string) error {
	_, err := f.respond(Call{Cmd: CommandLine(path, args), Path: path, Args: args, Forked: true})
	return err
}

// Calls returns every recorded invocation in order
func (f *FakeExec) Calls() []Call {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Call(nil), f.calls...)
}

// Executed returns the recorded command lines in order
func (f *FakeExec) Executed() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	cmds := make([]string, 0, len(f.calls))
	for _, call := range f.calls {
		cmds = append(cmds, call.Cmd)
	}
	return cmds
}

// ExecutedWithPrefix returns the recorded command lines starting with prefix
func (f *FakeExec) ExecutedWithPrefix(prefix string) []string {
	var cmds []string
	for _, cmd := range f.Executed() {
		if strings.HasPrefix(cmd, prefix) {
			cmds = append(cmds, cmd)
		}
	}
	return cmds
}

// Count returns how many times cmd was executed
func (f *FakeExec) Count(cmd string) int {
	n := 0
	for _, executed := range f.Executed() {
		if executed == cmd {
			n++
		}
	}
	return n
}

// Reset forgets the recorded invocations but keeps the canned responses
func (f *FakeExec) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = nil
}

// FakeCli is a SwitchCli that records through a FakeExec. Recorded command
// lines start with "vsctl", "ofctl" or "appctl".
type FakeCli struct {
	*FakeExec
}

// NewFakeCli creates an empty FakeCli
func NewFakeCli() *FakeCli {
	return &FakeCli{FakeExec: NewFakeExec()}
}

var _ interfaces.SwitchCli = (*FakeCli)(nil)

// Vsctl implements interfaces.SwitchCli
func (f *FakeCli) Vsctl(ctx context.Context, logOutput bool, args ...string) (string, error) {
	return f.Run(ctx, "vsctl", args, interfaces.RunOptions{LogOutput: logOutput})
}

// Ofctl implements interfaces.SwitchCli
func (f *FakeCli) Ofctl(ctx context.Context, logOutput bool, args ...string) (string, error) {
	return f.Run(ctx, "ofctl", args, interfaces.RunOptions{LogOutput: logOutput})
}

// Appctl implements interfaces.SwitchCli
func (f *FakeCli) Appctl(ctx context.Context, logOutput bool, args ...string) (string, error) {
	return f.Run(ctx, "appctl", args, interfaces.RunOptions{LogOutput: logOutput})
}
