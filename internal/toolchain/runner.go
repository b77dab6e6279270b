// Package toolchain drives cargo and the LLVM tools that turn a crate into a
// call graph and an exported symbol list.
package toolchain

import (
	"bytes"
	"context"
	"os"
	"os/exec"
	"strings"
	"sync"
)

// Command is one subprocess invocation.
type Command struct {
	Name string
	Args []string
	// Env is appended to the current environment.
	Env []string
	Dir string
}

// String renders the command the way a shell user would type it.
func (c Command) String() string {
	parts := make([]string, 0, len(c.Env)+len(c.Args)+1)
	parts = append(parts, c.Env...)
	parts = append(parts, c.Name)
	parts = append(parts, c.Args...)
	return strings.Join(parts, " ")
}

// Runner abstracts command execution for testability.
type Runner interface {
	// LookPath checks if a binary exists in PATH.
	LookPath(name string) (string, error)

	// Run executes a command and returns what it wrote to stdout and stderr.
	Run(ctx context.Context, cmd Command) (stdout, stderr []byte, err error)
}

// ExecRunner implements Runner using os/exec.
type ExecRunner struct{}

// NewExecRunner creates a runner backed by real processes.
func NewExecRunner() *ExecRunner {
	return &ExecRunner{}
}

// LookPath checks if a binary exists in PATH.
func (r *ExecRunner) LookPath(name string) (string, error) {
	return exec.LookPath(name)
}

// Run executes a command and returns its output. Cancelling ctx kills the
// process.
func (r *ExecRunner) Run(ctx context.Context, c Command) ([]byte, []byte, error) {
	cmd := exec.CommandContext(ctx, c.Name, c.Args...)
	cmd.Dir = c.Dir
	if len(c.Env) > 0 {
		cmd.Env = append(os.Environ(), c.Env...)
	}
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	return stdout.Bytes(), stderr.Bytes(), err
}

// MockRunner implements Runner for testing. Results are keyed by the command
// name, optionally followed by its arguments; the longer key wins.
type MockRunner struct {
	mu       sync.Mutex
	lookPath map[string]string
	commands map[string]mockResult
	hooks    map[string]func(Command)
	calls    []Command
}

type mockResult struct {
	stdout string
	stderr string
	err    error
}

// NewMockRunner creates a new mock runner.
func NewMockRunner() *MockRunner {
	return &MockRunner{
		lookPath: make(map[string]string),
		commands: make(map[string]mockResult),
		hooks:    make(map[string]func(Command)),
	}
}

// SetLookPath configures the mock to return a path for the given name.
func (m *MockRunner) SetLookPath(name, path string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lookPath[name] = path
}

// SetCommand configures the mock result for a command.
func (m *MockRunner) SetCommand(key string, stdout, stderr string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.commands[key] = mockResult{stdout: stdout, stderr: stderr, err: err}
}

// OnRun registers a side effect for a command name, e.g. writing the file a
// real tool would have produced.
func (m *MockRunner) OnRun(name string, fn func(Command)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.hooks[name] = fn
}

// Calls returns the commands run so far.
func (m *MockRunner) Calls() []Command {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Command(nil), m.calls...)
}

// LookPath implements Runner.
func (m *MockRunner) LookPath(name string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if path, ok := m.lookPath[name]; ok {
		return path, nil
	}
	return "", exec.ErrNotFound
}

// Run implements Runner. Commands with no configured result succeed with
// empty output.
func (m *MockRunner) Run(ctx context.Context, c Command) ([]byte, []byte, error) {
	m.mu.Lock()
	m.calls = append(m.calls, c)
	hook := m.hooks[c.Name]
	result, ok := m.commands[c.Name+" "+strings.Join(c.Args, " ")]
	if !ok {
		result = m.commands[c.Name]
	}
	m.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}
	if hook != nil {
		hook(c)
	}
	return []byte(result.stdout), []byte(result.stderr), result.err
}
