package analyzer

import (
	"bytes"
	"context"
	"os/exec"
	"strings"
	"sync"
)

// ExecRunner abstracts command execution for testability.
type ExecRunner interface {
	// LookPath checks if a binary exists in PATH.
	LookPath(name string) (string, error)

	// Run executes a command in dir and returns its raw stdout and trimmed stderr.
	Run(ctx context.Context, dir, name string, args ...string) (stdout []byte, stderr string, err error)
}

// RealRunner implements ExecRunner using os/exec.
type RealRunner struct{}

// LookPath checks if a binary exists in PATH.
func (RealRunner) LookPath(name string) (string, error) {
	return exec.LookPath(name)
}

// Run executes a command and returns its output.
func (RealRunner) Run(ctx context.Context, dir, name string, args ...string) ([]byte, string, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	return stdout.Bytes(), strings.TrimSpace(stderr.String()), err
}

// MockFunc produces the result of a mocked command.
type MockFunc func(dir string, args []string) (stdout []byte, stderr string, err error)

// MockRunner implements ExecRunner for testing. Commands are matched by prefix against
// "name arg1 arg2 ..."; the most recently registered matching handler wins.
type MockRunner struct {
	mu       sync.Mutex
	lookPath map[string]string
	handlers []mockHandler
	calls    []string
}

type mockHandler struct {
	prefix string
	fn     MockFunc
}

// NewMockRunner creates a new mock runner.
func NewMockRunner() *MockRunner {
	return &MockRunner{lookPath: make(map[string]string)}
}

// SetLookPath configures the mock to return a path for the given name.
func (m *MockRunner) SetLookPath(name, path string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lookPath[name] = path
}

// Handle registers fn for commands starting with prefix.
func (m *MockRunner) Handle(prefix string, fn MockFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers = append(m.handlers, mockHandler{prefix: prefix, fn: fn})
}

// SetCommand configures a fixed result for commands starting with prefix.
func (m *MockRunner) SetCommand(prefix string, stdout, stderr string, err error) {
	m.Handle(prefix, func(string, []string) ([]byte, string, error) {
		return []byte(stdout), stderr, err
	})
}

// Calls returns every command line run so far.
func (m *MockRunner) Calls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.calls...)
}

// LookPath implements ExecRunner.
func (m *MockRunner) LookPath(name string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if path, ok := m.lookPath[name]; ok {
		return path, nil
	}
	return "", exec.ErrNotFound
}

// Run implements ExecRunner.
func (m *MockRunner) Run(ctx context.Context, dir, name string, args ...string) ([]byte, string, error) {
	line := strings.TrimSpace(name + " " + strings.Join(args, " "))

	m.mu.Lock()
	m.calls = append(m.calls, line)
	var fn MockFunc
	for i := len(m.handlers) - 1; i >= 0; i-- {
		if strings.HasPrefix(line, m.handlers[i].prefix) {
			fn = m.handlers[i].fn
			break
		}
	}
	m.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, "", err
	}
	if fn == nil {
		return nil, "", exec.ErrNotFound
	}
	return fn(dir, args)
}
