package system

import (
	"context"
	"errors"
	"slices"
	"sync"
)

// ErrInjected is the cause of failures programmed into a [Recorder].
var ErrInjected = errors.New("injected failure")

// Recorder is a Runner that records command lines instead of running them.
type Recorder struct {
	// FailOn makes the n-th command (1-based) fail. Zero never fails.
	FailOn int

	// Output maps a command name to the standard output it returns.
	Output map[string][]byte

	mu       sync.Mutex
	commands []string
	argv     [][]string
}

// Run records the command and returns the configured output.
func (r *Recorder) Run(_ context.Context, name string, args ...string) ([]byte, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	argv := append([]string{name}, args...)
	line := CommandLine(argv)
	r.commands = append(r.commands, line)
	r.argv = append(r.argv, argv)
	if r.FailOn > 0 && len(r.commands) == r.FailOn {
		return nil, &CommandError{Command: line, ExitCode: 1, Err: ErrInjected}
	}
	return r.Output[name], nil
}

// Commands returns the recorded command lines in order.
func (r *Recorder) Commands() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.commands)
}

// Argv returns the recorded commands as unquoted argument vectors.
func (r *Recorder) Argv() [][]string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([][]string, len(r.argv))
	for i, a := range r.argv {
		out[i] = slices.Clone(a)
	}
	return out
}

// Reset forgets all recorded commands.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.commands = nil
	r.argv = nil
}
