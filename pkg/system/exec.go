package system

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"time"

	"github.com/apparentlymart/go-shquot/shquot"
	"github.com/charmbracelet/log"
)

// CommandLine renders argv as a POSIX shell command line.
func CommandLine(argv []string) string {
	return shquot.POSIXShell(argv)
}

// CommandError is returned when an external tool fails.
type CommandError struct {
	Command  string // quoted command line
	ExitCode int
	Stderr   string
	Err      error
}

func (e *CommandError) Error() string {
	msg := fmt.Sprintf("command %s failed", e.Command)
	if e.ExitCode > 0 {
		msg += fmt.Sprintf(" with exit code %d", e.ExitCode)
	}
	if e.Stderr != "" {
		msg += ": " + e.Stderr
	} else if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *CommandError) Unwrap() error { return e.Err }

// ExecRunner runs external tools with os/exec.
type ExecRunner struct {
	Logger *log.Logger

	// Env is appended to the process environment of every command.
	Env []string
}

// NewExecRunner creates a runner that logs every command at debug level.
func NewExecRunner(logger *log.Logger) *ExecRunner {
	return &ExecRunner{Logger: logger, Env: []string{"LC_ALL=C"}}
}

// Run executes name with args and returns its standard output.
func (r *ExecRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	logger := r.Logger
	if logger == nil {
		logger = log.New(io.Discard)
	}

	cmd := exec.CommandContext(ctx, name, args...)
	if len(r.Env) > 0 {
		cmd.Env = append(cmd.Environ(), r.Env...)
	}
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	line := CommandLine(cmd.Args)
	start := time.Now()
	err := cmd.Run()
	logger.Debug("exec", "cmd", line, "duration", time.Since(start))

	if err != nil {
		cerr := &CommandError{Command: line, Stderr: strings.TrimSpace(stderr.String()), Err: err}
		if cmd.ProcessState != nil {
			cerr.ExitCode = cmd.ProcessState.ExitCode()
		}
		return stdout.Bytes(), cerr
	}
	return stdout.Bytes(), nil
}
