package action

import (
	"context"
	"io"
	"path/filepath"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/storagegraph/pkg/devicegraph"
	"github.com/matzehuels/storagegraph/pkg/errors"
)

// Runner executes external tools.
type Runner interface {
	// Run executes name with args and returns its standard output.
	Run(ctx context.Context, name string, args ...string) ([]byte, error)
}

// TabEditor edits whitespace-separated table files such as /etc/fstab,
// /etc/crypttab and /etc/mdadm.conf. Entries are identified by the value of
// one column.
type TabEditor interface {
	// Set inserts fields as a new line, or replaces the line whose keyColumn
	// equals fields[keyColumn].
	Set(path string, keyColumn int, fields []string) error

	// Remove deletes the line whose keyColumn equals key.
	Remove(path string, keyColumn int, key string) error
}

// Well-known configuration files, relative to the target root.
const (
	EtcFstab    = "/etc/fstab"
	EtcCrypttab = "/etc/crypttab"
	EtcMdadm    = "/etc/mdadm.conf"
)

// Env is the explicit context actions are committed and described against.
type Env struct {
	LHS *devicegraph.Graph
	RHS *devicegraph.Graph

	Runner Runner
	Files  TabEditor
	Logger *log.Logger

	// RootPrefix is prepended to paths of configuration files and mount
	// points, e.g. "/mnt" while installing.
	RootPrefix string

	// Force skips soft pre-checks.
	Force bool

	// TargetSide overrides the side every action is resolved against.
	// SideDefault keeps each action's own side.
	TargetSide Side
}

var discard = log.New(io.Discard)

// Log returns the configured logger or a logger that discards everything.
func (e *Env) Log() *log.Logger {
	if e == nil || e.Logger == nil {
		return discard
	}
	return e.Logger
}

// Graph returns the graph for side.
func (e *Env) Graph(side Side) *devicegraph.Graph {
	if side == LHS {
		return e.LHS
	}
	return e.RHS
}

// Side returns the side a is resolved against under this environment.
func (e *Env) Side(a *Action) Side {
	if e.TargetSide != SideDefault {
		return e.TargetSide
	}
	return a.Side
}

// Device resolves the device a operates on.
func (e *Env) Device(a *Action) (devicegraph.Device, error) {
	side := e.Side(a)
	g := e.Graph(side)
	if g == nil {
		return nil, errors.New(errors.ErrCodeInternal, "no %s graph in environment", side)
	}
	return g.Get(a.SID)
}

// Lookup resolves sid on the given side.
func (e *Env) Lookup(sid devicegraph.SID, side Side) (devicegraph.Device, error) {
	g := e.Graph(side)
	if g == nil {
		return nil, errors.New(errors.ErrCodeInternal, "no %s graph in environment", side)
	}
	return g.Get(sid)
}

// Path joins p below the root prefix.
func (e *Env) Path(p string) string {
	if e.RootPrefix == "" {
		return p
	}
	return filepath.Join(e.RootPrefix, p)
}

// Run executes an external tool through the configured runner.
func (e *Env) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	if e.Runner == nil {
		return nil, errors.New(errors.ErrCodeInternal, "no command runner configured")
	}
	return e.Runner.Run(ctx, name, args...)
}

// Tabs returns the configured table file editor.
func (e *Env) Tabs() (TabEditor, error) {
	if e.Files == nil {
		return nil, errors.New(errors.ErrCodeInternal, "no table file editor configured")
	}
	return e.Files, nil
}
