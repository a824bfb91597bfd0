// Package commit executes a scheduled action order against the real system.
//
// The driver is strictly sequential and fail-stop: actions run one at a time
// in schedule order, cancellation is only observed between actions, and the
// first failing action ends the run. Nothing is retried or rolled back. The
// returned [*Failure] says how many actions were committed so the caller can
// re-probe and plan again.
package commit

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/matzehuels/storagegraph/pkg/action"
	"github.com/matzehuels/storagegraph/pkg/actiongraph"
	"github.com/matzehuels/storagegraph/pkg/errors"
	"github.com/matzehuels/storagegraph/pkg/observability"
)

// Options configures one commit run.
type Options struct {
	// DryRun only renders descriptions; nothing is executed and no action
	// changes state.
	DryRun bool

	// Force skips soft pre-checks such as missing tools.
	Force bool

	// TargetSide overrides the graph side every action is resolved against.
	TargetSide action.Side

	// RootPrefix is prepended to configuration file and mount paths.
	RootPrefix string
}

// PreCheck inspects the union of feature bits of a plan before anything is
// executed. It is skipped with Options.Force.
type PreCheck func(features action.Features) error

// Progress is called after every committed action.
type Progress func(done, total int, a *action.Action)

// Result summarizes a commit run.
type Result struct {
	RunID     uuid.UUID
	Total     int
	Committed int
	DryRun    bool

	// Descriptions holds one line per action: the preview for dry runs, the
	// past-tense text of every committed action otherwise.
	Descriptions []string
	Duration     time.Duration
}

// Failure reports the action that failed and how many actions were
// committed before it.
type Failure struct {
	Action    *action.Action
	Err       error
	Committed int
}

// Code implements errors.Coder.
func (f *Failure) Code() errors.Code { return errors.ErrCodeCommitFailure }

func (f *Failure) Error() string {
	return fmt.Sprintf("%s: action %s failed after %d committed: %v",
		errors.ErrCodeCommitFailure, f.Action, f.Committed, f.Err)
}

// Unwrap returns the underlying error.
func (f *Failure) Unwrap() error { return f.Err }

// Driver commits scheduled actions.
type Driver struct {
	Logger   *log.Logger
	PreCheck PreCheck
	Progress Progress
}

// NewDriver creates a driver that logs to logger.
func NewDriver(logger *log.Logger) *Driver {
	return &Driver{Logger: logger}
}

func (d *Driver) logger() *log.Logger {
	if d.Logger == nil {
		return log.New(io.Discard)
	}
	return d.Logger
}

// Commit runs order, which must come from [actiongraph.Schedule] on g.
//
// env provides the graphs, the command runner and the file editor; opts
// overrides its root prefix, force flag and target side for this run. On the
// first failing action Commit marks it Failed, leaves every later action
// Scheduled and returns a [*Failure]. If ctx is cancelled between actions
// Commit returns an ABORTED error. In both cases the returned Result counts
// the committed actions.
func (d *Driver) Commit(ctx context.Context, g *actiongraph.Graph, order []action.ID, env *action.Env, opts Options) (*Result, error) {
	logger := d.logger()
	start := time.Now()

	runEnv := action.Env{}
	if env != nil {
		runEnv = *env
	}
	if runEnv.Logger == nil {
		runEnv.Logger = logger
	}
	if opts.RootPrefix != "" {
		runEnv.RootPrefix = opts.RootPrefix
	}
	runEnv.Force = runEnv.Force || opts.Force
	if opts.TargetSide != action.SideDefault {
		runEnv.TargetSide = opts.TargetSide
	}
	if runEnv.LHS == nil && runEnv.RHS == nil && g.Diff() != nil {
		runEnv.LHS, runEnv.RHS = g.Diff().LHS, g.Diff().RHS
	}

	actions, err := resolve(g, order)
	if err != nil {
		return nil, err
	}

	res := &Result{RunID: uuid.New(), Total: len(actions), DryRun: opts.DryRun}

	if !runEnv.Force && d.PreCheck != nil {
		if err := d.PreCheck(action.Union(actions)); err != nil {
			return res, err
		}
	}

	if opts.DryRun {
		for _, a := range actions {
			res.Descriptions = append(res.Descriptions, a.Describe(&runEnv, action.TensePresentProgressive))
		}
		res.Duration = time.Since(start)
		logger.Info("dry run", "actions", len(actions), "run", res.RunID)
		return res, nil
	}

	hooks := observability.Commit()
	hooks.OnCommitStart(ctx, res.RunID.String(), len(actions), false)
	logger.Info("committing", "actions", len(actions), "run", res.RunID)

	err = d.run(ctx, actions, &runEnv, res)
	res.Duration = time.Since(start)
	hooks.OnCommitComplete(ctx, res.RunID.String(), res.Committed, res.Duration, err)
	if err != nil {
		logger.Error("commit stopped", "committed", res.Committed, "total", res.Total, "err", err)
		return res, err
	}
	logger.Info("commit finished", "committed", res.Committed, "duration", res.Duration)
	return res, nil
}

func (d *Driver) run(ctx context.Context, actions []*action.Action, env *action.Env, res *Result) error {
	logger := env.Log()
	hooks := observability.Commit()

	for _, a := range actions {
		if err := ctx.Err(); err != nil {
			return errors.Wrap(errors.ErrCodeAborted, err, "commit aborted after %d of %d actions", res.Committed, res.Total)
		}

		logger.Info(a.Describe(env, action.TensePresentProgressive))
		hooks.OnActionStart(ctx, string(a.Kind), uint64(a.SID))
		t := time.Now()
		err := a.Commit(ctx, env)
		hooks.OnActionComplete(ctx, string(a.Kind), uint64(a.SID), time.Since(t), err)

		if err != nil {
			if ferr := a.Fail(err); ferr != nil {
				return ferr
			}
			return &Failure{Action: a, Err: err, Committed: res.Committed}
		}
		if err := a.Transition(action.Committed); err != nil {
			return err
		}
		res.Committed++
		res.Descriptions = append(res.Descriptions, a.Describe(env, action.TensePast))
		logger.Debug("committed", "action", a, "duration", time.Since(t))
		if d.Progress != nil {
			d.Progress(res.Committed, res.Total, a)
		}
	}
	return nil
}

// resolve maps order to actions and checks that every action is scheduled
// exactly once and not yet committed.
func resolve(g *actiongraph.Graph, order []action.ID) ([]*action.Action, error) {
	if !g.Frozen() {
		return nil, errors.New(errors.ErrCodeInternal, "action graph has not been scheduled")
	}
	if len(order) != g.Len() {
		return nil, errors.New(errors.ErrCodeInternal, "order has %d of %d actions", len(order), g.Len())
	}
	seen := make(map[action.ID]bool, len(order))
	out := make([]*action.Action, 0, len(order))
	for _, id := range order {
		a := g.Action(id)
		if a == nil {
			return nil, errors.NotFound("action %d not in graph", id)
		}
		if seen[id] {
			return nil, errors.New(errors.ErrCodeInternal, "action %d listed twice", id)
		}
		seen[id] = true
		if a.State() != action.Scheduled {
			return nil, errors.New(errors.ErrCodeInternal, "action %s is %s, want scheduled", a, a.State())
		}
		out = append(out, a)
	}
	return out, nil
}
