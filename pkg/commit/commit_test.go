package commit

import (
	"context"
	stderrors "errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/matzehuels/storagegraph/pkg/action"
	"github.com/matzehuels/storagegraph/pkg/actiongraph"
	"github.com/matzehuels/storagegraph/pkg/devicegraph"
	"github.com/matzehuels/storagegraph/pkg/diff"
	"github.com/matzehuels/storagegraph/pkg/errors"
	"github.com/matzehuels/storagegraph/pkg/observability"
)

// scriptOp counts commits and fails or cancels on a given call.
type scriptOp struct {
	calls    int
	failOn   int
	cancelOn int
	cancel   context.CancelFunc
	envs     []action.Env
}

var errBoom = stderrors.New("mkfs exited with status 1")

func (o *scriptOp) Commit(_ context.Context, env *action.Env, _ *action.Action) error {
	o.calls++
	o.envs = append(o.envs, *env)
	if o.calls == o.cancelOn && o.cancel != nil {
		o.cancel()
	}
	if o.calls == o.failOn {
		return errBoom
	}
	return nil
}

func (o *scriptOp) Text(_ *action.Env, a *action.Action, t action.Tense) string {
	return fmt.Sprintf("%s volume %d", action.VerbCreate.In(t), a.SID)
}

type volume struct {
	devicegraph.Base
	op       action.Op
	features action.Features
}

func (v *volume) Kind() devicegraph.Kind          { return devicegraph.KindLvmLv }
func (v *volume) Name() string                    { return fmt.Sprintf("lv%d", v.SID()) }
func (v *volume) Clone() devicegraph.Device       { c := *v; return &c }
func (v *volume) Equal(o devicegraph.Device) bool { return o.SID() == v.SID() }

func (v *volume) CreateActions(*devicegraph.Graph) []*action.Action {
	return []*action.Action{action.New(action.Create, v.SID(), action.RHS, v.op).WithFeatures(v.features)}
}
func (v *volume) DeleteActions(*devicegraph.Graph) []*action.Action { return nil }
func (v *volume) ModifyActions(*devicegraph.Graph, devicegraph.Device, *devicegraph.Graph) []*action.Action {
	return nil
}

// plan schedules n independent volume creates sharing op.
func plan(t *testing.T, n int, op action.Op) (*actiongraph.Graph, []action.ID) {
	t.Helper()
	rhs := devicegraph.New()
	for i := 0; i < n; i++ {
		if err := rhs.AddDevice(&volume{Base: devicegraph.NewBase(), op: op, features: action.FeatureLvm}); err != nil {
			t.Fatal(err)
		}
	}
	g, err := actiongraph.Build(context.Background(), diff.Compare(devicegraph.New(), rhs))
	if err != nil {
		t.Fatal(err)
	}
	order, err := actiongraph.Schedule(g)
	if err != nil {
		t.Fatal(err)
	}
	return g, order
}

func states(g *actiongraph.Graph, order []action.ID) []action.State {
	out := make([]action.State, len(order))
	for i, id := range order {
		out[i] = g.Action(id).State()
	}
	return out
}

// The third of five actions fails.
func TestCommitFailStop(t *testing.T) {
	op := &scriptOp{failOn: 3}
	g, order := plan(t, 5, op)

	res, err := NewDriver(nil).Commit(context.Background(), g, order, nil, Options{})
	if !errors.Is(err, errors.ErrCodeCommitFailure) {
		t.Fatalf("Commit() error = %v, want COMMIT_FAILURE", err)
	}

	var f *Failure
	if !stderrors.As(err, &f) {
		t.Fatalf("error is %T, want *Failure", err)
	}
	if f.Committed != 2 || res.Committed != 2 {
		t.Errorf("committed = %d / %d, want 2", f.Committed, res.Committed)
	}
	if f.Action.ID() != order[2] {
		t.Errorf("failed action = %s, want #%d", f.Action, order[2])
	}
	if !stderrors.Is(err, errBoom) {
		t.Error("failure does not wrap the underlying error")
	}
	if op.calls != 3 {
		t.Errorf("op ran %d times, want 3", op.calls)
	}

	want := []action.State{action.Committed, action.Committed, action.Failed, action.Scheduled, action.Scheduled}
	if diff := cmp.Diff(want, states(g, order)); diff != "" {
		t.Errorf("states mismatch (-want +got):\n%s", diff)
	}
	if got := g.Action(order[2]).Err(); got != errBoom {
		t.Errorf("failed action recorded %v", got)
	}
	if len(res.Descriptions) != 2 || res.Descriptions[0] != fmt.Sprintf("Created volume %d", g.Action(order[0]).SID) {
		t.Errorf("descriptions = %q", res.Descriptions)
	}
}

func TestCommitAll(t *testing.T) {
	op := &scriptOp{}
	g, order := plan(t, 4, op)

	var progress []int
	d := NewDriver(nil)
	d.Progress = func(done, total int, _ *action.Action) {
		if total != 4 {
			t.Errorf("total = %d", total)
		}
		progress = append(progress, done)
	}

	res, err := d.Commit(context.Background(), g, order, nil, Options{})
	if err != nil {
		t.Fatal(err)
	}
	if res.Committed != 4 || res.Total != 4 || res.DryRun {
		t.Errorf("result = %+v", res)
	}
	if diff := cmp.Diff([]int{1, 2, 3, 4}, progress); diff != "" {
		t.Errorf("progress mismatch (-want +got):\n%s", diff)
	}
	for _, s := range states(g, order) {
		if s != action.Committed {
			t.Errorf("state = %s", s)
		}
	}

	// A committed plan cannot be committed again.
	if _, err := d.Commit(context.Background(), g, order, nil, Options{}); !errors.Is(err, errors.ErrCodeInternal) {
		t.Errorf("second Commit() error = %v, want INTERNAL", err)
	}
}

func TestCommitDryRun(t *testing.T) {
	op := &scriptOp{}
	g, order := plan(t, 3, op)

	res, err := NewDriver(nil).Commit(context.Background(), g, order, nil, Options{DryRun: true})
	if err != nil {
		t.Fatal(err)
	}
	if op.calls != 0 {
		t.Errorf("dry run executed %d actions", op.calls)
	}
	if res.Committed != 0 || !res.DryRun || len(res.Descriptions) != 3 {
		t.Errorf("result = %+v", res)
	}
	if want := fmt.Sprintf("Creating volume %d", g.Action(order[0]).SID); res.Descriptions[0] != want {
		t.Errorf("preview = %q, want %q", res.Descriptions[0], want)
	}
	for _, s := range states(g, order) {
		if s != action.Scheduled {
			t.Errorf("dry run changed state to %s", s)
		}
	}
}

func TestCommitCancelBetweenActions(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	op := &scriptOp{cancelOn: 2, cancel: cancel}
	g, order := plan(t, 4, op)

	res, err := NewDriver(nil).Commit(ctx, g, order, nil, Options{})
	if !errors.Is(err, errors.ErrCodeAborted) {
		t.Fatalf("Commit() error = %v, want ABORTED", err)
	}
	// The action running when the context was cancelled still completes.
	if res.Committed != 2 || op.calls != 2 {
		t.Errorf("committed = %d, calls = %d, want 2 and 2", res.Committed, op.calls)
	}
	want := []action.State{action.Committed, action.Committed, action.Scheduled, action.Scheduled}
	if diff := cmp.Diff(want, states(g, order)); diff != "" {
		t.Errorf("states mismatch (-want +got):\n%s", diff)
	}
}

func TestCommitPreCheck(t *testing.T) {
	refuse := func(f action.Features) error {
		if f.Has(action.FeatureLvm) {
			return errors.New(errors.ErrCodeUnsupportedOperation, "missing tools for %s", f)
		}
		return nil
	}

	t.Run("blocks", func(t *testing.T) {
		op := &scriptOp{}
		g, order := plan(t, 2, op)
		d := &Driver{PreCheck: refuse}
		if _, err := d.Commit(context.Background(), g, order, nil, Options{}); !errors.Is(err, errors.ErrCodeUnsupportedOperation) {
			t.Errorf("Commit() error = %v", err)
		}
		if op.calls != 0 {
			t.Error("actions ran despite a failed pre-check")
		}
	})

	t.Run("force skips", func(t *testing.T) {
		op := &scriptOp{}
		g, order := plan(t, 2, op)
		d := &Driver{PreCheck: refuse}
		if _, err := d.Commit(context.Background(), g, order, nil, Options{Force: true}); err != nil {
			t.Errorf("Commit() error = %v", err)
		}
		if op.calls != 2 {
			t.Errorf("calls = %d", op.calls)
		}
	})
}

func TestCommitOptionsOverrideEnv(t *testing.T) {
	op := &scriptOp{}
	g, order := plan(t, 1, op)
	env := &action.Env{RootPrefix: "/", TargetSide: action.LHS}

	_, err := NewDriver(nil).Commit(context.Background(), g, order, env, Options{
		RootPrefix: "/mnt",
		TargetSide: action.RHS,
		Force:      true,
	})
	if err != nil {
		t.Fatal(err)
	}
	got := op.envs[0]
	if got.RootPrefix != "/mnt" || got.TargetSide != action.RHS || !got.Force {
		t.Errorf("env = %+v", got)
	}
	if got.RHS != g.Diff().RHS || got.LHS != g.Diff().LHS {
		t.Error("diff graphs were not put into the environment")
	}
	if env.RootPrefix != "/" {
		t.Error("Commit mutated the caller's environment")
	}
}

func TestCommitRejectsBadOrder(t *testing.T) {
	op := &scriptOp{}
	rhs := devicegraph.New()
	_ = rhs.AddDevice(&volume{Base: devicegraph.NewBase(), op: op})
	g, err := actiongraph.Build(context.Background(), diff.Compare(devicegraph.New(), rhs))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := NewDriver(nil).Commit(context.Background(), g, []action.ID{0}, nil, Options{}); !errors.Is(err, errors.ErrCodeInternal) {
		t.Errorf("unscheduled graph: error = %v", err)
	}

	order, err := actiongraph.Schedule(g)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := NewDriver(nil).Commit(context.Background(), g, append(order, order...), nil, Options{}); !errors.Is(err, errors.ErrCodeInternal) {
		t.Errorf("duplicated order: error = %v", err)
	}
}

type recordingHooks struct {
	observability.NoopCommitHooks
	started, completed int
	lastErr            error
	committed          int
}

func (h *recordingHooks) OnActionStart(context.Context, string, uint64) { h.started++ }

func (h *recordingHooks) OnActionComplete(_ context.Context, _ string, _ uint64, _ time.Duration, err error) {
	h.completed++
	h.lastErr = err
}

func (h *recordingHooks) OnCommitComplete(_ context.Context, _ string, committed int, _ time.Duration, _ error) {
	h.committed = committed
}

func TestCommitHooks(t *testing.T) {
	hooks := &recordingHooks{}
	observability.SetCommitHooks(hooks)
	defer observability.Reset()

	g, order := plan(t, 3, &scriptOp{failOn: 2})
	_, _ = NewDriver(nil).Commit(context.Background(), g, order, nil, Options{})

	if hooks.started != 2 || hooks.completed != 2 || hooks.committed != 1 {
		t.Errorf("hooks = %+v", hooks)
	}
	if hooks.lastErr != errBoom {
		t.Errorf("last action error = %v", hooks.lastErr)
	}
}
