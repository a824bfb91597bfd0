package action

import (
	"context"
	"fmt"
	"testing"

	"github.com/matzehuels/storagegraph/pkg/devicegraph"
	"github.com/matzehuels/storagegraph/pkg/errors"
)

type textOp struct{ verb Verb }

func (textOp) Commit(context.Context, *Env, *Action) error { return nil }

func (o textOp) Text(_ *Env, a *Action, t Tense) string {
	return fmt.Sprintf("%s device %d", o.verb.In(t), a.SID)
}

func TestTransition(t *testing.T) {
	tests := []struct {
		name  string
		path  []State
		valid bool
	}{
		{"commit", []State{Scheduled, Committed}, true},
		{"fail", []State{Scheduled, Failed}, true},
		{"skip scheduling", []State{Committed}, false},
		{"back to pending", []State{Scheduled, Pending}, false},
		{"commit twice", []State{Scheduled, Committed, Committed}, false},
		{"fail after commit", []State{Scheduled, Committed, Failed}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := New(Create, 1, RHS, textOp{VerbCreate})
			var err error
			for _, s := range tt.path {
				if err = a.Transition(s); err != nil {
					break
				}
			}
			if (err == nil) != tt.valid {
				t.Fatalf("path %v: err = %v, want valid=%v", tt.path, err, tt.valid)
			}
			if err != nil && !errors.Is(err, errors.ErrCodeInternal) {
				t.Errorf("error code = %s, want INTERNAL", errors.GetCode(err))
			}
		})
	}
}

func TestFailRecordsError(t *testing.T) {
	a := New(Mount, 1, RHS, nil)
	cause := fmt.Errorf("boom")
	if err := a.Fail(cause); err == nil {
		t.Fatal("Fail on a pending action must be rejected")
	}
	if err := a.Transition(Scheduled); err != nil {
		t.Fatal(err)
	}
	if err := a.Fail(cause); err != nil {
		t.Fatal(err)
	}
	if a.State() != Failed || a.Err() != cause {
		t.Errorf("state = %s, err = %v", a.State(), a.Err())
	}
}

func TestPosition(t *testing.T) {
	chain := []*Action{
		New(Create, 1, RHS, nil),
		New(Activate, 1, RHS, nil),
		New(AddToEtcCrypttab, 1, RHS, nil),
	}
	for i, a := range chain {
		if err := a.Bind(ID(10+i), Position{Unit: UnitCreate, Chain: 4, Ordinal: i, Len: len(chain)}); err != nil {
			t.Fatal(err)
		}
	}

	if !chain[0].First() || chain[0].Last() {
		t.Error("head must be first and not last")
	}
	if chain[1].First() || chain[1].Last() {
		t.Error("middle must be neither first nor last")
	}
	if !chain[2].Last() {
		t.Error("tail must be last")
	}
	if err := chain[0].Bind(99, Position{Len: 1}); err == nil {
		t.Error("binding twice must fail")
	}
	if err := New(Create, 1, RHS, nil).Bind(0, Position{Ordinal: 2, Len: 2}); err == nil {
		t.Error("ordinal outside the chain must fail")
	}
}

func TestSingleActionChainIsFirstAndLast(t *testing.T) {
	a := New(Delete, 3, LHS, nil)
	if err := a.Bind(0, Position{Unit: UnitDelete, Len: 1}); err != nil {
		t.Fatal(err)
	}
	if !a.First() || !a.Last() {
		t.Error("a single-action chain is both first and last")
	}
}

func TestDescribe(t *testing.T) {
	a := New(Create, 7, RHS, textOp{VerbCreate})
	tests := []struct {
		tense Tense
		want  string
	}{
		{TenseSimplePresent, "Create device 7"},
		{TensePresentProgressive, "Creating device 7"},
		{TensePast, "Created device 7"},
	}
	for _, tt := range tests {
		if got := a.Describe(nil, tt.tense); got != tt.want {
			t.Errorf("Describe(%d) = %q, want %q", tt.tense, got, tt.want)
		}
	}
}

func TestFeatures(t *testing.T) {
	actions := []*Action{
		New(Create, 1, RHS, nil).WithFeatures(FeatureLuks),
		New(Create, 2, RHS, nil).WithFeatures(FeatureExt | FeatureMount),
	}
	f := Union(actions)
	if !f.Has(FeatureLuks | FeatureExt) {
		t.Errorf("Union = %s", f)
	}
	if f.Has(FeatureXfs) {
		t.Error("unexpected xfs bit")
	}
	if got, want := f.String(), "ext,luks,mount"; got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}
	if Features(0).String() != "none" {
		t.Error("empty feature set must print none")
	}
}

type stubDevice struct {
	devicegraph.Base
}

func (stubDevice) Kind() devicegraph.Kind            { return devicegraph.KindDisk }
func (stubDevice) Name() string                      { return "/dev/vda" }
func (d stubDevice) Clone() devicegraph.Device       { return d }
func (d stubDevice) Equal(o devicegraph.Device) bool { return o.SID() == d.SID() }

func TestEnvResolve(t *testing.T) {
	lhs, rhs := devicegraph.New(), devicegraph.New()
	d := stubDevice{devicegraph.NewBase()}
	if err := lhs.AddDevice(d); err != nil {
		t.Fatal(err)
	}

	env := &Env{LHS: lhs, RHS: rhs, RootPrefix: "/mnt"}
	a := New(Delete, d.SID(), LHS, nil)
	if got, err := env.Device(a); err != nil || got.SID() != d.SID() {
		t.Fatalf("Device() = %v, %v", got, err)
	}

	env.TargetSide = RHS
	if _, err := env.Device(a); !errors.Is(err, errors.ErrCodeNotFound) {
		t.Errorf("with TargetSide=rhs: error = %v, want NOT_FOUND", err)
	}

	if got := env.Path(EtcFstab); got != "/mnt/etc/fstab" {
		t.Errorf("Path() = %q", got)
	}
	if _, err := env.Run(context.Background(), "true"); !errors.Is(err, errors.ErrCodeInternal) {
		t.Errorf("Run without runner: error = %v", err)
	}
	if env.Log() == nil {
		t.Error("Log() must never be nil")
	}
}
