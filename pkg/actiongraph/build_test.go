package actiongraph

import (
	"context"
	stderrors "errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/matzehuels/storagegraph/pkg/action"
	"github.com/matzehuels/storagegraph/pkg/devicegraph"
	"github.com/matzehuels/storagegraph/pkg/diff"
	"github.com/matzehuels/storagegraph/pkg/errors"
)

func plan(t *testing.T, lhs, rhs *devicegraph.Graph) (*Graph, []action.ID) {
	t.Helper()
	g, err := Build(context.Background(), diff.Compare(lhs, rhs))
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	order, err := Schedule(g)
	if err != nil {
		t.Fatalf("Schedule() error = %v", err)
	}
	assertTopological(t, g, order)
	if ok, err := RoundTrip(g, order); err != nil || !ok {
		t.Fatalf("RoundTrip() = %v, %v", ok, err)
	}
	return g, order
}

func TestBuildCreateStack(t *testing.T) {
	disk := newNode(devicegraph.KindDisk, "/dev/sda")
	part := newNode(devicegraph.KindPartition, "/dev/sda1")
	fs := newNode(devicegraph.KindFilesystem, "ext4")
	mp := newNode(devicegraph.KindMountPoint, "/")
	mp.create = mountStep()

	lhs := devicegraph.New()
	add(t, lhs, disk)
	rhs := lhs.Clone()
	add(t, rhs, part, fs, mp)
	link(t, rhs, disk, part, devicegraph.Subdevice)
	link(t, rhs, part, fs, devicegraph.FilesystemUser)
	link(t, rhs, fs, mp, devicegraph.FilesystemUser)

	g, order := plan(t, lhs, rhs)

	want := []action.Kind{action.Create, action.Create, action.Mount, action.AddToEtcFstab}
	if diff := cmp.Diff(want, kinds(g, order)); diff != "" {
		t.Errorf("order mismatch (-want +got):\n%s", diff)
	}
	wantEdges := []Edge{{0, 1}, {1, 2}, {2, 3}}
	if diff := cmp.Diff(wantEdges, g.Edges()); diff != "" {
		t.Errorf("edges mismatch (-want +got):\n%s", diff)
	}
	if id, ok := g.Provider(action.AnchorRootMounted); !ok || g.Action(id).Kind != action.Mount {
		t.Errorf("root anchor provider = %d, %v", id, ok)
	}
	for _, id := range order {
		if s := g.Action(id).State(); s != action.Scheduled {
			t.Errorf("action %d state = %s, want scheduled", id, s)
		}
	}
}

// The root filesystem lives on a new encryption layer whose crypttab entry
// itself requires the root mount. Trailing actions keep this acyclic.
func TestBuildRootOnEncryption(t *testing.T) {
	part := newNode(devicegraph.KindPartition, "/dev/sda2")
	enc := newNode(devicegraph.KindEncryption, "cr_root")
	enc.create = cryptStep()
	fs := newNode(devicegraph.KindFilesystem, "ext4")
	mp := newNode(devicegraph.KindMountPoint, "/")
	mp.create = mountStep()

	lhs := devicegraph.New()
	add(t, lhs, part)
	rhs := lhs.Clone()
	add(t, rhs, enc, fs, mp)
	link(t, rhs, part, enc, devicegraph.User)
	link(t, rhs, enc, fs, devicegraph.FilesystemUser)
	link(t, rhs, fs, mp, devicegraph.FilesystemUser)

	g, order := plan(t, lhs, rhs)

	want := []action.Kind{
		action.Create, action.Activate, // encryption
		action.Create,                  // filesystem
		action.Mount,                   // provides root-mounted
		action.AddToEtcCrypttab,        // requires root-mounted
		action.AddToEtcFstab,
	}
	if diff := cmp.Diff(want, kinds(g, order)); diff != "" {
		t.Errorf("order mismatch (-want +got):\n%s", diff)
	}
	crypttab, _ := g.Find(enc.SID(), action.AddToEtcCrypttab)
	mount, _ := g.Find(mp.SID(), action.Mount)
	if !g.HasEdge(mount.ID(), crypttab.ID()) {
		t.Error("crypttab entry does not depend on the root mount anchor")
	}
}

func TestBuildDeleteStack(t *testing.T) {
	disk := newNode(devicegraph.KindDisk, "/dev/sda")
	part := newNode(devicegraph.KindPartition, "/dev/sda1")
	fs := newNode(devicegraph.KindFilesystem, "ext4")
	mp := newNode(devicegraph.KindMountPoint, "/home")
	mp.remove = []step{{kind: action.Umount}, {kind: action.RemoveFromEtcFstab}}

	lhs := devicegraph.New()
	add(t, lhs, disk, part, fs, mp)
	link(t, lhs, disk, part, devicegraph.Subdevice)
	link(t, lhs, part, fs, devicegraph.FilesystemUser)
	link(t, lhs, fs, mp, devicegraph.FilesystemUser)
	rhs := devicegraph.New()
	add(t, rhs, disk)

	g, order := plan(t, lhs, rhs)

	want := []action.Kind{action.Umount, action.RemoveFromEtcFstab, action.Delete, action.Delete}
	if diff := cmp.Diff(want, kinds(g, order)); diff != "" {
		t.Errorf("order mismatch (-want +got):\n%s", diff)
	}
	if got := g.Action(order[2]).SID; got != fs.SID() {
		t.Errorf("third action deletes %d, want filesystem %d", got, fs.SID())
	}
	if got := g.Action(order[3]).SID; got != part.SID() {
		t.Errorf("last action deletes %d, want partition %d", got, part.SID())
	}
}

func TestBuildModifyEmitsOnlyChangedAttributes(t *testing.T) {
	fs := newNode(devicegraph.KindFilesystem, "ext4")
	other := newNode(devicegraph.KindFilesystem, "xfs")

	lhs := devicegraph.New()
	add(t, lhs, fs, other)
	rhs := lhs.Clone()
	if err := rhs.Update(fs.SID(), func(d devicegraph.Device) error {
		d.(*node).label = "data"
		return nil
	}); err != nil {
		t.Fatal(err)
	}

	g, order := plan(t, lhs, rhs)
	if diff := cmp.Diff([]action.Kind{action.SetLabel}, kinds(g, order)); diff != "" {
		t.Errorf("order mismatch (-want +got):\n%s", diff)
	}
	if a := g.Action(order[0]); a.SID != fs.SID() || a.Position().Unit != action.UnitModify {
		t.Errorf("unexpected action %s", a)
	}
}

func TestBuildHolderUnits(t *testing.T) {
	parent := newNode(devicegraph.KindBtrfsQgroup, "1/0")
	child := newNode(devicegraph.KindBtrfsQgroup, "0/257")
	child.assign = true

	empty := devicegraph.New()
	full := devicegraph.New()
	add(t, full, parent, child)
	link(t, full, parent, child, devicegraph.Qgroup)

	t.Run("create", func(t *testing.T) {
		g, order := plan(t, empty, full)
		want := []action.Kind{action.Create, action.Create, action.AssignQgroup}
		if diff := cmp.Diff(want, kinds(g, order)); diff != "" {
			t.Errorf("order mismatch (-want +got):\n%s", diff)
		}
		if !g.HasEdge(0, 2) || !g.HasEdge(1, 2) {
			t.Errorf("holder action must follow both endpoints, edges %v", g.Edges())
		}
	})

	t.Run("delete", func(t *testing.T) {
		g, order := plan(t, full, empty)
		want := []action.Kind{action.UnassignQgroup, action.Delete, action.Delete}
		if diff := cmp.Diff(want, kinds(g, order)); diff != "" {
			t.Errorf("order mismatch (-want +got):\n%s", diff)
		}
		if h := g.Action(order[0]).Holder; h == nil || h.Type != devicegraph.Qgroup {
			t.Errorf("holder action lost its holder: %v", h)
		}
	})
}

func TestBuildErrors(t *testing.T) {
	base := newNode(devicegraph.KindFilesystem, "ext4")

	tests := []struct {
		name  string
		setup func(t *testing.T) (lhs, rhs *devicegraph.Graph)
		ctx   func() context.Context
		code  errors.Code
	}{
		{
			name: "kind change",
			setup: func(t *testing.T) (*devicegraph.Graph, *devicegraph.Graph) {
				lhs := devicegraph.New()
				add(t, lhs, base)
				rhs := devicegraph.New()
				swapped := base.Clone().(*node)
				swapped.kind = devicegraph.KindLvmLv
				add(t, rhs, swapped)
				return lhs, rhs
			},
			code: errors.ErrCodeStructural,
		},
		{
			name: "device without capabilities",
			setup: func(t *testing.T) (*devicegraph.Graph, *devicegraph.Graph) {
				rhs := devicegraph.New()
				add(t, rhs, inert{devicegraph.NewBase()})
				return devicegraph.New(), rhs
			},
			code: errors.ErrCodeUnsupportedOperation,
		},
		{
			name: "validator refusal",
			setup: func(t *testing.T) (*devicegraph.Graph, *devicegraph.Graph) {
				lhs := devicegraph.New()
				add(t, lhs, base)
				rhs := lhs.Clone()
				_ = rhs.Update(base.SID(), func(d devicegraph.Device) error {
					d.(*node).label, d.(*node).refuse = "x", true
					return nil
				})
				return lhs, rhs
			},
			code: errors.ErrCodeUnsupportedOperation,
		},
		{
			name: "cancelled",
			setup: func(t *testing.T) (*devicegraph.Graph, *devicegraph.Graph) {
				return devicegraph.New(), devicegraph.New()
			},
			ctx: func() context.Context {
				ctx, cancel := context.WithCancel(context.Background())
				cancel()
				return ctx
			},
			code: errors.ErrCodeAborted,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			lhs, rhs := tt.setup(t)
			ctx := context.Background()
			if tt.ctx != nil {
				ctx = tt.ctx()
			}
			g, err := Build(ctx, diff.Compare(lhs, rhs))
			if g != nil {
				t.Error("Build returned a graph together with an error")
			}
			if !errors.Is(err, tt.code) {
				t.Errorf("Build() error = %v, want %s", err, tt.code)
			}
		})
	}
}

func TestBuildExtraDependencies(t *testing.T) {
	a := newNode(devicegraph.KindBtrfsQgroup, "0/300")
	b := newNode(devicegraph.KindBtrfsQgroup, "0/301")
	// b before a, although a has the smaller insertion index.
	a.extra = func(g *Graph) []Edge {
		ca, _ := g.ChainOf(a.SID())
		cb, _ := g.ChainOf(b.SID())
		return []Edge{{From: cb.Tail(), To: ca.Head()}}
	}

	rhs := devicegraph.New()
	add(t, rhs, a, b)
	g, order := plan(t, devicegraph.New(), rhs)
	if diff := cmp.Diff([]action.ID{1, 0}, order); diff != "" {
		t.Errorf("order mismatch (-want +got):\n%s", diff)
	}
	if g.NumEdges() != 1 {
		t.Errorf("edges = %v", g.Edges())
	}
}

func TestBuildExtraDependencyCycle(t *testing.T) {
	a := newNode(devicegraph.KindBtrfsQgroup, "0/400")
	b := newNode(devicegraph.KindBtrfsQgroup, "0/401")
	cross := func(from, to *node) func(*Graph) []Edge {
		return func(g *Graph) []Edge {
			cf, _ := g.ChainOf(from.SID())
			ct, _ := g.ChainOf(to.SID())
			return []Edge{{From: cf.Tail(), To: ct.Head()}}
		}
	}
	a.extra = cross(b, a)
	b.extra = cross(a, b)

	rhs := devicegraph.New()
	add(t, rhs, a, b)
	_, err := Build(context.Background(), diff.Compare(devicegraph.New(), rhs))
	if !errors.Is(err, errors.ErrCodeCycleDetected) {
		t.Fatalf("Build() error = %v, want CYCLE_DETECTED", err)
	}
	var ce *CycleError
	if !stderrors.As(err, &ce) {
		t.Fatalf("error is %T, want *CycleError", err)
	}
	if diff := cmp.Diff([]Edge{{0, 1}, {1, 0}}, ce.Cycle); diff != "" {
		t.Errorf("cycle mismatch (-want +got):\n%s", diff)
	}
}

func TestBuildIsDeterministic(t *testing.T) {
	disk := newNode(devicegraph.KindDisk, "/dev/sda")
	lhs := devicegraph.New()
	add(t, lhs, disk)
	rhs := lhs.Clone()
	var parts []*node
	for _, name := range []string{"/dev/sda1", "/dev/sda2", "/dev/sda3"} {
		p := newNode(devicegraph.KindPartition, name)
		fs := newNode(devicegraph.KindFilesystem, "ext4")
		add(t, rhs, p, fs)
		link(t, rhs, disk, p, devicegraph.Subdevice)
		link(t, rhs, p, fs, devicegraph.FilesystemUser)
		parts = append(parts, p)
	}

	type summary struct {
		SID  devicegraph.SID
		Kind action.Kind
	}
	run := func() []summary {
		g, order := plan(t, lhs, rhs)
		out := make([]summary, len(order))
		for i, id := range order {
			out[i] = summary{g.Action(id).SID, g.Action(id).Kind}
		}
		return out
	}

	first := run()
	for i := 0; i < 10; i++ {
		if diff := cmp.Diff(first, run()); diff != "" {
			t.Fatalf("run %d differs (-first +got):\n%s", i, diff)
		}
	}
	if first[0].SID != parts[0].SID() {
		t.Errorf("first action is for %d, want the lowest sid %d", first[0].SID, parts[0].SID())
	}
}
