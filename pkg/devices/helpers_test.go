package devices

import (
	"context"
	"testing"

	"github.com/matzehuels/storagegraph/pkg/action"
	"github.com/matzehuels/storagegraph/pkg/actiongraph"
	"github.com/matzehuels/storagegraph/pkg/commit"
	"github.com/matzehuels/storagegraph/pkg/devicegraph"
	"github.com/matzehuels/storagegraph/pkg/diff"
	"github.com/matzehuels/storagegraph/pkg/system"
)

const gib = 1 << 30

// home is /dev/sda (gpt) -> /dev/sda1 (10 GiB) -> ext4 -> /home.
type home struct {
	g    *devicegraph.Graph
	disk *Disk
	part *Partition
	fs   *Filesystem
	mp   *MountPoint
}

func newHome(t *testing.T) home {
	t.Helper()
	h := home{
		g:    devicegraph.New(),
		disk: NewDisk("/dev/sda", 100*gib, PtGPT),
		part: NewPartition("/dev/sda1", 1, mib, 10*gib),
		fs:   NewFilesystem(FsExt4),
		mp:   NewMountPoint("/home"),
	}
	h.fs.Size = 10 * gib
	add(t, h.g, h.disk, h.part, h.fs, h.mp)
	link(t, h.g, h.disk, h.part, devicegraph.Subdevice)
	link(t, h.g, h.part, h.fs, devicegraph.FilesystemUser)
	link(t, h.g, h.fs, h.mp, devicegraph.FilesystemUser)
	return h
}

func add(t *testing.T, g *devicegraph.Graph, devs ...devicegraph.Device) {
	t.Helper()
	for _, d := range devs {
		if err := g.AddDevice(d); err != nil {
			t.Fatalf("AddDevice(%s): %v", d.Name(), err)
		}
	}
}

func link(t *testing.T, g *devicegraph.Graph, src, dst devicegraph.Device, typ devicegraph.HolderType) {
	t.Helper()
	if err := g.AddHolder(devicegraph.Holder{Source: src.SID(), Target: dst.SID(), Type: typ}); err != nil {
		t.Fatalf("AddHolder: %v", err)
	}
}

func update[D devicegraph.Device](t *testing.T, g *devicegraph.Graph, sid devicegraph.SID, fn func(D)) {
	t.Helper()
	if err := g.Update(sid, func(d devicegraph.Device) error {
		fn(d.(D))
		return nil
	}); err != nil {
		t.Fatalf("Update(%d): %v", sid, err)
	}
}

// plan builds and schedules the transition lhs -> rhs and checks that the
// order reproduces rhs.
func plan(t *testing.T, lhs, rhs *devicegraph.Graph) (*actiongraph.Graph, []action.ID) {
	t.Helper()
	g, err := actiongraph.Build(context.Background(), diff.Compare(lhs, rhs))
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	order, err := actiongraph.Schedule(g)
	if err != nil {
		t.Fatalf("Schedule: %v", err)
	}
	ok, err := actiongraph.RoundTrip(g, order)
	if err != nil {
		t.Fatalf("RoundTrip: %v", err)
	}
	if !ok {
		t.Fatal("simulated graph differs from target graph")
	}
	return g, order
}

func kinds(g *actiongraph.Graph, order []action.ID) []action.Kind {
	out := make([]action.Kind, len(order))
	for i, id := range order {
		out[i] = g.Action(id).Kind
	}
	return out
}

func describe(g *actiongraph.Graph, order []action.ID) []string {
	out := make([]string, len(order))
	for i, id := range order {
		out[i] = g.Action(id).Describe(nil, action.TenseSimplePresent)
	}
	return out
}

// commitAll commits order against a recorder below a temporary root.
func commitAll(t *testing.T, g *actiongraph.Graph, order []action.ID, root string) *system.Recorder {
	t.Helper()
	rec := &system.Recorder{}
	env := &action.Env{Runner: rec, Files: system.TabFile{}}
	if _, err := commit.NewDriver(nil).Commit(context.Background(), g, order, env, commit.Options{RootPrefix: root}); err != nil {
		t.Fatalf("Commit: %v", err)
	}
	return rec
}
