package pipeline

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/go-cmp/cmp"

	"github.com/matzehuels/storagegraph/pkg/action"
	"github.com/matzehuels/storagegraph/pkg/cache"
	"github.com/matzehuels/storagegraph/pkg/commit"
	"github.com/matzehuels/storagegraph/pkg/devicegraph"
	"github.com/matzehuels/storagegraph/pkg/devices"
	"github.com/matzehuels/storagegraph/pkg/errors"
	"github.com/matzehuels/storagegraph/pkg/observability"
	"github.com/matzehuels/storagegraph/pkg/render"
	"github.com/matzehuels/storagegraph/pkg/system"
)

// homeGraph is /dev/sda -> /dev/sda1 -> ext4 -> /home.
func homeGraph(t *testing.T) (*devicegraph.Graph, *devices.Disk, *devices.MountPoint) {
	t.Helper()
	g := devicegraph.New()
	disk := devices.NewDisk("/dev/sda", 100<<30, devices.PtGPT)
	part := devices.NewPartition("/dev/sda1", 1, 1<<20, 10<<30)
	fs := devices.NewFilesystem(devices.FsExt4)
	mp := devices.NewMountPoint("/home")
	for _, d := range []devicegraph.Device{disk, part, fs, mp} {
		if err := g.AddDevice(d); err != nil {
			t.Fatal(err)
		}
	}
	for _, h := range []devicegraph.Holder{
		{Source: disk.SID(), Target: part.SID(), Type: devicegraph.Subdevice},
		{Source: part.SID(), Target: fs.SID(), Type: devicegraph.FilesystemUser},
		{Source: fs.SID(), Target: mp.SID(), Type: devicegraph.FilesystemUser},
	} {
		if err := g.AddHolder(h); err != nil {
			t.Fatal(err)
		}
	}
	return g, disk, mp
}

func withoutMountPoint(t *testing.T) (lhs, rhs *devicegraph.Graph) {
	t.Helper()
	lhs, _, mp := homeGraph(t)
	rhs = lhs.Clone()
	if err := rhs.RemoveDevice(mp.SID(), devicegraph.RemoveStrict); err != nil {
		t.Fatal(err)
	}
	return lhs, rhs
}

func newTestRunner(t *testing.T, c cache.Cache) *Runner {
	t.Helper()
	return NewRunner(c, nil, log.New(&strings.Builder{}))
}

func TestPlan(t *testing.T) {
	lhs, rhs := withoutMountPoint(t)
	r := newTestRunner(t, nil)

	p, err := r.Plan(context.Background(), lhs, rhs)
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}
	want := []string{
		"Unmount /dev/sda1 from /home",
		"Remove /home from /etc/fstab",
	}
	if diff := cmp.Diff(want, r.Describe(p, action.TenseSimplePresent)); diff != "" {
		t.Errorf("Describe() mismatch (-want +got):\n%s", diff)
	}
	if p.Stats.Deleted != 1 || p.Stats.HolderChanges != 1 || p.Stats.Actions != 2 || p.Stats.Edges != 1 {
		t.Errorf("Stats = %+v", p.Stats)
	}
	if p.SystemHash == p.StagingHash {
		t.Error("different graphs hash equal")
	}
}

func TestPlanEmpty(t *testing.T) {
	g, _, _ := homeGraph(t)
	p, err := newTestRunner(t, nil).Plan(context.Background(), g, g.Clone())
	if err != nil {
		t.Fatal(err)
	}
	if !p.Empty() || p.SystemHash != p.StagingHash {
		t.Errorf("plan of equal graphs has %d actions", len(p.Order))
	}
}

func TestPlanUnsupported(t *testing.T) {
	lhs, disk, _ := homeGraph(t)
	rhs := lhs.Clone()
	if err := rhs.RemoveDevice(disk.SID(), devicegraph.RemoveCascade); err != nil {
		t.Fatal(err)
	}
	_, err := newTestRunner(t, nil).Plan(context.Background(), lhs, rhs)
	if !errors.Is(err, errors.ErrCodeUnsupportedOperation) {
		t.Errorf("Plan() error = %v, want UNSUPPORTED_OPERATION", err)
	}
}

type planEvents struct {
	observability.NoopPlanHooks
	events []string
}

func (h *planEvents) OnDiffComplete(context.Context, int, int, int, time.Duration) {
	h.events = append(h.events, "diff")
}
func (h *planEvents) OnBuildStart(context.Context, int) { h.events = append(h.events, "build") }
func (h *planEvents) OnBuildComplete(_ context.Context, actions, _ int, _ time.Duration, _ error) {
	h.events = append(h.events, "built")
}
func (h *planEvents) OnScheduleComplete(context.Context, int, time.Duration, error) {
	h.events = append(h.events, "scheduled")
}

func TestPlanHooks(t *testing.T) {
	defer observability.Reset()
	hooks := &planEvents{}
	observability.SetPlanHooks(hooks)

	lhs, rhs := withoutMountPoint(t)
	if _, err := newTestRunner(t, nil).Plan(context.Background(), lhs, rhs); err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]string{"diff", "build", "built", "scheduled"}, hooks.events); diff != "" {
		t.Errorf("hook events mismatch (-want +got):\n%s", diff)
	}
}

func TestSummaryCache(t *testing.T) {
	ctx := context.Background()
	c, err := cache.NewFileCache(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	r := newTestRunner(t, c)
	lhs, rhs := withoutMountPoint(t)

	first, hit, err := r.Summary(ctx, lhs, rhs)
	if err != nil || hit {
		t.Fatalf("first Summary() hit=%v err=%v", hit, err)
	}
	second, hit, err := r.Summary(ctx, lhs, rhs)
	if err != nil || !hit {
		t.Fatalf("second Summary() hit=%v err=%v", hit, err)
	}
	if diff := cmp.Diff(first, second); diff != "" {
		t.Errorf("cached summary differs (-fresh +cached):\n%s", diff)
	}
	if len(first.Steps) != 2 || first.Steps[1].Kind != action.RemoveFromEtcFstab || !first.Steps[1].Trailing {
		t.Errorf("Steps = %+v", first.Steps)
	}
}

func TestRender(t *testing.T) {
	ctx := context.Background()
	c, _ := cache.NewFileCache(t.TempDir())
	r := newTestRunner(t, c)
	lhs, rhs := withoutMountPoint(t)
	p, err := r.Plan(ctx, lhs, rhs)
	if err != nil {
		t.Fatal(err)
	}

	dot, hit, err := r.Render(ctx, p, RenderOptions{})
	if err != nil || hit {
		t.Fatalf("Render(default) hit=%v err=%v", hit, err)
	}
	if !strings.HasPrefix(string(dot), "digraph actiongraph {") {
		t.Errorf("default render is not the action graph DOT: %.40s", dot)
	}

	opts := RenderOptions{Graph: GraphDevices, Format: render.FormatSVG}
	svg, hit, err := r.Render(ctx, p, opts)
	if err != nil || hit {
		t.Fatalf("first Render(svg) hit=%v err=%v", hit, err)
	}
	again, hit, err := r.Render(ctx, p, opts)
	if err != nil || !hit {
		t.Fatalf("second Render(svg) hit=%v err=%v", hit, err)
	}
	if string(again) != string(svg) {
		t.Error("cached artifact differs")
	}
}

func TestRenderOptions(t *testing.T) {
	tests := []struct {
		opts    RenderOptions
		wantErr bool
	}{
		{RenderOptions{}, false},
		{RenderOptions{Graph: GraphDevices, Format: render.FormatPNG}, false},
		{RenderOptions{Graph: "towers"}, true},
		{RenderOptions{Format: "pdf"}, true},
	}
	for _, tt := range tests {
		err := tt.opts.ValidateAndSetDefaults()
		if (err != nil) != tt.wantErr {
			t.Errorf("ValidateAndSetDefaults(%+v) error = %v, wantErr %v", tt.opts, err, tt.wantErr)
		}
	}
}

func TestCommit(t *testing.T) {
	ctx := context.Background()
	lhs, rhs := withoutMountPoint(t)
	root := t.TempDir()
	fstab := filepath.Join(root, "etc", "fstab")
	if err := os.MkdirAll(filepath.Dir(fstab), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(fstab, []byte("/dev/sda1 /home ext4 defaults 0 2\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	r := newTestRunner(t, nil)
	p, err := r.Plan(ctx, lhs, rhs)
	if err != nil {
		t.Fatal(err)
	}

	rec := &system.Recorder{}
	env := &action.Env{Runner: rec, Files: system.TabFile{}}
	res, err := r.Commit(ctx, p, env, commit.Options{DryRun: true, Force: true, RootPrefix: root})
	if err != nil {
		t.Fatalf("dry run: %v", err)
	}
	want := []string{
		"Unmounting /dev/sda1 from /home",
		"Removing /home from /etc/fstab",
	}
	if diff := cmp.Diff(want, res.Descriptions); diff != "" {
		t.Errorf("dry run descriptions (-want +got):\n%s", diff)
	}
	if len(rec.Commands()) != 0 {
		t.Errorf("dry run executed %v", rec.Commands())
	}

	res, err = r.Commit(ctx, p, env, commit.Options{Force: true, RootPrefix: root})
	if err != nil {
		t.Fatalf("Commit: %v", err)
	}
	if res.Committed != 2 {
		t.Errorf("committed %d actions, want 2", res.Committed)
	}
	if got := rec.Commands(); len(got) != 1 || !strings.HasPrefix(got[0], "umount ") {
		t.Errorf("commands = %v", got)
	}
	if entries, _ := system.Entries(fstab); len(entries) != 0 {
		t.Errorf("fstab still has %v", entries)
	}
}
