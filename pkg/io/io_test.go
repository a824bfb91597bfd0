package io

import (
	"bytes"
	stderrors "errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/hashicorp/go-multierror"

	"github.com/matzehuels/storagegraph/pkg/devicegraph"
	"github.com/matzehuels/storagegraph/pkg/devices"
	"github.com/matzehuels/storagegraph/pkg/errors"
)

func sample(t *testing.T) *devicegraph.Graph {
	t.Helper()
	g := devicegraph.New()
	disk := devices.NewDisk("/dev/sda", 100<<30, devices.PtGPT)
	part := devices.NewPartition("/dev/sda1", 1, 1<<20, 10<<30)
	enc := devices.NewEncryption("cr_home")
	enc.InCrypttab = true
	fs := devices.NewFilesystem(devices.FsExt4)
	fs.Label = "home"
	mp := devices.NewMountPoint("/home", "noatime", "discard")
	for _, d := range []devicegraph.Device{disk, part, enc, fs, mp} {
		if err := g.AddDevice(d); err != nil {
			t.Fatal(err)
		}
	}
	holders := []devicegraph.Holder{
		{Source: disk.SID(), Target: part.SID(), Type: devicegraph.Subdevice},
		{Source: part.SID(), Target: enc.SID(), Type: devicegraph.User},
		{Source: enc.SID(), Target: fs.SID(), Type: devicegraph.FilesystemUser},
		{Source: fs.SID(), Target: mp.SID(), Type: devicegraph.FilesystemUser},
	}
	for _, h := range holders {
		if err := g.AddHolder(h); err != nil {
			t.Fatal(err)
		}
	}
	return g
}

func TestRoundTrip(t *testing.T) {
	codecs := []struct {
		name  string
		write func(*devicegraph.Graph, *bytes.Buffer) error
		read  func(*bytes.Buffer) (*devicegraph.Graph, error)
	}{
		{
			"json",
			func(g *devicegraph.Graph, b *bytes.Buffer) error { return WriteJSON(g, b) },
			func(b *bytes.Buffer) (*devicegraph.Graph, error) { return ReadJSON(b) },
		},
		{
			"yaml",
			func(g *devicegraph.Graph, b *bytes.Buffer) error { return WriteYAML(g, b) },
			func(b *bytes.Buffer) (*devicegraph.Graph, error) { return ReadYAML(b) },
		},
	}
	for _, c := range codecs {
		t.Run(c.name, func(t *testing.T) {
			g := sample(t)
			var first bytes.Buffer
			if err := c.write(g, &first); err != nil {
				t.Fatalf("write: %v", err)
			}
			encoded := first.String()

			got, err := c.read(&first)
			if err != nil {
				t.Fatalf("read: %v", err)
			}
			if !g.StructuralEqual(got) {
				t.Fatalf("round trip changed the graph:\n%s", encoded)
			}

			var second bytes.Buffer
			if err := c.write(got, &second); err != nil {
				t.Fatal(err)
			}
			if second.String() != encoded {
				t.Errorf("second export differs:\n%s\nvs\n%s", encoded, second.String())
			}
		})
	}
}

func TestReadYAMLHandwritten(t *testing.T) {
	in := `
devices:
  - sid: 9001
    kind: disk
    attrs: {path: /dev/vda, size: 21474836480, pt_type: gpt}
  - sid: 9002
    kind: partition
    attrs: {path: /dev/vda1, number: 1, start: 1048576, size: 1073741824, id: uefi}
  - sid: 9003
    kind: filesystem
    attrs: {type: vfat, label: EFI}
  - sid: 9004
    kind: mount_point
    attrs: {path: /boot/efi, options: [umask=0077], active: true, in_fstab: true}
holders:
  - {source: 9001, target: 9002, type: subdevice}
  - {source: 9002, target: 9003, type: filesystem_user}
  - {source: 9003, target: 9004, type: filesystem_user}
`
	g, err := ReadYAML(strings.NewReader(in))
	if err != nil {
		t.Fatalf("ReadYAML: %v", err)
	}
	if g.NumDevices() != 4 || g.NumHolders() != 3 {
		t.Fatalf("got %d devices, %d holders", g.NumDevices(), g.NumHolders())
	}
	d, _ := g.Find(9004)
	mp, ok := d.(*devices.MountPoint)
	if !ok || mp.Path != "/boot/efi" || len(mp.Options) != 1 || !mp.InFstab {
		t.Errorf("mount point = %+v", d)
	}
	if next := devicegraph.NextSID(); next <= 9004 {
		t.Errorf("NextSID() = %d, loaded sids must be reserved", next)
	}
}

func TestReadErrors(t *testing.T) {
	tests := []struct {
		name  string
		in    string
		code  errors.Code
		nerrs int
	}{
		{
			name: "malformed",
			in:   `{"devices": [`,
			code: errors.ErrCodeInvalidFormat,
		},
		{
			name: "unknown top-level field",
			in:   `{"devices": [], "holders": [], "edges": []}`,
			code: errors.ErrCodeInvalidFormat,
		},
		{
			name: "collects every problem",
			in: `{"devices": [
				{"sid": 8001, "kind": "tape", "attrs": {}},
				{"sid": 8002, "kind": "disk", "attrs": {"path": "/dev/sdz", "size": 1}},
				{"sid": 8002, "kind": "disk", "attrs": {"path": "/dev/sdy", "size": 1}},
				{"kind": "disk"}
			], "holders": [
				{"source": 8002, "target": 8099, "type": "subdevice"},
				{"source": 8002, "target": 8002, "type": "owner"}
			]}`,
			code:  errors.ErrCodeInvalidFormat,
			nerrs: 5,
		},
		{
			name: "structural",
			in: `{"devices": [
				{"sid": 8101, "kind": "disk", "attrs": {"path": "/dev/sdx", "size": 1}},
				{"sid": 8102, "kind": "mount_point", "attrs": {"path": "/mnt", "active": true}}
			], "holders": [
				{"source": 8101, "target": 8102, "type": "filesystem_user"}
			]}`,
			code: errors.ErrCodeStructural,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ReadJSON(strings.NewReader(tt.in))
			if got := errors.GetCode(err); got != tt.code {
				t.Fatalf("ReadJSON() error = %v, want code %s", err, tt.code)
			}
			if tt.nerrs == 0 {
				return
			}
			var merr *multierror.Error
			if !stderrors.As(err, &merr) {
				t.Fatalf("error %T does not wrap a *multierror.Error", err)
			}
			if len(merr.Errors) != tt.nerrs {
				t.Errorf("got %d errors, want %d:\n%v", len(merr.Errors), tt.nerrs, merr)
			}
		})
	}
}

func TestImportExportFiles(t *testing.T) {
	g := sample(t)
	dir := t.TempDir()
	for _, name := range []string{"graph.json", "nested/graph.yaml", "graph.yml"} {
		path := filepath.Join(dir, name)
		if err := Export(g, path); err != nil {
			t.Fatalf("Export(%s): %v", name, err)
		}
		got, err := Import(path)
		if err != nil {
			t.Fatalf("Import(%s): %v", name, err)
		}
		if !g.StructuralEqual(got) {
			t.Errorf("%s: imported graph differs", name)
		}
	}

	if _, err := Import(filepath.Join(dir, "missing.json")); !errors.Is(err, errors.ErrCodeInvalidPath) {
		t.Errorf("Import(missing) error = %v, want INVALID_PATH", err)
	}
}
