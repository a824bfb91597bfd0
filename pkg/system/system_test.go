package system

import (
	"context"
	stderrors "errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/matzehuels/storagegraph/pkg/action"
	"github.com/matzehuels/storagegraph/pkg/errors"
)

func TestTabFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "etc", "fstab")
	var tf TabFile

	entries, err := Entries(path)
	if err != nil || len(entries) != 0 {
		t.Fatalf("Entries of missing file = %v, %v", entries, err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte("# static file system information\n\n/dev/sda1 / ext4 defaults 0 1\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	if err := tf.Set(path, 1, []string{"/dev/sda2", "/home", "xfs", "defaults", "0", "2"}); err != nil {
		t.Fatal(err)
	}
	if err := tf.Set(path, 1, []string{"UUID=abcd", "/", "ext4", "noatime", "0", "1"}); err != nil {
		t.Fatal(err)
	}

	want := [][]string{
		{"UUID=abcd", "/", "ext4", "noatime", "0", "1"},
		{"/dev/sda2", "/home", "xfs", "defaults", "0", "2"},
	}
	entries, err = Entries(path)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(want, entries); diff != "" {
		t.Errorf("entries mismatch (-want +got):\n%s", diff)
	}

	data, _ := os.ReadFile(path)
	if !strings.HasPrefix(string(data), "# static file system information\n\n") {
		t.Errorf("comment header not preserved:\n%s", data)
	}
	if info, _ := os.Stat(path); info.Mode().Perm() != 0o600 {
		t.Errorf("mode = %v, want 0600 kept", info.Mode().Perm())
	}

	if err := tf.Remove(path, 1, "/home"); err != nil {
		t.Fatal(err)
	}
	if err := tf.Remove(path, 1, "/home"); !errors.Is(err, errors.ErrCodeNotFound) {
		t.Errorf("second Remove() error = %v, want NOT_FOUND", err)
	}
	if err := tf.Set(path, 6, []string{"x"}); !errors.Is(err, errors.ErrCodeInvalidInput) {
		t.Errorf("bad key column: error = %v", err)
	}

	leftovers, _ := filepath.Glob(filepath.Join(filepath.Dir(path), ".fstab-*"))
	if len(leftovers) != 0 {
		t.Errorf("temporary files left behind: %v", leftovers)
	}
}

func TestRecorder(t *testing.T) {
	r := &Recorder{FailOn: 2, Output: map[string][]byte{"blkid": []byte("ext4\n")}}
	ctx := context.Background()

	out, err := r.Run(ctx, "blkid", "-o", "value", "/dev/sda1")
	if err != nil || string(out) != "ext4\n" {
		t.Fatalf("Run() = %q, %v", out, err)
	}
	_, err = r.Run(ctx, "mkfs.ext4", "-F", "/dev/sda1")
	var cerr *CommandError
	if !stderrors.As(err, &cerr) || !stderrors.Is(err, ErrInjected) {
		t.Fatalf("second Run() error = %v", err)
	}
	if _, err := r.Run(ctx, "sync"); err != nil {
		t.Fatalf("third Run() error = %v", err)
	}

	want := [][]string{
		{"blkid", "-o", "value", "/dev/sda1"},
		{"mkfs.ext4", "-F", "/dev/sda1"},
		{"sync"},
	}
	if diff := cmp.Diff(want, r.Argv()); diff != "" {
		t.Errorf("argv mismatch (-want +got):\n%s", diff)
	}
	if n := len(r.Commands()); n != 3 {
		t.Errorf("%d command lines recorded", n)
	}
	r.Reset()
	if len(r.Argv()) != 0 {
		t.Error("Reset kept commands")
	}
}

func TestCommandLineQuotesSpaces(t *testing.T) {
	argv := []string{"mount", "-o", "defaults,noatime", "/dev/disk/by-label/my disk", "/mnt"}
	line := CommandLine(argv)
	if !strings.Contains(line, "mount") || line == strings.Join(argv, " ") {
		t.Errorf("CommandLine() = %q does not quote the argument with a space", line)
	}
}

func TestRequiredTools(t *testing.T) {
	got := RequiredTools(action.FeatureLuks | action.FeatureLvm)
	if diff := cmp.Diff([]string{"cryptsetup", "dmsetup", "lvm"}, got); diff != "" {
		t.Errorf("tools mismatch (-want +got):\n%s", diff)
	}

	// wipefs is shared by both features but listed once.
	got = RequiredTools(action.FeatureExt | action.FeatureXfs)
	n := 0
	for _, tool := range got {
		if tool == "wipefs" {
			n++
		}
	}
	if n != 1 {
		t.Errorf("wipefs listed %d times in %v", n, got)
	}

	if len(RequiredTools(0)) != 0 {
		t.Error("no features need no tools")
	}
}

func TestMissingTools(t *testing.T) {
	installed := map[string]bool{"mount": true}
	lookPath := func(name string) (string, error) {
		if installed[name] {
			return "/usr/bin/" + name, nil
		}
		return "", fmt.Errorf("%s: not found", name)
	}
	if diff := cmp.Diff([]string{"umount"}, MissingTools(action.FeatureMount, lookPath)); diff != "" {
		t.Errorf("missing mismatch (-want +got):\n%s", diff)
	}
}

func TestLock(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run", "lock")

	l, err := Acquire(path)
	if err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}
	if _, err := Acquire(path); !errors.Is(err, errors.ErrCodeLocked) {
		t.Errorf("second Acquire() error = %v, want LOCKED", err)
	}
	if err := l.Release(); err != nil {
		t.Fatal(err)
	}
	if err := l.Release(); err != nil {
		t.Errorf("releasing twice: %v", err)
	}

	// A lock left behind by a process that no longer exists is taken over.
	if err := os.WriteFile(path, []byte("2147483646\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	l, err = Acquire(path)
	if err != nil {
		t.Fatalf("Acquire() over stale lock: %v", err)
	}
	defer l.Release()
	data, _ := os.ReadFile(l.Path())
	if strings.TrimSpace(string(data)) != fmt.Sprint(os.Getpid()) {
		t.Errorf("lock holds %q", data)
	}
}
