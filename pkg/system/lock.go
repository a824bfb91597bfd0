package system

import (
	stderrors "errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/matzehuels/storagegraph/pkg/errors"
)

// DefaultLockPath is where the session lock lives unless configured.
const DefaultLockPath = "/run/storagegraph/lock"

// Lock is an advisory, process-wide session lock. It is held from probing
// through committing so that two sessions never mutate one machine at the
// same time. The planner itself never takes it.
type Lock struct {
	path string
}

// Acquire creates the lock file exclusively and writes the current pid into
// it. If another live process holds the lock it fails with LOCKED. A lock
// file left behind by a dead process is taken over.
func Acquire(path string) (*Lock, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidPath, err, "create lock directory")
	}
	for attempt := 0; attempt < 2; attempt++ {
		f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if err == nil {
			_, werr := fmt.Fprintf(f, "%d\n", os.Getpid())
			cerr := f.Close()
			if werr != nil || cerr != nil {
				os.Remove(path)
				return nil, errors.Wrap(errors.ErrCodeInternal, stderrors.Join(werr, cerr), "write lock %s", path)
			}
			return &Lock{path: path}, nil
		}
		if !stderrors.Is(err, fs.ErrExist) {
			return nil, errors.Wrap(errors.ErrCodeInvalidPath, err, "open lock %s", path)
		}

		pid, alive := holder(path)
		if alive {
			return nil, errors.New(errors.ErrCodeLocked, "storage is locked by process %d (%s)", pid, path)
		}
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return nil, errors.Wrap(errors.ErrCodeLocked, err, "remove stale lock %s", path)
		}
	}
	return nil, errors.New(errors.ErrCodeLocked, "could not acquire %s", path)
}

// holder returns the pid in the lock file and whether that process exists.
func holder(path string) (int, bool) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, false
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil || pid <= 0 {
		return 0, false
	}
	if pid == os.Getpid() {
		return pid, true
	}
	_, err = os.Stat(filepath.Join("/proc", strconv.Itoa(pid)))
	return pid, err == nil
}

// Path returns the lock file path.
func (l *Lock) Path() string { return l.path }

// Release removes the lock file.
func (l *Lock) Release() error {
	if err := os.Remove(l.path); err != nil && !os.IsNotExist(err) {
		return errors.Wrap(errors.ErrCodeInternal, err, "release lock %s", l.path)
	}
	return nil
}
