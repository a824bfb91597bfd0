package system

import (
	"bufio"
	"bytes"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/matzehuels/storagegraph/pkg/errors"
)

// TabFile edits whitespace-separated table files such as /etc/fstab. Comment
// and blank lines are preserved; every write replaces the file atomically.
type TabFile struct {
	// Mode is used when a file is created. Defaults to 0644.
	Mode fs.FileMode
}

// Entries returns the fields of every non-comment line of path. A missing
// file has no entries.
func Entries(path string) ([][]string, error) {
	lines, err := readLines(path)
	if err != nil {
		return nil, err
	}
	var out [][]string
	for _, l := range lines {
		if f, ok := fields(l); ok {
			out = append(out, f)
		}
	}
	return out, nil
}

// Set inserts fields as a new line or replaces the first line whose
// keyColumn matches fields[keyColumn].
func (t TabFile) Set(path string, keyColumn int, fields []string) error {
	if keyColumn < 0 || keyColumn >= len(fields) {
		return errors.New(errors.ErrCodeInvalidInput, "%s: key column %d out of range", path, keyColumn)
	}
	lines, err := readLines(path)
	if err != nil {
		return err
	}

	entry := strings.Join(fields, "  ")
	if i := find(lines, keyColumn, fields[keyColumn]); i >= 0 {
		lines[i] = entry
	} else {
		lines = append(lines, entry)
	}
	return t.write(path, lines)
}

// Remove deletes the first line whose keyColumn equals key. It returns a
// NOT_FOUND error if there is no such line.
func (t TabFile) Remove(path string, keyColumn int, key string) error {
	lines, err := readLines(path)
	if err != nil {
		return err
	}
	i := find(lines, keyColumn, key)
	if i < 0 {
		return errors.NotFound("%s: no entry for %q", path, key)
	}
	return t.write(path, append(lines[:i], lines[i+1:]...))
}

func fields(line string) ([]string, bool) {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" || strings.HasPrefix(trimmed, "#") {
		return nil, false
	}
	return strings.Fields(trimmed), true
}

func find(lines []string, col int, key string) int {
	for i, l := range lines {
		if f, ok := fields(l); ok && col < len(f) && f[col] == key {
			return i
		}
	}
	return -1
}

func readLines(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidPath, err, "read %s", path)
	}
	var lines []string
	sc := bufio.NewScanner(bytes.NewReader(data))
	for sc.Scan() {
		lines = append(lines, sc.Text())
	}
	if err := sc.Err(); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidFormat, err, "read %s", path)
	}
	return lines, nil
}

func (t TabFile) write(path string, lines []string) error {
	mode := t.Mode
	if mode == 0 {
		mode = 0o644
	}
	if info, err := os.Stat(path); err == nil {
		mode = info.Mode().Perm()
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errors.Wrap(errors.ErrCodeInvalidPath, err, "create %s", dir)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+"-*")
	if err != nil {
		return errors.Wrap(errors.ErrCodeInvalidPath, err, "write %s", path)
	}
	defer os.Remove(tmp.Name())

	var buf bytes.Buffer
	for _, l := range lines {
		buf.WriteString(l)
		buf.WriteByte('\n')
	}
	if _, err := tmp.Write(buf.Bytes()); err != nil {
		tmp.Close()
		return errors.Wrap(errors.ErrCodeInvalidPath, err, "write %s", path)
	}
	if err := tmp.Chmod(mode); err != nil {
		tmp.Close()
		return errors.Wrap(errors.ErrCodeInvalidPath, err, "write %s", path)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return errors.Wrap(errors.ErrCodeInvalidPath, err, "write %s", path)
	}
	if err := tmp.Close(); err != nil {
		return errors.Wrap(errors.ErrCodeInvalidPath, err, "write %s", path)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return errors.Wrap(errors.ErrCodeInvalidPath, err, "write %s", path)
	}
	return nil
}
