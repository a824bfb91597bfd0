package errors

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/google/uuid"
)

// ValidateDeviceName validates a kernel device name such as "/dev/sda1".
// It rejects names that could be used for path traversal or injection attacks
// when passed to external tools.
//
// The validation rules are intentionally conservative:
//   - No empty names
//   - Must live below /dev/
//   - No control characters or whitespace
//   - No path traversal sequences
//   - Maximum length of 256 characters
func ValidateDeviceName(name string) error {
	if name == "" {
		return New(ErrCodeInvalidName, "device name cannot be empty")
	}

	if len(name) > 256 {
		return New(ErrCodeInvalidName, "device name too long (max 256 characters)")
	}

	if !strings.HasPrefix(name, "/dev/") {
		return New(ErrCodeInvalidName, "device name must start with /dev/: %q", name)
	}

	for _, r := range name {
		if unicode.IsControl(r) || unicode.IsSpace(r) {
			return New(ErrCodeInvalidName, "device name contains invalid characters: %q", name)
		}
	}

	if strings.Contains(name, "..") || strings.Contains(name, "//") {
		return New(ErrCodeInvalidName, "device name contains path traversal sequences: %q", name)
	}

	return nil
}

// dmNameRegex matches names accepted by the device-mapper (and therefore by
// cryptsetup and LVM when they create mapping nodes).
var dmNameRegex = regexp.MustCompile(`^[A-Za-z0-9+_.-]+$`)

// ValidateDmName validates a device-mapper table name.
func ValidateDmName(name string) error {
	if name == "" {
		return New(ErrCodeInvalidName, "device-mapper name cannot be empty")
	}

	// DM_NAME_LEN is 128 including the terminating NUL.
	if len(name) > 127 {
		return New(ErrCodeInvalidName, "device-mapper name too long (max 127 characters)")
	}

	if name == "." || name == ".." || !dmNameRegex.MatchString(name) {
		return New(ErrCodeInvalidName, "invalid device-mapper name: %q", name)
	}

	return nil
}

// ValidateMountPath validates a mount point path.
//
// Validation rules:
//   - Path cannot be empty
//   - Must be absolute, or the literal "swap"
//   - Maximum length of 500 characters
//   - No null bytes, control characters or whitespace
//   - No path traversal sequences (..)
//   - No trailing slash except for "/"
func ValidateMountPath(path string) error {
	if path == "" {
		return New(ErrCodeInvalidPath, "mount path cannot be empty")
	}

	if path == "swap" {
		return nil
	}

	const maxPathLength = 500
	if len(path) > maxPathLength {
		return New(ErrCodeInvalidPath, "mount path too long (max %d characters)", maxPathLength)
	}

	for _, r := range path {
		if unicode.IsControl(r) || unicode.IsSpace(r) {
			return New(ErrCodeInvalidPath, "mount path contains invalid characters")
		}
	}

	if !strings.HasPrefix(path, "/") {
		return New(ErrCodeInvalidPath, "mount path must be absolute: %q", path)
	}

	for _, part := range strings.Split(path, "/") {
		if part == ".." {
			return New(ErrCodeInvalidPath, "mount path cannot contain path traversal sequences (..)")
		}
	}

	if len(path) > 1 && strings.HasSuffix(path, "/") {
		return New(ErrCodeInvalidPath, "mount path cannot end with a slash: %q", path)
	}

	return nil
}

// labelLimits holds the maximum label length in bytes per filesystem type.
var labelLimits = map[string]int{
	"ext2":  16,
	"ext3":  16,
	"ext4":  16,
	"xfs":   12,
	"btrfs": 255,
	"vfat":  11,
	"swap":  15,
}

// ValidateLabel validates a filesystem label for the given filesystem type.
// Unknown filesystem types are limited to 255 bytes.
func ValidateLabel(fsType, label string) error {
	limit, ok := labelLimits[fsType]
	if !ok {
		limit = 255
	}
	if len(label) > limit {
		return New(ErrCodeInvalidName, "%s label too long (max %d bytes): %q", fsType, limit, label)
	}
	for _, r := range label {
		if unicode.IsControl(r) {
			return New(ErrCodeInvalidName, "label contains invalid control characters")
		}
	}
	return nil
}

// ValidateUUID validates a filesystem or LUKS UUID. Tools such as tune2fs
// and cryptsetup only accept the canonical hyphenated form, so the braced,
// urn and bare-hex forms uuid.Parse tolerates are rejected.
func ValidateUUID(s string) error {
	u, err := uuid.Parse(s)
	if err != nil {
		return Wrap(ErrCodeInvalidInput, err, "invalid UUID %q", s)
	}
	if u.String() != strings.ToLower(s) {
		return New(ErrCodeInvalidInput, "UUID must be in canonical form: %q", s)
	}
	return nil
}
