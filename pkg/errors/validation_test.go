package errors

import (
	"strings"
	"testing"
)

func TestValidateDeviceName(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"disk", "/dev/sda", false},
		{"partition", "/dev/nvme0n1p2", false},
		{"mapper", "/dev/mapper/cr_root", false},

		{"empty", "", true},
		{"relative", "sda1", true},
		{"too long", "/dev/" + strings.Repeat("a", 300), true},
		{"traversal", "/dev/../etc/passwd", true},
		{"double slash", "/dev//sda", true},
		{"space", "/dev/sd a", true},
		{"control", "/dev/sda\x01", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateDeviceName(tt.input)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateDeviceName(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
		})
	}
}

func TestValidateDmName(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"simple", "cr_root", false},
		{"luks uuid", "luks-3e4f0d2a-6a5c-4c9b-9d0e-1f2a3b4c5d6e", false},

		{"empty", "", true},
		{"slash", "cr/root", true},
		{"dot", ".", true},
		{"too long", strings.Repeat("x", 128), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateDmName(tt.input)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateDmName(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
		})
	}
}

func TestValidateMountPath(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"root", "/", false},
		{"home", "/home", false},
		{"nested", "/var/lib/docker", false},
		{"swap", "swap", false},

		{"empty", "", true},
		{"relative", "home", true},
		{"traversal", "/home/../etc", true},
		{"trailing slash", "/home/", true},
		{"space", "/my home", true},
		{"null byte", "/home\x00", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateMountPath(tt.input)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateMountPath(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if err != nil && !Is(err, ErrCodeInvalidPath) {
				t.Errorf("code = %v, want %v", GetCode(err), ErrCodeInvalidPath)
			}
		})
	}
}

func TestValidateLabel(t *testing.T) {
	tests := []struct {
		name    string
		fsType  string
		label   string
		wantErr bool
	}{
		{"ext4 ok", "ext4", "root", false},
		{"ext4 max", "ext4", strings.Repeat("a", 16), false},
		{"ext4 too long", "ext4", strings.Repeat("a", 17), true},
		{"xfs too long", "xfs", "thirteenchars", true},
		{"vfat ok", "vfat", "EFI", false},
		{"unknown type", "zfs", strings.Repeat("a", 200), false},
		{"control", "btrfs", "a\tb", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateLabel(tt.fsType, tt.label)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateLabel(%q, %q) error = %v, wantErr %v", tt.fsType, tt.label, err, tt.wantErr)
			}
		})
	}
}

func TestValidateUUID(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"canonical", "3e4f0d2a-6a5c-4c9b-9d0e-1f2a3b4c5d6e", false},
		{"upper case", "3E4F0D2A-6A5C-4C9B-9D0E-1F2A3B4C5D6E", false},

		{"empty", "", true},
		{"vfat serial", "ABCD-1234", true},
		{"braced", "{3e4f0d2a-6a5c-4c9b-9d0e-1f2a3b4c5d6e}", true},
		{"bare hex", "3e4f0d2a6a5c4c9b9d0e1f2a3b4c5d6e", true},
		{"urn", "urn:uuid:3e4f0d2a-6a5c-4c9b-9d0e-1f2a3b4c5d6e", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateUUID(tt.input)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateUUID(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if err != nil && !Is(err, ErrCodeInvalidInput) {
				t.Errorf("ValidateUUID(%q) code = %s", tt.input, GetCode(err))
			}
		})
	}
}
