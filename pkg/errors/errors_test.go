package errors

import (
	"errors"
	"fmt"
	"testing"
)

func TestErrorString(t *testing.T) {
	tests := []struct {
		name string
		err  *Error
		want string
	}{
		{
			name: "new",
			err:  New(ErrCodeStructural, "holder %d -> %d: unknown target", 3, 9),
			want: "STRUCTURAL: holder 3 -> 9: unknown target",
		},
		{
			name: "shorthand",
			err:  NotFound("device %d", 42),
			want: "NOT_FOUND: device 42",
		},
		{
			name: "wrapped",
			err:  Wrap(ErrCodeCommitFailure, errors.New("exit status 5"), "mkfs.ext4 /dev/sda1"),
			want: "COMMIT_FAILURE: mkfs.ext4 /dev/sda1: exit status 5",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.want {
				t.Errorf("Error() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestWrapChain(t *testing.T) {
	cause := errors.New("device or resource busy")
	err := Wrap(ErrCodeCommitFailure, cause, "umount /home")

	if errors.Unwrap(err) != cause {
		t.Errorf("Unwrap() = %v, want %v", errors.Unwrap(err), cause)
	}
	if !errors.Is(fmt.Errorf("commit: %w", err), cause) {
		t.Error("cause not reachable through an fmt wrap")
	}
	if got := Structural("x").Unwrap(); got != nil {
		t.Errorf("Unwrap() of a root error = %v", got)
	}
}

type codedError struct{ code Code }

func (e *codedError) Error() string { return "coded" }
func (e *codedError) Code() Code    { return e.code }

func TestIs(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		code     Code
		expected bool
	}{
		{
			name:     "matching code",
			err:      New(ErrCodeNotFound, "test"),
			code:     ErrCodeNotFound,
			expected: true,
		},
		{
			name:     "non-matching code",
			err:      New(ErrCodeNotFound, "test"),
			code:     ErrCodeStructural,
			expected: false,
		},
		{
			name:     "wrapped error",
			err:      Wrap(ErrCodeStructural, New(ErrCodeNotFound, "inner"), "outer"),
			code:     ErrCodeStructural,
			expected: true,
		},
		{
			name:     "fmt wrapped",
			err:      fmt.Errorf("context: %w", New(ErrCodeNotFound, "inner")),
			code:     ErrCodeNotFound,
			expected: true,
		},
		{
			name:     "coder type",
			err:      fmt.Errorf("plan: %w", &codedError{code: ErrCodeCycleDetected}),
			code:     ErrCodeCycleDetected,
			expected: true,
		},
		{
			name:     "non-Error type",
			err:      errors.New("plain error"),
			code:     ErrCodeNotFound,
			expected: false,
		},
		{
			name:     "nil error",
			err:      nil,
			code:     ErrCodeNotFound,
			expected: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Is(tt.err, tt.code); got != tt.expected {
				t.Errorf("Is() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestGetCode(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected Code
	}{
		{
			name:     "Error type",
			err:      New(ErrCodeUnsupportedOperation, "test"),
			expected: ErrCodeUnsupportedOperation,
		},
		{
			name:     "coder type",
			err:      &codedError{code: ErrCodeCommitFailure},
			expected: ErrCodeCommitFailure,
		},
		{
			name:     "plain error",
			err:      errors.New("plain"),
			expected: "",
		},
		{
			name:     "nil",
			err:      nil,
			expected: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := GetCode(tt.err); got != tt.expected {
				t.Errorf("GetCode() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestUserMessage(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected string
	}{
		{
			name:     "Error type",
			err:      New(ErrCodeInvalidInput, "friendly message"),
			expected: "friendly message",
		},
		{
			name:     "plain error",
			err:      errors.New("plain error"),
			expected: "plain error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := UserMessage(tt.err); got != tt.expected {
				t.Errorf("UserMessage() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestUnsupported(t *testing.T) {
	err := Unsupported("xfs filesystem", "shrink")
	if !Is(err, ErrCodeUnsupportedOperation) {
		t.Fatalf("code = %v", err.Code)
	}
	if err.Message != "xfs filesystem does not support shrink" {
		t.Errorf("Message = %q", err.Message)
	}
}
