package domain

import (
	"errors"
	"fmt"
	"testing"
)

func TestKindOf(t *testing.T) {
	cause := errors.New("boom")

	tests := []struct {
		name string
		err  error
		want ErrorKind
	}{
		{
			name: "nil",
			err:  nil,
			want: "",
		},
		{
			name: "auth error",
			err:  &AuthError{Key: "k", Err: cause},
			want: KindAuth,
		},
		{
			name: "resolution error",
			err:  &ResolutionError{ID: "v", Err: ErrNoLocation},
			want: KindResolution,
		},
		{
			name: "transient error",
			err:  &TransientError{URL: "http://x/1.ts", Err: cause},
			want: KindTransient,
		},
		{
			name: "wrapped transient error",
			err:  fmt.Errorf("fetch: %w", &TransientError{Err: cause}),
			want: KindTransient,
		},
		{
			name: "assembly error",
			err:  &AssemblyError{Output: "a.mp4", Err: cause},
			want: KindAssembly,
		},
		{
			name: "exhausted error",
			err:  &ExhaustedError{Name: "a", Last: cause},
			want: KindExhausted,
		},
		{
			name: "plain error",
			err:  cause,
			want: KindUnknown,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := KindOf(tt.err); got != tt.want {
				t.Errorf("KindOf() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestIsRetryable(t *testing.T) {
	cause := errors.New("boom")

	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"auth", &AuthError{Err: cause}, true},
		{"resolution", &ResolutionError{Err: cause}, true},
		{"transient", &TransientError{Err: cause}, true},
		{"assembly", &AssemblyError{Err: cause}, false},
		{"wrapped assembly", fmt.Errorf("publish: %w", &AssemblyError{Err: cause}), false},
		{"plain", cause, false},
		{"nil", nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsRetryable(tt.err); got != tt.want {
				t.Errorf("IsRetryable() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestErrors_Unwrap(t *testing.T) {
	cause := errors.New("underlying")

	errs := []error{
		&AuthError{Err: cause},
		&ResolutionError{Err: cause},
		&TransientError{Err: cause},
		&AssemblyError{Err: cause},
		&ExhaustedError{Last: cause},
	}

	for _, err := range errs {
		if !errors.Is(err, cause) {
			t.Errorf("%T does not unwrap to its cause", err)
		}
	}
}

func TestAssemblyError_Error(t *testing.T) {
	err := &AssemblyError{
		Output: "out.mp4",
		Stderr: "Invalid data found",
		Err:    errors.New("exit status 1"),
	}

	want := "assembling out.mp4: exit status 1 (Invalid data found)"
	if got := err.Error(); got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}

	nilCause := &AuthError{Key: "k"}
	if got := nilCause.Error(); got != "authorization failed for k: unknown error" {
		t.Errorf("Error() with nil cause = %q", got)
	}
}
