package domain

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

func TestErrors_NotNil(t *testing.T) {
	allErrors := []struct {
		name string
		err  error
	}{
		{"ErrNotFound", ErrNotFound},
		{"ErrTimeout", ErrTimeout},
		{"ErrDecode", ErrDecode},
		{"ErrTransport", ErrTransport},
		{"ErrInvalidInput", ErrInvalidInput},
		{"ErrKeyFeeTooHigh", ErrKeyFeeTooHigh},
	}

	for _, e := range allErrors {
		t.Run(e.name, func(t *testing.T) {
			if e.err == nil {
				t.Errorf("%s should not be nil", e.name)
			}
			if e.err.Error() == "" {
				t.Errorf("%s should have a message", e.name)
			}
		})
	}
}

func TestErrors_Distinct(t *testing.T) {
	errs := []error{ErrNotFound, ErrTimeout, ErrDecode, ErrTransport, ErrInvalidInput, ErrKeyFeeTooHigh}
	for i, a := range errs {
		for j, b := range errs {
			if i != j && errors.Is(a, b) {
				t.Errorf("%v should not match %v", a, b)
			}
		}
	}
}

func TestIsTimeout(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"sentinel", ErrTimeout, true},
		{"wrapped sentinel", fmt.Errorf("fetch blob: %w", ErrTimeout), true},
		{"deadline", context.DeadlineExceeded, true},
		{"wrapped deadline", fmt.Errorf("dial: %w", context.DeadlineExceeded), true},
		{"canceled", context.Canceled, false},
		{"transport", ErrTransport, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsTimeout(tt.err); got != tt.want {
				t.Errorf("IsTimeout(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}
