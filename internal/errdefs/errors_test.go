package errdefs_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/veriscan/veriscan/internal/errdefs"
)

func TestKindOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want errdefs.Kind
	}{
		{
			name: "tagged error",
			err:  errdefs.Newf(errdefs.KindNotFound, "store.get", "missing"),
			want: errdefs.KindNotFound,
		},
		{
			name: "wrapped tagged error",
			err:  fmt.Errorf("outer: %w", errdefs.Newf(errdefs.KindUnavailable, "redis", "down")),
			want: errdefs.KindUnavailable,
		},
		{
			name: "context deadline",
			err:  context.DeadlineExceeded,
			want: errdefs.KindDeadlineExceeded,
		},
		{
			name: "context cancelled",
			err:  context.Canceled,
			want: errdefs.KindDeadlineExceeded,
		},
		{
			name: "plain error",
			err:  errors.New("boom"),
			want: errdefs.KindInternal,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := errdefs.KindOf(tt.err); got != tt.want {
				t.Errorf("KindOf() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestUnwrap(t *testing.T) {
	cause := errors.New("root cause")
	err := errdefs.New(errdefs.KindInternal, "op", cause)
	if !errors.Is(err, cause) {
		t.Error("wrapped cause not reachable through errors.Is")
	}
}

func TestIsKind(t *testing.T) {
	err := errdefs.Newf(errdefs.KindInvalidArgument, "validate", "bad input")
	if !errdefs.IsKind(err, errdefs.KindInvalidArgument) {
		t.Error("IsKind should match the tagged kind")
	}
	if errdefs.IsKind(err, errdefs.KindNotFound) {
		t.Error("IsKind matched the wrong kind")
	}
	if errdefs.IsKind(nil, errdefs.KindInternal) {
		t.Error("IsKind(nil) should be false")
	}
}
