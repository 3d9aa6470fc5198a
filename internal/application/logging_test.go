package application

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/example/listening-monitor/internal/logging"
	"github.com/example/listening-monitor/internal/persistence"
)

func TestDefaultLogger(t *testing.T) {
	t.Parallel()

	custom := slog.New(slog.NewTextHandler(io.Discard, nil))
	if got := defaultLogger(custom); got != custom {
		t.Fatalf("expected custom logger to be returned")
	}

	if got := defaultLogger(nil); got != slog.Default() {
		t.Fatalf("expected default logger when none provided")
	}
}

func TestServiceLoggerPrefersContextLogger(t *testing.T) {
	t.Parallel()

	var ctxBuf, baseBuf bytes.Buffer
	ctxLogger := slog.New(slog.NewTextHandler(&ctxBuf, nil))
	base := slog.New(slog.NewTextHandler(&baseBuf, nil))

	ctx := logging.ContextWithLogger(context.Background(), ctxLogger)
	serviceLogger(ctx, base, "LifecycleService", "StartSession", "user_id", "u1").Info("hello")

	if baseBuf.Len() != 0 {
		t.Fatalf("expected base logger to stay silent, got %q", baseBuf.String())
	}
	out := ctxBuf.String()
	for _, want := range []string{"service=LifecycleService", "operation=StartSession", "user_id=u1"} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in %q", want, out)
		}
	}
}

func TestErrorKind(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		err  error
		want string
	}{
		{name: "nil", err: nil, want: ""},
		{name: "not found", err: fmt.Errorf("get: %w", persistence.ErrNotFound), want: "not_found"},
		{name: "application not found", err: ErrNotFound, want: "not_found"},
		{name: "duplicate", err: persistence.ErrDuplicate, want: "duplicate"},
		{name: "constraint", err: persistence.ErrConstraintViolation, want: "constraint"},
		{name: "foreign key", err: persistence.ErrForeignKeyViolation, want: "constraint"},
		{name: "canceled", err: context.Canceled, want: "canceled"},
		{name: "validation", err: &ValidationError{FieldErrors: map[string]string{"days": "bad"}}, want: "validation"},
		{name: "other", err: errors.New("boom"), want: "unexpected"},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if got := ErrorKind(tc.err); got != tc.want {
				t.Fatalf("ErrorKind(%v) = %q, want %q", tc.err, got, tc.want)
			}
		})
	}
}
