package identity

import (
	"context"
	"testing"
)

func TestWithDoctorIDAndDoctorIDFromContext(t *testing.T) {
	ctx := context.Background()
	ctx = WithDoctorID(ctx, "doc-123")

	got, ok := DoctorIDFromContext(ctx)
	if !ok {
		t.Fatalf("expected doctor id to be present")
	}
	if got != "doc-123" {
		t.Fatalf("expected doc-123, got %s", got)
	}
}

func TestDoctorIDFromContext_EmptyOrMissing(t *testing.T) {
	ctx := context.Background()
	if _, ok := DoctorIDFromContext(ctx); ok {
		t.Fatalf("expected missing doctor id to return false")
	}

	ctx = context.WithValue(ctx, doctorKey, 42)
	if _, ok := DoctorIDFromContext(ctx); ok {
		t.Fatalf("expected non-string doctor id to return false")
	}

	ctx = WithDoctorID(context.Background(), "")
	if _, ok := DoctorIDFromContext(ctx); ok {
		t.Fatalf("expected empty doctor id to return false")
	}
}
