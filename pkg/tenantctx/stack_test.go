package tenantctx

import (
	"context"
	"testing"
)

func TestPushCurrentPop(t *testing.T) {
	ctx := context.Background()

	if got := Current(ctx); got != "" {
		t.Fatalf("Current on fresh ctx = %q, want empty", got)
	}

	ctx, err := Push(ctx, "tenant-a")
	if err != nil {
		t.Fatalf("Push: %v", err)
	}
	if got := Current(ctx); got != "tenant-a" {
		t.Fatalf("Current = %q, want tenant-a", got)
	}
	if got := Depth(ctx); got != 1 {
		t.Fatalf("Depth = %d, want 1", got)
	}

	Pop(ctx)
	if got := Current(ctx); got != "" {
		t.Fatalf("Current after pop = %q, want empty", got)
	}
	if got := Depth(ctx); got != 0 {
		t.Fatalf("Depth after pop = %d, want 0", got)
	}
}

func TestPushRejectsBlank(t *testing.T) {
	ctx := context.Background()
	if _, err := Push(ctx, ""); err != ErrEmptyTenant {
		t.Fatalf("Push(\"\") error = %v, want ErrEmptyTenant", err)
	}
	if _, err := Push(ctx, "   "); err != ErrEmptyTenant {
		t.Fatalf("Push(whitespace) error = %v, want ErrEmptyTenant", err)
	}
}

func TestRequireFailsClosed(t *testing.T) {
	ctx := context.Background()
	if _, err := Require(ctx); err != ErrMissingTenantContext {
		t.Fatalf("Require on empty stack error = %v, want ErrMissingTenantContext", err)
	}

	ctx, err := Push(ctx, "tenant-a")
	if err != nil {
		t.Fatalf("Push: %v", err)
	}
	got, err := Require(ctx)
	if err != nil {
		t.Fatalf("Require: %v", err)
	}
	if got != "tenant-a" {
		t.Fatalf("Require = %q, want tenant-a", got)
	}
}

func TestPopIdempotentOnEmpty(t *testing.T) {
	ctx := context.Background()
	Pop(ctx) // must not panic on an uninstalled stack

	ctx, _ = Push(ctx, "tenant-a")
	Pop(ctx)
	Pop(ctx) // must not panic on an exhausted stack
	if got := Depth(ctx); got != 0 {
		t.Fatalf("Depth = %d, want 0", got)
	}
}

func TestNestedPushPop(t *testing.T) {
	ctx := context.Background()
	ctx, _ = Push(ctx, "outer")
	inner, _ := Push(ctx, "inner")

	if got := Current(inner); got != "inner" {
		t.Fatalf("Current(inner) = %q, want inner", got)
	}
	Pop(inner)
	if got := Current(inner); got != "outer" {
		t.Fatalf("Current after inner pop = %q, want outer", got)
	}
	Pop(inner)
	if got := Depth(inner); got != 0 {
		t.Fatalf("Depth after both pops = %d, want 0", got)
	}
}

func TestDetachStartsFreshStack(t *testing.T) {
	ctx := context.Background()
	ctx, _ = Push(ctx, "tenant-a")

	detached := Detach(ctx)
	if got := Current(detached); got != "" {
		t.Fatalf("Current(detached) = %q, want empty — stacks must not be shared across tasks", got)
	}

	detached, _ = Push(detached, "tenant-b")
	if got := Current(ctx); got != "tenant-a" {
		t.Fatalf("Current(original) = %q, want tenant-a unaffected by detached push", got)
	}
	if got := Current(detached); got != "tenant-b" {
		t.Fatalf("Current(detached) = %q, want tenant-b", got)
	}
}
