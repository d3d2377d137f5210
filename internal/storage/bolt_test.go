package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/getstubd/stubd/pkg/execution"
	"github.com/getstubd/stubd/pkg/message"
)

func openTestBoltStore(t *testing.T) *BoltStore {
	t.Helper()
	store, err := OpenBoltStore(filepath.Join(t.TempDir(), "executions.db"))
	if err != nil {
		t.Fatalf("OpenBoltStore failed: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestBoltStore_Roundtrip(t *testing.T) {
	store := openTestBoltStore(t)
	ctx := context.Background()

	rec, err := store.Create(ctx, "createOrder", nil)
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if _, err := store.AttachAction(ctx, rec.ID, "receive"); err != nil {
		t.Fatalf("AttachAction failed: %v", err)
	}
	if _, err := store.AttachMessage(ctx, rec.ID, message.NewInbound("hello")); err != nil {
		t.Fatalf("AttachMessage failed: %v", err)
	}
	if err := store.Complete(ctx, rec.ID, execution.StatusSuccess, ""); err != nil {
		t.Fatalf("Complete failed: %v", err)
	}

	got, err := store.Get(ctx, rec.ID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.Status != execution.StatusSuccess || got.EndedAt == nil {
		t.Errorf("record not completed: %+v", got)
	}
	if len(got.Actions) != 1 || got.Actions[0].Name != "receive" {
		t.Errorf("unexpected actions: %+v", got.Actions)
	}
	if len(got.Messages) != 1 || got.Messages[0].Payload != "hello" {
		t.Errorf("unexpected messages: %+v", got.Messages)
	}
}

func TestBoltStore_CompleteOnce(t *testing.T) {
	store := openTestBoltStore(t)
	ctx := context.Background()

	rec, _ := store.Create(ctx, "s", nil)
	if err := store.Complete(ctx, rec.ID, execution.StatusFailed, "boom"); err != nil {
		t.Fatalf("Complete failed: %v", err)
	}
	if err := store.Complete(ctx, rec.ID, execution.StatusSuccess, ""); err != nil {
		t.Fatalf("second Complete returned error: %v", err)
	}

	got, _ := store.Get(ctx, rec.ID)
	if got.Status != execution.StatusFailed || got.ErrorMessage != "boom" {
		t.Errorf("first terminal state did not stand: %+v", got)
	}
}

func TestBoltStore_AttachMessageIdempotent(t *testing.T) {
	store := openTestBoltStore(t)
	ctx := context.Background()

	rec, _ := store.Create(ctx, "s", nil)
	in := message.NewInbound("hello")
	if _, err := store.AttachMessage(ctx, rec.ID, in); err != nil {
		t.Fatalf("AttachMessage failed: %v", err)
	}
	if _, err := store.AttachMessage(ctx, rec.ID, in.Clone()); err != nil {
		t.Fatalf("duplicate AttachMessage failed: %v", err)
	}

	got, _ := store.Get(ctx, rec.ID)
	if len(got.Messages) != 1 {
		t.Errorf("len(Messages) = %d, want 1", len(got.Messages))
	}
}

func TestBoltStore_ListAndDeleteAll(t *testing.T) {
	store := openTestBoltStore(t)
	ctx := context.Background()

	a, _ := store.Create(ctx, "alpha", nil)
	b, _ := store.Create(ctx, "beta", nil)

	got, err := store.List(ctx, execution.ListFilter{})
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(got) != 2 || got[0].ID != b.ID || got[1].ID != a.ID {
		t.Errorf("expected newest-first listing, got %+v", got)
	}

	got, _ = store.List(ctx, execution.ListFilter{ScenarioName: "alpha"})
	if len(got) != 1 || got[0].ID != a.ID {
		t.Errorf("scenario filter failed: %+v", got)
	}

	if err := store.DeleteAll(ctx); err != nil {
		t.Fatalf("DeleteAll failed: %v", err)
	}
	if _, err := store.Get(ctx, a.ID); !errors.Is(err, execution.ErrRecordNotFound) {
		t.Errorf("Get after DeleteAll = %v, want ErrRecordNotFound", err)
	}
}

func TestBoltStore_SurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "executions.db")
	ctx := context.Background()

	store, err := OpenBoltStore(path)
	if err != nil {
		t.Fatalf("OpenBoltStore failed: %v", err)
	}
	rec, _ := store.Create(ctx, "s", nil)
	_ = store.Complete(ctx, rec.ID, execution.StatusSuccess, "")
	if err := store.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	store, err = OpenBoltStore(path)
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	defer store.Close()

	got, err := store.Get(ctx, rec.ID)
	if err != nil {
		t.Fatalf("Get after reopen failed: %v", err)
	}
	if got.Status != execution.StatusSuccess {
		t.Errorf("Status = %q, want %q", got.Status, execution.StatusSuccess)
	}
}
