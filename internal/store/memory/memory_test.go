package memory

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"gastos/internal/store"
)

func TestMemoryStoreCRUD(t *testing.T) {
	ctx := context.Background()
	s := New(nil)

	id, err := s.AddRecord(ctx, store.Record{Fecha: "2025-01-05", Descripcion: "pan", Cantidad: 3.5, Persona: "Ana"})
	if err != nil || id == "" {
		t.Fatalf("unexpected add: id=%q err=%v", id, err)
	}
	if err := s.UpdateRecord(ctx, id, store.Record{Fecha: "2025-01-06", Descripcion: "pan", Cantidad: 4.0}); err != nil {
		t.Fatalf("update: %v", err)
	}
	recs, _ := s.ListRecords(ctx)
	if len(recs) != 1 || recs[0].ID != id || recs[0].Fecha != "2025-01-06" {
		t.Fatalf("unexpected records: %+v", recs)
	}
	if err := s.DeleteRecord(ctx, id); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := s.DeleteRecord(ctx, id); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := s.UpdateRecord(ctx, "missing", store.Record{}); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestMemoryAllowListAndUsers(t *testing.T) {
	ctx := context.Background()
	s := New([]string{"Ana@Example.com", "ana@example.com", " "})

	ok, _ := s.IsAllowed(ctx, "ana@example.com")
	if !ok {
		t.Fatalf("expected ana to be allowed")
	}
	ok, _ = s.IsAllowed(ctx, "bob@example.com")
	if ok {
		t.Fatalf("bob should not be allowed yet")
	}
	_ = s.Allow(ctx, "BOB@example.com")
	if ok, _ = s.IsAllowed(ctx, "bob@example.com"); !ok {
		t.Fatalf("expected bob to be allowed")
	}

	u := store.NewUser("ana@example.com", "Ana", "hash")
	if err := s.CreateUser(ctx, u); err != nil {
		t.Fatalf("create user: %v", err)
	}
	if err := s.CreateUser(ctx, u); !errors.Is(err, store.ErrUserExists) {
		t.Fatalf("expected ErrUserExists, got %v", err)
	}
	got, err := s.GetUserByEmail(ctx, "ANA@example.com")
	if err != nil || got.DisplayName != "Ana" {
		t.Fatalf("unexpected user %+v err=%v", got, err)
	}
	if _, err := s.GetUserByEmail(ctx, "nobody@example.com"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestNewFromFilesSeeds(t *testing.T) {
	dir := t.TempDir()
	s, err := NewFromFiles(dir)
	if err != nil {
		t.Fatalf("empty dir: %v", err)
	}
	if recs, _ := s.ListRecords(context.Background()); len(recs) != 0 {
		t.Fatalf("expected empty store")
	}

	mustWrite := func(name, content string) {
		t.Helper()
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}
	mustWrite("seed_allowlist.txt", "# family\nana@example.com\n\nana@example.com\n")
	mustWrite("seed_expenses.json", `[{"id":"a","fecha":"2025-01-05","descripcion":"pan","cantidad":"3,5"},{"fecha":"2025-01-06","descripcion":"leche","cantidad":2}]`)

	s, err = NewFromFiles(dir)
	if err != nil {
		t.Fatalf("seeded dir: %v", err)
	}
	recs, _ := s.ListRecords(context.Background())
	if len(recs) != 2 || recs[0].ID != "a" || recs[0].Cantidad != "3,5" || recs[1].ID == "" {
		t.Fatalf("unexpected seeded records: %+v", recs)
	}
	if ok, _ := s.IsAllowed(context.Background(), "ana@example.com"); !ok {
		t.Fatalf("expected seeded allow-list")
	}
}
