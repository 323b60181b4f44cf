package state

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
)

// storeContract exercises the behavior every backend must share.
func storeContract(t *testing.T, s Store) {
	t.Helper()
	ctx := context.Background()

	if _, err := s.Get(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for missing key, got %v", err)
	}

	if err := s.Put(ctx, "runner.one", []byte("alpha")); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	got, err := s.Get(ctx, "runner.one")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if string(got) != "alpha" {
		t.Errorf("expected alpha, got %q", got)
	}

	// Overwrite.
	if err := s.Put(ctx, "runner.one", []byte("beta")); err != nil {
		t.Fatalf("overwrite Put failed: %v", err)
	}
	got, err = s.Get(ctx, "runner.one")
	if err != nil {
		t.Fatalf("Get after overwrite failed: %v", err)
	}
	if string(got) != "beta" {
		t.Errorf("expected beta, got %q", got)
	}

	// Delete, including a missing key.
	if err := s.Delete(ctx, "runner.one"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if err := s.Delete(ctx, "runner.one"); err != nil {
		t.Fatalf("Delete of missing key failed: %v", err)
	}
	if _, err := s.Get(ctx, "runner.one"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}

	// Invalid keys.
	if err := s.Put(ctx, "", []byte("x")); !errors.Is(err, ErrInvalidKey) {
		t.Errorf("expected ErrInvalidKey for empty key, got %v", err)
	}
	if err := s.Put(ctx, "has space", []byte("x")); !errors.Is(err, ErrInvalidKey) {
		t.Errorf("expected ErrInvalidKey for key with space, got %v", err)
	}
}

func TestMemoryStoreContract(t *testing.T) {
	s := NewMemoryStore()
	defer s.Close()
	storeContract(t, s)
}

func TestSQLiteStoreContract(t *testing.T) {
	s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "state.db"))
	if err != nil {
		t.Fatalf("NewSQLiteStore failed: %v", err)
	}
	defer s.Close()
	storeContract(t, s)
}

func TestMemoryStoreClosed(t *testing.T) {
	s := NewMemoryStore()
	if err := s.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if err := s.Close(); !errors.Is(err, ErrClosed) {
		t.Fatalf("expected ErrClosed on double close, got %v", err)
	}

	ctx := context.Background()
	if err := s.Put(ctx, "k", nil); !errors.Is(err, ErrClosed) {
		t.Errorf("expected ErrClosed from Put, got %v", err)
	}
	if _, err := s.Get(ctx, "k"); !errors.Is(err, ErrClosed) {
		t.Errorf("expected ErrClosed from Get, got %v", err)
	}
}

func TestMemoryStoreCopiesValue(t *testing.T) {
	s := NewMemoryStore()
	defer s.Close()
	ctx := context.Background()

	buf := []byte("original")
	if err := s.Put(ctx, "k", buf); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	buf[0] = 'X'

	got, err := s.Get(ctx, "k")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if string(got) != "original" {
		t.Errorf("store aliased caller buffer: %q", got)
	}
}

func TestSQLiteStoreReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.db")
	ctx := context.Background()

	s, err := NewSQLiteStore(path)
	if err != nil {
		t.Fatalf("NewSQLiteStore failed: %v", err)
	}
	if err := s.Put(ctx, "runner.persist", []byte("survives")); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	s, err = NewSQLiteStore(path)
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	defer s.Close()

	got, err := s.Get(ctx, "runner.persist")
	if err != nil {
		t.Fatalf("Get after reopen failed: %v", err)
	}
	if string(got) != "survives" {
		t.Errorf("expected survives, got %q", got)
	}
}
