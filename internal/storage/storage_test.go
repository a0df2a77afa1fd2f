package storage

import (
	"context"
	"testing"

	logx "worldgate/pkg/logx"
)

func TestMemoryRoundTrip(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	m := NewMemory()

	if _, ok, err := m.GetInt64(ctx, "missing"); err != nil || ok {
		t.Fatalf("get missing = ok=%v err=%v, want absent", ok, err)
	}

	if err := m.SetInt64(ctx, "k", 42); err != nil {
		t.Fatalf("set: %v", err)
	}
	v, ok, err := m.GetInt64(ctx, "k")
	if err != nil || !ok || v != 42 {
		t.Fatalf("get = %d ok=%v err=%v, want 42", v, ok, err)
	}

	// Last writer wins.
	if err := m.SetInt64(ctx, "k", -7); err != nil {
		t.Fatalf("set: %v", err)
	}
	if v, _, _ := m.GetInt64(ctx, "k"); v != -7 {
		t.Fatalf("get after overwrite = %d, want -7", v)
	}
}

func TestOpenDisabled(t *testing.T) {
	t.Parallel()

	for _, driver := range []string{"", "none", " NONE "} {
		s, err := Open(Config{Driver: driver}, logx.Nop())
		if err != nil {
			t.Fatalf("Open(%q) error: %v", driver, err)
		}
		if s != nil {
			t.Fatalf("Open(%q) returned a store", driver)
		}
	}
}

func TestOpenUnknownDriver(t *testing.T) {
	t.Parallel()

	if _, err := Open(Config{Driver: "etcd"}, logx.Nop()); err == nil {
		t.Fatalf("unknown driver accepted")
	}
}

func TestOpenMemoryDriver(t *testing.T) {
	t.Parallel()

	s, err := Open(Config{Driver: "memory"}, logx.Nop())
	if err != nil || s == nil {
		t.Fatalf("Open(memory) = %v, %v", s, err)
	}
	defer s.Close()

	if err := s.SetInt64(context.Background(), "k", 1); err != nil {
		t.Fatalf("set: %v", err)
	}
}
