package record

import (
	"context"
	"testing"

	"github.com/relink-labs/relink/kv"
)

func TestStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	mem := kv.NewMemory()
	store := NewStore(mem)

	rec := Record{Key: "abc", Value: "https://example.com", Token: "tok"}
	if err := store.Put(ctx, rec, 0); err != nil {
		t.Fatalf("put: %v", err)
	}

	// The adapter owns the prefix: the raw store must see it, callers must not.
	if _, err := mem.Get(ctx, Prefix+"abc"); err != nil {
		t.Fatalf("expected prefixed key in backing store: %v", err)
	}

	got, err := store.Get(ctx, "abc")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got != rec {
		t.Fatalf("got %+v want %+v", got, rec)
	}
}

func TestStoreGetAbsent(t *testing.T) {
	store := NewStore(kv.NewMemory())
	if _, err := store.Get(context.Background(), "nope"); err != kv.ErrNotFound {
		t.Fatalf("expected kv.ErrNotFound, got %v", err)
	}
}

func TestStoreCorruptBytesReadAsAbsent(t *testing.T) {
	ctx := context.Background()
	mem := kv.NewMemory()
	if err := mem.Put(ctx, Prefix+"bad", []byte("{corrupt"), 0); err != nil {
		t.Fatalf("seed corrupt bytes: %v", err)
	}

	store := NewStore(mem)
	if _, err := store.Get(ctx, "bad"); err != kv.ErrNotFound {
		t.Fatalf("corrupt bytes must surface as not found, got %v", err)
	}
}

func TestStoreDeleteIdempotent(t *testing.T) {
	ctx := context.Background()
	store := NewStore(kv.NewMemory())
	if err := store.Delete(ctx, "absent"); err != nil {
		t.Fatalf("delete of absent key: %v", err)
	}
}

func TestStoreListStripsPrefix(t *testing.T) {
	ctx := context.Background()
	mem := kv.NewMemory()
	store := NewStore(mem)

	for _, k := range []string{"aa", "bb", "cc"} {
		rec := Record{Key: k, Value: "https://example.com/" + k, Token: "t"}
		if err := store.Put(ctx, rec, 0); err != nil {
			t.Fatalf("put %s: %v", k, err)
		}
	}

	page, err := store.List(ctx, "", 2)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(page.Keys) != 2 || page.Complete {
		t.Fatalf("expected incomplete page of 2, got %+v", page)
	}
	for _, k := range page.Keys {
		if k.Name != "aa" && k.Name != "bb" {
			t.Fatalf("unexpected or unstripped key %q", k.Name)
		}
	}

	page, err = store.List(ctx, page.Cursor, 2)
	if err != nil {
		t.Fatalf("list page 2: %v", err)
	}
	if len(page.Keys) != 1 || !page.Complete {
		t.Fatalf("expected complete final page of 1, got %+v", page)
	}
	if page.Keys[0].Name != "cc" {
		t.Fatalf("expected cc, got %q", page.Keys[0].Name)
	}
}
