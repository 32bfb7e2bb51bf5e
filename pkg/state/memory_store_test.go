package state_test

import (
	"context"
	"testing"

	"github.com/goliatone/go-scoped/pkg/state"
)

func TestMemoryStoreRoundTrip(t *testing.T) {
	store := state.NewMemoryStore[map[string]any]()
	ref := state.Ref{Namespace: "app", Key: "session"}

	if _, _, ok, err := store.Load(context.Background(), ref); err != nil || ok {
		t.Fatalf("expected empty store, got ok=%t err=%v", ok, err)
	}

	meta := state.Meta{SnapshotID: "snap-1", ETag: "v1", Extra: map[string]string{"source": "test"}}
	saved, err := store.Save(context.Background(), ref, map[string]any{"color": "red"}, meta)
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if saved.ETag != "v1" {
		t.Fatalf("expected save to echo meta, got %+v", saved)
	}

	snapshot, loaded, ok, err := store.Load(context.Background(), ref)
	if err != nil || !ok {
		t.Fatalf("load: ok=%t err=%v", ok, err)
	}
	if snapshot["color"] != "red" {
		t.Fatalf("unexpected snapshot: %+v", snapshot)
	}
	if loaded.SnapshotID != "snap-1" || loaded.Extra["source"] != "test" {
		t.Fatalf("unexpected meta: %+v", loaded)
	}

	// Meta is cloned on both paths.
	loaded.Extra["source"] = "mutated"
	_, reloaded, _, err := store.Load(context.Background(), ref)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if reloaded.Extra["source"] != "test" {
		t.Fatalf("meta not isolated: %+v", reloaded)
	}
}

func TestMemoryStoreRejectsInvalidRef(t *testing.T) {
	store := state.NewMemoryStore[map[string]any]()

	if _, err := store.Save(context.Background(), state.Ref{Key: "session"}, nil, state.Meta{}); err == nil {
		t.Fatalf("expected error for missing namespace")
	}
	if _, _, _, err := store.Load(context.Background(), state.Ref{Namespace: "app"}); err == nil {
		t.Fatalf("expected error for missing key")
	}
}
