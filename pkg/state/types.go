package state

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	scoped "github.com/goliatone/go-scoped"
)

var ErrETagMismatch = errors.New("state: etag mismatch")

var ErrNotFound = errors.New("state: snapshot not found")

// Ref identifies one persisted snapshot within a namespace.
type Ref struct {
	Namespace string
	Key       string
}

// Identifier returns the canonical storage key for the reference.
func (r Ref) Identifier() (string, error) {
	if r.Namespace == "" {
		return "", fmt.Errorf("state: namespace is required")
	}
	if r.Key == "" {
		return "", fmt.Errorf("state: key is required")
	}
	return fmt.Sprintf("%s/%s", r.Namespace, r.Key), nil
}

// Meta is storage-owned metadata used for trace/audit and concurrency control.
type Meta struct {
	SnapshotID string            `json:"snapshot_id,omitempty"`
	ETag       string            `json:"etag,omitempty"`
	UpdatedAt  time.Time         `json:"updated_at,omitempty"`
	Extra      map[string]string `json:"extra,omitempty"`
}

// Store loads/saves one snapshot for a single reference.
type Store[T any] interface {
	Load(ctx context.Context, ref Ref) (snapshot T, meta Meta, ok bool, err error)
	Save(ctx context.Context, ref Ref, snapshot T, meta Meta) (Meta, error)
}

// Mutator edits a loaded snapshot in place before it is written back.
type Mutator func(map[string]any) error

// Checkpointer captures and replays binding snapshots for one namespace.
type Checkpointer struct {
	NS    *scoped.Local
	Store Store[map[string]any]
}

// Save captures the bindings visible from sc and persists them under ref.
// A non-empty meta.ETag must match the stored record's ETag or the write is
// rejected. The returned Meta always carries a fresh SnapshotID and ETag.
func (c Checkpointer) Save(ctx context.Context, sc *scoped.Scope, ref Ref, meta Meta) (Meta, error) {
	if err := c.validate(); err != nil {
		return Meta{}, err
	}
	if _, err := ref.Identifier(); err != nil {
		return Meta{}, err
	}

	_, stored, ok, err := c.Store.Load(ctx, ref)
	if err != nil {
		return Meta{}, fmt.Errorf("state: load %q: %w", ref.Key, err)
	}
	if ok && meta.ETag != "" && stored.ETag != "" && meta.ETag != stored.ETag {
		return stored, fmt.Errorf("%w: expected %q, got %q", ErrETagMismatch, meta.ETag, stored.ETag)
	}

	saved, err := c.Store.Save(ctx, ref, c.NS.Snapshot(sc), stampMeta(meta))
	if err != nil {
		return Meta{}, fmt.Errorf("state: save %q: %w", ref.Key, err)
	}
	return saved, nil
}

// Restore loads the snapshot stored under ref and runs fn in an isolated
// scope with those bindings layered strongest over the namespace root.
func (c Checkpointer) Restore(ctx context.Context, ref Ref, fn scoped.Func) (any, Meta, error) {
	if err := c.validate(); err != nil {
		return nil, Meta{}, err
	}

	snapshot, meta, ok, err := c.Store.Load(ctx, ref)
	if err != nil {
		return nil, Meta{}, fmt.Errorf("state: load %q: %w", ref.Key, err)
	}
	if !ok {
		return nil, Meta{}, fmt.Errorf("%w: %s", ErrNotFound, ref.Key)
	}

	value, err := c.NS.RunIsolatedWith(nil, snapshot, fn)
	return value, meta, err
}

// Update loads the snapshot under ref (an empty map when missing), applies
// fn, and writes the result back under optimistic-locking rules.
func (c Checkpointer) Update(ctx context.Context, ref Ref, meta Meta, fn Mutator) (Meta, error) {
	if err := c.validate(); err != nil {
		return Meta{}, err
	}
	if fn == nil {
		return Meta{}, fmt.Errorf("state: mutator is required")
	}

	snapshot, stored, ok, err := c.Store.Load(ctx, ref)
	if err != nil {
		return Meta{}, fmt.Errorf("state: load %q: %w", ref.Key, err)
	}
	if !ok {
		snapshot = map[string]any{}
		stored = Meta{}
	}
	if meta.ETag != "" && stored.ETag != "" && meta.ETag != stored.ETag {
		return stored, fmt.Errorf("%w: expected %q, got %q", ErrETagMismatch, meta.ETag, stored.ETag)
	}

	if err := fn(snapshot); err != nil {
		return stored, err
	}

	saved, err := c.Store.Save(ctx, ref, snapshot, stampMeta(mergeMeta(stored, meta)))
	if err != nil {
		return stored, fmt.Errorf("state: save %q: %w", ref.Key, err)
	}
	return saved, nil
}

func (c Checkpointer) validate() error {
	if c.NS == nil {
		return fmt.Errorf("state: namespace is required")
	}
	if c.Store == nil {
		return fmt.Errorf("state: store is required")
	}
	return nil
}

// stampMeta assigns a fresh SnapshotID and ETag so every successful write is
// distinguishable for optimistic locking and provenance.
func stampMeta(meta Meta) Meta {
	out := meta
	out.SnapshotID = uuid.NewString()
	out.ETag = uuid.NewString()
	if out.UpdatedAt.IsZero() {
		out.UpdatedAt = time.Now().UTC()
	}
	return out
}

func mergeMeta(base, override Meta) Meta {
	out := base
	if !override.UpdatedAt.IsZero() {
		out.UpdatedAt = override.UpdatedAt
	}
	if override.Extra != nil {
		out.Extra = override.Extra
	}
	return out
}
