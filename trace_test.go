package scoped

import (
	"encoding/json"
	"testing"
)

func TestTraceNameReportsChainProvenance(t *testing.T) {
	forEachBackend(t, func(t *testing.T, ns *Local) {
		ns.Set(nil, "color", "red")

		mustBind(t, ns, func(sc *Scope) (any, error) {
			ns.Set(sc, "color", "blue")

			trace := ns.TraceName(sc, "color")
			if trace.Name != "color" {
				t.Fatalf("expected traced name, got %q", trace.Name)
			}
			found := 0
			for _, layer := range trace.Layers {
				if layer.Found {
					found++
				}
			}
			if found != 2 {
				t.Fatalf("expected both chain entries found, got %d in %+v", found, trace.Layers)
			}
			// Nearest-first: the shadow comes before the outer value.
			if trace.Layers[0].Value != "blue" {
				t.Fatalf("expected nearest entry blue, got %+v", trace.Layers[0])
			}
			last := trace.Layers[len(trace.Layers)-1]
			if last.Value != "red" {
				t.Fatalf("expected outer entry red, got %+v", last)
			}
			return nil, nil
		})
	})
}

func TestTraceNameMarksTombstones(t *testing.T) {
	forEachBackend(t, func(t *testing.T, ns *Local) {
		ns.Set(nil, "color", "red")

		mustBind(t, ns, func(sc *Scope) (any, error) {
			if err := ns.Delete(sc, "color"); err != nil {
				t.Fatalf("delete: %v", err)
			}
			trace := ns.TraceName(sc, "color")
			if len(trace.Layers) == 0 {
				t.Fatalf("expected provenance entries")
			}
			if !trace.Layers[0].Deleted {
				t.Fatalf("expected nearest entry tombstoned, got %+v", trace.Layers[0])
			}
			return nil, nil
		})
	})
}

func TestTraceJSONRoundTrip(t *testing.T) {
	trace := Trace{
		Name: "color",
		Layers: []Provenance{{
			ScopeID: "abc",
			Layer:   0,
			Value:   "blue",
			Found:   true,
		}, {
			ScopeID: "def",
			Layer:   1,
			Deleted: true,
			Found:   true,
		}},
	}
	raw, err := trace.ToJSON()
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if !json.Valid(raw) {
		t.Fatalf("expected valid json, got %s", raw)
	}
	restore, err := TraceFromJSON(raw)
	if err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if restore.Name != trace.Name || len(restore.Layers) != len(trace.Layers) {
		t.Fatalf("round trip mismatch: %+v vs %+v", restore, trace)
	}
	if !restore.Layers[1].Deleted {
		t.Fatalf("expected tombstone flag preserved, got %+v", restore.Layers[1])
	}
}
