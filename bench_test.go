package scoped

import (
	"fmt"
	"testing"
)

func benchDeepScope(b *testing.B, ns *Local, depth int) *Scope {
	b.Helper()
	sc := ns.eng.root()
	for i := 0; i < depth; i++ {
		sc = ns.eng.enterCall(sc)
		ns.Set(sc, fmt.Sprintf("layer_%d", i), i)
	}
	return sc
}

func BenchmarkGetDeepAncestryExplicit(b *testing.B) {
	ns := New(WithBackend(BackendExplicit))
	ns.Set(nil, "target", "found")
	sc := benchDeepScope(b, ns, 10)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := ns.Get(sc, "target"); err != nil {
			b.Fatalf("get: %v", err)
		}
	}
}

func BenchmarkGetDeepAncestryNative(b *testing.B) {
	ns := New(WithBackend(BackendNative))
	ns.Set(nil, "target", "found")
	sc := benchDeepScope(b, ns, 10)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := ns.Get(sc, "target"); err != nil {
			b.Fatalf("get: %v", err)
		}
	}
}

func BenchmarkSnapshotDeepAncestry(b *testing.B) {
	ns := New(WithBackend(BackendExplicit))
	ns.Set(nil, "target", "found")
	sc := benchDeepScope(b, ns, 10)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if snap := ns.Snapshot(sc); len(snap) == 0 {
			b.Fatalf("empty snapshot")
		}
	}
}

func BenchmarkTraceNameDeepAncestry(b *testing.B) {
	ns := New(WithBackend(BackendExplicit))
	ns.Set(nil, "target", "found")
	sc := benchDeepScope(b, ns, 10)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		trace := ns.TraceName(sc, "target")
		if len(trace.Layers) == 0 {
			b.Fatalf("empty trace")
		}
	}
}
