package scoped

import (
	"strings"
	"testing"
)

type workerProfile struct {
	Tenant string `json:"tenant"`
	Limit  int    `json:"limit"`
	Debug  bool   `json:"debug"`
}

func TestHydrateDecodesVisibleBindings(t *testing.T) {
	forEachBackend(t, func(t *testing.T, ns *Local) {
		ns.Set(nil, "tenant", "acme")
		ns.Set(nil, "limit", 5)

		_, err := ns.Bind(func(sc *Scope) (any, error) {
			ns.Set(sc, "limit", 10)
			ns.Set(sc, "debug", true)

			profile, err := Hydrate[workerProfile](ns, sc)
			if err != nil {
				return nil, err
			}
			if profile.Tenant != "acme" || profile.Limit != 10 || !profile.Debug {
				t.Fatalf("unexpected profile: %+v", profile)
			}
			return nil, nil
		})(nil)
		if err != nil {
			t.Fatalf("bound call: %v", err)
		}
	})
}

func TestHydrateIgnoresExtraBindings(t *testing.T) {
	ns := New()
	ns.Set(nil, "tenant", "acme")
	ns.Set(nil, "unrelated", "x")

	profile, err := Hydrate[workerProfile](ns, nil)
	if err != nil {
		t.Fatalf("hydrate: %v", err)
	}
	if profile.Tenant != "acme" {
		t.Fatalf("unexpected profile: %+v", profile)
	}
}

func TestHydrateStrictRejectsExtraBindings(t *testing.T) {
	ns := New(WithName("app"))
	ns.Set(nil, "tenant", "acme")
	ns.Set(nil, "unrelated", "x")

	_, err := HydrateStrict[workerProfile](ns, nil)
	if err == nil {
		t.Fatalf("expected unknown-field error")
	}
	if !strings.Contains(err.Error(), "app") {
		t.Fatalf("expected namespace in error, got %v", err)
	}
}
