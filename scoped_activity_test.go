package scoped

import (
	"testing"

	"github.com/goliatone/go-scoped/pkg/activity"
)

func captureNamespace(backend Backend) (*Local, *activity.CaptureHook) {
	hook := &activity.CaptureHook{}
	ns := New(
		WithBackend(backend),
		WithName("app"),
		WithActivityHooks(activity.Hooks{hook}),
	)
	return ns, hook
}

func eventsByVerb(hook *activity.CaptureHook, verb string) []activity.Event {
	var out []activity.Event
	for _, evt := range hook.Events {
		if evt.Verb == verb {
			out = append(out, evt)
		}
	}
	return out
}

func TestBindingEventsCarryMetadata(t *testing.T) {
	ns, hook := captureNamespace(BackendExplicit)

	ns.Set(nil, "color", "red")
	if err := ns.Delete(nil, "color"); err != nil {
		t.Fatalf("delete: %v", err)
	}

	sets := eventsByVerb(hook, activity.VerbBindingSet)
	if len(sets) != 1 {
		t.Fatalf("expected one set event, got %d", len(sets))
	}
	evt := sets[0]
	if evt.ObjectType != "binding" || evt.ObjectID != "color" {
		t.Fatalf("unexpected event object: %+v", evt)
	}
	if evt.Metadata["namespace"] != "app" || evt.Metadata["backend"] != "explicit" {
		t.Fatalf("unexpected event metadata: %+v", evt.Metadata)
	}
	if evt.Metadata["new_value"] != "red" {
		t.Fatalf("expected new value in metadata, got %+v", evt.Metadata)
	}
	if evt.Channel != "scoped" {
		t.Fatalf("expected default channel, got %q", evt.Channel)
	}

	if deletes := eventsByVerb(hook, activity.VerbBindingDeleted); len(deletes) != 1 {
		t.Fatalf("expected one delete event, got %d", len(deletes))
	}
}

func TestScopeLifecycleEvents(t *testing.T) {
	ns, hook := captureNamespace(BackendExplicit)

	mustBind(t, ns, func(sc *Scope) (any, error) {
		return nil, nil
	})

	entered := eventsByVerb(hook, activity.VerbScopeEntered)
	exited := eventsByVerb(hook, activity.VerbScopeExited)
	if len(entered) != 1 || len(exited) != 1 {
		t.Fatalf("expected paired scope events, got %d entered %d exited", len(entered), len(exited))
	}
	if entered[0].Metadata["parent_id"] == nil {
		t.Fatalf("expected call scope to record its parent, got %+v", entered[0].Metadata)
	}
}

func TestTransferEventOnSuspendableBind(t *testing.T) {
	ns, hook := captureNamespace(BackendExplicit)

	result := mustBind(t, ns, func(sc *Scope) (any, error) {
		return Generate(ns, func(y *Yielder[int], sc *Scope) error {
			return nil
		}), nil
	})
	defer result.(*Generator[int]).Close(nil)

	if transfers := eventsByVerb(hook, activity.VerbScopeTransferred); len(transfers) != 1 {
		t.Fatalf("expected one transfer event, got %d", len(transfers))
	}
	if exits := eventsByVerb(hook, activity.VerbScopeExited); len(exits) != 0 {
		t.Fatalf("expected no exit when lifecycle transfers, got %d", len(exits))
	}
}

func TestActivityDisabledWithoutHooks(t *testing.T) {
	ns := New(WithName("app"))
	// Emission must be a no-op with no hooks attached.
	ns.Set(nil, "color", "red")
	if !ns.Has(nil, "color") {
		t.Fatalf("expected binding to work without hooks")
	}
}

func TestCustomActivityChannel(t *testing.T) {
	hook := &activity.CaptureHook{}
	ns := New(
		WithActivityHooks(activity.Hooks{hook}),
		WithActivityChannel("audit"),
	)
	ns.Set(nil, "color", "red")

	if len(hook.Events) == 0 {
		t.Fatalf("expected events captured")
	}
	if hook.Events[0].Channel != "audit" {
		t.Fatalf("expected audit channel, got %q", hook.Events[0].Channel)
	}
}
