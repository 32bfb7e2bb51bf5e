package activity

import (
	"strings"
	"time"
)

// Verbs emitted by the scoped namespace lifecycle.
const (
	VerbScopeEntered     = "scope.entered"
	VerbScopeExited      = "scope.exited"
	VerbScopeTransferred = "scope.transferred"
	VerbBindingSet       = "binding.set"
	VerbBindingDeleted   = "binding.deleted"
	VerbTaskSpawned      = "task.spawned"
	VerbWorkSubmitted    = "work.submitted"
)

// ScopeEventInput describes the common fields for scope lifecycle events.
type ScopeEventInput struct {
	ActorID    string
	UserID     string
	TenantID   string
	Channel    string
	Namespace  string
	Backend    string
	ScopeID    string
	ParentID   string
	Binding    string
	NewValue   any
	Metadata   map[string]any
	OccurredAt time.Time
}

// BuildScopeEvent constructs a normalized activity event for a scope or
// binding lifecycle verb.
func BuildScopeEvent(verb string, input ScopeEventInput) Event {
	objectType := "scope"
	if strings.HasPrefix(verb, "binding.") {
		objectType = "binding"
	}

	metadata := cloneMap(input.Metadata)
	if input.Namespace != "" {
		metadata = ensureMetadata(metadata)
		metadata["namespace"] = input.Namespace
	}
	if input.Backend != "" {
		metadata = ensureMetadata(metadata)
		metadata["backend"] = input.Backend
	}
	if input.ParentID != "" {
		metadata = ensureMetadata(metadata)
		metadata["parent_id"] = input.ParentID
	}
	if input.Binding != "" {
		metadata = ensureMetadata(metadata)
		metadata["binding"] = input.Binding
	}
	if input.NewValue != nil {
		metadata = ensureMetadata(metadata)
		metadata["new_value"] = input.NewValue
	}

	objectID := strings.TrimSpace(input.ScopeID)
	if objectType == "binding" && input.Binding != "" {
		objectID = strings.TrimSpace(input.Binding)
	}
	if objectID == "" {
		objectID = objectType
	}

	return Event{
		Verb:       verb,
		ActorID:    strings.TrimSpace(input.ActorID),
		UserID:     strings.TrimSpace(input.UserID),
		TenantID:   strings.TrimSpace(input.TenantID),
		ObjectType: objectType,
		ObjectID:   objectID,
		Channel:    strings.TrimSpace(input.Channel),
		Metadata:   metadata,
		OccurredAt: input.OccurredAt,
	}
}

func ensureMetadata(meta map[string]any) map[string]any {
	if meta == nil {
		return map[string]any{}
	}
	return meta
}
