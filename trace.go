package scoped

import (
	"encoding/json"
)

// Trace captures provenance information for a binding lookup across the
// ancestor layers that would be consulted to produce the effective value.
type Trace struct {
	Name   string       `json:"name"`
	Layers []Provenance `json:"layers"`
}

// Provenance details how one chain entry contributes to a traced binding.
// Entries appear nearest-first; the first entry with Found true (and Deleted
// false) is the one Get would return.
type Provenance struct {
	ScopeID string `json:"scope_id"`
	Layer   int    `json:"layer"`
	Value   any    `json:"value,omitempty"`
	Found   bool   `json:"found"`
	Deleted bool   `json:"deleted,omitempty"`
}

// TraceName reports how name resolves from sc, one entry per consulted chain
// position. A nil sc traces from the namespace root.
func (ns *Local) TraceName(sc *Scope, name string) Trace {
	return Trace{
		Name:   name,
		Layers: ns.eng.trace(ns.cur(sc), name),
	}
}

// ToJSON serialises the trace into JSON for logging or transport helpers.
func (t Trace) ToJSON() ([]byte, error) {
	type alias Trace
	return json.Marshal(alias(t))
}

// TraceFromJSON deserialises a JSON payload that was previously generated via
// ToJSON.
func TraceFromJSON(payload []byte) (Trace, error) {
	type alias Trace
	var trace alias
	if err := json.Unmarshal(payload, &trace); err != nil {
		return Trace{}, err
	}
	return Trace(trace), nil
}
