// Package hypermedia provides the wire types of the inventory REST API:
// resource envelopes carrying server-declared operations, problem documents
// and the callable form of an operation.
package hypermedia

import (
	"encoding/json"
)

// Operation describes an action the server permits on a resource.
type Operation struct {
	Rel      string `json:"rel" mapstructure:"rel"`
	Method   string `json:"method" mapstructure:"method"`
	Href     string `json:"href" mapstructure:"href"`
	ExpectsA string `json:"Expects-a,omitempty" mapstructure:"Expects-a"`
}

// Envelope is the body of every successful singular GET.
type Envelope struct {
	ID         string          `json:"Id,omitempty"`
	State      json.RawMessage `json:"state"`
	Operations []Operation     `json:"operations,omitempty"`
}

// DecodeState unmarshals the envelope state into v.
func (e Envelope) DecodeState(v any) error {
	if len(e.State) == 0 {
		return json.Unmarshal([]byte("null"), v)
	}
	return json.Unmarshal(e.State, v)
}

// Find returns the operation with the given rel.
func (e Envelope) Find(rel string) (Operation, bool) {
	for _, op := range e.Operations {
		if op.Rel == rel {
			return op, true
		}
	}
	return Operation{}, false
}

// Well-known operation rels.
const (
	RelUpdate  = "update"
	RelDelete  = "delete"
	RelCreate  = "create"
	RelBins    = "bins"
	RelBatches = "batches"
	RelReceive = "receive"
	RelRelease = "release"
	RelMove    = "move"
)

// Media types.
const (
	ContentTypeJSON    = "application/json"
	ContentTypeProblem = "application/problem+json"
)
