package hypermedia

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
)

// Problem types reported by the inventory API.
const (
	ProblemValidation         = "validation-error"
	ProblemDuplicateResource  = "duplicate-resource"
	ProblemMissingResource    = "missing-resource"
	ProblemInsufficientQty    = "insufficient-quantity"
	ProblemInvalidCredentials = "invalid-credentials"
	ProblemAccountDeactivated = "account-deactivated"
	ProblemDangerousOperation = "dangerous-operation"
	ProblemResourceInUse      = "resource-in-use"
	ProblemUnexpectedResponse = "unexpected-response"
)

// Problem is an application/problem+json error document.
type Problem struct {
	Type          string         `json:"type"`
	Title         string         `json:"title"`
	InvalidParams []InvalidParam `json:"invalid-params,omitempty"`
	ID            string         `json:"Id,omitempty"`
	Operations    []Operation    `json:"operations,omitempty"`
	Status        int            `json:"-"`
}

// InvalidParam names a rejected request field.
type InvalidParam struct {
	Name   string `json:"name"`
	Reason string `json:"reason"`
}

// IsMissingResource reports whether the requested resource does not exist.
func (p Problem) IsMissingResource() bool {
	return p.Type == ProblemMissingResource
}

// Find returns the operation with the given rel, such as the create
// operation offered alongside a missing resource.
func (p Problem) Find(rel string) (Operation, bool) {
	for _, op := range p.Operations {
		if op.Rel == rel {
			return op, true
		}
	}
	return Operation{}, false
}

// Describe returns the title followed by any invalid parameters.
func (p Problem) Describe() string {
	if len(p.InvalidParams) == 0 {
		return p.Title
	}
	parts := make([]string, 0, len(p.InvalidParams))
	for _, ip := range p.InvalidParams {
		parts = append(parts, ip.Name+": "+ip.Reason)
	}
	return p.Title + " (" + strings.Join(parts, "; ") + ")"
}

// ProblemError adapts a Problem to the error interface for callers that only
// report failures.
type ProblemError struct {
	Problem Problem
}

func (e *ProblemError) Error() string {
	if e.Problem.Status != 0 {
		return fmt.Sprintf("%s: %s", http.StatusText(e.Problem.Status), e.Problem.Describe())
	}
	return e.Problem.Describe()
}

// NewProblem creates a problem of the given type and title.
func NewProblem(typ, title string) Problem {
	return Problem{Type: typ, Title: title}
}

// MissingResource creates the problem reported for an unknown resource.
func MissingResource(id string) Problem {
	return Problem{
		Type:  ProblemMissingResource,
		Title: "Resource does not exist.",
		ID:    id,
	}
}

// Validation creates a validation-error problem with the given parameters.
func Validation(params ...InvalidParam) Problem {
	return Problem{
		Type:          ProblemValidation,
		Title:         "Input did not validate.",
		InvalidParams: params,
	}
}

// WriteProblem writes p with the problem media type.
func WriteProblem(w http.ResponseWriter, status int, p Problem) {
	w.Header().Set("Content-Type", ContentTypeProblem)
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(p)
}

// WriteEnvelope writes a resource envelope with state encoded from v.
func WriteEnvelope(w http.ResponseWriter, status int, id string, state any, ops ...Operation) {
	data, err := json.Marshal(state)
	if err != nil {
		WriteProblem(w, http.StatusInternalServerError, NewProblem(ProblemUnexpectedResponse, err.Error()))
		return
	}
	w.Header().Set("Content-Type", ContentTypeJSON)
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(Envelope{ID: id, State: data, Operations: ops})
}
