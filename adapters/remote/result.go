package remote

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/inventorius/inventorius-web/domain/inventory"
	"github.com/inventorius/inventorius-web/pkg/hypermedia"
)

// Kind tags what a Result holds.
type Kind string

// Result kinds.
const (
	KindBin            Kind = "bin"
	KindSku            Kind = "sku"
	KindBatch          Kind = "batch"
	KindNextBin        Kind = "next-bin"
	KindNextSku        Kind = "next-sku"
	KindNextBatch      Kind = "next-batch"
	KindSkuLocations   Kind = "sku-locations"
	KindSkuBatches     Kind = "sku-batches"
	KindBatchLocations Kind = "batch-locations"
	KindSearchResults  Kind = "search-results"
	KindStatus         Kind = "status"
	KindServiceStatus  Kind = "service-status"
	KindStats          Kind = "stats"
	KindProblem        Kind = "problem"
)

// Result is either a decoded value or the problem the server returned
// instead. Transport failures are reported as errors, never as a Result.
type Result[T any] struct {
	Kind       Kind
	Value      T
	Problem    *hypermedia.Problem
	StatusCode int
}

// ErrEmptyResult is returned by Err for the zero Result that accompanies a
// transport or decode error.
var ErrEmptyResult = errors.New("empty result")

// OK reports whether the result holds a value. The zero Result is not OK.
func (r Result[T]) OK() bool {
	return r.Kind != "" && r.Kind != KindProblem
}

// Err returns the problem as an error, or nil for a successful result.
func (r Result[T]) Err() error {
	if r.OK() {
		return nil
	}
	if r.Problem == nil {
		return ErrEmptyResult
	}
	return &hypermedia.ProblemError{Problem: *r.Problem}
}

func nextKind(k inventory.Kind) Kind {
	return Kind("next-" + string(k))
}

func problemResult[T any](c *Client, status int, data []byte) Result[T] {
	p := parseProblem(status, data)
	c.metrics.APIProblem(p.Type)
	return Result[T]{Kind: KindProblem, Problem: &p, StatusCode: status}
}

// parseProblem decodes a problem document, falling back to a generic
// unexpected-response problem when the body is not one.
func parseProblem(status int, data []byte) hypermedia.Problem {
	var p hypermedia.Problem
	if err := json.Unmarshal(data, &p); err != nil || p.Type == "" {
		p = hypermedia.NewProblem(hypermedia.ProblemUnexpectedResponse,
			fmt.Sprintf("%d %s", status, http.StatusText(status)))
	}
	p.Status = status
	return p
}

// invalid converts a client-side validation failure into a problem result
// shaped like the one the server would have returned.
func invalid[T any](c *Client, err error) Result[T] {
	fields := inventory.FieldErrors(err)
	params := make([]hypermedia.InvalidParam, 0, len(fields))
	for _, f := range fields {
		params = append(params, hypermedia.InvalidParam{Name: f.Name, Reason: f.Reason})
	}
	p := hypermedia.Validation(params...)
	c.metrics.APIProblem(p.Type)
	return Result[T]{Kind: KindProblem, Problem: &p}
}

func nonPositive(c *Client) Result[inventory.Status] {
	p := hypermedia.Validation(hypermedia.InvalidParam{Name: "quantity", Reason: "must be a positive integer"})
	c.metrics.APIProblem(p.Type)
	return Result[inventory.Status]{Kind: KindProblem, Problem: &p}
}

func readBody(resp *http.Response) ([]byte, error) {
	defer resp.Body.Close()
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	return data, nil
}

func decodeEnvelope[T any](c *Client, resp *http.Response, kind Kind, build func(hypermedia.Envelope) (T, error)) (Result[T], error) {
	data, err := readBody(resp)
	if err != nil {
		return Result[T]{}, err
	}
	if !isSuccess(resp.StatusCode) {
		return problemResult[T](c, resp.StatusCode, data), nil
	}

	var env hypermedia.Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return Result[T]{}, fmt.Errorf("%w: %s: %v", ErrDecode, kind, err)
	}
	v, err := build(env)
	if err != nil {
		return Result[T]{}, fmt.Errorf("%w: %s: %v", ErrDecode, kind, err)
	}
	return Result[T]{Kind: kind, Value: v, StatusCode: resp.StatusCode}, nil
}

// DecodeStatus decodes the response of a mutation. Callers that performed a
// declared operation themselves use it to interpret the outcome.
func (c *Client) DecodeStatus(resp *http.Response) (Result[inventory.Status], error) {
	return decodeStatus(c, resp)
}

func decodeStatus(c *Client, resp *http.Response) (Result[inventory.Status], error) {
	data, err := readBody(resp)
	if err != nil {
		return Result[inventory.Status]{}, err
	}
	if !isSuccess(resp.StatusCode) {
		return problemResult[inventory.Status](c, resp.StatusCode, data), nil
	}

	// Mutations answer either {Id, status} or an envelope whose state
	// holds the status.
	var body struct {
		ID     string `json:"Id"`
		Status string `json:"status"`
		State  *struct {
			Status string `json:"status"`
		} `json:"state"`
	}
	if len(data) > 0 {
		if err := json.Unmarshal(data, &body); err != nil {
			return Result[inventory.Status]{}, fmt.Errorf("%w: status: %v", ErrDecode, err)
		}
	}
	s := inventory.Status{ID: body.ID, Status: body.Status}
	if s.Status == "" && body.State != nil {
		s.Status = body.State.Status
	}
	return Result[inventory.Status]{Kind: KindStatus, Value: s, StatusCode: resp.StatusCode}, nil
}
