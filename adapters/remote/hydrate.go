package remote

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/iancoleman/strcase"
	"github.com/inventorius/inventorius-web/domain/inventory"
	"github.com/inventorius/inventorius-web/pkg/hypermedia"
	"github.com/mitchellh/mapstructure"
)

// ErrNotHydratable is returned when Hydrate cannot rebuild a resource from
// the value it was given.
var ErrNotHydratable = errors.New("cannot hydrate value")

// Snapshot is the plain serializable form of a resource, used to pass a
// resource from the server-rendered page to client-side code and back.
type Snapshot struct {
	Kind       Kind                   `json:"kind"`
	ID         string                 `json:"Id,omitempty"`
	State      json.RawMessage        `json:"state"`
	Operations []hypermedia.Operation `json:"operations,omitempty"`
	Query      string                 `json:"query,omitempty"`
}

// rawSnapshot is a snapshot decoded from an untyped map.
type rawSnapshot struct {
	Kind       string                 `mapstructure:"kind"`
	ID         string                 `mapstructure:"Id"`
	State      any                    `mapstructure:"state"`
	Operations []hypermedia.Operation `mapstructure:"operations"`
	Query      string                 `mapstructure:"query"`
}

// Hydrate binds v to this client. v may be a Resource, a Snapshot, its JSON
// encoding or an untyped map. Hydrating a resource already bound to c
// returns it unchanged; any other resource is returned as a copy whose
// operations target c's host.
func (c *Client) Hydrate(v any) (Resource, error) {
	switch x := v.(type) {
	case nil:
		return nil, fmt.Errorf("%w: nil", ErrNotHydratable)
	case Resource:
		if x.boundTo() == c {
			return x, nil
		}
		return x.rebind(c), nil
	case Snapshot:
		return c.fromSnapshot(x)
	case *Snapshot:
		if x == nil {
			return nil, fmt.Errorf("%w: nil snapshot", ErrNotHydratable)
		}
		return c.fromSnapshot(*x)
	case json.RawMessage:
		return c.fromJSON(x)
	case []byte:
		return c.fromJSON(x)
	case string:
		return c.fromJSON([]byte(x))
	case map[string]any:
		return c.fromMap(x)
	default:
		return nil, fmt.Errorf("%w: %T", ErrNotHydratable, v)
	}
}

func (c *Client) fromJSON(data []byte) (Resource, error) {
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotHydratable, err)
	}
	return c.fromMap(m)
}

func (c *Client) fromSnapshot(s Snapshot) (Resource, error) {
	env := hypermedia.Envelope{ID: s.ID, State: s.State, Operations: s.Operations}
	kind := s.Kind
	if kind == "" {
		kind = inferKind(s.State)
	}

	var (
		r   Resource
		err error
	)
	switch kind {
	case KindBin:
		r, err = newBin(c, env)
	case KindSku:
		r, err = newSku(c, env)
	case KindBatch:
		r, err = newBatch(c, env)
	case KindNextBin:
		r, err = newNext(c, inventory.KindBin, env)
	case KindNextSku:
		r, err = newNext(c, inventory.KindSku, env)
	case KindNextBatch:
		r, err = newNext(c, inventory.KindBatch, env)
	case KindSearchResults:
		var state inventory.SearchState
		if err := env.DecodeState(&state); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrNotHydratable, err)
		}
		q := inventory.SearchQuery{Query: s.Query, Limit: state.Limit, StartingFrom: state.StartingFrom}
		r, err = newSearchResults(c, env, q.Normalize())
	default:
		return nil, fmt.Errorf("%w: kind %q", ErrNotHydratable, kind)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotHydratable, err)
	}
	return r, nil
}

// fromMap accepts snapshots whose state keys use either snake_case or the
// camelCase of older clients.
func (c *Client) fromMap(m map[string]any) (Resource, error) {
	var raw rawSnapshot
	if err := mapstructure.Decode(m, &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotHydratable, err)
	}

	state := normalizeState(raw.State)
	kind := Kind(raw.Kind)
	if kind == "" {
		if fields, ok := state.(map[string]any); ok {
			if id, ok := fields["id"].(string); ok {
				if k, ok := inventory.KindOf(id); ok {
					kind = Kind(k)
				}
			}
		}
	}

	fields, isMap := state.(map[string]any)
	if isMap {
		switch kind {
		case KindBin:
			var s inventory.BinState
			if err := decodeFields(fields, &s); err != nil {
				return nil, err
			}
			return bindBin(c, raw.ID, raw.Operations, s), nil
		case KindSku:
			var s inventory.SkuState
			if err := decodeFields(fields, &s); err != nil {
				return nil, err
			}
			return bindSku(c, raw.ID, raw.Operations, s), nil
		case KindBatch:
			var s inventory.BatchState
			if err := decodeFields(fields, &s); err != nil {
				return nil, err
			}
			return bindBatch(c, raw.ID, raw.Operations, s), nil
		}
	}

	data, err := json.Marshal(state)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotHydratable, err)
	}
	return c.fromSnapshot(Snapshot{Kind: kind, ID: raw.ID, State: data, Operations: raw.Operations, Query: raw.Query})
}

func decodeFields(fields map[string]any, out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           out,
		TagName:          "mapstructure",
		WeaklyTypedInput: true,
	})
	if err != nil {
		return err
	}
	if err := dec.Decode(fields); err != nil {
		return fmt.Errorf("%w: %v", ErrNotHydratable, err)
	}
	return nil
}

// normalizeState rewrites the top-level keys of a state object, and of each
// search result, to snake_case. Property names are left untouched.
func normalizeState(state any) any {
	fields, ok := state.(map[string]any)
	if !ok {
		return state
	}
	out := make(map[string]any, len(fields))
	for k, v := range fields {
		key := k
		if k != "props" && strings.ToLower(k) != k {
			key = strcase.ToSnake(k)
		}
		if key == "results" {
			if list, ok := v.([]any); ok {
				normalized := make([]any, len(list))
				for i, item := range list {
					normalized[i] = normalizeState(item)
				}
				v = normalized
			}
		}
		out[key] = v
	}
	return out
}

func inferKind(state json.RawMessage) Kind {
	var probe struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(state, &probe); err != nil {
		return ""
	}
	if k, ok := inventory.KindOf(probe.ID); ok {
		return Kind(k)
	}
	return ""
}
