package hypermedia

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
)

// ErrOperationNotDeclared is returned when a resource is asked to perform an
// operation the server did not advertise for it.
var ErrOperationNotDeclared = errors.New("operation not declared by server")

// Doer executes HTTP requests. *http.Client satisfies it.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

type bodyKind int

const (
	bodyNone bodyKind = iota
	bodyRaw
	bodyJSON
)

// Body is the payload of an operation call.
type Body struct {
	kind bodyKind
	raw  string
	json any
}

// NoBody sends the request without a body.
func NoBody() Body { return Body{} }

// RawBody sends s unmodified and sets no content type.
func RawBody(s string) Body { return Body{kind: bodyRaw, raw: s} }

// JSONBody sends v encoded as JSON with Content-Type application/json.
func JSONBody(v any) Body { return Body{kind: bodyJSON, json: v} }

// Callable is an operation bound to a hostname and an HTTP transport.
type Callable struct {
	Operation
	Hostname string
	doer     Doer
}

// NewCallable binds op to hostname. A nil doer uses http.DefaultClient.
// An absolute href keeps only its path and query.
func NewCallable(op Operation, hostname string, doer Doer) Callable {
	op.Href = RelativeHref(op.Href)
	return Callable{Operation: op, Hostname: hostname, doer: doer}
}

// Rebind returns a copy of the callable targeting another hostname and
// transport. An absolute href keeps only its path and query.
func (c Callable) Rebind(hostname string, doer Doer) Callable {
	c.Href = RelativeHref(c.Href)
	c.Hostname = hostname
	c.doer = doer
	return c
}

// URL returns the absolute target of the operation.
func (c Callable) URL() string {
	return JoinURL(c.Hostname, c.Href)
}

// Perform issues the operation's request. Non-2xx responses are returned as-is;
// only transport failures produce an error. The caller closes the body.
func (c Callable) Perform(ctx context.Context, body Body) (*http.Response, error) {
	var (
		reader      io.Reader
		contentType string
	)
	switch body.kind {
	case bodyRaw:
		reader = strings.NewReader(body.raw)
	case bodyJSON:
		data, err := json.Marshal(body.json)
		if err != nil {
			return nil, fmt.Errorf("marshal %s body: %w", c.Rel, err)
		}
		reader = bytes.NewReader(data)
		contentType = ContentTypeJSON
	}

	req, err := http.NewRequestWithContext(ctx, c.Method, c.URL(), reader)
	if err != nil {
		return nil, fmt.Errorf("create %s request: %w", c.Rel, err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("Accept", ContentTypeJSON)

	doer := c.doer
	if doer == nil {
		doer = http.DefaultClient
	}
	resp, err := doer.Do(req)
	if err != nil {
		return nil, fmt.Errorf("perform %s: %w", c.Rel, err)
	}
	return resp, nil
}

// Operations maps rel to callable operation.
type Operations map[string]Callable

// NewOperations binds every declared operation to hostname.
func NewOperations(ops []Operation, hostname string, doer Doer) Operations {
	out := make(Operations, len(ops))
	for _, op := range ops {
		out[op.Rel] = NewCallable(op, hostname, doer)
	}
	return out
}

// Has reports whether rel was declared.
func (o Operations) Has(rel string) bool {
	_, ok := o[rel]
	return ok
}

// Perform invokes the operation named rel.
func (o Operations) Perform(ctx context.Context, rel string, body Body) (*http.Response, error) {
	op, ok := o[rel]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrOperationNotDeclared, rel)
	}
	return op.Perform(ctx, body)
}

// Rebind returns a copy with every operation retargeted.
func (o Operations) Rebind(hostname string, doer Doer) Operations {
	out := make(Operations, len(o))
	for rel, op := range o {
		out[rel] = op.Rebind(hostname, doer)
	}
	return out
}

// Descriptors returns the plain operation descriptors sorted by rel.
func (o Operations) Descriptors() []Operation {
	out := make([]Operation, 0, len(o))
	for _, op := range o {
		out = append(out, op.Operation)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Rel < out[j].Rel })
	return out
}

// JoinURL joins hostname and href with exactly one slash. The scheme and
// host of an absolute href are dropped, so requests always go to hostname.
func JoinURL(hostname, href string) string {
	return strings.TrimRight(hostname, "/") + "/" + strings.TrimLeft(RelativeHref(href), "/")
}

// RelativeHref strips the scheme, userinfo and host from href, keeping its
// path, query and fragment.
func RelativeHref(href string) string {
	u, err := url.Parse(href)
	if err != nil || (u.Scheme == "" && u.Host == "") {
		return href
	}
	rel := url.URL{Path: u.Path, RawPath: u.RawPath, RawQuery: u.RawQuery, Fragment: u.Fragment}
	out := rel.String()
	if !strings.HasPrefix(out, "/") {
		out = "/" + out
	}
	return out
}
