package hypermedia

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestJoinURL(t *testing.T) {
	tests := []struct {
		host string
		href string
		want string
	}{
		{"http://x", "/api/bin/BIN000001", "http://x/api/bin/BIN000001"},
		{"http://x/", "/api/bin/BIN000001", "http://x/api/bin/BIN000001"},
		{"http://x", "api/bins", "http://x/api/bins"},
		{"", "/api/bins", "/api/bins"},
		{"http://x", "https://other/api/bins", "http://x/api/bins"},
		{"http://x", "http://10.0.0.1:9000/internal/admin?force=1", "http://x/internal/admin?force=1"},
		{"http://x", "//other/api/bins", "http://x/api/bins"},
	}

	for _, tt := range tests {
		if got := JoinURL(tt.host, tt.href); got != tt.want {
			t.Errorf("JoinURL(%q, %q) = %q, want %q", tt.host, tt.href, got, tt.want)
		}
	}
}

func TestRelativeHref(t *testing.T) {
	tests := []struct {
		href string
		want string
	}{
		{"/api/bin/BIN000001", "/api/bin/BIN000001"},
		{"api/bins", "api/bins"},
		{"https://user:pw@other:8443/api/bins?limit=5", "/api/bins?limit=5"},
		{"http://other", "/"},
	}

	for _, tt := range tests {
		if got := RelativeHref(tt.href); got != tt.want {
			t.Errorf("RelativeHref(%q) = %q, want %q", tt.href, got, tt.want)
		}
	}
}

// recordingDoer captures requests without touching the network.
type recordingDoer struct {
	req  *http.Request
	body string
	err  error
}

func (d *recordingDoer) Do(req *http.Request) (*http.Response, error) {
	d.req = req
	if req.Body != nil {
		data, _ := io.ReadAll(req.Body)
		d.body = string(data)
	}
	if d.err != nil {
		return nil, d.err
	}
	return &http.Response{
		StatusCode: http.StatusConflict,
		Body:       io.NopCloser(strings.NewReader(`{}`)),
		Header:     make(http.Header),
	}, nil
}

func TestCallable_DeleteWithoutBody(t *testing.T) {
	doer := &recordingDoer{}
	op := NewCallable(Operation{Rel: "delete", Method: http.MethodDelete, Href: "/api/bin/BIN000001"}, "http://x", doer)

	resp, err := op.Perform(context.Background(), NoBody())
	if err != nil {
		t.Fatalf("Perform error: %v", err)
	}
	resp.Body.Close()

	if doer.req.Method != http.MethodDelete {
		t.Errorf("Method = %q, want DELETE", doer.req.Method)
	}
	if doer.req.URL.String() != "http://x/api/bin/BIN000001" {
		t.Errorf("URL = %q", doer.req.URL.String())
	}
	if doer.body != "" {
		t.Errorf("body = %q, want empty", doer.body)
	}
	if ct := doer.req.Header.Get("Content-Type"); ct != "" {
		t.Errorf("Content-Type = %q, want empty", ct)
	}
}

func TestCallable_JSONBody(t *testing.T) {
	doer := &recordingDoer{}
	op := NewCallable(Operation{Rel: "update", Method: http.MethodPatch, Href: "/api/bin/BIN000001"}, "http://x", doer)

	resp, err := op.Perform(context.Background(), JSONBody(map[string]any{"props": map[string]any{"a": 1}}))
	if err != nil {
		t.Fatalf("Perform error: %v", err)
	}
	resp.Body.Close()

	if ct := doer.req.Header.Get("Content-Type"); ct != ContentTypeJSON {
		t.Errorf("Content-Type = %q, want %q", ct, ContentTypeJSON)
	}
	if doer.body != `{"props":{"a":1}}` {
		t.Errorf("body = %q", doer.body)
	}
}

func TestCallable_RawBody(t *testing.T) {
	doer := &recordingDoer{}
	op := NewCallable(Operation{Rel: "update", Method: http.MethodPut, Href: "/x"}, "http://x", doer)

	resp, err := op.Perform(context.Background(), RawBody("not json at all"))
	if err != nil {
		t.Fatalf("Perform error: %v", err)
	}
	resp.Body.Close()

	if doer.body != "not json at all" {
		t.Errorf("body = %q", doer.body)
	}
	if ct := doer.req.Header.Get("Content-Type"); ct != "" {
		t.Errorf("Content-Type = %q, want empty", ct)
	}
}

func TestCallable_NonSuccessIsNotError(t *testing.T) {
	doer := &recordingDoer{}
	op := NewCallable(Operation{Rel: "create", Method: http.MethodPost, Href: "/api/bins"}, "http://x", doer)

	resp, err := op.Perform(context.Background(), JSONBody(map[string]string{"id": "BIN1"}))
	if err != nil {
		t.Fatalf("Perform error: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusConflict {
		t.Errorf("StatusCode = %d, want 409", resp.StatusCode)
	}
}

func TestCallable_TransportError(t *testing.T) {
	boom := errors.New("connection refused")
	op := NewCallable(Operation{Rel: "delete", Method: http.MethodDelete, Href: "/x"}, "http://x", &recordingDoer{err: boom})

	_, err := op.Perform(context.Background(), NoBody())
	if !errors.Is(err, boom) {
		t.Errorf("error = %v, want wrapped %v", err, boom)
	}
}

func TestCallable_AgainstServer(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/bins" {
			t.Errorf("unexpected %s %s", r.Method, r.URL.Path)
		}
		w.WriteHeader(http.StatusCreated)
	}))
	defer server.Close()

	op := NewCallable(Operation{Rel: "create", Method: http.MethodPost, Href: "/api/bins"}, server.URL, server.Client())
	resp, err := op.Perform(context.Background(), JSONBody(map[string]string{"id": "BIN000001"}))
	if err != nil {
		t.Fatalf("Perform error: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		t.Errorf("StatusCode = %d, want 201", resp.StatusCode)
	}
}

func TestOperations(t *testing.T) {
	doer := &recordingDoer{}
	ops := NewOperations([]Operation{
		{Rel: "update", Method: http.MethodPatch, Href: "/api/sku/SKU1"},
		{Rel: "delete", Method: http.MethodDelete, Href: "/api/sku/SKU1"},
	}, "http://a", doer)

	if !ops.Has("update") || ops.Has("bins") {
		t.Error("Has mismatch")
	}

	_, err := ops.Perform(context.Background(), "bins", NoBody())
	if !errors.Is(err, ErrOperationNotDeclared) {
		t.Errorf("error = %v, want ErrOperationNotDeclared", err)
	}

	rebound := ops.Rebind("http://b", doer)
	if rebound["delete"].URL() != "http://b/api/sku/SKU1" {
		t.Errorf("rebound URL = %q", rebound["delete"].URL())
	}
	if ops["delete"].URL() != "http://a/api/sku/SKU1" {
		t.Error("Rebind modified the original")
	}

	desc := ops.Descriptors()
	if len(desc) != 2 || desc[0].Rel != "delete" || desc[1].Rel != "update" {
		t.Errorf("Descriptors() = %+v", desc)
	}
}
