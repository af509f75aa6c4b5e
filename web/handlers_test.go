package web

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"
	"time"

	"github.com/inventorius/inventorius-web/adapters/memory"
	"github.com/inventorius/inventorius-web/adapters/remote"
	"github.com/inventorius/inventorius-web/domain/inventory"
	"github.com/inventorius/inventorius-web/pkg/hypermedia"
	"github.com/inventorius/inventorius-web/ports"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHome(t *testing.T) {
	s := newTestShell(t)

	rec := s.get(t, "/")
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "API 9.9.9")
	assert.Contains(t, body, `href="/bin/BIN000001"`)
	assert.Contains(t, body, "M3 hex nut")
}

func TestHome_BackendDown(t *testing.T) {
	s := newTestShell(t)
	s.backend.Close()

	rec := s.get(t, "/")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "could not be reached")
}

func TestHome_RecentActivity(t *testing.T) {
	s := newTestShell(t)
	s.activity.Record(context.Background(), ports.Activity{
		Action:     "bin.receive",
		ResourceID: "BIN000002",
		Detail:     "4 SKU000002",
		Outcome:    ports.OutcomeOK,
	})

	rec := s.get(t, "/")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "4 SKU000002")
}

func TestResourcePage(t *testing.T) {
	s := newTestShell(t)

	tests := []struct {
		name string
		path string
		want []string
	}{
		{
			name: "bin",
			path: "/bin/BIN000001",
			want: []string{`href="/sku/SKU000001"`, "<td>120</td>", `action="/bin/BIN000001/update"`, `name="snapshot"`},
		},
		{
			name: "sku",
			path: "/sku/SKU000001",
			want: []string{"M3 hex bolt, 10mm", `href="/batch/BAT000001"`, `href="/bin/BIN000001"`, "400000000017"},
		},
		{
			name: "batch",
			path: "/batch/BAT000001",
			want: []string{"Spring order", `href="/sku/SKU000001"`, `href="/bin/BIN000002"`},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := s.get(t, tt.path)
			require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
			body := rec.Body.String()
			for _, want := range tt.want {
				assert.Contains(t, body, want)
			}
			assert.Contains(t, body, `id="hydration"`)
		})
	}
}

func TestResourcePage_Missing(t *testing.T) {
	s := newTestShell(t)

	rec := s.get(t, "/bin/BIN000099")
	require.Equal(t, http.StatusNotFound, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, `action="/new/bin"`)
	assert.Contains(t, body, `value="BIN000099"`)
}

func TestResourcePage_BadPath(t *testing.T) {
	s := newTestShell(t)

	for _, path := range []string{"/bin/SKU000001", "/widget/BIN000001", "/sku/nope"} {
		rec := s.get(t, path)
		assert.Equal(t, http.StatusNotFound, rec.Code, path)
	}
}

func TestResourcePage_BackendDown(t *testing.T) {
	s := newTestShell(t)
	s.backend.Close()

	rec := s.get(t, "/bin/BIN000001")
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Contains(t, rec.Body.String(), "could not be reached")
}

func TestResourcePage_HydrationIsEscaped(t *testing.T) {
	s := newTestShell(t)
	require.NoError(t, s.inv.CreateBin(inventory.NewBin{
		ID:    "BIN000010",
		Props: inventory.Props{"note": "</script><script>alert(1)</script>"},
	}))

	rec := s.get(t, "/bin/BIN000010")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotContains(t, rec.Body.String(), "<script>alert(1)")
}

func TestNewPage_SuggestsID(t *testing.T) {
	s := newTestShell(t)

	rec := s.get(t, "/new/bin")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `value="BIN000004"`)

	rec = s.get(t, "/new/batch?sku_id=SKU000002")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `value="BAT000002"`)
	assert.Contains(t, rec.Body.String(), `value="SKU000002"`)

	rec = s.get(t, "/new/bin?id=BIN000042")
	assert.Contains(t, rec.Body.String(), `value="BIN000042"`)

	rec = s.get(t, "/new/widget")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestNewSubmit_CreatesAndFlashes(t *testing.T) {
	s := newTestShell(t)

	rec := s.post(t, "/new/bin", url.Values{"id": {"BIN000010"}, "props": {`{"aisle": "4"}`}})
	require.Equal(t, http.StatusSeeOther, rec.Code, rec.Body.String())
	assert.Equal(t, "/bin/BIN000010", rec.Header().Get("Location"))

	bin, err := s.inv.Bin("BIN000010")
	require.NoError(t, err)
	assert.Equal(t, "4", bin.Props["aisle"])

	entries := s.activity.all()
	require.Len(t, entries, 1)
	assert.Equal(t, "bin.create", entries[0].Action)
	assert.True(t, entries[0].Succeeded())
	assert.Equal(t, "req_1", entries[0].RequestID)

	cookie := flashFrom(rec)
	require.NotNil(t, cookie, "flash cookie not set")

	rec = s.get(t, "/bin/BIN000010", cookie)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "BIN000010: bin created.")
	if c := flashFrom(rec); assert.NotNil(t, c) {
		assert.Equal(t, -1, c.MaxAge, "shown notices should clear the cookie")
	}
}

func TestNewSubmit_LocalValidation(t *testing.T) {
	s := newTestShell(t)

	rec := s.post(t, "/new/sku", url.Values{"id": {"SKU000010"}, "name": {""}})
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Contains(t, rec.Body.String(), "<code>name</code>")
	assert.Empty(t, s.activity.all(), "requests rejected locally are not recorded")

	_, err := s.inv.Sku("SKU000010")
	assert.ErrorIs(t, err, memory.ErrNotFound)
}

func TestNewSubmit_BadProps(t *testing.T) {
	s := newTestShell(t)

	rec := s.post(t, "/new/bin", url.Values{"id": {"BIN000010"}, "props": {"{not json"}})
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Contains(t, rec.Body.String(), "<code>props</code>")
}

func TestNewSubmit_Duplicate(t *testing.T) {
	s := newTestShell(t)

	rec := s.post(t, "/new/bin", url.Values{"id": {"BIN000001"}})
	require.Equal(t, http.StatusConflict, rec.Code)

	entries := s.activity.all()
	require.Len(t, entries, 1)
	assert.Equal(t, hypermedia.ProblemDuplicateResource, entries[0].Outcome)
}

func TestUpdateSubmit_Bin(t *testing.T) {
	s := newTestShell(t)

	rec := s.post(t, "/bin/BIN000003/update", url.Values{"props": {`{"aisle": "9"}`}})
	require.Equal(t, http.StatusSeeOther, rec.Code, rec.Body.String())
	assert.Equal(t, "/bin/BIN000003", rec.Header().Get("Location"))

	bin, err := s.inv.Bin("BIN000003")
	require.NoError(t, err)
	assert.Equal(t, "9", bin.Props["aisle"])
}

func TestUpdateSubmit_FromSnapshot(t *testing.T) {
	s := newTestShell(t)

	res, err := s.client.GetBin(context.Background(), "BIN000003")
	require.NoError(t, err)
	require.True(t, res.OK())
	snapshot, err := json.Marshal(res.Value.Snapshot())
	require.NoError(t, err)

	rec := s.post(t, "/bin/BIN000003/update", url.Values{
		"snapshot": {string(snapshot)},
		"props":    {`{"shelf": "top"}`},
	})
	require.Equal(t, http.StatusSeeOther, rec.Code, rec.Body.String())
	bin, err := s.inv.Bin("BIN000003")
	require.NoError(t, err)
	assert.Equal(t, "top", bin.Props["shelf"])

	// The same snapshot posted for another bin is refused.
	rec = s.post(t, "/bin/BIN000002/update", url.Values{
		"snapshot": {string(snapshot)},
		"props":    {`{}`},
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.post(t, "/bin/BIN000003/update", url.Values{"snapshot": {"not a snapshot"}})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDeleteSubmit_SnapshotStaysOnAPIHost(t *testing.T) {
	s := newTestShell(t)

	var foreign atomic.Int32
	other := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		foreign.Add(1)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer other.Close()

	snapshot, err := json.Marshal(map[string]any{
		"kind":  "bin",
		"state": map[string]any{"id": "BIN000003", "contents": map[string]any{}},
		"operations": []map[string]string{
			{"rel": "delete", "method": http.MethodDelete, "href": other.URL + "/internal/admin"},
		},
	})
	require.NoError(t, err)

	s.post(t, "/bin/BIN000003/delete", url.Values{"snapshot": {string(snapshot)}})
	assert.Zero(t, foreign.Load(), "operations must only reach the API host")

	_, err = s.inv.Bin("BIN000003")
	assert.NoError(t, err, "bin should still exist")
}

func TestUpdateSubmit_SnapshotWithoutID(t *testing.T) {
	s := newTestShell(t)

	snapshot, err := json.Marshal(map[string]any{
		"kind":  "bin",
		"state": map[string]any{"contents": map[string]any{}},
		"operations": []map[string]string{
			{"rel": "update", "method": http.MethodPatch, "href": "/api/bin/BIN000003"},
		},
	})
	require.NoError(t, err)

	rec := s.post(t, "/bin/BIN000003/update", url.Values{
		"snapshot": {string(snapshot)},
		"props":    {`{"shelf": "top"}`},
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	bin, err := s.inv.Bin("BIN000003")
	require.NoError(t, err)
	assert.NotContains(t, bin.Props, "shelf")
}

func TestUpdateSubmit_SkuNoChange(t *testing.T) {
	s := newTestShell(t)

	rec := s.post(t, "/sku/SKU000002/update", url.Values{
		"name":             {"M3 hex nut"},
		"owned_codes":      {"400000000024"},
		"associated_codes": {"NUT-M3"},
		"props":            {""},
	})
	require.Equal(t, http.StatusSeeOther, rec.Code, rec.Body.String())
	assert.Equal(t, "/sku/SKU000002", rec.Header().Get("Location"))

	cookie := flashFrom(rec)
	require.NotNil(t, cookie)
	notices := decodeFlash(cookie.Value)
	require.Len(t, notices, 1)
	assert.Equal(t, LevelInfo, notices[0].Level)
	assert.Empty(t, s.activity.all())
}

func TestUpdateSubmit_SkuRename(t *testing.T) {
	s := newTestShell(t)

	rec := s.post(t, "/sku/SKU000002/update", url.Values{
		"name":        {"M3 nylon nut"},
		"owned_codes": {"400000000024, 400000000031"},
	})
	require.Equal(t, http.StatusSeeOther, rec.Code, rec.Body.String())

	sku, err := s.inv.Sku("SKU000002")
	require.NoError(t, err)
	assert.Equal(t, "M3 nylon nut", sku.Name)
	assert.Equal(t, []string{"400000000024", "400000000031"}, sku.OwnedCodes)
}

func TestUpdateSubmit_Invalid(t *testing.T) {
	s := newTestShell(t)

	rec := s.post(t, "/sku/SKU000002/update", url.Values{"name": {""}})
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Contains(t, rec.Body.String(), "<code>name</code>")

	rec = s.post(t, "/batch/BAT000001/update", url.Values{"sku_id": {"BIN000001"}})
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Contains(t, rec.Body.String(), "<code>sku_id</code>")

	rec = s.post(t, "/bin/BIN000001/update", url.Values{"props": {"[1, 2]"}})
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestUpdateSubmit_Missing(t *testing.T) {
	s := newTestShell(t)

	rec := s.post(t, "/sku/SKU000099/update", url.Values{"name": {"Ghost"}})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDeleteSubmit_NonEmptyBin(t *testing.T) {
	s := newTestShell(t)

	rec := s.post(t, "/bin/BIN000001/delete", url.Values{})
	require.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	assert.Contains(t, rec.Body.String(), "requires force=true")

	_, err := s.inv.Bin("BIN000001")
	assert.NoError(t, err, "bin should still exist")

	entries := s.activity.all()
	require.Len(t, entries, 1)
	assert.Equal(t, "bin.delete", entries[0].Action)
	assert.False(t, entries[0].Succeeded())
	assert.True(t, entries[0].CreatedAt.IsZero(), "the activity recorder stamps entries")
}

func TestDeleteSubmit_EmptyBin(t *testing.T) {
	s := newTestShell(t)

	rec := s.post(t, "/bin/BIN000003/delete", url.Values{})
	require.Equal(t, http.StatusSeeOther, rec.Code, rec.Body.String())
	assert.Equal(t, "/", rec.Header().Get("Location"))

	_, err := s.inv.Bin("BIN000003")
	assert.ErrorIs(t, err, memory.ErrNotFound)
}

func TestContents(t *testing.T) {
	s := newTestShell(t)

	t.Run("receive", func(t *testing.T) {
		rec := s.post(t, "/receive", url.Values{"bin": {"BIN000003"}, "item": {"SKU000002"}, "quantity": {"5"}})
		require.Equal(t, http.StatusSeeOther, rec.Code, rec.Body.String())
		assert.Equal(t, "/bin/BIN000003", rec.Header().Get("Location"))

		bin, err := s.inv.Bin("BIN000003")
		require.NoError(t, err)
		assert.Equal(t, 5, bin.Quantity("SKU000002"))
	})

	t.Run("release", func(t *testing.T) {
		rec := s.post(t, "/release", url.Values{"bin": {"BIN000003"}, "item": {"SKU000002"}, "quantity": {"2"}})
		require.Equal(t, http.StatusSeeOther, rec.Code, rec.Body.String())

		bin, err := s.inv.Bin("BIN000003")
		require.NoError(t, err)
		assert.Equal(t, 3, bin.Quantity("SKU000002"))
	})

	t.Run("release too many", func(t *testing.T) {
		rec := s.post(t, "/release", url.Values{"bin": {"BIN000001"}, "item": {"SKU000001"}, "quantity": {"500"}})
		require.Equal(t, http.StatusMethodNotAllowed, rec.Code)
		assert.Contains(t, rec.Body.String(), "<code>quantity</code>")

		bin, err := s.inv.Bin("BIN000001")
		require.NoError(t, err)
		assert.Equal(t, 120, bin.Quantity("SKU000001"))
	})

	t.Run("move", func(t *testing.T) {
		rec := s.post(t, "/move", url.Values{
			"bin":         {"BIN000001"},
			"item":        {"SKU000001"},
			"quantity":    {"20"},
			"destination": {"BIN000003"},
		})
		require.Equal(t, http.StatusSeeOther, rec.Code, rec.Body.String())

		from, err := s.inv.Bin("BIN000001")
		require.NoError(t, err)
		to, err := s.inv.Bin("BIN000003")
		require.NoError(t, err)
		assert.Equal(t, 100, from.Quantity("SKU000001"))
		assert.Equal(t, 20, to.Quantity("SKU000001"))

		entries := s.activity.all()
		last := entries[len(entries)-1]
		assert.Equal(t, "bin.move", last.Action)
		assert.Equal(t, "20 SKU000001 to BIN000003", last.Detail)
	})

	t.Run("invalid form", func(t *testing.T) {
		before := len(s.activity.all())

		rec := s.post(t, "/receive", url.Values{"bin": {"SKU000001"}, "item": {"SKU000002"}, "quantity": {"1"}})
		assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

		rec = s.post(t, "/receive", url.Values{"bin": {"BIN000001"}, "item": {"SKU000002"}, "quantity": {"lots"}})
		assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

		rec = s.post(t, "/receive", url.Values{"bin": {"BIN000001"}, "item": {"SKU000002"}, "quantity": {"0"}})
		assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

		assert.Len(t, s.activity.all(), before)
	})
}

func TestContentsPage_Prefill(t *testing.T) {
	s := newTestShell(t)

	rec := s.get(t, "/move?bin=BIN000001&item=SKU000001")
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, `value="BIN000001"`)
	assert.Contains(t, body, `name="destination"`)
}

func TestSearchPage(t *testing.T) {
	s := newTestShell(t)

	rec := s.get(t, "/search?query=m3")
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, `href="/sku/SKU000001"`)
	assert.Contains(t, body, `href="/sku/SKU000002"`)
	assert.NotContains(t, body, `rel="next"`)

	rec = s.get(t, "/search?query=m3&limit=1")
	require.Equal(t, http.StatusOK, rec.Code)
	body = rec.Body.String()
	assert.Contains(t, body, `rel="next"`)
	assert.Contains(t, body, "page 1 of 2")
	assert.Contains(t, body, "page=2")

	rec = s.get(t, "/search?query=m3&limit=1&page=2")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `rel="prev"`)
	assert.Contains(t, rec.Body.String(), `href="/sku/SKU000002"`)
}

func TestSearchPage_NoResults(t *testing.T) {
	s := newTestShell(t)

	rec := s.get(t, "/search?query=nothing-here")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "No results")
}

func TestPartialSearch(t *testing.T) {
	s := newTestShell(t)

	rec := s.get(t, "/partials/search?query=BIN000002")
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, `href="/bin/BIN000002"`)
	assert.NotContains(t, body, "<html")

	s.backend.Close()
	rec = s.get(t, "/partials/search?query=BIN000002")
	assert.Equal(t, http.StatusBadGateway, rec.Code)
}

func TestPartialSearch_SessionSupersedes(t *testing.T) {
	inv := memory.NewInventory()
	require.NoError(t, memory.Seed(inv))
	api := memory.NewAPI(inv, "9.9.9", zerolog.Nop())

	started := make(chan struct{})
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("query") == "slow" {
			close(started)
			select {
			case <-r.Context().Done():
			case <-time.After(5 * time.Second):
			}
			return
		}
		api.ServeHTTP(w, r)
	}))
	defer backend.Close()

	h, err := NewHandler(Deps{
		API:      remote.NewClient(remote.Config{Hostname: backend.URL, Timeout: 10 * time.Second, Logger: zerolog.Nop()}),
		Logger:   zerolog.Nop(),
		Settings: func() Settings { return Settings{} },
	})
	require.NoError(t, err)
	router := h.Router()

	partial := func(query string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/partials/search?query="+query, nil)
		req.Header.Set("X-Search-Session", "tab-1")
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		return rec
	}

	slow := make(chan *httptest.ResponseRecorder, 1)
	go func() { slow <- partial("slow") }()
	<-started

	rec := partial("BIN000002")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `href="/bin/BIN000002"`)

	select {
	case rec := <-slow:
		assert.Equal(t, http.StatusNoContent, rec.Code)
		assert.Empty(t, rec.Body.String())
	case <-time.After(5 * time.Second):
		t.Fatal("superseded search did not return")
	}
}

func TestStatusMessage(t *testing.T) {
	assert.Equal(t, "BIN000001: bin created.", statusMessage("bin created", "BIN000001"))
	assert.Equal(t, "Items moved.", statusMessage("items moved", ""))
	assert.Equal(t, "Done.", statusMessage("", "BIN000001"))
}
