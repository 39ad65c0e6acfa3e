package router

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func respond(status int) HandlerFunc {
	return func(_ *http.Request, _ Params) Response {
		return Response{Status: status}
	}
}

func do(t *testing.T, table *Table, method, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(method, path, nil)
	table.ServeHTTP(rec, req)
	return rec
}

func TestFirstStructuralMatchWins(t *testing.T) {
	table := New(nil)
	if err := table.Handle(http.MethodPost, "/org/{org_id}", respond(201)); err != nil {
		t.Fatal(err)
	}
	if err := table.Handle(Wildcard, "/org/{org_id}", respond(299)); err != nil {
		t.Fatal(err)
	}
	if err := table.Handle(Wildcard, Wildcard, respond(404)); err != nil {
		t.Fatal(err)
	}

	if rec := do(t, table, http.MethodPost, "/org/acme"); rec.Code != 201 {
		t.Fatalf("POST matched %d, want 201", rec.Code)
	}
	// Same path, different method: the POST entry is skipped, the wildcard
	// method entry catches it.
	if rec := do(t, table, http.MethodDelete, "/org/acme"); rec.Code != 299 {
		t.Fatalf("DELETE matched %d, want 299", rec.Code)
	}
}

func TestMethodMismatchFallsThroughToTerminalWildcard(t *testing.T) {
	table := New(nil)
	_ = table.Handle(http.MethodPost, "/org/{org_id}", respond(201))
	_ = table.Handle(Wildcard, Wildcard, respond(404))

	if rec := do(t, table, http.MethodGet, "/org/acme"); rec.Code != 404 {
		t.Fatalf("got %d, want 404", rec.Code)
	}
}

func TestCapturedParams(t *testing.T) {
	table := New(nil)
	var got Params
	_ = table.Handle(http.MethodPut, "/org/{org_id}/streams/{stream_id}", func(_ *http.Request, p Params) Response {
		got = p
		return Response{Status: 201}
	})
	_ = table.Handle(Wildcard, Wildcard, respond(404))

	do(t, table, http.MethodPut, "/org/acme/streams/main")
	if got["org_id"] != "acme" || got["stream_id"] != "main" {
		t.Fatalf("params = %v", got)
	}
}

func TestTrailingSlashInsignificant(t *testing.T) {
	table := New(nil)
	_ = table.Handle(http.MethodPost, "/org/{org_id}/", respond(201))
	_ = table.Handle(Wildcard, Wildcard, respond(404))

	if rec := do(t, table, http.MethodPost, "/org/acme"); rec.Code != 201 {
		t.Fatalf("no-slash request got %d", rec.Code)
	}
	if rec := do(t, table, http.MethodPost, "/org/acme/"); rec.Code != 201 {
		t.Fatalf("slash request got %d", rec.Code)
	}
}

func TestPlaceholderDoesNotSpanSegments(t *testing.T) {
	table := New(nil)
	_ = table.Handle(http.MethodGet, "/stream/{stream_id}", respond(200))
	_ = table.Handle(Wildcard, Wildcard, respond(404))

	if rec := do(t, table, http.MethodGet, "/stream/main/viewers"); rec.Code != 404 {
		t.Fatalf("got %d, want 404", rec.Code)
	}
}

func TestDuplicateParameterIsConfigurationError(t *testing.T) {
	table := New(nil)
	if err := table.Handle(http.MethodGet, "/org/{id}/streams/{id}", respond(200)); err == nil {
		t.Fatal("expected duplicate parameter error")
	}
}

func TestNilHandlerAdmits(t *testing.T) {
	admitted := false
	var gotStream string
	table := New(func(w http.ResponseWriter, _ *http.Request, p Params) {
		admitted = true
		gotStream = p["stream_id"]
		w.WriteHeader(http.StatusSwitchingProtocols)
	})
	_ = table.Handle(http.MethodGet, "/stream/{stream_id}", nil)
	_ = table.Handle(Wildcard, Wildcard, respond(404))

	rec := do(t, table, http.MethodGet, "/stream/main")
	if !admitted {
		t.Fatal("admit callback not invoked")
	}
	if gotStream != "main" {
		t.Fatalf("stream_id = %q", gotStream)
	}
	if rec.Code != http.StatusSwitchingProtocols {
		t.Fatalf("got %d", rec.Code)
	}
}

func TestOptionsListsRegisteredMethods(t *testing.T) {
	table := New(nil)
	_ = table.Handle(http.MethodPost, "/org/{org_id}", respond(201))
	_ = table.Handle(http.MethodDelete, "/org/{org_id}", respond(200))
	_ = table.Handle(http.MethodPut, "/org/{org_id}/emotes", respond(200))
	_ = table.Handle(Wildcard, Wildcard, respond(404))

	rec := do(t, table, http.MethodOptions, "/anything/at/all")
	if rec.Code != http.StatusNoContent {
		t.Fatalf("got %d, want 204", rec.Code)
	}
	allow := rec.Header().Get("Access-Control-Allow-Methods")
	for _, m := range []string{"POST", "DELETE", "PUT"} {
		if !strings.Contains(allow, m) {
			t.Fatalf("allow header %q missing %s", allow, m)
		}
	}
	if strings.Contains(allow, Wildcard) {
		t.Fatalf("allow header %q should not list the wildcard", allow)
	}
	if rec.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Fatal("missing CORS origin header")
	}
}

func TestDefaultHeadersMergedNotOverridden(t *testing.T) {
	table := New(nil)
	_ = table.Handle(http.MethodGet, "/org/{org_id}/emotes", func(_ *http.Request, _ Params) Response {
		h := make(http.Header)
		h.Set("Access-Control-Allow-Origin", "https://overlay.example.com")
		h.Set("Content-Type", "application/json")
		return Response{Status: 200, Header: h, Body: []byte("[]")}
	})
	_ = table.Handle(Wildcard, Wildcard, respond(404))

	rec := do(t, table, http.MethodGet, "/org/acme/emotes")
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "https://overlay.example.com" {
		t.Fatalf("handler header overridden: %q", got)
	}
	if rec.Body.String() != "[]" {
		t.Fatalf("body = %q", rec.Body.String())
	}
}

func TestNoMatchWithoutWildcardRespondsNotFound(t *testing.T) {
	table := New(nil)
	_ = table.Handle(http.MethodPost, "/org/{org_id}", respond(201))

	rec := do(t, table, http.MethodGet, "/nothing/here")
	if rec.Code != 404 {
		t.Fatalf("got %d, want 404", rec.Code)
	}
	if rec.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Fatal("missing default CORS header")
	}
}
