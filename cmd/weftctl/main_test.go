package main

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestParseArgs(t *testing.T) {
	args := parseArgs([]string{"--file", "wf.json", "--async", "--id", "abc"})
	if args["file"] != "wf.json" {
		t.Errorf("expected file=wf.json, got %q", args["file"])
	}
	if args["async"] != "true" {
		t.Errorf("expected bare flag to read true, got %q", args["async"])
	}
	if args["id"] != "abc" {
		t.Errorf("expected id=abc, got %q", args["id"])
	}

	args = parseArgs(nil)
	if len(args) != 0 {
		t.Errorf("expected empty map, got %v", args)
	}
}

func newTestClient(handler http.Handler) (*apiClient, *httptest.Server) {
	srv := httptest.NewServer(handler)
	return &apiClient{base: srv.URL, token: "tok", http: &http.Client{Timeout: time.Second}}, srv
}

func TestClientSendsBearerToken(t *testing.T) {
	var gotAuth string
	client, srv := newTestClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	var out map[string]any
	if err := client.do("GET", "/api/status", nil, &out); err != nil {
		t.Fatalf("do: %v", err)
	}
	if gotAuth != "Bearer tok" {
		t.Errorf("expected bearer token header, got %q", gotAuth)
	}
	if out["ok"] != true {
		t.Errorf("expected decoded response, got %v", out)
	}
}

func TestClientSurfacesAPIError(t *testing.T) {
	client, srv := newTestClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error":"invalid workflow: cycle detected"}`))
	}))
	defer srv.Close()

	err := client.do("POST", "/api/runs", nil, nil)
	if err == nil {
		t.Fatal("expected error")
	}
	if err.Error() != "invalid workflow: cycle detected" {
		t.Errorf("expected API error message, got %q", err.Error())
	}
}

func TestClientFallsBackToStatusText(t *testing.T) {
	client, srv := newTestClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte("boom"))
	}))
	defer srv.Close()

	err := client.do("GET", "/api/runs", nil, nil)
	if err == nil {
		t.Fatal("expected error")
	}
	if err.Error() != "gateway returned 500 Internal Server Error" {
		t.Errorf("unexpected error message: %q", err.Error())
	}
}
