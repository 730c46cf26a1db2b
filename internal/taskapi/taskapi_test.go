package taskapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
)

func TestCreateBatchAccounting(t *testing.T) {
	var mu sync.Mutex
	var seen []Candidate
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var cand Candidate
		if err := json.NewDecoder(r.Body).Decode(&cand); err != nil {
			t.Errorf("bad body: %v", err)
		}
		mu.Lock()
		seen = append(seen, cand)
		mu.Unlock()

		switch cand.SourceID {
		case "c2":
			w.WriteHeader(http.StatusConflict)
		default:
			w.WriteHeader(http.StatusCreated)
		}
	}))
	defer srv.Close()

	client := &Client{BaseURL: srv.URL}
	result := client.CreateBatch(context.Background(), []Candidate{
		{Title: "a", SourceType: "call", SourceID: "c1"},
		{Title: "b", SourceType: "call", SourceID: "c2"},
		{Title: "c", SourceType: "space", SourceID: "s1"},
	}, 0)

	if result.Created != 2 || result.Skipped != 1 || result.Failed != 0 {
		t.Fatalf("result=%+v want created=2 skipped=1 failed=0", result)
	}
	if len(result.Errors) != 0 {
		t.Fatalf("unexpected errors: %v", result.Errors)
	}
	if result.RunID == "" {
		t.Fatal("missing run id")
	}
	// Sequential dispatch preserves input order.
	if len(seen) != 3 || seen[0].SourceID != "c1" || seen[1].SourceID != "c2" || seen[2].SourceID != "s1" {
		t.Fatalf("request order: %+v", seen)
	}
}

func TestCreateBatchNeverAbortsEarly(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	client := &Client{BaseURL: srv.URL}
	result := client.CreateBatch(context.Background(), []Candidate{
		{SourceType: "call", SourceID: "c1"},
		{SourceType: "call", SourceID: "c2"},
		{SourceType: "call", SourceID: "c3"},
	}, 0)

	if calls != 3 {
		t.Fatalf("every item must be attempted, got %d requests", calls)
	}
	if result.Failed != 3 || result.Created != 0 {
		t.Fatalf("result=%+v want failed=3", result)
	}
	if len(result.Errors) != 3 {
		t.Fatalf("want 3 error lines, got %v", result.Errors)
	}
}

func TestCreateBatchLimit(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	candidates := make([]Candidate, 25)
	for i := range candidates {
		candidates[i] = Candidate{SourceType: "call", SourceID: "c"}
	}

	client := &Client{BaseURL: srv.URL}
	result := client.CreateBatch(context.Background(), candidates, 0)
	if calls != DefaultBatchLimit {
		t.Fatalf("default cap: %d requests want %d", calls, DefaultBatchLimit)
	}
	if result.Created != DefaultBatchLimit {
		t.Fatalf("created=%d want %d", result.Created, DefaultBatchLimit)
	}

	calls = 0
	client.CreateBatch(context.Background(), candidates, 3)
	if calls != 3 {
		t.Fatalf("explicit cap: %d requests want 3", calls)
	}
}

func TestCreateBatchTransportError(t *testing.T) {
	client := &Client{BaseURL: "http://127.0.0.1:1"} // nothing listens here
	result := client.CreateBatch(context.Background(), []Candidate{
		{SourceType: "call", SourceID: "c1"},
	}, 0)
	if result.Failed != 1 || len(result.Errors) != 1 {
		t.Fatalf("transport error must be counted: %+v", result)
	}
}

func TestCreateBatchAuthHeader(t *testing.T) {
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	client := &Client{BaseURL: srv.URL, Token: "secret"}
	client.CreateBatch(context.Background(), []Candidate{{SourceType: "call", SourceID: "c1"}}, 0)
	if gotAuth != "Bearer secret" {
		t.Fatalf("auth header=%q", gotAuth)
	}
}
