package search

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func testClient(url string) *Client {
	c := NewClient(2*time.Second, slog.New(slog.NewTextHandler(io.Discard, nil)))
	c.SetTestTransport(url)
	return c
}

const sampleResponse = `{
  "Heading": "Go (programming language)",
  "AbstractText": "Go is a statically typed, compiled language.",
  "AbstractURL": "https://en.wikipedia.org/wiki/Go_(programming_language)",
  "Results": [
    {"Text": "Official site - The Go Programming Language", "FirstURL": "https://go.dev"}
  ],
  "RelatedTopics": [
    {"Text": "Gopher - Mascot of Go", "FirstURL": "https://example.com/gopher"},
    {"Name": "Tooling", "Topics": [
      {"Text": "gofmt - Formatter", "FirstURL": "https://example.com/gofmt"},
      {"Text": "duplicate", "FirstURL": "https://go.dev"},
      {"Text": "no url"}
    ]}
  ]
}`

func TestSearch_FlattensResults(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("q"); got != "golang" {
			t.Errorf("expected query golang, got %q", got)
		}
		if r.URL.Query().Get("format") != "json" {
			t.Errorf("expected format=json")
		}
		io.WriteString(w, sampleResponse)
	}))
	defer server.Close()

	results := testClient(server.URL).Search(context.Background(), "golang", DefaultMaxResults)

	if len(results) != 4 {
		t.Fatalf("expected 4 results, got %d: %+v", len(results), results)
	}
	if results[0].Title != "Go (programming language)" {
		t.Errorf("expected abstract first, got %q", results[0].Title)
	}
	if results[1].Title != "Official site" || results[1].Href != "https://go.dev" {
		t.Errorf("unexpected second result: %+v", results[1])
	}
	if results[3].Href != "https://example.com/gofmt" {
		t.Errorf("expected nested topic, got %+v", results[3])
	}
}

func TestSearch_RespectsMax(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, sampleResponse)
	}))
	defer server.Close()

	results := testClient(server.URL).Search(context.Background(), "golang", 2)
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
}

func TestSearch_ErrorsYieldNoResults(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	if results := testClient(server.URL).Search(context.Background(), "golang", 6); len(results) != 0 {
		t.Errorf("expected no results, got %d", len(results))
	}

	bad := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, "not json")
	}))
	defer bad.Close()

	if results := testClient(bad.URL).Search(context.Background(), "golang", 6); len(results) != 0 {
		t.Errorf("expected no results for malformed body, got %d", len(results))
	}
}

func TestSearch_EmptyQuery(t *testing.T) {
	c := testClient("http://127.0.0.1:0")
	if results := c.Search(context.Background(), "   ", 6); results != nil {
		t.Errorf("expected nil, got %+v", results)
	}
}
