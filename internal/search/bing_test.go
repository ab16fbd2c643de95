package search

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

const bingPage = `<!DOCTYPE html>
<html><body>
<span class="sb_count">1,230,000 results</span>
<ol id="b_results">
  <li class="b_algo">
    <h2><a href="https://example.com/one">First Result Title</a></h2>
    <div class="b_caption"><p class="b_lineclamp2">First result snippet with enough text to count.</p></div>
  </li>
  <li class="b_algo">
    <h2><a href="/relative/path">Second Result Title</a></h2>
    <p>Plain paragraph snippet that is long enough to be used.</p>
  </li>
  <li class="b_algo">
    <h2><a href="https://example.com/three">Third Result Title</a></h2>
  </li>
  <li class="b_ad"><h2><a href="https://ads.example.com">Sponsored</a></h2></li>
</ol>
</body></html>`

func newTestEngine(t *testing.T, handler http.HandlerFunc, maxResults int) *BingEngine {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	e := NewBingEngine(maxResults)
	e.baseURL = srv.URL
	return e
}

func TestBingSearch_ParsesResults(t *testing.T) {
	var gotQuery string
	e := newTestEngine(t, func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query().Get("q")
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte(bingPage))
	}, 10)

	results, err := e.Search(context.Background(), "golang concurrency", "")
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if gotQuery != "golang concurrency" {
		t.Errorf("query param = %q", gotQuery)
	}
	if results.TotalResults != 1230000 {
		t.Errorf("total = %d", results.TotalResults)
	}
	if len(results.Results) != 3 {
		t.Fatalf("got %d results, want 3 (ads excluded)", len(results.Results))
	}

	first := results.Results[0]
	if first.Title != "First Result Title" || first.URL != "https://example.com/one" {
		t.Errorf("first = %+v", first)
	}
	if first.Snippet != "First result snippet with enough text to count." {
		t.Errorf("snippet = %q", first.Snippet)
	}
	if results.Results[1].URL != "https://www.bing.com/relative/path" {
		t.Errorf("relative url = %q", results.Results[1].URL)
	}
	if results.Results[2].Snippet != "" {
		t.Errorf("snippetless item = %q", results.Results[2].Snippet)
	}
}

func TestBingSearch_MaxResults(t *testing.T) {
	e := newTestEngine(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(bingPage))
	}, 2)

	results, err := e.Search(context.Background(), "q", "")
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results.Results) != 2 {
		t.Errorf("got %d results, want cap of 2", len(results.Results))
	}
}

func TestBingSearch_DateFilter(t *testing.T) {
	var gotFilters string
	e := newTestEngine(t, func(w http.ResponseWriter, r *http.Request) {
		gotFilters = r.URL.Query().Get("filters")
		w.Write([]byte(bingPage))
	}, 10)

	if _, err := e.Search(context.Background(), "q", RangePastWeek); err != nil {
		t.Fatalf("Search: %v", err)
	}
	if gotFilters != `ex1:"ez2"` {
		t.Errorf("filters = %q", gotFilters)
	}

	if _, err := e.Search(context.Background(), "q", RangeAll); err != nil {
		t.Fatalf("Search: %v", err)
	}
	if gotFilters != "" {
		t.Errorf("filters for all = %q, want none", gotFilters)
	}
}

func TestBingSearch_HTTPError(t *testing.T) {
	e := newTestEngine(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "blocked", http.StatusForbidden)
	}, 10)

	if _, err := e.Search(context.Background(), "q", ""); err == nil {
		t.Error("Search on 403 = nil error")
	}
}
