package confluence

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
)

// searchServer serves a synthetic result set of total records through
// the search endpoint, counting fetches and recording the start
// parameter of each one.
type searchServer struct {
	total   int
	fetches int
	starts  []string

	// failNext makes the next fetch fail with a 500 once.
	failNext bool
}

func (s *searchServer) handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != SearchPath {
			http.NotFound(w, r)
			return
		}
		if s.failNext {
			s.failNext = false
			w.Header().Set("Content-Type", "text/plain")
			w.WriteHeader(http.StatusInternalServerError)
			fmt.Fprint(w, "transient failure")
			return
		}

		start, _ := strconv.Atoi(r.URL.Query().Get("start"))
		limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
		s.fetches++
		s.starts = append(s.starts, r.URL.Query().Get("start"))

		end := start + limit
		if end > s.total {
			end = s.total
		}
		results := make([]map[string]any, 0, end-start)
		for i := start; i < end; i++ {
			results = append(results, map[string]any{
				"title": fmt.Sprintf("Page %d", i),
			})
		}

		links := map[string]string{"base": "http://wiki.test"}
		if start+limit < s.total {
			links["next"] = fmt.Sprintf("%s?start=%d&limit=%d", SearchPath, start+limit, limit)
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"results": results,
			"start":   start,
			"limit":   limit,
			"size":    len(results),
			"_links":  links,
		})
	})
}

func newSearchClient(t *testing.T, srv *searchServer) *Client {
	t.Helper()
	ts := httptest.NewServer(srv.handler())
	t.Cleanup(ts.Close)
	cfg := DefaultConfig().WithBaseURL(ts.URL).WithCredentials("alice", "s3cret")
	return NewClient(cfg, nil)
}

// drain pulls results until Done, returning the yielded titles.
func drain(t *testing.T, client *Client) []string {
	t.Helper()
	var titles []string
	for {
		rec, err := client.NextResult(context.Background())
		if errors.Is(err, Done) {
			return titles
		}
		if err != nil {
			t.Fatalf("NextResult() error = %v", err)
		}
		titles = append(titles, rec["title"].(string))
	}
}

func TestNextResult_PaginationCompleteness(t *testing.T) {
	tests := []struct {
		total       int
		wantFetches int
	}{
		{0, 1},
		{1, 1},
		{24, 1},
		{25, 1},
		{26, 2},
		{30, 2},
		{50, 2},
		{51, 3},
		{100, 4},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("total=%d", tt.total), func(t *testing.T) {
			srv := &searchServer{total: tt.total}
			client := newSearchClient(t, srv)
			client.StartSearch(SearchQuery{"cql": "type=page"})

			titles := drain(t, client)

			if len(titles) != tt.total {
				t.Fatalf("yielded %d records, want %d", len(titles), tt.total)
			}
			for i, title := range titles {
				if want := fmt.Sprintf("Page %d", i); title != want {
					t.Fatalf("record %d = %q, want %q (server order)", i, title, want)
				}
			}
			if srv.fetches != tt.wantFetches {
				t.Errorf("fetches = %d, want %d", srv.fetches, tt.wantFetches)
			}

			// Exhaustion is idempotent: further calls keep returning Done
			// without new fetches.
			for i := 0; i < 3; i++ {
				if _, err := client.NextResult(context.Background()); !errors.Is(err, Done) {
					t.Fatalf("call after exhaustion returned %v, want Done", err)
				}
			}
			if srv.fetches != tt.wantFetches {
				t.Errorf("fetches after exhaustion = %d, want %d", srv.fetches, tt.wantFetches)
			}
		})
	}
}

func TestNextResult_NoActiveSearch(t *testing.T) {
	client := NewClient(DefaultConfig().WithBaseURL("http://wiki.test"), nil)
	if _, err := client.NextResult(context.Background()); !errors.Is(err, ErrNoActiveSearch) {
		t.Fatalf("NextResult() error = %v, want ErrNoActiveSearch", err)
	}
}

func TestNextResult_ConcreteScenario(t *testing.T) {
	// 26 records: page 1 holds 25 with a next link, page 2 holds 1
	// without one.
	srv := &searchServer{total: 26}
	client := newSearchClient(t, srv)
	client.StartSearch(SearchQuery{"cql": "type=page"})
	ctx := context.Background()

	for i := 0; i < 25; i++ {
		rec, err := client.NextResult(ctx)
		if err != nil {
			t.Fatalf("call %d error = %v", i+1, err)
		}
		if want := fmt.Sprintf("Page %d", i); rec["title"] != want {
			t.Fatalf("call %d = %v, want %q", i+1, rec["title"], want)
		}
	}
	if srv.fetches != 1 {
		t.Fatalf("fetches after first page = %d, want 1", srv.fetches)
	}

	rec, err := client.NextResult(ctx)
	if err != nil {
		t.Fatalf("call 26 error = %v", err)
	}
	if rec["title"] != "Page 25" {
		t.Fatalf("call 26 = %v, want %q", rec["title"], "Page 25")
	}
	if srv.fetches != 2 {
		t.Fatalf("fetches after second page = %d, want 2", srv.fetches)
	}

	if _, err := client.NextResult(ctx); !errors.Is(err, Done) {
		t.Fatalf("call 27 error = %v, want Done", err)
	}
}

func TestNextResult_FailedFetchRetry(t *testing.T) {
	srv := &searchServer{total: 30}
	client := newSearchClient(t, srv)
	client.StartSearch(SearchQuery{"cql": "type=page"})
	ctx := context.Background()

	for i := 0; i < 25; i++ {
		if _, err := client.NextResult(ctx); err != nil {
			t.Fatalf("call %d error = %v", i+1, err)
		}
	}

	// The fetch at offset 25 fails once.
	srv.failNext = true
	_, err := client.NextResult(ctx)
	var reqErr *RequestError
	if !errors.As(err, &reqErr) {
		t.Fatalf("failed fetch error = %v, want *RequestError", err)
	}
	if reqErr.StatusCode != http.StatusInternalServerError {
		t.Errorf("StatusCode = %d, want 500", reqErr.StatusCode)
	}

	// The retry repeats the identical request and the remaining
	// records come through.
	rec, err := client.NextResult(ctx)
	if err != nil {
		t.Fatalf("retry error = %v", err)
	}
	if rec["title"] != "Page 25" {
		t.Fatalf("retry yielded %v, want %q", rec["title"], "Page 25")
	}
	if want := []string{"0", "25"}; len(srv.starts) != 2 || srv.starts[0] != want[0] || srv.starts[1] != want[1] {
		t.Errorf("successful fetch starts = %v, want %v", srv.starts, want)
	}

	rest := drain(t, client)
	if len(rest) != 4 {
		t.Fatalf("remaining records = %d, want 4", len(rest))
	}
}

func TestStartSearch_ReplacesSession(t *testing.T) {
	srv := &searchServer{total: 40}
	client := newSearchClient(t, srv)
	ctx := context.Background()

	client.StartSearch(SearchQuery{"cql": "type=page"})
	for i := 0; i < 10; i++ {
		if _, err := client.NextResult(ctx); err != nil {
			t.Fatalf("call %d error = %v", i+1, err)
		}
	}

	// A new search discards the prior paging state and starts from the
	// beginning.
	client.StartSearch(SearchQuery{"cql": "type=blogpost"})
	rec, err := client.NextResult(ctx)
	if err != nil {
		t.Fatalf("NextResult() after restart error = %v", err)
	}
	if rec["title"] != "Page 0" {
		t.Errorf("first record after restart = %v, want %q", rec["title"], "Page 0")
	}
}

func TestStartSearch_NoNetworkIO(t *testing.T) {
	srv := &searchServer{total: 5}
	client := newSearchClient(t, srv)

	client.StartSearch(SearchQuery{"cql": "type=page"})
	if srv.fetches != 0 {
		t.Fatalf("StartSearch performed %d fetches, want 0", srv.fetches)
	}
}

func TestNextResult_ShortPageDespiteNextLink(t *testing.T) {
	// A server that reports a next link but returns an empty follow-up
	// page must not loop: the iterator exhausts at the gap.
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start, _ := strconv.Atoi(r.URL.Query().Get("start"))
		var results []map[string]any
		if start == 0 {
			for i := 0; i < 25; i++ {
				results = append(results, map[string]any{"title": fmt.Sprintf("Page %d", i)})
			}
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"results": results,
			"start":   start,
			"limit":   SearchPageSize,
			"_links":  map[string]string{"next": "always"},
		})
	}))
	defer ts.Close()

	client := NewClient(DefaultConfig().WithBaseURL(ts.URL), nil)
	client.StartSearch(SearchQuery{"cql": "type=page"})

	titles := drain(t, client)
	if len(titles) != 25 {
		t.Fatalf("yielded %d records, want 25", len(titles))
	}
}

func TestSearchOptions_Query(t *testing.T) {
	tests := []struct {
		name string
		opts SearchOptions
		want SearchQuery
	}{
		{
			name: "cql only",
			opts: SearchOptions{CQL: "type=page"},
			want: SearchQuery{"cql": "type=page"},
		},
		{
			name: "all fields",
			opts: SearchOptions{
				CQL:        `text ~ "roadmap"`,
				CQLContext: `{"spaceKey":"DEV"}`,
				Expand:     "content.body",
				Excerpt:    "highlight",
			},
			want: SearchQuery{
				"cql":        `text ~ "roadmap"`,
				"cqlcontext": `{"spaceKey":"DEV"}`,
				"expand":     "content.body",
				"excerpt":    "highlight",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.opts.Query()
			if err != nil {
				t.Fatalf("Query() error = %v", err)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("Query() = %v, want %v", got, tt.want)
			}
			for k, v := range tt.want {
				if got[k] != v {
					t.Errorf("Query()[%q] = %q, want %q", k, got[k], v)
				}
			}
		})
	}
}
