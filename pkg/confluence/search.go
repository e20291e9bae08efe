package confluence

import (
	"context"
	"encoding/json"
	"strconv"

	"github.com/google/go-querystring/query"
)

// SearchPageSize is the number of records requested per page. The
// iterator always fetches pages of this size.
const SearchPageSize = 25

// SearchPath is the paginated search endpoint.
const SearchPath = "/rest/api/search"

// SearchQuery maps search parameter names to values, as understood by
// the search endpoint. The iterator owns the "start" and "limit"
// parameters; any caller-supplied values for those are overwritten.
type SearchQuery map[string]string

// SearchOptions is the typed form of the common search parameters.
type SearchOptions struct {
	// CQL is the Confluence Query Language expression, for example
	// `type=page AND space=DEV`.
	CQL string `url:"cql"`

	// CQLContext restricts the search to a space or content tree.
	CQLContext string `url:"cqlcontext,omitempty"`

	// Expand lists record fields to expand, comma separated.
	Expand string `url:"expand,omitempty"`

	// Excerpt selects the excerpt strategy for each result.
	Excerpt string `url:"excerpt,omitempty"`
}

// Query converts the options into a SearchQuery.
func (o SearchOptions) Query() (SearchQuery, error) {
	values, err := query.Values(o)
	if err != nil {
		return nil, err
	}
	q := make(SearchQuery, len(values))
	for k := range values {
		q[k] = values.Get(k)
	}
	return q, nil
}

// Record is one opaque search result as returned by the server.
type Record map[string]any

// searchPage is one decoded page from the search endpoint.
type searchPage struct {
	start   int
	limit   int
	records []Record
	hasNext bool
}

// searchSession holds the paging state for one active search. It is
// owned exclusively by the client and replaced wholesale by
// StartSearch.
type searchSession struct {
	// query is the caller's search parameters, copied at session start.
	query SearchQuery

	// start is the server-side window offset of the most recent fetch.
	// It advances by SearchPageSize per page, committed only after a
	// successful fetch so a failed fetch can be retried verbatim.
	start int

	// offset is the index of the next record to yield, counted across
	// the whole result set.
	offset int

	// page is the most recently fetched page.
	page searchPage

	// fetches counts the page fetches performed in this session. It
	// distinguishes "no fetch yet" from "fetched but no next page".
	fetches int
}

// StartSearch begins a new search session, replacing any previous one.
// The query is copied; no network I/O happens until NextResult is
// called.
func (c *Client) StartSearch(q SearchQuery) {
	base := make(SearchQuery, len(q))
	for k, v := range q {
		base[k] = v
	}
	c.session = &searchSession{query: base}
	c.exhausted = false
}

// Search begins a search session from typed options.
func (c *Client) Search(opts SearchOptions) error {
	q, err := opts.Query()
	if err != nil {
		return err
	}
	c.StartSearch(q)
	return nil
}

// NextResult returns the next search result, lazily fetching further
// pages as needed. Once every result has been yielded it returns Done,
// and keeps returning Done until a new search starts. Calling it
// without a prior StartSearch returns ErrNoActiveSearch.
//
// A fetch failure leaves the paging state untouched, so calling
// NextResult again retries the identical page request.
func (c *Client) NextResult(ctx context.Context) (Record, error) {
	s := c.session
	if s == nil {
		if c.exhausted {
			return nil, Done
		}
		return nil, ErrNoActiveSearch
	}

	// A page fetch is due exactly when the yield offset is
	// page-aligned: at the very first call, and again each time the
	// current page has been fully consumed.
	if s.offset%SearchPageSize == 0 {
		if s.fetches >= 1 && !s.page.hasNext {
			return nil, c.exhaust()
		}
		if err := c.fetchPage(ctx, s); err != nil {
			return nil, err
		}
	}

	idx := s.offset - s.page.start
	if idx < 0 || idx >= len(s.page.records) {
		// The final page ran out before the next boundary, or the
		// server returned fewer records than it promised.
		return nil, c.exhaust()
	}

	rec := s.page.records[idx]
	s.offset++
	return rec, nil
}

// exhaust drops the session and records that it finished normally, so
// repeated NextResult calls keep returning Done.
func (c *Client) exhaust() error {
	c.session = nil
	c.exhausted = true
	return Done
}

// fetchPage fetches the page at the session's current window. The
// window advance, page contents and fetch count are committed only
// after a successful decode.
func (c *Client) fetchPage(ctx context.Context, s *searchSession) error {
	start := s.start
	if s.fetches > 0 {
		start += SearchPageSize
	}

	q := make(Query, len(s.query)+2)
	for k, v := range s.query {
		q[k] = v
	}
	q["start"] = strconv.Itoa(start)
	q["limit"] = strconv.Itoa(SearchPageSize)

	resp, err := c.Get(ctx, SearchPath, q)
	if err != nil {
		return err
	}

	page, err := decodeSearchPage(resp)
	if err != nil {
		return err
	}

	s.start = start
	s.page = page
	s.fetches++
	return nil
}

// searchPageEnvelope is the wire shape of a search response. Records
// stay opaque; hasNext derives from the presence of a "next" entry in
// the navigation links.
type searchPageEnvelope struct {
	Results []Record                   `json:"results"`
	Start   int                        `json:"start"`
	Limit   int                        `json:"limit"`
	Links   map[string]json.RawMessage `json:"_links"`
}

// decodeSearchPage converts a transport response into a searchPage.
func decodeSearchPage(resp *Response) (searchPage, error) {
	if resp.Empty || resp.JSON == nil {
		return searchPage{}, &DecodeError{
			ContentType: resp.ContentType,
			Err:         errNotSearchPage,
		}
	}

	var env searchPageEnvelope
	if err := json.Unmarshal(resp.Raw, &env); err != nil {
		return searchPage{}, &DecodeError{ContentType: resp.ContentType, Err: err}
	}

	_, hasNext := env.Links["next"]
	return searchPage{
		start:   env.Start,
		limit:   env.Limit,
		records: env.Results,
		hasNext: hasNext,
	}, nil
}
