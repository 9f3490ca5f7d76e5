package testutil

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
)

// FakeAPI serves the statistics API shape the HTTP transport and JSON
// parser expect:
//
//	GET /<route>?<param>=<code>&...&key=<key>
//	200 {"data":[{<param>: <code>, ..., "period": "2024", "value": "1"}]}
//
// Individual queries can be scripted to fail with a status code.
type FakeAPI struct {
	*httptest.Server

	mu    sync.Mutex
	fail  map[string]int
	body  map[string]string
	hits  map[string]int
	total int
	key   string
}

// NewFakeAPI starts a FakeAPI and closes it when the test ends.
func NewFakeAPI(t testing.TB) *FakeAPI {
	t.Helper()
	f := &FakeAPI{
		fail: make(map[string]int),
		body: make(map[string]string),
		hits: make(map[string]int),
	}
	f.Server = httptest.NewServer(http.HandlerFunc(f.serve))
	t.Cleanup(f.Close)
	return f
}

// FailWith makes the query (encoded as url.Values.Encode would, without the
// key) answer with status.
func (f *FakeAPI) FailWith(query string, status int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fail[query] = status
}

// RespondWith makes the query answer 200 with body.
func (f *FakeAPI) RespondWith(query, body string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.body[query] = body
}

// Reset drops any failure or body scripted for the query.
func (f *FakeAPI) Reset(query string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.fail, query)
	delete(f.body, query)
}

// Hits returns how many times the query was requested.
func (f *FakeAPI) Hits(query string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.hits[query]
}

// Total returns the number of requests served.
func (f *FakeAPI) Total() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.total
}

// LastKey returns the API key sent with the most recent request.
func (f *FakeAPI) LastKey() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.key
}

func (f *FakeAPI) serve(w http.ResponseWriter, r *http.Request) {
	params := r.URL.Query()
	key := params.Get("key")
	params.Del("key")
	query := params.Encode()

	f.mu.Lock()
	f.total++
	f.hits[query]++
	f.key = key
	status, failing := f.fail[query]
	body, scripted := f.body[query]
	f.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	if failing {
		w.WriteHeader(status)
		fmt.Fprintf(w, `{"error":{"code":%d,"message":%q}}`, status, http.StatusText(status))
		return
	}
	if scripted {
		fmt.Fprint(w, body)
		return
	}

	record := map[string]string{"period": "2024", "value": "1"}
	for name := range params {
		record[name] = params.Get(name)
	}
	_ = json.NewEncoder(w).Encode(map[string]any{"data": []map[string]string{record}})
}
