package tools

import (
	"context"
	"fmt"
	"testing"
)

type fakeProvider struct {
	name      string
	available bool
	results   []SearchResult
	err       error
	calls     int
}

func (f *fakeProvider) Name() string        { return f.name }
func (f *fakeProvider) Description() string { return f.name }
func (f *fakeProvider) Available() bool     { return f.available }
func (f *fakeProvider) Search(_ context.Context, _ string) ([]SearchResult, error) {
	f.calls++
	return f.results, f.err
}

func TestSearch_FirstSuccessWins(t *testing.T) {
	first := &fakeProvider{name: "first", available: true, results: []SearchResult{{Title: "hit"}}}
	second := &fakeProvider{name: "second", available: true}

	out, err := search(context.Background(), "query", []SearchProvider{first, second})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if out.Provider != "first" {
		t.Errorf("provider = %q, want first", out.Provider)
	}
	if second.calls != 0 {
		t.Errorf("second provider called %d times, want 0", second.calls)
	}
}

func TestSearch_FallsThroughOnError(t *testing.T) {
	broken := &fakeProvider{name: "broken", available: true, err: fmt.Errorf("rate limited")}
	working := &fakeProvider{name: "working", available: true, results: []SearchResult{{Title: "hit"}}}

	out, err := search(context.Background(), "query", []SearchProvider{broken, working})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if out.Provider != "working" {
		t.Errorf("provider = %q, want working", out.Provider)
	}
}

func TestSearch_SkipsUnavailable(t *testing.T) {
	unavailable := &fakeProvider{name: "keyless", available: false}
	working := &fakeProvider{name: "working", available: true, results: []SearchResult{{Title: "hit"}}}

	out, err := search(context.Background(), "query", []SearchProvider{unavailable, working})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if unavailable.calls != 0 {
		t.Errorf("unavailable provider was called")
	}
	if out.Provider != "working" {
		t.Errorf("provider = %q, want working", out.Provider)
	}
}

func TestSearch_EmptyQuery(t *testing.T) {
	if _, err := search(context.Background(), "", nil); err == nil {
		t.Fatal("expected error for empty query")
	}
}

func TestSearch_AllProvidersExhausted(t *testing.T) {
	broken := &fakeProvider{name: "broken", available: true, err: fmt.Errorf("down")}

	out, err := search(context.Background(), "query", []SearchProvider{broken})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(out.Results) != 1 || out.Results[0].Title != "Search unavailable" {
		t.Errorf("expected unavailable placeholder, got %+v", out.Results)
	}
}

func TestBuildProviders_Preference(t *testing.T) {
	providers := BuildProviders("key", "duckduckgo")
	if providers[0].Name() != "duckduckgo" {
		t.Errorf("preferred provider not first: %q", providers[0].Name())
	}

	providers = BuildProviders("key", "")
	if providers[0].Name() != "brave_search" {
		t.Errorf("default order broken: %q", providers[0].Name())
	}

	providers = BuildProviders("key", "nonexistent")
	if providers[0].Name() != "brave_search" {
		t.Errorf("unknown preference should keep default order: %q", providers[0].Name())
	}
}

func TestParseBraveJSON(t *testing.T) {
	data := []byte(`{"web":{"results":[{"title":"T1","url":"https://a.example","description":"D1"}]}}`)
	results, err := parseBraveJSON(data)
	if err != nil {
		t.Fatalf("parseBraveJSON: %v", err)
	}
	if len(results) != 1 || results[0].Title != "T1" || results[0].Snippet != "D1" {
		t.Errorf("unexpected results: %+v", results)
	}

	if _, err := parseBraveJSON([]byte("not json")); err == nil {
		t.Fatal("expected error for invalid JSON")
	}
}

func TestParseHTMLResults(t *testing.T) {
	html := `<a class="result__a" href="https://duckduckgo.com/l/?uddg=https%3A%2F%2Fexample.com">Example <b>Site</b></a>
<a class="result__snippet">A <i>snippet</i> here</a>`
	results := parseHTMLResults(html)
	if len(results) != 1 {
		t.Fatalf("result count = %d, want 1", len(results))
	}
	if results[0].URL != "https://example.com" {
		t.Errorf("redirect not unwrapped: %q", results[0].URL)
	}
	if results[0].Title != "Example Site" {
		t.Errorf("title = %q", results[0].Title)
	}
	if results[0].Snippet != "A snippet here" {
		t.Errorf("snippet = %q", results[0].Snippet)
	}
}

func TestHTMLToText(t *testing.T) {
	html := `<html><head><style>body{}</style><script>var x=1;</script></head>
<body><h1>Title</h1><p>Para &amp; more</p><!-- hidden --></body></html>`
	text := htmlToText(html)
	if text != "Title\n\nPara & more" {
		t.Errorf("htmlToText = %q", text)
	}
}
