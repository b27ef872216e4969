package adapter

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/oyvindh/stillingsvakt/internal/model"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

const finnSearchPage = `<!DOCTYPE html>
<html><body>
<nav><a href="/bap/forsale">Torget</a></nav>
<article><a href="/job/ad/417281290">Senior Data Engineer</a></article>
<article><a href="/job/ad/417281290">Senior Data Engineer (duplicate link)</a></article>
<article><a href="/job/ad/417281291">Mystery posting</a></article>
<article><a href="https://www.finn.no/realestate/ad/1">Unrelated</a></article>
</body></html>`

const finnDetailPage = `<!DOCTYPE html>
<html><body>
<h2 class="t2">Senior   Data Engineer</h2>
<section class="mt-16"><p class="mb-24">Acme AS</p></section>
<a href="/job/search?location=2.20001.22046.20220">Bergen</a>
<ul>
  <li class="flex flex-col">Ansettelsesform<span class="font-bold">Fast</span></li>
  <li class="flex flex-col">Frist<span class="font-bold">15. september 2026</span></li>
  <li class="flex gap-x-16">Sist endret <time>2026-08-12</time></li>
</ul>
<div class="import-decoration">Vi ser etter en data engineer med Python-erfaring.</div>
</body></html>`

// finnDetailPageNoTitle simulates a restructured posting page.
const finnDetailPageNoTitle = `<!DOCTYPE html>
<html><body><div class="totally-new-layout">nothing recognizable</div></body></html>`

func newFinnServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/job/search", func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, finnSearchPage)
	})
	mux.HandleFunc("/job/ad/417281290", func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, finnDetailPage)
	})
	mux.HandleFunc("/job/ad/417281291", func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, finnDetailPageNoTitle)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestFinnFetchCandidates(t *testing.T) {
	srv := newFinnServer(t)

	a := NewFinnAdapter(srv.URL+"/job/search", "2.20001.22046.20220",
		[]string{"data engineer"}, 5, 0, srv.Client(), discardLogger())

	candidates, err := a.FetchCandidates(context.Background())
	if err != nil {
		t.Fatalf("FetchCandidates: %v", err)
	}

	// One parseable posting: the duplicate link collapses, the no-title page
	// is skipped, the realestate link is ignored.
	if len(candidates) != 1 {
		t.Fatalf("expected 1 candidate, got %d", len(candidates))
	}

	c := candidates[0]
	if c.Source != model.SourceFinn {
		t.Errorf("source = %v", c.Source)
	}
	if c.Title != "Senior   Data Engineer" {
		t.Errorf("title = %q", c.Title)
	}
	if c.Company != "Acme AS" {
		t.Errorf("company = %q", c.Company)
	}
	if c.Location != "Bergen" {
		t.Errorf("location = %q", c.Location)
	}
	if c.JobType != "Fast" {
		t.Errorf("job type = %q", c.JobType)
	}
	if c.DeadlineRaw != "15. september 2026" {
		t.Errorf("deadline = %q", c.DeadlineRaw)
	}
	if c.PublishedRaw != "2026-08-12" {
		t.Errorf("published = %q", c.PublishedRaw)
	}
	if c.Keyword != "data engineer" {
		t.Errorf("keyword = %q", c.Keyword)
	}
	if !strings.HasSuffix(c.URL, "/job/ad/417281290") {
		t.Errorf("url = %q", c.URL)
	}
	if !strings.Contains(c.Description, "Python-erfaring") {
		t.Errorf("description = %q", c.Description)
	}
}

func TestFinnQuotesMultiWordKeywords(t *testing.T) {
	var gotQueries []string
	mux := http.NewServeMux()
	mux.HandleFunc("/job/search", func(w http.ResponseWriter, r *http.Request) {
		gotQueries = append(gotQueries, r.URL.Query().Get("q"))
		io.WriteString(w, "<html><body></body></html>")
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	a := NewFinnAdapter(srv.URL+"/job/search", "", []string{"machine learning", "python"}, 5, 0, srv.Client(), discardLogger())
	if _, err := a.FetchCandidates(context.Background()); err != nil {
		t.Fatalf("FetchCandidates: %v", err)
	}

	if len(gotQueries) != 2 {
		t.Fatalf("expected 2 search requests, got %d", len(gotQueries))
	}
	if gotQueries[0] != `"machine learning"` {
		t.Errorf("multi-word keyword not quoted: %q", gotQueries[0])
	}
	if gotQueries[1] != "python" {
		t.Errorf("single-word keyword must not be quoted: %q", gotQueries[1])
	}
}

func TestFinnCapsResultsPerKeyword(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/job/search", func(w http.ResponseWriter, r *http.Request) {
		var b strings.Builder
		b.WriteString("<html><body>")
		for i := 0; i < 10; i++ {
			fmt.Fprintf(&b, `<a href="/job/ad/%d">posting</a>`, i)
		}
		b.WriteString("</body></html>")
		io.WriteString(w, b.String())
	})
	mux.HandleFunc("/job/ad/", func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, finnDetailPage)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	a := NewFinnAdapter(srv.URL+"/job/search", "", []string{"python"}, 3, 0, srv.Client(), discardLogger())
	candidates, err := a.FetchCandidates(context.Background())
	if err != nil {
		t.Fatalf("FetchCandidates: %v", err)
	}
	if len(candidates) != 3 {
		t.Errorf("expected cap of 3 candidates, got %d", len(candidates))
	}
}

func TestFinnSearchFailureAbortsSource(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	a := NewFinnAdapter(srv.URL+"/job/search", "", []string{"python"}, 5, 0, srv.Client(), discardLogger())
	_, err := a.FetchCandidates(context.Background())
	if err == nil {
		t.Fatal("expected error for failing search page")
	}

	var httpErr *model.HTTPError
	if !errors.As(err, &httpErr) {
		t.Fatalf("expected HTTPError, got %v", err)
	}
	if httpErr.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("status = %d", httpErr.StatusCode)
	}
}

func TestFinnDetailFailureSkipsItem(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/job/search", func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `<html><body>
			<a href="/job/ad/1">ok</a>
			<a href="/job/ad/2">broken</a>
		</body></html>`)
	})
	mux.HandleFunc("/job/ad/1", func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, finnDetailPage)
	})
	mux.HandleFunc("/job/ad/2", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	a := NewFinnAdapter(srv.URL+"/job/search", "", []string{"python"}, 5, 0, srv.Client(), discardLogger())
	candidates, err := a.FetchCandidates(context.Background())
	if err != nil {
		t.Fatalf("a single broken detail page must not abort the source: %v", err)
	}
	if len(candidates) != 1 {
		t.Errorf("expected 1 candidate, got %d", len(candidates))
	}
}
