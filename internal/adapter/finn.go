package adapter

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/oyvindh/stillingsvakt/internal/model"
	"github.com/oyvindh/stillingsvakt/internal/normalize"
)

// FinnAdapter scrapes job listings from the FINN.no search pages. There is no
// formal schema, so parsing is defensive by construction: a malformed detail
// page is skipped and counted, never fatal for the run.
type FinnAdapter struct {
	baseURL       string
	location      string // FINN location code
	keywords      []string
	maxPerKeyword int
	detailDelay   time.Duration // polite gap between detail-page fetches
	client        *http.Client
	logger        *slog.Logger
}

// NewFinnAdapter creates the scrape adapter for FINN.no.
func NewFinnAdapter(baseURL, location string, keywords []string, maxPerKeyword int, detailDelay time.Duration, client *http.Client, logger *slog.Logger) *FinnAdapter {
	return &FinnAdapter{
		baseURL:       strings.TrimRight(baseURL, "/"),
		location:      location,
		keywords:      keywords,
		maxPerKeyword: maxPerKeyword,
		detailDelay:   detailDelay,
		client:        client,
		logger:        logger,
	}
}

func (a *FinnAdapter) Source() model.Source { return model.SourceFinn }

// FetchCandidates runs the two-step scrape for every configured keyword:
// collect posting links from the search page, then fetch and parse each
// detail page. Volume is capped per keyword; the result is not exhaustive.
func (a *FinnAdapter) FetchCandidates(ctx context.Context) ([]model.Candidate, error) {
	var candidates []model.Candidate
	seen := make(map[string]bool) // detail URLs already queued this run
	skipped := 0

	for _, keyword := range a.keywords {
		urls, err := a.searchKeyword(ctx, keyword)
		if err != nil {
			return nil, fmt.Errorf("finn search %q: %w", keyword, err)
		}

		fetched := 0
		for _, jobURL := range urls {
			if fetched >= a.maxPerKeyword {
				break
			}
			if seen[jobURL] {
				continue
			}
			seen[jobURL] = true

			candidate, err := a.fetchDetail(ctx, jobURL, keyword)
			if err != nil {
				if ctx.Err() != nil {
					return nil, ctx.Err()
				}
				skipped++
				a.logger.Debug("skipping unparseable finn posting", "url", jobURL, "error", err)
				continue
			}
			candidates = append(candidates, candidate)
			fetched++

			if a.detailDelay > 0 {
				select {
				case <-ctx.Done():
					return nil, ctx.Err()
				case <-time.After(a.detailDelay):
				}
			}
		}
	}

	a.logger.Info("finn fetch complete",
		"keywords", len(a.keywords),
		"candidates", len(candidates),
		"skipped", skipped,
	)

	return candidates, nil
}

// searchKeyword fetches one search-results page and returns the posting URLs
// found on it. Multi-word keywords are quoted so FINN treats them as a phrase.
func (a *FinnAdapter) searchKeyword(ctx context.Context, keyword string) ([]string, error) {
	query := keyword
	if strings.Contains(keyword, " ") {
		query = fmt.Sprintf("%q", keyword)
	}

	params := url.Values{}
	params.Set("q", query)
	if a.location != "" {
		params.Set("location", a.location)
	}
	searchURL := a.baseURL + "?" + params.Encode()

	doc, err := a.fetchDocument(ctx, searchURL)
	if err != nil {
		return nil, err
	}

	var urls []string
	unique := make(map[string]bool)
	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		if !strings.Contains(href, "/job/ad/") {
			return
		}
		abs := normalize.ResolveURL(searchURL, href)
		if !unique[abs] {
			unique[abs] = true
			urls = append(urls, abs)
		}
	})

	return urls, nil
}

// fetchDetail fetches and parses a single posting page. A page without a
// recognizable title is treated as malformed.
func (a *FinnAdapter) fetchDetail(ctx context.Context, jobURL, keyword string) (model.Candidate, error) {
	doc, err := a.fetchDocument(ctx, jobURL)
	if err != nil {
		return model.Candidate{}, err
	}

	title := strings.TrimSpace(doc.Find("h2.t2").First().Text())
	if title == "" {
		return model.Candidate{}, fmt.Errorf("no title found")
	}

	company := strings.TrimSpace(doc.Find("section.mt-16 p.mb-24").First().Text())
	if company == "" {
		company = "Unknown"
	}

	location := strings.TrimSpace(doc.Find(`a[href*="location="]`).First().Text())

	var description string
	if sel := doc.Find("div.import-decoration"); sel.Length() > 0 {
		description = strings.TrimSpace(sel.First().Text())
	}

	var published string
	doc.Find("li.flex.gap-x-16").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if strings.Contains(s.Text(), "Sist endret") {
			published = strings.TrimSpace(s.Find("time").First().Text())
			return false
		}
		return true
	})

	return model.Candidate{
		Source:       model.SourceFinn,
		URL:          jobURL,
		Title:        title,
		Company:      company,
		Location:     location,
		JobType:      finnLabeledValue(doc, "Ansettelsesform"),
		Description:  description,
		Keyword:      keyword,
		DeadlineRaw:  finnLabeledValue(doc, "Frist"),
		PublishedRaw: published,
	}, nil
}

// finnLabeledValue extracts the bold value of a labeled definition item, e.g.
// "Frist" or "Ansettelsesform" on a posting page.
func finnLabeledValue(doc *goquery.Document, label string) string {
	var value string
	doc.Find("li.flex.flex-col").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if strings.Contains(s.Text(), label) {
			value = strings.TrimSpace(s.Find("span.font-bold").First().Text())
			return false
		}
		return true
	})
	return value
}

func (a *FinnAdapter) fetchDocument(ctx context.Context, pageURL string) (*goquery.Document, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &model.HTTPError{
			StatusCode: resp.StatusCode,
			RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After")),
			Err:        fmt.Errorf("fetch %s", pageURL),
		}
	}

	return goquery.NewDocumentFromReader(resp.Body)
}
