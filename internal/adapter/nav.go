package adapter

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/oyvindh/stillingsvakt/internal/filter"
	"github.com/oyvindh/stillingsvakt/internal/model"
)

// navAdURLPrefix is where a feed entry's human-readable posting lives.
const navAdURLPrefix = "https://arbeidsplassen.nav.no/stillinger/stilling/"

// navFeedPage is one page of the NAV job feed.
type navFeedPage struct {
	Items      []navFeedItem `json:"items"`
	NextCursor string        `json:"next_cursor"`
}

type navFeedItem struct {
	ID        string       `json:"id"`
	Title     string       `json:"title"`
	FeedEntry navFeedEntry `json:"_feed_entry"`
}

type navFeedEntry struct {
	UUID         string `json:"uuid"`
	Title        string `json:"title"`
	BusinessName string `json:"businessName"`
	Municipal    string `json:"municipal"`
	County       string `json:"county"`
	Status       string `json:"status"`
}

// navJobEntry is the detailed entry behind one feed item.
type navJobEntry struct {
	Title          string             `json:"title"`
	AdText         string             `json:"adText"`
	Published      string             `json:"published"`
	ApplicationDue string             `json:"applicationDue"`
	Properties     navEntryProperties `json:"properties"`
}

type navEntryProperties struct {
	Extent string `json:"extent"`
}

// NavAdapter reads the NAV job feed: a bearer-token JSON API paginated by an
// opaque cursor. It resumes from the checkpointed cursor and caps the number
// of pages per run.
type NavAdapter struct {
	baseURL   string
	tokenURL  string
	apiToken  string
	maxPages  int
	keywords  *filter.KeywordMatcher
	locations *filter.LocationMatcher
	client    *http.Client
	logger    *slog.Logger

	cursor string
}

// NewNavAdapter creates the feed adapter for NAV. An empty apiToken makes the
// adapter fetch the public token from tokenURL on first use.
func NewNavAdapter(baseURL, tokenURL, apiToken string, maxPages int, keywords *filter.KeywordMatcher, locations *filter.LocationMatcher, client *http.Client, logger *slog.Logger) *NavAdapter {
	return &NavAdapter{
		baseURL:   strings.TrimRight(baseURL, "/"),
		tokenURL:  tokenURL,
		apiToken:  apiToken,
		maxPages:  maxPages,
		keywords:  keywords,
		locations: locations,
		client:    client,
		logger:    logger,
	}
}

func (a *NavAdapter) Source() model.Source { return model.SourceNav }

// SetCursor seeds the feed position from the last successful checkpoint.
func (a *NavAdapter) SetCursor(cursor string) { a.cursor = cursor }

// Cursor returns the position after the last fully processed page.
func (a *NavAdapter) Cursor() string { return a.cursor }

// FetchCandidates pages through the feed from the current cursor, filters
// items by location, status and keyword, and fetches the detailed entry for
// each match. Detail-level failures skip the item; feed-level failures abort
// the source.
func (a *NavAdapter) FetchCandidates(ctx context.Context) ([]model.Candidate, error) {
	if err := a.ensureToken(ctx); err != nil {
		return nil, err
	}

	var candidates []model.Candidate
	skipped := 0

	for page := 0; page < a.maxPages; page++ {
		feed, err := a.fetchFeedPage(ctx, a.cursor)
		if err != nil {
			return nil, fmt.Errorf("nav feed page %d: %w", page, err)
		}

		for _, item := range feed.Items {
			entry := item.FeedEntry
			if entry.Status != "" && entry.Status != "ACTIVE" {
				continue
			}
			if !a.locations.Match(entry.Municipal, entry.County) {
				continue
			}

			uuid := entry.UUID
			if uuid == "" {
				uuid = item.ID
			}
			if uuid == "" {
				skipped++
				continue
			}

			detail, err := a.fetchJobEntry(ctx, uuid)
			if err != nil {
				if ctx.Err() != nil {
					return nil, ctx.Err()
				}
				skipped++
				a.logger.Debug("skipping nav entry", "uuid", uuid, "error", err)
				continue
			}

			title := item.Title
			if title == "" {
				title = entry.Title
			}
			if title == "" {
				title = detail.Title
			}

			description := htmlToText(detail.AdText)
			keyword, ok := a.keywords.Match(title, description)
			if !ok {
				continue
			}

			company := entry.BusinessName
			if company == "" {
				company = "Unknown"
			}

			candidates = append(candidates, model.Candidate{
				Source:       model.SourceNav,
				NativeID:     uuid,
				URL:          navAdURLPrefix + uuid,
				Title:        title,
				Company:      company,
				Location:     entry.Municipal,
				JobType:      detail.Properties.Extent,
				Description:  description,
				Keyword:      keyword,
				DeadlineRaw:  detail.ApplicationDue,
				PublishedRaw: detail.Published,
			})
		}

		if feed.NextCursor == "" {
			break
		}
		// Advance only after the page was fully processed, so a checkpointed
		// cursor never skips unprocessed items.
		a.cursor = feed.NextCursor
	}

	a.logger.Info("nav fetch complete", "candidates", len(candidates), "skipped", skipped)

	return candidates, nil
}

// ensureToken fetches the public feed token when no token was configured.
// The token endpoint returns plain text with the token on the last line.
func (a *NavAdapter) ensureToken(ctx context.Context) error {
	if a.apiToken != "" {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.tokenURL, nil)
	if err != nil {
		return err
	}

	resp, err := a.client.Do(req)
	if err != nil {
		return fmt.Errorf("fetch public token: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return &model.HTTPError{
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("fetch public token"),
		}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read public token: %w", err)
	}

	lines := strings.Split(strings.TrimSpace(string(body)), "\n")
	token := strings.TrimSpace(lines[len(lines)-1])
	if token == "" {
		return fmt.Errorf("public token endpoint returned no token")
	}

	a.apiToken = token
	a.logger.Info("fetched public nav api token")
	return nil
}

func (a *NavAdapter) fetchFeedPage(ctx context.Context, cursor string) (*navFeedPage, error) {
	feedURL := a.baseURL + "/feed"
	if cursor != "" {
		params := url.Values{}
		params.Set("after", cursor)
		feedURL += "?" + params.Encode()
	}

	var page navFeedPage
	if err := a.getJSON(ctx, feedURL, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

func (a *NavAdapter) fetchJobEntry(ctx context.Context, uuid string) (*navJobEntry, error) {
	var entry navJobEntry
	if err := a.getJSON(ctx, a.baseURL+"/feedentry/"+uuid, &entry); err != nil {
		return nil, err
	}
	return &entry, nil
}

func (a *NavAdapter) getJSON(ctx context.Context, rawURL string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+a.apiToken)
	req.Header.Set("User-Agent", userAgent)

	resp, err := a.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return &model.HTTPError{
			StatusCode: resp.StatusCode,
			RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After")),
			Err:        fmt.Errorf("GET %s", rawURL),
		}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s: %w", rawURL, err)
	}
	return nil
}
