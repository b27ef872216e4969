package normalize

import (
	"testing"
	"time"

	"github.com/oyvindh/stillingsvakt/internal/model"
)

func TestIdentityKeyPrefersNativeID(t *testing.T) {
	key := IdentityKey(model.SourceNav, "ABC-123", "https://arbeidsplassen.nav.no/stillinger/stilling/abc-123")
	if key != "nav:abc-123" {
		t.Errorf("expected nav:abc-123, got %q", key)
	}
}

func TestIdentityKeyNormalizesURL(t *testing.T) {
	tests := []struct {
		name string
		url  string
	}{
		{"plain", "https://www.finn.no/job/ad/12345"},
		{"trailing slash", "https://www.finn.no/job/ad/12345/"},
		{"upper-case host", "HTTPS://WWW.FINN.NO/job/ad/12345"},
	}

	want := IdentityKey(model.SourceFinn, "", tests[0].url)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := IdentityKey(model.SourceFinn, "", tt.url)
			if got != want {
				t.Errorf("expected %q, got %q", want, got)
			}
		})
	}
}

func TestIdentityKeysAreSourceQualified(t *testing.T) {
	finn := IdentityKey(model.SourceFinn, "", "https://example.no/ad/1")
	nav := IdentityKey(model.SourceNav, "", "https://example.no/ad/1")
	if finn == nav {
		t.Errorf("keys for different sources must differ, both %q", finn)
	}
}

func TestCollapseWhitespace(t *testing.T) {
	got := CollapseWhitespace("  Data \t Engineer \n bank  ")
	if got != "Data Engineer bank" {
		t.Errorf("got %q", got)
	}
}

func TestResolveURL(t *testing.T) {
	got := ResolveURL("https://www.finn.no/job/search?q=python", "/job/ad/417281290")
	if got != "https://www.finn.no/job/ad/417281290" {
		t.Errorf("got %q", got)
	}

	abs := ResolveURL("https://www.finn.no/job/search", "https://other.no/x")
	if abs != "https://other.no/x" {
		t.Errorf("absolute href must pass through, got %q", abs)
	}
}

func TestParseDate(t *testing.T) {
	date := func(y int, m time.Month, d int) *time.Time {
		t := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
		return &t
	}

	tests := []struct {
		name string
		in   string
		want *time.Time
	}{
		{"empty", "", nil},
		{"iso", "2026-09-15", date(2026, time.September, 15)},
		{"iso embedded", "Frist: 2026-09-15", date(2026, time.September, 15)},
		{"rfc3339", "2026-09-15T10:30:00Z", timePtr(time.Date(2026, time.September, 15, 10, 30, 0, 0, time.UTC))},
		{"dotted", "15.09.2026", date(2026, time.September, 15)},
		{"norwegian", "15. september 2026", date(2026, time.September, 15)},
		{"norwegian no dot", "1 mai 2026", date(2026, time.May, 1)},
		{"snarest", "Snarest", nil},
		{"gibberish", "ved behov", nil},
		{"rolled-over day", "31.02.2026", nil},
		{"unknown month", "15. frimaire 2026", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParseDate(tt.in)
			if (got == nil) != (tt.want == nil) {
				t.Fatalf("ParseDate(%q) = %v, want %v", tt.in, got, tt.want)
			}
			if got != nil && !got.Equal(*tt.want) {
				t.Errorf("ParseDate(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func timePtr(t time.Time) *time.Time { return &t }

func TestApplyIsDeterministic(t *testing.T) {
	c := model.Candidate{
		Source:      model.SourceFinn,
		URL:         "HTTPS://www.Finn.no/job/ad/417281290/",
		Title:       "  Senior   Data Engineer ",
		Company:     "Acme \t AS",
		Location:    " Bergen ",
		DeadlineRaw: "30. november 2026",
	}

	first := Apply(c)
	second := Apply(c)

	if first.Key != second.Key || first.Title != second.Title {
		t.Fatal("Apply must be deterministic for identical input")
	}
	if first.Key != "finn:https://www.finn.no/job/ad/417281290" {
		t.Errorf("unexpected key %q", first.Key)
	}
	if first.Title != "Senior Data Engineer" {
		t.Errorf("unexpected title %q", first.Title)
	}
	if first.Company != "Acme AS" {
		t.Errorf("unexpected company %q", first.Company)
	}
	if first.Deadline == nil || first.Deadline.Month() != time.November {
		t.Errorf("unexpected deadline %v", first.Deadline)
	}
}
