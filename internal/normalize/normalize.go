// Package normalize maps adapter output into the canonical record shape used
// by the reconciler. Everything here is pure: identical input always yields
// identical output, so tests can assert exact values for fixed fixtures.
package normalize

import (
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/oyvindh/stillingsvakt/internal/model"
)

// Record is a candidate after normalization: cleaned fields, coerced dates,
// and the identity key used for all downstream deduplication.
type Record struct {
	model.Candidate
	Key       string
	Deadline  *time.Time
	Published *time.Time
}

// Apply normalizes one candidate. Invalid date text is dropped, never fatal.
func Apply(c model.Candidate) Record {
	c.Title = CollapseWhitespace(c.Title)
	c.Company = CollapseWhitespace(c.Company)
	c.Location = CollapseWhitespace(c.Location)
	c.JobType = CollapseWhitespace(c.JobType)
	c.URL = CanonicalURL(c.URL)
	c.Description = strings.TrimSpace(c.Description)

	return Record{
		Candidate: c,
		Key:       IdentityKey(c.Source, c.NativeID, c.URL),
		Deadline:  ParseDate(c.DeadlineRaw),
		Published: ParseDate(c.PublishedRaw),
	}
}

// CollapseWhitespace trims and collapses all interior whitespace runs to a
// single space.
func CollapseWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// CanonicalURL lowercases the scheme and host and strips any trailing slash.
// Malformed input is returned trimmed but otherwise untouched.
func CanonicalURL(raw string) string {
	raw = strings.TrimSpace(raw)
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return strings.TrimRight(raw, "/")
	}
	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	u.Path = strings.TrimRight(u.Path, "/")
	return u.String()
}

// ResolveURL resolves href against base, so scraped relative links become
// absolute. Returns href unchanged when either side fails to parse.
func ResolveURL(base, href string) string {
	b, err := url.Parse(base)
	if err != nil {
		return href
	}
	h, err := url.Parse(href)
	if err != nil {
		return href
	}
	return b.ResolveReference(h).String()
}

// IdentityKey derives the sole deduplication key: the source qualifier plus
// the provider-issued id when present, otherwise the canonicalized URL.
func IdentityKey(source model.Source, nativeID, rawURL string) string {
	prefix := strings.ToLower(string(source))
	if nativeID != "" {
		return fmt.Sprintf("%s:%s", prefix, strings.ToLower(nativeID))
	}
	return fmt.Sprintf("%s:%s", prefix, strings.ToLower(CanonicalURL(rawURL)))
}

// norwegianMonths maps month names as they appear in FINN deadline strings.
var norwegianMonths = map[string]time.Month{
	"januar":    time.January,
	"februar":   time.February,
	"mars":      time.March,
	"april":     time.April,
	"mai":       time.May,
	"juni":      time.June,
	"juli":      time.July,
	"august":    time.August,
	"september": time.September,
	"oktober":   time.October,
	"november":  time.November,
	"desember":  time.December,
}

var (
	isoDateRe       = regexp.MustCompile(`\d{4}-\d{2}-\d{2}`)
	dottedDateRe    = regexp.MustCompile(`(\d{1,2})\.(\d{1,2})\.(\d{4})`)
	norwegianDateRe = regexp.MustCompile(`(?i)(\d{1,2})\.?\s+([a-zæøå]+)\.?\s+(\d{4})`)
)

// ParseDate coerces free-text date strings into a date-or-absent value.
// Supported forms: RFC 3339, ISO dates embedded in longer strings,
// "15.01.2026", and Norwegian prose like "15. januar 2026". Anything else,
// including "Snarest" (as soon as possible), yields nil.
func ParseDate(s string) *time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}

	if t, err := time.Parse(time.RFC3339, s); err == nil {
		t = t.UTC()
		return &t
	}

	if m := isoDateRe.FindString(s); m != "" {
		if t, err := time.Parse("2006-01-02", m); err == nil {
			return &t
		}
	}

	if m := dottedDateRe.FindStringSubmatch(s); m != nil {
		day, _ := strconv.Atoi(m[1])
		month, _ := strconv.Atoi(m[2])
		year, _ := strconv.Atoi(m[3])
		if t, ok := civilDate(year, time.Month(month), day); ok {
			return &t
		}
	}

	if m := norwegianDateRe.FindStringSubmatch(s); m != nil {
		month, ok := norwegianMonths[strings.ToLower(m[2])]
		if !ok {
			return nil
		}
		day, _ := strconv.Atoi(m[1])
		year, _ := strconv.Atoi(m[3])
		if t, ok := civilDate(year, month, day); ok {
			return &t
		}
	}

	return nil
}

// civilDate builds a UTC midnight timestamp, rejecting out-of-range parts
// that time.Date would silently roll over.
func civilDate(year int, month time.Month, day int) (time.Time, bool) {
	if year < 2000 || year > 2100 || month < time.January || month > time.December || day < 1 || day > 31 {
		return time.Time{}, false
	}
	t := time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
	if t.Day() != day || t.Month() != month {
		return time.Time{}, false
	}
	return t, true
}
