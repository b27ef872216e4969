package filter

import "strings"

// KeywordMatcher finds which configured search keyword a posting matches.
// Matching is a case-insensitive substring check against title and
// description, in configuration order so the attributed keyword is stable.
type KeywordMatcher struct {
	keywords []string
}

// NewKeywordMatcher returns a matcher over the configured keyword list.
func NewKeywordMatcher(keywords []string) *KeywordMatcher {
	return &KeywordMatcher{keywords: keywords}
}

// Match returns the first keyword found in title or description. An empty
// keyword list matches everything with an empty attribution.
func (m *KeywordMatcher) Match(title, description string) (string, bool) {
	if len(m.keywords) == 0 {
		return "", true
	}

	titleLower := strings.ToLower(title)
	descLower := strings.ToLower(description)

	for _, kw := range m.keywords {
		kwLower := strings.ToLower(kw)
		if strings.Contains(titleLower, kwLower) || strings.Contains(descLower, kwLower) {
			return kw, true
		}
	}
	return "", false
}

// LocationMatcher matches feed entries against a configured county and
// municipality. Empty configuration passes everything.
type LocationMatcher struct {
	county    string
	municipal string
}

// NewLocationMatcher returns a matcher for the given county/municipal codes.
func NewLocationMatcher(county, municipal string) *LocationMatcher {
	return &LocationMatcher{
		county:    strings.ToUpper(county),
		municipal: strings.ToUpper(municipal),
	}
}

// Match reports whether an entry's municipal or county matches either
// configured value. The feed municipality code embeds the county
// ("VESTLAND.BERGEN"), so a county-only config still matches.
func (m *LocationMatcher) Match(municipal, county string) bool {
	if m.county == "" && m.municipal == "" {
		return true
	}

	municipal = strings.ToUpper(municipal)
	county = strings.ToUpper(county)

	if m.municipal != "" && municipal == m.municipal {
		return true
	}
	if m.county != "" && (county == m.county || municipal == m.county) {
		return true
	}
	return false
}
