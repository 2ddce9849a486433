// Package utm extracts marketing parameters from landing URLs and keeps the
// first-touch attribution for each visitor.
package utm

import (
	"net/url"
	"strings"

	"influencer-attribution-api/internal/models"
)

const (
	KeySource   = "utm_source"
	KeyMedium   = "utm_medium"
	KeyCampaign = "utm_campaign"
	KeyContent  = "utm_content"
)

// ParseAttribution reads the four recognized UTM keys from a query string.
// A leading '?' or a full URL are both accepted. Other keys are ignored,
// values are trimmed and empty values dropped.
func ParseAttribution(rawQuery string) models.AttributionTuple {
	rawQuery = strings.TrimSpace(rawQuery)
	if i := strings.IndexByte(rawQuery, '?'); i >= 0 {
		rawQuery = rawQuery[i+1:]
	}
	if i := strings.IndexByte(rawQuery, '#'); i >= 0 {
		rawQuery = rawQuery[:i]
	}

	values, err := url.ParseQuery(rawQuery)
	if err != nil && len(values) == 0 {
		return models.AttributionTuple{}
	}

	return models.AttributionTuple{
		Source:   first(values, KeySource),
		Medium:   first(values, KeyMedium),
		Campaign: first(values, KeyCampaign),
		Content:  first(values, KeyContent),
	}
}

// first returns the first non-empty trimmed value for key.
func first(values url.Values, key string) string {
	for _, v := range values[key] {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}

// Merge fills each empty field of explicit from stored. Explicit per-call
// values always win.
func Merge(explicit models.AttributionTuple, stored *models.AttributionTuple) models.AttributionTuple {
	out := Normalize(explicit)
	if stored == nil {
		return out
	}
	if out.Source == "" {
		out.Source = strings.TrimSpace(stored.Source)
	}
	if out.Medium == "" {
		out.Medium = strings.TrimSpace(stored.Medium)
	}
	if out.Campaign == "" {
		out.Campaign = strings.TrimSpace(stored.Campaign)
	}
	if out.Content == "" {
		out.Content = strings.TrimSpace(stored.Content)
	}
	return out
}

// Normalize trims every field of the tuple.
func Normalize(a models.AttributionTuple) models.AttributionTuple {
	return models.AttributionTuple{
		Source:   strings.TrimSpace(a.Source),
		Medium:   strings.TrimSpace(a.Medium),
		Campaign: strings.TrimSpace(a.Campaign),
		Content:  strings.TrimSpace(a.Content),
	}
}
