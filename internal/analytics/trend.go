package analytics

import (
	"sort"
	"strings"
	"time"

	"influencer-attribution-api/internal/attribution"
	"influencer-attribution-api/internal/models"
	"influencer-attribution-api/internal/validation"
)

// TrendOptions controls DailyTrend.
type TrendOptions struct {
	Range models.DateRange
	// Influencer, when set, keeps only events whose normalized utm_content matches.
	Influencer string
}

// DailyTrend counts events per calendar day. The output is contiguous:
// every day between the first and last day of the range appears, with
// count 0 when nothing happened. An open bound is taken from the earliest
// or latest matching event.
func DailyTrend(events []models.RegistrationEvent, opts TrendOptions) []models.TrendPoint {
	points := []models.TrendPoint{}
	if opts.Range.IsVacuous() {
		return points
	}

	want := attribution.NormalizeName(opts.Influencer)
	counts := make(map[string]int)
	var minDay, maxDay time.Time

	for _, ev := range events {
		if !opts.Range.Contains(ev.CreatedAt) {
			continue
		}
		if want != "" && attribution.NormalizeName(ev.Attribution.Content) != want {
			continue
		}
		day := models.Day(ev.CreatedAt)
		counts[day.Format(models.DateLayout)]++
		if minDay.IsZero() || day.Before(minDay) {
			minDay = day
		}
		if maxDay.IsZero() || day.After(maxDay) {
			maxDay = day
		}
	}

	span := models.DateRange{From: opts.Range.From, To: opts.Range.To}
	if span.From == nil {
		if minDay.IsZero() {
			return points
		}
		span.From = &minDay
	}
	if span.To == nil {
		if maxDay.IsZero() {
			return points
		}
		span.To = &maxDay
	}

	for _, day := range span.Days() {
		key := day.Format(models.DateLayout)
		points = append(points, models.TrendPoint{Date: key, Count: counts[key]})
	}
	return points
}

// Dimension is a UTM field to break events down by.
type Dimension string

const (
	DimensionSource   Dimension = "source"
	DimensionMedium   Dimension = "medium"
	DimensionCampaign Dimension = "campaign"
	DimensionContent  Dimension = "content"
)

// NoneValue buckets events that lack the requested field.
const NoneValue = "none"

// ParseDimension defaults to source.
func ParseDimension(s string) (Dimension, error) {
	switch d := Dimension(strings.ToLower(strings.TrimSpace(s))); d {
	case "":
		return DimensionSource, nil
	case DimensionSource, DimensionMedium, DimensionCampaign, DimensionContent:
		return d, nil
	default:
		return "", &validation.ValidationError{
			Field:   "dimension",
			Message: "must be one of source, medium, campaign, content",
		}
	}
}

func (d Dimension) value(a models.AttributionTuple) string {
	var v string
	switch d {
	case DimensionMedium:
		v = a.Medium
	case DimensionCampaign:
		v = a.Campaign
	case DimensionContent:
		v = a.Content
	default:
		v = a.Source
	}
	if v = strings.TrimSpace(v); v == "" {
		return NoneValue
	}
	return v
}

// Breakdown counts every event in range, attributed or not, by one UTM
// dimension. Rows are ordered by count descending, then value.
func Breakdown(events []models.RegistrationEvent, r models.DateRange, dim Dimension) []models.BreakdownRow {
	rows := []models.BreakdownRow{}
	if r.IsVacuous() {
		return rows
	}

	counts := make(map[string]int)
	for _, ev := range events {
		if r.Contains(ev.CreatedAt) {
			counts[dim.value(ev.Attribution)]++
		}
	}

	for value, count := range counts {
		rows = append(rows, models.BreakdownRow{Value: value, Count: count})
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Count != rows[j].Count {
			return rows[i].Count > rows[j].Count
		}
		return rows[i].Value < rows[j].Value
	})
	return rows
}
