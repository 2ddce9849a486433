// Package analytics rolls registration events up into the influencer
// performance table, the daily registration trend and raw UTM breakdowns.
//
// Every function here is a pure transformation of its arguments and is safe
// to re-run on each poll. Day bucketing always uses models.BusinessLocation.
package analytics

import (
	"sort"
	"strings"
	"time"

	"influencer-attribution-api/internal/attribution"
	"influencer-attribution-api/internal/models"
	"influencer-attribution-api/internal/validation"
)

// SortBy selects the ordering of influencer rows.
type SortBy string

const (
	SortByRegistrations SortBy = "registrations"
	SortByLatest        SortBy = "latest"
)

// ParseSortBy accepts "", "registrations" or "latest".
func ParseSortBy(s string) (SortBy, error) {
	switch SortBy(strings.ToLower(strings.TrimSpace(s))) {
	case "", SortByRegistrations:
		return SortByRegistrations, nil
	case SortByLatest:
		return SortByLatest, nil
	default:
		return "", &validation.ValidationError{
			Field:   "sort",
			Message: "must be 'registrations' or 'latest'",
		}
	}
}

// Options controls Aggregate.
type Options struct {
	Range  models.DateRange
	SortBy SortBy
	// LinkedOnly drops influencers that have no saved referral link.
	LinkedOnly bool
}

type group struct {
	key           string
	display       string
	displayAt     time.Time
	total         int
	latest        time.Time
	platform      models.Platform
	hasLinkRecord bool
}

// Aggregate computes one row per normalized influencer name. Events without
// utm_content are left out of the rollup. Platform comes from the most
// recently created matching link, never from the event.
func Aggregate(events []models.RegistrationEvent, links []models.ReferralLink, opts Options) []models.InfluencerAnalyticsRow {
	rows := []models.InfluencerAnalyticsRow{}
	if opts.Range.IsVacuous() {
		return rows
	}

	idx := attribution.NewIndex(links)
	groups := make(map[string]*group)

	for _, ev := range events {
		if !opts.Range.Contains(ev.CreatedAt) {
			continue
		}
		key := attribution.NormalizeName(ev.Attribution.Content)
		if key == "" {
			continue
		}

		g, ok := groups[key]
		if !ok {
			g = &group{key: key}
			if link, linked := idx.Lookup(key); linked {
				g.hasLinkRecord = true
				g.display = strings.TrimSpace(link.InfluencerName)
				g.platform = link.Platform
			}
			groups[key] = g
		}

		g.total++
		if g.total == 1 || ev.CreatedAt.After(g.latest) {
			g.latest = ev.CreatedAt
		}
		if !g.hasLinkRecord && (g.display == "" || ev.CreatedAt.After(g.displayAt)) {
			g.display = strings.TrimSpace(ev.Attribution.Content)
			g.displayAt = ev.CreatedAt
		}
	}

	keys := make([]string, 0, len(groups))
	for key, g := range groups {
		if opts.LinkedOnly && !g.hasLinkRecord {
			continue
		}
		keys = append(keys, key)
	}

	for _, key := range keys {
		g := groups[key]
		rows = append(rows, models.InfluencerAnalyticsRow{
			InfluencerName:     g.display,
			Platform:           g.platform,
			TotalRegistrations: g.total,
			LatestRegistration: g.latest,
		})
	}

	sortRows(rows, opts.SortBy)
	return rows
}

func sortRows(rows []models.InfluencerAnalyticsRow, by SortBy) {
	sort.SliceStable(rows, func(i, j int) bool {
		a, b := rows[i], rows[j]
		switch by {
		case SortByLatest:
			if !a.LatestRegistration.Equal(b.LatestRegistration) {
				return a.LatestRegistration.After(b.LatestRegistration)
			}
		default:
			if a.TotalRegistrations != b.TotalRegistrations {
				return a.TotalRegistrations > b.TotalRegistrations
			}
		}
		an, bn := attribution.NormalizeName(a.InfluencerName), attribution.NormalizeName(b.InfluencerName)
		if an != bn {
			return an < bn
		}
		return a.InfluencerName < b.InfluencerName
	})
}
