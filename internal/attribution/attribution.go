// Package attribution credits registration events to saved referral links.
//
// Events and links are joined on a normalized influencer name: the event's
// utm_content and the link's influencer name, both trimmed and lower-cased.
// Several links may share a normalized name (one influencer, several
// campaigns or platforms); each of those links is credited with every
// matching event.
package attribution

import (
	"strings"
	"time"

	"influencer-attribution-api/internal/models"
)

// NormalizeName is the join key between events and links.
func NormalizeName(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// Index maps a normalized influencer name to its most recently created link.
type Index map[string]models.ReferralLink

// NewIndex builds an Index. Among links sharing a name the latest createdAt
// wins, ties going to the larger id so the choice is stable.
func NewIndex(links []models.ReferralLink) Index {
	idx := make(Index, len(links))
	for _, link := range links {
		key := NormalizeName(link.InfluencerName)
		if key == "" {
			continue
		}
		current, ok := idx[key]
		if !ok || link.CreatedAt.After(current.CreatedAt) ||
			(link.CreatedAt.Equal(current.CreatedAt) && link.ID > current.ID) {
			idx[key] = link
		}
	}
	return idx
}

// Lookup returns the link credited for a raw utm_content value.
func (idx Index) Lookup(content string) (models.ReferralLink, bool) {
	key := NormalizeName(content)
	if key == "" {
		return models.ReferralLink{}, false
	}
	link, ok := idx[key]
	return link, ok
}

// ResolveInfluencer returns the influencer an event is credited to, or false
// when the event has no content or matches no saved link.
func ResolveInfluencer(event models.RegistrationEvent, links []models.ReferralLink) (string, bool) {
	link, ok := NewIndex(links).Lookup(event.Attribution.Content)
	if !ok {
		return "", false
	}
	return strings.TrimSpace(link.InfluencerName), true
}

type tally struct {
	count  int
	latest time.Time
}

// AnnotateLinks returns copies of links with LeadCount and LatestLeadAt
// computed from events. The input order is preserved.
func AnnotateLinks(links []models.ReferralLink, events []models.RegistrationEvent) []models.ReferralLink {
	tallies := make(map[string]*tally)
	for _, ev := range events {
		key := NormalizeName(ev.Attribution.Content)
		if key == "" {
			continue
		}
		t, ok := tallies[key]
		if !ok {
			t = &tally{}
			tallies[key] = t
		}
		t.count++
		if ev.CreatedAt.After(t.latest) {
			t.latest = ev.CreatedAt
		}
	}

	out := make([]models.ReferralLink, len(links))
	for i, link := range links {
		link.LeadCount = 0
		link.LatestLeadAt = nil
		if t, ok := tallies[NormalizeName(link.InfluencerName)]; ok {
			link.LeadCount = t.count
			latest := t.latest
			link.LatestLeadAt = &latest
		}
		out[i] = link
	}
	return out
}
