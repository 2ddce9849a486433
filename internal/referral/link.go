// Package referral builds trackable influencer links and manages the saved
// link registry.
package referral

import (
	"net/url"
	"strings"

	"influencer-attribution-api/internal/models"
	"influencer-attribution-api/internal/utm"
)

const (
	DefaultBaseURL  = "https://guidexperts.in/counsellor-registration"
	DefaultMedium   = "referral"
	DefaultCampaign = "guide_xperts"
)

// Generator encodes (influencer, platform, campaign) as UTM parameters on a
// base registration URL.
type Generator struct {
	BaseURL         string
	Medium          string
	DefaultCampaign string
}

// NewGenerator fills empty medium and campaign defaults.
func NewGenerator(baseURL, medium, defaultCampaign string) Generator {
	if medium == "" {
		medium = DefaultMedium
	}
	if defaultCampaign == "" {
		defaultCampaign = DefaultCampaign
	}
	return Generator{BaseURL: baseURL, Medium: medium, DefaultCampaign: defaultCampaign}
}

// Link is deterministic: identical inputs give byte-identical output, since
// query keys are always encoded in sorted order.
func (g Generator) Link(influencerName string, platform models.Platform, campaign string) string {
	campaign = strings.TrimSpace(campaign)
	if campaign == "" {
		campaign = g.DefaultCampaign
	}

	params := map[string]string{
		utm.KeySource:   string(platform),
		utm.KeyMedium:   g.Medium,
		utm.KeyCampaign: campaign,
		utm.KeyContent:  strings.TrimSpace(influencerName),
	}

	u, err := url.Parse(g.BaseURL)
	if err != nil {
		q := url.Values{}
		for k, v := range params {
			q.Set(k, v)
		}
		return g.BaseURL + separator(g.BaseURL) + q.Encode()
	}

	q := u.Query()
	for k, v := range params {
		q.Set(k, v)
	}
	u.RawQuery = q.Encode()
	return u.String()
}

func separator(base string) string {
	switch {
	case strings.HasSuffix(base, "?"), strings.HasSuffix(base, "&"):
		return ""
	case strings.Contains(base, "?"):
		return "&"
	default:
		return "?"
	}
}

// BuildLink is Link with the default medium and campaign.
func BuildLink(baseURL, influencerName string, platform models.Platform, campaign string) string {
	return NewGenerator(baseURL, "", "").Link(influencerName, platform, campaign)
}
