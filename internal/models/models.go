package models

import "time"

// AttributionTuple is one marketing touch. Empty fields are absent.
type AttributionTuple struct {
	Source   string `json:"utm_source,omitempty"`
	Medium   string `json:"utm_medium,omitempty"`
	Campaign string `json:"utm_campaign,omitempty"`
	Content  string `json:"utm_content,omitempty"`
}

// IsEmpty reports whether the tuple carries no attribution at all.
func (a AttributionTuple) IsEmpty() bool {
	return a.Source == "" && a.Medium == "" && a.Campaign == "" && a.Content == ""
}

// Platform is the channel a referral link is shared on.
type Platform string

const (
	PlatformInstagram Platform = "Instagram"
	PlatformYouTube   Platform = "YouTube"
	PlatformTwitter   Platform = "Twitter"
	PlatformWhatsApp  Platform = "WhatsApp"
	PlatformTelegram  Platform = "Telegram"
)

// Platforms lists every supported platform in display order.
var Platforms = []Platform{
	PlatformInstagram,
	PlatformYouTube,
	PlatformTwitter,
	PlatformWhatsApp,
	PlatformTelegram,
}

// ReferralLink is a trackable link generated for an influencer.
// LeadCount and LatestLeadAt are derived on read and never stored.
type ReferralLink struct {
	ID             string     `json:"id"`
	InfluencerName string     `json:"influencerName"`
	Platform       Platform   `json:"platform"`
	Campaign       string     `json:"campaign"`
	UTMLink        string     `json:"utmLink"`
	CreatedAt      time.Time  `json:"createdAt"`
	LeadCount      int        `json:"leadCount"`
	LatestLeadAt   *time.Time `json:"latestLeadAt,omitempty"`
}

// LeadStatus tracks how far a lead got through onboarding.
type LeadStatus string

const (
	StatusInProgress LeadStatus = "in_progress"
	StatusRegistered LeadStatus = "registered"
	StatusCompleted  LeadStatus = "completed"
)

// Rank orders statuses so that a lead never moves backwards.
func (s LeadStatus) Rank() int {
	switch s {
	case StatusInProgress:
		return 1
	case StatusRegistered:
		return 2
	case StatusCompleted:
		return 3
	default:
		return 0
	}
}

// RegistrationEvent is a materialized per-lead row.
type RegistrationEvent struct {
	ID          string           `json:"id"`
	Phone       string           `json:"phone,omitempty"`
	Attribution AttributionTuple `json:"attribution"`
	Status      LeadStatus       `json:"status"`
	SlotID      string           `json:"slotId,omitempty"`
	SlotDate    string           `json:"slotDate,omitempty"` // YYYY-MM-DD
	CreatedAt   time.Time        `json:"createdAt"`
	UpdatedAt   time.Time        `json:"updatedAt"`
}

// LeadRecord is the inbound wire shape of a lead as listed by the
// upstream "list leads" endpoints.
type LeadRecord struct {
	Phone             string `json:"phone"`
	UTMSource         string `json:"utm_source"`
	UTMMedium         string `json:"utm_medium"`
	UTMCampaign       string `json:"utm_campaign"`
	UTMContent        string `json:"utm_content"`
	ApplicationStatus string `json:"applicationStatus"`
	SelectedSlot      string `json:"selectedSlot"`
	SlotDate          string `json:"slotDate"`
	CreatedAt         string `json:"createdAt"`
}

// InfluencerAnalyticsRow is one row of the influencer performance table.
type InfluencerAnalyticsRow struct {
	InfluencerName     string    `json:"influencerName"`
	Platform           Platform  `json:"platform,omitempty"`
	TotalRegistrations int       `json:"totalRegistrations"`
	LatestRegistration time.Time `json:"latestRegistration"`
}

// TrendPoint is one day of the registration time series.
type TrendPoint struct {
	Date  string `json:"date"`
	Count int    `json:"count"`
}

// BreakdownRow counts events per value of a single UTM dimension.
type BreakdownRow struct {
	Value string `json:"value"`
	Count int    `json:"count"`
}

// SlotBookingCount is the number of confirmed bookings for a slot on a date.
type SlotBookingCount struct {
	Date   string `json:"date"`
	SlotID string `json:"slotId"`
	Count  int    `json:"count"`
}

// RecurringSlot is the weekly default for a slot.
type RecurringSlot struct {
	SlotID  string `json:"slotId"`
	Enabled bool   `json:"enabled"`
}

// SlotOverride replaces the weekly default for one date.
type SlotOverride struct {
	Date    string `json:"date"`
	SlotID  string `json:"slotId"`
	Enabled bool   `json:"enabled"`
}

// SlotAvailability is the effective state of a slot on a concrete date.
type SlotAvailability struct {
	Date       string `json:"date"`
	SlotID     string `json:"slotId"`
	Enabled    bool   `json:"enabled"`
	Overridden bool   `json:"overridden"`
	Booked     int    `json:"booked"`
}
