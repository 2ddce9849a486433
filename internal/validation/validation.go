package validation

import (
	"fmt"
	"regexp"
	"strings"
	"time"
	"unicode"

	"influencer-attribution-api/internal/models"
)

var (
	visitorIDRegex = regexp.MustCompile(`^[A-Za-z0-9_-]{1,128}$`)
	digitsRegex    = regexp.MustCompile(`\D`)
)

const (
	maxNameLength     = 100
	maxCampaignLength = 100
	maxUTMValueLength = 200
)

func SanitizeString(s string) string {
	s = strings.Map(func(r rune) rune {
		if unicode.IsControl(r) && r != '\n' && r != '\r' && r != '\t' {
			return -1
		}
		return r
	}, s)

	return strings.TrimSpace(s)
}

func ValidateCreateLink(req models.CreateLinkRequest) error {
	if req.InfluencerName == "" {
		return &ValidationError{
			Field:   "influencerName",
			Message: "is required",
		}
	}

	if len(req.InfluencerName) > maxNameLength {
		return &ValidationError{
			Field:   "influencerName",
			Message: fmt.Sprintf("cannot exceed %d characters", maxNameLength),
		}
	}

	if len(req.Campaign) > maxCampaignLength {
		return &ValidationError{
			Field:   "campaign",
			Message: fmt.Sprintf("cannot exceed %d characters", maxCampaignLength),
		}
	}

	return ValidatePlatform(req.Platform)
}

func ValidatePlatform(p models.Platform) error {
	for _, known := range models.Platforms {
		if p == known {
			return nil
		}
	}
	return &ValidationError{
		Field:   "platform",
		Message: "must be one of Instagram, YouTube, Twitter, WhatsApp, Telegram",
	}
}

// ParsePlatform matches a platform name case-insensitively.
func ParsePlatform(s string) (models.Platform, error) {
	s = SanitizeString(s)
	for _, known := range models.Platforms {
		if strings.EqualFold(s, string(known)) {
			return known, nil
		}
	}
	return "", ValidatePlatform(models.Platform(s))
}

func ValidateVisitorID(id string) error {
	if id == "" {
		return &ValidationError{
			Field:   "visitor_id",
			Message: "is required",
		}
	}

	if !visitorIDRegex.MatchString(id) {
		return &ValidationError{
			Field:   "visitor_id",
			Message: "must be 1-128 characters of letters, digits, '-' or '_'",
		}
	}

	return nil
}

// NormalizePhone strips formatting and an Indian country code, leaving ten digits.
func NormalizePhone(phone string) (string, error) {
	digits := digitsRegex.ReplaceAllString(phone, "")
	if len(digits) == 12 && strings.HasPrefix(digits, "91") {
		digits = digits[2:]
	}
	if len(digits) == 11 && strings.HasPrefix(digits, "0") {
		digits = digits[1:]
	}

	if digits == "" {
		return "", &ValidationError{
			Field:   "phone",
			Message: "is required",
		}
	}

	if len(digits) != 10 {
		return "", &ValidationError{
			Field:   "phone",
			Message: "must be a 10-digit mobile number",
		}
	}

	return digits, nil
}

// ParseLeadStatus accepts the wire status values. Empty means in_progress.
func ParseLeadStatus(s string) (models.LeadStatus, error) {
	status := models.LeadStatus(strings.ToLower(SanitizeString(s)))
	if status == "" {
		return models.StatusInProgress, nil
	}
	if status.Rank() == 0 {
		return "", &ValidationError{
			Field:   "status",
			Message: "must be one of in_progress, registered, completed",
		}
	}
	return status, nil
}

// ValidateAttribution bounds the length of each UTM value. The first
// offending field in source, medium, campaign, content order is reported.
func ValidateAttribution(a models.AttributionTuple) error {
	fields := []struct {
		name  string
		value string
	}{
		{"utm_source", a.Source},
		{"utm_medium", a.Medium},
		{"utm_campaign", a.Campaign},
		{"utm_content", a.Content},
	}
	for _, f := range fields {
		if len(f.value) > maxUTMValueLength {
			return &ValidationError{
				Field:   f.name,
				Message: fmt.Sprintf("cannot exceed %d characters", maxUTMValueLength),
			}
		}
	}
	return nil
}

func ValidateTimeString(timeStr string) (time.Time, error) {
	if timeStr == "" {
		return time.Time{}, &ValidationError{
			Field:   "time",
			Message: "is required",
		}
	}

	t, err := time.Parse(time.RFC3339, timeStr)
	if err != nil {
		return time.Time{}, &ValidationError{
			Field:   "time",
			Message: "must be a valid RFC3339 timestamp",
		}
	}

	return t, nil
}
