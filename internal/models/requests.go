package models

// CaptureVisitRequest is the body of POST /visits.
type CaptureVisitRequest struct {
	VisitorID string `json:"visitor_id"`
	Query     string `json:"query"`
}

// CaptureVisitResponse reports the visitor's first-touch record after capture.
type CaptureVisitResponse struct {
	VisitorID  string            `json:"visitor_id"`
	Captured   bool              `json:"captured"`
	FirstTouch *AttributionTuple `json:"first_touch"`
}

// SaveStepRequest is the body of POST /registrations/steps.
// Explicit utm_* values win over the stored first touch.
type SaveStepRequest struct {
	VisitorID    string     `json:"visitor_id"`
	Phone        string     `json:"phone"`
	Step         string     `json:"step"`
	Status       LeadStatus `json:"status,omitempty"`
	SelectedSlot string     `json:"selected_slot,omitempty"`
	SlotDate     string     `json:"slot_date,omitempty"`
	AttributionTuple
}

// ImportLeadsRequest is the body of POST /leads/import.
type ImportLeadsRequest struct {
	Leads []LeadRecord `json:"leads"`
}

// ImportLeadsResponse reports how many leads were stored.
type ImportLeadsResponse struct {
	Imported int `json:"imported"`
}

// CreateLinkRequest is the body of POST /referral-links.
type CreateLinkRequest struct {
	InfluencerName string   `json:"influencerName"`
	Platform       Platform `json:"platform"`
	Campaign       string   `json:"campaign"`
	Save           bool     `json:"save"`
}

// CreateLinkResponse carries the generated link; ID is set only when saved.
type CreateLinkResponse struct {
	UTMLink string `json:"utmLink"`
	ID      string `json:"id,omitempty"`
}

// SetFeatureRequest is the body of PUT /features/{name}.
type SetFeatureRequest struct {
	Enabled *bool `json:"enabled"`
}

// ErrorResponse represents an error response.
type ErrorResponse struct {
	Error string `json:"error"`
}
