package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"influencer-attribution-api/internal/models"
	"influencer-attribution-api/internal/slots"
	"influencer-attribution-api/internal/utm"
	"influencer-attribution-api/internal/validation"
)

// Registration steps, in order.
const (
	StepOne              = "step1"
	StepTwo              = "step2"
	StepThree            = "step3"
	StepPostRegistration = "post_registration"
)

// stepStatus is the status implied by a step when the caller sends none.
var stepStatus = map[string]models.LeadStatus{
	StepOne:              models.StatusInProgress,
	StepTwo:              models.StatusInProgress,
	StepThree:            models.StatusRegistered,
	StepPostRegistration: models.StatusCompleted,
}

func parseStep(step string) (string, error) {
	step = strings.ToLower(validation.SanitizeString(step))
	if step == "post-registration" {
		step = StepPostRegistration
	}
	if _, ok := stepStatus[step]; !ok {
		return "", &validation.ValidationError{
			Field:   "step",
			Message: "must be one of step1, step2, step3, post_registration",
		}
	}
	return step, nil
}

// normalizeSlotDate turns an RFC3339 timestamp into its calendar day in the
// business timezone. Anything else is returned unchanged for ParseDate.
func normalizeSlotDate(value string) string {
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return models.DayString(t)
	}
	return value
}

// parseBooking validates an optional slot selection. Both parts must be
// present together and the date must fall on the slot's weekday.
func parseBooking(slotID, slotDate string) (string, string, error) {
	slotID = validation.SanitizeString(slotID)
	slotDate = normalizeSlotDate(validation.SanitizeString(slotDate))

	if slotID == "" && slotDate == "" {
		return "", "", nil
	}
	if slotID == "" || slotDate == "" {
		return "", "", &validation.ValidationError{
			Field:   "selected_slot",
			Message: "slot and slot date must be given together",
		}
	}

	id, err := slots.Parse(slotID)
	if err != nil {
		return "", "", err
	}
	if err := slots.ValidateSlotDate(slotDate, id); err != nil {
		return "", "", err
	}
	return string(id), slotDate, nil
}

// SaveRegistrationStep persists one onboarding step. The attribution sent
// upstream is the request's explicit utm_* values over the visitor's first
// touch. Leads are keyed by phone, so repeated steps update one row.
func (s *Service) SaveRegistrationStep(ctx context.Context, req models.SaveStepRequest) (models.RegistrationEvent, error) {
	ctx, span := s.startSpan(ctx, "service.SaveRegistrationStep")
	defer span.End()

	step, err := parseStep(req.Step)
	if err != nil {
		return models.RegistrationEvent{}, err
	}

	phone, err := validation.NormalizePhone(req.Phone)
	if err != nil {
		return models.RegistrationEvent{}, err
	}

	status := stepStatus[step]
	if req.Status != "" {
		if status, err = validation.ParseLeadStatus(string(req.Status)); err != nil {
			return models.RegistrationEvent{}, err
		}
	}

	slotID, slotDate, err := parseBooking(req.SelectedSlot, req.SlotDate)
	if err != nil {
		return models.RegistrationEvent{}, err
	}

	var stored *models.AttributionTuple
	if req.VisitorID != "" {
		store, err := s.visitorStore(req.VisitorID)
		if err != nil {
			return models.RegistrationEvent{}, err
		}
		stored = utm.ReadFirstTouch(ctx, store)
	}

	attr := utm.Merge(req.AttributionTuple, stored)
	if err := validation.ValidateAttribution(attr); err != nil {
		return models.RegistrationEvent{}, err
	}

	now := s.now()
	lead, err := s.db.UpsertLead(ctx, models.RegistrationEvent{
		ID:          s.newID(),
		Phone:       phone,
		Attribution: attr,
		Status:      status,
		SlotID:      slotID,
		SlotDate:    slotDate,
		CreatedAt:   now,
		UpdatedAt:   now,
	})
	if err != nil {
		return models.RegistrationEvent{}, fmt.Errorf("failed to save registration step: %w", err)
	}

	s.invalidateAnalytics(ctx)
	if s.hooksEnabled() {
		s.events.PublishLeadSaved(ctx, []models.RegistrationEvent{lead}, 1)
	}

	return lead, nil
}

// leadFromRecord converts the inbound wire shape into a stored row.
func (s *Service) leadFromRecord(rec models.LeadRecord) (models.RegistrationEvent, error) {
	lead := models.RegistrationEvent{
		ID: s.newID(),
		Attribution: utm.Normalize(models.AttributionTuple{
			Source:   rec.UTMSource,
			Medium:   rec.UTMMedium,
			Campaign: rec.UTMCampaign,
			Content:  rec.UTMContent,
		}),
	}

	if phone := validation.SanitizeString(rec.Phone); phone != "" {
		normalized, err := validation.NormalizePhone(phone)
		if err != nil {
			return models.RegistrationEvent{}, err
		}
		lead.Phone = normalized
	}

	status, err := validation.ParseLeadStatus(rec.ApplicationStatus)
	if err != nil {
		return models.RegistrationEvent{}, err
	}
	lead.Status = status

	if lead.SlotID, lead.SlotDate, err = parseBooking(rec.SelectedSlot, rec.SlotDate); err != nil {
		return models.RegistrationEvent{}, err
	}

	if err := validation.ValidateAttribution(lead.Attribution); err != nil {
		return models.RegistrationEvent{}, err
	}

	createdAt, err := validation.ValidateTimeString(validation.SanitizeString(rec.CreatedAt))
	if err != nil {
		return models.RegistrationEvent{}, &validation.ValidationError{Field: "createdAt", Message: "must be a valid RFC3339 timestamp"}
	}
	lead.CreatedAt = createdAt.UTC()
	lead.UpdatedAt = s.now()

	return lead, nil
}

// ImportLeads ingests lead records in bulk. The whole batch is rejected if
// any record is invalid.
func (s *Service) ImportLeads(ctx context.Context, records []models.LeadRecord) (int, error) {
	ctx, span := s.startSpan(ctx, "service.ImportLeads")
	defer span.End()

	if len(records) == 0 {
		return 0, &validation.ValidationError{Field: "leads", Message: "no leads provided"}
	}
	if len(records) > MaxImportBatch {
		return 0, &validation.ValidationError{
			Field:   "leads",
			Message: fmt.Sprintf("cannot process more than %d leads per request", MaxImportBatch),
		}
	}

	leads := make([]models.RegistrationEvent, 0, len(records))
	for i, rec := range records {
		lead, err := s.leadFromRecord(rec)
		if err != nil {
			return 0, fmt.Errorf("invalid lead at index %d: %w", i, err)
		}
		leads = append(leads, lead)
	}

	n, err := s.db.InsertLeads(ctx, leads)
	if err != nil {
		return 0, fmt.Errorf("failed to import leads: %w", err)
	}

	s.invalidateAnalytics(ctx)
	if s.hooksEnabled() {
		s.events.PublishLeadSaved(ctx, nil, n)
	}

	return n, nil
}

// ListLeads returns the materialized lead rows, oldest first.
func (s *Service) ListLeads(ctx context.Context) ([]models.RegistrationEvent, error) {
	leads, err := s.db.ListLeads(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list leads: %w", err)
	}
	return leads, nil
}
