package service

import (
	"context"
	"fmt"

	"influencer-attribution-api/internal/models"
	"influencer-attribution-api/internal/slots"
	"influencer-attribution-api/internal/validation"
)

// defaultScheduleDays is the window shown when a schedule request has
// no bounds.
const defaultScheduleDays = 7

// RecurringSlots returns all 21 weekly slots with their template state.
// Slots never configured are reported disabled.
func (s *Service) RecurringSlots(ctx context.Context) ([]models.RecurringSlot, error) {
	rows, err := s.db.ListRecurringSlots(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load recurring slots: %w", err)
	}

	tmpl := slots.NewTemplate(rows)
	out := make([]models.RecurringSlot, 0, len(slots.All()))
	for _, id := range slots.All() {
		out = append(out, models.RecurringSlot{SlotID: string(id), Enabled: tmpl[id]})
	}
	return out, nil
}

// SetRecurringSlot updates one entry of the weekly template.
func (s *Service) SetRecurringSlot(ctx context.Context, req models.RecurringSlot) (models.RecurringSlot, error) {
	id, err := slots.Parse(req.SlotID)
	if err != nil {
		return models.RecurringSlot{}, err
	}
	slot := models.RecurringSlot{SlotID: string(id), Enabled: req.Enabled}

	if err := s.db.SetRecurringSlot(ctx, slot); err != nil {
		return models.RecurringSlot{}, fmt.Errorf("failed to save recurring slot: %w", err)
	}
	return slot, nil
}

// Overrides lists per-date overrides with dates in [from, to].
func (s *Service) Overrides(ctx context.Context, from, to string) ([]models.SlotOverride, error) {
	r, err := validation.ParseDateRange(validation.SanitizeString(from), validation.SanitizeString(to), 0)
	if err != nil {
		return nil, err
	}
	if r.IsVacuous() {
		return []models.SlotOverride{}, nil
	}

	var lo, hi string
	if r.From != nil {
		lo = models.DayString(*r.From)
	}
	if r.To != nil {
		hi = models.DayString(*r.To)
	}

	overrides, err := s.db.ListOverrides(ctx, lo, hi)
	if err != nil {
		return nil, fmt.Errorf("failed to load slot overrides: %w", err)
	}
	return overrides, nil
}

// SetOverride stores a per-date override. The date must fall on the
// slot's weekday.
func (s *Service) SetOverride(ctx context.Context, req models.SlotOverride) (models.SlotOverride, error) {
	id, err := slots.Parse(req.SlotID)
	if err != nil {
		return models.SlotOverride{}, err
	}
	date := validation.SanitizeString(req.Date)
	if err := slots.ValidateSlotDate(date, id); err != nil {
		return models.SlotOverride{}, err
	}

	o := models.SlotOverride{Date: date, SlotID: string(id), Enabled: req.Enabled}
	if err := s.db.SetOverride(ctx, o); err != nil {
		return models.SlotOverride{}, fmt.Errorf("failed to save slot override: %w", err)
	}
	return o, nil
}

// DeleteOverride reverts a date to the weekly template.
func (s *Service) DeleteOverride(ctx context.Context, date, slotID string) error {
	id, err := slots.Parse(slotID)
	if err != nil {
		return err
	}
	date = validation.SanitizeString(date)
	if _, err := validation.ParseDate("date", date); err != nil {
		return err
	}

	deleted, err := s.db.DeleteOverride(ctx, date, string(id))
	if err != nil {
		return fmt.Errorf("failed to delete slot override: %w", err)
	}
	if !deleted {
		return &validation.NotFoundError{Resource: "slot override", ID: slots.OverrideKey(date, id)}
	}
	return nil
}

// Bookings counts confirmed bookings per date and slot.
func (s *Service) Bookings(ctx context.Context, from, to string) ([]models.SlotBookingCount, error) {
	ctx, span := s.startSpan(ctx, "service.Bookings")
	defer span.End()

	r, err := validation.ParseDateRange(validation.SanitizeString(from), validation.SanitizeString(to), s.maxRangeDays)
	if err != nil {
		return nil, err
	}

	leads, err := s.db.ListLeads(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load leads: %w", err)
	}
	return slots.CountBookings(leads, r), nil
}

// Schedule reports the effective state and booking count of every slot on
// every date in range. Missing bounds default to a week starting today.
func (s *Service) Schedule(ctx context.Context, from, to string) ([]models.SlotAvailability, error) {
	ctx, span := s.startSpan(ctx, "service.Schedule")
	defer span.End()

	r, err := validation.ParseDateRange(validation.SanitizeString(from), validation.SanitizeString(to), s.maxRangeDays)
	if err != nil {
		return nil, err
	}
	switch {
	case r.From == nil && r.To == nil:
		start := models.Day(s.now())
		end := start.AddDate(0, 0, defaultScheduleDays-1)
		r = models.NewDateRange(&start, &end)
	case r.From == nil:
		start := r.To.AddDate(0, 0, -(defaultScheduleDays - 1))
		r = models.NewDateRange(&start, r.To)
	case r.To == nil:
		end := r.From.AddDate(0, 0, defaultScheduleDays-1)
		r = models.NewDateRange(r.From, &end)
	}

	recurring, err := s.db.ListRecurringSlots(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load recurring slots: %w", err)
	}
	overrides, err := s.Overrides(ctx, models.DayString(*r.From), models.DayString(*r.To))
	if err != nil {
		return nil, err
	}
	leads, err := s.db.ListLeads(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load leads: %w", err)
	}

	return slots.Schedule(
		slots.NewTemplate(recurring),
		slots.NewOverrides(overrides),
		slots.CountBookings(leads, r),
		r,
	), nil
}
