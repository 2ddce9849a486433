package service

import (
	"context"
	"fmt"

	"influencer-attribution-api/internal/models"
	"influencer-attribution-api/internal/utm"
	"influencer-attribution-api/internal/validation"
)

func (s *Service) visitorStore(visitorID string) (utm.Store, error) {
	visitorID = validation.SanitizeString(visitorID)
	if err := validation.ValidateVisitorID(visitorID); err != nil {
		return nil, err
	}
	if s.firstTouch == FirstTouchCache {
		return utm.VisitorStore(s.cache, visitorID), nil
	}
	return utm.RepositoryVisitorStore(s.db, visitorID), nil
}

// CaptureVisit records first-touch attribution for a landing visit. The
// response always carries the visitor's current record, which is the
// earlier one when this visit was not the first touch.
func (s *Service) CaptureVisit(ctx context.Context, req models.CaptureVisitRequest) (models.CaptureVisitResponse, error) {
	ctx, span := s.startSpan(ctx, "service.CaptureVisit")
	defer span.End()

	store, err := s.visitorStore(req.VisitorID)
	if err != nil {
		return models.CaptureVisitResponse{}, err
	}

	captured := utm.CaptureFirstTouch(ctx, req.Query, store)
	first := utm.ReadFirstTouch(ctx, store)

	if captured && first != nil && s.hooksEnabled() {
		s.events.PublishFirstTouchCaptured(ctx, req.VisitorID, *first)
	}

	return models.CaptureVisitResponse{
		VisitorID:  req.VisitorID,
		Captured:   captured,
		FirstTouch: first,
	}, nil
}

// ReadAttribution returns the visitor's first-touch record, or nil.
func (s *Service) ReadAttribution(ctx context.Context, visitorID string) (*models.AttributionTuple, error) {
	store, err := s.visitorStore(visitorID)
	if err != nil {
		return nil, err
	}
	return utm.ReadFirstTouch(ctx, store), nil
}

// ClearAttribution forgets the visitor's first touch so the next tagged
// visit is captured again.
func (s *Service) ClearAttribution(ctx context.Context, visitorID string) error {
	store, err := s.visitorStore(visitorID)
	if err != nil {
		return err
	}
	if err := store.Clear(ctx); err != nil {
		return fmt.Errorf("failed to clear attribution: %w", err)
	}
	return nil
}
