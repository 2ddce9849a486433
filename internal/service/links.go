package service

import (
	"context"
	"fmt"

	"influencer-attribution-api/internal/attribution"
	"influencer-attribution-api/internal/models"
)

// CreateLink generates a referral link and, when req.Save is set, stores it.
func (s *Service) CreateLink(ctx context.Context, req models.CreateLinkRequest) (models.ReferralLink, error) {
	ctx, span := s.startSpan(ctx, "service.CreateLink")
	defer span.End()

	link, err := s.links.Create(ctx, req)
	if err != nil {
		return models.ReferralLink{}, err
	}

	if req.Save {
		s.invalidateAnalytics(ctx)
		if s.hooksEnabled() {
			s.events.PublishLinkCreated(ctx, link)
		}
	}

	return link, nil
}

// ListLinks returns saved links, newest first, with lead counts derived
// from the current lead rows.
func (s *Service) ListLinks(ctx context.Context) ([]models.ReferralLink, error) {
	ctx, span := s.startSpan(ctx, "service.ListLinks")
	defer span.End()

	links, err := s.links.List(ctx)
	if err != nil {
		return nil, err
	}

	leads, err := s.db.ListLeads(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load leads: %w", err)
	}

	return attribution.AnnotateLinks(links, leads), nil
}

// DeleteLink removes a saved link. Unknown ids are a NotFoundError.
func (s *Service) DeleteLink(ctx context.Context, id string) error {
	ctx, span := s.startSpan(ctx, "service.DeleteLink")
	defer span.End()

	if err := s.links.Delete(ctx, id); err != nil {
		return err
	}

	s.invalidateAnalytics(ctx)
	if s.hooksEnabled() {
		s.events.PublishLinkDeleted(ctx, id)
	}
	return nil
}
