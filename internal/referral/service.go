package referral

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"influencer-attribution-api/internal/models"
	"influencer-attribution-api/internal/validation"
)

// Repository persists saved referral links.
type Repository interface {
	InsertLink(ctx context.Context, link models.ReferralLink) error
	ListLinks(ctx context.Context) ([]models.ReferralLink, error)
	// DeleteLink reports whether a link with id existed.
	DeleteLink(ctx context.Context, id string) (bool, error)
}

// Service creates, lists and deletes referral links.
type Service struct {
	repo  Repository
	gen   Generator
	now   func() time.Time
	newID func() string
}

func NewService(repo Repository, gen Generator) *Service {
	return &Service{
		repo:  repo,
		gen:   gen,
		now:   func() time.Time { return time.Now().UTC() },
		newID: func() string { return uuid.New().String() },
	}
}

// Create validates the request and computes the link. With save set the
// link is also stored under a fresh id; without it the result is a preview
// and carries no id.
func (s *Service) Create(ctx context.Context, req models.CreateLinkRequest) (models.ReferralLink, error) {
	req.InfluencerName = validation.SanitizeString(req.InfluencerName)
	req.Campaign = validation.SanitizeString(req.Campaign)
	if p, err := validation.ParsePlatform(string(req.Platform)); err == nil {
		req.Platform = p
	}

	if err := validation.ValidateCreateLink(req); err != nil {
		return models.ReferralLink{}, err
	}

	campaign := req.Campaign
	if campaign == "" {
		campaign = s.gen.DefaultCampaign
	}

	link := models.ReferralLink{
		InfluencerName: req.InfluencerName,
		Platform:       req.Platform,
		Campaign:       campaign,
		UTMLink:        s.gen.Link(req.InfluencerName, req.Platform, campaign),
		CreatedAt:      s.now(),
	}

	if !req.Save {
		return link, nil
	}

	link.ID = s.newID()
	if err := s.repo.InsertLink(ctx, link); err != nil {
		return models.ReferralLink{}, fmt.Errorf("failed to save referral link: %w", err)
	}

	return link, nil
}

// List returns saved links without derived lead counts.
func (s *Service) List(ctx context.Context) ([]models.ReferralLink, error) {
	links, err := s.repo.ListLinks(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list referral links: %w", err)
	}
	return links, nil
}

func (s *Service) Delete(ctx context.Context, id string) error {
	id = validation.SanitizeString(id)
	if id == "" {
		return &validation.ValidationError{Field: "id", Message: "is required"}
	}

	deleted, err := s.repo.DeleteLink(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to delete referral link: %w", err)
	}
	if !deleted {
		return &validation.NotFoundError{Resource: "referral link", ID: id}
	}
	return nil
}
