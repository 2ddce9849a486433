package service

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"influencer-attribution-api/internal/analytics"
	"influencer-attribution-api/internal/cache"
	"influencer-attribution-api/internal/features"
	"influencer-attribution-api/internal/logger"
	"influencer-attribution-api/internal/models"
	"influencer-attribution-api/internal/validation"
)

// AnalyticsQuery holds the raw query-string filters of an analytics request.
type AnalyticsQuery struct {
	From       string
	To         string
	Sort       string
	LinkedOnly bool
	Influencer string
	Dimension  string
}

func (s *Service) dateRange(q AnalyticsQuery) (models.DateRange, error) {
	return validation.ParseDateRange(
		validation.SanitizeString(q.From),
		validation.SanitizeString(q.To),
		s.maxRangeDays,
	)
}

// loadInputs fetches every lead row and every saved link. Aggregation is
// recomputed from scratch on each call.
func (s *Service) loadInputs(ctx context.Context) ([]models.RegistrationEvent, []models.ReferralLink, error) {
	leads, err := s.db.ListLeads(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load leads: %w", err)
	}
	links, err := s.db.ListLinks(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load referral links: %w", err)
	}
	return leads, links, nil
}

// InfluencerAnalytics returns the influencer performance table.
func (s *Service) InfluencerAnalytics(ctx context.Context, q AnalyticsQuery) ([]models.InfluencerAnalyticsRow, error) {
	ctx, span := s.startSpan(ctx, "service.InfluencerAnalytics")
	defer span.End()

	r, err := s.dateRange(q)
	if err != nil {
		return nil, err
	}
	sortBy, err := analytics.ParseSortBy(q.Sort)
	if err != nil {
		return nil, err
	}

	useCache := s.cacheTTL > 0 && s.features.IsEnabled(features.AnalyticsCache)
	key := fmt.Sprintf("analytics:influencers:%s:%s:%s:%s:%t",
		s.analyticsGeneration(ctx), q.From, q.To, sortBy, q.LinkedOnly)

	if useCache {
		var rows []models.InfluencerAnalyticsRow
		err := cache.GetJSON(ctx, s.cache, key, &rows)
		if err == nil {
			span.SetAttributes(attribute.Bool("cache.hit", true))
			return rows, nil
		}
		if !errors.Is(err, cache.ErrNotFound) {
			logger.Ctx(ctx).Warn("analytics cache read failed", zap.Error(err))
		}
	}

	leads, links, err := s.loadInputs(ctx)
	if err != nil {
		return nil, err
	}

	rows := analytics.Aggregate(leads, links, analytics.Options{
		Range:      r,
		SortBy:     sortBy,
		LinkedOnly: q.LinkedOnly,
	})
	span.SetAttributes(
		attribute.Bool("cache.hit", false),
		attribute.Int("analytics.events", len(leads)),
		attribute.Int("analytics.rows", len(rows)),
	)

	if useCache {
		if err := cache.SetJSON(ctx, s.cache, key, rows, s.cacheTTL); err != nil {
			logger.Ctx(ctx).Warn("analytics cache write failed", zap.Error(err))
		}
	}

	return rows, nil
}

// DailyTrend returns the contiguous per-day registration counts.
func (s *Service) DailyTrend(ctx context.Context, q AnalyticsQuery) ([]models.TrendPoint, error) {
	ctx, span := s.startSpan(ctx, "service.DailyTrend")
	defer span.End()

	r, err := s.dateRange(q)
	if err != nil {
		return nil, err
	}

	leads, err := s.db.ListLeads(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load leads: %w", err)
	}

	return analytics.DailyTrend(leads, analytics.TrendOptions{
		Range:      r,
		Influencer: validation.SanitizeString(q.Influencer),
	}), nil
}

// Breakdown counts lead rows per value of one UTM dimension.
func (s *Service) Breakdown(ctx context.Context, q AnalyticsQuery) ([]models.BreakdownRow, error) {
	ctx, span := s.startSpan(ctx, "service.Breakdown")
	defer span.End()

	r, err := s.dateRange(q)
	if err != nil {
		return nil, err
	}
	dim, err := analytics.ParseDimension(q.Dimension)
	if err != nil {
		return nil, err
	}

	leads, err := s.db.ListLeads(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load leads: %w", err)
	}

	return analytics.Breakdown(leads, r, dim), nil
}
