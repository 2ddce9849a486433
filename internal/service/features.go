package service

import (
	"context"

	"go.uber.org/zap"

	"influencer-attribution-api/internal/features"
	"influencer-attribution-api/internal/logger"
	"influencer-attribution-api/internal/validation"
)

// Features lists the registered feature flags.
func (s *Service) Features() []features.FeatureFlag {
	return s.features.List()
}

// SetFeature toggles a registered flag at runtime. Toggling the analytics
// cache also drops any rollups cached under the previous setting.
func (s *Service) SetFeature(ctx context.Context, name string, enabled bool) (features.FeatureFlag, error) {
	name = validation.SanitizeString(name)
	if !s.features.Set(name, enabled) {
		return features.FeatureFlag{}, &validation.NotFoundError{Resource: "feature", ID: name}
	}

	if name == features.AnalyticsCache {
		s.invalidateAnalytics(ctx)
	}
	logger.Ctx(ctx).Info("feature flag updated", zap.String("feature", name), zap.Bool("enabled", enabled))

	for _, f := range s.features.List() {
		if f.Name == name {
			return f, nil
		}
	}
	return features.FeatureFlag{Name: name, Enabled: enabled}, nil
}
