package service

import (
	"context"
	"strconv"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"influencer-attribution-api/internal/cache"
	"influencer-attribution-api/internal/database"
	"influencer-attribution-api/internal/events"
	"influencer-attribution-api/internal/features"
	"influencer-attribution-api/internal/logger"
	"influencer-attribution-api/internal/referral"
	"influencer-attribution-api/internal/tracing"
)

// MaxImportBatch caps the number of leads accepted by one import call.
const MaxImportBatch = 1000

// FirstTouchBackend selects where visitors' first-touch records live.
type FirstTouchBackend string

const (
	// FirstTouchDatabase keeps records in sqlite so they survive restarts.
	FirstTouchDatabase FirstTouchBackend = "database"
	// FirstTouchCache keeps records in the shared cache. Only use it with a
	// persistent cache such as Redis.
	FirstTouchCache FirstTouchBackend = "cache"
)

// Options tunes a Service. Zero values fall back to defaults.
type Options struct {
	Generator    referral.Generator
	CacheTTL     time.Duration
	MaxRangeDays int
	FirstTouch   FirstTouchBackend
}

// Service wires the attribution core to storage, caching and events.
type Service struct {
	db       *database.DB
	cache    cache.Cache
	events   *events.Manager
	features *features.Manager
	links    *referral.Service
	tracer   *tracing.Tracer

	cacheTTL     time.Duration
	maxRangeDays int
	firstTouch   FirstTouchBackend

	now   func() time.Time
	newID func() string
}

// NewService creates a new service instance. events and flags may be nil.
func NewService(db *database.DB, c cache.Cache, ev *events.Manager, flags *features.Manager, opts Options) *Service {
	if c == nil {
		c = cache.NewInMemoryCache()
	}
	if ev == nil {
		ev = events.NewManager(false, nil)
	}
	gen := opts.Generator
	if gen.BaseURL == "" {
		gen.BaseURL = referral.DefaultBaseURL
	}
	gen = referral.NewGenerator(gen.BaseURL, gen.Medium, gen.DefaultCampaign)
	if opts.MaxRangeDays <= 0 {
		opts.MaxRangeDays = 366
	}
	if opts.FirstTouch != FirstTouchCache {
		opts.FirstTouch = FirstTouchDatabase
	}

	return &Service{
		db:           db,
		cache:        c,
		events:       ev,
		features:     flags,
		links:        referral.NewService(db, gen),
		tracer:       tracing.GetTracer(),
		cacheTTL:     opts.CacheTTL,
		maxRangeDays: opts.MaxRangeDays,
		firstTouch:   opts.FirstTouch,
		now:          func() time.Time { return time.Now().UTC() },
		newID:        func() string { return uuid.New().String() },
	}
}

// Ping reports whether the database is reachable.
func (s *Service) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

func (s *Service) startSpan(ctx context.Context, name string) (context.Context, trace.Span) {
	return s.tracer.StartSpan(ctx, name)
}

func (s *Service) hooksEnabled() bool {
	return s.features.IsEnabled(features.EventHooks)
}

const analyticsGenerationKey = "analytics:generation"

// invalidateAnalytics moves cached rollups to a new generation. Old entries
// are left to expire.
func (s *Service) invalidateAnalytics(ctx context.Context) {
	gen := strconv.FormatInt(s.now().UnixNano(), 10)
	if err := s.cache.Set(ctx, analyticsGenerationKey, []byte(gen), 0); err != nil {
		logger.Ctx(ctx).Warn("failed to bump analytics generation", zap.Error(err))
	}
}

func (s *Service) analyticsGeneration(ctx context.Context) string {
	b, err := s.cache.Get(ctx, analyticsGenerationKey)
	if err != nil {
		return "0"
	}
	return string(b)
}
