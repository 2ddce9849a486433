package utm

import (
	"context"

	"go.uber.org/zap"

	"influencer-attribution-api/internal/logger"
	"influencer-attribution-api/internal/models"
)

// CaptureFirstTouch stores the query's attribution when it is non-empty and
// the visitor has no record yet. Later touches never overwrite. Storage
// failures are logged and swallowed so capture cannot block the visitor.
func CaptureFirstTouch(ctx context.Context, rawQuery string, store Store) bool {
	t := ParseAttribution(rawQuery)
	if t.IsEmpty() {
		return false
	}

	log := logger.Ctx(ctx)

	existing, err := store.Read(ctx)
	if err != nil {
		log.Warn("first-touch read failed", zap.Error(err))
		return false
	}
	if existing != nil {
		return false
	}

	written, err := store.Write(ctx, t)
	if err != nil {
		log.Warn("first-touch write failed", zap.Error(err))
		return false
	}
	return written
}

// ReadFirstTouch returns the stored record or nil. Read failures count as
// "no attribution".
func ReadFirstTouch(ctx context.Context, store Store) *models.AttributionTuple {
	t, err := store.Read(ctx)
	if err != nil {
		logger.Ctx(ctx).Warn("first-touch read failed", zap.Error(err))
		return nil
	}
	if t == nil || t.IsEmpty() {
		return nil
	}
	return t
}
