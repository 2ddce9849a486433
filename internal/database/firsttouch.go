package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"influencer-attribution-api/internal/models"
)

// GetFirstTouch returns the visitor's stored first touch, or nil when none
// has been captured.
func (db *DB) GetFirstTouch(ctx context.Context, visitorID string) (*models.AttributionTuple, error) {
	var t models.AttributionTuple
	err := db.conn.QueryRowContext(ctx,
		`SELECT utm_source, utm_medium, utm_campaign, utm_content
		FROM first_touch WHERE visitor_id = ?`, visitorID,
	).Scan(&t.Source, &t.Medium, &t.Campaign, &t.Content)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get first touch: %w", err)
	}
	return &t, nil
}

// InsertFirstTouch stores t for the visitor unless a record already exists.
// It reports whether the row was written.
func (db *DB) InsertFirstTouch(ctx context.Context, visitorID string, t models.AttributionTuple, capturedAt time.Time) (bool, error) {
	res, err := db.conn.ExecContext(ctx,
		`INSERT INTO first_touch (visitor_id, utm_source, utm_medium, utm_campaign, utm_content, captured_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(visitor_id) DO NOTHING`,
		visitorID, t.Source, t.Medium, t.Campaign, t.Content, formatTime(capturedAt),
	)
	if err != nil {
		return false, fmt.Errorf("failed to insert first touch: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read affected rows: %w", err)
	}
	return n > 0, nil
}

// DeleteFirstTouch forgets the visitor's record. Deleting a missing record
// is not an error.
func (db *DB) DeleteFirstTouch(ctx context.Context, visitorID string) error {
	if _, err := db.conn.ExecContext(ctx, `DELETE FROM first_touch WHERE visitor_id = ?`, visitorID); err != nil {
		return fmt.Errorf("failed to delete first touch: %w", err)
	}
	return nil
}
