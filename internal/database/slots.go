package database

import (
	"context"
	"fmt"
	"time"

	"influencer-attribution-api/internal/models"
)

// ListRecurringSlots returns the stored weekly template.
func (db *DB) ListRecurringSlots(ctx context.Context) ([]models.RecurringSlot, error) {
	rows, err := db.conn.QueryContext(ctx, `SELECT slot_id, enabled FROM slot_recurring ORDER BY slot_id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query recurring slots: %w", err)
	}
	defer rows.Close()

	slots := []models.RecurringSlot{}
	for rows.Next() {
		var s models.RecurringSlot
		if err := rows.Scan(&s.SlotID, &s.Enabled); err != nil {
			return nil, fmt.Errorf("failed to scan recurring slot: %w", err)
		}
		slots = append(slots, s)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating recurring slots: %w", err)
	}

	return slots, nil
}

// SetRecurringSlot creates or updates a weekly template entry.
func (db *DB) SetRecurringSlot(ctx context.Context, slot models.RecurringSlot) error {
	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO slot_recurring (slot_id, enabled, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(slot_id) DO UPDATE SET
			enabled = excluded.enabled,
			updated_at = excluded.updated_at`,
		slot.SlotID, slot.Enabled, formatTime(time.Now()),
	)
	if err != nil {
		return fmt.Errorf("failed to set recurring slot: %w", err)
	}
	return nil
}

// ListOverrides returns overrides with from <= date <= to. Empty bounds are open.
func (db *DB) ListOverrides(ctx context.Context, from, to string) ([]models.SlotOverride, error) {
	query := `SELECT date, slot_id, enabled FROM slot_overrides WHERE 1 = 1`
	var args []interface{}
	if from != "" {
		query += ` AND date >= ?`
		args = append(args, from)
	}
	if to != "" {
		query += ` AND date <= ?`
		args = append(args, to)
	}
	query += ` ORDER BY date, slot_id`

	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query slot overrides: %w", err)
	}
	defer rows.Close()

	overrides := []models.SlotOverride{}
	for rows.Next() {
		var o models.SlotOverride
		if err := rows.Scan(&o.Date, &o.SlotID, &o.Enabled); err != nil {
			return nil, fmt.Errorf("failed to scan slot override: %w", err)
		}
		overrides = append(overrides, o)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating slot overrides: %w", err)
	}

	return overrides, nil
}

// SetOverride creates or updates the override for one date and slot.
func (db *DB) SetOverride(ctx context.Context, o models.SlotOverride) error {
	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO slot_overrides (date, slot_id, enabled, updated_at) VALUES (?, ?, ?, ?)
		ON CONFLICT(date, slot_id) DO UPDATE SET
			enabled = excluded.enabled,
			updated_at = excluded.updated_at`,
		o.Date, o.SlotID, o.Enabled, formatTime(time.Now()),
	)
	if err != nil {
		return fmt.Errorf("failed to set slot override: %w", err)
	}
	return nil
}

// DeleteOverride removes an override and reports whether it existed.
func (db *DB) DeleteOverride(ctx context.Context, date, slotID string) (bool, error) {
	res, err := db.conn.ExecContext(ctx,
		`DELETE FROM slot_overrides WHERE date = ? AND slot_id = ?`, date, slotID)
	if err != nil {
		return false, fmt.Errorf("failed to delete slot override: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read affected rows: %w", err)
	}
	return n > 0, nil
}
