package database

import (
	"context"
	"database/sql"
	"fmt"

	"influencer-attribution-api/internal/models"
)

const statusRank = `CASE %s WHEN 'in_progress' THEN 1 WHEN 'registered' THEN 2 WHEN 'completed' THEN 3 ELSE 0 END`

// upsertLeadQuery keeps one row per phone. On conflict the status only moves
// forward, a stored attribution tuple is never replaced, slot fields take the
// newest non-empty value and created_at keeps the earliest time.
var upsertLeadQuery = fmt.Sprintf(`INSERT INTO leads (
		id, phone, utm_source, utm_medium, utm_campaign, utm_content,
		status, slot_id, slot_date, created_at, updated_at
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(phone) DO UPDATE SET
		utm_source = CASE WHEN %[1]s = '' THEN excluded.utm_source ELSE leads.utm_source END,
		utm_medium = CASE WHEN %[1]s = '' THEN excluded.utm_medium ELSE leads.utm_medium END,
		utm_campaign = CASE WHEN %[1]s = '' THEN excluded.utm_campaign ELSE leads.utm_campaign END,
		utm_content = CASE WHEN %[1]s = '' THEN excluded.utm_content ELSE leads.utm_content END,
		status = CASE WHEN %[2]s > %[3]s THEN excluded.status ELSE leads.status END,
		slot_id = CASE WHEN excluded.slot_id <> '' THEN excluded.slot_id ELSE leads.slot_id END,
		slot_date = CASE WHEN excluded.slot_date <> '' THEN excluded.slot_date ELSE leads.slot_date END,
		created_at = MIN(leads.created_at, excluded.created_at),
		updated_at = excluded.updated_at`,
	`(leads.utm_source || leads.utm_medium || leads.utm_campaign || leads.utm_content)`,
	fmt.Sprintf(statusRank, "excluded.status"),
	fmt.Sprintf(statusRank, "leads.status"),
)

const selectLeadColumns = `SELECT id, phone, utm_source, utm_medium, utm_campaign, utm_content,
	status, slot_id, slot_date, created_at, updated_at FROM leads`

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func upsertLead(ctx context.Context, ex execer, lead models.RegistrationEvent) error {
	_, err := ex.ExecContext(ctx, upsertLeadQuery,
		lead.ID,
		nullIfEmpty(lead.Phone),
		lead.Attribution.Source,
		lead.Attribution.Medium,
		lead.Attribution.Campaign,
		lead.Attribution.Content,
		string(lead.Status),
		lead.SlotID,
		lead.SlotDate,
		formatTime(lead.CreatedAt),
		formatTime(lead.UpdatedAt),
	)
	return err
}

// UpsertLead stores a lead and returns the row as it stands afterwards.
// Leads without a phone number are always inserted as new rows.
func (db *DB) UpsertLead(ctx context.Context, lead models.RegistrationEvent) (models.RegistrationEvent, error) {
	if err := upsertLead(ctx, db.conn, lead); err != nil {
		return models.RegistrationEvent{}, fmt.Errorf("failed to upsert lead: %w", err)
	}

	var row *sql.Row
	if lead.Phone != "" {
		row = db.conn.QueryRowContext(ctx, selectLeadColumns+` WHERE phone = ?`, lead.Phone)
	} else {
		row = db.conn.QueryRowContext(ctx, selectLeadColumns+` WHERE id = ?`, lead.ID)
	}

	stored, err := scanLead(row)
	if err != nil {
		return models.RegistrationEvent{}, fmt.Errorf("failed to read back lead: %w", err)
	}
	return stored, nil
}

// InsertLeads upserts multiple leads in a single transaction.
func (db *DB) InsertLeads(ctx context.Context, leads []models.RegistrationEvent) (int, error) {
	if len(leads) == 0 {
		return 0, nil
	}

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	inserted := 0
	for _, lead := range leads {
		if err := upsertLead(ctx, tx, lead); err != nil {
			return 0, fmt.Errorf("failed to insert lead %s: %w", lead.ID, err)
		}
		inserted++
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return inserted, nil
}

// ListLeads returns every lead row, oldest first.
func (db *DB) ListLeads(ctx context.Context) ([]models.RegistrationEvent, error) {
	rows, err := db.conn.QueryContext(ctx, selectLeadColumns+` ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query leads: %w", err)
	}
	defer rows.Close()

	leads := []models.RegistrationEvent{}
	for rows.Next() {
		lead, err := scanLead(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan lead: %w", err)
		}
		leads = append(leads, lead)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating leads: %w", err)
	}

	return leads, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanLead(s scanner) (models.RegistrationEvent, error) {
	var lead models.RegistrationEvent
	var phone sql.NullString
	var status, createdAt, updatedAt string

	err := s.Scan(
		&lead.ID,
		&phone,
		&lead.Attribution.Source,
		&lead.Attribution.Medium,
		&lead.Attribution.Campaign,
		&lead.Attribution.Content,
		&status,
		&lead.SlotID,
		&lead.SlotDate,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		return models.RegistrationEvent{}, err
	}

	lead.Phone = phone.String
	lead.Status = models.LeadStatus(status)
	if lead.CreatedAt, err = parseTime("created_at", createdAt); err != nil {
		return models.RegistrationEvent{}, err
	}
	if lead.UpdatedAt, err = parseTime("updated_at", updatedAt); err != nil {
		return models.RegistrationEvent{}, err
	}
	return lead, nil
}

func nullIfEmpty(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
