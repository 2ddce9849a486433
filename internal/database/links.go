package database

import (
	"context"
	"fmt"

	"influencer-attribution-api/internal/models"
)

// InsertLink stores a saved referral link.
func (db *DB) InsertLink(ctx context.Context, link models.ReferralLink) error {
	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO referral_links (id, influencer_name, platform, campaign, utm_link, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		link.ID,
		link.InfluencerName,
		string(link.Platform),
		link.Campaign,
		link.UTMLink,
		formatTime(link.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to insert referral link: %w", err)
	}
	return nil
}

// ListLinks returns saved links, newest first.
func (db *DB) ListLinks(ctx context.Context) ([]models.ReferralLink, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT id, influencer_name, platform, campaign, utm_link, created_at
		FROM referral_links
		ORDER BY created_at DESC, id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query referral links: %w", err)
	}
	defer rows.Close()

	links := []models.ReferralLink{}
	for rows.Next() {
		var link models.ReferralLink
		var platform, createdAt string

		if err := rows.Scan(&link.ID, &link.InfluencerName, &platform, &link.Campaign, &link.UTMLink, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan referral link: %w", err)
		}

		link.Platform = models.Platform(platform)
		if link.CreatedAt, err = parseTime("created_at", createdAt); err != nil {
			return nil, err
		}

		links = append(links, link)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating referral links: %w", err)
	}

	return links, nil
}

// DeleteLink removes a link and reports whether it existed.
func (db *DB) DeleteLink(ctx context.Context, id string) (bool, error) {
	res, err := db.conn.ExecContext(ctx, `DELETE FROM referral_links WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("failed to delete referral link: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read affected rows: %w", err)
	}
	return n > 0, nil
}
