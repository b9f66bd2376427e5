package repository

import (
	"context"
	"fmt"

	"github.com/SergeiKhy/link-attribution/internal/models"
)

type ClickRepository interface {
	RecordClick(ctx context.Context, click *models.Click) error
	CountBySlug(ctx context.Context, slug string) (int64, error)
	EstimateRows(ctx context.Context) ([]models.LinkEstimate, error)
}

type clickRepository struct {
	db *PostgresDB
}

func NewClickRepository(db *PostgresDB) ClickRepository {
	return &clickRepository{db: db}
}

func (r *clickRepository) RecordClick(ctx context.Context, click *models.Click) error {
	query := `
		INSERT INTO clicks (link_id, slug, click_id, ip_fingerprint, user_agent, referer,
			utm_source, utm_medium, utm_campaign, session_token, clicked_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`

	_, err := r.db.Pool.Exec(ctx, query,
		click.LinkID,
		click.Slug,
		click.ClickID,
		click.IPFingerprint,
		click.UserAgent,
		click.Referer,
		click.UTMSource,
		click.UTMMedium,
		click.UTMCampaign,
		click.SessionToken,
		click.ClickedAt,
	)

	if err != nil {
		return fmt.Errorf("failed to record click: %w", err)
	}

	return nil
}

func (r *clickRepository) CountBySlug(ctx context.Context, slug string) (int64, error) {
	query := `SELECT COUNT(*) FROM clicks WHERE slug = $1`

	var count int64
	if err := r.db.Pool.QueryRow(ctx, query, slug).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count clicks: %w", err)
	}

	return count, nil
}

// EstimateRows группирует клики по ссылкам. Арифметика оценки (sales/revenue)
// выполняется сервисом, здесь только счётчики и сохранённые допущения.
func (r *clickRepository) EstimateRows(ctx context.Context) ([]models.LinkEstimate, error) {
	query := `
		SELECT
			l.slug,
			l.partner,
			l.campaign,
			l.conversion_rate,
			l.average_order_value,
			COUNT(c.id) AS clicks
		FROM links l
		LEFT JOIN clicks c ON c.slug = l.slug
		GROUP BY l.id, l.slug, l.partner, l.campaign, l.conversion_rate, l.average_order_value
		ORDER BY clicks DESC, l.slug ASC
	`

	rows, err := r.db.Pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query estimates: %w", err)
	}
	defer rows.Close()

	var estimates []models.LinkEstimate
	for rows.Next() {
		var e models.LinkEstimate
		if err := rows.Scan(
			&e.Slug,
			&e.Partner,
			&e.Campaign,
			&e.ConversionRate,
			&e.AverageOrderValue,
			&e.Clicks,
		); err != nil {
			return nil, fmt.Errorf("failed to scan estimate row: %w", err)
		}
		estimates = append(estimates, e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating estimates: %w", err)
	}

	return estimates, nil
}
