package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/SergeiKhy/link-attribution/internal/models"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

var (
	ErrLinkNotFound = errors.New("link not found")
	ErrSlugExists   = errors.New("slug already exists")
)

type LinkRepository interface {
	Create(ctx context.Context, link *models.Link) error
	GetBySlug(ctx context.Context, slug string) (*models.Link, error)
	Exists(ctx context.Context, slug string) (bool, error)
	ListRecent(ctx context.Context, limit int) ([]models.Link, error)
	Delete(ctx context.Context, slug string) error
}

type linkRepository struct {
	db *PostgresDB
}

func NewLinkRepository(db *PostgresDB) LinkRepository {
	return &linkRepository{db: db}
}

func (r *linkRepository) Create(ctx context.Context, link *models.Link) error {
	query := `
		INSERT INTO links (slug, target, partner, campaign, scope, conversion_rate, average_order_value, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, created_at
	`

	err := r.db.Pool.QueryRow(
		ctx,
		query,
		link.Slug,
		link.Target,
		link.Partner,
		link.Campaign,
		link.Scope,
		link.ConversionRate,
		link.AverageOrderValue,
		link.CreatedAt,
	).Scan(&link.ID, &link.CreatedAt)

	if err != nil {
		if isUniqueViolation(err) {
			return ErrSlugExists
		}
		return fmt.Errorf("failed to create link: %w", err)
	}

	return nil
}

func (r *linkRepository) GetBySlug(ctx context.Context, slug string) (*models.Link, error) {
	query := `
		SELECT id, slug, target, partner, campaign, scope, conversion_rate, average_order_value, created_at
		FROM links
		WHERE slug = $1
	`

	link := &models.Link{}
	err := r.db.Pool.QueryRow(ctx, query, slug).Scan(
		&link.ID,
		&link.Slug,
		&link.Target,
		&link.Partner,
		&link.Campaign,
		&link.Scope,
		&link.ConversionRate,
		&link.AverageOrderValue,
		&link.CreatedAt,
	)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrLinkNotFound
		}
		return nil, fmt.Errorf("failed to get link: %w", err)
	}

	return link, nil
}

func (r *linkRepository) Exists(ctx context.Context, slug string) (bool, error) {
	query := `SELECT EXISTS(SELECT 1 FROM links WHERE slug = $1)`

	var exists bool
	if err := r.db.Pool.QueryRow(ctx, query, slug).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check slug: %w", err)
	}

	return exists, nil
}

func (r *linkRepository) ListRecent(ctx context.Context, limit int) ([]models.Link, error) {
	query := `
		SELECT id, slug, target, partner, campaign, scope, conversion_rate, average_order_value, created_at
		FROM links
		ORDER BY created_at DESC, id DESC
		LIMIT $1
	`

	rows, err := r.db.Pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list links: %w", err)
	}
	defer rows.Close()

	var links []models.Link
	for rows.Next() {
		var link models.Link
		if err := rows.Scan(
			&link.ID,
			&link.Slug,
			&link.Target,
			&link.Partner,
			&link.Campaign,
			&link.Scope,
			&link.ConversionRate,
			&link.AverageOrderValue,
			&link.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan link: %w", err)
		}
		links = append(links, link)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating links: %w", err)
	}

	return links, nil
}

func (r *linkRepository) Delete(ctx context.Context, slug string) error {
	query := `DELETE FROM links WHERE slug = $1`

	result, err := r.db.Pool.Exec(ctx, query, slug)
	if err != nil {
		return fmt.Errorf("failed to delete link: %w", err)
	}

	if result.RowsAffected() == 0 {
		return ErrLinkNotFound
	}

	return nil
}

// Проверка на нарушение уникальности slug (SQLSTATE 23505)
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
