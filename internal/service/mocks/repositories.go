package mocks

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/SergeiKhy/link-attribution/internal/models"
	"github.com/SergeiKhy/link-attribution/internal/repository"
)

// MockLinkRepository implements repository.LinkRepository for testing.
// FailReads makes GetBySlug return a storage error to exercise paths
// that must distinguish outages from missing links.
type MockLinkRepository struct {
	mu        sync.RWMutex
	links     map[string]*models.Link
	nextID    int64
	FailReads bool
}

func NewMockLinkRepository() *MockLinkRepository {
	return &MockLinkRepository{
		links:  make(map[string]*models.Link),
		nextID: 1,
	}
}

func (m *MockLinkRepository) Create(ctx context.Context, link *models.Link) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.links[link.Slug]; exists {
		return repository.ErrSlugExists
	}

	link.ID = m.nextID
	m.nextID++
	stored := *link
	m.links[link.Slug] = &stored
	return nil
}

func (m *MockLinkRepository) GetBySlug(ctx context.Context, slug string) (*models.Link, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.FailReads {
		return nil, errors.New("storage unavailable")
	}

	link, exists := m.links[slug]
	if !exists {
		return nil, repository.ErrLinkNotFound
	}
	copied := *link
	return &copied, nil
}

func (m *MockLinkRepository) Exists(ctx context.Context, slug string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	_, exists := m.links[slug]
	return exists, nil
}

func (m *MockLinkRepository) ListRecent(ctx context.Context, limit int) ([]models.Link, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	links := make([]models.Link, 0, len(m.links))
	for _, link := range m.links {
		links = append(links, *link)
	}
	sort.Slice(links, func(i, j int) bool {
		if !links[i].CreatedAt.Equal(links[j].CreatedAt) {
			return links[i].CreatedAt.After(links[j].CreatedAt)
		}
		return links[i].ID > links[j].ID
	})
	if limit > 0 && len(links) > limit {
		links = links[:limit]
	}
	return links, nil
}

func (m *MockLinkRepository) Delete(ctx context.Context, slug string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.links[slug]; !exists {
		return repository.ErrLinkNotFound
	}
	delete(m.links, slug)
	return nil
}

// MockCacheRepository implements repository.CacheRepository for testing.
// FailDeletes simulates a cache that cannot be invalidated.
type MockCacheRepository struct {
	mu          sync.RWMutex
	items       map[string]*models.Link
	FailDeletes bool
}

func NewMockCacheRepository() *MockCacheRepository {
	return &MockCacheRepository{
		items: make(map[string]*models.Link),
	}
}

func (m *MockCacheRepository) Get(ctx context.Context, slug string) (*models.Link, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	link, exists := m.items[slug]
	if !exists {
		return nil, errors.New("cache miss")
	}
	copied := *link
	return &copied, nil
}

func (m *MockCacheRepository) Set(ctx context.Context, slug string, link *models.Link, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	stored := *link
	m.items[slug] = &stored
	return nil
}

func (m *MockCacheRepository) Delete(ctx context.Context, slug string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.FailDeletes {
		return errors.New("cache unavailable")
	}

	delete(m.items, slug)
	return nil
}

// MockClickRepository implements repository.ClickRepository for testing.
// FailInserts makes RecordClick return an error to exercise the
// log-and-continue path.
type MockClickRepository struct {
	mu          sync.RWMutex
	clicks      []models.Click
	seeded      []models.LinkEstimate
	FailInserts bool
}

func NewMockClickRepository() *MockClickRepository {
	return &MockClickRepository{}
}

func (m *MockClickRepository) RecordClick(ctx context.Context, click *models.Click) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.FailInserts {
		return errors.New("storage unavailable")
	}
	m.clicks = append(m.clicks, *click)
	return nil
}

func (m *MockClickRepository) CountBySlug(ctx context.Context, slug string) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var count int64
	for _, c := range m.clicks {
		if c.Slug == slug {
			count++
		}
	}
	return count, nil
}

// EstimateRows groups recorded clicks by slug. Link assumptions are not
// known to the click table in this mock, so callers seed them through
// SeedLinkRow.
func (m *MockClickRepository) EstimateRows(ctx context.Context) ([]models.LinkEstimate, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	rows := make([]models.LinkEstimate, len(m.seeded))
	copy(rows, m.seeded)
	for i := range rows {
		for _, c := range m.clicks {
			if c.Slug == rows[i].Slug {
				rows[i].Clicks++
			}
		}
	}
	sort.SliceStable(rows, func(i, j int) bool {
		if rows[i].Clicks != rows[j].Clicks {
			return rows[i].Clicks > rows[j].Clicks
		}
		return rows[i].Slug < rows[j].Slug
	})
	return rows, nil
}

// SeedLinkRow registers a link's reporting row (slug + stored assumptions)
// so EstimateRows can join clicks against it
func (m *MockClickRepository) SeedLinkRow(slug, partner, campaign string, cr, aov float64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.seeded = append(m.seeded, models.LinkEstimate{
		Slug:              slug,
		Partner:           partner,
		Campaign:          campaign,
		ConversionRate:    cr,
		AverageOrderValue: aov,
	})
}

// Clicks returns a snapshot of recorded clicks
func (m *MockClickRepository) Clicks() []models.Click {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]models.Click, len(m.clicks))
	copy(out, m.clicks)
	return out
}
