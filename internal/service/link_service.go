package service

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"time"

	"github.com/SergeiKhy/link-attribution/internal/models"
	"github.com/SergeiKhy/link-attribution/internal/repository"
	"go.uber.org/zap"
)

// Ошибки сервиса
var (
	ErrInvalidTarget = errors.New("невалидный target URL")
	ErrSlugConflict  = errors.New("не удалось подобрать свободный slug")
)

// Константы сервиса
const (
	cacheTTL          = 24 * time.Hour
	maxCreateAttempts = 3
	defaultListLimit  = 100
)

// LinkService интерфейс сервиса ссылок
type LinkService interface {
	CreateLink(ctx context.Context, input *models.CreateLinkInput) (*models.Link, error)
	Resolve(ctx context.Context, slug string) (*models.Link, error)
	ListRecent(ctx context.Context, limit int) ([]models.Link, error)
	DeleteLink(ctx context.Context, slug string) error
}

// linkService реализация сервиса ссылок
type linkService struct {
	linkRepo   repository.LinkRepository
	cacheRepo  repository.CacheRepository
	normalizer *Normalizer
	logger     *zap.Logger
}

// NewLinkService создаёт новый экземпляр сервиса
func NewLinkService(
	linkRepo repository.LinkRepository,
	cacheRepo repository.CacheRepository,
	normalizer *Normalizer,
	logger *zap.Logger,
) LinkService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &linkService{
		linkRepo:   linkRepo,
		cacheRepo:  cacheRepo,
		normalizer: normalizer,
		logger:     logger,
	}
}

// CreateLink создаёт новую короткую ссылку: нормализация числового ввода,
// вывод slug, запись с повтором при гонке на уникальности
func (s *linkService) CreateLink(ctx context.Context, input *models.CreateLinkInput) (*models.Link, error) {
	target, err := normalizeTarget(input.Target)
	if err != nil {
		return nil, err
	}

	base := DeriveSlug(input.Partner, input.Campaign)

	link := &models.Link{
		Target:            target,
		Partner:           strings.TrimSpace(input.Partner),
		Campaign:          strings.TrimSpace(input.Campaign),
		Scope:             input.Scope,
		ConversionRate:    s.normalizer.ParseConversionRate(input.CR),
		AverageOrderValue: s.normalizer.ParseMoney(input.AOV),
	}

	// Предпроверка свободного slug плюс повтор на случай гонки:
	// две конкурентные заявки с одинаковой базой сериализуются
	// constraint-ом в БД, проигравшая получает ErrSlugExists и
	// пробует следующий кандидат
	for attempt := 0; attempt < maxCreateAttempts; attempt++ {
		slug, err := EnsureUniqueSlug(ctx, base, s.linkRepo.Exists)
		if err != nil {
			return nil, err
		}

		link.Slug = slug
		link.CreatedAt = time.Now()

		err = s.linkRepo.Create(ctx, link)
		if err == nil {
			if cacheErr := s.cacheRepo.Set(ctx, link.Slug, link, cacheTTL); cacheErr != nil {
				s.logger.Warn("Не удалось закэшировать ссылку", zap.String("slug", link.Slug), zap.Error(cacheErr))
			}
			return link, nil
		}
		if !errors.Is(err, repository.ErrSlugExists) {
			return nil, err
		}

		s.logger.Debug("Гонка на slug, пробуем следующий кандидат",
			zap.String("slug", slug),
			zap.Int("attempt", attempt+1),
		)
	}

	return nil, ErrSlugConflict
}

// Resolve получает ссылку по slug (сначала из кэша, затем из БД)
func (s *linkService) Resolve(ctx context.Context, slug string) (*models.Link, error) {
	link, err := s.cacheRepo.Get(ctx, slug)
	if err == nil {
		return link, nil
	}

	link, err = s.linkRepo.GetBySlug(ctx, slug)
	if err != nil {
		return nil, err
	}

	if cacheErr := s.cacheRepo.Set(ctx, slug, link, cacheTTL); cacheErr != nil {
		s.logger.Warn("Не удалось закэшировать ссылку", zap.String("slug", slug), zap.Error(cacheErr))
	}

	return link, nil
}

// ListRecent возвращает последние созданные ссылки
func (s *linkService) ListRecent(ctx context.Context, limit int) ([]models.Link, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	return s.linkRepo.ListRecent(ctx, limit)
}

// DeleteLink удаляет ссылку по slug (клики остаются, таблица append-only)
func (s *linkService) DeleteLink(ctx context.Context, slug string) error {
	// Неудачная инвалидация оставит удалённую ссылку в Redis до конца TTL
	if err := s.cacheRepo.Delete(ctx, slug); err != nil {
		s.logger.Warn("Не удалось инвалидировать кэш ссылки", zap.String("slug", slug), zap.Error(err))
	}
	return s.linkRepo.Delete(ctx, slug)
}

// normalizeTarget приводит target к абсолютному URL: дописывает https://
// при отсутствии схемы и отклоняет явно нечитаемый ввод
func normalizeTarget(raw string) (string, error) {
	target := strings.TrimSpace(raw)
	if target == "" {
		return "", ErrInvalidTarget
	}

	if !strings.HasPrefix(target, "http://") && !strings.HasPrefix(target, "https://") {
		target = "https://" + target
	}

	u, err := url.Parse(target)
	if err != nil || u.Host == "" {
		return "", ErrInvalidTarget
	}

	return target, nil
}
