package service

import (
	"context"

	"github.com/SergeiKhy/link-attribution/internal/config"
	"github.com/SergeiKhy/link-attribution/internal/models"
	"github.com/SergeiKhy/link-attribution/internal/repository"
	"go.uber.org/zap"
)

// EstimateService считает атрибуцию: клики по ссылкам и эвристическую
// оценку продаж/выручки. Ничего не персистит — каждый вызов читает
// актуальное состояние таблиц.
type EstimateService interface {
	Estimate(ctx context.Context) ([]models.LinkEstimate, error)
}

type estimateService struct {
	clickRepo repository.ClickRepository
	defaults  config.EstimateConfig
	logger    *zap.Logger
}

func NewEstimateService(clickRepo repository.ClickRepository, defaults config.EstimateConfig, logger *zap.Logger) EstimateService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &estimateService{
		clickRepo: clickRepo,
		defaults:  defaults,
		logger:    logger,
	}
}

// Estimate возвращает строки отчёта, отсортированные по кликам по убыванию:
// sales = clicks * conversionRate, revenue = sales * averageOrderValue
func (s *estimateService) Estimate(ctx context.Context) ([]models.LinkEstimate, error) {
	rows, err := s.clickRepo.EstimateRows(ctx)
	if err != nil {
		return nil, err
	}

	for i := range rows {
		// Вторая линия защиты: нормализатор уже подставил дефолты при
		// создании, но старые или руками правленные записи могли их потерять
		if rows[i].ConversionRate <= 0 {
			rows[i].ConversionRate = s.defaults.ConversionRate
		}
		if rows[i].AverageOrderValue <= 0 {
			rows[i].AverageOrderValue = s.defaults.OrderValue
		}

		rows[i].EstimatedSales = float64(rows[i].Clicks) * rows[i].ConversionRate
		rows[i].EstimatedRevenue = rows[i].EstimatedSales * rows[i].AverageOrderValue
	}

	return rows, nil
}
