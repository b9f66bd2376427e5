package service

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"math/big"
	"sync"
	"time"

	"github.com/SergeiKhy/link-attribution/internal/models"
	"github.com/SergeiKhy/link-attribution/internal/repository"
	"go.uber.org/zap"
)

// Константы worker pool
const (
	defaultWorkerCount   = 3    // Количество воркеров
	defaultChannelBuffer = 1000 // Размер буфера канала
	maxRetries           = 3    // Максимальное количество попыток записи

	// 62^11 > 2^64 — коллизии clickID пренебрежимо маловероятны
	clickIDLength  = 11
	clickIDCharset = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

	fingerprintLength = 32
)

// ClickProcessor интерфейс для асинхронной записи кликов.
// Record никогда не блокирует редирект: событие либо попадает в буфер,
// либо теряется с предупреждением в логе.
type ClickProcessor interface {
	Start()
	Stop()
	Record(ctx context.Context, event *models.ClickEvent) string
	Count(ctx context.Context, slug string) (int64, error)
}

// clickProcessor реализация процессора кликов с использованием Worker Pool
type clickProcessor struct {
	clickRepo    repository.ClickRepository
	logger       *zap.Logger
	salt         string
	clickChannel chan *models.ClickEvent
	workerCount  int
	wg           sync.WaitGroup
}

// NewClickProcessor создаёт новый экземпляр процессора кликов
func NewClickProcessor(clickRepo repository.ClickRepository, salt string, logger *zap.Logger) ClickProcessor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &clickProcessor{
		clickRepo:    clickRepo,
		logger:       logger,
		salt:         salt,
		clickChannel: make(chan *models.ClickEvent, defaultChannelBuffer),
		workerCount:  defaultWorkerCount,
	}
}

// Start запускает worker pool
func (p *clickProcessor) Start() {
	p.logger.Info("Запуск воркеров процессора кликов", zap.Int("count", p.workerCount))

	for i := 0; i < p.workerCount; i++ {
		p.wg.Add(1)
		go p.worker(i)
	}
}

// Stop корректно останавливает worker pool, дописывая события из буфера
func (p *clickProcessor) Stop() {
	p.logger.Info("Остановка процессора кликов...")
	close(p.clickChannel)
	p.wg.Wait()
	p.logger.Info("Процессор кликов остановлен")
}

// worker обрабатывает события кликов из канала
func (p *clickProcessor) worker(id int) {
	defer p.wg.Done()

	p.logger.Debug("Воркер кликов запущен", zap.Int("id", id))

	for event := range p.clickChannel {
		p.processClick(event)
	}

	p.logger.Debug("Воркер кликов остановлен", zap.Int("id", id))
}

// processClick записывает одно событие клика с retry логикой
func (p *clickProcessor) processClick(event *models.ClickEvent) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	now := time.Now()
	click := &models.Click{
		LinkID:        event.LinkID,
		Slug:          event.Slug,
		ClickID:       event.ClickID,
		IPFingerprint: Fingerprint(event.IPAddress, event.UserAgent, p.salt, now),
		UserAgent:     event.UserAgent,
		Referer:       event.Referer,
		UTMSource:     event.UTMSource,
		UTMMedium:     event.UTMMedium,
		UTMCampaign:   event.UTMCampaign,
		SessionToken:  event.SessionToken,
		ClickedAt:     now,
	}

	var err error
	for i := 0; i < maxRetries; i++ {
		if err = p.clickRepo.RecordClick(ctx, click); err == nil {
			return
		}
		if i < maxRetries-1 {
			p.logger.Debug("Повторная попытка записи клика",
				zap.String("slug", event.Slug),
				zap.Int("attempt", i+1),
				zap.Error(err),
			)
			time.Sleep(time.Duration(i+1) * 100 * time.Millisecond)
		}
	}

	// Потеря клика стоит дешевле, чем задержанный редирект
	p.logger.Error("Не удалось записать клик после всех попыток",
		zap.String("slug", event.Slug),
		zap.Error(err),
	)
}

// Record присваивает событию clickID и отправляет его в worker pool.
// Возвращает clickID сразу — редирект уносит его в query-параметре,
// не дожидаясь записи в БД.
func (p *clickProcessor) Record(ctx context.Context, event *models.ClickEvent) string {
	event.ClickID = NewClickID()

	select {
	case p.clickChannel <- event:
	default:
		// Канал заполнен: статистику теряем, запрос не трогаем
		p.logger.Warn("Буфер канала кликов заполнен, событие потеряно",
			zap.String("slug", event.Slug),
		)
	}

	return event.ClickID
}

// Count возвращает число записанных кликов для slug
func (p *clickProcessor) Count(ctx context.Context, slug string) (int64, error) {
	return p.clickRepo.CountBySlug(ctx, slug)
}

// NewClickID генерирует корреляционный токен клика (base-62, 11 символов)
func NewClickID() string {
	result := make([]byte, clickIDLength)
	max := big.NewInt(int64(len(clickIDCharset)))
	for i := 0; i < clickIDLength; i++ {
		num, err := rand.Int(rand.Reader, max)
		if err != nil {
			result[i] = clickIDCharset[0]
			continue
		}
		result[i] = clickIDCharset[num.Int64()]
	}
	return string(result)
}

// Fingerprint хэширует IP + user-agent с суточной солью (UTC-дата).
// Сырой IP никогда не сохраняется, связываемость ограничена одним днём.
func Fingerprint(ip, userAgent, salt string, at time.Time) string {
	day := at.UTC().Format("2006-01-02")
	sum := sha256.Sum256([]byte(ip + "|" + userAgent + "|" + day + "|" + salt))
	return hex.EncodeToString(sum[:])[:fingerprintLength]
}
