package handler_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/SergeiKhy/link-attribution/internal/config"
	"github.com/SergeiKhy/link-attribution/internal/handler"
	"github.com/SergeiKhy/link-attribution/internal/middleware"
	"github.com/SergeiKhy/link-attribution/internal/models"
	"github.com/SergeiKhy/link-attribution/internal/service"
	"github.com/SergeiKhy/link-attribution/internal/service/mocks"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var testDefaults = config.EstimateConfig{
	ConversionRate: 0.008,
	OrderValue:     45,
}

// testEnv окружение handler-тестов на моковых репозиториях
type testEnv struct {
	router    *gin.Engine
	linkRepo  *mocks.MockLinkRepository
	clickRepo *mocks.MockClickRepository
	processor service.ClickProcessor
	links     service.LinkService
}

func setupTestEnv(t *testing.T, apiKeys map[string]string) *testEnv {
	gin.SetMode(gin.TestMode)

	linkRepo := mocks.NewMockLinkRepository()
	cacheRepo := mocks.NewMockCacheRepository()
	clickRepo := mocks.NewMockClickRepository()

	normalizer := service.NewNormalizer(testDefaults)
	links := service.NewLinkService(linkRepo, cacheRepo, normalizer, zap.NewNop())
	estimates := service.NewEstimateService(clickRepo, testDefaults, zap.NewNop())

	processor := service.NewClickProcessor(clickRepo, "test-salt", zap.NewNop())
	processor.Start()
	t.Cleanup(processor.Stop)

	rateLimiter := middleware.NewRateLimiter(middleware.RateLimiterConfig{
		RequestsPerSecond: 1000, // Высокий лимит для тестов
		BurstSize:         1000,
		CleanupInterval:   time.Minute,
	})

	var apiKeyMiddleware gin.HandlerFunc
	if len(apiKeys) > 0 {
		apiKeyMiddleware = middleware.RequireAPIKey(apiKeys)
	}

	router := handler.NewRouter(links, processor, estimates, rateLimiter, apiKeyMiddleware, zap.NewNop())

	return &testEnv{
		router:    router,
		linkRepo:  linkRepo,
		clickRepo: clickRepo,
		processor: processor,
		links:     links,
	}
}

func (env *testEnv) createLink(t *testing.T, target, partner, campaign string) *models.Link {
	t.Helper()
	link, err := env.links.CreateLink(context.Background(), &models.CreateLinkInput{
		Target:   target,
		Partner:  partner,
		Campaign: campaign,
	})
	require.NoError(t, err)
	return link
}

// TestHandler_CreateLink_RedirectsToConfirmation: успешное создание
// отвечает 302 на страницу подтверждения
func TestHandler_CreateLink_RedirectsToConfirmation(t *testing.T) {
	env := setupTestEnv(t, nil)

	form := url.Values{}
	form.Set("target", "example.com/page")
	form.Set("partner", "acme")
	form.Set("campaign", "fall")
	form.Set("cr", "8")
	form.Set("aov", "$120")

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("POST", "/admin/links", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	env.router.ServeHTTP(w, req)

	require.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/admin/links/acme-fall", w.Header().Get("Location"))

	stored, err := env.linkRepo.GetBySlug(context.Background(), "acme-fall")
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/page", stored.Target)
	assert.InDelta(t, 0.08, stored.ConversionRate, 1e-9)
	assert.InDelta(t, 120.0, stored.AverageOrderValue, 1e-9)
}

// TestHandler_CreateLink_InvalidTarget: пустой target отклоняется 400
func TestHandler_CreateLink_InvalidTarget(t *testing.T) {
	env := setupTestEnv(t, nil)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("POST", "/admin/links", strings.NewReader("partner=acme"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	env.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

// TestHandler_CreateLink_ScopeFromAPIKey: имя ключа сохраняется как
// scope созданной ссылки
func TestHandler_CreateLink_ScopeFromAPIKey(t *testing.T) {
	env := setupTestEnv(t, map[string]string{"secret-key": "tenant-a"})

	form := url.Values{}
	form.Set("target", "https://example.com")
	form.Set("campaign", "scoped")

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("POST", "/admin/links", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("X-API-Key", "secret-key")
	env.router.ServeHTTP(w, req)

	require.Equal(t, http.StatusFound, w.Code)

	stored, err := env.linkRepo.GetBySlug(context.Background(), "scoped")
	require.NoError(t, err)
	assert.Equal(t, "tenant-a", stored.Scope)
}

// TestHandler_Redirect_AppendsClickID: редирект уносит cid и форвардит UTM
func TestHandler_Redirect_AppendsClickID(t *testing.T) {
	env := setupTestEnv(t, nil)
	env.createLink(t, "https://example.com/page?ref=1", "acme", "fall")

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/r/acme-fall?utm_source=newsletter&utm_medium=email", nil)
	env.router.ServeHTTP(w, req)

	require.Equal(t, http.StatusFound, w.Code)

	loc, err := url.Parse(w.Header().Get("Location"))
	require.NoError(t, err)
	assert.Equal(t, "example.com", loc.Host)
	assert.Equal(t, "/page", loc.Path)

	q := loc.Query()
	assert.NotEmpty(t, q.Get("cid"))
	assert.Equal(t, "1", q.Get("ref"), "исходные query-параметры target сохраняются")
	assert.Equal(t, "newsletter", q.Get("utm_source"))
	assert.Equal(t, "email", q.Get("utm_medium"))
	assert.Empty(t, q.Get("utm_campaign"), "отсутствующий UTM не дописывается")
}

// TestHandler_Redirect_NotIdempotent: два редиректа - два разных cid
// и два клика в счётчике
func TestHandler_Redirect_NotIdempotent(t *testing.T) {
	env := setupTestEnv(t, nil)
	env.createLink(t, "https://example.com", "acme", "fall")

	cids := make(map[string]bool)
	for i := 0; i < 2; i++ {
		w := httptest.NewRecorder()
		req, _ := http.NewRequest("GET", "/r/acme-fall", nil)
		env.router.ServeHTTP(w, req)
		require.Equal(t, http.StatusFound, w.Code)

		loc, err := url.Parse(w.Header().Get("Location"))
		require.NoError(t, err)
		cids[loc.Query().Get("cid")] = true
	}

	assert.Len(t, cids, 2, "каждый редирект получает новый clickID")

	// Запись асинхронная, ждём воркеров
	require.Eventually(t, func() bool {
		count, err := env.processor.Count(context.Background(), "acme-fall")
		return err == nil && count == 2
	}, 2*time.Second, 10*time.Millisecond)
}

// TestHandler_Redirect_UnknownSlug: 404 и никаких кликов
func TestHandler_Redirect_UnknownSlug(t *testing.T) {
	env := setupTestEnv(t, nil)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/r/does-not-exist", nil)
	env.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)

	time.Sleep(50 * time.Millisecond)
	assert.Empty(t, env.clickRepo.Clicks(), "404 не порождает кликов")
}

// TestHandler_Redirect_MalformedTargetVerbatim: нечитаемый сохранённый
// target редиректится как есть (защитный fallback)
func TestHandler_Redirect_MalformedTargetVerbatim(t *testing.T) {
	env := setupTestEnv(t, nil)

	// Пишем мимо сервиса: такой target не прошёл бы валидацию создания
	require.NoError(t, env.linkRepo.Create(context.Background(), &models.Link{
		Slug:      "broken",
		Target:    "://not a url",
		CreatedAt: time.Now(),
	}))

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/r/broken", nil)
	env.router.ServeHTTP(w, req)

	require.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "://not a url", w.Header().Get("Location"))
}

// TestHandler_Estimates: отчёт отдаёт строки контракта и CSV с заголовком
func TestHandler_Estimates(t *testing.T) {
	env := setupTestEnv(t, nil)

	env.clickRepo.SeedLinkRow("acme-fall", "acme", "fall", 0.01, 50)
	ctx := context.Background()
	for i := 0; i < 10; i++ {
		require.NoError(t, env.clickRepo.RecordClick(ctx, &models.Click{
			Slug:    "acme-fall",
			ClickID: service.NewClickID(),
		}))
	}

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/admin/estimates", nil)
	env.router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.Contains(t, body, `"slug":"acme-fall"`)
	assert.Contains(t, body, `"clicks":10`)
	assert.Contains(t, body, `"estimated_sales":0.1`)
	assert.Contains(t, body, `"estimated_revenue":5`)

	w = httptest.NewRecorder()
	req, _ = http.NewRequest("GET", "/admin/estimates.csv", nil)
	env.router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "text/csv")
	lines := strings.Split(strings.TrimSpace(w.Body.String()), "\n")
	require.GreaterOrEqual(t, len(lines), 2)
	assert.Equal(t, "slug,partner,campaign,clicks,conversion_rate,average_order_value,estimated_sales,estimated_revenue", lines[0])
	assert.True(t, strings.HasPrefix(lines[1], "acme-fall,acme,fall,10,"), "строка данных: %s", lines[1])
}

// TestHandler_AdminRequiresAPIKey: админский контур закрыт ключом,
// редирект остаётся публичным
func TestHandler_AdminRequiresAPIKey(t *testing.T) {
	env := setupTestEnv(t, map[string]string{"secret-key": "ops"})
	env.createLink(t, "https://example.com", "acme", "fall")

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/admin/estimates", nil)
	env.router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = httptest.NewRecorder()
	req, _ = http.NewRequest("GET", "/r/acme-fall", nil)
	env.router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusFound, w.Code)
}

// TestHandler_HealthCheck проверяет endpoint здоровья
func TestHandler_HealthCheck(t *testing.T) {
	env := setupTestEnv(t, nil)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/api/v1/health", nil)
	env.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"ok"`)
}

// TestHandler_Redirect_StorageFailure: отказ хранилища - 500, а не 404
func TestHandler_Redirect_StorageFailure(t *testing.T) {
	env := setupTestEnv(t, nil)
	env.linkRepo.FailReads = true

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/r/acme-fall", nil)
	env.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), "internal_error")
	assert.Empty(t, env.clickRepo.Clicks(), "при отказе хранилища клик не записывается")
}
