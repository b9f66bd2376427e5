package handler

import (
	"github.com/SergeiKhy/link-attribution/internal/middleware"
	"github.com/SergeiKhy/link-attribution/internal/service"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func NewRouter(
	linkService service.LinkService,
	clickProcessor service.ClickProcessor,
	estimateService service.EstimateService,
	rateLimiter *middleware.RateLimiter,
	apiKeyMiddleware gin.HandlerFunc,
	logger *zap.Logger,
) *gin.Engine {
	if logger == nil {
		logger = zap.NewNop()
	}

	router := gin.Default()

	// Middleware для логгирования
	router.Use(func(c *gin.Context) {
		logger.Info("Request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.String("ip", c.ClientIP()),
		)
		c.Next()
	})

	// Rate limiting для всех запросов
	router.Use(rateLimiter.Middleware())

	linkHandler := NewLinkHandler(linkService, clickProcessor, estimateService, logger)

	router.GET("/api/v1/health", HealthCheck)

	// Админский контур: создание ссылок и отчёты
	admin := router.Group("/admin")
	{
		if apiKeyMiddleware != nil {
			admin.Use(apiKeyMiddleware)
		}

		admin.POST("/links", linkHandler.CreateLink)
		admin.GET("/links", linkHandler.ListLinks)
		admin.GET("/links/:slug", linkHandler.GetLink)
		admin.DELETE("/links/:slug", linkHandler.DeleteLink)
		admin.GET("/estimates", linkHandler.Estimates)
		admin.GET("/estimates.csv", linkHandler.EstimatesCSV)
	}

	// Редирект - публичный, без API key проверки
	router.GET("/r/:slug", linkHandler.Redirect)

	return router
}
