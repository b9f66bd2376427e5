package handler

import (
	"encoding/csv"
	"errors"
	"net/http"
	"net/url"
	"strconv"

	"github.com/SergeiKhy/link-attribution/internal/middleware"
	"github.com/SergeiKhy/link-attribution/internal/models"
	"github.com/SergeiKhy/link-attribution/internal/repository"
	"github.com/SergeiKhy/link-attribution/internal/service"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const sessionCookieName = "lt_session"

type LinkHandler struct {
	service         service.LinkService
	clickProcessor  service.ClickProcessor
	estimateService service.EstimateService
	logger          *zap.Logger
}

func NewLinkHandler(
	service service.LinkService,
	clickProcessor service.ClickProcessor,
	estimateService service.EstimateService,
	logger *zap.Logger,
) *LinkHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LinkHandler{
		service:         service,
		clickProcessor:  clickProcessor,
		estimateService: estimateService,
		logger:          logger,
	}
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// CreateLink godoc
// @Summary Create a redirect link
// @Description Create a short redirect link from partner/campaign input
// @Tags admin
// @Accept json,x-www-form-urlencoded
// @Produce json
// @Param target formData string true "Target URL (scheme optional)"
// @Param partner formData string false "Partner label"
// @Param campaign formData string false "Campaign label"
// @Param cr formData string false "Assumed conversion rate (free-form)"
// @Param aov formData string false "Assumed average order value (free-form)"
// @Success 302 {string} string "Redirect to confirmation"
// @Failure 400 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /admin/links [post]
func (h *LinkHandler) CreateLink(c *gin.Context) {
	var input models.CreateLinkInput
	if err := c.ShouldBind(&input); err != nil {
		h.logger.Warn("Invalid request body", zap.Error(err))
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_request",
			Message: "target is required",
		})
		return
	}

	// Scope берётся из имени API ключа, которым авторизован оператор
	input.Scope = middleware.ScopeFromContext(c)

	link, err := h.service.CreateLink(c.Request.Context(), &input)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidTarget):
			c.JSON(http.StatusBadRequest, ErrorResponse{
				Error:   "invalid_target",
				Message: "Target must be an absolute URL",
			})
		case errors.Is(err, service.ErrSlugConflict):
			c.JSON(http.StatusBadRequest, ErrorResponse{
				Error:   "slug_conflict",
				Message: "Could not allocate a unique slug, please retry",
			})
		default:
			h.logger.Error("Failed to create link", zap.Error(err))
			c.JSON(http.StatusInternalServerError, ErrorResponse{
				Error:   "internal_error",
				Message: "Failed to create link",
			})
		}
		return
	}

	c.Redirect(http.StatusFound, "/admin/links/"+link.Slug)
}

// GetLink godoc
// @Summary Link confirmation
// @Description Show a created link by slug
// @Tags admin
// @Produce json
// @Param slug path string true "Slug"
// @Success 200 {object} models.Link
// @Failure 404 {object} ErrorResponse
// @Router /admin/links/{slug} [get]
func (h *LinkHandler) GetLink(c *gin.Context) {
	slug := c.Param("slug")

	link, err := h.service.Resolve(c.Request.Context(), slug)
	if err != nil {
		c.JSON(http.StatusNotFound, ErrorResponse{
			Error:   "not_found",
			Message: "Link not found",
		})
		return
	}

	c.JSON(http.StatusOK, link)
}

// ListLinks godoc
// @Summary Recent links
// @Description List recently created links, most recent first
// @Tags admin
// @Produce json
// @Param limit query int false "Max rows" default(100)
// @Success 200 {array} models.Link
// @Router /admin/links [get]
func (h *LinkHandler) ListLinks(c *gin.Context) {
	limit := 0
	if l := c.Query("limit"); l != "" {
		limit, _ = strconv.Atoi(l)
	}

	links, err := h.service.ListRecent(c.Request.Context(), limit)
	if err != nil {
		h.logger.Error("Failed to list links", zap.Error(err))
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "internal_error",
			Message: "Failed to list links",
		})
		return
	}

	if links == nil {
		links = []models.Link{}
	}
	c.JSON(http.StatusOK, links)
}

// DeleteLink godoc
// @Summary Delete a link
// @Description Delete a link by slug; recorded clicks are retained
// @Tags admin
// @Produce json
// @Param slug path string true "Slug"
// @Success 200 {object} map[string]string
// @Failure 404 {object} ErrorResponse
// @Router /admin/links/{slug} [delete]
func (h *LinkHandler) DeleteLink(c *gin.Context) {
	slug := c.Param("slug")

	if err := h.service.DeleteLink(c.Request.Context(), slug); err != nil {
		h.logger.Warn("Failed to delete link", zap.String("slug", slug), zap.Error(err))
		c.JSON(http.StatusNotFound, ErrorResponse{
			Error:   "not_found",
			Message: "Link not found",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Link deleted"})
}

// Redirect godoc
// @Summary Resolve a slug and redirect
// @Description Record a click and redirect to the stored target with a cid correlation parameter
// @Tags redirect
// @Param slug path string true "Slug"
// @Param utm_source query string false "Forwarded verbatim"
// @Param utm_medium query string false "Forwarded verbatim"
// @Param utm_campaign query string false "Forwarded verbatim"
// @Success 302 {string} string "Redirect to target"
// @Failure 404 {object} ErrorResponse
// @Router /r/{slug} [get]
func (h *LinkHandler) Redirect(c *gin.Context) {
	slug := c.Param("slug")

	link, err := h.service.Resolve(c.Request.Context(), slug)
	if err != nil {
		if errors.Is(err, repository.ErrLinkNotFound) {
			// Неизвестный slug: 404, клик не записываем
			c.JSON(http.StatusNotFound, ErrorResponse{
				Error:   "not_found",
				Message: "Link not found",
			})
			return
		}
		// Отказ хранилища - не "ссылки нет", а 500
		h.logger.Error("Failed to resolve slug", zap.String("slug", slug), zap.Error(err))
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "internal_error",
			Message: "Failed to resolve link",
		})
		return
	}

	event := &models.ClickEvent{
		LinkID:       link.ID,
		Slug:         link.Slug,
		IPAddress:    c.ClientIP(),
		UserAgent:    c.Request.UserAgent(),
		Referer:      c.Request.Referer(),
		UTMSource:    c.Query("utm_source"),
		UTMMedium:    c.Query("utm_medium"),
		UTMCampaign:  c.Query("utm_campaign"),
		SessionToken: h.sessionToken(c),
	}

	// Запись клика fire-and-forget; clickID получаем сразу
	clickID := h.clickProcessor.Record(c.Request.Context(), event)

	c.Redirect(http.StatusFound, buildRedirectURL(link.Target, clickID, event))
}

// Estimates godoc
// @Summary Attribution estimates
// @Description Per-link click counts and estimated sales/revenue, ordered by clicks descending
// @Tags admin
// @Produce json
// @Success 200 {array} models.LinkEstimate
// @Failure 500 {object} ErrorResponse
// @Router /admin/estimates [get]
func (h *LinkHandler) Estimates(c *gin.Context) {
	rows, err := h.estimateService.Estimate(c.Request.Context())
	if err != nil {
		h.logger.Error("Failed to compute estimates", zap.Error(err))
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "internal_error",
			Message: "Failed to compute estimates",
		})
		return
	}

	if rows == nil {
		rows = []models.LinkEstimate{}
	}
	c.JSON(http.StatusOK, rows)
}

// EstimatesCSV godoc
// @Summary Attribution estimates (CSV)
// @Description Same rows as /admin/estimates, serialized as CSV
// @Tags admin
// @Produce text/csv
// @Success 200 {string} string "CSV body"
// @Failure 500 {object} ErrorResponse
// @Router /admin/estimates.csv [get]
func (h *LinkHandler) EstimatesCSV(c *gin.Context) {
	rows, err := h.estimateService.Estimate(c.Request.Context())
	if err != nil {
		h.logger.Error("Failed to compute estimates", zap.Error(err))
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "internal_error",
			Message: "Failed to compute estimates",
		})
		return
	}

	c.Header("Content-Type", "text/csv; charset=utf-8")
	c.Header("Content-Disposition", `attachment; filename="estimates.csv"`)

	w := csv.NewWriter(c.Writer)
	w.Write([]string{"slug", "partner", "campaign", "clicks", "conversion_rate", "average_order_value", "estimated_sales", "estimated_revenue"})
	for _, row := range rows {
		w.Write([]string{
			row.Slug,
			row.Partner,
			row.Campaign,
			strconv.FormatInt(row.Clicks, 10),
			strconv.FormatFloat(row.ConversionRate, 'f', -1, 64),
			strconv.FormatFloat(row.AverageOrderValue, 'f', -1, 64),
			strconv.FormatFloat(row.EstimatedSales, 'f', -1, 64),
			strconv.FormatFloat(row.EstimatedRevenue, 'f', -1, 64),
		})
	}
	w.Flush()
}

// HealthCheck godoc
// @Summary Liveness probe
// @Tags health
// @Produce json
// @Success 200 {object} map[string]string
// @Router /api/v1/health [get]
func HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// sessionToken возвращает токен сессии из cookie, заводя новый при
// первом визите
func (h *LinkHandler) sessionToken(c *gin.Context) string {
	if token, err := c.Cookie(sessionCookieName); err == nil && token != "" {
		return token
	}

	token := service.NewClickID()
	c.SetCookie(sessionCookieName, token, 30*24*3600, "/", "", false, true)
	return token
}

// buildRedirectURL собирает исходящий URL: target + cid + входящие UTM.
// Если сохранённый target не парсится как URL, редиректим на него как есть
// (защитный fallback вместо 500).
func buildRedirectURL(target, clickID string, event *models.ClickEvent) string {
	u, err := url.Parse(target)
	if err != nil || u.Host == "" {
		return target
	}

	q := u.Query()
	q.Set("cid", clickID)
	if event.UTMSource != "" {
		q.Set("utm_source", event.UTMSource)
	}
	if event.UTMMedium != "" {
		q.Set("utm_medium", event.UTMMedium)
	}
	if event.UTMCampaign != "" {
		q.Set("utm_campaign", event.UTMCampaign)
	}
	u.RawQuery = q.Encode()

	return u.String()
}
