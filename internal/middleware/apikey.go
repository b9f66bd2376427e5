package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

const (
	apiKeyHeader = "X-API-Key"

	ctxKeyScope     = "api_key_scope"
	ctxKeyValidated = "api_key_validated"
)

// APIKeyGuard middleware для защиты админского контура.
// Имя валидного ключа становится scope создаваемых ссылок, так что
// один процесс может обслуживать несколько операторов.
type APIKeyGuard struct {
	// ValidKeys карта валидных API ключей к их scope/описанию
	validKeys map[string]string
}

// NewAPIKeyGuard создаёт новый API key middleware
func NewAPIKeyGuard(validKeys map[string]string) *APIKeyGuard {
	return &APIKeyGuard{validKeys: validKeys}
}

// Middleware возвращает Gin handler для аутентификации по API ключу
func (g *APIKeyGuard) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		apiKey := c.GetHeader(apiKeyHeader)

		// Запасные варианты: query параметр и Authorization: Bearer
		if apiKey == "" {
			apiKey = c.Query("api_key")
		}
		if apiKey == "" {
			authHeader := c.GetHeader("Authorization")
			if strings.HasPrefix(authHeader, "Bearer ") {
				apiKey = strings.TrimPrefix(authHeader, "Bearer ")
			}
		}

		if apiKey == "" {
			c.JSON(http.StatusUnauthorized, gin.H{
				"error":   "missing_api_key",
				"message": "Требуется API ключ: заголовок X-API-Key, query параметр api_key или Authorization: Bearer",
			})
			c.Abort()
			return
		}

		// Валидация с constant-time comparison
		valid := false
		var scope string
		for validKey, name := range g.validKeys {
			if subtle.ConstantTimeCompare([]byte(apiKey), []byte(validKey)) == 1 {
				valid = true
				scope = name
				break
			}
		}

		if !valid {
			c.JSON(http.StatusUnauthorized, gin.H{
				"error":   "invalid_api_key",
				"message": "Невалидный API ключ",
			})
			c.Abort()
			return
		}

		c.Set(ctxKeyValidated, true)
		c.Set(ctxKeyScope, scope)

		c.Next()
	}
}

// RequireAPIKey хелпер для роутера
func RequireAPIKey(validKeys map[string]string) gin.HandlerFunc {
	return NewAPIKeyGuard(validKeys).Middleware()
}

// ScopeFromContext возвращает scope авторизованного ключа
// (пустая строка, если аутентификация не включена)
func ScopeFromContext(c *gin.Context) string {
	scope, exists := c.Get(ctxKeyScope)
	if !exists {
		return ""
	}
	s, _ := scope.(string)
	return s
}
