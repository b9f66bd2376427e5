package service

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
	"regexp"
	"strings"
)

const (
	slugCharset     = "abcdefghijklmnopqrstuvwxyz0123456789"
	randomSlugLen   = 6
	maxSlugAttempts = 10
)

var nonSlugRunPattern = regexp.MustCompile(`[^a-z0-9]+`)

// DeriveSlug строит базовый slug из partner/campaign.
// Нормализация: lowercase, "&" -> "and", любые пробежки не-[a-z0-9]
// схлопываются в один дефис, крайние дефисы обрезаются.
func DeriveSlug(partner, campaign string) string {
	var base string
	switch {
	case partner != "" && campaign != "":
		base = normalizeSlug(partner + "-" + campaign)
	case campaign != "":
		base = normalizeSlug(campaign)
	case partner != "":
		base = normalizeSlug(partner)
	}

	if base == "" {
		base = "link-" + randomToken(randomSlugLen)
	}

	return base
}

func normalizeSlug(s string) string {
	s = strings.ToLower(s)
	s = strings.ReplaceAll(s, "&", "and")
	s = nonSlugRunPattern.ReplaceAllString(s, "-")
	return strings.Trim(s, "-")
}

// EnsureUniqueSlug подбирает свободный slug: сначала base, затем числовые
// суффиксы -2, -3, ... и после maxSlugAttempts попыток полностью случайный.
// Это best-effort предпроверка: финальную уникальность гарантирует
// constraint в БД, а не этот цикл.
func EnsureUniqueSlug(ctx context.Context, base string, exists func(context.Context, string) (bool, error)) (string, error) {
	candidate := base
	for i := 2; i <= maxSlugAttempts+1; i++ {
		taken, err := exists(ctx, candidate)
		if err != nil {
			return "", fmt.Errorf("failed to check slug availability: %w", err)
		}
		if !taken {
			return candidate, nil
		}
		candidate = fmt.Sprintf("%s-%d", base, i)
	}

	// Все попытки исчерпаны, уходим в случайный slug
	return base + "-" + randomToken(randomSlugLen), nil
}

// randomToken генерирует случайную строку заданной длины из slug-алфавита
func randomToken(n int) string {
	result := make([]byte, n)
	max := big.NewInt(int64(len(slugCharset)))
	for i := 0; i < n; i++ {
		num, err := rand.Int(rand.Reader, max)
		if err != nil {
			// crypto/rand на исправной системе не отказывает; на всякий
			// случай деградируем в детерминированный символ
			result[i] = slugCharset[0]
			continue
		}
		result[i] = slugCharset[num.Int64()]
	}
	return string(result)
}
