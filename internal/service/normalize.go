package service

import (
	"math"
	"strconv"
	"strings"

	"github.com/SergeiKhy/link-attribution/internal/config"
)

// Normalizer приводит свободный операторский ввод (конверсия, средний чек)
// к каноническому числовому виду. Чистые функции: ошибок нет, непарсибельный
// ввод молча сводится к дефолтам из конфига.
type Normalizer struct {
	defaults config.EstimateConfig
}

func NewNormalizer(defaults config.EstimateConfig) *Normalizer {
	return &Normalizer{defaults: defaults}
}

// ParseMoney парсит сумму: валютные символы и запятые отбрасываются,
// неположительный результат заменяется дефолтным средним чеком.
func (n *Normalizer) ParseMoney(input string) float64 {
	v, ok := parseNumeric(input)
	if !ok || v <= 0 || math.IsInf(v, 0) || math.IsNaN(v) {
		return n.defaults.OrderValue
	}
	return v
}

// ParseConversionRate парсит конверсию и возвращает долю в (0, 1].
//
// Эвристика разрешения неоднозначного формата (по порядку):
//  1. > 1   — процент, записанный целым числом ("8" -> 0.08), делим на 100
//  2. > 0.2 — процент, записанный малой дробью ("0.8" значит 0.8%), делим на 100
//  3. иначе — уже доля ("0.008" остаётся 0.008)
//
// Для ввода около границы 0.2-1 интерпретация заведомо неоднозначна
// ("0.5" — это 50% или 0.5%?). Это документированное ограничение
// эвристики, а не баг.
func (n *Normalizer) ParseConversionRate(input string) float64 {
	v, ok := parseNumeric(input)
	if !ok || v <= 0 || math.IsInf(v, 0) || math.IsNaN(v) {
		return n.defaults.ConversionRate
	}

	switch {
	case v > 1:
		return v / 100
	case v > 0.2:
		return v / 100
	default:
		return v
	}
}

// parseNumeric выбрасывает всё, кроме цифр и первой десятичной точки
// (символы валют, запятые, пробелы, знак процента)
func parseNumeric(input string) (float64, bool) {
	var b strings.Builder
	seenPoint := false
	for _, r := range input {
		switch {
		case r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '.' && !seenPoint:
			seenPoint = true
			b.WriteRune(r)
		}
	}

	cleaned := b.String()
	if cleaned == "" || cleaned == "." {
		return 0, false
	}

	v, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}
