package service_test

import (
	"strconv"
	"testing"

	"github.com/SergeiKhy/link-attribution/internal/config"
	"github.com/SergeiKhy/link-attribution/internal/service"
	"github.com/stretchr/testify/assert"
)

var testDefaults = config.EstimateConfig{
	ConversionRate: 0.008,
	OrderValue:     45,
}

// TestNormalizer_ParseConversionRate_Boundaries проверяет эвристику
// разрешения неоднозначного формата конверсии
func TestNormalizer_ParseConversionRate_Boundaries(t *testing.T) {
	n := service.NewNormalizer(testDefaults)

	tests := []struct {
		name     string
		input    string
		expected float64
	}{
		{"целый процент", "8", 0.08},
		{"процент малой дробью", "0.8", 0.008},
		{"уже доля", "0.008", 0.008},
		{"пустой ввод -> дефолт", "", 0.008},
		{"знак процента отбрасывается", "8%", 0.08},
		{"дробный процент", "2.5", 0.025},
		{"граница: ровно 1 остаётся процентом", "1", 0.01},
		{"граница: 0.2 трактуется как доля", "0.2", 0.2},
		{"мусор -> дефолт", "abc", 0.008},
		{"ноль -> дефолт", "0", 0.008},
		{"отрицательное -> дефолт", "-5", 0.05}, // минус отбрасывается, остаётся "5"
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.expected, n.ParseConversionRate(tt.input), 1e-9)
		})
	}
}

// TestNormalizer_ParseMoney проверяет очистку денежного ввода
func TestNormalizer_ParseMoney(t *testing.T) {
	n := service.NewNormalizer(testDefaults)

	tests := []struct {
		name     string
		input    string
		expected float64
	}{
		{"простое число", "50", 50},
		{"символ валюты", "$49.99", 49.99},
		{"разделители тысяч", "1,234.56", 1234.56},
		{"пробелы и валюта", " 120 EUR ", 120},
		{"пустой ввод -> дефолт", "", 45},
		{"мусор -> дефолт", "free", 45},
		{"ноль -> дефолт", "0", 45},
		{"только точка -> дефолт", ".", 45},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.expected, n.ParseMoney(tt.input), 1e-9)
		})
	}
}

// TestNormalizer_ParseMoney_Idempotent: каноническая форма стабильна
// при повторном парсинге
func TestNormalizer_ParseMoney_Idempotent(t *testing.T) {
	n := service.NewNormalizer(testDefaults)

	inputs := []string{"$49.99", "1,234.56", "45", "", "junk", "0.01"}
	for _, input := range inputs {
		first := n.ParseMoney(input)
		second := n.ParseMoney(strconv.FormatFloat(first, 'f', -1, 64))
		assert.InDelta(t, first, second, 1e-9, "повторный парсинг не должен менять значение: %q", input)
	}
}

// TestNormalizer_ConfiguredDefaults: дефолты приходят из конфига,
// а не из глобального состояния
func TestNormalizer_ConfiguredDefaults(t *testing.T) {
	n := service.NewNormalizer(config.EstimateConfig{
		ConversionRate: 0.02,
		OrderValue:     100,
	})

	assert.InDelta(t, 0.02, n.ParseConversionRate(""), 1e-9)
	assert.InDelta(t, 100.0, n.ParseMoney("n/a"), 1e-9)
}
