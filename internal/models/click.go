package models

import (
	"time"
)

type Click struct {
	ID            int64     `json:"id"`
	LinkID        int64     `json:"link_id"`
	Slug          string    `json:"slug"`
	ClickID       string    `json:"click_id"`
	IPFingerprint string    `json:"ip_fingerprint"`
	UserAgent     string    `json:"user_agent"`
	Referer       string    `json:"referer"`
	UTMSource     string    `json:"utm_source"`
	UTMMedium     string    `json:"utm_medium"`
	UTMCampaign   string    `json:"utm_campaign"`
	SessionToken  string    `json:"session_token"`
	ClickedAt     time.Time `json:"clicked_at"`
}

type ClickEvent struct {
	LinkID       int64
	Slug         string
	ClickID      string
	IPAddress    string
	UserAgent    string
	Referer      string
	UTMSource    string
	UTMMedium    string
	UTMCampaign  string
	SessionToken string
}

// LinkEstimate строка отчёта: счётчик кликов плюс эвристическая оценка
// продаж и выручки. Это контракт, который потребляют CSV/HTML слои.
type LinkEstimate struct {
	Slug              string  `json:"slug"`
	Partner           string  `json:"partner"`
	Campaign          string  `json:"campaign"`
	Clicks            int64   `json:"clicks"`
	ConversionRate    float64 `json:"conversion_rate"`
	AverageOrderValue float64 `json:"average_order_value"`
	EstimatedSales    float64 `json:"estimated_sales"`
	EstimatedRevenue  float64 `json:"estimated_revenue"`
}
