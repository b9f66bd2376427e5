package models

import (
	"time"
)

type Link struct {
	ID                int64     `json:"id"`
	Slug              string    `json:"slug"`
	Target            string    `json:"target"`
	Partner           string    `json:"partner,omitempty"`
	Campaign          string    `json:"campaign,omitempty"`
	Scope             string    `json:"scope,omitempty"`
	ConversionRate    float64   `json:"conversion_rate"`
	AverageOrderValue float64   `json:"average_order_value"`
	CreatedAt         time.Time `json:"created_at"`
}

// CreateLinkInput сырой операторский ввод; cr/aov приходят как свободный
// текст и нормализуются сервисом
type CreateLinkInput struct {
	Target   string `json:"target" form:"target" binding:"required"`
	Partner  string `json:"partner" form:"partner"`
	Campaign string `json:"campaign" form:"campaign"`
	CR       string `json:"cr" form:"cr"`
	AOV      string `json:"aov" form:"aov"`
	Scope    string `json:"-" form:"-"`
}
