package models

import "gorm.io/gorm"

// Template types. The followup1..3 types feed the legacy auto-follow-up
// path only; sequence campaigns reference templates per step instead.
const (
	TemplateTypeInitial   = "initial"
	TemplateTypeFollowup1 = "followup1"
	TemplateTypeFollowup2 = "followup2"
	TemplateTypeFollowup3 = "followup3"
)

// Template represents email templates for campaigns. At least one of
// HTMLContent/TextContent must be authored.
type Template struct {
	gorm.Model
	UserID uint `gorm:"not null;index" json:"user_id"`

	Name        string `gorm:"not null" json:"name"`
	Subject     string `gorm:"not null" json:"subject"`
	HTMLContent string `gorm:"type:text" json:"html_content"`
	TextContent string `gorm:"type:text" json:"text_content"`

	// TextOnly suppresses the HTML body even when catalog items exist.
	TextOnly bool `gorm:"default:false" json:"text_only"`

	Type string `gorm:"default:'initial'" json:"type"`

	// Variables documents the substitution tokens the author used.
	Variables []string `gorm:"type:jsonb;serializer:json" json:"variables,omitempty"`

	// Catalog linkage: the renderer injects the selected items at the
	// {{CATALOG_BLOCK}} token, or appends them when the token is absent.
	SelectedCatalogItemIDs []uint `gorm:"type:jsonb;serializer:json" json:"selected_catalog_item_ids,omitempty"`
	CatalogLayout          string `gorm:"default:'grid'" json:"catalog_layout"` // grid, list
	ShowPrices             bool   `gorm:"default:true" json:"show_prices"`
}

// CatalogItem is a merchandised product a template can embed.
type CatalogItem struct {
	gorm.Model
	UserID uint `gorm:"not null;index" json:"user_id"`

	Name        string  `gorm:"not null" json:"name"`
	Description string  `gorm:"type:text" json:"description"`
	Price       float64 `gorm:"default:0" json:"price"`
	Currency    string  `gorm:"default:'USD'" json:"currency"`
	ImageURL    string  `json:"image_url"`
	ProductURL  string  `json:"product_url"`
}
