package models

// Product is a row in the products table.
type Product struct {
	Base
	UserID   uint             `gorm:"index;not null" json:"user_id"`
	Name     string           `gorm:"not null" json:"name"`
	Price    float64          `gorm:"not null" json:"price"`
	ImageURL string           `json:"image_url"` // relative, e.g. "/api/uploads/abc123_cup.jpg"
	Variants []ProductVariant `gorm:"constraint:OnDelete:CASCADE" json:"variants"`

	// Owner username, filled on admin listings only.
	UserName string `gorm:"-" json:"user_name,omitempty"`
}

// ProductVariant is a row in the product_variants table. Variants are
// replaced wholesale on update, never merged.
type ProductVariant struct {
	Base
	ProductID       uint    `gorm:"index;not null" json:"product_id"`
	Name            string  `gorm:"not null" json:"name"`
	Value           string  `gorm:"not null" json:"value"`
	PriceAdjustment float64 `gorm:"not null;default:0" json:"price_adjustment"`
}
