package models

import "github.com/shopspring/decimal"

// Product is a catalog entry. Prices are tax-exclusive; TaxRate is a percentage.
type Product struct {
	BaseModel
	Code        string          `gorm:"uniqueIndex;size:32;not null" json:"code"`
	Name        string          `gorm:"not null" json:"name"`
	Description *string         `json:"description"`
	Price       decimal.Decimal `gorm:"type:numeric(12,2);not null;check:chk_products_price,price >= 0" json:"price"`
	TaxRate     decimal.Decimal `gorm:"type:numeric(5,2);not null;check:chk_products_tax_rate,tax_rate >= 0 AND tax_rate <= 100" json:"tax_rate"`
	Category    string          `gorm:"index;not null" json:"category"`
	IsActive    bool            `gorm:"not null" json:"is_active"`
	Stock       int             `gorm:"not null;check:chk_products_stock,stock >= 0" json:"stock"`
}

// PriceWithTax returns the tax-inclusive unit price rounded to cents.
func (p Product) PriceWithTax() decimal.Decimal {
	return WithTax(p.Price, p.TaxRate)
}

// WithTax folds a percentage tax rate into price, rounded to two decimals.
func WithTax(price, rate decimal.Decimal) decimal.Decimal {
	factor := decimal.NewFromInt(1).Add(rate.Div(decimal.NewFromInt(100)))
	return price.Mul(factor).Round(2)
}

// ProductSort names the columns a product list may be ordered by.
type ProductSort string

const (
	SortByName      ProductSort = "name"
	SortByPrice     ProductSort = "price"
	SortByCreatedAt ProductSort = "created_at"
)

// ProductFilter narrows a catalog listing.
type ProductFilter struct {
	Search   string
	Category string
	Active   *bool
	MinPrice *decimal.Decimal
	MaxPrice *decimal.Decimal
	Page     int
	PageSize int
	SortBy   ProductSort
	Desc     bool
}
