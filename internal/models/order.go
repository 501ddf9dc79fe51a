package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/example/bakery/internal/orderstatus"
)

type Order struct {
	BaseModel
	UserID          uuid.UUID          `gorm:"type:uuid;index;not null" json:"user_id"`
	User            *User              `json:"user,omitempty"`
	OrderNumber     string             `gorm:"uniqueIndex;not null" json:"order_number"`
	Status          orderstatus.Status `gorm:"type:varchar(16);index;not null;check:chk_orders_status,status IN ('pending','confirmed','preparing','ready','delivered','cancelled')" json:"status"`
	TotalAmount     decimal.Decimal    `gorm:"type:numeric(12,2);not null" json:"total_amount"`
	DeliveryDate    *time.Time         `gorm:"type:date" json:"delivery_date"`
	DeliveryAddress *string            `json:"delivery_address"`
	Phone           *string            `json:"phone"`
	Notes           *string            `json:"notes"`
	CancelledAt     *time.Time         `json:"cancelled_at"`
	Items           []OrderItem        `gorm:"constraint:OnDelete:CASCADE" json:"items,omitempty"`
}

// OrderItem is an immutable line of an order. Product code, name and prices
// are copied from the catalog when the order is placed.
type OrderItem struct {
	BaseModel
	OrderID          uuid.UUID           `gorm:"type:uuid;index;not null" json:"order_id"`
	ProductID        *uuid.UUID          `gorm:"type:uuid;index" json:"product_id"`
	Product          *Product            `gorm:"constraint:OnDelete:SET NULL" json:"-"`
	ProductCode      string              `gorm:"not null" json:"product_code"`
	ProductName      string              `gorm:"not null" json:"product_name"`
	Quantity         int                 `gorm:"not null;check:chk_order_items_quantity,quantity > 0" json:"quantity"`
	UnitPrice        decimal.Decimal     `gorm:"type:numeric(12,2);not null" json:"unit_price"`
	UnitPriceWithTax decimal.Decimal     `gorm:"type:numeric(12,2);not null" json:"unit_price_with_tax"`
	TaxRate          decimal.Decimal     `gorm:"type:numeric(5,2);not null" json:"tax_rate"`
	LineTotal        decimal.NullDecimal `gorm:"type:numeric(12,2)" json:"line_total"`
}

// OrderFilter narrows an order listing.
type OrderFilter struct {
	UserID   *uuid.UUID
	Status   *orderstatus.Status
	Search   string
	Page     int
	PageSize int
}

// TotalCorrection is the audit record written when a drifted order total is repaired.
type TotalCorrection struct {
	BaseModel
	OrderID     uuid.UUID       `gorm:"type:uuid;index;not null" json:"order_id"`
	OldTotal    decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"old_total"`
	NewTotal    decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"new_total"`
	CorrectedAt time.Time       `gorm:"not null" json:"corrected_at"`
}
