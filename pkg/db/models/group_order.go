package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/supplylink/groupbuy-backend/pkg/enums"
)

// GroupOrder is the pooled-demand purchase aggregate. All mutation goes
// through the group orders service, which serializes writers per order.
type GroupOrder struct {
	ID              uuid.UUID              `gorm:"column:id;type:uuid;primaryKey"`
	Title           string                 `gorm:"column:title;not null"`
	CreatorID       uuid.UUID              `gorm:"column:creator_id;type:uuid;not null"`
	SupplierID      uuid.UUID              `gorm:"column:supplier_id;type:uuid;not null"`
	Status          enums.GroupOrderStatus `gorm:"column:status;type:text;not null;default:'open'"`
	TargetAmount    decimal.Decimal        `gorm:"column:target_amount;type:numeric(14,2);not null"`
	CurrentAmount   decimal.Decimal        `gorm:"column:current_amount;type:numeric(14,2);not null"`
	MinParticipants int                    `gorm:"column:min_participants;not null"`
	MaxParticipants int                    `gorm:"column:max_participants;not null"`
	GroupDiscount   decimal.Decimal        `gorm:"column:group_discount;type:numeric(5,2);not null"`
	ExpiresAt       time.Time              `gorm:"column:expires_at;not null"`
	ConfirmedAt     *time.Time             `gorm:"column:confirmed_at"`
	ClosedAt        *time.Time             `gorm:"column:closed_at"`
	DeliveredAt     *time.Time             `gorm:"column:delivered_at"`
	Materials       []MaterialLine         `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	Participants    []Participant          `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	CreatedAt       time.Time              `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time              `gorm:"column:updated_at;autoUpdateTime"`
}

// MaterialLine is the per-material target and running commitment inside a
// group order. PricePerUnit is the authoritative price snapshot taken from the
// supplier catalog at creation time.
type MaterialLine struct {
	ID                  uuid.UUID          `gorm:"column:id;type:uuid;primaryKey"`
	OrderID             uuid.UUID          `gorm:"column:order_id;type:uuid;not null;index"`
	MaterialID          uuid.UUID          `gorm:"column:material_id;type:uuid;not null"`
	Name                string             `gorm:"column:name;not null"`
	Unit                enums.MaterialUnit `gorm:"column:unit;type:text;not null"`
	PricePerUnit        decimal.Decimal    `gorm:"column:price_per_unit;type:numeric(12,2);not null"`
	MinQuantity         int                `gorm:"column:min_quantity;not null;default:0"`
	TotalQuantityNeeded int                `gorm:"column:total_quantity_needed;not null;default:0"`
	CurrentQuantity     int                `gorm:"column:current_quantity;not null;default:0"`
	Position            int                `gorm:"column:position;not null;default:0"`
	CreatedAt           time.Time          `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt           time.Time          `gorm:"column:updated_at;autoUpdateTime"`
}
