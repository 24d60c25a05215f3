package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/supplylink/groupbuy-backend/pkg/enums"
)

// Participant is one vendor's enrollment in a group order. TotalAmount is
// computed at join time and never changes; a vendor who wants different items
// leaves and rejoins. The (order_id, vendor_id) unique index backs the
// one-record-per-vendor invariant at the storage layer.
type Participant struct {
	ID          uuid.UUID         `gorm:"column:id;type:uuid;primaryKey"`
	OrderID     uuid.UUID         `gorm:"column:order_id;type:uuid;not null;uniqueIndex:ux_participants_order_vendor"`
	VendorID    uuid.UUID         `gorm:"column:vendor_id;type:uuid;not null;uniqueIndex:ux_participants_order_vendor"`
	TotalAmount decimal.Decimal   `gorm:"column:total_amount;type:numeric(14,2);not null"`
	Items       []ParticipantItem `gorm:"foreignKey:ParticipantID;constraint:OnDelete:CASCADE"`
	JoinedAt    time.Time         `gorm:"column:joined_at;not null"`
	CreatedAt   time.Time         `gorm:"column:created_at;autoCreateTime"`
}

// ParticipantItem is one committed line of a participant's selection.
type ParticipantItem struct {
	ID            uuid.UUID          `gorm:"column:id;type:uuid;primaryKey"`
	ParticipantID uuid.UUID          `gorm:"column:participant_id;type:uuid;not null;index"`
	OrderID       uuid.UUID          `gorm:"column:order_id;type:uuid;not null;index"`
	MaterialID    uuid.UUID          `gorm:"column:material_id;type:uuid;not null"`
	Quantity      int                `gorm:"column:quantity;not null"`
	Unit          enums.MaterialUnit `gorm:"column:unit;type:text;not null"`
	Price         decimal.Decimal    `gorm:"column:price;type:numeric(12,2);not null"`
	CreatedAt     time.Time          `gorm:"column:created_at;autoCreateTime"`
}
