package grouporders

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/supplylink/groupbuy-backend/pkg/db/models"
	"github.com/supplylink/groupbuy-backend/pkg/enums"
)

// MaterialLineInput describes one catalog line when opening a group order.
type MaterialLineInput struct {
	MaterialID          uuid.UUID          `json:"material_id"`
	Name                string             `json:"name"`
	Unit                enums.MaterialUnit `json:"unit"`
	PricePerUnit        decimal.Decimal    `json:"price_per_unit"`
	MinQuantity         int                `json:"min_quantity"`
	TotalQuantityNeeded int                `json:"total_quantity_needed"`
}

// CreateInput captures everything needed to open a group order.
type CreateInput struct {
	Title           string
	CreatorID       uuid.UUID
	SupplierID      uuid.UUID
	TargetAmount    decimal.Decimal
	MinParticipants int
	MaxParticipants int
	GroupDiscount   decimal.Decimal
	ExpiresAt       time.Time
	Materials       []MaterialLineInput
}

// JoinItemInput is one line of a vendor's commitment. Price is echoed by the
// client and checked against the order's authoritative per-unit price.
type JoinItemInput struct {
	MaterialID uuid.UUID          `json:"material_id"`
	Quantity   int                `json:"quantity"`
	Unit       enums.MaterialUnit `json:"unit"`
	Price      decimal.Decimal    `json:"price"`
}

// JoinInput captures a vendor's join request.
type JoinInput struct {
	OrderID  uuid.UUID
	VendorID uuid.UUID
	Items    []JoinItemInput
}

// MaterialLineDTO exposes one material line of an order snapshot.
type MaterialLineDTO struct {
	ID                  uuid.UUID          `json:"id"`
	MaterialID          uuid.UUID          `json:"material_id"`
	Name                string             `json:"name"`
	Unit                enums.MaterialUnit `json:"unit"`
	PricePerUnit        decimal.Decimal    `json:"price_per_unit"`
	MinQuantity         int                `json:"min_quantity"`
	TotalQuantityNeeded int                `json:"total_quantity_needed"`
	CurrentQuantity     int                `json:"current_quantity"`
}

// ParticipantItemDTO exposes one committed line of a participant.
type ParticipantItemDTO struct {
	MaterialID uuid.UUID          `json:"material_id"`
	Quantity   int                `json:"quantity"`
	Unit       enums.MaterialUnit `json:"unit"`
	Price      decimal.Decimal    `json:"price"`
}

// ParticipantDTO exposes one enrolled vendor of an order snapshot.
type ParticipantDTO struct {
	VendorID    uuid.UUID            `json:"vendor_id"`
	TotalAmount decimal.Decimal      `json:"total_amount"`
	Items       []ParticipantItemDTO `json:"items"`
	JoinedAt    time.Time            `json:"joined_at"`
}

// GroupOrderDTO is the full order snapshot returned by every operation,
// including rejected ones.
type GroupOrderDTO struct {
	ID               uuid.UUID              `json:"id"`
	Title            string                 `json:"title"`
	CreatorID        uuid.UUID              `json:"creator_id"`
	SupplierID       uuid.UUID              `json:"supplier_id"`
	Status           enums.GroupOrderStatus `json:"status"`
	TargetAmount     decimal.Decimal        `json:"target_amount"`
	CurrentAmount    decimal.Decimal        `json:"current_amount"`
	MinParticipants  int                    `json:"min_participants"`
	MaxParticipants  int                    `json:"max_participants"`
	ParticipantCount int                    `json:"participant_count"`
	GroupDiscount    decimal.Decimal        `json:"group_discount"`
	ExpiresAt        time.Time              `json:"expires_at"`
	ConfirmedAt      *time.Time             `json:"confirmed_at,omitempty"`
	ClosedAt         *time.Time             `json:"closed_at,omitempty"`
	DeliveredAt      *time.Time             `json:"delivered_at,omitempty"`
	Materials        []MaterialLineDTO      `json:"materials"`
	Participants     []ParticipantDTO       `json:"participants"`
	CreatedAt        time.Time              `json:"created_at"`
	UpdatedAt        time.Time              `json:"updated_at"`
}

// GroupOrderSummary is the compact shape returned by the recommendation list.
type GroupOrderSummary struct {
	ID               uuid.UUID              `json:"id"`
	Title            string                 `json:"title"`
	SupplierID       uuid.UUID              `json:"supplier_id"`
	Status           enums.GroupOrderStatus `json:"status"`
	TargetAmount     decimal.Decimal        `json:"target_amount"`
	CurrentAmount    decimal.Decimal        `json:"current_amount"`
	MinParticipants  int                    `json:"min_participants"`
	MaxParticipants  int                    `json:"max_participants"`
	ParticipantCount int                    `json:"participant_count"`
	GroupDiscount    decimal.Decimal        `json:"group_discount"`
	ExpiresAt        time.Time              `json:"expires_at"`
	CreatedAt        time.Time              `json:"created_at"`
}

// GroupOrderList wraps the paginated recommendations plus the next cursor.
type GroupOrderList struct {
	Orders     []GroupOrderSummary `json:"orders"`
	NextCursor string              `json:"next_cursor,omitempty"`
}

func toGroupOrderDTO(order *models.GroupOrder) *GroupOrderDTO {
	if order == nil {
		return nil
	}
	dto := &GroupOrderDTO{
		ID:               order.ID,
		Title:            order.Title,
		CreatorID:        order.CreatorID,
		SupplierID:       order.SupplierID,
		Status:           order.Status,
		TargetAmount:     order.TargetAmount,
		CurrentAmount:    order.CurrentAmount,
		MinParticipants:  order.MinParticipants,
		MaxParticipants:  order.MaxParticipants,
		ParticipantCount: len(order.Participants),
		GroupDiscount:    order.GroupDiscount,
		ExpiresAt:        order.ExpiresAt,
		ConfirmedAt:      order.ConfirmedAt,
		ClosedAt:         order.ClosedAt,
		DeliveredAt:      order.DeliveredAt,
		Materials:        make([]MaterialLineDTO, 0, len(order.Materials)),
		Participants:     make([]ParticipantDTO, 0, len(order.Participants)),
		CreatedAt:        order.CreatedAt,
		UpdatedAt:        order.UpdatedAt,
	}
	for _, line := range order.Materials {
		dto.Materials = append(dto.Materials, MaterialLineDTO{
			ID:                  line.ID,
			MaterialID:          line.MaterialID,
			Name:                line.Name,
			Unit:                line.Unit,
			PricePerUnit:        line.PricePerUnit,
			MinQuantity:         line.MinQuantity,
			TotalQuantityNeeded: line.TotalQuantityNeeded,
			CurrentQuantity:     line.CurrentQuantity,
		})
	}
	for _, p := range order.Participants {
		items := make([]ParticipantItemDTO, 0, len(p.Items))
		for _, item := range p.Items {
			items = append(items, ParticipantItemDTO{
				MaterialID: item.MaterialID,
				Quantity:   item.Quantity,
				Unit:       item.Unit,
				Price:      item.Price,
			})
		}
		dto.Participants = append(dto.Participants, ParticipantDTO{
			VendorID:    p.VendorID,
			TotalAmount: p.TotalAmount,
			Items:       items,
			JoinedAt:    p.JoinedAt,
		})
	}
	return dto
}

func toGroupOrderSummary(order models.GroupOrder, participantCount int) GroupOrderSummary {
	return GroupOrderSummary{
		ID:               order.ID,
		Title:            order.Title,
		SupplierID:       order.SupplierID,
		Status:           order.Status,
		TargetAmount:     order.TargetAmount,
		CurrentAmount:    order.CurrentAmount,
		MinParticipants:  order.MinParticipants,
		MaxParticipants:  order.MaxParticipants,
		ParticipantCount: participantCount,
		GroupDiscount:    order.GroupDiscount,
		ExpiresAt:        order.ExpiresAt,
		CreatedAt:        order.CreatedAt,
	}
}
