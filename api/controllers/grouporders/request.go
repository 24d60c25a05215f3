package grouporders

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/supplylink/groupbuy-backend/api/middleware"
	internal "github.com/supplylink/groupbuy-backend/internal/grouporders"
	"github.com/supplylink/groupbuy-backend/pkg/enums"
	pkgerrors "github.com/supplylink/groupbuy-backend/pkg/errors"
)

type createMaterialLineRequest struct {
	MaterialID          uuid.UUID       `json:"material_id"`
	Name                string          `json:"name" validate:"required,max=200"`
	Unit                string          `json:"unit" validate:"required"`
	PricePerUnit        decimal.Decimal `json:"price_per_unit"`
	MinQuantity         int             `json:"min_quantity" validate:"min=0"`
	TotalQuantityNeeded int             `json:"total_quantity_needed" validate:"min=0"`
}

type createGroupOrderRequest struct {
	Title           string                      `json:"title" validate:"required,max=200"`
	SupplierID      uuid.UUID                   `json:"supplier_id"`
	TargetAmount    decimal.Decimal             `json:"target_amount"`
	MinParticipants int                         `json:"min_participants" validate:"min=1"`
	MaxParticipants int                         `json:"max_participants" validate:"min=1"`
	GroupDiscount   decimal.Decimal             `json:"group_discount"`
	ExpiresAt       time.Time                   `json:"expires_at"`
	Materials       []createMaterialLineRequest `json:"materials" validate:"required,min=1,dive"`
}

func (req createGroupOrderRequest) toInput(creatorID uuid.UUID) internal.CreateInput {
	input := internal.CreateInput{
		Title:           strings.TrimSpace(req.Title),
		CreatorID:       creatorID,
		SupplierID:      req.SupplierID,
		TargetAmount:    req.TargetAmount,
		MinParticipants: req.MinParticipants,
		MaxParticipants: req.MaxParticipants,
		GroupDiscount:   req.GroupDiscount,
		ExpiresAt:       req.ExpiresAt,
	}
	for _, line := range req.Materials {
		input.Materials = append(input.Materials, internal.MaterialLineInput{
			MaterialID:          line.MaterialID,
			Name:                strings.TrimSpace(line.Name),
			Unit:                enums.MaterialUnit(line.Unit),
			PricePerUnit:        line.PricePerUnit,
			MinQuantity:         line.MinQuantity,
			TotalQuantityNeeded: line.TotalQuantityNeeded,
		})
	}
	return input
}

type joinItemRequest struct {
	MaterialID uuid.UUID       `json:"material_id"`
	Quantity   int             `json:"quantity" validate:"min=1"`
	Unit       string          `json:"unit" validate:"required"`
	Price      decimal.Decimal `json:"price"`
}

type joinGroupOrderRequest struct {
	Items []joinItemRequest `json:"items" validate:"required,min=1,dive"`
}

func (req joinGroupOrderRequest) toInput(orderID, vendorID uuid.UUID) internal.JoinInput {
	input := internal.JoinInput{
		OrderID:  orderID,
		VendorID: vendorID,
	}
	for _, item := range req.Items {
		input.Items = append(input.Items, internal.JoinItemInput{
			MaterialID: item.MaterialID,
			Quantity:   item.Quantity,
			Unit:       enums.MaterialUnit(item.Unit),
			Price:      item.Price,
		})
	}
	return input
}

func vendorIDFromRequest(r *http.Request) (uuid.UUID, error) {
	raw := middleware.VendorIDFromContext(r.Context())
	if raw == "" {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "vendor identity missing")
	}
	vendorID, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid vendor identity")
	}
	return vendorID, nil
}

func orderIDFromRequest(r *http.Request) (uuid.UUID, error) {
	raw := strings.TrimSpace(chi.URLParam(r, "orderId"))
	if raw == "" {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeValidation, "order id is required")
	}
	orderID, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid order id")
	}
	return orderID, nil
}
