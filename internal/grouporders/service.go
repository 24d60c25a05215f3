package grouporders

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/supplylink/groupbuy-backend/pkg/config"
	dbpkg "github.com/supplylink/groupbuy-backend/pkg/db"
	"github.com/supplylink/groupbuy-backend/pkg/db/models"
	"github.com/supplylink/groupbuy-backend/pkg/enums"
	pkgerrors "github.com/supplylink/groupbuy-backend/pkg/errors"
	"github.com/supplylink/groupbuy-backend/pkg/logger"
	"github.com/supplylink/groupbuy-backend/pkg/outbox"
	"github.com/supplylink/groupbuy-backend/pkg/pagination"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
	EmitIfNotExists(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// Rejection reasons. Operations that reject still return the current order
// snapshot alongside one of these so clients can re-render without a second
// fetch.
var (
	ErrOrderNotFound   = pkgerrors.New(pkgerrors.CodeNotFound, "group order not found")
	ErrNotParticipant  = pkgerrors.New(pkgerrors.CodeNotFound, "vendor is not a participant")
	ErrNotJoinable     = pkgerrors.New(pkgerrors.CodeConflict, "group order is not open for joining")
	ErrAlreadyJoined   = pkgerrors.New(pkgerrors.CodeConflict, "vendor already joined this order")
	ErrOrderFull       = pkgerrors.New(pkgerrors.CodeConflict, "group order has reached max participants")
	ErrCreatorJoin     = pkgerrors.New(pkgerrors.CodeConflict, "creator cannot join own order")
	ErrNotLeavable     = pkgerrors.New(pkgerrors.CodeStateConflict, "cannot leave after order is confirmed")
	ErrNotClosable     = pkgerrors.New(pkgerrors.CodeStateConflict, "group order cannot be closed in current state")
	ErrNotDeliverable  = pkgerrors.New(pkgerrors.CodeStateConflict, "group order cannot be delivered in current state")
	ErrEmptyJoin       = pkgerrors.New(pkgerrors.CodeValidation, "join requires at least one item")
	ErrInvalidItem     = pkgerrors.New(pkgerrors.CodeValidation, "item quantity or unit is invalid")
	ErrUnknownMaterial = pkgerrors.New(pkgerrors.CodeValidation, "item references a material not in this order")
	ErrPriceMismatch   = pkgerrors.New(pkgerrors.CodeValidation, "item price does not match the order price")
	ErrNotOrderCreator = pkgerrors.New(pkgerrors.CodeForbidden, "only the creator can manage this order")
)

// Service defines the group order lifecycle operations.
type Service interface {
	Create(ctx context.Context, input CreateInput) (*GroupOrderDTO, error)
	Get(ctx context.Context, orderID uuid.UUID) (*GroupOrderDTO, error)
	Join(ctx context.Context, input JoinInput) (*GroupOrderDTO, error)
	Leave(ctx context.Context, orderID, vendorID uuid.UUID) (*GroupOrderDTO, error)
	Close(ctx context.Context, orderID, actorID uuid.UUID) (*GroupOrderDTO, error)
	MarkDelivered(ctx context.Context, orderID, actorID uuid.UUID) (*GroupOrderDTO, error)
	ListOpenFor(ctx context.Context, vendorID uuid.UUID, params pagination.Params) (*GroupOrderList, error)
	Sweep(ctx context.Context, batchSize int) (int, error)
}

type service struct {
	repo   Repository
	tx     txRunner
	outbox outboxPublisher
	locks  *orderLocks
	logg   *logger.Logger
	cfg    config.GroupOrdersConfig
	now    func() time.Time
}

// NewService builds a group orders service with the required dependencies.
func NewService(repo Repository, tx txRunner, ob outboxPublisher, logg *logger.Logger, cfg config.GroupOrdersConfig) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("group orders repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if ob == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	if cfg.MaxMaterialLines <= 0 {
		cfg.MaxMaterialLines = 50
	}
	if cfg.RecommendDefaultLimit <= 0 {
		cfg.RecommendDefaultLimit = pagination.DefaultLimit
	}
	return &service{
		repo:   repo,
		tx:     tx,
		outbox: ob,
		locks:  newOrderLocks(),
		logg:   logg,
		cfg:    cfg,
		now:    time.Now,
	}, nil
}

// GroupOrderCreatedEvent is emitted when a group order opens.
type GroupOrderCreatedEvent struct {
	OrderID         uuid.UUID       `json:"order_id"`
	CreatorID       uuid.UUID       `json:"creator_id"`
	SupplierID      uuid.UUID       `json:"supplier_id"`
	TargetAmount    decimal.Decimal `json:"target_amount"`
	MinParticipants int             `json:"min_participants"`
	MaxParticipants int             `json:"max_participants"`
	ExpiresAt       time.Time       `json:"expires_at"`
}

// ParticipationEvent is emitted on join and leave.
type ParticipationEvent struct {
	OrderID          uuid.UUID       `json:"order_id"`
	VendorID         uuid.UUID       `json:"vendor_id"`
	Amount           decimal.Decimal `json:"amount"`
	CurrentAmount    decimal.Decimal `json:"current_amount"`
	ParticipantCount int             `json:"participant_count"`
}

// StatusChangeEvent is emitted on confirm, close, expire and deliver.
type StatusChangeEvent struct {
	OrderID          uuid.UUID              `json:"order_id"`
	Status           enums.GroupOrderStatus `json:"status"`
	Reason           string                 `json:"reason,omitempty"`
	CurrentAmount    decimal.Decimal        `json:"current_amount"`
	ParticipantCount int                    `json:"participant_count"`
}

func (s *service) Create(ctx context.Context, input CreateInput) (*GroupOrderDTO, error) {
	if err := s.validateCreate(input); err != nil {
		return nil, err
	}

	now := s.now()
	order := &models.GroupOrder{
		ID:              uuid.New(),
		Title:           input.Title,
		CreatorID:       input.CreatorID,
		SupplierID:      input.SupplierID,
		Status:          enums.GroupOrderStatusOpen,
		TargetAmount:    input.TargetAmount,
		CurrentAmount:   decimal.Zero,
		MinParticipants: input.MinParticipants,
		MaxParticipants: input.MaxParticipants,
		GroupDiscount:   input.GroupDiscount,
		ExpiresAt:       input.ExpiresAt,
	}
	for i, line := range input.Materials {
		order.Materials = append(order.Materials, models.MaterialLine{
			ID:                  uuid.New(),
			OrderID:             order.ID,
			MaterialID:          line.MaterialID,
			Name:                line.Name,
			Unit:                line.Unit,
			PricePerUnit:        line.PricePerUnit,
			MinQuantity:         line.MinQuantity,
			TotalQuantityNeeded: line.TotalQuantityNeeded,
			Position:            i,
		})
	}

	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if err := repo.Create(ctx, order); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create group order")
		}
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventGroupOrderCreated,
			AggregateType: enums.AggregateGroupOrder,
			AggregateID:   order.ID,
			Version:       1,
			Actor:         &outbox.ActorRef{VendorID: input.CreatorID},
			OccurredAt:    now,
			Data: GroupOrderCreatedEvent{
				OrderID:         order.ID,
				CreatorID:       order.CreatorID,
				SupplierID:      order.SupplierID,
				TargetAmount:    order.TargetAmount,
				MinParticipants: order.MinParticipants,
				MaxParticipants: order.MaxParticipants,
				ExpiresAt:       order.ExpiresAt,
			},
		})
	})
	if err != nil {
		return nil, err
	}

	logCtx := s.logg.WithOrderID(ctx, order.ID.String())
	s.logg.Info(logCtx, "group order opened")
	return toGroupOrderDTO(order), nil
}

func (s *service) validateCreate(input CreateInput) error {
	switch {
	case input.Title == "":
		return pkgerrors.New(pkgerrors.CodeValidation, "title required")
	case input.CreatorID == uuid.Nil:
		return pkgerrors.New(pkgerrors.CodeValidation, "creator id required")
	case input.SupplierID == uuid.Nil:
		return pkgerrors.New(pkgerrors.CodeValidation, "supplier id required")
	case !input.TargetAmount.IsPositive():
		return pkgerrors.New(pkgerrors.CodeValidation, "target amount must be positive")
	case input.MinParticipants < 1:
		return pkgerrors.New(pkgerrors.CodeValidation, "min participants must be at least 1")
	case input.MaxParticipants < input.MinParticipants:
		return pkgerrors.New(pkgerrors.CodeValidation, "max participants cannot be below min participants")
	case input.GroupDiscount.IsNegative():
		return pkgerrors.New(pkgerrors.CodeValidation, "group discount cannot be negative")
	case !input.ExpiresAt.After(s.now()):
		return pkgerrors.New(pkgerrors.CodeValidation, "expiry must be in the future")
	case len(input.Materials) == 0:
		return pkgerrors.New(pkgerrors.CodeValidation, "at least one material line required")
	case len(input.Materials) > s.cfg.MaxMaterialLines:
		return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("at most %d material lines allowed", s.cfg.MaxMaterialLines))
	}

	seen := make(map[uuid.UUID]struct{}, len(input.Materials))
	for _, line := range input.Materials {
		if line.MaterialID == uuid.Nil {
			return pkgerrors.New(pkgerrors.CodeValidation, "material id required")
		}
		if _, dup := seen[line.MaterialID]; dup {
			return pkgerrors.New(pkgerrors.CodeValidation, "duplicate material line")
		}
		seen[line.MaterialID] = struct{}{}
		if line.Name == "" {
			return pkgerrors.New(pkgerrors.CodeValidation, "material name required")
		}
		if !line.Unit.IsValid() {
			return pkgerrors.New(pkgerrors.CodeValidation, "invalid material unit")
		}
		if !line.PricePerUnit.IsPositive() {
			return pkgerrors.New(pkgerrors.CodeValidation, "price per unit must be positive")
		}
		if line.MinQuantity < 0 || line.TotalQuantityNeeded < 0 {
			return pkgerrors.New(pkgerrors.CodeValidation, "material quantities cannot be negative")
		}
	}
	return nil
}

func (s *service) Get(ctx context.Context, orderID uuid.UUID) (*GroupOrderDTO, error) {
	if orderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	order, err := s.repo.FindByID(ctx, orderID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, ErrOrderNotFound
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load group order")
	}
	return toGroupOrderDTO(order), nil
}

func (s *service) Join(ctx context.Context, input JoinInput) (*GroupOrderDTO, error) {
	if input.OrderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	if input.VendorID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "vendor identity missing")
	}

	release := s.locks.Acquire(input.OrderID)
	defer release()

	var snapshot *GroupOrderDTO
	var rejection error

	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		order, err := repo.FindByID(ctx, input.OrderID)
		if err != nil {
			if err == gorm.ErrRecordNotFound {
				rejection = ErrOrderNotFound
				return nil
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load group order")
		}

		now := s.now()

		// Expiry is applied lazily so a join that races the sweeper still
		// observes the closed state.
		if order.Status == enums.GroupOrderStatusOpen && !order.ExpiresAt.After(now) {
			if err := s.expireTx(ctx, tx, repo, order, now); err != nil {
				return err
			}
			snapshot = toGroupOrderDTO(order)
			rejection = ErrNotJoinable
			return nil
		}

		if reject := s.checkJoinable(order, input); reject != nil {
			snapshot = toGroupOrderDTO(order)
			rejection = reject
			return nil
		}

		total := decimal.Zero
		for _, item := range input.Items {
			total = total.Add(item.Price.Mul(decimal.NewFromInt(int64(item.Quantity))))
		}

		participant := &models.Participant{
			ID:          uuid.New(),
			OrderID:     order.ID,
			VendorID:    input.VendorID,
			TotalAmount: total,
			JoinedAt:    now,
		}
		for _, item := range input.Items {
			participant.Items = append(participant.Items, models.ParticipantItem{
				ID:            uuid.New(),
				ParticipantID: participant.ID,
				OrderID:       order.ID,
				MaterialID:    item.MaterialID,
				Quantity:      item.Quantity,
				Unit:          item.Unit,
				Price:         item.Price,
			})
		}

		if err := repo.InsertParticipant(ctx, participant); err != nil {
			// The unique index backstops concurrent joins from the same
			// vendor across processes.
			if dbpkg.IsUniqueViolation(err, "ux_participants_order_vendor") {
				snapshot = toGroupOrderDTO(order)
				rejection = ErrAlreadyJoined
				return nil
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "insert participant")
		}

		linesByMaterial := materialIndex(order)
		for _, item := range input.Items {
			line := linesByMaterial[item.MaterialID]
			if err := repo.AdjustMaterialQuantity(ctx, line.ID, item.Quantity); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update material quantity")
			}
			line.CurrentQuantity += item.Quantity
		}

		order.CurrentAmount = order.CurrentAmount.Add(total)
		order.Participants = append(order.Participants, *participant)

		fields := map[string]any{
			"current_amount": order.CurrentAmount,
			"updated_at":     now,
		}

		confirmed := len(order.Participants) >= order.MinParticipants &&
			order.CurrentAmount.GreaterThanOrEqual(order.TargetAmount)
		if confirmed {
			order.Status = enums.GroupOrderStatusConfirmed
			order.ConfirmedAt = &now
			fields["status"] = order.Status
			fields["confirmed_at"] = now
		}

		if err := repo.UpdateOrder(ctx, order.ID, fields); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update group order")
		}

		actor := &outbox.ActorRef{VendorID: input.VendorID}
		if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventVendorJoined,
			AggregateType: enums.AggregateGroupOrder,
			AggregateID:   order.ID,
			Version:       1,
			Actor:         actor,
			OccurredAt:    now,
			Data: ParticipationEvent{
				OrderID:          order.ID,
				VendorID:         input.VendorID,
				Amount:           total,
				CurrentAmount:    order.CurrentAmount,
				ParticipantCount: len(order.Participants),
			},
		}); err != nil {
			return err
		}

		if confirmed {
			if err := s.outbox.EmitIfNotExists(ctx, tx, outbox.DomainEvent{
				EventType:     enums.EventGroupOrderConfirmed,
				AggregateType: enums.AggregateGroupOrder,
				AggregateID:   order.ID,
				Version:       1,
				Actor:         actor,
				OccurredAt:    now,
				Data: StatusChangeEvent{
					OrderID:          order.ID,
					Status:           order.Status,
					CurrentAmount:    order.CurrentAmount,
					ParticipantCount: len(order.Participants),
				},
			}); err != nil {
				return err
			}
		}

		snapshot = toGroupOrderDTO(order)
		return nil
	})
	if err != nil {
		return nil, err
	}
	if rejection != nil {
		return snapshot, rejection
	}

	logCtx := s.logg.WithFields(ctx, map[string]any{
		"order_id":  input.OrderID.String(),
		"vendor_id": input.VendorID.String(),
		"status":    snapshot.Status,
	})
	s.logg.Info(logCtx, "vendor joined group order")
	return snapshot, nil
}

func (s *service) checkJoinable(order *models.GroupOrder, input JoinInput) error {
	if order.Status != enums.GroupOrderStatusOpen {
		return ErrNotJoinable
	}
	if order.CreatorID == input.VendorID {
		return ErrCreatorJoin
	}
	for _, p := range order.Participants {
		if p.VendorID == input.VendorID {
			return ErrAlreadyJoined
		}
	}
	if len(order.Participants) >= order.MaxParticipants {
		return ErrOrderFull
	}
	if len(input.Items) == 0 {
		return ErrEmptyJoin
	}

	linesByMaterial := materialIndex(order)
	seen := make(map[uuid.UUID]struct{}, len(input.Items))
	for _, item := range input.Items {
		if _, dup := seen[item.MaterialID]; dup {
			return ErrInvalidItem
		}
		seen[item.MaterialID] = struct{}{}
		line, ok := linesByMaterial[item.MaterialID]
		if !ok {
			return ErrUnknownMaterial
		}
		if item.Quantity < 1 || item.Unit != line.Unit {
			return ErrInvalidItem
		}
		if !item.Price.Equal(line.PricePerUnit) {
			return ErrPriceMismatch
		}
	}
	return nil
}

func materialIndex(order *models.GroupOrder) map[uuid.UUID]*models.MaterialLine {
	index := make(map[uuid.UUID]*models.MaterialLine, len(order.Materials))
	for i := range order.Materials {
		index[order.Materials[i].MaterialID] = &order.Materials[i]
	}
	return index
}

func (s *service) Leave(ctx context.Context, orderID, vendorID uuid.UUID) (*GroupOrderDTO, error) {
	if orderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	if vendorID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "vendor identity missing")
	}

	release := s.locks.Acquire(orderID)
	defer release()

	var snapshot *GroupOrderDTO
	var rejection error

	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		order, err := repo.FindByID(ctx, orderID)
		if err != nil {
			if err == gorm.ErrRecordNotFound {
				rejection = ErrOrderNotFound
				return nil
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load group order")
		}

		if order.Status != enums.GroupOrderStatusOpen {
			snapshot = toGroupOrderDTO(order)
			rejection = ErrNotLeavable
			return nil
		}

		participant, err := repo.FindParticipant(ctx, orderID, vendorID)
		if err != nil {
			if err == gorm.ErrRecordNotFound {
				snapshot = toGroupOrderDTO(order)
				rejection = ErrNotParticipant
				return nil
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load participant")
		}

		now := s.now()

		if err := repo.DeleteParticipant(ctx, participant.ID); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete participant")
		}

		linesByMaterial := materialIndex(order)
		for _, item := range participant.Items {
			line, ok := linesByMaterial[item.MaterialID]
			if !ok {
				continue
			}
			next := line.CurrentQuantity - item.Quantity
			if next < 0 {
				logCtx := s.logg.WithOrderID(ctx, order.ID.String())
				s.logg.Warn(logCtx, "material quantity underflow on leave, clamping to zero")
				next = 0
			}
			if err := repo.UpdateMaterial(ctx, line.ID, map[string]any{"current_quantity": next}); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update material quantity")
			}
			line.CurrentQuantity = next
		}

		newAmount := order.CurrentAmount.Sub(participant.TotalAmount)
		if newAmount.IsNegative() {
			logCtx := s.logg.WithOrderID(ctx, order.ID.String())
			s.logg.Warn(logCtx, "order amount underflow on leave, clamping to zero")
			newAmount = decimal.Zero
		}
		order.CurrentAmount = newAmount

		remaining := order.Participants[:0]
		for _, p := range order.Participants {
			if p.VendorID != vendorID {
				remaining = append(remaining, p)
			}
		}
		order.Participants = remaining

		if err := repo.UpdateOrder(ctx, order.ID, map[string]any{
			"current_amount": order.CurrentAmount,
			"updated_at":     now,
		}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update group order")
		}

		if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventVendorLeft,
			AggregateType: enums.AggregateGroupOrder,
			AggregateID:   order.ID,
			Version:       1,
			Actor:         &outbox.ActorRef{VendorID: vendorID},
			OccurredAt:    now,
			Data: ParticipationEvent{
				OrderID:          order.ID,
				VendorID:         vendorID,
				Amount:           participant.TotalAmount,
				CurrentAmount:    order.CurrentAmount,
				ParticipantCount: len(order.Participants),
			},
		}); err != nil {
			return err
		}

		snapshot = toGroupOrderDTO(order)
		return nil
	})
	if err != nil {
		return nil, err
	}
	if rejection != nil {
		return snapshot, rejection
	}

	logCtx := s.logg.WithFields(ctx, map[string]any{
		"order_id":  orderID.String(),
		"vendor_id": vendorID.String(),
	})
	s.logg.Info(logCtx, "vendor left group order")
	return snapshot, nil
}

func (s *service) Close(ctx context.Context, orderID, actorID uuid.UUID) (*GroupOrderDTO, error) {
	if orderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	if actorID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "vendor identity missing")
	}

	release := s.locks.Acquire(orderID)
	defer release()

	var snapshot *GroupOrderDTO
	var rejection error

	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		order, err := repo.FindByID(ctx, orderID)
		if err != nil {
			if err == gorm.ErrRecordNotFound {
				rejection = ErrOrderNotFound
				return nil
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load group order")
		}
		if order.CreatorID != actorID {
			snapshot = toGroupOrderDTO(order)
			rejection = ErrNotOrderCreator
			return nil
		}
		if order.Status == enums.GroupOrderStatusClosed {
			snapshot = toGroupOrderDTO(order)
			return nil
		}
		if order.Status != enums.GroupOrderStatusOpen && order.Status != enums.GroupOrderStatusConfirmed {
			snapshot = toGroupOrderDTO(order)
			rejection = ErrNotClosable
			return nil
		}

		now := s.now()
		order.Status = enums.GroupOrderStatusClosed
		order.ClosedAt = &now

		if err := repo.UpdateOrder(ctx, order.ID, map[string]any{
			"status":     order.Status,
			"closed_at":  now,
			"updated_at": now,
		}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update group order")
		}

		if err := s.outbox.EmitIfNotExists(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventGroupOrderClosed,
			AggregateType: enums.AggregateGroupOrder,
			AggregateID:   order.ID,
			Version:       1,
			Actor:         &outbox.ActorRef{VendorID: actorID},
			OccurredAt:    now,
			Data: StatusChangeEvent{
				OrderID:          order.ID,
				Status:           order.Status,
				Reason:           "closed_by_creator",
				CurrentAmount:    order.CurrentAmount,
				ParticipantCount: len(order.Participants),
			},
		}); err != nil {
			return err
		}

		snapshot = toGroupOrderDTO(order)
		return nil
	})
	if err != nil {
		return nil, err
	}
	if rejection != nil {
		return snapshot, rejection
	}

	logCtx := s.logg.WithOrderID(ctx, orderID.String())
	s.logg.Info(logCtx, "group order closed")
	return snapshot, nil
}

func (s *service) MarkDelivered(ctx context.Context, orderID, actorID uuid.UUID) (*GroupOrderDTO, error) {
	if orderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	if actorID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "vendor identity missing")
	}

	release := s.locks.Acquire(orderID)
	defer release()

	var snapshot *GroupOrderDTO
	var rejection error

	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		order, err := repo.FindByID(ctx, orderID)
		if err != nil {
			if err == gorm.ErrRecordNotFound {
				rejection = ErrOrderNotFound
				return nil
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load group order")
		}
		if order.CreatorID != actorID {
			snapshot = toGroupOrderDTO(order)
			rejection = ErrNotOrderCreator
			return nil
		}
		if order.Status == enums.GroupOrderStatusDelivered {
			snapshot = toGroupOrderDTO(order)
			return nil
		}
		// Delivery requires the order to have confirmed at some point; an
		// expiry-closed order never shipped.
		deliverable := order.Status == enums.GroupOrderStatusConfirmed ||
			(order.Status == enums.GroupOrderStatusClosed && order.ConfirmedAt != nil)
		if !deliverable {
			snapshot = toGroupOrderDTO(order)
			rejection = ErrNotDeliverable
			return nil
		}

		now := s.now()
		order.Status = enums.GroupOrderStatusDelivered
		order.DeliveredAt = &now

		if err := repo.UpdateOrder(ctx, order.ID, map[string]any{
			"status":       order.Status,
			"delivered_at": now,
			"updated_at":   now,
		}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update group order")
		}

		if err := s.outbox.EmitIfNotExists(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventGroupOrderDelivered,
			AggregateType: enums.AggregateGroupOrder,
			AggregateID:   order.ID,
			Version:       1,
			Actor:         &outbox.ActorRef{VendorID: actorID},
			OccurredAt:    now,
			Data: StatusChangeEvent{
				OrderID:          order.ID,
				Status:           order.Status,
				CurrentAmount:    order.CurrentAmount,
				ParticipantCount: len(order.Participants),
			},
		}); err != nil {
			return err
		}

		snapshot = toGroupOrderDTO(order)
		return nil
	})
	if err != nil {
		return nil, err
	}
	if rejection != nil {
		return snapshot, rejection
	}

	logCtx := s.logg.WithOrderID(ctx, orderID.String())
	s.logg.Info(logCtx, "group order delivered")
	return snapshot, nil
}

func (s *service) ListOpenFor(ctx context.Context, vendorID uuid.UUID, params pagination.Params) (*GroupOrderList, error) {
	if vendorID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "vendor identity missing")
	}

	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}

	limit := params.Limit
	if limit <= 0 {
		limit = s.cfg.RecommendDefaultLimit
	}
	limit = pagination.NormalizeLimit(limit)

	// Over-fetch: fullness cannot be expressed in the keyset query cheaply,
	// so full orders are dropped after the read.
	fetch := pagination.LimitWithBuffer(limit)
	now := s.now()

	list := &GroupOrderList{Orders: []GroupOrderSummary{}}
	for {
		orders, err := s.repo.ListOpenForVendor(ctx, vendorID, now, cursor, fetch)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list open group orders")
		}

		hasMore := len(orders) == fetch
		for _, order := range orders {
			count := len(order.Participants)
			if count >= order.MaxParticipants {
				continue
			}
			list.Orders = append(list.Orders, toGroupOrderSummary(order, count))
			if len(list.Orders) == limit {
				break
			}
		}

		if len(list.Orders) >= limit || !hasMore {
			break
		}
		last := orders[len(orders)-1]
		cursor = &pagination.Cursor{CreatedAt: last.CreatedAt, ID: last.ID}
	}

	if len(list.Orders) == limit {
		last := list.Orders[len(list.Orders)-1]
		list.NextCursor = pagination.EncodeCursor(pagination.Cursor{
			CreatedAt: last.CreatedAt,
			ID:        last.ID,
		})
	}
	return list, nil
}

// Sweep closes open orders whose expiry has passed and returns how many it
// transitioned. Each order is processed under its own lock and transaction so
// one failure does not poison the batch.
func (s *service) Sweep(ctx context.Context, batchSize int) (int, error) {
	if batchSize <= 0 {
		batchSize = 100
	}

	now := s.now()
	expired, err := s.repo.ListExpiredOpen(ctx, now, batchSize)
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list expired group orders")
	}

	closed := 0
	for _, candidate := range expired {
		if err := s.sweepOne(ctx, candidate.ID); err != nil {
			logCtx := s.logg.WithOrderID(ctx, candidate.ID.String())
			s.logg.Error(logCtx, "failed to expire group order", err)
			continue
		}
		closed++
	}
	return closed, nil
}

func (s *service) sweepOne(ctx context.Context, orderID uuid.UUID) error {
	release := s.locks.Acquire(orderID)
	defer release()

	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		order, err := repo.FindByID(ctx, orderID)
		if err != nil {
			if err == gorm.ErrRecordNotFound {
				return nil
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load group order")
		}

		now := s.now()
		// Re-check under the lock: a join may have confirmed the order, or a
		// concurrent lazy expiry may have closed it already.
		if order.Status != enums.GroupOrderStatusOpen || order.ExpiresAt.After(now) {
			return nil
		}
		return s.expireTx(ctx, tx, repo, order, now)
	})
}

// expireTx transitions an open order to closed due to expiry. Caller holds the
// per-order lock and the transaction.
func (s *service) expireTx(ctx context.Context, tx *gorm.DB, repo Repository, order *models.GroupOrder, now time.Time) error {
	order.Status = enums.GroupOrderStatusClosed
	order.ClosedAt = &now

	if err := repo.UpdateOrder(ctx, order.ID, map[string]any{
		"status":     order.Status,
		"closed_at":  now,
		"updated_at": now,
	}); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update group order")
	}

	if err := s.outbox.EmitIfNotExists(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventGroupOrderExpired,
		AggregateType: enums.AggregateGroupOrder,
		AggregateID:   order.ID,
		Version:       1,
		OccurredAt:    now,
		Data: StatusChangeEvent{
			OrderID:          order.ID,
			Status:           order.Status,
			Reason:           "expired",
			CurrentAmount:    order.CurrentAmount,
			ParticipantCount: len(order.Participants),
		},
	}); err != nil {
		return err
	}

	logCtx := s.logg.WithOrderID(ctx, order.ID.String())
	s.logg.Info(logCtx, "group order expired")
	return nil
}
