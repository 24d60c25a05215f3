package grouporders

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/supplylink/groupbuy-backend/pkg/db/models"
	"github.com/supplylink/groupbuy-backend/pkg/enums"
	"github.com/supplylink/groupbuy-backend/pkg/pagination"
)

// Repository abstracts group order persistence so the service can run the
// same logic inside or outside a transaction.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, order *models.GroupOrder) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.GroupOrder, error)
	ListOpenForVendor(ctx context.Context, vendorID uuid.UUID, now time.Time, cursor *pagination.Cursor, limit int) ([]models.GroupOrder, error)
	ListExpiredOpen(ctx context.Context, now time.Time, limit int) ([]models.GroupOrder, error)
	InsertParticipant(ctx context.Context, participant *models.Participant) error
	FindParticipant(ctx context.Context, orderID, vendorID uuid.UUID) (*models.Participant, error)
	DeleteParticipant(ctx context.Context, participantID uuid.UUID) error
	UpdateOrder(ctx context.Context, id uuid.UUID, fields map[string]any) error
	UpdateMaterial(ctx context.Context, lineID uuid.UUID, fields map[string]any) error
	AdjustMaterialQuantity(ctx context.Context, lineID uuid.UUID, delta int) error
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds a group orders repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, order *models.GroupOrder) error {
	return r.db.WithContext(ctx).Create(order).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.GroupOrder, error) {
	var order models.GroupOrder
	err := r.db.WithContext(ctx).
		Preload("Materials", func(db *gorm.DB) *gorm.DB {
			return db.Order("position ASC")
		}).
		Preload("Participants", func(db *gorm.DB) *gorm.DB {
			return db.Order("joined_at ASC")
		}).
		Preload("Participants.Items").
		Where("id = ?", id).
		First(&order).Error
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *repository) ListOpenForVendor(ctx context.Context, vendorID uuid.UUID, now time.Time, cursor *pagination.Cursor, limit int) ([]models.GroupOrder, error) {
	query := r.db.WithContext(ctx).
		Model(&models.GroupOrder{}).
		Preload("Participants").
		Where("status = ?", enums.GroupOrderStatusOpen).
		Where("expires_at > ?", now).
		Where("creator_id <> ?", vendorID).
		Where("NOT EXISTS (SELECT 1 FROM participants p WHERE p.order_id = group_orders.id AND p.vendor_id = ?)", vendorID)

	if cursor != nil {
		query = query.Where(
			"(created_at < ?) OR (created_at = ? AND id < ?)",
			cursor.CreatedAt, cursor.CreatedAt, cursor.ID,
		)
	}

	var orders []models.GroupOrder
	err := query.
		Order("created_at DESC").
		Order("id DESC").
		Limit(limit).
		Find(&orders).Error
	return orders, err
}

func (r *repository) ListExpiredOpen(ctx context.Context, now time.Time, limit int) ([]models.GroupOrder, error) {
	var orders []models.GroupOrder
	err := r.db.WithContext(ctx).
		Where("status = ?", enums.GroupOrderStatusOpen).
		Where("expires_at <= ?", now).
		Order("expires_at ASC").
		Limit(limit).
		Find(&orders).Error
	return orders, err
}

func (r *repository) InsertParticipant(ctx context.Context, participant *models.Participant) error {
	return r.db.WithContext(ctx).Create(participant).Error
}

func (r *repository) FindParticipant(ctx context.Context, orderID, vendorID uuid.UUID) (*models.Participant, error) {
	var participant models.Participant
	err := r.db.WithContext(ctx).
		Preload("Items").
		Where("order_id = ? AND vendor_id = ?", orderID, vendorID).
		First(&participant).Error
	if err != nil {
		return nil, err
	}
	return &participant, nil
}

func (r *repository) DeleteParticipant(ctx context.Context, participantID uuid.UUID) error {
	if err := r.db.WithContext(ctx).
		Where("participant_id = ?", participantID).
		Delete(&models.ParticipantItem{}).Error; err != nil {
		return err
	}
	return r.db.WithContext(ctx).
		Where("id = ?", participantID).
		Delete(&models.Participant{}).Error
}

func (r *repository) UpdateOrder(ctx context.Context, id uuid.UUID, fields map[string]any) error {
	return r.db.WithContext(ctx).
		Model(&models.GroupOrder{}).
		Where("id = ?", id).
		Updates(fields).Error
}

func (r *repository) UpdateMaterial(ctx context.Context, lineID uuid.UUID, fields map[string]any) error {
	return r.db.WithContext(ctx).
		Model(&models.MaterialLine{}).
		Where("id = ?", lineID).
		Updates(fields).Error
}

func (r *repository) AdjustMaterialQuantity(ctx context.Context, lineID uuid.UUID, delta int) error {
	return r.db.WithContext(ctx).
		Model(&models.MaterialLine{}).
		Where("id = ?", lineID).
		Update("current_quantity", gorm.Expr("current_quantity + ?", delta)).Error
}
