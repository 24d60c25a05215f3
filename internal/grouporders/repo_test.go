package grouporders

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/supplylink/groupbuy-backend/pkg/db/models"
	"github.com/supplylink/groupbuy-backend/pkg/enums"
	"github.com/supplylink/groupbuy-backend/pkg/pagination"
)

func setupGroupOrdersTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)

	groupOrders := `
CREATE TABLE IF NOT EXISTS group_orders (
  id TEXT PRIMARY KEY,
  title TEXT NOT NULL,
  creator_id TEXT NOT NULL,
  supplier_id TEXT NOT NULL,
  status TEXT NOT NULL DEFAULT 'open',
  target_amount TEXT NOT NULL,
  current_amount TEXT NOT NULL DEFAULT '0',
  min_participants INTEGER NOT NULL,
  max_participants INTEGER NOT NULL,
  group_discount TEXT NOT NULL DEFAULT '0',
  expires_at DATETIME NOT NULL,
  confirmed_at DATETIME,
  closed_at DATETIME,
  delivered_at DATETIME,
  created_at DATETIME,
  updated_at DATETIME
);`
	materialLines := `
CREATE TABLE IF NOT EXISTS material_lines (
  id TEXT PRIMARY KEY,
  order_id TEXT NOT NULL,
  material_id TEXT NOT NULL,
  name TEXT NOT NULL,
  unit TEXT NOT NULL,
  price_per_unit TEXT NOT NULL,
  min_quantity INTEGER NOT NULL DEFAULT 0,
  total_quantity_needed INTEGER NOT NULL DEFAULT 0,
  current_quantity INTEGER NOT NULL DEFAULT 0,
  position INTEGER NOT NULL DEFAULT 0,
  created_at DATETIME,
  updated_at DATETIME
);`
	participants := `
CREATE TABLE IF NOT EXISTS participants (
  id TEXT PRIMARY KEY,
  order_id TEXT NOT NULL,
  vendor_id TEXT NOT NULL,
  total_amount TEXT NOT NULL DEFAULT '0',
  joined_at DATETIME NOT NULL,
  created_at DATETIME,
  UNIQUE (order_id, vendor_id)
);`
	participantItems := `
CREATE TABLE IF NOT EXISTS participant_items (
  id TEXT PRIMARY KEY,
  participant_id TEXT NOT NULL,
  order_id TEXT NOT NULL,
  material_id TEXT NOT NULL,
  quantity INTEGER NOT NULL,
  unit TEXT NOT NULL,
  price TEXT NOT NULL,
  created_at DATETIME
);`
	outboxEvents := `
CREATE TABLE IF NOT EXISTS outbox_events (
  id TEXT PRIMARY KEY,
  event_type TEXT NOT NULL,
  aggregate_type TEXT NOT NULL,
  aggregate_id TEXT NOT NULL,
  payload TEXT NOT NULL,
  created_at DATETIME,
  published_at DATETIME,
  attempt_count INTEGER NOT NULL DEFAULT 0,
  last_error TEXT
);`
	outboxUnique := `
CREATE UNIQUE INDEX IF NOT EXISTS ux_outbox_events_event_aggregate
  ON outbox_events (event_type, aggregate_type, aggregate_id)
  WHERE event_type IN ('group_order_confirmed', 'group_order_closed', 'group_order_expired', 'group_order_delivered');`
	for _, stmt := range []string{groupOrders, materialLines, participants, participantItems, outboxEvents, outboxUnique} {
		require.NoError(t, db.Exec(stmt).Error)
	}
	return db
}

func newOpenOrder(t *testing.T, db *gorm.DB, creatorID uuid.UUID, target string, minP, maxP int, expiresAt time.Time) *models.GroupOrder {
	t.Helper()

	order := &models.GroupOrder{
		ID:              uuid.New(),
		Title:           "bulk flour order",
		CreatorID:       creatorID,
		SupplierID:      uuid.New(),
		Status:          enums.GroupOrderStatusOpen,
		TargetAmount:    decimal.RequireFromString(target),
		CurrentAmount:   decimal.Zero,
		MinParticipants: minP,
		MaxParticipants: maxP,
		GroupDiscount:   decimal.RequireFromString("5.00"),
		ExpiresAt:       expiresAt,
		Materials: []models.MaterialLine{
			{
				ID:                  uuid.New(),
				MaterialID:          uuid.New(),
				Name:                "flour t55",
				Unit:                enums.MaterialUnitKilogram,
				PricePerUnit:        decimal.RequireFromString("1.30"),
				TotalQuantityNeeded: 1000,
				Position:            0,
			},
			{
				ID:                  uuid.New(),
				MaterialID:          uuid.New(),
				Name:                "olive oil",
				Unit:                enums.MaterialUnitLiter,
				PricePerUnit:        decimal.RequireFromString("6.50"),
				TotalQuantityNeeded: 200,
				Position:            1,
			},
		},
	}
	for i := range order.Materials {
		order.Materials[i].OrderID = order.ID
	}
	require.NoError(t, db.Create(order).Error)
	return order
}

func addParticipant(t *testing.T, db *gorm.DB, order *models.GroupOrder, vendorID uuid.UUID, amount string) *models.Participant {
	t.Helper()

	participant := &models.Participant{
		ID:          uuid.New(),
		OrderID:     order.ID,
		VendorID:    vendorID,
		TotalAmount: decimal.RequireFromString(amount),
		JoinedAt:    time.Now().UTC(),
	}
	require.NoError(t, db.Create(participant).Error)
	return participant
}

func TestRepositoryFindByIDPreloadsAssociations(t *testing.T) {
	db := setupGroupOrdersTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	order := newOpenOrder(t, db, uuid.New(), "5000.00", 3, 10, time.Now().Add(time.Hour))
	participant := addParticipant(t, db, order, uuid.New(), "120.00")
	item := models.ParticipantItem{
		ID:            uuid.New(),
		ParticipantID: participant.ID,
		OrderID:       order.ID,
		MaterialID:    order.Materials[0].MaterialID,
		Quantity:      10,
		Unit:          enums.MaterialUnitKilogram,
		Price:         decimal.RequireFromString("1.30"),
	}
	require.NoError(t, db.Create(&item).Error)

	found, err := repo.FindByID(ctx, order.ID)
	require.NoError(t, err)
	assert.Len(t, found.Materials, 2)
	assert.Equal(t, "flour t55", found.Materials[0].Name)
	require.Len(t, found.Participants, 1)
	require.Len(t, found.Participants[0].Items, 1)
	assert.Equal(t, 10, found.Participants[0].Items[0].Quantity)
}

func TestRepositoryFindByIDNotFound(t *testing.T) {
	db := setupGroupOrdersTestDB(t)
	repo := NewRepository(db)

	_, err := repo.FindByID(context.Background(), uuid.New())
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestRepositoryListOpenForVendorFilters(t *testing.T) {
	db := setupGroupOrdersTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()
	vendorID := uuid.New()
	now := time.Now().UTC()

	eligible := newOpenOrder(t, db, uuid.New(), "5000.00", 3, 10, now.Add(time.Hour))

	// Created by the vendor: excluded.
	newOpenOrder(t, db, vendorID, "5000.00", 3, 10, now.Add(time.Hour))

	// Already joined: excluded.
	joined := newOpenOrder(t, db, uuid.New(), "5000.00", 3, 10, now.Add(time.Hour))
	addParticipant(t, db, joined, vendorID, "50.00")

	// Expired: excluded.
	newOpenOrder(t, db, uuid.New(), "5000.00", 3, 10, now.Add(-time.Hour))

	// Closed: excluded.
	closed := newOpenOrder(t, db, uuid.New(), "5000.00", 3, 10, now.Add(time.Hour))
	require.NoError(t, db.Model(&models.GroupOrder{}).Where("id = ?", closed.ID).
		Update("status", enums.GroupOrderStatusClosed).Error)

	orders, err := repo.ListOpenForVendor(ctx, vendorID, now, nil, 50)
	require.NoError(t, err)
	require.Len(t, orders, 1)
	assert.Equal(t, eligible.ID, orders[0].ID)
}

func TestRepositoryListOpenForVendorCursor(t *testing.T) {
	db := setupGroupOrdersTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()
	vendorID := uuid.New()
	now := time.Now().UTC()

	older := newOpenOrder(t, db, uuid.New(), "5000.00", 3, 10, now.Add(time.Hour))
	require.NoError(t, db.Model(&models.GroupOrder{}).Where("id = ?", older.ID).
		Update("created_at", now.Add(-time.Hour)).Error)
	newer := newOpenOrder(t, db, uuid.New(), "5000.00", 3, 10, now.Add(time.Hour))
	require.NoError(t, db.Model(&models.GroupOrder{}).Where("id = ?", newer.ID).
		Update("created_at", now).Error)

	first, err := repo.ListOpenForVendor(ctx, vendorID, now, nil, 1)
	require.NoError(t, err)
	require.Len(t, first, 1)
	assert.Equal(t, newer.ID, first[0].ID)

	cursor := &pagination.Cursor{CreatedAt: first[0].CreatedAt, ID: first[0].ID}
	second, err := repo.ListOpenForVendor(ctx, vendorID, now, cursor, 1)
	require.NoError(t, err)
	require.Len(t, second, 1)
	assert.Equal(t, older.ID, second[0].ID)
}

func TestRepositoryListExpiredOpen(t *testing.T) {
	db := setupGroupOrdersTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()
	now := time.Now().UTC()

	expired := newOpenOrder(t, db, uuid.New(), "5000.00", 3, 10, now.Add(-time.Minute))
	newOpenOrder(t, db, uuid.New(), "5000.00", 3, 10, now.Add(time.Hour))

	orders, err := repo.ListExpiredOpen(ctx, now, 10)
	require.NoError(t, err)
	require.Len(t, orders, 1)
	assert.Equal(t, expired.ID, orders[0].ID)
}

func TestRepositoryInsertParticipantDuplicate(t *testing.T) {
	db := setupGroupOrdersTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	order := newOpenOrder(t, db, uuid.New(), "5000.00", 3, 10, time.Now().Add(time.Hour))
	vendorID := uuid.New()
	addParticipant(t, db, order, vendorID, "10.00")

	dup := &models.Participant{
		ID:          uuid.New(),
		OrderID:     order.ID,
		VendorID:    vendorID,
		TotalAmount: decimal.Zero,
		JoinedAt:    time.Now().UTC(),
	}
	err := repo.InsertParticipant(ctx, dup)
	require.Error(t, err)
}

func TestRepositoryFindParticipant(t *testing.T) {
	db := setupGroupOrdersTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	order := newOpenOrder(t, db, uuid.New(), "5000.00", 3, 10, time.Now().Add(time.Hour))
	vendorID := uuid.New()
	participant := addParticipant(t, db, order, vendorID, "120.00")
	item := models.ParticipantItem{
		ID:            uuid.New(),
		ParticipantID: participant.ID,
		OrderID:       order.ID,
		MaterialID:    order.Materials[0].MaterialID,
		Quantity:      10,
		Unit:          enums.MaterialUnitKilogram,
		Price:         decimal.RequireFromString("1.30"),
	}
	require.NoError(t, db.Create(&item).Error)

	found, err := repo.FindParticipant(ctx, order.ID, vendorID)
	require.NoError(t, err)
	assert.Equal(t, participant.ID, found.ID)
	require.Len(t, found.Items, 1)
	assert.Equal(t, 10, found.Items[0].Quantity)

	_, err = repo.FindParticipant(ctx, order.ID, uuid.New())
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestRepositoryAdjustMaterialQuantity(t *testing.T) {
	db := setupGroupOrdersTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	order := newOpenOrder(t, db, uuid.New(), "5000.00", 3, 10, time.Now().Add(time.Hour))
	line := order.Materials[0]

	require.NoError(t, repo.AdjustMaterialQuantity(ctx, line.ID, 25))
	require.NoError(t, repo.AdjustMaterialQuantity(ctx, line.ID, -5))

	var got models.MaterialLine
	require.NoError(t, db.Where("id = ?", line.ID).First(&got).Error)
	assert.Equal(t, 20, got.CurrentQuantity)
}
