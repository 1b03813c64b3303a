package orders

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/inkforge/studio-backend/pkg/db/models"
	"github.com/inkforge/studio-backend/pkg/enums"
	"github.com/inkforge/studio-backend/pkg/types"
)

func setupOrdersTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	require.NoError(t, err)

	ordersTable := `
CREATE TABLE IF NOT EXISTS orders (
  id TEXT PRIMARY KEY,
  order_number TEXT NOT NULL UNIQUE,
  user_id TEXT NOT NULL,
  price_breakdown TEXT NOT NULL,
  currency TEXT NOT NULL DEFAULT 'INR',
  status TEXT NOT NULL DEFAULT 'pending',
  payment_status TEXT NOT NULL DEFAULT 'pending',
  gateway_order_id TEXT,
  gateway_payment_id TEXT,
  gateway_signature TEXT,
  discount_code TEXT,
  discount_cents INTEGER NOT NULL DEFAULT 0,
  shipping_method TEXT NOT NULL DEFAULT 'standard',
  shipping_address TEXT,
  billing_address TEXT,
  is_express_checkout INTEGER NOT NULL DEFAULT 0,
  is_guest_order INTEGER NOT NULL DEFAULT 0,
  guest_session_token TEXT,
  guest_session_expiry DATETIME,
  design_order_id TEXT,
  challan_url TEXT,
  amount_paid_cents INTEGER NOT NULL DEFAULT 0,
  paid_at DATETIME,
  cancelled_at DATETIME,
  created_at DATETIME,
  updated_at DATETIME
);`
	orderItems := `
CREATE TABLE IF NOT EXISTS order_items (
  id TEXT PRIMARY KEY,
  order_id TEXT NOT NULL,
  kind TEXT NOT NULL,
  product_id TEXT,
  design_id TEXT,
  name TEXT NOT NULL,
  color TEXT,
  size TEXT,
  qty INTEGER NOT NULL,
  unit_price_cents INTEGER NOT NULL,
  total_cents INTEGER NOT NULL,
  created_at DATETIME
);`
	require.NoError(t, db.Exec(ordersTable).Error)
	require.NoError(t, db.Exec(orderItems).Error)
	return db
}

func newTestOrder(orderNumber string) *models.Order {
	gatewayOrderID := "order_" + orderNumber
	return &models.Order{
		ID:          uuid.New(),
		OrderNumber: orderNumber,
		UserID:      uuid.New(),
		PriceBreakdown: types.PriceBreakdown{
			BasePriceCents: 50000,
			SubtotalCents:  50000,
			TaxCents:       5000,
			ShippingCents:  5000,
			TotalCents:     60000,
		},
		Currency:       enums.CurrencyINR,
		Status:         enums.OrderStatusPending,
		PaymentStatus:  enums.PaymentStatusPending,
		GatewayOrderID: &gatewayOrderID,
		ShippingMethod: enums.ShippingMethodStandard,
		Items: []models.OrderItem{
			{ID: uuid.New(), Kind: enums.OrderItemKindProduct, Name: "Classic Tee", Qty: 2, UnitPriceCents: 25000, TotalCents: 50000},
		},
	}
}

func TestRepositoryCreateAndLookups(t *testing.T) {
	db := setupOrdersTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	order := newTestOrder("INK-1")
	require.NoError(t, repo.Create(ctx, order))

	byID, err := repo.FindByID(ctx, order.ID)
	require.NoError(t, err)
	require.NotNil(t, byID)
	assert.Equal(t, order.OrderNumber, byID.OrderNumber)
	assert.Len(t, byID.Items, 1)
	assert.Equal(t, int64(60000), byID.PriceBreakdown.TotalCents)

	byNumber, err := repo.FindByOrderNumber(ctx, "INK-1")
	require.NoError(t, err)
	require.NotNil(t, byNumber)

	byGateway, err := repo.FindByGatewayOrderID(ctx, "order_INK-1")
	require.NoError(t, err)
	require.NotNil(t, byGateway)
	assert.Equal(t, order.ID, byGateway.ID)

	missing, err := repo.FindByGatewayOrderID(ctx, "order_unknown")
	require.NoError(t, err)
	assert.Nil(t, missing)

	empty, err := repo.FindByGatewayOrderID(ctx, "")
	require.NoError(t, err)
	assert.Nil(t, empty)
}

func TestRepositoryUniqueOrderNumber(t *testing.T) {
	db := setupOrdersTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, newTestOrder("INK-1")))
	err := repo.Create(ctx, newTestOrder("INK-1"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "UNIQUE")
}

func TestRepositoryFindLatestPendingExpress(t *testing.T) {
	db := setupOrdersTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	older := newTestOrder("INK-1")
	older.IsExpressCheckout = true
	older.CreatedAt = time.Now().Add(-30 * time.Minute)
	require.NoError(t, repo.Create(ctx, older))

	newest := newTestOrder("INK-2")
	newest.IsExpressCheckout = true
	newest.CreatedAt = time.Now().Add(-time.Minute)
	require.NoError(t, repo.Create(ctx, newest))

	paid := newTestOrder("INK-3")
	paid.IsExpressCheckout = true
	paid.PaymentStatus = enums.PaymentStatusPaid
	require.NoError(t, repo.Create(ctx, paid))

	found, err := repo.FindLatestPendingExpress(ctx, time.Now().Add(-time.Hour))
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, "INK-2", found.OrderNumber)

	// Cutoff excludes everything.
	none, err := repo.FindLatestPendingExpress(ctx, time.Now())
	require.NoError(t, err)
	assert.Nil(t, none)
}

func TestRepositoryListFilters(t *testing.T) {
	db := setupOrdersTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	pending := newTestOrder("INK-1")
	require.NoError(t, repo.Create(ctx, pending))

	paid := newTestOrder("INK-2")
	paid.PaymentStatus = enums.PaymentStatusPaid
	paid.Status = enums.OrderStatusProcessing
	require.NoError(t, repo.Create(ctx, paid))

	status := enums.PaymentStatusPaid
	got, err := repo.List(ctx, ListQuery{PaymentStatus: &status})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "INK-2", got[0].OrderNumber)

	all, err := repo.List(ctx, ListQuery{})
	require.NoError(t, err)
	assert.Len(t, all, 2)
}
