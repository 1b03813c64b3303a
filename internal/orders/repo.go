package orders

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/inkforge/studio-backend/pkg/db/models"
	"github.com/inkforge/studio-backend/pkg/enums"
)

// Repository handles order persistence.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, order *models.Order) error
	Update(ctx context.Context, order *models.Order) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error)
	FindByOrderNumber(ctx context.Context, orderNumber string) (*models.Order, error)
	FindByGatewayOrderID(ctx context.Context, gatewayOrderID string) (*models.Order, error)
	FindByGatewayPaymentID(ctx context.Context, gatewayPaymentID string) (*models.Order, error)
	FindLatestPendingExpress(ctx context.Context, cutoff time.Time) (*models.Order, error)
	FindByGuestSessionToken(ctx context.Context, token string) (*models.Order, error)
	ListByUser(ctx context.Context, userID uuid.UUID) ([]models.Order, error)
	List(ctx context.Context, query ListQuery) ([]models.Order, error)
}

// ListQuery configures admin order listings.
type ListQuery struct {
	Status        *enums.OrderStatus
	PaymentStatus *enums.PaymentStatus
	Limit         int
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns an order repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, order *models.Order) error {
	return r.db.WithContext(ctx).Create(order).Error
}

func (r *repository) Update(ctx context.Context, order *models.Order) error {
	return r.db.WithContext(ctx).Save(order).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	return r.findOne(ctx, "id = ?", id)
}

func (r *repository) FindByOrderNumber(ctx context.Context, orderNumber string) (*models.Order, error) {
	return r.findOne(ctx, "order_number = ?", orderNumber)
}

func (r *repository) FindByGatewayOrderID(ctx context.Context, gatewayOrderID string) (*models.Order, error) {
	if gatewayOrderID == "" {
		return nil, nil
	}
	return r.findOne(ctx, "gateway_order_id = ?", gatewayOrderID)
}

func (r *repository) FindByGatewayPaymentID(ctx context.Context, gatewayPaymentID string) (*models.Order, error) {
	if gatewayPaymentID == "" {
		return nil, nil
	}
	return r.findOne(ctx, "gateway_payment_id = ?", gatewayPaymentID)
}

// FindLatestPendingExpress is the last-resort verification lookup for express
// checkouts whose callback echoed neither gateway reference. Bounded by a
// cutoff so it can never resurrect stale orders.
func (r *repository) FindLatestPendingExpress(ctx context.Context, cutoff time.Time) (*models.Order, error) {
	var order models.Order
	err := r.db.WithContext(ctx).
		Preload("Items").
		Where("is_express_checkout = ?", true).
		Where("payment_status = ?", enums.PaymentStatusPending).
		Where("created_at >= ?", cutoff).
		Order("created_at DESC").
		First(&order).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *repository) FindByGuestSessionToken(ctx context.Context, token string) (*models.Order, error) {
	if token == "" {
		return nil, nil
	}
	return r.findOne(ctx, "guest_session_token = ?", token)
}

func (r *repository) ListByUser(ctx context.Context, userID uuid.UUID) ([]models.Order, error) {
	var orders []models.Order
	if err := r.db.WithContext(ctx).
		Preload("Items").
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&orders).Error; err != nil {
		return nil, err
	}
	return orders, nil
}

func (r *repository) List(ctx context.Context, query ListQuery) ([]models.Order, error) {
	limit := query.Limit
	if limit <= 0 || limit > 200 {
		limit = 50
	}

	db := r.db.WithContext(ctx).Preload("Items")
	if query.Status != nil {
		db = db.Where("status = ?", *query.Status)
	}
	if query.PaymentStatus != nil {
		db = db.Where("payment_status = ?", *query.PaymentStatus)
	}

	var orders []models.Order
	if err := db.Order("created_at DESC").Limit(limit).Find(&orders).Error; err != nil {
		return nil, err
	}
	return orders, nil
}

func (r *repository) findOne(ctx context.Context, cond string, arg any) (*models.Order, error) {
	var order models.Order
	err := r.db.WithContext(ctx).Preload("Items").Where(cond, arg).First(&order).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &order, nil
}
