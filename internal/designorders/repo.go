package designorders

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/inkforge/studio-backend/pkg/db/models"
	"github.com/inkforge/studio-backend/pkg/enums"
)

// Repository handles design order persistence.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, designOrder *models.DesignOrder) error
	Update(ctx context.Context, designOrder *models.DesignOrder) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.DesignOrder, error)
	FindByOrderID(ctx context.Context, orderID uuid.UUID) (*models.DesignOrder, error)
	ListByStatus(ctx context.Context, status enums.PrintingStatus) ([]models.DesignOrder, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a design order repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, designOrder *models.DesignOrder) error {
	return r.db.WithContext(ctx).Create(designOrder).Error
}

func (r *repository) Update(ctx context.Context, designOrder *models.DesignOrder) error {
	return r.db.WithContext(ctx).Save(designOrder).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.DesignOrder, error) {
	var record models.DesignOrder
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &record, nil
}

func (r *repository) FindByOrderID(ctx context.Context, orderID uuid.UUID) (*models.DesignOrder, error) {
	var record models.DesignOrder
	err := r.db.WithContext(ctx).Where("order_id = ?", orderID).First(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &record, nil
}

func (r *repository) ListByStatus(ctx context.Context, status enums.PrintingStatus) ([]models.DesignOrder, error) {
	var records []models.DesignOrder
	if err := r.db.WithContext(ctx).
		Where("status = ?", status).
		Order("created_at ASC").
		Find(&records).Error; err != nil {
		return nil, err
	}
	return records, nil
}
