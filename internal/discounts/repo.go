package discounts

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/inkforge/studio-backend/pkg/db/models"
)

// Repository handles discount code persistence.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, code *models.DiscountCode) error
	Update(ctx context.Context, code *models.DiscountCode) error
	List(ctx context.Context) ([]models.DiscountCode, error)
	FindByID(ctx context.Context, id uuid.UUID) (*models.DiscountCode, error)
	FindByCode(ctx context.Context, code string) (*models.DiscountCode, error)
	IncrementUsage(ctx context.Context, id uuid.UUID) error
	AdjustUsage(ctx context.Context, id uuid.UUID, delta int) error
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a discount repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, code *models.DiscountCode) error {
	return r.db.WithContext(ctx).Create(code).Error
}

func (r *repository) Update(ctx context.Context, code *models.DiscountCode) error {
	return r.db.WithContext(ctx).Save(code).Error
}

func (r *repository) List(ctx context.Context) ([]models.DiscountCode, error) {
	var codes []models.DiscountCode
	if err := r.db.WithContext(ctx).
		Order("created_at DESC").
		Find(&codes).Error; err != nil {
		return nil, err
	}
	return codes, nil
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.DiscountCode, error) {
	var code models.DiscountCode
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&code).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &code, nil
}

func (r *repository) FindByCode(ctx context.Context, code string) (*models.DiscountCode, error) {
	var record models.DiscountCode
	err := r.db.WithContext(ctx).Where("code = ?", code).First(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &record, nil
}

// IncrementUsage bumps the usage counter with a single SQL expression so
// concurrent checkouts never lose an increment to a read-modify-write race.
func (r *repository) IncrementUsage(ctx context.Context, id uuid.UUID) error {
	result := r.db.WithContext(ctx).
		Model(&models.DiscountCode{}).
		Where("id = ?", id).
		UpdateColumn("usage_count", gorm.Expr("usage_count + 1"))
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("discount code %s not found", id)
	}
	return nil
}

// AdjustUsage applies an admin correction; the counter never drops below zero.
func (r *repository) AdjustUsage(ctx context.Context, id uuid.UUID, delta int) error {
	result := r.db.WithContext(ctx).
		Model(&models.DiscountCode{}).
		Where("id = ?", id).
		UpdateColumn("usage_count", gorm.Expr("CASE WHEN usage_count + ? < 0 THEN 0 ELSE usage_count + ? END", delta, delta))
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("discount code %s not found", id)
	}
	return nil
}
