package designs

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/inkforge/studio-backend/pkg/db/models"
)

// Repository handles saved design persistence.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, design *models.Design) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Design, error)
	ListByUser(ctx context.Context, userID uuid.UUID) ([]models.Design, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a design repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, design *models.Design) error {
	return r.db.WithContext(ctx).Create(design).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Design, error) {
	var design models.Design
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&design).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &design, nil
}

func (r *repository) ListByUser(ctx context.Context, userID uuid.UUID) ([]models.Design, error) {
	var designs []models.Design
	if err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&designs).Error; err != nil {
		return nil, err
	}
	return designs, nil
}
