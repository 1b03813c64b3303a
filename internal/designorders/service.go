package designorders

import (
	"context"
	stdErrors "errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/inkforge/studio-backend/pkg/db/models"
	"github.com/inkforge/studio-backend/pkg/enums"
	"github.com/inkforge/studio-backend/pkg/errors"
	"github.com/inkforge/studio-backend/pkg/logger"
	"github.com/inkforge/studio-backend/pkg/types"
)

// ServiceParams groups dependencies for the design order service.
type ServiceParams struct {
	Repo   Repository
	Logger *logger.Logger
}

// Service links manufacturing-facing design orders to commercial orders and
// keeps the two reconciled.
type Service struct {
	repo Repository
	logg *logger.Logger
}

// NewService builds a design order service.
func NewService(params ServiceParams) (*Service, error) {
	if params.Repo == nil {
		return nil, stdErrors.New("repo is required")
	}
	if params.Logger == nil {
		return nil, stdErrors.New("logger is required")
	}
	return &Service{repo: params.Repo, logg: params.Logger}, nil
}

// WithTx returns a copy of the service whose repository runs inside tx.
func (s *Service) WithTx(tx *gorm.DB) *Service {
	if tx == nil {
		return s
	}
	return &Service{repo: s.repo.WithTx(tx), logg: s.logg}
}

// LinkInput carries everything the manufacturing record snapshots at order
// time. Customer contact is copied, never referenced, so the print shop keeps
// working if the profile changes later.
type LinkInput struct {
	Order          *models.Order
	Design         *models.Design
	Customer       *models.User
	SizeQuantities types.SizeQuantities
	Color          string
}

// Link creates the DesignOrder for an order built from a saved design and
// writes the back-reference onto the order.
func (s *Service) Link(ctx context.Context, in LinkInput) (*models.DesignOrder, error) {
	if in.Order == nil || in.Design == nil || in.Customer == nil {
		return nil, errors.New(errors.CodeValidation, "order, design, and customer are required")
	}
	if err := in.SizeQuantities.Validate(); err != nil {
		return nil, errors.New(errors.CodeValidation, err.Error())
	}

	record := &models.DesignOrder{
		OrderID:        in.Order.ID,
		DesignID:       in.Design.ID,
		CustomerName:   in.Customer.Name,
		CustomerEmail:  in.Customer.Email,
		SizeQuantities: in.SizeQuantities,
		TotalQuantity:  in.SizeQuantities.Total(),
		PriceBreakdown: in.Order.PriceBreakdown,
		Status:         enums.PrintingStatusPending,
		PaymentStatus:  in.Order.PaymentStatus,
	}
	// Copy the phone value; sharing the profile's pointer would let a later
	// profile edit rewrite the snapshot.
	if in.Customer.Phone != nil {
		phone := *in.Customer.Phone
		record.CustomerPhone = &phone
	}
	if in.Color != "" {
		color := in.Color
		record.Color = &color
	}

	if err := s.repo.Create(ctx, record); err != nil {
		return nil, errors.Wrap(errors.CodeInternal, err, "creating design order")
	}
	return record, nil
}

// Reconcile pulls the linked design order up to date with the commercial
// order after a payment event: payment status is mirrored and a paid record
// moves into the processing queue.
func (s *Service) Reconcile(ctx context.Context, order *models.Order) error {
	if order == nil || order.DesignOrderID == nil {
		return nil
	}

	record, err := s.repo.FindByID(ctx, *order.DesignOrderID)
	if err != nil {
		return errors.Wrap(errors.CodeInternal, err, "looking up design order")
	}
	if record == nil {
		return errors.New(errors.CodeNotFound, "design order not found")
	}

	record.PaymentStatus = order.PaymentStatus
	record.PriceBreakdown = order.PriceBreakdown
	if order.PaymentStatus == enums.PaymentStatusPaid && record.Status == enums.PrintingStatusPending {
		record.Status = enums.PrintingStatusProcessing
	}

	if err := s.repo.Update(ctx, record); err != nil {
		return errors.Wrap(errors.CodeInternal, err, "updating design order")
	}
	return nil
}

// SetChallanURL records the generated delivery challan location.
func (s *Service) SetChallanURL(ctx context.Context, id uuid.UUID, url string) error {
	record, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return errors.Wrap(errors.CodeInternal, err, "looking up design order")
	}
	if record == nil {
		return errors.New(errors.CodeNotFound, "design order not found")
	}
	record.ChallanURL = &url
	if err := s.repo.Update(ctx, record); err != nil {
		return errors.Wrap(errors.CodeInternal, err, "updating design order")
	}
	return nil
}

// UpdateStatus advances the printing lifecycle (admin operation).
func (s *Service) UpdateStatus(ctx context.Context, id uuid.UUID, status enums.PrintingStatus) (*models.DesignOrder, error) {
	if !status.IsValid() {
		return nil, errors.New(errors.CodeValidation, "unknown printing status")
	}
	record, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, errors.Wrap(errors.CodeInternal, err, "looking up design order")
	}
	if record == nil {
		return nil, errors.New(errors.CodeNotFound, "design order not found")
	}
	record.Status = status
	if err := s.repo.Update(ctx, record); err != nil {
		return nil, errors.Wrap(errors.CodeInternal, err, "updating design order")
	}
	return record, nil
}

// FindByOrderID exposes the linked record for read endpoints.
func (s *Service) FindByOrderID(ctx context.Context, orderID uuid.UUID) (*models.DesignOrder, error) {
	record, err := s.repo.FindByOrderID(ctx, orderID)
	if err != nil {
		return nil, errors.Wrap(errors.CodeInternal, err, "looking up design order")
	}
	return record, nil
}
