package orders

import (
	"context"
	stdErrors "errors"
	"time"

	"github.com/google/uuid"

	"github.com/inkforge/studio-backend/pkg/db/models"
	"github.com/inkforge/studio-backend/pkg/enums"
	"github.com/inkforge/studio-backend/pkg/errors"
	"github.com/inkforge/studio-backend/pkg/logger"
)

// ServiceParams groups dependencies for the order read/admin service.
type ServiceParams struct {
	Repo   Repository
	Logger *logger.Logger
}

// Service covers order reads, customer soft-cancel, and admin status
// mutations. Checkout and payment reconciliation live in internal/checkout.
type Service struct {
	repo Repository
	logg *logger.Logger
}

// NewService builds an order service.
func NewService(params ServiceParams) (*Service, error) {
	if params.Repo == nil {
		return nil, stdErrors.New("repo is required")
	}
	if params.Logger == nil {
		return nil, stdErrors.New("logger is required")
	}
	return &Service{repo: params.Repo, logg: params.Logger}, nil
}

// Get returns the order when it belongs to userID. Admins pass isAdmin to
// bypass the ownership check.
func (s *Service) Get(ctx context.Context, id uuid.UUID, userID uuid.UUID, isAdmin bool) (*models.Order, error) {
	order, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, errors.Wrap(errors.CodeInternal, err, "looking up order")
	}
	if order == nil {
		return nil, errors.New(errors.CodeNotFound, "order not found")
	}
	if !isAdmin && order.UserID != userID {
		return nil, errors.New(errors.CodeForbidden, "order belongs to another account")
	}
	return order, nil
}

// ListForUser returns the caller's orders, newest first.
func (s *Service) ListForUser(ctx context.Context, userID uuid.UUID) ([]models.Order, error) {
	out, err := s.repo.ListByUser(ctx, userID)
	if err != nil {
		return nil, errors.Wrap(errors.CodeInternal, err, "listing orders")
	}
	return out, nil
}

// ListAdmin returns filtered orders for the back office.
func (s *Service) ListAdmin(ctx context.Context, query ListQuery) ([]models.Order, error) {
	out, err := s.repo.List(ctx, query)
	if err != nil {
		return nil, errors.Wrap(errors.CodeInternal, err, "listing orders")
	}
	return out, nil
}

// FindByGuestSessionToken resolves an express-checkout order from its guest
// session token, honoring the session expiry.
func (s *Service) FindByGuestSessionToken(ctx context.Context, token string) (*models.Order, error) {
	if token == "" {
		return nil, errors.New(errors.CodeValidation, "guest session token is required")
	}
	order, err := s.repo.FindByGuestSessionToken(ctx, token)
	if err != nil {
		return nil, errors.Wrap(errors.CodeInternal, err, "looking up guest session")
	}
	if order == nil {
		return nil, errors.New(errors.CodeNotFound, "guest session not found")
	}
	if order.GuestSessionExpiry != nil && time.Now().After(*order.GuestSessionExpiry) {
		return nil, errors.New(errors.CodeNotFound, "guest session has expired")
	}
	return order, nil
}

// Cancel soft-cancels a customer's own order. Orders already handed to the
// carrier cannot be cancelled, and payment status is left untouched: a paid
// cancelled order stays visibly paid until refunded.
func (s *Service) Cancel(ctx context.Context, id uuid.UUID, userID uuid.UUID) (*models.Order, error) {
	order, err := s.Get(ctx, id, userID, false)
	if err != nil {
		return nil, err
	}

	switch order.Status {
	case enums.OrderStatusShipped, enums.OrderStatusDelivered:
		return nil, errors.New(errors.CodeConflict, "shipped orders cannot be cancelled")
	case enums.OrderStatusCancelled:
		return order, nil
	}

	now := time.Now()
	order.Status = enums.OrderStatusCancelled
	order.CancelledAt = &now
	if err := s.repo.Update(ctx, order); err != nil {
		return nil, errors.Wrap(errors.CodeInternal, err, "cancelling order")
	}

	s.logg.Info(s.logg.WithOrderNumber(ctx, order.OrderNumber), "order cancelled by customer")
	return order, nil
}

// AdminUpdateStatus sets the fulfillment status (admin operation).
func (s *Service) AdminUpdateStatus(ctx context.Context, id uuid.UUID, status enums.OrderStatus) (*models.Order, error) {
	if !status.IsValid() {
		return nil, errors.New(errors.CodeValidation, "unknown order status")
	}

	order, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, errors.Wrap(errors.CodeInternal, err, "looking up order")
	}
	if order == nil {
		return nil, errors.New(errors.CodeNotFound, "order not found")
	}

	order.Status = status
	if status == enums.OrderStatusCancelled && order.CancelledAt == nil {
		now := time.Now()
		order.CancelledAt = &now
	}
	if err := s.repo.Update(ctx, order); err != nil {
		return nil, errors.Wrap(errors.CodeInternal, err, "updating order status")
	}
	return order, nil
}

// AdminUpdatePaymentStatus overrides the payment status (admin operation,
// e.g. reconciling an offline refund).
func (s *Service) AdminUpdatePaymentStatus(ctx context.Context, id uuid.UUID, status enums.PaymentStatus) (*models.Order, error) {
	if !status.IsValid() {
		return nil, errors.New(errors.CodeValidation, "unknown payment status")
	}

	order, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, errors.Wrap(errors.CodeInternal, err, "looking up order")
	}
	if order == nil {
		return nil, errors.New(errors.CodeNotFound, "order not found")
	}

	order.PaymentStatus = status
	if status == enums.PaymentStatusPaid && order.PaidAt == nil {
		now := time.Now()
		order.PaidAt = &now
	}
	if err := s.repo.Update(ctx, order); err != nil {
		return nil, errors.Wrap(errors.CodeInternal, err, "updating payment status")
	}
	return order, nil
}
