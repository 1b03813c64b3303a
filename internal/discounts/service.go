package discounts

import (
	"context"
	stdErrors "errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/inkforge/studio-backend/internal/pricing"
	"github.com/inkforge/studio-backend/pkg/db/models"
	"github.com/inkforge/studio-backend/pkg/enums"
	"github.com/inkforge/studio-backend/pkg/errors"
	"github.com/inkforge/studio-backend/pkg/logger"
)

// ServiceParams groups dependencies for the discount service.
type ServiceParams struct {
	Repo   Repository
	Logger *logger.Logger
}

// Service is the discount ledger: it answers whether a code applies to a
// subtotal and owns the usage counter.
type Service struct {
	repo Repository
	logg *logger.Logger
}

// NewService builds a discount service.
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

// Reservation is a validated discount ready to be committed with an order.
type Reservation struct {
	Code          *models.DiscountCode
	DiscountCents int64
}

// ValidateAndPrice checks the code's eligibility at now and computes the
// discount for the subtotal. Missing, inactive, and out-of-window codes all
// surface as NotFound so callers cannot probe which codes exist.
func (s *Service) ValidateAndPrice(ctx context.Context, code string, subtotalCents int64, now time.Time) (*Reservation, error) {
	normalized := normalizeCode(code)
	if normalized == "" {
		return nil, errors.New(errors.CodeValidation, "discount code is required")
	}

	record, err := s.repo.FindByCode(ctx, normalized)
	if err != nil {
		return nil, errors.Wrap(errors.CodeInternal, err, "looking up discount code")
	}
	if record == nil || !record.Active || !record.WithinWindow(now) {
		return nil, errors.New(errors.CodeNotFound, fmt.Sprintf("discount code %q is not available", normalized))
	}

	amount := pricing.DiscountAmount(pricing.Discount{
		Type:             record.Type,
		Percent:          record.Percent,
		AmountCents:      record.AmountCents,
		MaxDiscountCents: record.MaxDiscountCents,
	}, subtotalCents)

	return &Reservation{Code: record, DiscountCents: amount}, nil
}

// CommitReservation increments the code's usage counter. It must run inside
// the same transaction that persists the order so an aborted checkout never
// consumes a use.
func (s *Service) CommitReservation(ctx context.Context, reservation *Reservation) error {
	if reservation == nil || reservation.Code == nil {
		return nil
	}
	if err := s.repo.IncrementUsage(ctx, reservation.Code.ID); err != nil {
		return errors.Wrap(errors.CodeInternal, err, "incrementing discount usage")
	}
	return nil
}

// StillValid re-checks a code at payment-confirmation time. A code that
// expired between cart and payment zeroes the discount instead of failing
// the payment, so the caller only needs a boolean.
func (s *Service) StillValid(ctx context.Context, code string, now time.Time) bool {
	normalized := normalizeCode(code)
	if normalized == "" {
		return false
	}
	record, err := s.repo.FindByCode(ctx, normalized)
	if err != nil {
		s.logg.Error(ctx, "re-validating discount code", err)
		return false
	}
	return record != nil && record.Active && record.WithinWindow(now)
}

// Create registers a new discount code (admin operation).
func (s *Service) Create(ctx context.Context, code *models.DiscountCode) error {
	if code == nil {
		return errors.New(errors.CodeValidation, "discount code payload is required")
	}
	code.Code = normalizeCode(code.Code)
	if err := validateRule(code); err != nil {
		return err
	}
	if err := s.repo.Create(ctx, code); err != nil {
		return errors.Wrap(errors.CodeInternal, err, "creating discount code")
	}
	return nil
}

// Update replaces a code's rule and window (admin operation).
func (s *Service) Update(ctx context.Context, code *models.DiscountCode) error {
	if code == nil || code.ID == uuid.Nil {
		return errors.New(errors.CodeValidation, "discount code id is required")
	}
	code.Code = normalizeCode(code.Code)
	if err := validateRule(code); err != nil {
		return err
	}
	if err := s.repo.Update(ctx, code); err != nil {
		return errors.Wrap(errors.CodeInternal, err, "updating discount code")
	}
	return nil
}

// List returns all codes, newest first (admin operation).
func (s *Service) List(ctx context.Context) ([]models.DiscountCode, error) {
	codes, err := s.repo.List(ctx)
	if err != nil {
		return nil, errors.Wrap(errors.CodeInternal, err, "listing discount codes")
	}
	return codes, nil
}

// AdjustUsage applies a manual correction to the usage counter, e.g. after a
// refunded order releases its use (admin operation).
func (s *Service) AdjustUsage(ctx context.Context, id uuid.UUID, delta int) error {
	if delta == 0 {
		return nil
	}
	record, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return errors.Wrap(errors.CodeInternal, err, "looking up discount code")
	}
	if record == nil {
		return errors.New(errors.CodeNotFound, "discount code not found")
	}
	if err := s.repo.AdjustUsage(ctx, id, delta); err != nil {
		return errors.Wrap(errors.CodeInternal, err, "adjusting discount usage")
	}
	return nil
}

func validateRule(code *models.DiscountCode) error {
	if code.Code == "" {
		return errors.New(errors.CodeValidation, "code is required")
	}
	if !code.Type.IsValid() {
		return errors.New(errors.CodeValidation, fmt.Sprintf("unknown discount type %q", code.Type))
	}
	switch code.Type {
	case enums.DiscountTypePercentage:
		if code.Percent <= 0 || code.Percent > 100 {
			return errors.New(errors.CodeValidation, "percent must be between 1 and 100")
		}
	default:
		if code.AmountCents <= 0 {
			return errors.New(errors.CodeValidation, "amount must be positive")
		}
	}
	if code.ExpiresAt.Before(code.StartsAt) {
		return errors.New(errors.CodeValidation, "expiry must not precede start")
	}
	return nil
}

func normalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
