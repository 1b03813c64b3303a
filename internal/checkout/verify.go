package checkout

import (
	"context"
	"time"

	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/inkforge/studio-backend/internal/payments"
	"github.com/inkforge/studio-backend/pkg/db/models"
	"github.com/inkforge/studio-backend/pkg/enums"
	"github.com/inkforge/studio-backend/pkg/errors"
	"github.com/inkforge/studio-backend/pkg/metrics"
	"github.com/inkforge/studio-backend/pkg/redis"
)

const (
	// verifyGuardTTL covers the window a verification attempt holds the
	// idempotency slot.
	verifyGuardTTL = 2 * time.Minute
	// expressFallbackWindow bounds the loose latest-pending-express lookup.
	expressFallbackWindow = time.Hour
)

// Verify reconciles an order to its paid state from a gateway callback. The
// signature check is terminal per attempt: a mismatch is returned to the
// caller and never retried server-side. Replays of an already-processed
// callback succeed idempotently.
func (s *Service) Verify(ctx context.Context, in VerifyInput) (*VerifyResult, error) {
	if in.GatewayOrderID == "" && in.GatewayPaymentID == "" {
		metrics.PaymentVerifications.WithLabelValues(metrics.ResultError).Inc()
		return nil, errors.New(errors.CodeValidation, "gateway order id or payment id is required")
	}

	guardKey := redis.VerificationKey(in.GatewayOrderID)
	if in.GatewayOrderID == "" {
		guardKey = redis.VerificationKey(in.GatewayPaymentID)
	}
	if s.guard != nil {
		acquired, err := s.guard.AcquireOnce(ctx, guardKey, in.GatewayPaymentID, verifyGuardTTL)
		if err != nil {
			// The guard is best effort; verification proceeds without it.
			s.logg.Error(ctx, "acquiring verification guard", err)
		} else if !acquired {
			return s.replayResult(ctx, in)
		}
	}

	order, err := s.locateOrder(ctx, in)
	if err != nil {
		s.releaseGuard(ctx, guardKey)
		metrics.PaymentVerifications.WithLabelValues(metrics.ResultError).Inc()
		return nil, err
	}
	if order == nil {
		s.releaseGuard(ctx, guardKey)
		metrics.PaymentVerifications.WithLabelValues(metrics.ResultError).Inc()
		return nil, errors.New(errors.CodeNotFound, "no order matches the payment callback")
	}
	ctx = s.logg.WithOrderNumber(ctx, order.OrderNumber)

	if order.PaymentStatus == enums.PaymentStatusPaid {
		metrics.PaymentVerifications.WithLabelValues(metrics.ResultDuplicate).Inc()
		return &VerifyResult{Order: order, AlreadyVerified: true}, nil
	}

	if err := s.gateway.VerifySignature(payments.VerifyInput{
		GatewayOrderID:   in.GatewayOrderID,
		GatewayPaymentID: in.GatewayPaymentID,
		Signature:        in.Signature,
		Demo:             in.Demo,
	}); err != nil {
		// Leave the order pending; the caller must resubmit, we never retry.
		s.releaseGuard(ctx, guardKey)
		metrics.PaymentVerifications.WithLabelValues(metrics.ResultRejected).Inc()
		s.logg.Warn(ctx, "payment signature rejected")
		return nil, err
	}

	result := &VerifyResult{Order: order}

	// The gateway collected the session amount created at checkout. Record
	// that figure now: a discount zero-out below recomputes the breakdown
	// upward and the paid amount must stay auditable.
	order.AmountPaidCents = order.PriceBreakdown.TotalCents

	// A code that expired between cart and payment zeroes the discount
	// rather than blocking an otherwise-valid payment.
	if order.DiscountCode != nil && order.DiscountCents > 0 {
		if !s.discounts.StillValid(ctx, *order.DiscountCode, time.Now()) {
			order.PriceBreakdown = order.PriceBreakdown.WithoutDiscount()
			order.DiscountCents = 0
			result.DiscountZeroed = true
			s.logg.Warn(ctx, "discount expired before payment, zeroed out")
		}
	}

	now := time.Now()
	order.PaymentStatus = enums.PaymentStatusPaid
	order.PaidAt = &now
	if order.Status == enums.OrderStatusPending {
		order.Status = enums.OrderStatusProcessing
	}
	if in.GatewayOrderID != "" {
		gatewayOrderID := in.GatewayOrderID
		order.GatewayOrderID = &gatewayOrderID
	}
	if in.GatewayPaymentID != "" {
		gatewayPaymentID := in.GatewayPaymentID
		order.GatewayPaymentID = &gatewayPaymentID
	}
	if in.Signature != "" {
		signature := in.Signature
		order.GatewaySignature = &signature
	}
	if in.BillingAddress != nil {
		order.BillingAddress = in.BillingAddress
	}
	if in.ShippingAddress != nil {
		order.ShippingAddress = in.ShippingAddress
	}

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		if txErr := s.orders.WithTx(tx).Update(ctx, order); txErr != nil {
			return txErr
		}
		return s.linker.WithTx(tx).Reconcile(ctx, order)
	})
	if err != nil {
		s.releaseGuard(ctx, guardKey)
		metrics.PaymentVerifications.WithLabelValues(metrics.ResultError).Inc()
		return nil, errors.Wrap(errors.CodeInternal, err, "reconciling paid order")
	}

	metrics.PaymentVerifications.WithLabelValues(metrics.ResultVerified).Inc()
	s.logg.Info(ctx, "payment verified, order paid")

	s.runSideEffects(ctx, order, result)
	return result, nil
}

// locateOrder walks the fallback chain: gateway order id, then payment id,
// then, for express checkouts whose callback echoed neither reference, the
// most recent pending express order. The last hop is a deliberately loose
// recovery heuristic and is logged whenever it fires.
func (s *Service) locateOrder(ctx context.Context, in VerifyInput) (*models.Order, error) {
	order, err := s.orders.FindByGatewayOrderID(ctx, in.GatewayOrderID)
	if err != nil {
		return nil, errors.Wrap(errors.CodeInternal, err, "looking up order by gateway order id")
	}
	if order != nil {
		return order, nil
	}

	order, err = s.orders.FindByGatewayPaymentID(ctx, in.GatewayPaymentID)
	if err != nil {
		return nil, errors.Wrap(errors.CodeInternal, err, "looking up order by gateway payment id")
	}
	if order != nil {
		return order, nil
	}

	if in.GatewayOrderID != "" {
		// The callback names an order we never created; do not guess.
		return nil, nil
	}

	order, err = s.orders.FindLatestPendingExpress(ctx, time.Now().Add(-expressFallbackWindow))
	if err != nil {
		return nil, errors.Wrap(errors.CodeInternal, err, "looking up latest pending express order")
	}
	if order != nil {
		s.logg.Warn(s.logg.WithOrderNumber(ctx, order.OrderNumber), "verification matched by loose express fallback")
	}
	return order, nil
}

// releaseGuard frees the idempotency slot after a failed attempt so the
// caller can resubmit immediately instead of waiting out the TTL. Best
// effort, like acquisition.
func (s *Service) releaseGuard(ctx context.Context, key string) {
	if s.guard == nil {
		return
	}
	if err := s.guard.Release(ctx, key); err != nil {
		s.logg.Error(ctx, "releasing verification guard", err)
	}
}

// replayResult answers a callback that lost the idempotency slot: if the
// order is already paid this is a benign replay, otherwise another attempt is
// still in flight.
func (s *Service) replayResult(ctx context.Context, in VerifyInput) (*VerifyResult, error) {
	order, err := s.locateOrder(ctx, in)
	if err == nil && order != nil && order.PaymentStatus == enums.PaymentStatusPaid {
		metrics.PaymentVerifications.WithLabelValues(metrics.ResultDuplicate).Inc()
		return &VerifyResult{Order: order, AlreadyVerified: true}, nil
	}
	metrics.PaymentVerifications.WithLabelValues(metrics.ResultDuplicate).Inc()
	return nil, errors.New(errors.CodeConflict, "a verification for this payment is already in progress")
}

// runSideEffects sends the confirmation email and generates the challan.
// Failures are aggregated, logged once, and reported as false flags; they
// never fail the verification response.
func (s *Service) runSideEffects(ctx context.Context, order *models.Order, result *VerifyResult) {
	var sideErr error

	if s.notifier != nil {
		user, err := s.users.FindByID(ctx, order.UserID)
		if err != nil || user == nil {
			sideErr = multierr.Append(sideErr, errors.New(errors.CodeInternal, "no customer on record for confirmation email"))
		} else if sendErr := s.notifier.SendOrderConfirmation(ctx, user, order); sendErr != nil {
			sideErr = multierr.Append(sideErr, sendErr)
		} else {
			result.EmailSent = true
		}
	}

	if s.challans != nil && order.DesignOrderID != nil {
		designOrder, err := s.linker.FindByOrderID(ctx, order.ID)
		if err != nil || designOrder == nil {
			sideErr = multierr.Append(sideErr, errors.New(errors.CodeInternal, "design order missing for challan"))
		} else if url, genErr := s.challans.Generate(ctx, order, designOrder); genErr != nil {
			sideErr = multierr.Append(sideErr, genErr)
		} else {
			result.ChallanGenerated = true
			result.ChallanURL = url
			order.ChallanURL = &url
			if updErr := s.orders.Update(ctx, order); updErr != nil {
				sideErr = multierr.Append(sideErr, updErr)
			}
			if challanErr := s.linker.SetChallanURL(ctx, *order.DesignOrderID, url); challanErr != nil {
				sideErr = multierr.Append(sideErr, challanErr)
			}
		}
	}

	if sideErr != nil {
		s.logg.Error(ctx, "post-payment side effects incomplete", sideErr)
	}
}
