package checkout

import (
	"context"
	stdErrors "errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/inkforge/studio-backend/internal/designorders"
	"github.com/inkforge/studio-backend/internal/discounts"
	"github.com/inkforge/studio-backend/internal/identity"
	"github.com/inkforge/studio-backend/internal/notifications"
	"github.com/inkforge/studio-backend/internal/orders"
	"github.com/inkforge/studio-backend/internal/payments"
	"github.com/inkforge/studio-backend/pkg/db/models"
	"github.com/inkforge/studio-backend/pkg/enums"
	"github.com/inkforge/studio-backend/pkg/errors"
	"github.com/inkforge/studio-backend/pkg/logger"
	"github.com/inkforge/studio-backend/pkg/metrics"
	"github.com/inkforge/studio-backend/pkg/types"
)

// guestSessionTTL bounds how long an express guest can claim the account
// created for them.
const guestSessionTTL = 7 * 24 * time.Hour

// ChallanGenerator produces the manufacturing document for a paid design
// order. Satisfied by internal/challan.
type ChallanGenerator interface {
	Generate(ctx context.Context, order *models.Order, designOrder *models.DesignOrder) (string, error)
}

// VerificationGuard is the best-effort idempotency lock around payment
// verification. Satisfied by pkg/redis; a nil guard disables guarding.
type VerificationGuard interface {
	AcquireOnce(ctx context.Context, key, value string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, key string) error
}

// TxRunner runs fn inside one storage transaction. Satisfied by pkg/db.Client.
type TxRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// ServiceParams groups dependencies for the checkout orchestrator.
type ServiceParams struct {
	Tx        TxRunner
	Resolver  *identity.Service
	Assembler *orders.Assembler
	Orders    orders.Repository
	Users     identity.Repository
	Gateway   *payments.Adapter
	Discounts *discounts.Service
	Linker    *designorders.Service
	Notifier  *notifications.Service
	Challans  ChallanGenerator
	Guard     VerificationGuard
	Logger    *logger.Logger
}

// Service is the top-level checkout workflow: it owns the one transactional
// boundary (order + discount increment + design order link) and the payment
// verification callback.
type Service struct {
	tx        TxRunner
	resolver  *identity.Service
	assembler *orders.Assembler
	orders    orders.Repository
	users     identity.Repository
	gateway   *payments.Adapter
	discounts *discounts.Service
	linker    *designorders.Service
	notifier  *notifications.Service
	challans  ChallanGenerator
	guard     VerificationGuard
	logg      *logger.Logger
}

// NewService builds the checkout orchestrator. Notifier, Challans, and Guard
// are optional: a missing side-effect dependency degrades to a false flag in
// responses, never a failed checkout.
func NewService(params ServiceParams) (*Service, error) {
	if params.Tx == nil {
		return nil, stdErrors.New("tx runner is required")
	}
	if params.Resolver == nil {
		return nil, stdErrors.New("identity resolver is required")
	}
	if params.Assembler == nil {
		return nil, stdErrors.New("order assembler is required")
	}
	if params.Orders == nil {
		return nil, stdErrors.New("orders repo is required")
	}
	if params.Users == nil {
		return nil, stdErrors.New("users repo is required")
	}
	if params.Gateway == nil {
		return nil, stdErrors.New("payment gateway is required")
	}
	if params.Discounts == nil {
		return nil, stdErrors.New("discounts service is required")
	}
	if params.Linker == nil {
		return nil, stdErrors.New("design order service is required")
	}
	if params.Logger == nil {
		return nil, stdErrors.New("logger is required")
	}

	return &Service{
		tx:        params.Tx,
		resolver:  params.Resolver,
		assembler: params.Assembler,
		orders:    params.Orders,
		users:     params.Users,
		gateway:   params.Gateway,
		discounts: params.Discounts,
		linker:    params.Linker,
		notifier:  params.Notifier,
		challans:  params.Challans,
		guard:     params.Guard,
		logg:      params.Logger,
	}, nil
}

// Checkout runs the standard flow: resolve identity, assemble the order in
// one transaction, then create the gateway session and persist its id.
func (s *Service) Checkout(ctx context.Context, in CheckoutInput) (*CheckoutResult, error) {
	result, err := s.checkout(ctx, in)
	if err != nil {
		metrics.CheckoutFailures.Inc()
		return nil, err
	}
	metrics.OrdersCreated.Inc()
	return result, nil
}

func (s *Service) checkout(ctx context.Context, in CheckoutInput) (*CheckoutResult, error) {
	if in.UserID == nil && in.Guest == nil {
		return nil, errors.New(errors.CodeValidation, "either a user id or guest contact info is required")
	}

	var (
		resolution *identity.Resolution
		assembled  *orders.AssembleResult
	)
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		var txErr error
		resolution, txErr = s.resolver.WithTx(tx).Resolve(ctx, in.UserID, in.Guest)
		if txErr != nil {
			return txErr
		}

		input := orders.AssembleInput{
			User:            resolution.User,
			Items:           in.Items,
			Design:          in.Design,
			DiscountCode:    in.DiscountCode,
			ShippingMethod:  in.ShippingMethod,
			ShippingAddress: in.ShippingAddress,
			BillingAddress:  in.BillingAddress,
			IsExpress:       in.Express,
			IsGuestOrder:    in.Guest != nil,
		}
		if in.Express && resolution.UserType != identity.UserTypeRegular {
			input.GuestSession = &types.GuestSession{
				Token:           uuid.NewString(),
				Expiry:          time.Now().Add(guestSessionTTL),
				CanClaimAccount: resolution.UserType == identity.UserTypeNew,
			}
		}

		assembled, txErr = s.assembler.WithTx(tx).Assemble(ctx, input)
		return txErr
	})
	if err != nil {
		return nil, err
	}

	order := assembled.Order
	ctx = s.logg.WithOrderNumber(ctx, order.OrderNumber)

	session, err := s.gateway.CreateSession(ctx, order)
	if err != nil {
		// The order is committed and stays payable; the client can retry
		// session creation against the same order.
		s.logg.Error(ctx, "creating payment session", err)
		return nil, err
	}

	gatewayOrderID := session.GatewayOrderID
	order.GatewayOrderID = &gatewayOrderID
	if err := s.orders.Update(ctx, order); err != nil {
		return nil, errors.Wrap(errors.CodeInternal, err, "persisting gateway session id")
	}

	result := &CheckoutResult{
		Order:                         order,
		Session:                       session,
		UserType:                      resolution.UserType,
		UserAccountMessage:            resolution.Message,
		IsGuestOrder:                  order.IsGuestOrder,
		IsExistingUserExpressCheckout: in.Express && resolution.UserType == identity.UserTypeRegular,
		DesignOrderLinked:             assembled.DesignOrderLinked,
	}
	if order.GuestSessionToken != nil && order.GuestSessionExpiry != nil {
		result.GuestSession = &types.GuestSession{
			Token:           *order.GuestSessionToken,
			Expiry:          *order.GuestSessionExpiry,
			CanClaimAccount: resolution.UserType == identity.UserTypeNew,
		}
	}

	s.logg.Info(ctx, "checkout completed, awaiting payment")
	return result, nil
}

// Refund issues a gateway refund and moves the payment dimension to its
// terminal refunded state. Amount must not exceed the captured total.
func (s *Service) Refund(ctx context.Context, orderID uuid.UUID, amountCents int64, reason string) (*models.Order, error) {
	order, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		return nil, errors.Wrap(errors.CodeInternal, err, "looking up order")
	}
	if order == nil {
		return nil, errors.New(errors.CodeNotFound, "order not found")
	}
	if order.PaymentStatus != enums.PaymentStatusPaid {
		return nil, errors.New(errors.CodeValidation, "only paid orders can be refunded")
	}
	if amountCents <= 0 || amountCents > order.PriceBreakdown.TotalCents {
		return nil, errors.New(errors.CodeValidation, "refund amount must be positive and within the order total")
	}
	if order.GatewayPaymentID == nil {
		return nil, errors.New(errors.CodeConflict, "order has no captured gateway payment")
	}

	if _, err := s.gateway.Refund(ctx, *order.GatewayPaymentID, amountCents, reason); err != nil {
		return nil, err
	}

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		order.PaymentStatus = enums.PaymentStatusRefunded
		if txErr := s.orders.WithTx(tx).Update(ctx, order); txErr != nil {
			return txErr
		}
		return s.linker.WithTx(tx).Reconcile(ctx, order)
	})
	if err != nil {
		return nil, errors.Wrap(errors.CodeInternal, err, "recording refund")
	}

	s.logg.Info(s.logg.WithOrderNumber(ctx, order.OrderNumber), "order refunded")
	return order, nil
}
