package controllers

import (
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/inkforge/studio-backend/api/middleware"
	"github.com/inkforge/studio-backend/api/responses"
	"github.com/inkforge/studio-backend/api/validators"
	checkoutsvc "github.com/inkforge/studio-backend/internal/checkout"
	"github.com/inkforge/studio-backend/internal/identity"
	ordersvc "github.com/inkforge/studio-backend/internal/orders"
	"github.com/inkforge/studio-backend/pkg/enums"
	pkgerrors "github.com/inkforge/studio-backend/pkg/errors"
	"github.com/inkforge/studio-backend/pkg/logger"
	"github.com/inkforge/studio-backend/pkg/types"
)

type checkoutItemRequest struct {
	ProductID uuid.UUID `json:"product_id" validate:"required"`
	Color     string    `json:"color,omitempty"`
	Size      string    `json:"size,omitempty"`
	Quantity  int       `json:"quantity" validate:"required,min=1"`
}

type designSelectionRequest struct {
	DesignID       uuid.UUID      `json:"design_id" validate:"required"`
	SizeQuantities map[string]int `json:"size_quantities" validate:"required"`
	Color          string         `json:"color,omitempty"`
}

type orderPayload struct {
	Items           []checkoutItemRequest   `json:"items,omitempty" validate:"omitempty,min=1,dive"`
	Design          *designSelectionRequest `json:"design,omitempty"`
	DiscountCode    string                  `json:"discount_code,omitempty"`
	ShippingMethod  string                  `json:"shipping_method" validate:"required"`
	ShippingAddress types.Address           `json:"shipping_address"`
	BillingAddress  *types.Address          `json:"billing_address,omitempty"`
}

type guestContactRequest struct {
	Name  string  `json:"name" validate:"required"`
	Email string  `json:"email" validate:"required,email"`
	Phone *string `json:"phone,omitempty"`
}

func (c guestContactRequest) toGuestInfo() identity.GuestInfo {
	info := identity.GuestInfo{Name: c.Name, Email: c.Email}
	if c.Phone != nil {
		info.Phone = *c.Phone
	}
	return info
}

type expressCheckoutRequest struct {
	orderPayload
	Customer *guestContactRequest `json:"customer,omitempty"`
}

func (p orderPayload) toCheckoutInput() (checkoutsvc.CheckoutInput, error) {
	method, err := enums.ParseShippingMethod(p.ShippingMethod)
	if err != nil {
		return checkoutsvc.CheckoutInput{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid shipping method")
	}

	in := checkoutsvc.CheckoutInput{
		DiscountCode:    p.DiscountCode,
		ShippingMethod:  method,
		ShippingAddress: p.ShippingAddress,
		BillingAddress:  p.BillingAddress,
	}
	for _, item := range p.Items {
		in.Items = append(in.Items, ordersvc.ItemInput{
			ProductID: item.ProductID,
			Color:     item.Color,
			Size:      item.Size,
			Quantity:  item.Quantity,
		})
	}
	if p.Design != nil {
		in.Design = &ordersvc.DesignInput{
			DesignID:       p.Design.DesignID,
			SizeQuantities: types.SizeQuantities(p.Design.SizeQuantities),
			Color:          p.Design.Color,
		}
	}
	return in, nil
}

type guestSessionResponse struct {
	Token           string    `json:"token"`
	ExpiresAt       time.Time `json:"expires_at"`
	CanClaimAccount bool      `json:"can_claim_account"`
}

type checkoutResponse struct {
	Order   orderResponse            `json:"order"`
	Payment *checkoutPaymentResponse `json:"payment,omitempty"`

	UserType           string `json:"user_type"`
	UserAccountMessage string `json:"user_account_message,omitempty"`

	IsGuestOrder                  bool                  `json:"is_guest_order"`
	IsExistingUserExpressCheckout bool                  `json:"is_existing_user_express_checkout"`
	GuestSession                  *guestSessionResponse `json:"guest_session,omitempty"`
	DesignOrderLinked             bool                  `json:"design_order_linked"`
}

type checkoutPaymentResponse struct {
	SessionID      string `json:"session_id"`
	AmountCents    int64  `json:"amount"`
	Currency       string `json:"currency"`
	PublishableKey string `json:"key"`
}

func newCheckoutResponse(result *checkoutsvc.CheckoutResult) checkoutResponse {
	out := checkoutResponse{
		Order:                         newOrderResponse(result.Order),
		UserType:                      string(result.UserType),
		UserAccountMessage:            result.UserAccountMessage,
		IsGuestOrder:                  result.IsGuestOrder,
		IsExistingUserExpressCheckout: result.IsExistingUserExpressCheckout,
		DesignOrderLinked:             result.DesignOrderLinked,
	}
	if result.Session != nil {
		out.Payment = &checkoutPaymentResponse{
			SessionID:      result.Session.GatewayOrderID,
			AmountCents:    result.Session.AmountCents,
			Currency:       result.Session.Currency,
			PublishableKey: result.Session.PublishableKey,
		}
	}
	if result.GuestSession != nil {
		out.GuestSession = &guestSessionResponse{
			Token:           result.GuestSession.Token,
			ExpiresAt:       result.GuestSession.Expiry,
			CanClaimAccount: result.GuestSession.CanClaimAccount,
		}
	}
	return out
}

// Checkout runs the standard authenticated checkout.
func Checkout(svc *checkoutsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := middleware.UserUUIDFromContext(r.Context())
		if userID == uuid.Nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials"))
			return
		}

		var payload orderPayload
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		in, err := payload.toCheckoutInput()
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		in.UserID = &userID

		result, err := svc.Checkout(r.Context(), in)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, newCheckoutResponse(result))
	}
}

// ExpressCheckout runs the guest-capable express flow. An authenticated
// caller gets the order on their account; anonymous callers must supply
// customer contact info and get a guest account plus session token.
func ExpressCheckout(svc *checkoutsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var payload expressCheckoutRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		in, err := payload.toCheckoutInput()
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		in.Express = true

		if userID := middleware.UserUUIDFromContext(r.Context()); userID != uuid.Nil {
			in.UserID = &userID
		} else {
			if payload.Customer == nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "customer contact info is required for guest checkout"))
				return
			}
			guest := payload.Customer.toGuestInfo()
			in.Guest = &guest
		}

		result, err := svc.Checkout(r.Context(), in)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, newCheckoutResponse(result))
	}
}

type verifyPaymentRequest struct {
	GatewayOrderID   string         `json:"razorpay_order_id,omitempty"`
	GatewayPaymentID string         `json:"razorpay_payment_id,omitempty"`
	Signature        string         `json:"razorpay_signature,omitempty"`
	Demo             bool           `json:"demo,omitempty"`
	BillingAddress   *types.Address `json:"billing_address,omitempty"`
	ShippingAddress  *types.Address `json:"shipping_address,omitempty"`
}

type verifyPaymentResponse struct {
	Order            orderResponse `json:"order"`
	AlreadyVerified  bool          `json:"already_verified"`
	DiscountZeroed   bool          `json:"discount_zeroed"`
	EmailSent        bool          `json:"email_sent"`
	ChallanGenerated bool          `json:"challan_generated"`
	ChallanURL       string        `json:"challan_url,omitempty"`
}

// VerifyPayment reconciles an order from the gateway's payment callback.
func VerifyPayment(svc *checkoutsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var payload verifyPaymentRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.Verify(r.Context(), checkoutsvc.VerifyInput{
			GatewayOrderID:   payload.GatewayOrderID,
			GatewayPaymentID: payload.GatewayPaymentID,
			Signature:        payload.Signature,
			Demo:             payload.Demo,
			BillingAddress:   payload.BillingAddress,
			ShippingAddress:  payload.ShippingAddress,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, verifyPaymentResponse{
			Order:            newOrderResponse(result.Order),
			AlreadyVerified:  result.AlreadyVerified,
			DiscountZeroed:   result.DiscountZeroed,
			EmailSent:        result.EmailSent,
			ChallanGenerated: result.ChallanGenerated,
			ChallanURL:       result.ChallanURL,
		})
	}
}
