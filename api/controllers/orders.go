package controllers

import (
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/inkforge/studio-backend/api/middleware"
	"github.com/inkforge/studio-backend/api/responses"
	"github.com/inkforge/studio-backend/api/validators"
	ordersvc "github.com/inkforge/studio-backend/internal/orders"
	"github.com/inkforge/studio-backend/pkg/db/models"
	pkgerrors "github.com/inkforge/studio-backend/pkg/errors"
	"github.com/inkforge/studio-backend/pkg/logger"
	"github.com/inkforge/studio-backend/pkg/types"
)

type orderItemResponse struct {
	ID             uuid.UUID  `json:"id"`
	Kind           string     `json:"kind"`
	ProductID      *uuid.UUID `json:"product_id,omitempty"`
	DesignID       *uuid.UUID `json:"design_id,omitempty"`
	Name           string     `json:"name"`
	Color          *string    `json:"color,omitempty"`
	Size           *string    `json:"size,omitempty"`
	Qty            int        `json:"qty"`
	UnitPriceCents int64      `json:"unit_price_cents"`
	TotalCents     int64      `json:"total_cents"`
}

type orderResponse struct {
	ID            uuid.UUID            `json:"id"`
	OrderNumber   string               `json:"order_number"`
	Status        string               `json:"status"`
	PaymentStatus string               `json:"payment_status"`
	Currency      string               `json:"currency"`
	Pricing       types.PriceBreakdown `json:"pricing"`
	DiscountCode  *string              `json:"discount_code,omitempty"`
	Items         []orderItemResponse  `json:"items"`

	ShippingMethod  string         `json:"shipping_method"`
	ShippingAddress *types.Address `json:"shipping_address,omitempty"`
	BillingAddress  *types.Address `json:"billing_address,omitempty"`

	IsExpressCheckout bool `json:"is_express_checkout"`
	IsGuestOrder      bool `json:"is_guest_order"`

	DesignOrderID *uuid.UUID `json:"design_order_id,omitempty"`
	ChallanURL    *string    `json:"challan_url,omitempty"`

	AmountPaidCents int64      `json:"amount_paid_cents,omitempty"`
	PaidAt          *time.Time `json:"paid_at,omitempty"`
	CancelledAt     *time.Time `json:"cancelled_at,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
}

func newOrderResponse(order *models.Order) orderResponse {
	items := make([]orderItemResponse, 0, len(order.Items))
	for _, item := range order.Items {
		items = append(items, orderItemResponse{
			ID:             item.ID,
			Kind:           string(item.Kind),
			ProductID:      item.ProductID,
			DesignID:       item.DesignID,
			Name:           item.Name,
			Color:          item.Color,
			Size:           item.Size,
			Qty:            item.Qty,
			UnitPriceCents: item.UnitPriceCents,
			TotalCents:     item.TotalCents,
		})
	}

	return orderResponse{
		ID:                order.ID,
		OrderNumber:       order.OrderNumber,
		Status:            string(order.Status),
		PaymentStatus:     string(order.PaymentStatus),
		Currency:          string(order.Currency),
		Pricing:           order.PriceBreakdown,
		DiscountCode:      order.DiscountCode,
		Items:             items,
		ShippingMethod:    string(order.ShippingMethod),
		ShippingAddress:   order.ShippingAddress,
		BillingAddress:    order.BillingAddress,
		IsExpressCheckout: order.IsExpressCheckout,
		IsGuestOrder:      order.IsGuestOrder,
		DesignOrderID:     order.DesignOrderID,
		ChallanURL:        order.ChallanURL,
		AmountPaidCents:   order.AmountPaidCents,
		PaidAt:            order.PaidAt,
		CancelledAt:       order.CancelledAt,
		CreatedAt:         order.CreatedAt,
	}
}

// OrderList returns the authenticated user's orders.
func OrderList(svc *ordersvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := middleware.UserUUIDFromContext(r.Context())
		if userID == uuid.Nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials"))
			return
		}

		orders, err := svc.ListForUser(r.Context(), userID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		out := make([]orderResponse, 0, len(orders))
		for i := range orders {
			out = append(out, newOrderResponse(&orders[i]))
		}
		responses.WriteSuccess(w, out)
	}
}

func OrderDetail(svc *ordersvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := middleware.UserUUIDFromContext(r.Context())
		id, err := validators.ParseUUIDParam(r, "orderId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		isAdmin := middleware.RoleFromContext(r.Context()) == "admin"
		order, err := svc.Get(r.Context(), id, userID, isAdmin)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newOrderResponse(order))
	}
}

// OrderCancel soft-cancels the caller's own order.
func OrderCancel(svc *ordersvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := middleware.UserUUIDFromContext(r.Context())
		id, err := validators.ParseUUIDParam(r, "orderId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		order, err := svc.Cancel(r.Context(), id, userID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newOrderResponse(order))
	}
}

// GuestOrderLookup resolves an express-checkout order from its guest session
// token. No authentication: the token is the credential.
func GuestOrderLookup(svc *ordersvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token := r.URL.Query().Get("token")
		order, err := svc.FindByGuestSessionToken(r.Context(), token)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newOrderResponse(order))
	}
}
