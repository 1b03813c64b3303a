package controllers

import (
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/inkforge/studio-backend/api/responses"
	"github.com/inkforge/studio-backend/api/validators"
	designordersvc "github.com/inkforge/studio-backend/internal/designorders"
	"github.com/inkforge/studio-backend/pkg/db/models"
	"github.com/inkforge/studio-backend/pkg/enums"
	pkgerrors "github.com/inkforge/studio-backend/pkg/errors"
	"github.com/inkforge/studio-backend/pkg/logger"
	"github.com/inkforge/studio-backend/pkg/types"
)

type designOrderResponse struct {
	ID             uuid.UUID            `json:"id"`
	OrderID        uuid.UUID            `json:"order_id"`
	DesignID       uuid.UUID            `json:"design_id"`
	Status         string               `json:"status"`
	PaymentStatus  string               `json:"payment_status"`
	CustomerName   string               `json:"customer_name"`
	CustomerEmail  string               `json:"customer_email"`
	CustomerPhone  *string              `json:"customer_phone,omitempty"`
	Color          *string              `json:"color,omitempty"`
	SizeQuantities types.SizeQuantities `json:"size_quantities"`
	TotalQuantity  int                  `json:"total_quantity"`
	Pricing        types.PriceBreakdown `json:"pricing"`
	ChallanURL     *string              `json:"challan_url,omitempty"`
	CreatedAt      time.Time            `json:"created_at"`
}

func newDesignOrderResponse(designOrder *models.DesignOrder) designOrderResponse {
	return designOrderResponse{
		ID:             designOrder.ID,
		OrderID:        designOrder.OrderID,
		DesignID:       designOrder.DesignID,
		Status:         string(designOrder.Status),
		PaymentStatus:  string(designOrder.PaymentStatus),
		CustomerName:   designOrder.CustomerName,
		CustomerEmail:  designOrder.CustomerEmail,
		CustomerPhone:  designOrder.CustomerPhone,
		Color:          designOrder.Color,
		SizeQuantities: designOrder.SizeQuantities,
		TotalQuantity:  designOrder.TotalQuantity,
		Pricing:        designOrder.PriceBreakdown,
		ChallanURL:     designOrder.ChallanURL,
		CreatedAt:      designOrder.CreatedAt,
	}
}

// AdminDesignOrderList returns the manufacturing queue, optionally filtered
// by printing status.
func AdminDesignOrderList(repo designordersvc.Repository, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status := enums.PrintingStatusPending
		if raw := strings.TrimSpace(r.URL.Query().Get("status")); raw != "" {
			parsed, err := enums.ParsePrintingStatus(raw)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid printing status"))
				return
			}
			status = parsed
		}

		items, err := repo.ListByStatus(r.Context(), status)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "listing design orders"))
			return
		}

		out := make([]designOrderResponse, 0, len(items))
		for i := range items {
			out = append(out, newDesignOrderResponse(&items[i]))
		}
		responses.WriteSuccess(w, out)
	}
}

type printingStatusRequest struct {
	Status string `json:"status" validate:"required"`
}

// AdminDesignOrderStatus moves a design order through the printing pipeline.
func AdminDesignOrderStatus(svc *designordersvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := validators.ParseUUIDParam(r, "designOrderId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload printingStatusRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		status, err := enums.ParsePrintingStatus(payload.Status)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid printing status"))
			return
		}

		designOrder, err := svc.UpdateStatus(r.Context(), id, status)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newDesignOrderResponse(designOrder))
	}
}
