package controllers

import (
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/inkforge/studio-backend/api/responses"
	"github.com/inkforge/studio-backend/api/validators"
	discountsvc "github.com/inkforge/studio-backend/internal/discounts"
	"github.com/inkforge/studio-backend/pkg/db/models"
	"github.com/inkforge/studio-backend/pkg/enums"
	pkgerrors "github.com/inkforge/studio-backend/pkg/errors"
	"github.com/inkforge/studio-backend/pkg/logger"
)

type discountRequest struct {
	Code             string    `json:"code" validate:"required"`
	Type             string    `json:"type" validate:"required"`
	Percent          int       `json:"percent,omitempty"`
	AmountCents      int64     `json:"amount_cents,omitempty"`
	MaxDiscountCents *int64    `json:"max_discount_cents,omitempty"`
	StartsAt         time.Time `json:"starts_at" validate:"required"`
	ExpiresAt        time.Time `json:"expires_at" validate:"required"`
	Active           bool      `json:"active"`
}

type discountResponse struct {
	ID               uuid.UUID `json:"id"`
	Code             string    `json:"code"`
	Type             string    `json:"type"`
	Percent          int       `json:"percent,omitempty"`
	AmountCents      int64     `json:"amount_cents,omitempty"`
	MaxDiscountCents *int64    `json:"max_discount_cents,omitempty"`
	StartsAt         time.Time `json:"starts_at"`
	ExpiresAt        time.Time `json:"expires_at"`
	Active           bool      `json:"active"`
	UsageCount       int       `json:"usage_count"`
}

func newDiscountResponse(code *models.DiscountCode) discountResponse {
	return discountResponse{
		ID:               code.ID,
		Code:             code.Code,
		Type:             string(code.Type),
		Percent:          code.Percent,
		AmountCents:      code.AmountCents,
		MaxDiscountCents: code.MaxDiscountCents,
		StartsAt:         code.StartsAt,
		ExpiresAt:        code.ExpiresAt,
		Active:           code.Active,
		UsageCount:       code.UsageCount,
	}
}

func (p discountRequest) toModel() (*models.DiscountCode, error) {
	kind, err := enums.ParseDiscountType(p.Type)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid discount type")
	}
	return &models.DiscountCode{
		Code:             p.Code,
		Type:             kind,
		Percent:          p.Percent,
		AmountCents:      p.AmountCents,
		MaxDiscountCents: p.MaxDiscountCents,
		StartsAt:         p.StartsAt,
		ExpiresAt:        p.ExpiresAt,
		Active:           p.Active,
	}, nil
}

func AdminDiscountList(svc *discountsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		codes, err := svc.List(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		out := make([]discountResponse, 0, len(codes))
		for i := range codes {
			out = append(out, newDiscountResponse(&codes[i]))
		}
		responses.WriteSuccess(w, out)
	}
}

func AdminDiscountCreate(svc *discountsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var payload discountRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		code, err := payload.toModel()
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if err := svc.Create(r.Context(), code); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, newDiscountResponse(code))
	}
}

func AdminDiscountUpdate(svc *discountsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := validators.ParseUUIDParam(r, "discountId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload discountRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		code, err := payload.toModel()
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		code.ID = id
		if err := svc.Update(r.Context(), code); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newDiscountResponse(code))
	}
}

type usageAdjustRequest struct {
	Delta int `json:"delta" validate:"required"`
}

// AdminDiscountAdjustUsage corrects a usage counter, e.g. after refunding an
// order that consumed the code. The counter never drops below zero.
func AdminDiscountAdjustUsage(svc *discountsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := validators.ParseUUIDParam(r, "discountId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload usageAdjustRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if err := svc.AdjustUsage(r.Context(), id, payload.Delta); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{"adjusted": true})
	}
}
