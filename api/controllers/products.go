package controllers

import (
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/inkforge/studio-backend/api/responses"
	"github.com/inkforge/studio-backend/api/validators"
	"github.com/inkforge/studio-backend/internal/products"
	"github.com/inkforge/studio-backend/pkg/db/models"
	pkgerrors "github.com/inkforge/studio-backend/pkg/errors"
	"github.com/inkforge/studio-backend/pkg/logger"
)

type productResponse struct {
	ID             uuid.UUID `json:"id"`
	Name           string    `json:"name"`
	Description    *string   `json:"description,omitempty"`
	UnitPriceCents int64     `json:"unit_price_cents"`
	Colors         []string  `json:"colors,omitempty"`
	Sizes          []string  `json:"sizes,omitempty"`
	ImageURL       *string   `json:"image_url,omitempty"`
	Active         bool      `json:"active"`
	CreatedAt      time.Time `json:"created_at"`
}

func newProductResponse(product *models.Product) productResponse {
	return productResponse{
		ID:             product.ID,
		Name:           product.Name,
		Description:    product.Description,
		UnitPriceCents: product.UnitPriceCents,
		Colors:         product.Colors,
		Sizes:          product.Sizes,
		ImageURL:       product.ImageURL,
		Active:         product.Active,
		CreatedAt:      product.CreatedAt,
	}
}

// ProductList returns the active catalog.
func ProductList(repo products.Repository, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		items, err := repo.ListActive(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "listing products"))
			return
		}

		out := make([]productResponse, 0, len(items))
		for i := range items {
			out = append(out, newProductResponse(&items[i]))
		}
		responses.WriteSuccess(w, out)
	}
}

func ProductDetail(repo products.Repository, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := validators.ParseUUIDParam(r, "productId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		product, err := repo.FindByID(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "looking up product"))
			return
		}
		if product == nil || !product.Active {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeNotFound, "product not found"))
			return
		}
		responses.WriteSuccess(w, newProductResponse(product))
	}
}

type productRequest struct {
	Name           string   `json:"name" validate:"required"`
	Description    *string  `json:"description,omitempty"`
	UnitPriceCents int64    `json:"unit_price_cents" validate:"required,min=1"`
	Colors         []string `json:"colors,omitempty"`
	Sizes          []string `json:"sizes,omitempty"`
	ImageURL       *string  `json:"image_url,omitempty"`
	Active         bool     `json:"active"`
}

// AdminProductCreate adds a catalog product.
func AdminProductCreate(repo products.Repository, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var payload productRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		product := &models.Product{
			Name:           payload.Name,
			Description:    payload.Description,
			UnitPriceCents: payload.UnitPriceCents,
			Colors:         payload.Colors,
			Sizes:          payload.Sizes,
			ImageURL:       payload.ImageURL,
			Active:         payload.Active,
		}
		if err := repo.Create(r.Context(), product); err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "creating product"))
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, newProductResponse(product))
	}
}

// AdminProductUpdate replaces the mutable fields of a catalog product.
func AdminProductUpdate(repo products.Repository, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := validators.ParseUUIDParam(r, "productId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload productRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		product, err := repo.FindByID(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "looking up product"))
			return
		}
		if product == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeNotFound, "product not found"))
			return
		}

		product.Name = payload.Name
		product.Description = payload.Description
		product.UnitPriceCents = payload.UnitPriceCents
		product.Colors = payload.Colors
		product.Sizes = payload.Sizes
		product.ImageURL = payload.ImageURL
		product.Active = payload.Active
		if err := repo.Update(r.Context(), product); err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "updating product"))
			return
		}
		responses.WriteSuccess(w, newProductResponse(product))
	}
}
