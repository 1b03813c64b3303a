package controllers

import (
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/inkforge/studio-backend/api/middleware"
	"github.com/inkforge/studio-backend/api/responses"
	"github.com/inkforge/studio-backend/api/validators"
	"github.com/inkforge/studio-backend/internal/designs"
	"github.com/inkforge/studio-backend/pkg/db/models"
	"github.com/inkforge/studio-backend/pkg/enums"
	pkgerrors "github.com/inkforge/studio-backend/pkg/errors"
	"github.com/inkforge/studio-backend/pkg/logger"
)

type designElementRequest struct {
	Kind    string `json:"kind" validate:"required"`
	Content string `json:"content,omitempty"`
	URL     string `json:"url,omitempty"`
}

type designRequest struct {
	Title        string                 `json:"title" validate:"required"`
	Elements     []designElementRequest `json:"elements" validate:"required,min=1,dive"`
	HasBackPrint bool                   `json:"has_back_print"`
	PreviewURL   *string                `json:"preview_url,omitempty"`
}

type designResponse struct {
	ID           uuid.UUID              `json:"id"`
	Title        string                 `json:"title"`
	Elements     []models.DesignElement `json:"elements"`
	HasBackPrint bool                   `json:"has_back_print"`
	PreviewURL   *string                `json:"preview_url,omitempty"`
	CreatedAt    time.Time              `json:"created_at"`
}

func newDesignResponse(design *models.Design) designResponse {
	return designResponse{
		ID:           design.ID,
		Title:        design.Title,
		Elements:     design.Elements,
		HasBackPrint: design.HasBackPrint,
		PreviewURL:   design.PreviewURL,
		CreatedAt:    design.CreatedAt,
	}
}

// DesignCreate saves a design for the authenticated user.
func DesignCreate(repo designs.Repository, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := middleware.UserUUIDFromContext(r.Context())
		if userID == uuid.Nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials"))
			return
		}

		var payload designRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		elements := make([]models.DesignElement, 0, len(payload.Elements))
		for _, el := range payload.Elements {
			kind, err := enums.ParseDesignElementKind(el.Kind)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid element kind"))
				return
			}
			if kind == enums.DesignElementKindText && el.Content == "" {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "text elements need content"))
				return
			}
			if kind == enums.DesignElementKindImage && el.URL == "" {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "image elements need a url"))
				return
			}
			elements = append(elements, models.DesignElement{Kind: kind, Content: el.Content, URL: el.URL})
		}

		design := &models.Design{
			UserID:       userID,
			Title:        payload.Title,
			Elements:     elements,
			HasBackPrint: payload.HasBackPrint,
			PreviewURL:   payload.PreviewURL,
		}
		if err := repo.Create(r.Context(), design); err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "saving design"))
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, newDesignResponse(design))
	}
}

// DesignList returns the authenticated user's saved designs.
func DesignList(repo designs.Repository, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := middleware.UserUUIDFromContext(r.Context())
		if userID == uuid.Nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials"))
			return
		}

		items, err := repo.ListByUser(r.Context(), userID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "listing designs"))
			return
		}

		out := make([]designResponse, 0, len(items))
		for i := range items {
			out = append(out, newDesignResponse(&items[i]))
		}
		responses.WriteSuccess(w, out)
	}
}

func DesignDetail(repo designs.Repository, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := middleware.UserUUIDFromContext(r.Context())
		id, err := validators.ParseUUIDParam(r, "designId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		design, err := repo.FindByID(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "looking up design"))
			return
		}
		if design == nil || design.UserID != userID {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeNotFound, "design not found"))
			return
		}
		responses.WriteSuccess(w, newDesignResponse(design))
	}
}
