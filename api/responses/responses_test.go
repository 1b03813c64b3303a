package responses

import (
	"context"
	"encoding/json"
	"io"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"

	pkgerrors "github.com/inkforge/studio-backend/pkg/errors"
	"github.com/inkforge/studio-backend/pkg/logger"
)

func TestWriteSuccessEnvelope(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteSuccess(rec, map[string]string{"hello": "world"})

	if rec.Code != 200 {
		t.Fatalf("status = %d", rec.Code)
	}

	var envelope struct {
		Success bool              `json:"success"`
		Data    map[string]string `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !envelope.Success || envelope.Data["hello"] != "world" {
		t.Fatalf("envelope = %+v", envelope)
	}
}

func TestWriteErrorUsesCodeMetadata(t *testing.T) {
	logg := logger.New(logger.Options{Level: zerolog.Disabled, Output: io.Discard})

	rec := httptest.NewRecorder()
	WriteError(context.Background(), logg, rec, pkgerrors.New(pkgerrors.CodeNotFound, "order not found"))

	if rec.Code != 404 {
		t.Fatalf("status = %d, want 404", rec.Code)
	}

	var envelope struct {
		Success bool   `json:"success"`
		Message string `json:"message"`
		Error   struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if envelope.Success {
		t.Fatal("success must be false")
	}
	if envelope.Error.Code != "NOT_FOUND" || envelope.Error.Message != "order not found" {
		t.Fatalf("error = %+v", envelope.Error)
	}
}

func TestWriteErrorHidesInternalDetail(t *testing.T) {
	logg := logger.New(logger.Options{Level: zerolog.Disabled, Output: io.Discard})

	rec := httptest.NewRecorder()
	WriteError(context.Background(), logg, rec, pkgerrors.New(pkgerrors.CodeInternal, "pg connection refused on 10.0.0.3"))

	if rec.Code != 500 {
		t.Fatalf("status = %d, want 500", rec.Code)
	}

	var envelope struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if envelope.Error.Message != "internal server error" {
		t.Fatalf("internal detail leaked: %q", envelope.Error.Message)
	}
}
