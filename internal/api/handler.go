// Package api exposes the exporter over HTTP.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/shineum/oft-eml-exporter/internal/compose"
	"github.com/shineum/oft-eml-exporter/internal/service"
)

// IndexText is the readiness banner served on GET /.
const IndexText = "OFT+EML Exporter is running. POST /preview or /export"

type Service interface {
	Preview(req compose.Request) (service.Preview, error)
	Export(ctx context.Context, req service.ExportRequest) ([]service.File, error)
	PublishTemplate(ctx context.Context, req service.TemplateRequest) (service.Template, error)
}

type Handler struct {
	s Service
}

func NewHandler(s Service) *Handler {
	return &Handler{s: s}
}

type ExportResponse struct {
	Files []service.File `json:"files"`
}

type HealthResponse struct {
	Status string `json:"status"`
}

func (h *Handler) Index(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(IndexText))
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	SendJSON(r.Context(), w, http.StatusOK, HealthResponse{Status: "ok"})
}

func (h *Handler) Preview(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req compose.Request

	if !decode(w, r, &req) {
		return
	}

	preview, err := h.s.Preview(req)
	if err != nil {
		sendBuildErr(ctx, w, err)
		return
	}

	SendJSON(ctx, w, http.StatusOK, preview)
}

func (h *Handler) Export(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req service.ExportRequest

	if !decode(w, r, &req) {
		return
	}

	files, err := h.s.Export(ctx, req)
	if err != nil {
		sendBuildErr(ctx, w, err)
		return
	}

	SendJSON(ctx, w, http.StatusOK, ExportResponse{Files: files})
}

func (h *Handler) Templates(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req service.TemplateRequest

	if !decode(w, r, &req) {
		return
	}

	tpl, err := h.s.PublishTemplate(ctx, req)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrTemplatesDisabled):
			SendErr(ctx, w, http.StatusServiceUnavailable, err, "Template publishing is not configured")
		case errors.Is(err, service.ErrTemplateName):
			SendErr(ctx, w, http.StatusBadRequest, err, "Invalid template name")
		case errors.Is(err, service.ErrPublish):
			SendErr(ctx, w, http.StatusBadGateway, err, "Template publishing failed")
		default:
			sendBuildErr(ctx, w, err)
		}
		return
	}

	SendJSON(ctx, w, http.StatusOK, tpl)
}

// decode reads the JSON body into v, answering 413 or 400 on failure.
func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	err := json.NewDecoder(r.Body).Decode(v)
	if err == nil {
		return true
	}

	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		SendErr(r.Context(), w, http.StatusRequestEntityTooLarge, err, "Request body too large")
	} else {
		SendErr(r.Context(), w, http.StatusBadRequest, err, "Invalid JSON")
	}
	return false
}

func sendBuildErr(ctx context.Context, w http.ResponseWriter, err error) {
	var attErr *compose.AttachmentError
	if errors.As(err, &attErr) {
		SendErr(ctx, w, http.StatusBadRequest, err, "Invalid attachment content")
		return
	}

	SendErr(ctx, w, http.StatusInternalServerError, err, "Failed to build message files")
}
