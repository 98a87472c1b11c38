package shortlink

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/nicevod/service/internal/logging"
	"github.com/nicevod/service/internal/metrics"
	"github.com/nicevod/service/internal/response"
)

// CreateRequest is the body of POST /api/shorten.
type CreateRequest struct {
	Code string `json:"code" example:"launch"`
	URL  string `json:"url" example:"https://nicevod.com/events/launch"`
}

// CreateResponse echoes the stored link.
type CreateResponse struct {
	OK   bool   `json:"ok" example:"true"`
	Code string `json:"code" example:"launch"`
	URL  string `json:"url" example:"https://nicevod.com/events/launch"`
}

// Handler holds HTTP handlers for the shortener.
type Handler struct {
	svc *Service
}

// NewHandler creates a new shortener Handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// Redirect godoc
//
//	@Summary	Follow a short link
//	@Tags		links
//	@Param		code	path	string	true	"Short code"
//	@Success	302
//	@Failure	404	{object}	response.ErrorBody
//	@Failure	500	{object}	response.ErrorBody
//	@Router		/s/{code} [get]
func (h *Handler) Redirect(w http.ResponseWriter, r *http.Request) {
	target, err := h.svc.Resolve(r.Context(), chi.URLParam(r, "code"))
	if errors.Is(err, ErrNotFound) {
		metrics.RecordShortlinkLookup(false)
		response.NotFound(w, "not found")
		return
	}
	if err != nil {
		logging.FromContext(r.Context()).Error("resolve link", zap.Error(err))
		response.InternalError(w)
		return
	}

	metrics.RecordShortlinkLookup(true)
	http.Redirect(w, r, target, http.StatusFound)
}

// Create godoc
//
//	@Summary		Create or replace a short link
//	@Tags			links
//	@Accept			json
//	@Produce		json
//	@Security		AdminAuth
//	@Param			body	body		CreateRequest	true	"Link"
//	@Success		200		{object}	CreateResponse
//	@Failure		400		{object}	response.ErrorBody
//	@Failure		401		{object}	response.ErrorBody
//	@Failure		500		{object}	response.ErrorBody
//	@Router			/api/shorten [post]
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "invalid JSON body")
		return
	}
	req.Code = strings.TrimSpace(req.Code)
	req.URL = strings.TrimSpace(req.URL)
	if req.Code == "" || req.URL == "" {
		response.BadRequest(w, "code and url required")
		return
	}

	err := h.svc.Create(r.Context(), req.Code, req.URL)
	switch {
	case errors.Is(err, ErrInvalidCode):
		response.BadRequest(w, "code must be 1-64 letters, digits, '-' or '_'")
		return
	case errors.Is(err, ErrInvalidURL):
		response.BadRequest(w, "url must be an absolute http or https URL")
		return
	case err != nil:
		logging.FromContext(r.Context()).Error("create link", zap.Error(err))
		response.InternalError(w)
		return
	}

	logging.FromContext(r.Context()).Info("link stored", zap.String("code", req.Code))
	response.OK(w, CreateResponse{OK: true, Code: req.Code, URL: req.URL})
}
