package upload

import (
	"encoding/json"
	"errors"
	"mime"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/nicevod/service/internal/admission"
	"github.com/nicevod/service/internal/logging"
	"github.com/nicevod/service/internal/metrics"
	"github.com/nicevod/service/internal/middleware"
	"github.com/nicevod/service/internal/response"
)

const (
	defaultContentType = "application/octet-stream"
	// multipartMemory is how much of a form is held in memory before
	// spilling to temp files.
	multipartMemory = 8 << 20
)

// UploadResponse is returned for an accepted upload.
type UploadResponse struct {
	OK        bool   `json:"ok" example:"true"`
	Key       string `json:"key" example:"3f0c9a8e-5a7b-4c1e-9d2f-8b6a1e4c7d90.png"`
	PublicURL string `json:"publicUrl" example:"https://cdn.nicevod.com/3f0c9a8e-5a7b-4c1e-9d2f-8b6a1e4c7d90.png"`
	UserID    string `json:"userId" example:"8d1f5c2e-0b7a-4f3e-a6c9-2e4d8b1a7f05"`
}

// PingResponse is the body of GET /upload.
type PingResponse struct {
	OK  bool   `json:"ok" example:"true"`
	Via string `json:"via" example:"upload"`
}

// DeleteRequest is the body of POST /delete.
type DeleteRequest struct {
	Key string `json:"key" example:"3f0c9a8e-5a7b-4c1e-9d2f-8b6a1e4c7d90.png"`
}

// UsageResponse is the body of GET /usage.
type UsageResponse struct {
	UserID    string `json:"userId"`
	BytesUsed int64  `json:"bytesUsed"`
	Limit     int64  `json:"limit"`
}

// HandlerOptions configures request parsing.
type HandlerOptions struct {
	// MaxRequestBytes bounds the whole multipart body. Zero disables the limit.
	// The bound applies while the form is read, before admission, so an
	// oversized body is answered 413 even when its user id or type would
	// otherwise be refused with 403 or 415.
	MaxRequestBytes int64
	// AuthEnforced is false when no identity verifier is configured; the
	// declared user id then stands in for the identity.
	AuthEnforced bool
}

// Handler holds HTTP handlers for upload endpoints.
type Handler struct {
	svc  *Service
	opts HandlerOptions
}

// NewHandler creates a new upload Handler.
func NewHandler(svc *Service, opts HandlerOptions) *Handler {
	return &Handler{svc: svc, opts: opts}
}

// Upload godoc
//
//	@Summary		Upload a file
//	@Description	Stores an image or audio file and returns its public URL. The user_id field must match the token subject.
//	@Tags			uploads
//	@Accept			multipart/form-data
//	@Produce		json
//	@Security		BearerAuth
//	@Param			file	formData	file	true	"File to upload"
//	@Param			user_id	formData	string	true	"Uploader user id"
//	@Success		200		{object}	UploadResponse
//	@Failure		400		{object}	response.ErrorBody
//	@Failure		401		{object}	response.ErrorBody
//	@Failure		403		{object}	response.ErrorBody
//	@Failure		413		{object}	response.ErrorBody
//	@Failure		415		{object}	response.ErrorBody
//	@Failure		500		{object}	response.ErrorBody
//	@Router			/upload [post]
func (h *Handler) Upload(w http.ResponseWriter, r *http.Request) {
	if h.opts.MaxRequestBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, h.opts.MaxRequestBytes)
	}

	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			h.fail(w, r, admission.Reject(admission.KindTooLarge, "request body too large"))
			return
		}
		h.fail(w, r, admission.Reject(admission.KindBadRequest, "invalid multipart form"))
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	req := Request{DeclaredUserID: strings.TrimSpace(r.PostFormValue("user_id"))}

	file, header, err := r.FormFile("file")
	switch {
	case errors.Is(err, http.ErrMissingFile):
	case err != nil:
		h.fail(w, r, admission.Reject(admission.KindBadRequest, "invalid file part"))
		return
	default:
		defer file.Close()
		req.File = &admission.FileMeta{
			Name:     header.Filename,
			MIMEType: mediaType(header.Header.Get("Content-Type")),
			Size:     header.Size,
		}
		req.Body = file
	}

	identity := middleware.IdentityFrom(r.Context())
	if identity == nil && !h.opts.AuthEnforced {
		identity = &admission.Identity{UserID: req.DeclaredUserID}
	}

	res, err := h.svc.Upload(r.Context(), identity, req)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	response.OK(w, UploadResponse{OK: true, Key: res.Key, PublicURL: res.PublicURL, UserID: res.UserID})
}

// Ping godoc
//
//	@Summary	Upload endpoint liveness
//	@Tags		uploads
//	@Produce	json
//	@Success	200	{object}	PingResponse
//	@Router		/upload [get]
func (h *Handler) Ping(w http.ResponseWriter, _ *http.Request) {
	response.OK(w, PingResponse{OK: true, Via: "upload"})
}

// Delete godoc
//
//	@Summary		Delete an uploaded file
//	@Description	Removes an object by key. With user-scoped key strategies only the owner may delete.
//	@Tags			uploads
//	@Accept			json
//	@Produce		json
//	@Security		BearerAuth
//	@Param			body	body		DeleteRequest	true	"Object key"
//	@Success		200		{object}	response.OKBody
//	@Failure		400		{object}	response.ErrorBody
//	@Failure		401		{object}	response.ErrorBody
//	@Failure		403		{object}	response.ErrorBody
//	@Failure		500		{object}	response.ErrorBody
//	@Router			/delete [post]
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	var req DeleteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.fail(w, r, admission.Reject(admission.KindBadRequest, "invalid JSON body"))
		return
	}

	if err := h.svc.Delete(r.Context(), middleware.IdentityFrom(r.Context()), req.Key); err != nil {
		h.fail(w, r, err)
		return
	}

	response.Success(w)
}

// Usage godoc
//
//	@Summary	Current storage usage
//	@Tags		uploads
//	@Produce	json
//	@Security	BearerAuth
//	@Param		user_id	query		string	false	"User id (only when auth is disabled)"
//	@Success	200		{object}	UsageResponse
//	@Failure	401		{object}	response.ErrorBody
//	@Failure	500		{object}	response.ErrorBody
//	@Router		/usage [get]
func (h *Handler) Usage(w http.ResponseWriter, r *http.Request) {
	identity := middleware.IdentityFrom(r.Context())
	if identity == nil && !h.opts.AuthEnforced {
		identity = &admission.Identity{UserID: r.URL.Query().Get("user_id")}
	}

	u, err := h.svc.Usage(r.Context(), identity)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	response.OK(w, UsageResponse{UserID: u.UserID, BytesUsed: u.BytesUsed, Limit: u.Limit})
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	var rej *admission.Rejection
	if !errors.As(err, &rej) {
		logging.FromContext(r.Context()).Error("unexpected upload error", zap.Error(err))
		response.InternalError(w)
		return
	}

	metrics.RecordRejection(rej.Kind.String())
	status := rej.Kind.Status()
	if status >= http.StatusInternalServerError {
		logging.FromContext(r.Context()).Error("upload failed",
			zap.String("kind", rej.Kind.String()),
			zap.Error(rej.Err),
		)
	}
	response.Error(w, status, rej.Message)
}

// mediaType strips parameters from a part's Content-Type and lowercases it.
// A part without one is treated as opaque bytes.
func mediaType(header string) string {
	header = strings.TrimSpace(header)
	if header == "" {
		return defaultContentType
	}
	mt, _, err := mime.ParseMediaType(header)
	if err != nil {
		return strings.ToLower(header)
	}
	return mt
}
