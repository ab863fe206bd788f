package handler

import (
	"encoding/json"
	"mime/multipart"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/scholarship-portal/internal/application/attachment"
	"github.com/scholarship-portal/internal/application/broadcast"
	"github.com/scholarship-portal/internal/application/scholarship"
	"github.com/scholarship-portal/internal/domain"
	"github.com/scholarship-portal/internal/transport/http/middleware"
)

const maxSubmissionMemory = 32 << 20

// ScholarshipHandler handles scholarship application endpoints.
type ScholarshipHandler struct {
	svc    scholarship.Service
	stream broadcast.Service
	log    *zap.Logger
}

func NewScholarshipHandler(svc scholarship.Service, stream broadcast.Service, log *zap.Logger) *ScholarshipHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return &ScholarshipHandler{svc: svc, stream: stream, log: log}
}

// Submit accepts multipart/form-data with a JSON "payload" part and one or more
// "attachments" files.
func (h *ScholarshipHandler) Submit(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	if err := r.ParseMultipartForm(maxSubmissionMemory); err != nil {
		writeError(w, http.StatusBadRequest, "expected multipart form")
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	var req domain.SubmitRequest
	if raw := r.FormValue("payload"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid payload")
			return
		}
	}

	headers := r.MultipartForm.File["attachments"]
	files := make([]attachment.File, 0, len(headers))
	var opened []multipart.File
	defer func() {
		for _, f := range opened {
			_ = f.Close()
		}
	}()
	for _, fh := range headers {
		f, err := fh.Open()
		if err != nil {
			writeError(w, http.StatusBadRequest, "unreadable attachment")
			return
		}
		opened = append(opened, f)
		files = append(files, attachment.File{
			Filename:    fh.Filename,
			ContentType: fh.Header.Get("Content-Type"),
			Body:        f,
		})
	}

	view, err := h.svc.Submit(r.Context(), scholarship.SubmitInput{Email: claims.Email, Request: req, Attachments: files})
	if err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, view)
}

func (h *ScholarshipHandler) List(w http.ResponseWriter, r *http.Request) {
	views, err := h.svc.List(r.Context())
	if err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, views)
}

// Stream pushes every application with its derived status on connect and after every change.
func (h *ScholarshipHandler) Stream(w http.ResponseWriter, r *http.Request) {
	if err := h.stream.StreamScholarships(r.Context(), newSSESink(w)); err != nil {
		h.log.Debug("scholarship stream ended", zap.Error(err))
	}
}

func (h *ScholarshipHandler) Statistics(w http.ResponseWriter, r *http.Request) {
	stats, err := h.svc.Statistics(r.Context())
	if err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (h *ScholarshipHandler) Mine(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	view, err := h.svc.LatestForApplicant(r.Context(), claims.Email)
	if err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (h *ScholarshipHandler) Verify(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	var req domain.VerifyRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	view, err := h.svc.Verify(r.Context(), chi.URLParam(r, "id"), claims.Email, req)
	if err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (h *ScholarshipHandler) Revoke(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	view, err := h.svc.Revoke(r.Context(), chi.URLParam(r, "id"), claims.Email)
	if err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (h *ScholarshipHandler) Attachments(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	links, err := h.svc.AttachmentLinks(r.Context(), chi.URLParam(r, "id"), claims.Email, claims.Role)
	if err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, links)
}
