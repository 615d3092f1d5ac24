package summarylog

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"github.com/rpattn/wastelog/internal/auth"
	"github.com/rpattn/wastelog/internal/domain"
	"github.com/rpattn/wastelog/internal/repository"
	"github.com/rpattn/wastelog/internal/uploader"
)

const basePath = "/v1/organisations/{organisationId}/registrations/{registrationId}/summary-logs"

const maxBodyBytes = 1 << 20

// Handler exposes the summary log service over HTTP.
type Handler struct {
	service *Service
	logger  *zap.Logger
	mux     *http.ServeMux
}

// NewHTTPHandler routes the summary log endpoints.
func NewHTTPHandler(service *Service, logger *zap.Logger) http.Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	h := &Handler{service: service, logger: logger.Named("http"), mux: http.NewServeMux()}
	h.mux.HandleFunc("POST "+basePath, h.handleCreate)
	h.mux.HandleFunc("GET "+basePath+"/{summaryLogId}", h.handleStatus)
	h.mux.HandleFunc("POST "+basePath+"/{summaryLogId}/upload-completed", h.handleUploadCompleted)
	h.mux.HandleFunc("POST "+basePath+"/{summaryLogId}/submit", h.handleSubmit)
	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mux.ServeHTTP(w, r)
}

type uploadCompletedPayload struct {
	Form struct {
		SummaryLogUpload *uploader.FormFile `json:"summaryLogUpload"`
	} `json:"form"`
}

// statusResponse is the client view of a summary log.
type statusResponse struct {
	ID                           string                      `json:"id"`
	Status                       domain.Status               `json:"status"`
	Version                      int                         `json:"version"`
	File                         *domain.File                `json:"file,omitempty"`
	Meta                         map[string]domain.MetaValue `json:"meta,omitempty"`
	ValidatedAgainstSummaryLogID string                      `json:"validatedAgainstSummaryLogId,omitempty"`
	Validation                   *domain.Validation          `json:"validation,omitempty"`
	FailureReason                string                      `json:"failureReason,omitempty"`
}

func newStatusResponse(v *domain.VersionedSummaryLog) statusResponse {
	log := v.SummaryLog
	return statusResponse{
		ID:                           log.ID,
		Status:                       log.Status,
		Version:                      v.Version,
		File:                         log.File,
		Meta:                         log.Meta,
		ValidatedAgainstSummaryLogID: log.ValidatedAgainstSummaryLogID,
		Validation:                   log.Validation,
		FailureReason:                log.FailureReason,
	}
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	created, err := h.service.Create(r.Context(), r.PathValue("organisationId"), r.PathValue("registrationId"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	w.Header().Set("Location", location(created.SummaryLog))
	writeJSON(w, http.StatusCreated, newStatusResponse(created))
}

func (h *Handler) handleStatus(w http.ResponseWriter, r *http.Request) {
	current, err := h.service.GetStatus(
		r.Context(),
		r.PathValue("organisationId"),
		r.PathValue("registrationId"),
		r.PathValue("summaryLogId"),
		r.URL.Query().Get("uploadId"),
	)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newStatusResponse(current))
}

func (h *Handler) handleUploadCompleted(w http.ResponseWriter, r *http.Request) {
	var payload uploadCompletedPayload
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := decoder.Decode(&payload); err != nil {
		h.writeError(w, r, fmt.Errorf("%w: invalid JSON payload: %v", ErrInvalidRequest, err))
		return
	}
	if payload.Form.SummaryLogUpload == nil {
		h.writeError(w, r, fmt.Errorf("%w: form.summaryLogUpload is required", ErrInvalidRequest))
		return
	}

	status, err := h.service.UploadCompleted(
		r.Context(),
		r.PathValue("organisationId"),
		r.PathValue("registrationId"),
		r.PathValue("summaryLogId"),
		*payload.Form.SummaryLogUpload,
	)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]any{"status": status})
}

func (h *Handler) handleSubmit(w http.ResponseWriter, r *http.Request) {
	submitted, err := h.service.Submit(
		r.Context(),
		r.PathValue("organisationId"),
		r.PathValue("registrationId"),
		r.PathValue("summaryLogId"),
	)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	w.Header().Set("Location", location(submitted.SummaryLog))
	writeJSON(w, http.StatusOK, map[string]any{"status": submitted.SummaryLog.Status})
}

func location(log domain.SummaryLog) string {
	return fmt.Sprintf("/v1/organisations/%s/registrations/%s/summary-logs/%s", log.OrganisationID, log.RegistrationID, log.ID)
}

// statusFor maps service errors onto HTTP status codes.
func statusFor(err error) int {
	var transitionErr *domain.TransitionError
	switch {
	case errors.Is(err, ErrInvalidRequest):
		return http.StatusUnprocessableEntity
	case errors.Is(err, auth.ErrOutOfScope):
		return http.StatusForbidden
	case errors.Is(err, ErrNotFound), errors.Is(err, repository.ErrNotFound):
		return http.StatusNotFound
	case errors.As(err, &transitionErr),
		errors.Is(err, ErrStale),
		errors.Is(err, ErrSubmissionInProgress),
		errors.Is(err, repository.ErrSubmissionInProgress),
		errors.Is(err, repository.ErrVersionConflict),
		errors.Is(err, repository.ErrAlreadyExists):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	message := err.Error()
	if status == http.StatusInternalServerError {
		h.logger.Error("request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
		message = fmt.Sprintf("failure on %s", r.URL.Path)
	}
	writeJSON(w, status, map[string]string{"error": message})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(payload)
}
