package httptransport

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"ekyc/internal/verification"
	derrors "ekyc/pkg/domain-errors"
	"ekyc/pkg/requestcontext"
)

// VerificationService is what the transport needs from the orchestrator.
type VerificationService interface {
	Initiate(ctx context.Context, in verification.InitiateInput) (verification.InitiateResult, error)
	SubmitOtp(ctx context.Context, referenceNumber, otp string) (verification.SubmitResult, error)
	GetStatus(ctx context.Context, referenceNumber string) (verification.StatusResult, error)
}

// Handler is the thin JSON layer over the verification service. It decodes,
// delegates, and encodes; every business decision lives in the service.
type Handler struct {
	service VerificationService
	logger  *slog.Logger
}

func NewHandler(service VerificationService, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts the verification routes.
func (h *Handler) Register(r chi.Router) {
	r.Post("/ekyc/initiate", h.handleInitiate)
	r.Post("/ekyc/verify-otp", h.handleVerifyOTP)
	r.Get("/ekyc/status/{referenceNumber}", h.handleStatus)
}

type initiateRequest struct {
	IdentifierType  string `json:"identifierType"`
	IdentifierValue string `json:"identifierValue"`
	IdentityConsent bool   `json:"identityConsent"`
	ContactConsent  bool   `json:"contactConsent"`
	SessionID       string `json:"sessionId"`
}

type initiateResponse struct {
	ReferenceNumber string `json:"referenceNumber"`
	Status          string `json:"status"`
	FailureReason   string `json:"failureReason,omitempty"`
}

func (h *Handler) handleInitiate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req initiateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, derrors.New(derrors.CodeValidation, "invalid request body"))
		return
	}

	res, err := h.service.Initiate(ctx, verification.InitiateInput{
		IdentifierType:  verification.IdentifierType(req.IdentifierType),
		IdentifierValue: req.IdentifierValue,
		IdentityConsent: req.IdentityConsent,
		ContactConsent:  req.ContactConsent,
		SessionID:       req.SessionID,
	})
	if err != nil {
		h.logWarn(ctx, "initiate rejected", err)
		writeError(w, err)
		return
	}

	status := http.StatusCreated
	if res.Status == verification.StatusFailed {
		status = http.StatusUnprocessableEntity
	}
	writeJSON(w, status, initiateResponse{
		ReferenceNumber: res.ReferenceNumber,
		Status:          string(res.Status),
		FailureReason:   res.FailureReason,
	})
}

type verifyOTPRequest struct {
	ReferenceNumber string `json:"referenceNumber"`
	OTP             string `json:"otp"`
}

type verifyOTPResponse struct {
	Status            string `json:"status"`
	AttemptsRemaining *int   `json:"attemptsRemaining,omitempty"`
	FailureReason     string `json:"failureReason,omitempty"`
}

func (h *Handler) handleVerifyOTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req verifyOTPRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, derrors.New(derrors.CodeValidation, "invalid request body"))
		return
	}

	res, err := h.service.SubmitOtp(ctx, req.ReferenceNumber, req.OTP)
	if err != nil {
		h.logWarn(ctx, "otp submission rejected", err)
		writeError(w, err)
		return
	}

	body := verifyOTPResponse{
		Status:        string(res.Status),
		FailureReason: res.FailureReason,
	}
	if res.Status == verification.StatusInProgress {
		body.AttemptsRemaining = &res.AttemptsRemaining
	}
	writeJSON(w, http.StatusOK, body)
}

type statusResponse struct {
	ReferenceNumber   string `json:"referenceNumber"`
	Status            string `json:"status"`
	Message           string `json:"message"`
	FailureReason     string `json:"failureReason,omitempty"`
	AttemptsRemaining *int   `json:"attemptsRemaining,omitempty"`
	CreatedAt         string `json:"createdAt"`
	UpdatedAt         string `json:"updatedAt"`
}

func (h *Handler) handleStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	referenceNumber := chi.URLParam(r, "referenceNumber")

	res, err := h.service.GetStatus(ctx, referenceNumber)
	if err != nil {
		h.logWarn(ctx, "status lookup rejected", err)
		writeError(w, err)
		return
	}

	body := statusResponse{
		ReferenceNumber: res.ReferenceNumber,
		Status:          string(res.Status),
		Message:         res.Message,
		FailureReason:   res.FailureReason,
		CreatedAt:       res.CreatedAt,
		UpdatedAt:       res.UpdatedAt,
	}
	if res.HasAttemptsRemaining {
		body.AttemptsRemaining = &res.AttemptsRemaining
	}
	writeJSON(w, http.StatusOK, body)
}

func (h *Handler) logWarn(ctx context.Context, msg string, err error) {
	h.logger.WarnContext(ctx, msg,
		"request_id", requestcontext.RequestID(ctx),
		"code", string(derrors.CodeOf(err)),
		"error", err.Error(),
	)
}
