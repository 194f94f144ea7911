package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"sync"

	"go.uber.org/zap"
)

const (
	maxBodyBytes = 1 << 20
	// maxPendingResets bounds in-flight background reset deliveries.
	maxPendingResets = 64
)

// Handler exposes the auth operations as JSON endpoints.
type Handler struct {
	svc    *Service
	logger *zap.SugaredLogger

	resets  chan struct{}
	pending sync.WaitGroup
}

func NewHandler(svc *Service, logger *zap.SugaredLogger) *Handler {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Handler{svc: svc, logger: logger, resets: make(chan struct{}, maxPendingResets)}
}

// Drain waits for background reset deliveries to finish or ctx to end.
func (h *Handler) Drain(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		h.pending.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Response is the envelope for every auth endpoint.
type Response struct {
	Success    bool   `json:"success"`
	Error      Kind   `json:"error,omitempty"`
	Message    string `json:"message,omitempty"`
	Identifier string `json:"identifier,omitempty"`
}

// CredentialsRequest is accepted by signup/register and login. Clients may
// send the identifier as identifier, username or email.
type CredentialsRequest struct {
	Identifier  string `json:"identifier"`
	Username    string `json:"username"`
	Email       string `json:"email"`
	Password    string `json:"password"`
	DisplayName string `json:"display_name"`
}

func (r CredentialsRequest) identifier() string {
	return firstNonBlank(r.Identifier, r.Username, r.Email)
}

type ForgotPasswordRequest struct {
	Email      string `json:"email"`
	Identifier string `json:"identifier"`
	Username   string `json:"username"`
}

type ResetPasswordRequest struct {
	Token       string `json:"token"`
	NewPassword string `json:"newPassword"`
}

func (h *Handler) Signup(w http.ResponseWriter, r *http.Request) {
	var req CredentialsRequest
	if !h.decode(w, r, &req) {
		return
	}
	in := SignupInput{Identifier: req.identifier(), Password: req.Password, Email: req.Email, DisplayName: req.DisplayName}
	if _, err := h.svc.Signup(r.Context(), in); err != nil {
		h.writeError(w, err, "signup")
		return
	}
	h.writeJSON(w, http.StatusCreated, Response{Success: true, Message: "account created"})
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req CredentialsRequest
	if !h.decode(w, r, &req) {
		return
	}
	a, err := h.svc.Login(r.Context(), req.identifier(), req.Password)
	if err != nil {
		h.writeError(w, err, "login")
		return
	}
	h.writeJSON(w, http.StatusOK, Response{Success: true, Identifier: a.Identifier})
}

// ForgotPassword answers success for any non-empty identifier so callers
// cannot learn which accounts exist. The lookup and delivery run after the
// response is written, so response time does not depend on the account.
func (h *Handler) ForgotPassword(w http.ResponseWriter, r *http.Request) {
	var req ForgotPasswordRequest
	if !h.decode(w, r, &req) {
		return
	}
	identifier := firstNonBlank(req.Identifier, req.Username, req.Email)
	if identifier == "" {
		h.writeError(w, validationError("forgot password", "identifier is required"), "forgot password")
		return
	}

	ctx := context.WithoutCancel(r.Context())
	select {
	case h.resets <- struct{}{}:
		h.pending.Add(1)
		go func() {
			defer h.pending.Done()
			defer func() { <-h.resets }()
			h.forgotPassword(ctx, identifier)
		}()
	default:
		h.logger.Warnw("reset dispatch saturated, delivering inline", "pending", maxPendingResets)
		h.forgotPassword(ctx, identifier)
	}
	h.writeJSON(w, http.StatusOK, Response{Success: true})
}

func (h *Handler) forgotPassword(ctx context.Context, identifier string) {
	if err := h.svc.ForgotPassword(ctx, identifier); err != nil {
		h.logger.Errorw("forgot password failed", "err", err)
	}
}

func (h *Handler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	var req ResetPasswordRequest
	if !h.decode(w, r, &req) {
		return
	}
	if err := h.svc.ResetPassword(r.Context(), req.Token, req.NewPassword); err != nil {
		h.writeError(w, err, "reset password")
		return
	}
	h.writeJSON(w, http.StatusOK, Response{Success: true, Message: "password updated"})
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		h.logger.Debugw("invalid payload", "path", r.URL.Path, "err", err)
		h.writeJSON(w, http.StatusBadRequest, Response{Error: KindValidation, Message: "invalid payload"})
		return false
	}
	return true
}

func (h *Handler) writeError(w http.ResponseWriter, err error, op string) {
	kind := KindOf(err)
	status := StatusFor(kind)
	if kind == KindDependencyFailure {
		h.logger.Errorw(op+" failed", "err", err)
	} else {
		h.logger.Debugw(op+" rejected", "kind", kind)
	}
	h.writeJSON(w, status, Response{Error: kind, Message: messageFor(kind)})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// StatusFor maps a Kind to its HTTP status.
func StatusFor(k Kind) int {
	switch k {
	case KindNone:
		return http.StatusOK
	case KindValidation, KindInvalidOrExpiredToken:
		return http.StatusBadRequest
	case KindAlreadyExists:
		return http.StatusConflict
	case KindInvalidCredentials:
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}

func messageFor(k Kind) string {
	switch k {
	case KindValidation:
		return "missing or invalid fields"
	case KindAlreadyExists:
		return "account already exists"
	case KindInvalidCredentials:
		return "invalid credentials"
	case KindInvalidOrExpiredToken:
		return "invalid or expired token"
	default:
		return "internal error"
	}
}

func firstNonBlank(vals ...string) string {
	for _, v := range vals {
		if s := strings.TrimSpace(v); s != "" {
			return s
		}
	}
	return ""
}
