package handler

import (
	"encoding/json"
	"net/http"

	"github.com/linkfolio-api/internal/application/auth"
	"github.com/linkfolio-api/internal/domain"
	"github.com/linkfolio-api/internal/pkg/validate"
)

// AuthHandler handles signup, login and OTP verification endpoints.
type AuthHandler struct {
	svc auth.Service
}

func NewAuthHandler(svc auth.Service) *AuthHandler { return &AuthHandler{svc: svc} }

func (h *AuthHandler) Signup(w http.ResponseWriter, r *http.Request) {
	var req domain.SignupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if msgs := validate.StructMessages(&req); msgs != nil {
		writeJSON(w, http.StatusBadRequest, ValidationEnvelope{Errors: msgs})
		return
	}
	result, err := h.svc.Signup(r.Context(), req)
	if err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, PendingEnvelope{
		Status:           "pending",
		Message:          "OTP sent",
		UserID:           result.UserID,
		VerificationType: result.VerificationType,
		OTPToken:         result.OTPToken,
	})
}

func (h *AuthHandler) VerifyOTP(w http.ResponseWriter, r *http.Request) {
	var req domain.VerifyOTPRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := validate.Struct(&req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	result, err := h.svc.VerifyOTP(r.Context(), req)
	if err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, AuthEnvelope{
		Message:     "verification successful",
		Token:       result.Token,
		DeviceToken: result.DeviceToken,
		User:        result.User,
	})
}

func (h *AuthHandler) ResendOTP(w http.ResponseWriter, r *http.Request) {
	var req domain.ResendOTPRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := validate.Struct(&req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	result, err := h.svc.ResendOTP(r.Context(), req)
	if err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, PendingEnvelope{
		Message:       "OTP resent",
		UserID:        result.UserID,
		ContactMethod: result.ContactMethod,
		OTPToken:      result.OTPToken,
	})
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req domain.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := validate.Struct(&req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	result, err := h.svc.Login(r.Context(), req)
	if err != nil {
		httpError(w, err)
		return
	}
	if result.OTPRequired {
		writeJSON(w, http.StatusOK, PendingEnvelope{
			Status:        "otp_required",
			Message:       "OTP sent for verification",
			UserID:        result.User.UserID,
			ContactMethod: result.ContactMethod,
			OTPToken:      result.OTPToken,
		})
		return
	}
	writeJSON(w, http.StatusOK, AuthEnvelope{
		Message: "login successful",
		Token:   result.Token,
		User:    result.User,
	})
}

func (h *AuthHandler) GoogleLogin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		IDToken string `json:"id_token"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.IDToken == "" {
		writeError(w, http.StatusBadRequest, "id_token required")
		return
	}
	result, err := h.svc.GoogleLogin(r.Context(), req.IDToken)
	if err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, AuthEnvelope{
		Message: "login successful",
		Token:   result.Token,
		User:    result.User,
	})
}
