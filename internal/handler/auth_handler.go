package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"

	"go-auth-service/internal/middleware"
	"go-auth-service/internal/model"
	"go-auth-service/internal/service"
	"go-auth-service/pkg/apierror"
)

const maxBodyBytes = 1 << 20

type AuthHandler struct {
	service   *service.AuthService
	audit     *service.AuditService
	validator *validator.Validate
}

// NewAuthHandler builds the auth endpoints. audit may be nil.
func NewAuthHandler(service *service.AuthService, audit *service.AuditService) *AuthHandler {
	v := validator.New()
	_ = v.RegisterValidation("maxbytes", maxBytes)
	return &AuthHandler{service: service, audit: audit, validator: v}
}

// maxBytes bounds a string by its encoded length. The built-in max counts runes.
func maxBytes(fl validator.FieldLevel) bool {
	limit, err := strconv.Atoi(fl.Param())
	if err != nil {
		return false
	}
	return len(fl.Field().String()) <= limit
}

func (h *AuthHandler) Signup(w http.ResponseWriter, r *http.Request) {
	var payload model.SignupRequest
	if !h.decode(w, r, &payload) {
		return
	}

	email := strings.TrimSpace(payload.Email)
	result, err := h.service.Signup(r.Context(), service.SignupInput{
		Email:    email,
		Password: payload.Password,
		Name:     payload.Name,
	})
	h.audit.Log(r.Context(), model.AuditActionSignup, actorFromRequest(r), email, err)
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusAccepted, result, nil)
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var payload model.LoginRequest
	if !h.decode(w, r, &payload) {
		return
	}

	email := strings.TrimSpace(payload.Email)
	tokens, err := h.service.Authenticate(r.Context(), email, payload.Password)
	actor := actorFromRequest(r)
	actor.UserID = tokens.User.ID
	h.audit.Log(r.Context(), model.AuditActionLogin, actor, email, err)
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, tokens, nil)
}

// Refresh expects the refresh token as the bearer credential.
func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	token, ok := middleware.BearerToken(r)
	if !ok {
		writeError(w, apierror.Unauthorized("missing or invalid authorization header"))
		return
	}

	tokens, err := h.service.Refresh(r.Context(), token)
	actor := actorFromRequest(r)
	actor.UserID = tokens.User.ID
	h.audit.Log(r.Context(), model.AuditActionRefresh, actor, tokens.User.Email, err)
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, tokens, nil)
}

func (h *AuthHandler) VerifyEmail(w http.ResponseWriter, r *http.Request) {
	var payload model.VerifyEmailRequest
	if !h.decode(w, r, &payload) {
		return
	}

	err := h.service.VerifyEmail(r.Context(), payload.UserID, payload.Token)
	actor := actorFromRequest(r)
	actor.UserID = payload.UserID
	h.audit.Log(r.Context(), model.AuditActionVerifyEmail, actor, "", err)
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, map[string]any{"verified": true}, nil)
}

func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		writeError(w, model.ErrUnauthorized)
		return
	}

	writeSuccess(w, http.StatusOK, model.MeResponse{UserID: claims.UserID}, nil)
}

func (h *AuthHandler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	defer r.Body.Close()

	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dst); err != nil {
		writeError(w, apierror.BadRequest("invalid JSON body"))
		return false
	}

	if err := h.validator.Struct(dst); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
			fields := make([]string, 0, len(fieldErrs))
			for _, fe := range fieldErrs {
				fields = append(fields, strings.ToLower(fe.Field())+": "+fe.Tag())
			}
			writeError(w, apierror.Validation(fields))
			return false
		}
		writeError(w, apierror.BadRequest("invalid request"))
		return false
	}

	return true
}
