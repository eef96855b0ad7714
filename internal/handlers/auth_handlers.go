package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/sirupsen/logrus"
	"github.com/taobei/auth/internal/apperror"
	"github.com/taobei/auth/internal/middleware"
	"github.com/taobei/auth/internal/models"
	"github.com/taobei/auth/internal/service"
	"github.com/taobei/auth/internal/validate"
)

type AuthHandlers struct {
	authService *service.AuthService
	validator   *validator.Validate
	logger      *logrus.Logger
}

func NewAuthHandlers(authService *service.AuthService, logger *logrus.Logger) *AuthHandlers {
	return &AuthHandlers{
		authService: authService,
		validator:   newValidator(),
		logger:      logger,
	}
}

type SendCodeRequest struct {
	PhoneNumber string `json:"phoneNumber" validate:"required,cnphone"`
}

type LoginRequest struct {
	PhoneNumber      string `json:"phoneNumber" validate:"required,cnphone"`
	LoginType        string `json:"loginType"`
	VerificationCode string `json:"verificationCode" validate:"required_if=LoginType code"`
	Password         string `json:"password" validate:"required_if=LoginType password"`
}

type RegisterRequest struct {
	PhoneNumber      string `json:"phoneNumber" validate:"required,cnphone"`
	VerificationCode string `json:"verificationCode" validate:"required"`
	Password         string `json:"password" validate:"omitempty,strongpassword"`
	AgreeToTerms     *bool  `json:"agreeToTerms"`
}

type MessageResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

type AuthResponse struct {
	Success   bool              `json:"success"`
	Token     string            `json:"token"`
	ExpiresAt time.Time         `json:"expiresAt"`
	User      models.PublicUser `json:"user"`
}

type UserResponse struct {
	Success bool              `json:"success"`
	User    models.PublicUser `json:"user"`
}

type ErrorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

func (h *AuthHandlers) SendVerificationCode(w http.ResponseWriter, r *http.Request) {
	var req SendCodeRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}

	if err := h.authService.SendVerificationCode(r.Context(), req.PhoneNumber); err != nil {
		h.respondWithAppError(w, err)
		return
	}

	h.respondWithJSON(w, http.StatusOK, MessageResponse{
		Success: true,
		Message: "verification code sent",
	})
}

func (h *AuthHandlers) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if !h.decode(w, r, &req) {
		return
	}
	if req.LoginType == "" {
		req.LoginType = service.LoginTypeCode
	}
	if !h.validateRequest(w, &req) {
		return
	}

	session, err := h.authService.Login(r.Context(), service.LoginInput{
		PhoneNumber:      req.PhoneNumber,
		LoginType:        req.LoginType,
		VerificationCode: req.VerificationCode,
		Password:         req.Password,
	})
	if err != nil {
		h.respondWithAppError(w, err)
		return
	}

	h.respondWithSession(w, http.StatusOK, session)
}

func (h *AuthHandlers) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}

	session, err := h.authService.Register(r.Context(), service.RegisterInput{
		PhoneNumber:      req.PhoneNumber,
		VerificationCode: req.VerificationCode,
		Password:         req.Password,
		AgreeToTerms:     req.AgreeToTerms,
	})
	if err != nil {
		h.respondWithAppError(w, err)
		return
	}

	h.respondWithSession(w, http.StatusCreated, session)
}

// Me returns the user behind the bearer token.
func (h *AuthHandlers) Me(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		h.respondWithError(w, http.StatusUnauthorized, "invalid token")
		return
	}

	user, err := h.authService.CurrentUser(r.Context(), claims)
	if err != nil {
		h.respondWithAppError(w, err)
		return
	}

	h.respondWithJSON(w, http.StatusOK, UserResponse{Success: true, User: *user})
}

func (h *AuthHandlers) Health(w http.ResponseWriter, r *http.Request) {
	h.respondWithJSON(w, http.StatusOK, map[string]string{
		"status":    "OK",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

func (h *AuthHandlers) NotFound(w http.ResponseWriter, r *http.Request) {
	h.respondWithError(w, http.StatusNotFound, "route not found")
}

func (h *AuthHandlers) MethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	h.respondWithError(w, http.StatusMethodNotAllowed, "method not allowed")
}

func (h *AuthHandlers) decodeAndValidate(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	return h.decode(w, r, dst) && h.validateRequest(w, dst)
}

// decode accepts an empty body as an empty request so that missing fields
// are reported by validation.
func (h *AuthHandlers) decode(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil && !errors.Is(err, io.EOF) {
		h.respondWithError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}

func (h *AuthHandlers) validateRequest(w http.ResponseWriter, req interface{}) bool {
	if err := h.validator.Struct(req); err != nil {
		h.respondWithAppError(w, validationError(err))
		return false
	}
	return true
}

func (h *AuthHandlers) respondWithSession(w http.ResponseWriter, status int, session *models.AuthSession) {
	h.respondWithJSON(w, status, AuthResponse{
		Success:   true,
		Token:     session.Token,
		ExpiresAt: session.ExpiresAt,
		User:      session.User,
	})
}

func (h *AuthHandlers) respondWithAppError(w http.ResponseWriter, err error) {
	status := statusFor(apperror.KindOf(err))
	if status == http.StatusInternalServerError {
		h.logger.WithError(err).Error("Request failed")
		h.respondWithError(w, status, "internal server error")
		return
	}
	h.respondWithError(w, status, apperror.MessageOf(err, "request failed"))
}

func (h *AuthHandlers) respondWithJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		h.logger.WithError(err).Warn("Failed to write response")
	}
}

func (h *AuthHandlers) respondWithError(w http.ResponseWriter, status int, message string) {
	h.respondWithJSON(w, status, ErrorResponse{
		Success: false,
		Error:   message,
	})
}

func statusFor(kind apperror.Kind) int {
	switch kind {
	case apperror.KindRateLimited:
		return http.StatusTooManyRequests
	case apperror.KindNotFound:
		return http.StatusNotFound
	case apperror.KindConflict:
		return http.StatusConflict
	case apperror.KindInternal:
		return http.StatusInternalServerError
	default:
		return http.StatusBadRequest
	}
}

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	_ = v.RegisterValidation("cnphone", func(fl validator.FieldLevel) bool {
		return validate.PhoneNumber(fl.Field().String())
	})
	_ = v.RegisterValidation("strongpassword", func(fl validator.FieldLevel) bool {
		return validate.Password(fl.Field().String())
	})
	return v
}

// validationError picks the most specific failure: a malformed phone first,
// then missing fields, then a weak password.
func validationError(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return apperror.New(apperror.KindInvalidInput, "invalid request")
	}

	for _, fe := range verrs {
		if fe.Tag() == "cnphone" {
			return validate.ErrInvalidPhone
		}
	}
	for _, fe := range verrs {
		if strings.HasPrefix(fe.Tag(), "required") {
			return apperror.New(apperror.KindInvalidInput, fe.Field()+" is required")
		}
	}
	for _, fe := range verrs {
		if fe.Tag() == "strongpassword" {
			return validate.ErrWeakPassword
		}
	}
	return apperror.New(apperror.KindInvalidInput, verrs[0].Field()+" is invalid")
}
