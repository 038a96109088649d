package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/citizone/authserver/internal/services"
	"github.com/go-chi/chi/v5"
	"github.com/golang-jwt/jwt/v5"
)

const (
	defaultTokenTTL      = time.Hour
	defaultRefreshWindow = 7 * 24 * time.Hour
)

// AuthHandler exposes the authentication endpoints and mints session grants.
type AuthHandler struct {
	authService   *services.AuthService
	secret        []byte
	tokenTTL      time.Duration
	refreshWindow time.Duration
}

// NewAuthHandler constructs an AuthHandler with the provided dependencies.
func NewAuthHandler(authService *services.AuthService, jwtSecret string, tokenTTL, refreshWindow time.Duration) *AuthHandler {
	if tokenTTL <= 0 {
		tokenTTL = defaultTokenTTL
	}
	if refreshWindow <= 0 {
		refreshWindow = defaultRefreshWindow
	}
	return &AuthHandler{
		authService:   authService,
		secret:        []byte(jwtSecret),
		tokenTTL:      tokenTTL,
		refreshWindow: refreshWindow,
	}
}

// AuthRouter registers auth routes on the given router.
func AuthRouter(r chi.Router, handler *AuthHandler) {
	r.Post("/register/email", handler.RegisterByEmail)
	r.Post("/login/email", handler.LoginByEmail)
	r.Post("/mobile/send-otp", handler.SendOTP)
	r.Post("/mobile/verify-otp", handler.VerifyOTP)
	r.Post("/refresh-token", handler.RefreshToken)
}

// RequireAuth enforces bearer authentication and injects the subject into
// the request context.
func (h *AuthHandler) RequireAuth(next http.Handler) http.Handler {
	return requireAuth(h.secret)(next)
}

func requireAuth(secret []byte) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tokenString, err := bearerToken(r)
			if err != nil {
				writeFailure(w, http.StatusUnauthorized, "unauthorized")
				return
			}

			subject, err := parseTokenSubject(tokenString, secret)
			if err != nil {
				writeFailure(w, http.StatusUnauthorized, "unauthorized")
				return
			}

			ctx := context.WithValue(r.Context(), contextSubjectKey, subject)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

type RegisterEmailRequest struct {
	FirstName       string `json:"firstName"`
	LastName        string `json:"lastName"`
	Age             int    `json:"age"`
	Gender          string `json:"gender"`
	Email           string `json:"email"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirmPassword"`
}

type RegisterEmailResponse struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Age       int       `json:"age"`
	Gender    string    `json:"gender"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"createdAt"`
}

// RegisterByEmail creates a user account. The response carries public
// profile fields only, never the password digest.
func (h *AuthHandler) RegisterByEmail(w http.ResponseWriter, r *http.Request) {
	var req RegisterEmailRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeFailure(w, http.StatusBadRequest, "invalid request body")
		return
	}

	user, err := h.authService.RegisterByEmail(r.Context(), services.RegisterInput{
		FirstName:       req.FirstName,
		LastName:        req.LastName,
		Age:             req.Age,
		Gender:          req.Gender,
		Email:           req.Email,
		Password:        req.Password,
		ConfirmPassword: req.ConfirmPassword,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeSuccess(w, http.StatusCreated, "user registered successfully", RegisterEmailResponse{
		ID:        user.ID,
		Name:      user.Name(),
		Age:       user.Age,
		Gender:    user.Gender,
		Email:     user.Email,
		CreatedAt: user.RegisteredAt,
	})
}

type LoginEmailRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type LoginEmailResponse struct {
	ID        int64      `json:"id"`
	Email     string     `json:"email"`
	LastLogin *time.Time `json:"lastLogin"`
	Token     string     `json:"token"`
	ExpiresAt time.Time  `json:"expiresAt"`
}

// LoginByEmail verifies credentials and returns a session grant.
func (h *AuthHandler) LoginByEmail(w http.ResponseWriter, r *http.Request) {
	var req LoginEmailRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeFailure(w, http.StatusBadRequest, "invalid request body")
		return
	}

	user, err := h.authService.LoginByEmail(r.Context(), req.Email, req.Password)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	token, expiresAt, err := h.issueToken(user.ID)
	if err != nil {
		writeFailure(w, http.StatusInternalServerError, "failed to create token")
		return
	}

	writeSuccess(w, http.StatusOK, "login successful", LoginEmailResponse{
		ID:        user.ID,
		Email:     user.Email,
		LastLogin: user.LastLogin,
		Token:     token,
		ExpiresAt: expiresAt,
	})
}

type SendOTPRequest struct {
	Name  string `json:"name"`
	Phone string `json:"phone"`
}

// SendOTP issues a one-time code for the phone. The acknowledgement is the
// same whether or not SMS delivery succeeded.
func (h *AuthHandler) SendOTP(w http.ResponseWriter, r *http.Request) {
	var req SendOTPRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeFailure(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := h.authService.MobileAuth(r.Context(), req.Name, req.Phone); err != nil {
		writeServiceError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, "OTP sent successfully via sms", nil)
}

type VerifyOTPRequest struct {
	Phone string `json:"phone"`
	OTP   string `json:"otp"`
}

type VerifyOTPResponse struct {
	ID           int64     `json:"id"`
	Phone        string    `json:"phone"`
	RegisteredAt time.Time `json:"registeredAt"`
	Token        string    `json:"token"`
	ExpiresAt    time.Time `json:"expiresAt"`
}

// VerifyOTP consumes a pending code and returns a session grant.
func (h *AuthHandler) VerifyOTP(w http.ResponseWriter, r *http.Request) {
	var req VerifyOTPRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeFailure(w, http.StatusBadRequest, "invalid request body")
		return
	}

	user, err := h.authService.VerifyOTP(r.Context(), req.Phone, req.OTP)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	token, expiresAt, err := h.issueToken(user.ID)
	if err != nil {
		writeFailure(w, http.StatusInternalServerError, "failed to create token")
		return
	}

	writeSuccess(w, http.StatusOK, "login successful", VerifyOTPResponse{
		ID:           user.ID,
		Phone:        user.Phone,
		RegisteredAt: user.RegisteredAt,
		Token:        token,
		ExpiresAt:    expiresAt,
	})
}

type RefreshTokenResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// RefreshToken exchanges a bearer token that is valid, or expired within the
// refresh window, for a fresh one.
func (h *AuthHandler) RefreshToken(w http.ResponseWriter, r *http.Request) {
	tokenString, err := bearerToken(r)
	if err != nil {
		writeFailure(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	userID, err := h.parseRefreshSubject(tokenString, time.Now())
	if err != nil {
		writeFailure(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	user, err := h.authService.Refresh(r.Context(), userID)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	token, expiresAt, err := h.issueToken(user.ID)
	if err != nil {
		writeFailure(w, http.StatusInternalServerError, "failed to create token")
		return
	}

	writeSuccess(w, http.StatusOK, "token refreshed", RefreshTokenResponse{
		Token:     token,
		ExpiresAt: expiresAt,
	})
}

func (h *AuthHandler) issueToken(userID int64) (string, time.Time, error) {
	now := time.Now()
	expiresAt := now.Add(h.tokenTTL)
	claims := jwt.RegisteredClaims{
		Subject:   strconv.FormatInt(userID, 10),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(expiresAt),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(h.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return token, expiresAt, nil
}

// parseRefreshSubject verifies the signature but tolerates expiry up to the
// refresh window, so an idle client can reauthenticate without credentials.
func (h *AuthHandler) parseRefreshSubject(tokenString string, now time.Time) (int64, error) {
	claims := jwt.RegisteredClaims{}
	token, err := jwt.ParseWithClaims(tokenString, &claims, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("invalid signing method")
		}
		return h.secret, nil
	}, jwt.WithoutClaimsValidation())
	if err != nil {
		return 0, err
	}
	if !token.Valid {
		return 0, errors.New("invalid token")
	}
	if claims.ExpiresAt == nil {
		return 0, errors.New("missing expiry")
	}
	if now.After(claims.ExpiresAt.Time.Add(h.refreshWindow)) {
		return 0, errors.New("token past refresh window")
	}
	return parseSubject(claims.Subject)
}

func parseTokenSubject(tokenString string, secret []byte) (int64, error) {
	claims := jwt.RegisteredClaims{}
	token, err := jwt.ParseWithClaims(tokenString, &claims, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("invalid signing method")
		}
		return secret, nil
	})
	if err != nil {
		return 0, err
	}
	if !token.Valid {
		return 0, errors.New("invalid token")
	}
	return parseSubject(claims.Subject)
}

func parseSubject(subject string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(subject), 10, 64)
	if err != nil || id < 1 {
		return 0, errors.New("invalid subject")
	}
	return id, nil
}

func bearerToken(r *http.Request) (string, error) {
	auth := strings.TrimSpace(r.Header.Get("Authorization"))
	if auth == "" {
		return "", errors.New("missing authorization")
	}
	parts := strings.SplitN(auth, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", errors.New("invalid authorization")
	}
	token := strings.TrimSpace(parts[1])
	if token == "" {
		return "", errors.New("invalid authorization")
	}
	return token, nil
}
