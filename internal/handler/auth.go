package handler

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/calculations-api/internal/middleware"
	"github.com/iliyamo/calculations-api/internal/model"
	"github.com/iliyamo/calculations-api/internal/service"
	"github.com/iliyamo/calculations-api/internal/utils"
)

// AuthService is what the auth endpoints need from the service layer.
type AuthService interface {
	Register(ctx context.Context, in service.RegisterInput) (model.User, error)
	Authenticate(ctx context.Context, username, password string) (service.AuthResult, bool, error)
	Refresh(ctx context.Context, refreshToken string) (service.AuthResult, error)
	Logout(ctx context.Context, access *utils.Claims, refreshToken string) error
}

// AuthHandler serves /auth.
type AuthHandler struct {
	Auth AuthService
}

func NewAuthHandler(auth AuthService) *AuthHandler {
	return &AuthHandler{Auth: auth}
}

// ----- DTOs -----

type registerReq struct {
	Username        string `json:"username"`
	Email           string `json:"email"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirm_password"`
	FirstName       string `json:"first_name"`
	LastName        string `json:"last_name"`
}

type loginReq struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type refreshReq struct {
	RefreshToken string `json:"refresh_token"`
}

type tokenResp struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	TokenType    string    `json:"token_type"`
	ExpiresAt    time.Time `json:"expires_at"`
	UserID       string    `json:"user_id"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	FirstName    string    `json:"first_name"`
	LastName     string    `json:"last_name"`
	IsActive     bool      `json:"is_active"`
	IsVerified   bool      `json:"is_verified"`
}

func newTokenResp(r service.AuthResult) tokenResp {
	return tokenResp{
		AccessToken:  r.AccessToken,
		RefreshToken: r.RefreshToken,
		TokenType:    "bearer",
		ExpiresAt:    r.ExpiresAt,
		UserID:       r.User.ID,
		Username:     r.User.Username,
		Email:        r.User.Email,
		FirstName:    r.User.FirstName,
		LastName:     r.User.LastName,
		IsActive:     r.User.IsActive,
		IsVerified:   r.User.IsVerified,
	}
}

// Register: create an account.  Returns the user without any password field.
func (h *AuthHandler) Register(c echo.Context) error {
	var req registerReq
	if err := c.Bind(&req); err != nil {
		return badRequest("invalid body")
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()

	u, err := h.Auth.Register(ctx, service.RegisterInput{
		Username:        req.Username,
		Email:           req.Email,
		Password:        req.Password,
		ConfirmPassword: req.ConfirmPassword,
		FirstName:       req.FirstName,
		LastName:        req.LastName,
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, u)
}

// Login: JSON credentials in, token pair out.
func (h *AuthHandler) Login(c echo.Context) error {
	var req loginReq
	if err := c.Bind(&req); err != nil {
		return badRequest("invalid body")
	}
	res, err := h.authenticate(c, req.Username, req.Password)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, newTokenResp(res))
}

// Token: form-encoded variant of Login for clients speaking the OAuth2
// password flow.  Only the access token is returned.
func (h *AuthHandler) Token(c echo.Context) error {
	res, err := h.authenticate(c, c.FormValue("username"), c.FormValue("password"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, echo.Map{
		"access_token": res.AccessToken,
		"token_type":   "bearer",
	})
}

func (h *AuthHandler) authenticate(c echo.Context, username, password string) (service.AuthResult, error) {
	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()

	res, ok, err := h.Auth.Authenticate(ctx, username, password)
	if err != nil {
		return service.AuthResult{}, err
	}
	if !ok {
		return service.AuthResult{}, errBadCredentials
	}
	return res, nil
}

// Refresh: rotate a refresh token into a new pair.
func (h *AuthHandler) Refresh(c echo.Context) error {
	var req refreshReq
	if err := c.Bind(&req); err != nil || strings.TrimSpace(req.RefreshToken) == "" {
		return badRequest("refresh_token required")
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()

	res, err := h.Auth.Refresh(ctx, strings.TrimSpace(req.RefreshToken))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, newTokenResp(res))
}

// Logout: revoke the bearer access token, plus the refresh token when one
// is sent in the body.  Protected by the bearer guard.
func (h *AuthHandler) Logout(c echo.Context) error {
	claims, ok := middleware.TokenClaims(c)
	if !ok {
		return service.ErrUnauthorized
	}
	var req refreshReq
	_ = c.Bind(&req) // the body is optional

	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()

	if err := h.Auth.Logout(ctx, claims, req.RefreshToken); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

// Me: the authenticated user.
func (h *AuthHandler) Me(c echo.Context) error {
	u, ok := middleware.CurrentUser(c)
	if !ok {
		return service.ErrUnauthorized
	}
	return c.JSON(http.StatusOK, u)
}
