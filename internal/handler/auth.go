package handler

import (
	"context"
	"errors"
	"net/http"
	"net/mail"
	"strings"
	"time"
	"unicode"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/secure-file-vault/internal/auth"
	"github.com/iliyamo/secure-file-vault/internal/captcha"
	"github.com/iliyamo/secure-file-vault/internal/config"
	"github.com/iliyamo/secure-file-vault/internal/middleware"
	"github.com/iliyamo/secure-file-vault/internal/repository"
)

// AuthHandler bundles dependencies for the credential endpoints.
type AuthHandler struct {
	Cfg     config.Config
	Users   *repository.UserRepo
	Captcha *captcha.Verifier
}

func NewAuthHandler(cfg config.Config, u *repository.UserRepo, v *captcha.Verifier) *AuthHandler {
	return &AuthHandler{Cfg: cfg, Users: u, Captcha: v}
}

// ----- DTOs -----

type signupReq struct {
	FirstName    string `json:"first_name"`
	LastName     string `json:"last_name"`
	Email        string `json:"email"`
	DateOfBirth  string `json:"date_of_birth"`
	Password     string `json:"password"`
	CaptchaToken string `json:"recaptchaToken"`
}

type loginReq struct {
	Email        string `json:"email"`
	Password     string `json:"password"`
	CaptchaToken string `json:"recaptchaToken"`
}

// Signup validates the registration fields, runs the bot check, and creates
// an unapproved user account. Approval happens out of band; until then the
// account cannot log in.
func (h *AuthHandler) Signup(c echo.Context) error {
	var req signupReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	req.FirstName = strings.TrimSpace(req.FirstName)
	req.LastName = strings.TrimSpace(req.LastName)
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	req.DateOfBirth = strings.TrimSpace(req.DateOfBirth)

	if msg := validateSignup(req); msg != "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": msg})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 10*time.Second)
	defer cancel()

	ok, err := h.Captcha.Verify(ctx, req.CaptchaToken)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "bot check unavailable"})
	}
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "bot check verification failed"})
	}

	_, err = h.Users.Create(ctx, repository.NewUserParams{
		FirstName:   req.FirstName,
		LastName:    req.LastName,
		Email:       req.Email,
		DateOfBirth: req.DateOfBirth,
		Password:    req.Password,
	}, h.Cfg.BcryptCost)
	if err != nil {
		if errors.Is(err, repository.ErrEmailExists) {
			return c.JSON(http.StatusConflict, echo.Map{"error": "email already exists"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "create user failed"})
	}

	return c.JSON(http.StatusCreated, echo.Map{"message": "user registered successfully"})
}

// Login verifies credentials and the bot check, and issues a signed,
// time-boxed bearer token. The token is also mirrored into an HTTP-only
// cookie carrying the same claims.
func (h *AuthHandler) Login(c echo.Context) error {
	var req loginReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if req.Email == "" || req.Password == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "email/password required"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 10*time.Second)
	defer cancel()

	ok, err := h.Captcha.Verify(ctx, req.CaptchaToken)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "bot check unavailable"})
	}
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "bot check verification failed"})
	}

	u, err := h.Users.GetByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid credentials"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	// Unapproved accounts fail exactly like bad credentials; the response
	// must not reveal which of the two it was.
	if !auth.VerifyPassword(u.PasswordHash, req.Password) || !u.Approved {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid credentials"})
	}

	ttl := time.Duration(h.Cfg.TokenTTLMin) * time.Minute
	token, exp, err := auth.NewToken(h.Cfg.JWTSecret, u, ttl)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "issue token failed"})
	}

	c.SetCookie(&http.Cookie{
		Name:     "token",
		Value:    token,
		Expires:  exp,
		HttpOnly: true,
		Secure:   true,
		SameSite: http.SameSiteStrictMode,
	})
	return c.JSON(http.StatusOK, echo.Map{"token": token, "redirect": "/dashboard"})
}

// UserInfo returns the caller's id and admin flag, derived purely from the
// verified token.
func (h *AuthHandler) UserInfo(c echo.Context) error {
	id, ok := middleware.IdentityFrom(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	return c.JSON(http.StatusOK, echo.Map{"userId": id.UserID, "isAdmin": id.IsAdmin()})
}

// validateSignup applies the registration field rules and returns an error
// message, or "" when everything passes.
func validateSignup(req signupReq) string {
	if req.FirstName == "" {
		return "first name is required"
	}
	if req.LastName == "" {
		return "last name is required"
	}
	if _, err := mail.ParseAddress(req.Email); err != nil {
		return "invalid email"
	}
	if req.DateOfBirth == "" {
		return "date of birth is required"
	}
	return validatePassword(req.Password)
}

// validatePassword enforces the reference policy: at least 8 characters,
// one uppercase letter and one special character.
func validatePassword(pw string) string {
	if len(pw) < 8 {
		return "password must be at least 8 characters long"
	}
	var upper, special bool
	for _, r := range pw {
		switch {
		case unicode.IsUpper(r):
			upper = true
		case strings.ContainsRune("!@#$%^&*", r):
			special = true
		}
	}
	if !upper || !special {
		return "password must contain at least one uppercase letter and one special character"
	}
	return ""
}
