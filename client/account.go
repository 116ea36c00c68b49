package client

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"unicode"

	"github.com/meepleboard/meeple/auth"
	"github.com/meepleboard/meeple/pkg/redact"
	"github.com/meepleboard/meeple/pkg/validation"
	"github.com/rs/zerolog/log"
)

// ErrValidation wraps every local input check failure; such requests never
// reach the network.
var ErrValidation = errors.New("invalid request")

func validate(v any) error {
	if err := validation.Struct(v); err != nil {
		return fmt.Errorf("%w: %w", ErrValidation, err)
	}
	return nil
}

func validateID(field, id string) error {
	if err := validation.ValidateID(field, id); err != nil {
		return fmt.Errorf("%w: %w", ErrValidation, err)
	}
	return nil
}

// Codes attached to failed AuthResults.
const (
	CodeInvalidToken      = "invalid_token"
	CodeEmailNotConfirmed = "email_not_confirmed"
)

// AuthResult is the outcome of an account operation the backend rejected or
// accepted. Transport and storage failures are returned as errors instead.
type AuthResult struct {
	Success bool
	Message string
	Code    string
	Errors  []string
}

// SessionStore is what account operations need from the token manager.
type SessionStore interface {
	StoreTokens(ctx context.Context, accessToken, refreshToken string, rememberMe bool) error
	SaveUser(ctx context.Context, user auth.User) error
	ClearAll(ctx context.Context) error
}

type AccountService struct {
	c       *Client
	session SessionStore
}

func NewAccountService(c *Client, session SessionStore) *AccountService {
	return &AccountService{c: c, session: session}
}

type RegisterRequest struct {
	UserName string `json:"username" validate:"notblank,min=3,max=50"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6"`
	IsMobile bool   `json:"isMobile"`
}

type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
	IsMobile bool   `json:"isMobile"`
}

type ResetPasswordRequest struct {
	Email           string `json:"email" validate:"required,email"`
	Token           string `json:"token" validate:"notblank"`
	Password        string `json:"password" validate:"required,min=6"`
	ConfirmPassword string `json:"confirmPassword" validate:"eqfield=Password"`
}

type emailRequest struct {
	Email    string `json:"email" validate:"required,email"`
	IsMobile bool   `json:"isMobile"`
}

type messageResponse struct {
	Message string `json:"message"`
}

type loginResponse struct {
	Success      bool       `json:"success"`
	Message      string     `json:"message"`
	Token        string     `json:"token"`
	RefreshToken string     `json:"refreshToken"`
	User         *auth.User `json:"user"`
}

func (a *AccountService) Register(ctx context.Context, req RegisterRequest) (AuthResult, error) {
	req.Email = normalizeEmail(req.Email)
	req.UserName = strings.TrimSpace(req.UserName)
	req.IsMobile = true
	if err := validate(req); err != nil {
		return AuthResult{}, err
	}
	return a.simple(ctx, "register", &Request{Method: http.MethodPost, Path: "/auth/register", Body: req, Anonymous: true})
}

// Login authenticates and persists the session. With rememberMe the refresh
// token survives restarts.
func (a *AccountService) Login(ctx context.Context, email, password string, rememberMe bool) (AuthResult, error) {
	req := LoginRequest{Email: normalizeEmail(email), Password: password, IsMobile: true}
	if err := validate(req); err != nil {
		return AuthResult{}, err
	}

	log.Info().Str("email", redact.Email(req.Email)).Bool("remember_me", rememberMe).Msg("Logging in")
	resp, err := a.c.Do(ctx, &Request{Method: http.MethodPost, Path: "/auth/login", Body: req, Anonymous: true})
	if err != nil {
		return normalizeAuthError(err, "login")
	}

	var out loginResponse
	if err := resp.Decode(&out); err != nil {
		return AuthResult{}, err
	}
	if !out.Success || out.Token == "" || out.RefreshToken == "" || out.User == nil {
		return AuthResult{Success: false, Message: "Invalid data from server."}, nil
	}

	if err := a.session.StoreTokens(ctx, out.Token, out.RefreshToken, rememberMe); err != nil {
		return AuthResult{}, err
	}
	if err := a.session.SaveUser(ctx, *out.User); err != nil {
		return AuthResult{}, err
	}
	log.Info().Str("user", out.User.UserName).Msg("Login successful")
	return AuthResult{Success: true, Message: out.Message}, nil
}

// ConfirmEmail submits the token from a confirmation link. Mail clients tend
// to mangle the token, so it is unescaped and whitespace is turned back into '+'.
func (a *AccountService) ConfirmEmail(ctx context.Context, token, email string) (AuthResult, error) {
	token = cleanLinkToken(token)
	if token == "" {
		return AuthResult{}, fmt.Errorf("%w: token is required", ErrValidation)
	}
	q := url.Values{"token": {token}, "email": {email}}
	return a.simple(ctx, "confirmEmail", &Request{Method: http.MethodGet, Path: "/auth/confirm-email", Query: q, Anonymous: true})
}

func (a *AccountService) ResendConfirmation(ctx context.Context, email string) (AuthResult, error) {
	req := emailRequest{Email: normalizeEmail(email), IsMobile: true}
	if err := validate(req); err != nil {
		return AuthResult{}, err
	}
	return a.simple(ctx, "resendConfirmation", &Request{Method: http.MethodPost, Path: "/auth/resend-confirmation", Body: req, Anonymous: true})
}

func (a *AccountService) ForgotPassword(ctx context.Context, email string) (AuthResult, error) {
	req := emailRequest{Email: normalizeEmail(email), IsMobile: true}
	if err := validate(req); err != nil {
		return AuthResult{}, err
	}
	return a.simple(ctx, "forgotPassword", &Request{Method: http.MethodPost, Path: "/auth/forgot-password", Body: req, Anonymous: true})
}

func (a *AccountService) ResetPassword(ctx context.Context, req ResetPasswordRequest) (AuthResult, error) {
	req.Token = cleanLinkToken(req.Token)
	req.Email = normalizeEmail(req.Email)
	if err := validate(req); err != nil {
		return AuthResult{}, err
	}
	return a.simple(ctx, "resetPassword", &Request{Method: http.MethodPost, Path: "/auth/reset-password", Body: req, Anonymous: true})
}

// Logout forgets the local session.
func (a *AccountService) Logout(ctx context.Context) error {
	if err := a.session.ClearAll(ctx); err != nil {
		return fmt.Errorf("failed to clear session: %w", err)
	}
	log.Info().Msg("Logged out")
	return nil
}

// LogoutAllDevices revokes every session server-side, then logs out locally.
// A failed revoke is only logged.
func (a *AccountService) LogoutAllDevices(ctx context.Context) error {
	if err := a.c.Post(ctx, "/auth/logout-all", nil, nil); err != nil {
		log.Warn().Err(err).Msg("Failed to log out of all devices")
	} else {
		log.Info().Msg("Logged out of all devices")
	}
	return a.Logout(ctx)
}

func (a *AccountService) simple(ctx context.Context, action string, r *Request) (AuthResult, error) {
	resp, err := a.c.Do(ctx, r)
	if err != nil {
		return normalizeAuthError(err, action)
	}
	var out messageResponse
	if err := resp.Decode(&out); err != nil {
		return AuthResult{}, err
	}
	return AuthResult{Success: true, Message: out.Message}, nil
}

// normalizeAuthError turns a backend rejection into a failed AuthResult.
// Anything that is not an HTTP answer stays an error.
func normalizeAuthError(err error, action string) (AuthResult, error) {
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return AuthResult{}, err
	}

	msg := apiErr.Message
	if len(apiErr.Errors) > 0 {
		msg = strings.TrimSpace(msg + " " + apiErr.Errors[0])
	}
	if msg == "" {
		msg = "Error during " + action + "."
	}

	code := apiErr.Code
	lower := strings.ToLower(msg)
	switch {
	case strings.Contains(lower, "expired") || strings.Contains(lower, "invalid token"):
		code = CodeInvalidToken
	case strings.Contains(lower, "email not confirmed"):
		code = CodeEmailNotConfirmed
	}

	log.Warn().Str("action", action).Int("status", apiErr.Status).Str("message", msg).Msg("Account request rejected")
	return AuthResult{Success: false, Message: msg, Code: code, Errors: apiErr.Errors}, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func cleanLinkToken(token string) string {
	token = strings.TrimSpace(token)
	if unescaped, err := url.PathUnescape(token); err == nil {
		token = unescaped
	}
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return '+'
		}
		return r
	}, token)
}
