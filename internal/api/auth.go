package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int64  `json:"expires_in"`
	TokenType    string `json:"token_type"`
}

type UserProfile struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	Email         string `json:"email"`
	Phone         string `json:"phone"`
	Role          string `json:"role"`
	AvatarURL     string `json:"avatar_url"`
	Verified      bool   `json:"verified"`
	ContactNumber string `json:"contact_number"`
}

type AuthResponse struct {
	User   UserProfile `json:"user"`
	Tokens TokenPair   `json:"tokens"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type registerRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Phone    string `json:"phone"`
	Password string `json:"password"`
	Role     string `json:"role"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

func (c *Client) Login(ctx context.Context, email, password string) (*AuthResponse, error) {
	var resp AuthResponse
	err := c.do(ctx, http.MethodPost, "/auth/login", loginRequest{Email: email, Password: password}, &resp)
	if err != nil {
		return nil, fmt.Errorf("login failed: %w", err)
	}

	if err := c.store.SetTokens(resp.Tokens.AccessToken, resp.Tokens.RefreshToken); err != nil {
		return nil, fmt.Errorf("failed to persist tokens: %w", err)
	}
	if err := c.store.SetRole(resp.User.Role); err != nil {
		return nil, fmt.Errorf("failed to persist role: %w", err)
	}

	c.log.WithUserID(resp.User.ID).Info("Logged in")
	return &resp, nil
}

func (c *Client) Register(ctx context.Context, name, email, phone, password, role string) (*AuthResponse, error) {
	var resp AuthResponse
	err := c.do(ctx, http.MethodPost, "/auth/register", registerRequest{
		Name:     name,
		Email:    email,
		Phone:    phone,
		Password: password,
		Role:     role,
	}, &resp)
	if err != nil {
		return nil, fmt.Errorf("registration failed: %w", err)
	}

	if err := c.store.SetTokens(resp.Tokens.AccessToken, resp.Tokens.RefreshToken); err != nil {
		return nil, fmt.Errorf("failed to persist tokens: %w", err)
	}
	if err := c.store.SetRole(resp.User.Role); err != nil {
		return nil, fmt.Errorf("failed to persist role: %w", err)
	}

	return &resp, nil
}

// Refresh exchanges the stored refresh token for a new pair. The
// refresh endpoint is unauthenticated by the access token, so doOnce is
// used directly to avoid recursing through the retry path.
func (c *Client) Refresh(ctx context.Context) error {
	_, refresh := c.store.Tokens()
	if refresh == "" {
		return fmt.Errorf("%w: no refresh token", ErrSessionExpired)
	}

	var tokens TokenPair
	status, err := c.doOnce(ctx, http.MethodPost, "/auth/refresh", refreshRequest{RefreshToken: refresh}, &tokens)
	if err != nil {
		return fmt.Errorf("token refresh failed: %w", err)
	}
	if status == http.StatusUnauthorized {
		return fmt.Errorf("%w: refresh token rejected", ErrSessionExpired)
	}

	if err := c.store.SetTokens(tokens.AccessToken, tokens.RefreshToken); err != nil {
		return fmt.Errorf("failed to persist refreshed tokens: %w", err)
	}

	c.log.Debug("Tokens refreshed")
	return nil
}

// Logout clears all persisted session state.
func (c *Client) Logout() error {
	return c.store.Clear()
}

// tokenNeedsRefresh inspects the stored access token's expiry without
// verifying the signature (the backend owns verification; the client
// only schedules refreshes).
func (c *Client) tokenNeedsRefresh() bool {
	access, refresh := c.store.Tokens()
	if access == "" || refresh == "" {
		return false
	}

	token, _, err := jwt.NewParser().ParseUnverified(access, jwt.MapClaims{})
	if err != nil {
		return false
	}

	exp, err := token.Claims.GetExpirationTime()
	if err != nil || exp == nil {
		return false
	}

	return time.Until(exp.Time) < c.cfg.RefreshLeeway
}
