package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"goride/internal/config"
	"goride/internal/store"
	"goride/pkg/logger"
)

// ErrSessionExpired reports an authentication failure that one refresh
// attempt could not recover. Callers must log the user out.
var ErrSessionExpired = errors.New("session expired")

type Client struct {
	cfg        *config.APIConfig
	httpClient *http.Client
	uploads    *http.Client
	store      *store.Store
	log        *logger.Logger
}

func NewClient(cfg *config.APIConfig, st *store.Store, log *logger.Logger) *Client {
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		uploads:    &http.Client{Timeout: cfg.UploadTimeout},
		store:      st,
		log:        log.WithComponent("api"),
	}
}

type apiError struct {
	Message string `json:"message"`
	Error_  string `json:"error"`
}

func (e apiError) text() string {
	if e.Message != "" {
		return e.Message
	}
	return e.Error_
}

// do runs one authenticated JSON request. A 401 triggers a single
// refresh-and-retry; a second 401 (or a failed refresh) is terminal for
// the session.
func (c *Client) do(ctx context.Context, method, path string, body interface{}, out interface{}) error {
	if c.tokenNeedsRefresh() {
		if err := c.Refresh(ctx); err != nil {
			c.log.WithError(err).Warn("Preemptive token refresh failed")
		}
	}

	status, err := c.doOnce(ctx, method, path, body, out)
	if err != nil {
		return err
	}
	if status != http.StatusUnauthorized {
		return nil
	}

	if err := c.Refresh(ctx); err != nil {
		return fmt.Errorf("%w: %v", ErrSessionExpired, err)
	}

	status, err = c.doOnce(ctx, method, path, body, out)
	if err != nil {
		return err
	}
	if status == http.StatusUnauthorized {
		return ErrSessionExpired
	}
	return nil
}

// doOnce performs the request. It returns the 401 status to the caller
// instead of an error so do can run the refresh path; any other non-2xx
// status is already converted to an error here.
func (c *Client) doOnce(ctx context.Context, method, path string, body interface{}, out interface{}) (int, error) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return 0, fmt.Errorf("failed to encode request body: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.url(path), reader)
	if err != nil {
		return 0, fmt.Errorf("failed to create request: %w", err)
	}
	c.setHeaders(req)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		io.Copy(io.Discard, resp.Body)
		return resp.StatusCode, nil
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var apiErr apiError
		respBody, _ := io.ReadAll(resp.Body)
		if json.Unmarshal(respBody, &apiErr) == nil && apiErr.text() != "" {
			return resp.StatusCode, fmt.Errorf("API error (%d): %s", resp.StatusCode, apiErr.text())
		}
		return resp.StatusCode, fmt.Errorf("API error (%d)", resp.StatusCode)
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return resp.StatusCode, fmt.Errorf("failed to decode response: %w", err)
		}
	} else {
		io.Copy(io.Discard, resp.Body)
	}

	return resp.StatusCode, nil
}

func (c *Client) url(path string) string {
	return strings.TrimRight(c.cfg.BaseURL, "/") + "/" + strings.TrimLeft(path, "/")
}

func jsonDecode(r io.Reader, out interface{}) error {
	return json.NewDecoder(r).Decode(out)
}

func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("User-Agent", c.cfg.UserAgent)
	req.Header.Set("Accept", "application/json")
	if access, _ := c.store.Tokens(); access != "" {
		req.Header.Set("Authorization", "Bearer "+access)
	}
}
