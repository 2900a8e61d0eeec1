// Package remote encapsulates authenticated HTTP calls to PastoralCare Pro.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/golang-jwt/jwt/v5"

	"github.com/PastorRae/visitation-log/internal/config"
	"github.com/PastorRae/visitation-log/internal/errors"
	"github.com/PastorRae/visitation-log/internal/logging"
	"github.com/PastorRae/visitation-log/internal/models"
)

// apiPrefix is prepended to every endpoint path.
const apiPrefix = "/api/mobile"

const userAgent = "VisitationLog-Mobile/go"

// Client performs all network I/O against the remote authority with
// uniform retry and auth handling. Safe for concurrent use.
type Client struct {
	baseURL        string
	httpClient     *http.Client
	retryAttempts  int
	retryBaseDelay time.Duration
	validate       *validator.Validate

	mu    sync.RWMutex
	token string
	user  *User
}

// NewClient creates a Client from API configuration.
func NewClient(cfg config.APIConfig) *Client {
	return &Client{
		baseURL:        cfg.BaseURL,
		httpClient:     &http.Client{Timeout: cfg.Timeout},
		retryAttempts:  cfg.RetryAttempts,
		retryBaseDelay: cfg.RetryBaseDelay,
		validate:       validator.New(),
	}
}

// =====================================================
// Authentication
// =====================================================

// Authenticate exchanges credentials for a bearer token. The token is
// held by the client and attached to all subsequent calls.
func (c *Client) Authenticate(ctx context.Context, creds Credentials) (*AuthResponse, error) {
	if err := c.validate.Struct(creds); err != nil {
		return nil, errors.Wrap(errors.ErrValidation, "invalid credentials payload", err)
	}

	var resp AuthResponse
	if err := c.request(ctx, http.MethodPost, "/auth/mobile", creds, &resp); err != nil {
		return nil, err
	}

	if err := c.validate.Struct(&resp); err != nil {
		return nil, errors.Wrap(errors.ErrValidation, "malformed auth response", err)
	}

	c.mu.Lock()
	c.token = resp.Token
	user := resp.User
	c.user = &user
	c.mu.Unlock()

	logging.Info("Authentication successful", logging.Fields{"email": resp.User.Email})
	return &resp, nil
}

// Logout discards the held token and user.
func (c *Client) Logout() {
	c.mu.Lock()
	c.token = ""
	c.user = nil
	c.mu.Unlock()
}

// IsAuthenticated reports whether a token is currently held.
func (c *Client) IsAuthenticated() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token != "" && c.user != nil
}

// CurrentUser returns the authenticated user, or nil.
func (c *Client) CurrentUser() *User {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.user
}

// SetToken installs a previously stored token, e.g. loaded at startup.
func (c *Client) SetToken(token string, user *User) {
	c.mu.Lock()
	c.token = token
	c.user = user
	c.mu.Unlock()
}

// EnsureFreshToken checks the held token's exp claim without verifying
// the signature (the server remains the authority). An expired or
// undecodable token is discarded and false is returned, forcing
// re-authentication.
func (c *Client) EnsureFreshToken() bool {
	c.mu.RLock()
	token := c.token
	c.mu.RUnlock()

	if token == "" {
		return false
	}

	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		logging.Warn("Held token is not a decodable JWT, discarding", logging.Fields{})
		c.Logout()
		return false
	}

	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		// No exp claim: treat as non-expiring and let the server decide.
		return true
	}

	if exp.Before(time.Now()) {
		logging.Info("Stored token expired", logging.Fields{"expired_at": exp.Time})
		c.Logout()
		return false
	}
	return true
}

// =====================================================
// Data endpoints
// =====================================================

// UploadVisits sends one batch of visits. The caller is responsible for
// chunking to the configured batch size.
func (c *Client) UploadVisits(ctx context.Context, visits []*models.VisitRecord) (*UploadResult, error) {
	var resp UploadResult
	if err := c.request(ctx, http.MethodPost, "/visits/sync", uploadRequest{Visits: visits}, &resp); err != nil {
		return nil, err
	}

	logging.Info("Visit batch uploaded", logging.Fields{
		"sent":      len(visits),
		"synced":    resp.Synced,
		"errors":    len(resp.Errors),
		"conflicts": len(resp.Conflicts),
	})
	return &resp, nil
}

// DownloadChurches fetches the full church reference set. A missing or
// empty remote dataset yields an empty slice, not an error.
func (c *Client) DownloadChurches(ctx context.Context) ([]*models.Church, error) {
	var resp churchesResponse
	if err := c.request(ctx, http.MethodGet, "/churches", nil, &resp); err != nil {
		return nil, err
	}
	if !resp.Success || len(resp.Data) == 0 {
		return []*models.Church{}, nil
	}
	if err := c.validate.Struct(&resp); err != nil {
		return nil, errors.Wrap(errors.ErrValidation, "malformed churches response", err)
	}

	churches := make([]*models.Church, 0, len(resp.Data))
	for _, d := range resp.Data {
		churches = append(churches, d.toModel())
	}
	return churches, nil
}

// DownloadMembers fetches the member roster for one church, optionally
// filtered by a search term.
func (c *Client) DownloadMembers(ctx context.Context, churchID, search string) ([]*models.Member, error) {
	params := url.Values{}
	if search != "" {
		params.Set("search", search)
	}
	params.Set("limit", "500")

	path := "/members/" + url.PathEscape(churchID) + "?" + params.Encode()

	var resp membersResponse
	if err := c.request(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	if !resp.Success || len(resp.Data) == 0 {
		return []*models.Member{}, nil
	}
	if err := c.validate.Struct(&resp); err != nil {
		return nil, errors.Wrap(errors.ErrValidation, "malformed members response", err)
	}

	members := make([]*models.Member, 0, len(resp.Data))
	for _, d := range resp.Data {
		members = append(members, d.toModel())
	}
	return members, nil
}

// SearchMembers queries the server-side roster search across all
// churches the pastor can see.
func (c *Client) SearchMembers(ctx context.Context, query string) ([]*models.Member, error) {
	params := url.Values{}
	params.Set("q", query)
	params.Set("limit", "20")

	var resp membersResponse
	if err := c.request(ctx, http.MethodGet, "/members/search?"+params.Encode(), nil, &resp); err != nil {
		return nil, err
	}
	if !resp.Success || len(resp.Data) == 0 {
		return []*models.Member{}, nil
	}
	if err := c.validate.Struct(&resp); err != nil {
		return nil, errors.Wrap(errors.ErrValidation, "malformed member search response", err)
	}

	members := make([]*models.Member, 0, len(resp.Data))
	for _, d := range resp.Data {
		members = append(members, d.toModel())
	}
	return members, nil
}

// DownloadVisits fetches server-side visits for a church since the given
// millisecond timestamp (0 means everything). Returns the visits and the
// server's own timestamp for last-sync bookkeeping.
func (c *Client) DownloadVisits(ctx context.Context, churchID string, sinceMillis int64) ([]*models.VisitRecord, int64, error) {
	params := url.Values{}
	if churchID != "" {
		params.Set("church_id", churchID)
	}
	if sinceMillis > 0 {
		params.Set("since", strconv.FormatInt(sinceMillis, 10))
	}
	params.Set("limit", "500")

	var resp visitsDownloadResponse
	if err := c.request(ctx, http.MethodGet, "/visits/download?"+params.Encode(), nil, &resp); err != nil {
		return nil, 0, err
	}
	if !resp.Success {
		return []*models.VisitRecord{}, resp.ServerTimestamp, nil
	}

	for _, v := range resp.Data {
		if v.ID == "" {
			return nil, 0, errors.New(errors.ErrValidation, "downloaded visit missing id")
		}
	}
	return resp.Data, resp.ServerTimestamp, nil
}

// HealthCheck probes the remote system. It never fails: any error is
// reported as unhealthy.
func (c *Client) HealthCheck(ctx context.Context) bool {
	var resp healthResponse
	if err := c.request(ctx, http.MethodGet, "/health", nil, &resp); err != nil {
		logging.Warn("Health check failed", logging.Fields{"error": err.Error()})
		return false
	}
	return resp.Status == "healthy"
}

// =====================================================
// HTTP plumbing
// =====================================================

// request performs one API call with uniform retry handling: transient
// failures (network, timeout, 5xx) are retried with a linearly growing
// delay; auth and client errors fail immediately.
func (c *Client) request(ctx context.Context, method, path string, body, out interface{}) error {
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return errors.Wrap(errors.ErrValidation, "failed to encode request body", err)
		}
	}

	var lastErr error
	for attempt := 1; attempt <= c.retryAttempts; attempt++ {
		lastErr = c.doOnce(ctx, method, path, payload, out)
		if lastErr == nil {
			return nil
		}

		if !errors.IsRetryable(lastErr) {
			return lastErr
		}

		logging.Warn("API request failed", logging.Fields{
			"method":  method,
			"path":    path,
			"attempt": attempt,
			"error":   lastErr.Error(),
		})

		if attempt < c.retryAttempts {
			select {
			case <-ctx.Done():
				return errors.Wrap(errors.ErrTimeout, "request canceled during backoff", ctx.Err())
			case <-time.After(c.retryBaseDelay * time.Duration(attempt)):
			}
		}
	}
	return lastErr
}

func (c *Client) doOnce(ctx context.Context, method, path string, payload []byte, out interface{}) error {
	var reader *bytes.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+apiPrefix+path, reader)
	if err != nil {
		return errors.Wrap(errors.ErrValidation, "failed to build request", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", userAgent)

	c.mu.RLock()
	token := c.token
	c.mu.RUnlock()
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return errors.Wrap(errors.ErrTimeout, "request deadline exceeded", err)
		}
		return errors.Wrap(errors.ErrNetwork, "request failed", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		// Token rejected: invalidate immediately so every subsequent
		// call forces re-authentication.
		c.Logout()
		return errors.New(errors.ErrAuth, "authentication required")
	case resp.StatusCode >= 500:
		return errors.Newf(errors.ErrServer, "HTTP %d from %s", resp.StatusCode, path)
	case resp.StatusCode >= 400:
		return errors.Newf(errors.ErrValidation, "HTTP %d from %s", resp.StatusCode, path)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return errors.Wrap(errors.ErrValidation, fmt.Sprintf("malformed response from %s", path), err)
	}
	return nil
}
