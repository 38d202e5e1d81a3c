package predictor

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"golang.org/x/time/rate"
)

// Client talks to the remote flat price prediction backend. Requests carry
// the session bearer token, pass a per-client rate limiter, and idempotent
// calls are retried with exponential backoff.
type Client struct {
	baseURL         string
	token           string
	httpClient      *http.Client
	limiter         *rate.Limiter
	maxRetryElapsed time.Duration
}

// Options configures a Client. Zero values fall back to defaults.
type Options struct {
	BaseURL         string
	Token           string
	Timeout         time.Duration
	RequestsPerSec  int
	MaxRetryElapsed time.Duration
}

// New creates a Client for the backend at opts.BaseURL.
func New(opts Options) *Client {
	if opts.Timeout == 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.RequestsPerSec == 0 {
		opts.RequestsPerSec = 5
	}
	if opts.MaxRetryElapsed == 0 {
		opts.MaxRetryElapsed = 30 * time.Second
	}

	return &Client{
		baseURL:         opts.BaseURL,
		token:           opts.Token,
		httpClient:      &http.Client{Timeout: opts.Timeout},
		limiter:         rate.NewLimiter(rate.Every(time.Second), opts.RequestsPerSec),
		maxRetryElapsed: opts.MaxRetryElapsed,
	}
}

// SetToken replaces the session token used for authenticated calls.
func (c *Client) SetToken(token string) {
	c.token = token
}

// APIError is a non-2xx response decoded from the backend's error body.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("server returned %d", e.Status)
	}
	return fmt.Sprintf("server returned %d: %s", e.Status, e.Message)
}

// retryable reports whether a failed attempt may be retried: transport
// errors and 5xx responses only. 4xx responses are permanent.
func retryable(err error) bool {
	if apiErr, ok := err.(*APIError); ok {
		return apiErr.Status >= 500
	}
	return true
}

// do performs one request. When retry is true the request is retried with
// exponential backoff; only idempotent calls should set it.
func (c *Client) do(ctx context.Context, method, path string, body, out any, retry bool) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshalling request: %w", err)
		}
	}

	attempt := func() error {
		var bodyReader io.Reader
		if payload != nil {
			bodyReader = bytes.NewReader(payload)
		}

		req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
		if err != nil {
			return backoff.Permanent(err)
		}
		if c.token != "" {
			req.Header.Set("Authorization", "Bearer "+c.token)
		}
		if payload != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		if resp.StatusCode >= 400 {
			apiErr := &APIError{Status: resp.StatusCode}
			var errBody struct {
				Error string `json:"error"`
			}
			if json.NewDecoder(resp.Body).Decode(&errBody) == nil {
				apiErr.Message = errBody.Error
			}
			if retryable(apiErr) {
				return apiErr
			}
			return backoff.Permanent(apiErr)
		}

		if out == nil {
			return nil
		}
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return backoff.Permanent(fmt.Errorf("decoding response: %w", err))
		}
		return nil
	}

	if !retry {
		err := attempt()
		var perm *backoff.PermanentError
		if errors.As(err, &perm) {
			return perm.Err
		}
		return err
	}

	policy := backoff.NewExponentialBackOff()
	policy.MaxElapsedTime = c.maxRetryElapsed
	return backoff.Retry(attempt, backoff.WithContext(policy, ctx))
}

// Register creates a backend account.
func (c *Client) Register(ctx context.Context, email, password string) error {
	body := map[string]string{"email": email, "password": password}
	return c.do(ctx, http.MethodPost, "/register", body, nil, false)
}

// Login authenticates and returns the session token plus user identity.
// The token is also installed on the client for subsequent calls.
func (c *Client) Login(ctx context.Context, email, password string) (Session, error) {
	body := map[string]string{"email": email, "password": password}
	var session Session
	if err := c.do(ctx, http.MethodPost, "/login", body, &session, false); err != nil {
		return Session{}, err
	}
	c.token = session.Token
	return session, nil
}

// Me returns the authenticated user.
func (c *Client) Me(ctx context.Context) (User, error) {
	var user User
	err := c.do(ctx, http.MethodGet, "/me", nil, &user, true)
	return user, err
}

// Logout invalidates the session token on the backend.
func (c *Client) Logout(ctx context.Context) error {
	return c.do(ctx, http.MethodPost, "/logout", nil, nil, false)
}

// Predict submits the property attributes and returns the predicted price.
// The input map is passed through opaquely; the backend validates it.
// Predictions are recorded server-side, so the call is never retried.
func (c *Client) Predict(ctx context.Context, input map[string]any) (Result, error) {
	var result Result
	err := c.do(ctx, http.MethodPost, "/predict", input, &result, false)
	return result, err
}

// History lists the backend's own prediction records for the current user.
// These are separate from the local history and never reconciled with it.
func (c *Client) History(ctx context.Context) ([]RemoteRecord, error) {
	var records []RemoteRecord
	err := c.do(ctx, http.MethodGet, "/history", nil, &records, true)
	return records, err
}

// DeleteHistory removes one server-side prediction record.
func (c *Client) DeleteHistory(ctx context.Context, id int64) error {
	return c.do(ctx, http.MethodDelete, fmt.Sprintf("/history/%d", id), nil, nil, false)
}

// ToggleFavorite flips the favorite flag of a server-side record and returns
// the new value.
func (c *Client) ToggleFavorite(ctx context.Context, id int64) (bool, error) {
	var resp struct {
		Message  string `json:"message"`
		Favorite bool   `json:"favorite"`
	}
	err := c.do(ctx, http.MethodPut, fmt.Sprintf("/history/%d/favorite", id), nil, &resp, false)
	return resp.Favorite, err
}
