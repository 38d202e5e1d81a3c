package admin

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"
)

// Client talks to the backend's admin surface. Admin sessions are separate
// from user sessions and use their own token.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// New creates an admin client for the backend at baseURL.
func New(baseURL, token string) *Client {
	return &Client{
		baseURL:    baseURL,
		token:      token,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// SetToken replaces the admin session token.
func (c *Client) SetToken(token string) {
	c.token = token
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshalling request: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return err
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		var errBody struct {
			Error string `json:"error"`
		}
		if json.NewDecoder(resp.Body).Decode(&errBody) == nil && errBody.Error != "" {
			return fmt.Errorf("server returned %d: %s", resp.StatusCode, errBody.Error)
		}
		return fmt.Errorf("server returned %d", resp.StatusCode)
	}

	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// Login authenticates an admin and installs the returned token.
func (c *Client) Login(ctx context.Context, email, password string) (Session, error) {
	body := map[string]string{"email": email, "password": password}
	var session Session
	if err := c.do(ctx, http.MethodPost, "/admin/login", body, &session); err != nil {
		return Session{}, err
	}
	c.token = session.Token
	return session, nil
}

// Me returns the authenticated admin.
func (c *Client) Me(ctx context.Context) (Admin, error) {
	var a Admin
	err := c.do(ctx, http.MethodGet, "/admin/me", nil, &a)
	return a, err
}

// Logout invalidates the admin session.
func (c *Client) Logout(ctx context.Context) error {
	return c.do(ctx, http.MethodPost, "/admin/logout", nil, nil)
}

// Users lists all registered users with their prediction counts.
func (c *Client) Users(ctx context.Context) ([]User, error) {
	var users []User
	err := c.do(ctx, http.MethodGet, "/admin/users", nil, &users)
	return users, err
}

// ToggleBlock flips a user's blocked flag and returns the new value.
func (c *Client) ToggleBlock(ctx context.Context, userID int64) (bool, error) {
	var resp struct {
		Message   string `json:"message"`
		IsBlocked bool   `json:"is_blocked"`
	}
	err := c.do(ctx, http.MethodPut, fmt.Sprintf("/admin/users/%d/block", userID), nil, &resp)
	return resp.IsBlocked, err
}

// DeleteUser removes a user account.
func (c *Client) DeleteUser(ctx context.Context, userID int64) error {
	return c.do(ctx, http.MethodDelete, fmt.Sprintf("/admin/users/%d", userID), nil, nil)
}

// Predictions lists every prediction across all users, newest first.
func (c *Client) Predictions(ctx context.Context) ([]Prediction, error) {
	var predictions []Prediction
	err := c.do(ctx, http.MethodGet, "/admin/predictions", nil, &predictions)
	return predictions, err
}

// DeletePrediction removes one prediction record.
func (c *Client) DeletePrediction(ctx context.Context, id int64) error {
	return c.do(ctx, http.MethodDelete, fmt.Sprintf("/admin/predictions/%d", id), nil, nil)
}

// Stats returns aggregate dashboard statistics.
func (c *Client) Stats(ctx context.Context) (Stats, error) {
	var stats Stats
	err := c.do(ctx, http.MethodGet, "/admin/stats", nil, &stats)
	return stats, err
}

// ModelInfo returns metadata about the deployed prediction model.
func (c *Client) ModelInfo(ctx context.Context) (ModelInfo, error) {
	var info ModelInfo
	err := c.do(ctx, http.MethodGet, "/admin/model-info", nil, &info)
	return info, err
}

// Dashboard aggregates stats, users, and predictions. The three endpoints are
// fetched concurrently; the first failure cancels the rest.
func (c *Client) Dashboard(ctx context.Context) (Dashboard, error) {
	var dash Dashboard

	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		stats, err := c.Stats(gCtx)
		if err != nil {
			return fmt.Errorf("fetching stats: %w", err)
		}
		dash.Stats = stats
		return nil
	})
	g.Go(func() error {
		users, err := c.Users(gCtx)
		if err != nil {
			return fmt.Errorf("fetching users: %w", err)
		}
		dash.Users = users
		return nil
	})
	g.Go(func() error {
		predictions, err := c.Predictions(gCtx)
		if err != nil {
			return fmt.Errorf("fetching predictions: %w", err)
		}
		dash.Predictions = predictions
		return nil
	})

	if err := g.Wait(); err != nil {
		return Dashboard{}, err
	}
	return dash, nil
}
