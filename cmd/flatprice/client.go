package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/ShalihaZarook05/Flat-price-prediction/internal/admin"
	"github.com/ShalihaZarook05/Flat-price-prediction/internal/config"
	"github.com/ShalihaZarook05/Flat-price-prediction/internal/predictor"
)

// apiClient talks to the local flatprice server over the loopback API.
type apiClient struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

var newAPIClient = func() (*apiClient, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	token, err := config.EnsureLocalAPIToken()
	if err != nil {
		return nil, fmt.Errorf("getting local API token: %w", err)
	}

	return &apiClient{
		baseURL:    fmt.Sprintf("http://127.0.0.1:%d", cfg.Server.Port),
		token:      token,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}, nil
}

func (c *apiClient) do(ctx context.Context, method, path string, body any) (*http.Response, error) {
	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshalling request: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("server not reachable — is flatprice serve running? (%w)", err)
	}
	return resp, nil
}

func (c *apiClient) get(ctx context.Context, path string) (*http.Response, error) {
	return c.do(ctx, "GET", path, nil)
}

func (c *apiClient) post(ctx context.Context, path string, body any) (*http.Response, error) {
	return c.do(ctx, "POST", path, body)
}

func (c *apiClient) put(ctx context.Context, path string, body any) (*http.Response, error) {
	return c.do(ctx, "PUT", path, body)
}

func (c *apiClient) delete(ctx context.Context, path string) (*http.Response, error) {
	return c.do(ctx, "DELETE", path, nil)
}

func decodeJSON(resp *http.Response, v any) error {
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("server returned %d (failed to read body: %w)", resp.StatusCode, err)
		}
		return fmt.Errorf("server returned %d: %s", resp.StatusCode, string(body))
	}
	return json.NewDecoder(resp.Body).Decode(v)
}

// backendTimeout parses the configured backend timeout, falling back to 30s.
func backendTimeout(cfg config.Config) time.Duration {
	timeout, err := time.ParseDuration(cfg.Backend.Timeout)
	if err != nil {
		printWarning("invalid backend timeout %q, using 30s", cfg.Backend.Timeout)
		return 30 * time.Second
	}
	return timeout
}

// newBackendClient builds a client for the remote prediction backend. The
// session token is attached when one is stored; unauthenticated calls like
// register and login work without it.
var newBackendClient = func() (*predictor.Client, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	token, _ := config.GetSecret(config.SecretSessionToken)
	return predictor.New(predictor.Options{
		BaseURL:        cfg.Backend.BaseURL,
		Token:          token,
		Timeout:        backendTimeout(cfg),
		RequestsPerSec: cfg.Backend.RequestsPerSec,
	}), nil
}

// newAdminClient builds a client for the backend's admin surface.
var newAdminClient = func() (*admin.Client, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	token, _ := config.GetSecret(config.SecretAdminToken)
	return admin.New(cfg.Backend.BaseURL, token), nil
}
