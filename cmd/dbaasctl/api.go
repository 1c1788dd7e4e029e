// ABOUTME: HTTP client for communicating with the dbaasd control API.
// ABOUTME: Adds caller identity headers and decodes JSON responses.

package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	defaultControlAddr    = "127.0.0.1:8833"
	defaultRequestTimeout = 30 * time.Second
	maxJSONResponseBytes  = 4 << 20
)

// identityFlags carries the caller identity forwarded to dbaasd.
type identityFlags struct {
	account      string
	user         string
	installation string
	admin        bool
}

// apiClient is an HTTP client for the dbaasd control API.
type apiClient struct {
	baseURL    string
	identity   identityFlags
	httpClient *http.Client
}

// apiErrorPayload is an error response from the control API.
type apiErrorPayload struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

type refPayload struct {
	ID string `json:"id"`
}

type actorPayload struct {
	ID   string `json:"id"`
	Name string `json:"name,omitempty"`
}

type eventPayload struct {
	At string        `json:"at"`
	By *actorPayload `json:"by,omitempty"`
}

type contactPayload struct {
	ID    string `json:"id"`
	Name  string `json:"name,omitempty"`
	Email string `json:"email,omitempty"`
}

type credentialsPayload struct {
	Host     string `json:"host"`
	Username string `json:"username"`
	Password string `json:"password"`
	Name     string `json:"name,omitempty"`
}

type databaseResponse struct {
	ID          string                  `json:"id"`
	Name        string                  `json:"name"`
	Description string                  `json:"description"`
	Workload    string                  `json:"workload"`
	Status      string                  `json:"status"`
	Owner       refPayload              `json:"owner"`
	Region      refPayload              `json:"region"`
	TechContact contactPayload          `json:"tech_contact"`
	Case        *refPayload             `json:"case,omitempty"`
	Events      map[string]eventPayload `json:"events"`
	Credentials *credentialsPayload     `json:"credentials,omitempty"`
	CreatedAt   string                  `json:"created_at"`
	UpdatedAt   string                  `json:"updated_at"`
}

type databaseListResponse struct {
	Databases []databaseResponse `json:"databases"`
}

type regionResponse struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type regionListResponse struct {
	Regions []regionResponse `json:"regions"`
}

type statusResponse struct {
	Version   string         `json:"version"`
	Databases map[string]int `json:"databases"`
}

func newAPIClient(addr string, identity identityFlags, timeout time.Duration) *apiClient {
	if addr == "" {
		addr = defaultControlAddr
	}
	if timeout <= 0 {
		timeout = defaultRequestTimeout
	}
	return &apiClient{
		baseURL:    "http://" + strings.TrimSuffix(addr, "/"),
		identity:   identity,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// doJSON performs a request against the control API and decodes the JSON
// response into out (which may be nil).
func (c *apiClient) doJSON(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.identity.account != "" {
		req.Header.Set("X-Account-Id", c.identity.account)
	}
	if c.identity.user != "" {
		req.Header.Set("X-User-Id", c.identity.user)
	}
	if c.identity.installation != "" {
		req.Header.Set("X-Installation-Id", c.identity.installation)
	}
	if c.identity.admin {
		req.Header.Set("X-Call-Type", "admin")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("dbaasd unreachable at %s: %w", c.baseURL, err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, maxJSONResponseBytes))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode >= 400 {
		var apiErr apiErrorPayload
		if json.Unmarshal(payload, &apiErr) == nil && apiErr.Error != "" {
			if apiErr.Details != "" {
				return fmt.Errorf("%s (%s)", apiErr.Error, apiErr.Details)
			}
			return fmt.Errorf("%s", apiErr.Error)
		}
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(payload, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
