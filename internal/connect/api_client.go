// ABOUTME: This file implements the Client interface against the
// platform's REST API using bearer-token authentication.
package connect

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

const defaultRequestTimeout = 30 * time.Second

// APIClient implements Client using the platform REST API.
type APIClient struct {
	// HTTPClient is optional; a timeout-configured client is used when nil.
	HTTPClient *http.Client
	// BaseURL is the API root, e.g. "https://api.platform.example/public/v1".
	BaseURL string
	// Token is the bearer token used for every request.
	Token string
}

var _ Client = (*APIClient)(nil)

// GetAccountUser resolves a user within an account.
func (c *APIClient) GetAccountUser(ctx context.Context, accountID, userID string) (User, error) {
	if accountID == "" || userID == "" {
		return User{}, errors.New("account id and user id are required")
	}
	endpoint := fmt.Sprintf("/accounts/%s/users/%s", url.PathEscape(accountID), url.PathEscape(userID))
	body, err := c.doGet(ctx, endpoint)
	if err != nil {
		return User{}, err
	}
	var user User
	if err := json.Unmarshal(body, &user); err != nil {
		return User{}, fmt.Errorf("parse user: %w", err)
	}
	return user, nil
}

// GetInstallation resolves an installation and flattens the
// extension-owner account out of the nested payload.
func (c *APIClient) GetInstallation(ctx context.Context, installationID string) (Installation, error) {
	if installationID == "" {
		return Installation{}, errors.New("installation id is required")
	}
	endpoint := "/devops/installations/" + url.PathEscape(installationID)
	body, err := c.doGet(ctx, endpoint)
	if err != nil {
		return Installation{}, err
	}
	var payload struct {
		ID          string `json:"id"`
		Environment struct {
			Extension struct {
				Owner struct {
					ID string `json:"id"`
				} `json:"owner"`
			} `json:"extension"`
		} `json:"environment"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return Installation{}, fmt.Errorf("parse installation: %w", err)
	}
	installation := Installation{
		ID:             payload.ID,
		OwnerAccountID: payload.Environment.Extension.Owner.ID,
	}
	if installation.OwnerAccountID == "" {
		return Installation{}, ErrOwnerUnknown
	}
	return installation, nil
}

// CreateCase opens a helpdesk case.
func (c *APIClient) CreateCase(ctx context.Context, req CaseRequest) (Case, error) {
	body, err := c.doPost(ctx, "/helpdesk/cases", req)
	if err != nil {
		return Case{}, err
	}
	var helpdeskCase Case
	if err := json.Unmarshal(body, &helpdeskCase); err != nil {
		return Case{}, fmt.Errorf("parse case: %w", err)
	}
	if helpdeskCase.ID == "" {
		return Case{}, errors.New("platform returned case without id")
	}
	return helpdeskCase, nil
}

// ResolveCase closes a helpdesk case.
func (c *APIClient) ResolveCase(ctx context.Context, caseID string) error {
	if caseID == "" {
		return errors.New("case id is required")
	}
	endpoint := "/helpdesk/cases/" + url.PathEscape(caseID) + "/resolve"
	_, err := c.doPost(ctx, endpoint, nil)
	return err
}

func (c *APIClient) doGet(ctx context.Context, endpoint string) ([]byte, error) {
	return c.doRequest(ctx, http.MethodGet, endpoint, nil)
}

func (c *APIClient) doPost(ctx context.Context, endpoint string, payload any) ([]byte, error) {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("marshal request: %w", err)
		}
		body = bytes.NewReader(data)
	}
	return c.doRequest(ctx, http.MethodPost, endpoint, body)
}

func (c *APIClient) doRequest(ctx context.Context, method, endpoint string, body io.Reader) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+endpoint, body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.client().Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, fmt.Errorf("%s %s: %w", method, endpoint, ErrNotFound)
	case resp.StatusCode >= http.StatusMultipleChoices:
		return nil, &APIError{StatusCode: resp.StatusCode, Message: errorMessage(respBody)}
	}
	return respBody, nil
}

func (c *APIClient) client() *http.Client {
	if c.HTTPClient != nil {
		return c.HTTPClient
	}
	return &http.Client{Timeout: defaultRequestTimeout}
}

func errorMessage(body []byte) string {
	var payload struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if json.Unmarshal(body, &payload) == nil {
		if payload.Message != "" {
			return payload.Message
		}
		if payload.Error != "" {
			return payload.Error
		}
	}
	return ""
}
