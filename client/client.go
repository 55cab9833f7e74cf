// Package client talks to the rescuehub REST API and maps failures back into
// the shared error taxonomy.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"rescuehub/errs"
	"rescuehub/logger"
	"rescuehub/models"
	"rescuehub/services"
)

// APIClient handles all HTTP communication with the rescuehub server.
type APIClient struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// NewAPIClient creates a client for baseURL authenticating with token.
func NewAPIClient(baseURL, token string, timeout time.Duration) *APIClient {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &APIClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
		httpClient: &http.Client{Timeout: timeout},
	}
}

type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Code    string          `json:"code"`
	Data    json.RawMessage `json:"data"`
}

// request is the core HTTP request method. result receives the envelope's
// data field.
func (c *APIClient) request(ctx context.Context, method, endpoint string, body, result interface{}) error {
	u := c.baseURL + endpoint
	start := time.Now()
	logger.Debug("Starting %s request to %s", method, u)

	var requestBody io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return errs.Wrap(errs.Validation, "could not encode request", err)
		}
		requestBody = bytes.NewReader(jsonBody)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, requestBody)
	if err != nil {
		return errs.Wrap(errs.Internal, "could not build request", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		logger.Debug("Request to %s failed after %v: %v", u, time.Since(start), err)
		return errs.Wrap(errs.Network, "server unreachable", err)
	}
	defer resp.Body.Close()
	logger.Debug("Request to %s completed in %v with status %d", u, time.Since(start), resp.StatusCode)

	var env envelope
	decodeErr := json.NewDecoder(resp.Body).Decode(&env)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return errorFor(resp.StatusCode, env, decodeErr)
	}
	if decodeErr != nil {
		return errs.Wrap(errs.Network, "malformed server response", decodeErr)
	}
	if result != nil && len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, result); err != nil {
			return errs.Wrap(errs.Network, "malformed server response", err)
		}
	}
	return nil
}

// errorFor converts a failed response. Server-side and throttling failures
// are transient; everything else is the server's final answer.
func errorFor(status int, env envelope, decodeErr error) error {
	msg := env.Message
	if decodeErr != nil || msg == "" {
		msg = http.StatusText(status)
	}
	if status >= 500 || status == http.StatusTooManyRequests {
		return errs.New(errs.Network, msg)
	}
	switch errs.Kind(env.Code) {
	case errs.Validation, errs.Permission, errs.State, errs.Capacity, errs.Duplicate, errs.NotFound:
		return errs.New(errs.Kind(env.Code), msg)
	}
	switch status {
	case http.StatusUnauthorized, http.StatusForbidden:
		return errs.New(errs.Permission, msg)
	case http.StatusNotFound:
		return errs.New(errs.NotFound, msg)
	case http.StatusConflict:
		return errs.New(errs.State, msg)
	default:
		return errs.New(errs.Validation, msg)
	}
}

// Ping checks that the server answers its health endpoint.
func (c *APIClient) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return errs.Wrap(errs.Network, "server unreachable", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return errs.Newf(errs.Network, "ping failed with status %d", resp.StatusCode)
	}
	return nil
}

func (c *APIClient) ListTasks(ctx context.Context, status models.TaskStatus) ([]models.RescueTask, error) {
	endpoint := "/v1/tasks"
	if status != "" {
		endpoint += "?" + url.Values{"status": {string(status)}}.Encode()
	}
	var tasks []models.RescueTask
	if err := c.request(ctx, http.MethodGet, endpoint, nil, &tasks); err != nil {
		return nil, err
	}
	return tasks, nil
}

func (c *APIClient) GetTask(ctx context.Context, id uint) (*models.RescueTask, error) {
	return c.task(ctx, http.MethodGet, fmt.Sprintf("/v1/tasks/%d", id), nil)
}

func (c *APIClient) CreateTask(ctx context.Context, p services.CreateTaskParams) (*models.RescueTask, error) {
	return c.task(ctx, http.MethodPost, "/v1/tasks", p)
}

// ApplyClaim applies as the token's user.
func (c *APIClient) ApplyClaim(ctx context.Context, taskID uint) (*models.RescueTask, error) {
	return c.task(ctx, http.MethodPost, fmt.Sprintf("/v1/tasks/%d/claims", taskID), nil)
}

func (c *APIClient) ApproveClaim(ctx context.Context, taskID, applicantID uint) (*models.RescueTask, error) {
	return c.task(ctx, http.MethodPost, fmt.Sprintf("/v1/tasks/%d/claims/%d/approve", taskID, applicantID), nil)
}

func (c *APIClient) CompleteClaim(ctx context.Context, taskID uint, note string) (*models.RescueTask, error) {
	return c.task(ctx, http.MethodPost, fmt.Sprintf("/v1/tasks/%d/complete", taskID), map[string]string{"note": note})
}

func (c *APIClient) CancelTask(ctx context.Context, taskID uint) (*models.RescueTask, error) {
	return c.task(ctx, http.MethodPost, fmt.Sprintf("/v1/tasks/%d/cancel", taskID), nil)
}

func (c *APIClient) CreatorForceComplete(ctx context.Context, taskID uint) (*models.RescueTask, error) {
	return c.task(ctx, http.MethodPost, fmt.Sprintf("/v1/tasks/%d/force-complete", taskID), nil)
}

func (c *APIClient) MyClaims(ctx context.Context) ([]models.TaskClaim, error) {
	var claims []models.TaskClaim
	if err := c.request(ctx, http.MethodGet, "/v1/me/claims", nil, &claims); err != nil {
		return nil, err
	}
	return claims, nil
}

func (c *APIClient) task(ctx context.Context, method, endpoint string, body interface{}) (*models.RescueTask, error) {
	var task models.RescueTask
	if err := c.request(ctx, method, endpoint, body, &task); err != nil {
		return nil, err
	}
	return &task, nil
}
