package backend

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

	"github.com/rs/zerolog"

	serrors "github.com/sitetrack/schedule-engine/internal/errors"
	"github.com/sitetrack/schedule-engine/internal/milestone"
	"github.com/sitetrack/schedule-engine/internal/requestid"
	"github.com/sitetrack/schedule-engine/internal/retry"
)

// HTTPClient abstracts HTTP calls for testing.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client talks to the hosted milestone service over REST.
type Client struct {
	baseURL    string
	httpClient HTTPClient
	auth       Authenticator
	retryCfg   retry.Config
	logger     zerolog.Logger
}

const serviceName = "milestones"

var _ Service = (*Client)(nil)

// NewClient creates a milestone service client.
func NewClient(baseURL string, auth Authenticator, logger zerolog.Logger) *Client {
	return &Client{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{Timeout: 30 * time.Second},
		auth:       auth,
		retryCfg:   retry.DefaultConfig(),
		logger:     logger.With().Str("component", "backend").Logger(),
	}
}

// SetHTTPClient sets a custom HTTP client (for testing).
func (c *Client) SetHTTPClient(hc HTTPClient) {
	c.httpClient = hc
}

// SetRetryConfig overrides the default backoff policy.
func (c *Client) SetRetryConfig(cfg retry.Config) {
	c.retryCfg = cfg
}

// GetByProject fetches the full milestone list for a project.
func (c *Client) GetByProject(ctx context.Context, projectID string) ([]milestone.Milestone, error) {
	var out []milestone.Milestone
	path := "/v1/projects/" + url.PathEscape(projectID) + "/milestones"
	err := retry.Do(ctx, c.retryCfg, func(ctx context.Context) error {
		resp, err := c.do(ctx, http.MethodGet, path, nil)
		if err != nil {
			return err
		}
		return decodeResponse(resp, &out)
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Create persists a new milestone and returns the stored entity with its
// server-assigned id.
func (c *Client) Create(ctx context.Context, input CreateInput, userID string) (milestone.Milestone, error) {
	body := struct {
		CreateInput
		UserID string `json:"user_id"`
	}{CreateInput: input, UserID: userID}

	var out milestone.Milestone
	path := "/v1/projects/" + url.PathEscape(input.ProjectID) + "/milestones"
	err := retry.Do(ctx, c.retryCfg, func(ctx context.Context) error {
		resp, err := c.doJSON(ctx, http.MethodPost, path, body)
		if err != nil {
			return err
		}
		return decodeResponse(resp, &out)
	})
	if err != nil {
		return milestone.Milestone{}, err
	}
	return out, nil
}

// Update applies a partial write to one milestone.
func (c *Client) Update(ctx context.Context, id string, u Update) error {
	path := "/v1/milestones/" + url.PathEscape(id)
	return retry.Do(ctx, c.retryCfg, func(ctx context.Context) error {
		resp, err := c.doJSON(ctx, http.MethodPatch, path, u)
		if err != nil {
			return err
		}
		return drain(resp)
	})
}

// Delete removes a milestone.
func (c *Client) Delete(ctx context.Context, id string) error {
	path := "/v1/milestones/" + url.PathEscape(id)
	return retry.Do(ctx, c.retryCfg, func(ctx context.Context) error {
		resp, err := c.do(ctx, http.MethodDelete, path, nil)
		if err != nil {
			return err
		}
		return drain(resp)
	})
}

// GetProjectDateRange fetches the configured range, or nil if the project
// has no timeline yet (the backend answers 404 or a JSON null).
func (c *Client) GetProjectDateRange(ctx context.Context, projectID string) (*milestone.DateRange, error) {
	var out *milestone.DateRange
	path := "/v1/projects/" + url.PathEscape(projectID) + "/date-range"
	err := retry.Do(ctx, c.retryCfg, func(ctx context.Context) error {
		resp, err := c.do(ctx, http.MethodGet, path, nil)
		if err != nil {
			return err
		}
		return decodeResponse(resp, &out)
	})
	if err != nil {
		if serrors.IsNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	return out, nil
}

// UpdateProjectDateRange stores the project range.
func (c *Client) UpdateProjectDateRange(ctx context.Context, projectID string, rng milestone.DateRange) error {
	path := "/v1/projects/" + url.PathEscape(projectID) + "/date-range"
	return retry.Do(ctx, c.retryCfg, func(ctx context.Context) error {
		resp, err := c.doJSON(ctx, http.MethodPut, path, rng)
		if err != nil {
			return err
		}
		return drain(resp)
	})
}

// Ping checks backend reachability, for readiness probes.
func (c *Client) Ping(ctx context.Context) error {
	resp, err := c.do(ctx, http.MethodGet, "/v1/ping", nil)
	if err != nil {
		return err
	}
	return drain(resp)
}

// do executes an authenticated request and maps non-2xx answers onto the
// error taxonomy.
func (c *Client) do(ctx context.Context, method, path string, body io.Reader) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if id := requestid.From(ctx); id != "" {
		req.Header.Set(requestid.Header, id)
	}

	if c.auth != nil {
		if err := c.auth.Apply(req); err != nil {
			return nil, fmt.Errorf("applying auth: %w", err)
		}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &serrors.APIError{Service: serviceName, Message: "request failed", Err: err}
	}

	if resp.StatusCode >= 400 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		resp.Body.Close()
		c.logger.Warn().
			Str("method", method).
			Str("path", path).
			Str("request_id", requestid.From(ctx)).
			Int("status", resp.StatusCode).
			Msg("backend call failed")
		return nil, serrors.NewAPIError(serviceName, resp.StatusCode, strings.TrimSpace(string(respBody)))
	}

	return resp, nil
}

func (c *Client) doJSON(ctx context.Context, method, path string, body interface{}) (*http.Response, error) {
	buf, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("encoding request body: %w", err)
	}
	return c.do(ctx, method, path, bytes.NewReader(buf))
}

// decodeResponse reads and decodes a JSON response.
func decodeResponse(resp *http.Response, v interface{}) error {
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}

// drain discards a response body so the connection can be reused.
func drain(resp *http.Response) error {
	defer resp.Body.Close()
	_, err := io.Copy(io.Discard, resp.Body)
	return err
}
