// Package detection talks to the AI-content-detection vendor that scans uploaded audio.
package detection

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/alera-fm/alera-backend/pkg/enums"
	pkgerrors "github.com/alera-fm/alera-backend/pkg/errors"
)

const (
	defaultTimeout     = 30 * time.Second
	errorBodyReadLimit = 1024
	submitPath         = "jobs"
	statusPathTemplate = "jobs/%s"
)

var (
	errAPIKeyRequired  = errors.New("detection api key is required")
	errBaseURLRequired = errors.New("detection base url is required")
)

// Client submits audio for scanning and polls job status.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
}

type Option func(*Client)

func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithTimeout sets the per-request timeout on the default HTTP client.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if timeout > 0 && c.httpClient != nil {
			c.httpClient.Timeout = timeout
		}
	}
}

// NewClient validates credentials up front so a misconfigured vendor is caught at boot.
func NewClient(apiKey, baseURL string, opts ...Option) (*Client, error) {
	trimmedKey := strings.TrimSpace(apiKey)
	if trimmedKey == "" {
		return nil, errAPIKeyRequired
	}
	trimmedURL := strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if trimmedURL == "" {
		return nil, errBaseURLRequired
	}
	if _, err := url.ParseRequestURI(trimmedURL); err != nil {
		return nil, fmt.Errorf("invalid detection base url: %w", err)
	}

	client := &Client{
		apiKey:     trimmedKey,
		baseURL:    trimmedURL,
		httpClient: &http.Client{Timeout: defaultTimeout},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(client)
		}
	}
	return client, nil
}

// Result is the vendor verdict attached to a finished job.
type Result struct {
	Flagged      bool            `json:"flagged"`
	Confidence   decimal.Decimal `json:"confidence"`
	ModelVersion string          `json:"model_version,omitempty"`
}

// JobStatus is the vendor's view of one scan job.
type JobStatus struct {
	Status enums.VendorJobStatus `json:"status"`
	Result *Result               `json:"result,omitempty"`
	Error  string                `json:"error,omitempty"`
}

// Submit hands the audio URL to the vendor and returns its job id.
func (c *Client) Submit(ctx context.Context, audioURL string) (string, error) {
	if c == nil {
		return "", pkgerrors.New(pkgerrors.CodeDependency, "detection client not configured")
	}
	trimmed := strings.TrimSpace(audioURL)
	if trimmed == "" {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "audio url is required")
	}

	payload, err := json.Marshal(map[string]string{"audio_url": trimmed})
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "marshal submit request")
	}

	var apiResp struct {
		JobID string `json:"job_id"`
	}
	if err := c.do(ctx, http.MethodPost, submitPath, payload, &apiResp); err != nil {
		return "", err
	}
	if strings.TrimSpace(apiResp.JobID) == "" {
		return "", pkgerrors.New(pkgerrors.CodeDependency, "detection vendor returned an empty job id")
	}
	return apiResp.JobID, nil
}

// GetStatus fetches the current state of jobID.
func (c *Client) GetStatus(ctx context.Context, jobID string) (JobStatus, error) {
	if c == nil {
		return JobStatus{}, pkgerrors.New(pkgerrors.CodeDependency, "detection client not configured")
	}
	trimmed := strings.TrimSpace(jobID)
	if trimmed == "" {
		return JobStatus{}, pkgerrors.New(pkgerrors.CodeValidation, "job id is required")
	}

	var status JobStatus
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf(statusPathTemplate, url.PathEscape(trimmed)), nil, &status); err != nil {
		return JobStatus{}, err
	}
	if !status.Status.IsValid() {
		return JobStatus{}, pkgerrors.Newf(pkgerrors.CodeDependency, "detection vendor returned unknown status %q", status.Status)
	}
	return status, nil
}

func (c *Client) do(ctx context.Context, method, path string, body []byte, out any) error {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, c.buildURL(path), reader)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "build detection request")
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	httpReq.Header.Set("Accept", "application/json")
	if body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "execute detection request")
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, errorBodyReadLimit))
		code := pkgerrors.CodeDependency
		if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
			code = pkgerrors.CodeUnauthorized
		}
		return pkgerrors.Wrap(code, fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg))), "detection request failed")
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode detection response")
	}
	return nil
}

func (c *Client) buildURL(path string) string {
	return fmt.Sprintf("%s/%s", c.baseURL, strings.TrimLeft(path, "/"))
}
