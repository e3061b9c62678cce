package workspace

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

const (
	runtimesPath   = "/api/2.0/clusters/spark-versions"
	listJobsPath   = "/api/2.1/jobs/list"
	getJobPath     = "/api/2.1/jobs/get"
	updateJobPath  = "/api/2.1/jobs/update"
	createJobPath  = "/api/2.1/jobs/create"
	defaultTimeout = 60 * time.Second
	defaultPage    = 25
)

// API is the part of the workspace REST API the job workflows use.
type API interface {
	ListRuntimes(ctx context.Context) ([]Runtime, error)
	ListJobs(ctx context.Context) ([]Job, error)
	GetJob(ctx context.Context, jobID int64) (*Job, error)
	UpdateJob(ctx context.Context, jobID int64, patch SettingsPatch) error
	CreateJob(ctx context.Context, body []byte) (int64, error)
}

// Client is an authenticated client for the workspace REST API.
type Client struct {
	baseURL  string
	token    string
	pageSize int
	http     *http.Client
	logger   zerolog.Logger
}

// NewClient returns a client for baseURL. A zero timeout selects the default.
func NewClient(baseURL, token string, timeout time.Duration, logger zerolog.Logger) *Client {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{
		baseURL:  strings.TrimRight(baseURL, "/"),
		token:    token,
		pageSize: defaultPage,
		http:     &http.Client{Timeout: timeout},
		logger:   logger,
	}
}

// SetPageSize sets the limit sent with each jobs/list request.
func (c *Client) SetPageSize(n int) {
	if n > 0 {
		c.pageSize = n
	}
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body []byte) ([]byte, error) {
	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	c.logger.Debug().Str("method", method).Str("path", path).Msg("calling workspace api")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, newAPIError(method, path, resp.StatusCode, respBody)
	}
	return respBody, nil
}

// ListRuntimes fetches the runtimes offered by the workspace, unsorted.
func (c *Client) ListRuntimes(ctx context.Context) ([]Runtime, error) {
	body, err := c.do(ctx, http.MethodGet, runtimesPath, nil, nil)
	if err != nil {
		return nil, err
	}
	var resp struct {
		Versions []Runtime `json:"versions"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("parse runtimes: %w", err)
	}
	return resp.Versions, nil
}

type listJobsResponse struct {
	Jobs          []Job  `json:"jobs"`
	HasMore       bool   `json:"has_more"`
	NextPageToken string `json:"next_page_token"`
}

// ListJobs returns every job summary, following page tokens until the API
// reports no more pages.
func (c *Client) ListJobs(ctx context.Context) ([]Job, error) {
	var (
		all   []Job
		token string
		seen  = map[string]bool{}
	)
	for {
		query := url.Values{}
		query.Set("limit", strconv.Itoa(c.pageSize))
		query.Set("expand_tasks", "false")
		if token != "" {
			query.Set("page_token", token)
		}

		body, err := c.do(ctx, http.MethodGet, listJobsPath, query, nil)
		if err != nil {
			return nil, err
		}
		var page listJobsResponse
		if err := json.Unmarshal(body, &page); err != nil {
			return nil, fmt.Errorf("parse job list: %w", err)
		}
		all = append(all, page.Jobs...)

		if !page.HasMore || page.NextPageToken == "" || seen[page.NextPageToken] {
			return all, nil
		}
		seen[page.NextPageToken] = true
		token = page.NextPageToken
	}
}

// GetJob fetches the full job. The returned Job carries the raw Document.
func (c *Client) GetJob(ctx context.Context, jobID int64) (*Job, error) {
	query := url.Values{}
	query.Set("job_id", strconv.FormatInt(jobID, 10))

	body, err := c.do(ctx, http.MethodGet, getJobPath, query, nil)
	if err != nil {
		return nil, err
	}

	var job Job
	if err := json.Unmarshal(body, &job); err != nil {
		return nil, fmt.Errorf("parse job %d: %w", jobID, err)
	}
	if err := decodeJSON(body, &job.Document); err != nil {
		return nil, fmt.Errorf("parse job %d: %w", jobID, err)
	}
	return &job, nil
}

type updateRequest struct {
	JobID       int64         `json:"job_id"`
	NewSettings SettingsPatch `json:"new_settings"`
}

// UpdateJob sends a partial update. Only job_clusters is replaced.
func (c *Client) UpdateJob(ctx context.Context, jobID int64, patch SettingsPatch) error {
	body, err := json.Marshal(updateRequest{JobID: jobID, NewSettings: patch})
	if err != nil {
		return fmt.Errorf("marshal update for job %d: %w", jobID, err)
	}
	_, err = c.do(ctx, http.MethodPost, updateJobPath, nil, body)
	return err
}

// CreateJob submits body verbatim and returns the id the workspace assigned.
func (c *Client) CreateJob(ctx context.Context, body []byte) (int64, error) {
	respBody, err := c.do(ctx, http.MethodPost, createJobPath, nil, body)
	if err != nil {
		return 0, err
	}
	var resp struct {
		JobID int64 `json:"job_id"`
	}
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return 0, fmt.Errorf("parse create response: %w", err)
	}
	return resp.JobID, nil
}
