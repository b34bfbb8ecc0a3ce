package client

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/tatematsu-k/github-dashboard/internal/domain"
	"github.com/tatematsu-k/github-dashboard/internal/storage"
)

// Client is the API client for the github-dashboard collection service
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a new API client
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// GetLatestResult retrieves the most recent collection result
func (c *Client) GetLatestResult() (*domain.CollectionResult, error) {
	var response struct {
		Data *domain.CollectionResult `json:"data"`
	}
	if err := c.get("/api/v1/result/latest", nil, &response); err != nil {
		return nil, err
	}
	return response.Data, nil
}

// GetRun retrieves one collection result by run id
func (c *Client) GetRun(runID string) (*domain.CollectionResult, error) {
	var response struct {
		Data *domain.CollectionResult `json:"data"`
	}
	if err := c.get("/api/v1/runs/"+url.PathEscape(runID), nil, &response); err != nil {
		return nil, err
	}
	return response.Data, nil
}

// ListRuns retrieves run summaries, newest first
func (c *Client) ListRuns(limit int) ([]*storage.RunMeta, error) {
	params := url.Values{}
	if limit > 0 {
		params.Set("limit", strconv.Itoa(limit))
	}

	var response struct {
		Data []*storage.RunMeta `json:"data"`
	}
	if err := c.get("/api/v1/runs", params, &response); err != nil {
		return nil, err
	}
	return response.Data, nil
}

// TriggerCollect starts a collection run on the server
func (c *Client) TriggerCollect() error {
	resp, err := c.httpClient.Post(c.baseURL+"/api/v1/collect", "application/json", nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusAccepted {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("API error: %s - %s", resp.Status, string(body))
	}
	return nil
}

// HealthCheck checks if the API is healthy
func (c *Client) HealthCheck() error {
	var response struct {
		Status string `json:"status"`
	}
	if err := c.get("/health", nil, &response); err != nil {
		return err
	}
	if response.Status != "ok" {
		return fmt.Errorf("unhealthy status: %s", response.Status)
	}
	return nil
}

func (c *Client) get(path string, params url.Values, result interface{}) error {
	u, err := url.Parse(c.baseURL + path)
	if err != nil {
		return err
	}
	if params != nil {
		u.RawQuery = params.Encode()
	}

	resp, err := c.httpClient.Get(u.String())
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("API error: %s - %s", resp.Status, string(body))
	}

	return json.NewDecoder(resp.Body).Decode(result)
}
