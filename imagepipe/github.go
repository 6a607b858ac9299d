// Package imagepipe submits listings to the external image pipeline: a
// GitHub Actions workflow that downloads, deduplicates, and classifies
// listing photos. The pipeline core's responsibility ends at the submit;
// retries of the remote job itself belong to the workflow.
package imagepipe

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"cian-scraper/utils"
)

const defaultBaseURL = "https://api.github.com"

// Client triggers the image-processing workflow via workflow_dispatch.
type Client struct {
	baseURL    string
	owner      string
	repo       string
	workflowID string
	ref        string
	token      string
	http       *http.Client
	retry      *utils.RetryConfig
	logger     *utils.Logger
}

// NewClient builds a Client. An empty token disables submission (Enabled
// returns false) so local runs work without credentials.
func NewClient(owner, repo, workflowID, token string, retry *utils.RetryConfig, logger *utils.Logger) *Client {
	return &Client{
		baseURL:    defaultBaseURL,
		owner:      owner,
		repo:       repo,
		workflowID: workflowID,
		ref:        "main",
		token:      token,
		http:       &http.Client{Timeout: 30 * time.Second},
		retry:      retry,
		logger:     logger,
	}
}

// Enabled reports whether the client has credentials to dispatch.
func (c *Client) Enabled() bool {
	return c.token != "" && c.owner != "" && c.repo != ""
}

// Submit dispatches the workflow with the listing id batch and returns the
// accepted count. Fire-and-forget: the workflow's own progress is not
// tracked here.
func (c *Client) Submit(ctx context.Context, listingIDs []string) (int, error) {
	if len(listingIDs) == 0 {
		return 0, nil
	}
	if !c.Enabled() {
		return 0, fmt.Errorf("imagepipe: client not configured (missing token/repo)")
	}

	payload := map[string]interface{}{
		"ref": c.ref,
		"inputs": map[string]string{
			"listing_ids": strings.Join(listingIDs, ","),
			"batch_size":  "5",
			"max_retries": "3",
		},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return 0, fmt.Errorf("imagepipe: marshal payload: %w", err)
	}

	url := fmt.Sprintf("%s/repos/%s/%s/actions/workflows/%s/dispatches",
		c.baseURL, c.owner, c.repo, c.workflowID)

	err = c.retry.Do("imagepipe-dispatch", func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
		if err != nil {
			return fmt.Errorf("imagepipe: build request: %w", err)
		}
		req.Header.Set("Accept", "application/vnd.github+json")
		req.Header.Set("Authorization", "Bearer "+c.token)
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.http.Do(req)
		if err != nil {
			return fmt.Errorf("imagepipe: dispatch: %w", err)
		}
		defer resp.Body.Close()

		// GitHub answers 204 No Content on a successful dispatch.
		if resp.StatusCode != http.StatusNoContent {
			return fmt.Errorf("imagepipe: dispatch returned %s", resp.Status)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	c.logger.Info("[imagepipe] dispatched %s workflow for %d listings", c.workflowID, len(listingIDs))
	return len(listingIDs), nil
}
