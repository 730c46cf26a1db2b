// Package taskapi creates follow-up tasks for inbox items over HTTP.
// Batch creation is a bounded sequential loop with per-item failure
// accounting; requests are deliberately not issued in parallel so the
// receiving service sees bounded load and the report stays exact.
package taskapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
)

// DefaultBatchLimit caps how many tasks one batch run may create.
const DefaultBatchLimit = 10

// Client talks to the task-creation endpoint.
type Client struct {
	BaseURL string
	Token   string
	HTTP    *http.Client
}

// Candidate is one task to create, linked back to its source record.
type Candidate struct {
	Title      string `json:"title"`
	SourceType string `json:"sourceType"`
	SourceID   string `json:"sourceId"`
}

// BatchResult accounts for every attempted item in a batch run. A 409
// from the endpoint means the task already exists and counts as
// skipped; any other failure counts as failed with a human-readable
// line in Errors. The loop never aborts early.
type BatchResult struct {
	RunID   string   `json:"runId"`
	Created int      `json:"created"`
	Skipped int      `json:"skipped"`
	Failed  int      `json:"failed"`
	Errors  []string `json:"errors,omitempty"`
}

// CreateBatch creates tasks for up to limit candidates, one request at
// a time. limit <= 0 falls back to DefaultBatchLimit. The caller must
// not run overlapping batches for the same candidate set; the client
// does not deduplicate in-flight requests.
func (c *Client) CreateBatch(ctx context.Context, candidates []Candidate, limit int) BatchResult {
	if limit <= 0 {
		limit = DefaultBatchLimit
	}
	if len(candidates) > limit {
		candidates = candidates[:limit]
	}

	result := BatchResult{RunID: uuid.New().String()}
	for _, cand := range candidates {
		status, err := c.createOne(ctx, cand)
		switch {
		case err != nil:
			result.Failed++
			result.Errors = append(result.Errors, fmt.Sprintf("%s %s: %v", cand.SourceType, cand.SourceID, err))
		case status == http.StatusConflict:
			result.Skipped++
		case status >= 200 && status < 300:
			result.Created++
		default:
			result.Failed++
			result.Errors = append(result.Errors, fmt.Sprintf("%s %s: HTTP %d", cand.SourceType, cand.SourceID, status))
		}
	}
	return result
}

func (c *Client) createOne(ctx context.Context, cand Candidate) (int, error) {
	if c.BaseURL == "" {
		return 0, fmt.Errorf("missing task API base URL")
	}
	httpClient := c.HTTP
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}

	body, err := json.Marshal(cand)
	if err != nil {
		return 0, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/tasks", bytes.NewBuffer(body))
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}

	res, err := httpClient.Do(req)
	if err != nil {
		return 0, err
	}
	defer res.Body.Close()
	_, _ = io.Copy(io.Discard, res.Body)
	return res.StatusCode, nil
}
