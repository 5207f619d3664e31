// Package github is the resolution oracle: it reads pull request state from
// the GitHub REST API and maps it onto market outcomes. A merged PR resolves
// YES, a PR closed without merging resolves NO, an open PR stays unresolved.
package github

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// PRState is the oracle's view of one pull request.
type PRState struct {
	Number int
	Open   bool
	Merged bool
}

// Client is a minimal GitHub REST v3 client covering pull request lookups.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// NewClient creates a GitHub client. baseURL defaults to the public API;
// token may be empty for unauthenticated (rate-limited) access.
func NewClient(baseURL, token string) *Client {
	if baseURL == "" {
		baseURL = "https://api.github.com"
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

type apiPullRequest struct {
	Number   int        `json:"number"`
	State    string     `json:"state"` // "open" or "closed"
	Merged   bool       `json:"merged"`
	MergedAt *time.Time `json:"merged_at"`
}

// GetPullRequest fetches the state of repository's PR. repository is
// "owner/repo".
func (c *Client) GetPullRequest(ctx context.Context, repository string, number uint64) (PRState, error) {
	owner, repo, ok := strings.Cut(repository, "/")
	if !ok || owner == "" || repo == "" {
		return PRState{}, fmt.Errorf("github: bad repository %q", repository)
	}

	url := fmt.Sprintf("%s/repos/%s/%s/pulls/%d", c.baseURL, owner, repo, number)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return PRState{}, fmt.Errorf("github: build request: %w", err)
	}
	req.Header.Set("Accept", "application/vnd.github+json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return PRState{}, fmt.Errorf("github: get pr %s#%d: %w", repository, number, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return PRState{}, fmt.Errorf("github: read pr %s#%d: %w", repository, number, err)
	}
	if resp.StatusCode != http.StatusOK {
		return PRState{}, fmt.Errorf("github: get pr %s#%d: status %d: %s",
			repository, number, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var pr apiPullRequest
	if err := json.Unmarshal(body, &pr); err != nil {
		return PRState{}, fmt.Errorf("github: decode pr %s#%d: %w", repository, number, err)
	}

	// The list endpoint omits "merged"; merged_at is authoritative either way.
	merged := pr.Merged || pr.MergedAt != nil
	return PRState{
		Number: pr.Number,
		Open:   pr.State == "open",
		Merged: merged,
	}, nil
}
