// Package githubapi reads repository and CI state from the GitHub REST API.
package githubapi

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/CMPEQ0/lab-mark-api/apperr"
	"github.com/CMPEQ0/lab-mark-api/models"
)

const DefaultBaseURL = "https://api.github.com"

const checkRunsPerPage = 100

// Client calls GitHub with a bearer token. Every method is one or more plain
// GET requests; nothing is retried.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// NewClient creates a client for baseURL. An empty baseURL means api.github.com.
func NewClient(baseURL, token string) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
		httpClient: &http.Client{},
	}
}

func (c *Client) get(ctx context.Context, path string) (*http.Response, error) {
	reqURL := c.baseURL + path
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/vnd.github+json")
	req.Header.Set("X-GitHub-Api-Version", "2022-11-28")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, apperr.Upstream(err, "GitHub request %s failed", path)
	}
	return resp, nil
}

// getJSON decodes a 2xx response into out. 404 becomes NotFound with the
// given description, any other status an upstream failure.
func (c *Client) getJSON(ctx context.Context, path, what string, out any) error {
	resp, err := c.get(ctx, path)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return apperr.Upstream(err, "failed to read GitHub response for %s", what)
	}

	if resp.StatusCode == http.StatusNotFound {
		return apperr.NotFound("%s not found on GitHub", what)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return apperr.Upstream(statusError(resp.StatusCode, body), "GitHub request for %s failed", what)
	}

	if err := json.Unmarshal(body, out); err != nil {
		return apperr.Upstream(err, "failed to decode GitHub response for %s", what)
	}
	return nil
}

func statusError(code int, body []byte) error {
	var msg struct {
		Message string `json:"message"`
	}
	if json.Unmarshal(body, &msg) == nil && msg.Message != "" {
		return fmt.Errorf("status %d: %s", code, msg.Message)
	}
	return fmt.Errorf("status %d", code)
}

func repoPath(org, repo string) string {
	return "/repos/" + url.PathEscape(org) + "/" + url.PathEscape(repo)
}

// RepoWorkflows lists the Actions workflows defined in a repository.
func (c *Client) RepoWorkflows(ctx context.Context, org, repo string) ([]models.Workflow, error) {
	var out struct {
		TotalCount int               `json:"total_count"`
		Workflows  []models.Workflow `json:"workflows"`
	}
	what := fmt.Sprintf("repository %s/%s", org, repo)
	if err := c.getJSON(ctx, repoPath(org, repo)+"/actions/workflows", what, &out); err != nil {
		return nil, err
	}
	return out.Workflows, nil
}

// WorkflowRuns lists the runs of one workflow.
func (c *Client) WorkflowRuns(ctx context.Context, org, repo string, workflowID int64) ([]models.WorkflowRun, error) {
	var out struct {
		TotalCount   int                  `json:"total_count"`
		WorkflowRuns []models.WorkflowRun `json:"workflow_runs"`
	}
	path := fmt.Sprintf("%s/actions/workflows/%d/runs", repoPath(org, repo), workflowID)
	what := fmt.Sprintf("workflow %d in %s/%s", workflowID, org, repo)
	if err := c.getJSON(ctx, path, what, &out); err != nil {
		return nil, err
	}
	return out.WorkflowRuns, nil
}

// DefaultBranch returns the repository's default branch name.
func (c *Client) DefaultBranch(ctx context.Context, org, repo string) (string, error) {
	var out struct {
		DefaultBranch string `json:"default_branch"`
	}
	what := fmt.Sprintf("repository %s/%s", org, repo)
	if err := c.getJSON(ctx, repoPath(org, repo), what, &out); err != nil {
		return "", err
	}
	if out.DefaultBranch == "" {
		return "", apperr.NotFound("%s has no default branch", what)
	}
	return out.DefaultBranch, nil
}

// LatestCommit returns the SHA at the head of branch.
func (c *Client) LatestCommit(ctx context.Context, org, repo, branch string) (string, error) {
	var out struct {
		SHA string `json:"sha"`
	}
	what := fmt.Sprintf("branch %s of %s/%s", branch, org, repo)
	if err := c.getJSON(ctx, repoPath(org, repo)+"/commits/"+url.PathEscape(branch), what, &out); err != nil {
		return "", err
	}
	if out.SHA == "" {
		return "", apperr.NotFound("%s has no commits", what)
	}
	return out.SHA, nil
}

// CheckRuns returns every check run attached to a commit, following pagination.
func (c *Client) CheckRuns(ctx context.Context, org, repo, sha string) ([]models.CheckRun, error) {
	what := fmt.Sprintf("commit %s of %s/%s", sha, org, repo)

	var runs []models.CheckRun
	for page := 1; ; page++ {
		var out struct {
			TotalCount int               `json:"total_count"`
			CheckRuns  []models.CheckRun `json:"check_runs"`
		}
		path := fmt.Sprintf("%s/commits/%s/check-runs?per_page=%d&page=%d",
			repoPath(org, repo), url.PathEscape(sha), checkRunsPerPage, page)
		if err := c.getJSON(ctx, path, what, &out); err != nil {
			return nil, err
		}
		runs = append(runs, out.CheckRuns...)
		if len(out.CheckRuns) == 0 || len(runs) >= out.TotalCount {
			return runs, nil
		}
	}
}

// UserExists probes /users/{login}: 200 is true, 404 false, anything else fails.
func (c *Client) UserExists(ctx context.Context, login string) (bool, error) {
	resp, err := c.get(ctx, "/users/"+url.PathEscape(login))
	if err != nil {
		return false, err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		return true, nil
	case http.StatusNotFound:
		return false, nil
	default:
		body, _ := io.ReadAll(resp.Body)
		return false, apperr.Upstream(statusError(resp.StatusCode, body), "GitHub user lookup for %s failed", login)
	}
}
