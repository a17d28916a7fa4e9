// Package github submits issues to GitHub, either through the REST API or
// through the already-authenticated gh CLI.
package github

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/filebug/filebug/internal/adapters"
	"github.com/filebug/filebug/internal/credentials"
	"github.com/filebug/filebug/internal/report"
)

const githubAPIURL = "https://api.github.com"

// Adapter is the GitHub platform adapter.
type Adapter struct {
	mode       adapters.TransportMode
	baseURL    string // For testing - defaults to githubAPIURL
	httpClient *http.Client
	runner     adapters.CommandRunner
}

// New creates a GitHub adapter using the given transport mode.
func New(mode adapters.TransportMode) *Adapter {
	return NewWithBaseURL(mode, githubAPIURL)
}

// NewWithBaseURL creates a GitHub adapter with a custom API base URL (for testing).
func NewWithBaseURL(mode adapters.TransportMode, baseURL string) *Adapter {
	return &Adapter{
		mode:    mode,
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: adapters.DefaultTimeout,
		},
		runner: adapters.ExecRunner{},
	}
}

// SetRunner replaces the CLI runner. Used for testing.
func (a *Adapter) SetRunner(r adapters.CommandRunner) { a.runner = r }

// Name returns the platform identifier.
func (a *Adapter) Name() report.Platform { return report.PlatformGitHub }

// issueInput is the GitHub create-issue request shape.
type issueInput struct {
	Title  string   `json:"title"`
	Body   string   `json:"body"`
	Labels []string `json:"labels,omitempty"`
}

// createdIssue is the subset of the create-issue response we need.
type createdIssue struct {
	HTMLURL string `json:"html_url"`
}

// Submit files the issue in the repository named by issue.Repo ("owner/repo").
func (a *Adapter) Submit(ctx context.Context, issue report.Issue, cred credentials.Credential, opts report.SubmitOptions) (*adapters.Result, error) {
	labels := adapters.MergeLabels(issue.Labels, opts.Labels)

	if a.mode == adapters.TransportCLI {
		return a.submitCLI(ctx, issue, labels)
	}
	return a.submitAPI(ctx, issue, cred, labels)
}

func (a *Adapter) submitAPI(ctx context.Context, issue report.Issue, cred credentials.Credential, labels []string) (*adapters.Result, error) {
	payload, err := json.Marshal(issueInput{
		Title:  issue.Title,
		Body:   issue.Body,
		Labels: labels,
	})
	if err != nil {
		return nil, &adapters.AdapterError{Platform: a.Name(), Status: -1, Raw: err.Error()}
	}

	url := a.baseURL + "/repos/" + issue.Repo + "/issues"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, &adapters.AdapterError{Platform: a.Name(), Status: -1, Raw: err.Error()}
	}
	req.Header.Set("Accept", "application/vnd.github+json")
	req.Header.Set("Authorization", "Bearer "+cred.Token)
	req.Header.Set("X-GitHub-Api-Version", "2022-11-28")
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return nil, &adapters.AdapterError{Platform: a.Name(), Status: 0, Raw: err.Error()}
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &adapters.AdapterError{Platform: a.Name(), Status: resp.StatusCode, Raw: err.Error()}
	}

	rate := adapters.RateFromHeaders(resp.Header)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &adapters.AdapterError{
			Platform: a.Name(),
			Status:   resp.StatusCode,
			Raw:      string(respBody),
			Rate:     rate,
		}
	}

	var created createdIssue
	if err := json.Unmarshal(respBody, &created); err != nil {
		return nil, &adapters.AdapterError{Platform: a.Name(), Status: resp.StatusCode, Raw: "unparseable response: " + err.Error()}
	}

	return &adapters.Result{URL: created.HTMLURL, Rate: rate}, nil
}

// submitCLI shells out to gh, which handles authentication and token refresh
// itself; the rotation credential is not needed on this path.
func (a *Adapter) submitCLI(ctx context.Context, issue report.Issue, labels []string) (*adapters.Result, error) {
	args := []string{
		"issue", "create",
		"--repo", issue.Repo,
		"--title", issue.Title,
		"--body", issue.Body,
	}
	for _, label := range labels {
		args = append(args, "--label", label)
	}

	res, err := a.runner.Run(ctx, "gh", args...)
	if err != nil {
		return nil, &adapters.AdapterError{Platform: a.Name(), Status: -1, Raw: err.Error()}
	}
	if res.ExitCode != 0 {
		return nil, &adapters.AdapterError{
			Platform: a.Name(),
			Status:   res.ExitCode,
			Raw:      strings.TrimSpace(res.Stderr),
		}
	}

	url := adapters.LastLine(res.Stdout)
	if url == "" {
		return nil, &adapters.AdapterError{Platform: a.Name(), Status: 0, Raw: "gh returned no issue URL"}
	}
	return &adapters.Result{URL: url}, nil
}
