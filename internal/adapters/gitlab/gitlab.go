// Package gitlab submits issues to GitLab, either through the REST API or
// through the already-authenticated glab CLI.
package gitlab

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/filebug/filebug/internal/adapters"
	"github.com/filebug/filebug/internal/credentials"
	"github.com/filebug/filebug/internal/report"
)

const gitlabAPIURL = "https://gitlab.com"

// Adapter is the GitLab platform adapter.
type Adapter struct {
	mode       adapters.TransportMode
	baseURL    string // For testing - defaults to gitlabAPIURL
	httpClient *http.Client
	runner     adapters.CommandRunner
}

// New creates a GitLab adapter using the given transport mode.
func New(mode adapters.TransportMode) *Adapter {
	return NewWithBaseURL(mode, gitlabAPIURL)
}

// NewWithBaseURL creates a GitLab adapter with a custom API base URL (for testing).
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
func (a *Adapter) Name() report.Platform { return report.PlatformGitLab }

// issueInput is the GitLab create-issue request shape. GitLab takes labels
// as a single comma-separated string.
type issueInput struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Labels      string `json:"labels,omitempty"`
}

// createdIssue is the subset of the create-issue response we need.
type createdIssue struct {
	WebURL string `json:"web_url"`
}

// Submit files the issue in the project named by issue.Repo ("namespace/project").
func (a *Adapter) Submit(ctx context.Context, issue report.Issue, cred credentials.Credential, opts report.SubmitOptions) (*adapters.Result, error) {
	labels := adapters.MergeLabels(issue.Labels, opts.Labels)

	if a.mode == adapters.TransportCLI {
		return a.submitCLI(ctx, issue, labels)
	}
	return a.submitAPI(ctx, issue, cred, labels)
}

func (a *Adapter) submitAPI(ctx context.Context, issue report.Issue, cred credentials.Credential, labels []string) (*adapters.Result, error) {
	payload, err := json.Marshal(issueInput{
		Title:       issue.Title,
		Description: issue.Body,
		Labels:      strings.Join(labels, ","),
	})
	if err != nil {
		return nil, &adapters.AdapterError{Platform: a.Name(), Status: -1, Raw: err.Error()}
	}

	// A credential sourced from the glab config may carry a self-hosted host.
	base := a.baseURL
	if base == gitlabAPIURL && cred.Host != "" {
		base = "https://" + cred.Host
	}

	endpoint := base + "/api/v4/projects/" + url.PathEscape(issue.Repo) + "/issues"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, &adapters.AdapterError{Platform: a.Name(), Status: -1, Raw: err.Error()}
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("PRIVATE-TOKEN", cred.Token)
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

	return &adapters.Result{URL: created.WebURL, Rate: rate}, nil
}

// submitCLI shells out to glab, which carries its own authentication.
func (a *Adapter) submitCLI(ctx context.Context, issue report.Issue, labels []string) (*adapters.Result, error) {
	args := []string{
		"issue", "create",
		"--repo", issue.Repo,
		"--title", issue.Title,
		"--description", issue.Body,
		"--yes",
	}
	for _, label := range labels {
		args = append(args, "--label", label)
	}

	res, err := a.runner.Run(ctx, "glab", args...)
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
		return nil, &adapters.AdapterError{Platform: a.Name(), Status: 0, Raw: "glab returned no issue URL"}
	}
	return &adapters.Result{URL: url}, nil
}
