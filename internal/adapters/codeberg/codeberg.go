// Package codeberg submits issues to Codeberg through its Gitea-compatible
// v1 REST API.
package codeberg

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"

	"github.com/filebug/filebug/internal/adapters"
	"github.com/filebug/filebug/internal/credentials"
	"github.com/filebug/filebug/internal/report"
)

const codebergAPIURL = "https://codeberg.org"

// Adapter is the Codeberg platform adapter.
type Adapter struct {
	baseURL    string // For testing - defaults to codebergAPIURL
	httpClient *http.Client
}

// New creates a Codeberg adapter.
func New() *Adapter {
	return NewWithBaseURL(codebergAPIURL)
}

// NewWithBaseURL creates a Codeberg adapter with a custom API base URL (for testing).
func NewWithBaseURL(baseURL string) *Adapter {
	return &Adapter{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: adapters.DefaultTimeout,
		},
	}
}

// Name returns the platform identifier.
func (a *Adapter) Name() report.Platform { return report.PlatformCodeberg }

// issueInput is the Gitea create-issue request shape. Gitea wants label IDs,
// not names, so label options are not forwarded.
type issueInput struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}

// createdIssue is the subset of the create-issue response we need.
type createdIssue struct {
	HTMLURL string `json:"html_url"`
}

// Submit files the issue in the repository named by issue.Repo ("owner/repo").
func (a *Adapter) Submit(ctx context.Context, issue report.Issue, cred credentials.Credential, _ report.SubmitOptions) (*adapters.Result, error) {
	payload, err := json.Marshal(issueInput{Title: issue.Title, Body: issue.Body})
	if err != nil {
		return nil, &adapters.AdapterError{Platform: a.Name(), Status: -1, Raw: err.Error()}
	}

	endpoint := a.baseURL + "/api/v1/repos/" + issue.Repo + "/issues"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, &adapters.AdapterError{Platform: a.Name(), Status: -1, Raw: err.Error()}
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "token "+cred.Token)
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
