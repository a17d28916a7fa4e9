// Package bitbucket submits issues to Bitbucket Cloud via the v2 REST API.
// Bitbucket app passwords require basic auth with the account username.
package bitbucket

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/filebug/filebug/internal/adapters"
	"github.com/filebug/filebug/internal/credentials"
	"github.com/filebug/filebug/internal/report"
)

const bitbucketAPIURL = "https://api.bitbucket.org/2.0"

// Adapter is the Bitbucket platform adapter.
type Adapter struct {
	baseURL    string // For testing - defaults to bitbucketAPIURL
	httpClient *http.Client
}

// New creates a Bitbucket adapter.
func New() *Adapter {
	return NewWithBaseURL(bitbucketAPIURL)
}

// NewWithBaseURL creates a Bitbucket adapter with a custom API base URL (for testing).
func NewWithBaseURL(baseURL string) *Adapter {
	return &Adapter{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: adapters.DefaultTimeout,
		},
	}
}

// Name returns the platform identifier.
func (a *Adapter) Name() report.Platform { return report.PlatformBitbucket }

// issueInput is the Bitbucket v2 create-issue request shape.
type issueInput struct {
	Title   string `json:"title"`
	Content struct {
		Raw string `json:"raw"`
	} `json:"content"`
	Kind string `json:"kind"`
}

// createdIssue is the subset of the create-issue response we need.
type createdIssue struct {
	ID    int `json:"id"`
	Links struct {
		HTML struct {
			Href string `json:"href"`
		} `json:"html"`
	} `json:"links"`
}

// Submit files the issue in the repository named by issue.Repo ("workspace/repo").
// Bitbucket's issue tracker has no free-form labels, so label options are ignored.
func (a *Adapter) Submit(ctx context.Context, issue report.Issue, cred credentials.Credential, _ report.SubmitOptions) (*adapters.Result, error) {
	input := issueInput{Title: issue.Title, Kind: "bug"}
	input.Content.Raw = issue.Body

	payload, err := json.Marshal(input)
	if err != nil {
		return nil, &adapters.AdapterError{Platform: a.Name(), Status: -1, Raw: err.Error()}
	}

	endpoint := a.baseURL + "/repositories/" + issue.Repo + "/issues"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, &adapters.AdapterError{Platform: a.Name(), Status: -1, Raw: err.Error()}
	}
	req.SetBasicAuth(cred.Username, cred.Token)
	req.Header.Set("Accept", "application/json")
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

	url := created.Links.HTML.Href
	if url == "" {
		url = fmt.Sprintf("https://bitbucket.org/%s/issues/%d", issue.Repo, created.ID)
	}
	return &adapters.Result{URL: url, Rate: rate}, nil
}
