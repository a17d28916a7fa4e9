// Package bugzilla submits bugs through the Bugzilla REST API. The generic
// issue's Repo field is repurposed as the Bugzilla product name; component
// and version come from options, falling back to documented defaults.
package bugzilla

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

const (
	// DefaultComponent is the fallback component when none is supplied.
	DefaultComponent = "General"

	// DefaultVersion is the fallback version: a rolling/development version
	// string that exists on Fedora-style products.
	DefaultVersion = "rawhide"
)

// Adapter is the Bugzilla platform adapter.
type Adapter struct {
	baseURL    string // instance URL; a credential Host overrides it
	httpClient *http.Client
}

// New creates a Bugzilla adapter for the given instance base URL
// (e.g. "https://bugzilla.redhat.com").
func New(baseURL string) *Adapter {
	return &Adapter{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: adapters.DefaultTimeout,
		},
	}
}

// Name returns the platform identifier.
func (a *Adapter) Name() report.Platform { return report.PlatformBugzilla }

// BugInput is the Bugzilla create-bug request shape.
type BugInput struct {
	Product     string `json:"product"`
	Component   string `json:"component"`
	Version     string `json:"version"`
	Summary     string `json:"summary"`
	Description string `json:"description"`
}

// createdBug is the create-bug response shape.
type createdBug struct {
	ID int `json:"id"`
}

// BuildInput maps the generic issue onto the Bugzilla request shape,
// applying the documented component/version fallbacks.
func BuildInput(issue report.Issue, opts report.SubmitOptions) BugInput {
	component := opts.Component
	if component == "" {
		component = DefaultComponent
	}
	version := opts.Version
	if version == "" {
		version = DefaultVersion
	}
	return BugInput{
		Product:     issue.Repo,
		Component:   component,
		Version:     version,
		Summary:     issue.Title,
		Description: issue.Body,
	}
}

// Submit files a bug against the product named by issue.Repo.
func (a *Adapter) Submit(ctx context.Context, issue report.Issue, cred credentials.Credential, opts report.SubmitOptions) (*adapters.Result, error) {
	base := a.baseURL
	if cred.Host != "" {
		base = cred.Host
	}
	if base == "" {
		return nil, &adapters.AdapterError{Platform: a.Name(), Status: -1, Raw: "no bugzilla instance URL configured"}
	}

	payload, err := json.Marshal(BuildInput(issue, opts))
	if err != nil {
		return nil, &adapters.AdapterError{Platform: a.Name(), Status: -1, Raw: err.Error()}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, base+"/rest/bug", bytes.NewReader(payload))
	if err != nil {
		return nil, &adapters.AdapterError{Platform: a.Name(), Status: -1, Raw: err.Error()}
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-BUGZILLA-API-KEY", cred.Token)

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return nil, &adapters.AdapterError{Platform: a.Name(), Status: 0, Raw: err.Error()}
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &adapters.AdapterError{Platform: a.Name(), Status: resp.StatusCode, Raw: err.Error()}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &adapters.AdapterError{
			Platform: a.Name(),
			Status:   resp.StatusCode,
			Raw:      string(respBody),
		}
	}

	var created createdBug
	if err := json.Unmarshal(respBody, &created); err != nil {
		return nil, &adapters.AdapterError{Platform: a.Name(), Status: resp.StatusCode, Raw: "unparseable response: " + err.Error()}
	}

	return &adapters.Result{
		URL: fmt.Sprintf("%s/show_bug.cgi?id=%d", base, created.ID),
	}, nil
}
