package github

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/filebug/filebug/internal/adapters"
	"github.com/filebug/filebug/internal/credentials"
	"github.com/filebug/filebug/internal/report"
	"github.com/filebug/filebug/internal/testutil"
)

var testIssue = report.Issue{
	Title:  "Crash on startup",
	Body:   "App crashes immediately",
	Repo:   "acme/app",
	Labels: []string{"bug"},
}

func cred() credentials.Credential {
	return credentials.Credential{Source: credentials.SourceEnv, Token: testutil.FakeGitHubToken}
}

func TestSubmitAPI(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/repos/acme/app/issues" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}
		if r.Header.Get("Authorization") != "Bearer "+testutil.FakeGitHubToken {
			t.Errorf("unexpected auth header: %s", r.Header.Get("Authorization"))
		}
		if r.Header.Get("Accept") != "application/vnd.github+json" {
			t.Errorf("unexpected Accept header: %s", r.Header.Get("Accept"))
		}

		var input issueInput
		if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if input.Title != testIssue.Title || input.Body != testIssue.Body {
			t.Errorf("unexpected payload: %+v", input)
		}
		if len(input.Labels) != 2 || input.Labels[0] != "bug" || input.Labels[1] != "regression" {
			t.Errorf("labels = %v, want [bug regression]", input.Labels)
		}

		w.Header().Set("X-RateLimit-Remaining", "4999")
		w.Header().Set("X-RateLimit-Reset", "1700000000")
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"number":   7,
			"html_url": "https://github.com/acme/app/issues/7",
		})
	}))
	defer server.Close()

	a := NewWithBaseURL(adapters.TransportAPI, server.URL)
	res, err := a.Submit(context.Background(), testIssue, cred(), report.SubmitOptions{Labels: []string{"regression"}})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if res.URL != "https://github.com/acme/app/issues/7" {
		t.Errorf("URL = %q", res.URL)
	}
	if res.Rate == nil || res.Rate.Remaining != 4999 {
		t.Errorf("rate info not propagated: %+v", res.Rate)
	}
}

func TestSubmitAPIError(t *testing.T) {
	tests := []struct {
		name       string
		statusCode int
		body       string
	}{
		{"unauthorized", http.StatusUnauthorized, `{"message":"Bad credentials"}`},
		{"unprocessable", http.StatusUnprocessableEntity, `{"message":"Validation Failed"}`},
		{"rate limited", http.StatusTooManyRequests, `{"message":"API rate limit exceeded"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.statusCode)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer server.Close()

			a := NewWithBaseURL(adapters.TransportAPI, server.URL)
			_, err := a.Submit(context.Background(), testIssue, cred(), report.SubmitOptions{})

			var aerr *adapters.AdapterError
			if !errors.As(err, &aerr) {
				t.Fatalf("Submit error = %v, want *AdapterError", err)
			}
			if aerr.Status != tt.statusCode {
				t.Errorf("status = %d, want %d", aerr.Status, tt.statusCode)
			}
			if aerr.Raw != tt.body {
				t.Errorf("raw = %q, want %q", aerr.Raw, tt.body)
			}
			if aerr.Platform != report.PlatformGitHub {
				t.Errorf("platform = %q", aerr.Platform)
			}
		})
	}
}

func TestSubmitAPIConnectionFailure(t *testing.T) {
	// Closed server: connection refused must surface as an adapter error.
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close()

	a := NewWithBaseURL(adapters.TransportAPI, server.URL)
	_, err := a.Submit(context.Background(), testIssue, cred(), report.SubmitOptions{})

	var aerr *adapters.AdapterError
	if !errors.As(err, &aerr) {
		t.Fatalf("Submit error = %v, want *AdapterError", err)
	}
}

type stubRunner struct {
	res      *adapters.CommandResult
	err      error
	calls    int
	lastName string
	lastArgs []string
}

func (s *stubRunner) Run(_ context.Context, name string, args ...string) (*adapters.CommandResult, error) {
	s.calls++
	s.lastName = name
	s.lastArgs = args
	return s.res, s.err
}

func TestSubmitCLI(t *testing.T) {
	runner := &stubRunner{res: &adapters.CommandResult{
		Stdout: "Creating issue in acme/app\n\nhttps://github.com/acme/app/issues/8\n",
	}}
	a := New(adapters.TransportCLI)
	a.SetRunner(runner)

	res, err := a.Submit(context.Background(), testIssue, credentials.Credential{}, report.SubmitOptions{})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if res.URL != "https://github.com/acme/app/issues/8" {
		t.Errorf("URL = %q", res.URL)
	}
	if runner.lastName != "gh" {
		t.Errorf("command = %q, want gh", runner.lastName)
	}
	want := []string{"issue", "create", "--repo", "acme/app", "--title", testIssue.Title, "--body", testIssue.Body, "--label", "bug"}
	if len(runner.lastArgs) != len(want) {
		t.Fatalf("args = %v, want %v", runner.lastArgs, want)
	}
	for i := range want {
		if runner.lastArgs[i] != want[i] {
			t.Errorf("args[%d] = %q, want %q", i, runner.lastArgs[i], want[i])
		}
	}
}

func TestSubmitCLINonZeroExit(t *testing.T) {
	runner := &stubRunner{res: &adapters.CommandResult{
		Stderr:   "gh: Not Found (HTTP 404)\n",
		ExitCode: 1,
	}}
	a := New(adapters.TransportCLI)
	a.SetRunner(runner)

	_, err := a.Submit(context.Background(), testIssue, credentials.Credential{}, report.SubmitOptions{})
	var aerr *adapters.AdapterError
	if !errors.As(err, &aerr) {
		t.Fatalf("Submit error = %v, want *AdapterError", err)
	}
	if aerr.Status != 1 {
		t.Errorf("status = %d, want exit code 1", aerr.Status)
	}
	if aerr.Raw != "gh: Not Found (HTTP 404)" {
		t.Errorf("raw = %q", aerr.Raw)
	}
}

func TestSubmitCLISpawnFailure(t *testing.T) {
	runner := &stubRunner{err: errors.New("exec: \"gh\": executable file not found in $PATH")}
	a := New(adapters.TransportCLI)
	a.SetRunner(runner)

	_, err := a.Submit(context.Background(), testIssue, credentials.Credential{}, report.SubmitOptions{})
	var aerr *adapters.AdapterError
	if !errors.As(err, &aerr) {
		t.Fatalf("Submit error = %v, want *AdapterError", err)
	}
	if aerr.Status != -1 {
		t.Errorf("status = %d, want -1 for spawn failure", aerr.Status)
	}
}
