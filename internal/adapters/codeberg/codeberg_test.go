package codeberg

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
	Title: "Crash on startup",
	Body:  "App crashes immediately",
	Repo:  "acme/app",
}

func cred() credentials.Credential {
	return credentials.Credential{Source: credentials.SourceEnv, Token: testutil.FakeCodebergToken}
}

func TestSubmit(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/repos/acme/app/issues" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "token "+testutil.FakeCodebergToken {
			t.Errorf("unexpected auth header: %s", r.Header.Get("Authorization"))
		}

		var input issueInput
		if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if input.Title != testIssue.Title || input.Body != testIssue.Body {
			t.Errorf("unexpected payload: %+v", input)
		}

		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"number":   5,
			"html_url": "https://codeberg.org/acme/app/issues/5",
		})
	}))
	defer server.Close()

	a := NewWithBaseURL(server.URL)
	res, err := a.Submit(context.Background(), testIssue, cred(), report.SubmitOptions{})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if res.URL != "https://codeberg.org/acme/app/issues/5" {
		t.Errorf("URL = %q", res.URL)
	}
}

func TestSubmitError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"message":"repository not found"}`))
	}))
	defer server.Close()

	a := NewWithBaseURL(server.URL)
	_, err := a.Submit(context.Background(), testIssue, cred(), report.SubmitOptions{})

	var aerr *adapters.AdapterError
	if !errors.As(err, &aerr) {
		t.Fatalf("Submit error = %v, want *AdapterError", err)
	}
	if aerr.Status != http.StatusNotFound || aerr.Platform != report.PlatformCodeberg {
		t.Errorf("error = %+v", aerr)
	}
}
