// Package report defines the generic issue model shared by the dedup index,
// the platform adapters, and the dispatcher.
package report

import (
	"fmt"
	"strings"
)

// Platform identifies a submission target.
type Platform string

const (
	PlatformGitHub    Platform = "github"
	PlatformGitLab    Platform = "gitlab"
	PlatformBitbucket Platform = "bitbucket"
	PlatformCodeberg  Platform = "codeberg"
	PlatformBugzilla  Platform = "bugzilla"
	PlatformEmail     Platform = "email"
)

// AllPlatforms lists every supported platform in canonical order.
var AllPlatforms = []Platform{
	PlatformGitHub,
	PlatformGitLab,
	PlatformBitbucket,
	PlatformCodeberg,
	PlatformBugzilla,
	PlatformEmail,
}

// KnownPlatform reports whether name is a supported platform identifier.
func KnownPlatform(name string) bool {
	for _, p := range AllPlatforms {
		if string(p) == name {
			return true
		}
	}
	return false
}

// FilterPlatforms converts raw platform names into Platform values,
// silently dropping unknown names. Order and duplicates are preserved.
func FilterPlatforms(names []string) []Platform {
	var out []Platform
	for _, name := range names {
		name = strings.ToLower(strings.TrimSpace(name))
		if KnownPlatform(name) {
			out = append(out, Platform(name))
		}
	}
	return out
}

// Issue is a generic feedback/bug report. Repo is the platform-specific
// target identifier: "owner/repo" for the git forges, a product name for
// Bugzilla, ignored by email. Issues are immutable once submitted.
type Issue struct {
	Title  string   `json:"title" yaml:"title"`
	Body   string   `json:"body" yaml:"body"`
	Repo   string   `json:"repo" yaml:"repo"`
	Labels []string `json:"labels,omitempty" yaml:"labels,omitempty"`
}

// ValidationError reports a malformed issue. It is returned before any
// platform is contacted and is distinguishable from adapter errors.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid issue: %s %s", e.Field, e.Reason)
}

// Validate checks that the issue carries the fields every adapter needs.
func (i Issue) Validate() error {
	if strings.TrimSpace(i.Title) == "" {
		return &ValidationError{Field: "title", Reason: "must not be empty"}
	}
	if strings.TrimSpace(i.Body) == "" {
		return &ValidationError{Field: "body", Reason: "must not be empty"}
	}
	if strings.TrimSpace(i.Repo) == "" {
		return &ValidationError{Field: "repo", Reason: "must not be empty"}
	}
	return nil
}

// SubmitOptions is the options bag supplied by the caller for one submission.
type SubmitOptions struct {
	Platforms []Platform
	DryRun    bool
	Dedupe    bool
	Labels    []string

	// Bugzilla-specific; adapters fall back to configured defaults when empty.
	Component string
	Version   string
}

// Status is the outcome class of a per-platform submission.
type Status string

const (
	StatusSuccess Status = "success"
	StatusError   Status = "error"
	StatusDryRun  Status = "dry_run"
	StatusSkipped Status = "skipped"
)

// SkipReason explains a Skipped result.
type SkipReason string

const (
	SkipDuplicate SkipReason = "duplicate"
	SkipSimilar   SkipReason = "similar"
)

// SubmissionResult is the per-platform outcome of a submit call.
// Exactly one is produced for every requested platform.
type SubmissionResult struct {
	Platform Platform   `json:"platform"`
	Status   Status     `json:"status"`
	URL      string     `json:"url,omitempty"`
	Detail   string     `json:"error,omitempty"`
	Reason   SkipReason `json:"reason,omitempty"`

	// WouldSubmit carries the unmodified issue for dry-run results.
	WouldSubmit *Issue `json:"would_submit,omitempty"`
}

// Success builds a successful result with the canonical URL of the created item.
func Success(platform Platform, url string) SubmissionResult {
	return SubmissionResult{Platform: platform, Status: StatusSuccess, URL: url}
}

// Failure builds an error result carrying the adapter or gate detail.
func Failure(platform Platform, detail string) SubmissionResult {
	return SubmissionResult{Platform: platform, Status: StatusError, Detail: detail}
}

// DryRun builds a dry-run result carrying the issue that would have been sent.
func DryRun(platform Platform, issue Issue) SubmissionResult {
	return SubmissionResult{Platform: platform, Status: StatusDryRun, WouldSubmit: &issue}
}

// Skipped builds a dedup-gate result with supporting evidence in detail.
func Skipped(platform Platform, reason SkipReason, detail string) SubmissionResult {
	return SubmissionResult{Platform: platform, Status: StatusSkipped, Reason: reason, Detail: detail}
}
