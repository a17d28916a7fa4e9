// Package adapters defines the common contract all platform adapters
// implement: translating a generic issue into a platform-specific submission
// and normalizing the platform's response or error.
package adapters

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/filebug/filebug/internal/credentials"
	"github.com/filebug/filebug/internal/report"
)

// Submitter is the common interface all platform adapters implement.
type Submitter interface {
	// Name returns the platform identifier (e.g. "github", "bugzilla").
	Name() report.Platform

	// Submit files the issue on the platform using the given credential.
	// It returns the canonical URL of the created item, or an
	// *AdapterError. Transport failures (spawn, connection, non-2xx,
	// non-zero exit, timeout) are errors, never panics.
	Submit(ctx context.Context, issue report.Issue, cred credentials.Credential, opts report.SubmitOptions) (*Result, error)
}

// Result is a successful submission outcome.
type Result struct {
	URL  string
	Rate *RateInfo // last-known quota window, when the platform reports one
}

// RateInfo is a platform's rate-limit window as reported in its response.
type RateInfo struct {
	Remaining int
	Reset     time.Time
}

// Exhausted reports whether the window has zero remaining quota that has
// not yet reset.
func (r *RateInfo) Exhausted(now time.Time) bool {
	return r != nil && r.Remaining == 0 && now.Before(r.Reset)
}

// RateFromHeaders extracts a quota window from standard rate-limit response
// headers (X-RateLimit-* for GitHub/Gitea, RateLimit-* for GitLab).
// Returns nil when the response carries no usable window.
func RateFromHeaders(h http.Header) *RateInfo {
	remaining := firstHeader(h, "X-RateLimit-Remaining", "RateLimit-Remaining")
	reset := firstHeader(h, "X-RateLimit-Reset", "RateLimit-Reset")
	if remaining == "" || reset == "" {
		return nil
	}

	rem, err := strconv.Atoi(remaining)
	if err != nil {
		return nil
	}
	unix, err := strconv.ParseInt(reset, 10, 64)
	if err != nil {
		return nil
	}

	return &RateInfo{Remaining: rem, Reset: time.Unix(unix, 0)}
}

func firstHeader(h http.Header, names ...string) string {
	for _, name := range names {
		if v := h.Get(name); v != "" {
			return v
		}
	}
	return ""
}

// AdapterError is a typed transport-level failure. Status carries the HTTP
// status or process exit code; Raw carries the platform's error payload
// verbatim for display. Adapter errors are not retried by this core.
type AdapterError struct {
	Platform report.Platform
	Status   int
	Raw      string
	Rate     *RateInfo
}

func (e *AdapterError) Error() string {
	return fmt.Sprintf("%s: submission failed (status %d): %s", e.Platform, e.Status, e.Raw)
}

// RateLimited reports whether the failure was a quota rejection.
func (e *AdapterError) RateLimited() bool {
	return e.Status == http.StatusTooManyRequests
}

// --- Registry ---

var (
	registryMu sync.RWMutex
	registry   = map[report.Platform]Submitter{}
)

// Register adds a configured adapter to the global registry.
func Register(s Submitter) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[s.Name()] = s
}

// Get returns a registered adapter by platform, or nil if not found.
func Get(platform report.Platform) Submitter {
	registryMu.RLock()
	defer registryMu.RUnlock()
	return registry[platform]
}

// All returns a copy of all registered adapters.
func All() map[report.Platform]Submitter {
	registryMu.RLock()
	defer registryMu.RUnlock()
	out := make(map[report.Platform]Submitter, len(registry))
	for k, v := range registry {
		out[k] = v
	}
	return out
}

// Reset clears the registry. Used for testing only.
func Reset() {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry = map[report.Platform]Submitter{}
}
