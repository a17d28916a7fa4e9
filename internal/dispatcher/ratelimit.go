package dispatcher

import (
	"sync"
	"time"

	"github.com/filebug/filebug/internal/adapters"
	"github.com/filebug/filebug/internal/report"
)

// defaultRateLimitBackoff is assumed when a platform answers 429 without
// reporting a usable quota window.
const defaultRateLimitBackoff = 60 * time.Second

// rateLimits tracks the last-known quota window per platform. The gate only
// trips on a window with zero remaining quota whose reset has not passed.
type rateLimits struct {
	mu      sync.Mutex
	windows map[report.Platform]*adapters.RateInfo
	now     func() time.Time
}

func newRateLimits() *rateLimits {
	return &rateLimits{
		windows: make(map[report.Platform]*adapters.RateInfo),
		now:     time.Now,
	}
}

// exhausted reports whether the platform's known window blocks submission,
// and if so when it resets.
func (l *rateLimits) exhausted(platform report.Platform) (bool, time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()

	win := l.windows[platform]
	if win.Exhausted(l.now()) {
		return true, win.Reset
	}
	return false, time.Time{}
}

// observe updates the platform's window from an adapter response.
func (l *rateLimits) observe(platform report.Platform, rate *adapters.RateInfo) {
	if rate == nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.windows[platform] = rate
}

// observeError updates the window from a failed submission. A quota
// rejection without header info still closes the window for a default
// backoff so the next call short-circuits.
func (l *rateLimits) observeError(platform report.Platform, err *adapters.AdapterError) {
	rate := err.Rate
	if rate == nil && err.RateLimited() {
		rate = &adapters.RateInfo{Remaining: 0, Reset: l.now().Add(defaultRateLimitBackoff)}
	}
	l.observe(platform, rate)
}
