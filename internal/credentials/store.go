// Package credentials loads per-platform authentication credentials from
// environment variables and well-known CLI tool config files, and hands them
// out round-robin so API load spreads across a rotation pool.
package credentials

import (
	"fmt"
	"sync"

	"github.com/filebug/filebug/internal/report"
)

// Source identifies where a credential was loaded from.
type Source string

const (
	SourceEnv       Source = "env"
	SourceCLIConfig Source = "cli_config"
)

// Credential is one usable authentication entry for a platform.
// Token is the secret; Host and Username are platform-specific extras.
// Extra carries additional keyed values (SMTP port/from/to, Bugzilla URL).
type Credential struct {
	Source   Source
	Token    string
	Host     string
	Username string
	Extra    map[string]string
}

// NoCredentialsError is returned when a platform's rotation pool is empty.
// Terminal for that platform within a call; the dispatcher surfaces it as an
// error result without contacting the platform.
type NoCredentialsError struct {
	Platform report.Platform
}

func (e *NoCredentialsError) Error() string {
	return fmt.Sprintf("no credentials available for %s", e.Platform)
}

// Store owns the per-platform rotation pools and their rotation state.
// Rotation counters are explicit per-store state, never package globals,
// so stores are testable in isolation. Safe for concurrent Get calls.
type Store struct {
	mu    sync.Mutex
	pools map[report.Platform][]Credential
	next  map[report.Platform]int
}

// NewStore builds a store from explicit pools. Load is the usual constructor;
// NewStore exists for tests and for callers that assemble pools themselves.
func NewStore(pools map[report.Platform][]Credential) *Store {
	if pools == nil {
		pools = make(map[report.Platform][]Credential)
	}
	return &Store{
		pools: pools,
		next:  make(map[report.Platform]int),
	}
}

// Get returns the next credential for a platform. An empty pool yields a
// *NoCredentialsError; a single-entry pool always returns that entry; larger
// pools rotate round-robin, visiting every entry once before repeating.
func (s *Store) Get(platform report.Platform) (Credential, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	pool := s.pools[platform]
	if len(pool) == 0 {
		return Credential{}, &NoCredentialsError{Platform: platform}
	}
	if len(pool) == 1 {
		return pool[0], nil
	}

	idx := s.next[platform] % len(pool)
	s.next[platform] = (idx + 1) % len(pool)
	return pool[idx], nil
}

// PoolSize returns how many credentials are loaded for a platform.
func (s *Store) PoolSize(platform report.Platform) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pools[platform])
}

// Add appends a credential to a platform's pool.
func (s *Store) Add(platform report.Platform, cred Credential) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pools[platform] = append(s.pools[platform], cred)
}
