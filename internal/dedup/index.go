package dedup

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"sync"
	"time"

	"github.com/filebug/filebug/internal/logging"
	"github.com/filebug/filebug/internal/report"
)

const (
	// DefaultThreshold is the inclusive similarity score at or above which
	// two titles are considered near-duplicates.
	DefaultThreshold = 0.85

	// maxSimilarMatches caps the evidence list in a Similar decision.
	maxSimilarMatches = 5

	// bodyHashPrefix is how many bytes of the normalized body participate
	// in the content hash.
	bodyHashPrefix = 500
)

// DecisionKind classifies the outcome of a dedup check.
type DecisionKind int

const (
	Unique DecisionKind = iota
	Duplicate
	Similar
)

func (k DecisionKind) String() string {
	switch k {
	case Duplicate:
		return "duplicate"
	case Similar:
		return "similar"
	default:
		return "unique"
	}
}

// HistoryEntry records one submission attempt for a content hash.
type HistoryEntry struct {
	Platform  report.Platform
	Result    string
	Timestamp time.Time
}

// SubmissionRecord tracks everything known about one deduplicated report.
// Records live for the process lifetime; Clear is test-only.
type SubmissionRecord struct {
	ContentHash     string
	NormalizedTitle string
	Platforms       map[report.Platform]bool
	History         []HistoryEntry
}

// clone returns a deep copy so callers never alias index-internal state.
func (r *SubmissionRecord) clone() *SubmissionRecord {
	cp := &SubmissionRecord{
		ContentHash:     r.ContentHash,
		NormalizedTitle: r.NormalizedTitle,
		Platforms:       make(map[report.Platform]bool, len(r.Platforms)),
		History:         make([]HistoryEntry, len(r.History)),
	}
	for p := range r.Platforms {
		cp.Platforms[p] = true
	}
	copy(cp.History, r.History)
	return cp
}

// Match is one near-duplicate candidate in a Similar decision.
type Match struct {
	NormalizedTitle string
	ContentHash     string
	Similarity      float64
}

// Decision is the result of checking an issue against the index.
type Decision struct {
	Kind     DecisionKind
	Existing *SubmissionRecord // set for Duplicate
	Matches  []Match           // set for Similar, ranked by similarity desc
}

// ContentHash derives the 16-hex-char dedup key from an issue. It is a pure
// function of the normalized title and the first 500 bytes of the normalized
// body; two issues with the same hash are identical regardless of platform.
func ContentHash(issue report.Issue) string {
	title := Normalize(issue.Title)
	body := Normalize(issue.Body)
	if len(body) > bodyHashPrefix {
		body = body[:bodyHashPrefix]
	}

	sum := sha256.Sum256([]byte(title + "\n" + body))
	return hex.EncodeToString(sum[:])[:16]
}

// Index is the in-memory dedup lookup structure: content hash → record and
// normalized title → hash. Safe for concurrent Check and Record calls.
type Index struct {
	mu        sync.RWMutex
	threshold float64

	records map[string]*SubmissionRecord // content hash → record
	titles  map[string]string            // normalized title → content hash
	order   []string                     // normalized titles in insertion order

	log interface {
		Warn(msg string, args ...any)
		Debug(msg string, args ...any)
	}
}

// NewIndex creates an empty index with the given similarity threshold.
// A threshold of 0 selects DefaultThreshold.
func NewIndex(threshold float64) *Index {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	return &Index{
		threshold: threshold,
		records:   make(map[string]*SubmissionRecord),
		titles:    make(map[string]string),
		log:       logging.WithComponent("dedup"),
	}
}

// Check classifies an issue against prior submissions. An exact content-hash
// hit is a Duplicate; otherwise titles scoring at or above the threshold
// produce a Similar decision with up to five matches ranked by similarity
// descending, ties broken by insertion order. An empty match list is Unique;
// there is no separate "empty index" case.
func (ix *Index) Check(issue report.Issue) Decision {
	hash := ContentHash(issue)
	title := Normalize(issue.Title)

	ix.mu.RLock()
	defer ix.mu.RUnlock()

	if rec, ok := ix.records[hash]; ok {
		return Decision{Kind: Duplicate, Existing: rec.clone()}
	}

	var matches []Match
	for _, candidate := range ix.order {
		score := Similarity(title, candidate)
		if score >= ix.threshold {
			matches = append(matches, Match{
				NormalizedTitle: candidate,
				ContentHash:     ix.titles[candidate],
				Similarity:      score,
			})
		}
	}

	if len(matches) == 0 {
		return Decision{Kind: Unique}
	}

	// Stable sort keeps insertion order for equal scores.
	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Similarity > matches[j].Similarity
	})
	if len(matches) > maxSimilarMatches {
		matches = matches[:maxSimilarMatches]
	}

	return Decision{Kind: Similar, Matches: matches}
}

// Record upserts the submission record for the issue's content hash, unions
// the platform into its platform set, and appends a history entry. The title
// index entry is updated last-write-wins; a hash conflict on one normalized
// title is logged but never fails.
func (ix *Index) Record(issue report.Issue, platform report.Platform, result string) {
	hash := ContentHash(issue)
	title := Normalize(issue.Title)

	ix.mu.Lock()
	defer ix.mu.Unlock()

	rec, ok := ix.records[hash]
	if !ok {
		rec = &SubmissionRecord{
			ContentHash:     hash,
			NormalizedTitle: title,
			Platforms:       make(map[report.Platform]bool),
		}
		ix.records[hash] = rec
	}

	rec.Platforms[platform] = true
	rec.History = append(rec.History, HistoryEntry{
		Platform:  platform,
		Result:    result,
		Timestamp: time.Now(),
	})

	if prev, ok := ix.titles[title]; ok {
		if prev != hash {
			ix.log.Warn("title index conflict, keeping newest hash",
				"title", title, "old_hash", prev, "new_hash", hash)
			ix.titles[title] = hash
		}
	} else {
		ix.titles[title] = hash
		ix.order = append(ix.order, title)
	}
}

// Get returns a copy of the record for a content hash, if present.
func (ix *Index) Get(hash string) (*SubmissionRecord, bool) {
	ix.mu.RLock()
	defer ix.mu.RUnlock()

	rec, ok := ix.records[hash]
	if !ok {
		return nil, false
	}
	return rec.clone(), true
}

// Len returns the number of distinct content hashes recorded.
func (ix *Index) Len() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return len(ix.records)
}

// Clear empties the index. Used for testing only.
func (ix *Index) Clear() {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	ix.records = make(map[string]*SubmissionRecord)
	ix.titles = make(map[string]string)
	ix.order = nil
}
