package dedup

import (
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/filebug/filebug/internal/report"
)

func testIssue(title, body string) report.Issue {
	return report.Issue{Title: title, Body: body, Repo: "acme/app"}
}

func TestContentHash(t *testing.T) {
	hash := ContentHash(testIssue("Crash on startup", "App crashes immediately"))
	if len(hash) != 16 {
		t.Fatalf("hash length = %d, want 16", len(hash))
	}
	for _, r := range hash {
		if !strings.ContainsRune("0123456789abcdef", r) {
			t.Fatalf("hash %q contains non-hex character %q", hash, r)
		}
	}

	// Hash is a pure function of normalized text: case and punctuation
	// differences collapse to the same key.
	same := ContentHash(testIssue("CRASH, on startup!!", "App crashes... immediately"))
	if same != hash {
		t.Errorf("normalization-equivalent issues hash differently: %s vs %s", hash, same)
	}

	other := ContentHash(testIssue("Different title", "App crashes immediately"))
	if other == hash {
		t.Error("distinct titles produced the same hash")
	}
}

func TestContentHashBodyTruncation(t *testing.T) {
	prefix := strings.Repeat("x", 500)
	a := ContentHash(testIssue("Same title", prefix+"alpha tail"))
	b := ContentHash(testIssue("Same title", prefix+"beta tail"))
	if a != b {
		t.Error("bodies differing only past 500 normalized bytes should hash equal")
	}

	c := ContentHash(testIssue("Same title", "short body"))
	if c == a {
		t.Error("different body prefixes should hash differently")
	}
}

func TestCheckDuplicateAfterRecord(t *testing.T) {
	ix := NewIndex(0)

	issueA := testIssue("Crash on startup", "App crashes immediately")
	ix.Record(issueA, report.PlatformGitHub, "success")

	// Identical normalized title + body prefix, different surface form.
	issueB := testIssue("Crash on Startup!", "App crashes immediately.")
	dec := ix.Check(issueB)
	if dec.Kind != Duplicate {
		t.Fatalf("Check() = %v, want Duplicate", dec.Kind)
	}
	if dec.Existing == nil || dec.Existing.ContentHash != ContentHash(issueA) {
		t.Errorf("Duplicate decision missing the stored record")
	}
	if !dec.Existing.Platforms[report.PlatformGitHub] {
		t.Errorf("record platforms = %v, want github", dec.Existing.Platforms)
	}
}

func TestCheckUniqueOnEmptyIndex(t *testing.T) {
	ix := NewIndex(0)
	if dec := ix.Check(testIssue("Anything", "at all")); dec.Kind != Unique {
		t.Fatalf("Check() on empty index = %v, want Unique", dec.Kind)
	}
}

func TestCheckThresholdInclusive(t *testing.T) {
	ix := NewIndex(0.85)
	base := strings.Repeat("a", 20)
	ix.Record(testIssue(base, "body one"), report.PlatformGitHub, "success")

	// 3 substitutions over length 20: similarity exactly 0.85.
	at := strings.Repeat("a", 17) + "bbb"
	dec := ix.Check(testIssue(at, "body two"))
	if dec.Kind != Similar {
		t.Fatalf("similarity 0.85 classified %v, want Similar", dec.Kind)
	}
	if dec.Matches[0].Similarity != 0.85 {
		t.Errorf("match similarity = %v, want 0.85", dec.Matches[0].Similarity)
	}

	// 4 substitutions over length 20: similarity 0.80, below threshold.
	below := strings.Repeat("a", 16) + "bbbb"
	if dec := ix.Check(testIssue(below, "body three")); dec.Kind != Unique {
		t.Fatalf("similarity 0.80 classified %v, want Unique", dec.Kind)
	}
}

func TestCheckSimilarRankingAndCap(t *testing.T) {
	ix := NewIndex(0.85)
	base := strings.Repeat("a", 100)

	// Seven candidates at decreasing similarity: i substitutions each.
	for i := 1; i <= 7; i++ {
		title := strings.Repeat("a", 100-i) + strings.Repeat("b", i)
		ix.Record(testIssue(title, fmt.Sprintf("body %d", i)), report.PlatformGitHub, "success")
	}

	dec := ix.Check(testIssue(base, "probe body"))
	if dec.Kind != Similar {
		t.Fatalf("Check() = %v, want Similar", dec.Kind)
	}
	if len(dec.Matches) != 5 {
		t.Fatalf("len(matches) = %d, want 5", len(dec.Matches))
	}
	for i := 1; i < len(dec.Matches); i++ {
		if dec.Matches[i].Similarity > dec.Matches[i-1].Similarity {
			t.Errorf("matches not sorted descending at %d: %v", i, dec.Matches)
		}
	}
	// Closest candidate (1 substitution, 0.99) ranks first.
	if dec.Matches[0].Similarity != 0.99 {
		t.Errorf("top match similarity = %v, want 0.99", dec.Matches[0].Similarity)
	}
}

func TestCheckSimilarTiesInsertionOrder(t *testing.T) {
	ix := NewIndex(0.85)

	// Two candidates with identical similarity to the probe.
	first := strings.Repeat("a", 19) + "b"
	second := "b" + strings.Repeat("a", 19)
	ix.Record(testIssue(first, "body first"), report.PlatformGitHub, "success")
	ix.Record(testIssue(second, "body second"), report.PlatformGitHub, "success")

	dec := ix.Check(testIssue(strings.Repeat("a", 20), "probe"))
	if dec.Kind != Similar {
		t.Fatalf("Check() = %v, want Similar", dec.Kind)
	}
	if len(dec.Matches) != 2 {
		t.Fatalf("len(matches) = %d, want 2", len(dec.Matches))
	}
	if dec.Matches[0].Similarity != dec.Matches[1].Similarity {
		t.Fatalf("expected a tie, got %v", dec.Matches)
	}
	if dec.Matches[0].NormalizedTitle != Normalize(first) {
		t.Errorf("tie not broken by insertion order: %v", dec.Matches)
	}
}

func TestRecordUpsert(t *testing.T) {
	ix := NewIndex(0)
	issue := testIssue("Crash on startup", "App crashes immediately")

	ix.Record(issue, report.PlatformGitHub, "success")
	ix.Record(issue, report.PlatformGitLab, "success")
	ix.Record(issue, report.PlatformGitHub, "error")

	if ix.Len() != 1 {
		t.Fatalf("Len() = %d, want 1", ix.Len())
	}
	rec, ok := ix.Get(ContentHash(issue))
	if !ok {
		t.Fatal("record not found")
	}
	if len(rec.Platforms) != 2 {
		t.Errorf("platforms = %v, want github+gitlab", rec.Platforms)
	}
	if len(rec.History) != 3 {
		t.Errorf("history length = %d, want 3", len(rec.History))
	}
	if rec.History[1].Platform != report.PlatformGitLab {
		t.Errorf("history order broken: %v", rec.History)
	}
}

func TestTitleConflictLastWriteWins(t *testing.T) {
	ix := NewIndex(0)

	// Same normalized title, different body prefixes → different hashes.
	a := testIssue("Crash on startup", "first body")
	b := testIssue("Crash on startup", "second body")
	ix.Record(a, report.PlatformGitHub, "success")
	ix.Record(b, report.PlatformGitHub, "success")

	if ix.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", ix.Len())
	}

	// A third issue with the same title but a third body must see the
	// newest hash in its Similar evidence.
	dec := ix.Check(testIssue("Crash on startup", "third body"))
	if dec.Kind != Similar {
		t.Fatalf("Check() = %v, want Similar", dec.Kind)
	}
	if dec.Matches[0].ContentHash != ContentHash(b) {
		t.Errorf("title index points at %s, want newest %s", dec.Matches[0].ContentHash, ContentHash(b))
	}
}

func TestConcurrentCheckRecord(t *testing.T) {
	ix := NewIndex(0)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func(n int) {
			defer wg.Done()
			issue := testIssue(fmt.Sprintf("issue number %d", n), fmt.Sprintf("body %d", n))
			ix.Record(issue, report.PlatformGitHub, "success")
		}(i)
		go func(n int) {
			defer wg.Done()
			issue := testIssue(fmt.Sprintf("issue number %d", n), fmt.Sprintf("body %d", n))
			_ = ix.Check(issue)
		}(i)
	}
	wg.Wait()

	if ix.Len() != 50 {
		t.Errorf("Len() = %d, want 50", ix.Len())
	}
}

func TestConcurrentRecordSameHash(t *testing.T) {
	ix := NewIndex(0)
	issue := testIssue("Crash on startup", "App crashes immediately")

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ix.Record(issue, report.PlatformGitHub, "success")
		}()
	}
	wg.Wait()

	if ix.Len() != 1 {
		t.Fatalf("Len() = %d, want 1", ix.Len())
	}
	rec, _ := ix.Get(ContentHash(issue))
	if len(rec.History) != 20 {
		t.Errorf("history length = %d, want 20", len(rec.History))
	}
}

func TestClear(t *testing.T) {
	ix := NewIndex(0)
	ix.Record(testIssue("a title here", "a body"), report.PlatformGitHub, "success")
	ix.Clear()
	if ix.Len() != 0 {
		t.Errorf("Len() after Clear = %d, want 0", ix.Len())
	}
	if dec := ix.Check(testIssue("a title here", "a body")); dec.Kind != Unique {
		t.Errorf("Check() after Clear = %v, want Unique", dec.Kind)
	}
}
