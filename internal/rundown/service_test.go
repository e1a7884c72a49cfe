package rundown

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
)

func TestShowRepoLifecycle(t *testing.T) {
	tempDir := t.TempDir()
	svc := New(tempDir)

	initial := Snapshot{
		ShowID: "show-1",
		Name:   "Evening Performance",
		Venue:  "Main Stage",
		Cues: []Entry{
			{ID: "cue-1", Type: "STAGE", Title: "House to half", Priority: "MEDIUM", Status: "DRAFT", Targets: json.RawMessage(`{"departments":["DECK"]}`)},
		},
	}

	if err := svc.EnsureShowRepo("show-1", initial, "Avery"); err != nil {
		t.Fatalf("EnsureShowRepo() error = %v", err)
	}
	if _, err := os.Stat(filepath.Join(tempDir, "show-1")); err != nil {
		t.Fatalf("repo directory missing: %v", err)
	}

	// Ensuring twice is a no-op.
	if err := svc.EnsureShowRepo("show-1", initial, "Avery"); err != nil {
		t.Fatalf("second EnsureShowRepo() error = %v", err)
	}

	updated := initial
	updated.Cues = append(updated.Cues, Entry{ID: "cue-2", Type: "LIGHT", Title: "LX 12 standby", Priority: "HIGH", Status: "STANDBY"})
	commit, err := svc.CommitSnapshot("show-1", updated, "Avery", "Cue LX 12 to STANDBY")
	if err != nil {
		t.Fatalf("CommitSnapshot() error = %v", err)
	}
	if commit.Hash == "" {
		t.Fatal("expected commit hash")
	}

	history, err := svc.History("show-1", 10)
	if err != nil {
		t.Fatalf("History() error = %v", err)
	}
	if len(history) != 2 {
		t.Fatalf("expected 2 history entries, got %d", len(history))
	}
	if !strings.Contains(history[0].Message, "LX 12") {
		t.Fatalf("newest commit should be first, got %q", history[0].Message)
	}

	at, err := svc.SnapshotByHash("show-1", commit.Hash)
	if err != nil {
		t.Fatalf("SnapshotByHash() error = %v", err)
	}
	if len(at.Cues) != 2 {
		t.Fatalf("snapshot at commit should have 2 cues, got %d", len(at.Cues))
	}

	head, headCommit, err := svc.HeadSnapshot("show-1")
	if err != nil {
		t.Fatalf("HeadSnapshot() error = %v", err)
	}
	if headCommit.Hash != commit.Hash {
		t.Fatalf("head commit = %s, want %s", headCommit.Hash, commit.Hash)
	}
	if len(head.Cues) != 2 || head.Cues[1].Title != "LX 12 standby" {
		t.Fatalf("unexpected head snapshot: %+v", head)
	}
}

func TestSnapshotRoundTripPreservesTargets(t *testing.T) {
	tempDir := t.TempDir()
	svc := New(tempDir)

	initial := Snapshot{
		ShowID: "show-1",
		Name:   "Matinee",
		Cues: []Entry{
			{ID: "cue-1", Type: "AUDIO", Title: "Mics live", Priority: "CRITICAL", Status: "STANDBY", Targets: json.RawMessage(`["FOH","DECK"]`)},
		},
	}
	if err := svc.EnsureShowRepo("show-1", initial, "Avery"); err != nil {
		t.Fatalf("EnsureShowRepo() error = %v", err)
	}

	head, _, err := svc.HeadSnapshot("show-1")
	if err != nil {
		t.Fatalf("HeadSnapshot() error = %v", err)
	}
	var raw []string
	if err := json.Unmarshal(head.Cues[0].Targets, &raw); err != nil {
		t.Fatalf("targets did not survive round-trip as a bare array: %v", err)
	}
	if len(raw) != 2 || raw[0] != "FOH" {
		t.Fatalf("unexpected targets: %v", raw)
	}
}

func TestConcurrentCommitsSameShow(t *testing.T) {
	tempDir := t.TempDir()
	svc := New(tempDir)

	initial := Snapshot{ShowID: "show-1", Name: "Tech Rehearsal"}
	if err := svc.EnsureShowRepo("show-1", initial, "Avery"); err != nil {
		t.Fatalf("EnsureShowRepo() error = %v", err)
	}

	const writers = 12
	var wg sync.WaitGroup
	errCh := make(chan error, writers)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			next := initial
			next.Cues = []Entry{{ID: fmt.Sprintf("cue-%02d", idx), Type: "STAGE", Title: fmt.Sprintf("Cue %02d", idx), Priority: "LOW", Status: "DRAFT"}}
			if _, err := svc.CommitSnapshot("show-1", next, "Avery", fmt.Sprintf("Commit %02d", idx)); err != nil {
				errCh <- err
			}
		}(i)
	}
	wg.Wait()
	close(errCh)

	for err := range errCh {
		if err != nil {
			t.Fatalf("CommitSnapshot() concurrent error = %v", err)
		}
	}

	history, err := svc.History("show-1", 100)
	if err != nil {
		t.Fatalf("History() error = %v", err)
	}
	if len(history) < writers+1 {
		t.Fatalf("expected at least %d commits in history, got %d", writers+1, len(history))
	}

	head, _, err := svc.HeadSnapshot("show-1")
	if err != nil {
		t.Fatalf("HeadSnapshot() error = %v", err)
	}
	if len(head.Cues) != 1 || !strings.HasPrefix(head.Cues[0].ID, "cue-") {
		t.Fatalf("unexpected head snapshot after concurrent commits: %+v", head)
	}
}
