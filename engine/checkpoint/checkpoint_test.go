package checkpoint

import (
	"errors"
	"testing"
)

func TestKeyStable(t *testing.T) {
	a := Key("ukpga", 2020, 2024, []string{"b", "a"})
	b := Key("ukpga", 2020, 2024, []string{"a", "b"})
	if a != b {
		t.Fatal("subtype order must not affect the key")
	}
	if a != "ukpga_2020_2024_a_b" {
		t.Fatalf("key = %q", a)
	}
	if Key("ukpga", 2020, 2024, nil) != "ukpga_2020_2024" {
		t.Fatal("empty subtypes should be omitted")
	}
}

func TestProcessedSurvivesReopen(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(dir, "ukpga_2024_2024")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	s.MarkProcessed("http://example.com/1")
	s.MarkCombinationComplete(CombinationKey("ukpga", 2024))
	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	re, err := Open(dir, "ukpga_2024_2024")
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	if !re.IsProcessed("http://example.com/1") {
		t.Fatal("processed URL must survive reopen")
	}
	if !re.IsCombinationComplete("ukpga_2024") {
		t.Fatal("completed combination must survive reopen")
	}
	if re.IsProcessed("http://example.com/2") {
		t.Fatal("unknown URL must not be processed")
	}
}

func TestMarkFailedVisibleInStats(t *testing.T) {
	s, _ := Open(t.TempDir(), "k")
	s.MarkFailed("http://example.com/bad", errors.New("boom"))
	st := s.Stats()
	if st.Failed != 1 || st.Processed != 0 {
		t.Fatalf("stats = %+v", st)
	}
	if s.FailedURLs()["http://example.com/bad"].Error != "boom" {
		t.Fatal("failure reason should be recorded")
	}

	// A later success clears the failure.
	s.MarkProcessed("http://example.com/bad")
	if s.Stats().Failed != 0 {
		t.Fatal("success should clear the failed entry")
	}
}

func TestPositions(t *testing.T) {
	s, _ := Open(t.TempDir(), "k")
	s.SavePosition("scroll", "page-7")
	if s.GetPosition("scroll") != "page-7" {
		t.Fatal("position round-trip")
	}
	if s.GetPosition("missing") != nil {
		t.Fatal("missing position should be nil")
	}
}

func TestClear(t *testing.T) {
	dir := t.TempDir()
	s, _ := Open(dir, "k")
	s.MarkProcessed("u")
	if err := s.Clear(); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	re, _ := Open(dir, "k")
	if re.IsProcessed("u") {
		t.Fatal("Clear must wipe persisted state")
	}
}
