package sinks

import (
	"path/filepath"
	"testing"
	"time"

	"deckstage/internal/deckbuilder/core"
)

func TestApplyJournal_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "applies.jsonl")
	j, err := NewApplyJournal(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}

	recs := []core.ApplyRecord{
		{DeckID: "d1", ViewerID: "alice", CommitID: "c1", Upserts: 2, Deletes: 1, At: time.Now().UTC().Truncate(time.Second)},
		{DeckID: "d1", ViewerID: "alice", CommitID: "c2", Partial: true, At: time.Now().UTC().Truncate(time.Second)},
	}
	for _, rec := range recs {
		if err := j.Record(rec); err != nil {
			t.Fatalf("record: %v", err)
		}
	}
	if err := j.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	got, err := ReadAll(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 records, got %d", len(got))
	}
	if got[0].CommitID != "c1" || got[0].Upserts != 2 || got[1].Partial != true {
		t.Fatalf("records mismatch: %+v", got)
	}
}

func TestApplyJournal_AppendsAcrossOpens(t *testing.T) {
	path := filepath.Join(t.TempDir(), "applies.jsonl")
	for i := 0; i < 2; i++ {
		j, err := NewApplyJournal(path)
		if err != nil {
			t.Fatalf("open %d: %v", i, err)
		}
		if err := j.Record(core.ApplyRecord{DeckID: "d1", CommitID: "c"}); err != nil {
			t.Fatalf("record %d: %v", i, err)
		}
		if err := j.Close(); err != nil {
			t.Fatalf("close %d: %v", i, err)
		}
	}
	got, err := ReadAll(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("journal must append, got %d records", len(got))
	}
}
