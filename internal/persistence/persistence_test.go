package persistence

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/talgya/npc-favor/internal/engine"
)

func openTemp(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "npc.db"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func sampleRecord() engine.StateRecord {
	return engine.StateRecord{
		"meta.version":       "1",
		"meta.run_id":        `"6f1c1c52-8d8e-4e43-9a4c-7c0f1f3f0a11"`,
		"meta.minute":        "2040",
		"agent.1.name":       `"Ada Miller"`,
		"agent.1.needs":      `{"energy":12,"social":30,"hunger":5,"work_satisfaction":40}`,
		"field.1.slot.1":     "1",
		"field.1.capacity":   "2",
		"player.1":           `{"value":61}`,
		"bond.1.2":           `{"value":57.5,"last_interaction":2000,"interactions":3}`,
		"agent.2.home":       `{"x":1,"y":0,"z":2}`,
		"agent.2.encounters": `[]`,
	}
}

func TestLoadStateEmpty(t *testing.T) {
	db := openTemp(t)
	if _, err := db.LoadState(); !errors.Is(err, ErrNoState) {
		t.Fatalf("got %v", err)
	}
}

func TestSaveLoadStateReplaces(t *testing.T) {
	db := openTemp(t)
	rec := sampleRecord()
	if err := db.SaveState(rec); err != nil {
		t.Fatalf("save: %v", err)
	}
	got, err := db.LoadState()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(got) != len(rec) {
		t.Fatalf("loaded %d keys want %d", len(got), len(rec))
	}
	for k, v := range rec {
		if got[k] != v {
			t.Fatalf("key %s: %q want %q", k, got[k], v)
		}
	}

	if err := db.SaveState(engine.StateRecord{"meta.version": "1"}); err != nil {
		t.Fatalf("second save: %v", err)
	}
	got, _ = db.LoadState()
	if len(got) != 1 {
		t.Fatalf("old keys survived a save: %v", got.Keys())
	}
}

func TestEventsAreIdempotentPerRun(t *testing.T) {
	db := openTemp(t)
	evs := []engine.Event{
		{Seq: 1, At: 100, Time: "Day 0 01:40 (spring)", Category: "spawn", AgentID: 1, Description: "Ada moved in"},
		{Seq: 2, At: 120, Category: "field", AgentID: 1, Description: "Ada started work",
			Meta: map[string]any{"slot": 1}},
	}
	if err := db.SaveEvents("run-a", evs); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := db.SaveEvents("run-a", evs); err != nil {
		t.Fatalf("resave: %v", err)
	}
	if err := db.SaveEvents("run-b", evs[:1]); err != nil {
		t.Fatalf("other run: %v", err)
	}

	got, err := db.RecentEvents(10)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("stored %d events want 3", len(got))
	}
	mine, err := db.AgentEvents(1, 1)
	if err != nil || len(mine) != 1 {
		t.Fatalf("agent events: %v %v", mine, err)
	}
	for _, e := range got {
		if e.Category == "field" {
			if slot, ok := e.Meta["slot"].(float64); !ok || slot != 1 {
				t.Fatalf("meta: %v", e.Meta)
			}
		}
	}
}

func TestMeta(t *testing.T) {
	db := openTemp(t)
	if _, ok, err := db.GetMeta("missing"); err != nil || ok {
		t.Fatalf("missing: %v %v", ok, err)
	}
	if err := db.SaveMeta("run_id", "abc"); err != nil {
		t.Fatalf("save: %v", err)
	}
	if v, ok, err := db.GetMeta("run_id"); err != nil || !ok || v != "abc" {
		t.Fatalf("get: %q %v %v", v, ok, err)
	}
}

func TestSaveWorldState(t *testing.T) {
	db := openTemp(t)
	rec := sampleRecord()
	evs := []engine.Event{{Seq: 1, At: 2040, Category: "social", Description: "hello"}}
	if err := db.SaveWorldState(rec, evs); err != nil {
		t.Fatalf("save: %v", err)
	}
	if v, _, _ := db.GetMeta("last_save_minute"); v != "2040" {
		t.Fatalf("last_save_minute %q", v)
	}
	if v, _, _ := db.GetMeta("run_id"); v != "6f1c1c52-8d8e-4e43-9a4c-7c0f1f3f0a11" {
		t.Fatalf("run_id %q", v)
	}
}

func TestArchiveRoundTrip(t *testing.T) {
	rec := sampleRecord()
	path := ArchiveName(filepath.Join(t.TempDir(), "snaps"), rec.RunID(), 2040)
	size, err := WriteArchive(path, rec)
	if err != nil {
		t.Fatalf("write: %v", err)
	}
	if size <= 0 {
		t.Fatalf("size %d", size)
	}
	got, hdr, err := ReadArchive(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if hdr.Version != engine.StateRecordVersion || hdr.Minute != 2040 || hdr.Keys != len(rec) {
		t.Fatalf("header: %+v", hdr)
	}
	for k, v := range rec {
		if got[k] != v {
			t.Fatalf("key %s: %q want %q", k, got[k], v)
		}
	}
}
