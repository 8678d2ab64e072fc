package archive

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/anishmolla/creator-support-army-bot/agreement"
)

var testNow = time.Date(2026, 2, 7, 8, 0, 0, 0, time.UTC)

func fixedNow() time.Time { return testNow }

func pendingAgreement(chatID, id int64) agreement.Agreement {
	return agreement.Agreement{
		ID:             id,
		ConversationID: chatID,
		Initiator:      agreement.Identity{ID: 1, Handle: "alice"},
		Partner:        agreement.PartnerFromHandle("bob"),
		Details:        "3 thumbnails for 1 track",
		Status:         agreement.StatusPending,
		ProposedAt:     testNow,
	}
}

func accepted(a agreement.Agreement) agreement.Agreement {
	a.Status = agreement.StatusAccepted
	a.CreatedAt = testNow.Add(time.Second)
	a.ResolvedAt = testNow.Add(time.Minute)
	a.ResolvedBy = &agreement.Identity{ID: 2, Handle: "bob"}
	a.MatchedBy = agreement.MatchHandle
	return a
}

// exerciseArchive runs the same lifecycle against any backend.
func exerciseArchive(t *testing.T, arc Archive) []Record {
	t.Helper()
	ctx := context.Background()

	first := pendingAgreement(-100, 1)
	if err := arc.RecordAgreement(ctx, first, agreement.EventActivated); err != nil {
		t.Fatalf("RecordAgreement(activated) error = %v", err)
	}
	if err := arc.RecordAgreement(ctx, pendingAgreement(-100, 2), agreement.EventQueued); err != nil {
		t.Fatalf("RecordAgreement(queued) error = %v", err)
	}
	if err := arc.RecordAgreement(ctx, accepted(first), agreement.EventAccepted); err != nil {
		t.Fatalf("RecordAgreement(accepted) error = %v", err)
	}
	if err := arc.RecordAgreement(ctx, pendingAgreement(-200, 1), agreement.EventActivated); err != nil {
		t.Fatalf("RecordAgreement(other chat) error = %v", err)
	}

	recs, err := arc.List(ctx)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(recs) != 3 {
		t.Fatalf("List() returned %d records, want 3", len(recs))
	}
	wantRefs := []string{"CSA-20260207-0001", "CSA-20260207-0002", "CSA-20260207-0003"}
	for i, want := range wantRefs {
		if recs[i].Ref != want {
			t.Fatalf("recs[%d].Ref = %q, want %q", i, recs[i].Ref, want)
		}
	}
	got := recs[0]
	if got.Key != "-100:1" || got.Status != agreement.StatusAccepted || got.LastEvent != agreement.EventAccepted {
		t.Fatalf("first record = %+v", got)
	}
	if got.ResolvedBy == nil || got.ResolvedBy.ID != 2 || got.MatchedBy != agreement.MatchHandle {
		t.Fatalf("first record resolver = %+v / %q", got.ResolvedBy, got.MatchedBy)
	}
	if got.ActivatedAt == nil || !got.ActivatedAt.Equal(testNow.Add(time.Second)) {
		t.Fatalf("first record activated_at = %v", got.ActivatedAt)
	}
	if recs[1].Key != "-100:2" || recs[1].Status != agreement.StatusPending || recs[1].ActivatedAt != nil {
		t.Fatalf("queued record = %+v", recs[1])
	}
	if recs[2].ChatID != -200 {
		t.Fatalf("third record chat = %d, want -200", recs[2].ChatID)
	}
	return recs
}

func TestFileArchive(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "deals.json")
	eventsPath := filepath.Join(dir, "events.jsonl")
	arc, err := Open(context.Background(), Options{
		Driver:     DriverFile,
		Path:       path,
		EventsLog:  true,
		EventsPath: eventsPath,
		LocksDir:   filepath.Join(dir, ".fslocks"),
		Now:        fixedNow,
	})
	if err != nil {
		t.Fatalf("Open(file) error = %v", err)
	}
	exerciseArchive(t, arc)
	if err := arc.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	var doc fileDoc
	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	if err := json.Unmarshal(raw, &doc); err != nil {
		t.Fatalf("decode deals.json: %v", err)
	}
	if doc.LastCounter != 3 || doc.Version != fileDocVersion {
		t.Fatalf("doc header = version %d counter %d, want %d/3", doc.Version, doc.LastCounter, fileDocVersion)
	}

	f, err := os.Open(eventsPath)
	if err != nil {
		t.Fatalf("Open(events) error = %v", err)
	}
	defer f.Close()
	sc := bufio.NewScanner(f)
	ids := map[string]bool{}
	lines := 0
	for sc.Scan() {
		var ev Event
		if err := json.Unmarshal(sc.Bytes(), &ev); err != nil {
			t.Fatalf("decode event line %d: %v", lines, err)
		}
		if ev.ID == "" || ids[ev.ID] {
			t.Fatalf("event %d id = %q, want unique non-empty", lines, ev.ID)
		}
		ids[ev.ID] = true
		lines++
	}
	if lines != 4 {
		t.Fatalf("event lines = %d, want 4", lines)
	}
}

func TestFileArchiveRunsDoNotCollide(t *testing.T) {
	dir := t.TempDir()
	opts := Options{Driver: DriverFile, Path: filepath.Join(dir, "deals.json"), Now: fixedNow}
	ctx := context.Background()

	for run := 0; run < 2; run++ {
		arc, err := Open(ctx, opts)
		if err != nil {
			t.Fatalf("Open() run %d error = %v", run, err)
		}
		if err := arc.RecordAgreement(ctx, pendingAgreement(-100, 1), agreement.EventActivated); err != nil {
			t.Fatalf("RecordAgreement() run %d error = %v", run, err)
		}
		_ = arc.Close()
	}

	arc, _ := Open(ctx, opts)
	recs, err := arc.List(ctx)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(recs) != 2 || recs[0].RunID == recs[1].RunID || recs[0].Ref == recs[1].Ref {
		t.Fatalf("records across runs = %+v, want two distinct", recs)
	}
}

func TestSQLiteArchive(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state", "deals.db")
	arc, err := Open(context.Background(), Options{Driver: DriverSQLite, Path: path, Now: fixedNow})
	if err != nil {
		t.Fatalf("Open(sqlite) error = %v", err)
	}
	defer arc.Close()
	exerciseArchive(t, arc)

	s := arc.(*SQLiteArchive)
	var events int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM deal_events`).Scan(&events); err != nil {
		t.Fatalf("count events: %v", err)
	}
	if events != 4 {
		t.Fatalf("deal_events = %d, want 4", events)
	}

	var journal string
	if err := s.db.QueryRow(`PRAGMA journal_mode`).Scan(&journal); err != nil {
		t.Fatalf("read journal_mode: %v", err)
	}
	if journal != "wal" {
		t.Fatalf("journal_mode = %q, want wal", journal)
	}
	var fk int
	if err := s.db.QueryRow(`PRAGMA foreign_keys`).Scan(&fk); err != nil {
		t.Fatalf("read foreign_keys: %v", err)
	}
	if fk != 1 {
		t.Fatalf("foreign_keys = %d, want 1", fk)
	}
}

func TestSQLiteArchiveOrdersPastFourDigits(t *testing.T) {
	path := filepath.Join(t.TempDir(), "deals.db")
	s, err := OpenSQLite(context.Background(), Options{Path: path, Now: fixedNow})
	if err != nil {
		t.Fatalf("OpenSQLite() error = %v", err)
	}
	defer s.Close()
	ctx := context.Background()
	if _, err := s.db.ExecContext(ctx, `INSERT INTO meta (key, value) VALUES (?, 9998)`, counterKey); err != nil {
		t.Fatalf("seed counter: %v", err)
	}
	for id := int64(1); id <= 2; id++ {
		if err := s.RecordAgreement(ctx, pendingAgreement(-100, id), agreement.EventQueued); err != nil {
			t.Fatalf("RecordAgreement(%d) error = %v", id, err)
		}
	}
	recs, err := s.List(ctx)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(recs) != 2 || recs[0].Ref != "CSA-20260207-9999" || recs[1].Ref != "CSA-20260207-10000" {
		t.Fatalf("List() refs = %+v, want 9999 before 10000", recs)
	}
}

func TestSortRecordsUsesCounter(t *testing.T) {
	recs := []Record{
		{Ref: "CSA-20260207-10000", Seq: 10000},
		{Ref: "CSA-20260207-9999", Seq: 9999},
	}
	sortRecords(recs)
	if recs[0].Seq != 9999 || recs[1].Seq != 10000 {
		t.Fatalf("sortRecords() = %+v, want counter order", recs)
	}
}

func TestOpenDrivers(t *testing.T) {
	arc, err := Open(context.Background(), Options{Driver: " NONE "})
	if err != nil {
		t.Fatalf("Open(none) error = %v", err)
	}
	if err := arc.RecordAgreement(context.Background(), pendingAgreement(1, 1), agreement.EventActivated); err != nil {
		t.Fatalf("none RecordAgreement() error = %v", err)
	}
	if _, err := Open(context.Background(), Options{Driver: "postgres"}); !errors.Is(err, ErrUnknownDriver) {
		t.Fatalf("Open(postgres) error = %v, want ErrUnknownDriver", err)
	}
}

func TestRecordAgreementValidates(t *testing.T) {
	arc, err := OpenFile(Options{Path: filepath.Join(t.TempDir(), "deals.json")})
	if err != nil {
		t.Fatalf("OpenFile() error = %v", err)
	}
	if err := arc.RecordAgreement(context.Background(), agreement.Agreement{}, agreement.EventActivated); !errors.Is(err, ErrInvalidRecord) {
		t.Fatalf("RecordAgreement(zero) error = %v, want ErrInvalidRecord", err)
	}
}

func TestFormatRef(t *testing.T) {
	at := time.Date(2026, 12, 31, 23, 0, 0, 0, time.FixedZone("IST", 5*3600+1800))
	if got := formatRef(at, 7); got != "CSA-20261231-0007" {
		t.Fatalf("formatRef() = %q", got)
	}
	if got := formatRef(at, 12345); got != "CSA-20261231-12345" {
		t.Fatalf("formatRef(wide) = %q", got)
	}
}

func TestFilterRecords(t *testing.T) {
	recs := []Record{
		{Ref: "a", ChatID: 1, Status: agreement.StatusAccepted},
		{Ref: "b", ChatID: 2, Status: agreement.StatusAccepted},
		{Ref: "c", ChatID: 1, Status: agreement.StatusExpired},
	}
	if got := FilterRecords(recs, Filter{}); len(got) != 3 {
		t.Fatalf("FilterRecords(empty) = %d, want 3", len(got))
	}
	got := FilterRecords(recs, Filter{Status: agreement.StatusAccepted, ChatID: 1})
	if len(got) != 1 || got[0].Ref != "a" {
		t.Fatalf("FilterRecords(accepted, chat 1) = %+v", got)
	}
}
