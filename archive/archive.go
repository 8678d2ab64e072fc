// Package archive keeps a best-effort audit trail of agreements. It is written
// for humans to read later and is never replayed into the engine.
package archive

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/anishmolla/creator-support-army-bot/agreement"
)

const (
	DriverFile   = "file"
	DriverSQLite = "sqlite"
	DriverNone   = "none"

	refPrefix = "CSA"
)

var (
	ErrUnknownDriver = errors.New("archive: unknown driver")
	ErrInvalidRecord = errors.New("archive: invalid record")
)

// Record is the archived view of one agreement. Agreement IDs restart with
// every process, so a record is identified by RunID plus Key.
type Record struct {
	RunID       string               `json:"run_id"`
	Key         string               `json:"key"`
	Ref         string               `json:"ref"`
	Seq         int64                `json:"seq"`
	ChatID      int64                `json:"chat_id"`
	AgreementID int64                `json:"agreement_id"`
	Status      agreement.Status     `json:"status"`
	LastEvent   agreement.EventKind  `json:"last_event"`
	Initiator   agreement.Identity   `json:"initiator"`
	Partner     agreement.PartnerRef `json:"partner"`
	Details     string               `json:"details"`
	MatchedBy   agreement.MatchKind  `json:"matched_by,omitempty"`
	ResolvedBy  *agreement.Identity  `json:"resolved_by,omitempty"`
	ProposedAt  time.Time            `json:"proposed_at"`
	ActivatedAt *time.Time           `json:"activated_at,omitempty"`
	ResolvedAt  *time.Time           `json:"resolved_at,omitempty"`
	UpdatedAt   time.Time            `json:"updated_at"`
}

// Event is one archived transition.
type Event struct {
	ID     string              `json:"id"`
	RunID  string              `json:"run_id"`
	Key    string              `json:"key"`
	Ref    string              `json:"ref"`
	Kind   agreement.EventKind `json:"kind"`
	Status agreement.Status    `json:"status"`
	At     time.Time           `json:"at"`
}

// Archive implements agreement.Recorder.
type Archive interface {
	RecordAgreement(ctx context.Context, a agreement.Agreement, kind agreement.EventKind) error
	List(ctx context.Context) ([]Record, error)
	Close() error
}

type Options struct {
	Driver string
	Path   string
	// EventsLog enables the JSONL transition log of the file driver.
	EventsLog  bool
	EventsPath string
	LocksDir   string
	Now        func() time.Time
}

// Open returns the archive for opts.Driver. The none driver records nothing.
func Open(ctx context.Context, opts Options) (Archive, error) {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	switch strings.ToLower(strings.TrimSpace(opts.Driver)) {
	case "", DriverFile:
		return OpenFile(opts)
	case DriverSQLite:
		return OpenSQLite(ctx, opts)
	case DriverNone:
		return nopArchive{}, nil
	default:
		return nil, fmt.Errorf("%w: %q (expected file|sqlite|none)", ErrUnknownDriver, opts.Driver)
	}
}

func newRunID() string {
	if id, err := uuid.NewV7(); err == nil {
		return id.String()
	}
	return uuid.NewString()
}

func newEventID() string {
	return newRunID()
}

func recordKey(chatID, agreementID int64) string {
	return strconv.FormatInt(chatID, 10) + ":" + strconv.FormatInt(agreementID, 10)
}

// formatRef renders CSA-YYYYMMDD-NNNN.
func formatRef(at time.Time, counter int64) string {
	return fmt.Sprintf("%s-%s-%04d", refPrefix, at.UTC().Format("20060102"), counter)
}

func validateAgreement(a agreement.Agreement) error {
	if a.ID <= 0 {
		return fmt.Errorf("%w: agreement id %d", ErrInvalidRecord, a.ID)
	}
	if a.Status == "" {
		return fmt.Errorf("%w: agreement %d has no status", ErrInvalidRecord, a.ID)
	}
	return nil
}

func newRecord(runID string, a agreement.Agreement, counter int64, now time.Time) Record {
	refAt := a.ProposedAt
	if refAt.IsZero() {
		refAt = now
	}
	return Record{
		RunID:       runID,
		Key:         recordKey(a.ConversationID, a.ID),
		Ref:         formatRef(refAt, counter),
		Seq:         counter,
		ChatID:      a.ConversationID,
		AgreementID: a.ID,
		ProposedAt:  refAt.UTC(),
	}
}

// apply copies the agreement's current state into the record.
func (r *Record) apply(a agreement.Agreement, kind agreement.EventKind, now time.Time) {
	r.Status = a.Status
	r.LastEvent = kind
	r.Initiator = a.Initiator
	r.Partner = a.Partner
	r.Details = a.Details
	r.MatchedBy = a.MatchedBy
	r.ActivatedAt = timePtr(a.CreatedAt)
	r.ResolvedAt = timePtr(a.ResolvedAt)
	r.ResolvedBy = nil
	if a.ResolvedBy != nil {
		by := *a.ResolvedBy
		r.ResolvedBy = &by
	}
	r.UpdatedAt = now.UTC()
}

func (r Record) event(kind agreement.EventKind) Event {
	return Event{
		ID:     newEventID(),
		RunID:  r.RunID,
		Key:    r.Key,
		Ref:    r.Ref,
		Kind:   kind,
		Status: r.Status,
		At:     r.UpdatedAt,
	}
}

func timePtr(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	u := t.UTC()
	return &u
}

// sortRecords orders by allocation counter. References alone do not sort
// once the counter outgrows its four-digit padding.
func sortRecords(recs []Record) {
	sort.SliceStable(recs, func(i, j int) bool {
		if recs[i].Seq != recs[j].Seq {
			return recs[i].Seq < recs[j].Seq
		}
		return recs[i].Ref < recs[j].Ref
	})
}

// Filter narrows a listing. Zero values match everything.
type Filter struct {
	Status agreement.Status
	ChatID int64
}

func FilterRecords(recs []Record, f Filter) []Record {
	out := make([]Record, 0, len(recs))
	for _, r := range recs {
		if f.Status != "" && r.Status != f.Status {
			continue
		}
		if f.ChatID != 0 && r.ChatID != f.ChatID {
			continue
		}
		out = append(out, r)
	}
	return out
}

type nopArchive struct{}

func (nopArchive) RecordAgreement(context.Context, agreement.Agreement, agreement.EventKind) error {
	return nil
}

func (nopArchive) List(context.Context) ([]Record, error) { return nil, nil }
func (nopArchive) Close() error                           { return nil }
