package archive

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/anishmolla/creator-support-army-bot/agreement"
	"github.com/anishmolla/creator-support-army-bot/internal/fsstore"
)

//go:embed schema.sql
var schemaSQL string

const counterKey = "last_counter"

// SQLiteArchive keeps records in a deals table and transitions in
// deal_events. The reference counter lives in the meta table.
type SQLiteArchive struct {
	db    *sql.DB
	runID string
	now   func() time.Time
}

func OpenSQLite(ctx context.Context, opts Options) (*SQLiteArchive, error) {
	if strings.TrimSpace(opts.Path) == "" {
		return nil, fmt.Errorf("%w: archive path is required", fsstore.ErrInvalidPath)
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	cleanPath := filepath.Clean(opts.Path)
	if err := fsstore.EnsureDir(filepath.Dir(cleanPath), 0); err != nil {
		return nil, err
	}
	dsn := cleanPath + "?_pragma=journal_mode(WAL)&_pragma=foreign_keys(ON)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	// One writer at a time keeps the counter transaction simple.
	db.SetMaxOpenConns(1)
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if _, err := db.ExecContext(ctx, schemaSQL); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &SQLiteArchive{db: db, runID: newRunID(), now: opts.Now}, nil
}

func (s *SQLiteArchive) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *SQLiteArchive) RecordAgreement(ctx context.Context, ag agreement.Agreement, kind agreement.EventKind) (err error) {
	if err := validateAgreement(ag); err != nil {
		return err
	}
	now := s.now()
	key := recordKey(ag.ConversationID, ag.ID)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin archive tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var ref string
	var seq, proposedAt int64
	err = tx.QueryRowContext(ctx,
		`SELECT ref, seq, proposed_at FROM deals WHERE run_id = ? AND deal_key = ?`,
		s.runID, key,
	).Scan(&ref, &seq, &proposedAt)

	var rec Record
	switch {
	case errors.Is(err, sql.ErrNoRows):
		counter, cerr := nextCounter(ctx, tx)
		if cerr != nil {
			return cerr
		}
		rec = newRecord(s.runID, ag, counter, now)
	case err != nil:
		return fmt.Errorf("load archive record %s: %w", key, err)
	default:
		rec = Record{
			RunID:       s.runID,
			Key:         key,
			Ref:         ref,
			Seq:         seq,
			ChatID:      ag.ConversationID,
			AgreementID: ag.ID,
			ProposedAt:  fromMillis(proposedAt),
		}
	}
	rec.apply(ag, kind, now)

	if err = upsertRecord(ctx, tx, rec); err != nil {
		return err
	}
	ev := rec.event(kind)
	if _, err = tx.ExecContext(ctx,
		`INSERT INTO deal_events (id, run_id, deal_key, ref, kind, status, at) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		ev.ID, ev.RunID, ev.Key, ev.Ref, string(ev.Kind), string(ev.Status), toMillis(ev.At),
	); err != nil {
		return fmt.Errorf("insert archive event %s: %w", key, err)
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit archive tx: %w", err)
	}
	return nil
}

func nextCounter(ctx context.Context, tx *sql.Tx) (int64, error) {
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO meta (key, value) VALUES (?, 1)
		 ON CONFLICT(key) DO UPDATE SET value = value + 1`,
		counterKey,
	); err != nil {
		return 0, fmt.Errorf("bump archive counter: %w", err)
	}
	var n int64
	if err := tx.QueryRowContext(ctx, `SELECT value FROM meta WHERE key = ?`, counterKey).Scan(&n); err != nil {
		return 0, fmt.Errorf("read archive counter: %w", err)
	}
	return n, nil
}

func upsertRecord(ctx context.Context, tx *sql.Tx, rec Record) error {
	initiator, err := json.Marshal(rec.Initiator)
	if err != nil {
		return err
	}
	partner, err := json.Marshal(rec.Partner)
	if err != nil {
		return err
	}
	var resolvedBy sql.NullString
	if rec.ResolvedBy != nil {
		b, err := json.Marshal(rec.ResolvedBy)
		if err != nil {
			return err
		}
		resolvedBy = sql.NullString{String: string(b), Valid: true}
	}
	_, err = tx.ExecContext(ctx,
		`INSERT INTO deals (
		   run_id, deal_key, ref, seq, chat_id, agreement_id, status, last_event, details,
		   matched_by, initiator_json, partner_json, resolved_by_json,
		   proposed_at, activated_at, resolved_at, updated_at
		 ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(run_id, deal_key) DO UPDATE SET
		   status = excluded.status,
		   last_event = excluded.last_event,
		   details = excluded.details,
		   matched_by = excluded.matched_by,
		   initiator_json = excluded.initiator_json,
		   partner_json = excluded.partner_json,
		   resolved_by_json = excluded.resolved_by_json,
		   activated_at = excluded.activated_at,
		   resolved_at = excluded.resolved_at,
		   updated_at = excluded.updated_at`,
		rec.RunID, rec.Key, rec.Ref, rec.Seq, rec.ChatID, rec.AgreementID,
		string(rec.Status), string(rec.LastEvent), rec.Details, string(rec.MatchedBy),
		string(initiator), string(partner), resolvedBy,
		toMillis(rec.ProposedAt), nullMillis(rec.ActivatedAt), nullMillis(rec.ResolvedAt), toMillis(rec.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("upsert archive record %s: %w", rec.Key, err)
	}
	return nil
}

func (s *SQLiteArchive) List(ctx context.Context) ([]Record, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT run_id, deal_key, ref, seq, chat_id, agreement_id, status, last_event, details,
		        matched_by, initiator_json, partner_json, resolved_by_json,
		        proposed_at, activated_at, resolved_at, updated_at
		   FROM deals
		  ORDER BY seq, ref`,
	)
	if err != nil {
		return nil, fmt.Errorf("list archive: %w", err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var (
			rec                          Record
			status, lastEvent, matchedBy string
			initiator, partner           string
			resolvedBy                   sql.NullString
			proposedAt, updatedAt        int64
			activatedAt, resolvedAt      sql.NullInt64
		)
		if err := rows.Scan(
			&rec.RunID, &rec.Key, &rec.Ref, &rec.Seq, &rec.ChatID, &rec.AgreementID, &status, &lastEvent, &rec.Details,
			&matchedBy, &initiator, &partner, &resolvedBy,
			&proposedAt, &activatedAt, &resolvedAt, &updatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan archive row: %w", err)
		}
		rec.Status = agreement.Status(status)
		rec.LastEvent = agreement.EventKind(lastEvent)
		rec.MatchedBy = agreement.MatchKind(matchedBy)
		if err := json.Unmarshal([]byte(initiator), &rec.Initiator); err != nil {
			return nil, fmt.Errorf("decode initiator of %s: %w", rec.Ref, err)
		}
		if err := json.Unmarshal([]byte(partner), &rec.Partner); err != nil {
			return nil, fmt.Errorf("decode partner of %s: %w", rec.Ref, err)
		}
		if resolvedBy.Valid {
			var by agreement.Identity
			if err := json.Unmarshal([]byte(resolvedBy.String), &by); err != nil {
				return nil, fmt.Errorf("decode resolver of %s: %w", rec.Ref, err)
			}
			rec.ResolvedBy = &by
		}
		rec.ProposedAt = fromMillis(proposedAt)
		rec.UpdatedAt = fromMillis(updatedAt)
		if activatedAt.Valid {
			t := fromMillis(activatedAt.Int64)
			rec.ActivatedAt = &t
		}
		if resolvedAt.Valid {
			t := fromMillis(resolvedAt.Int64)
			rec.ResolvedAt = &t
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate archive rows: %w", err)
	}
	return out, nil
}

func toMillis(value time.Time) int64 {
	return value.UTC().UnixMilli()
}

func fromMillis(value int64) time.Time {
	return time.UnixMilli(value).UTC()
}

func nullMillis(t *time.Time) sql.NullInt64 {
	if t == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: toMillis(*t), Valid: true}
}
