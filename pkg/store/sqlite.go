package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/agentstation/utc"
	_ "modernc.org/sqlite" // registers the "sqlite" driver

	"github.com/coursekit/coursemap/pkg/errors"
	"github.com/coursekit/coursemap/pkg/session"
)

// Schema for the reconciliation tables. Applied on Open; safe to re-apply.
//
// Sessions are written with published = 0 and flipped to 1 as the final
// statement of the commit transaction, so a reader joining on published = 1
// can never observe a half-written run even if the store is later ported to
// a backend without multi-statement transactions.
const Schema = `
CREATE TABLE IF NOT EXISTS sessions (
	id TEXT PRIMARY KEY,
	started_at TEXT NOT NULL,
	completed_at TEXT NOT NULL,
	published INTEGER NOT NULL DEFAULT 0,
	error TEXT NOT NULL DEFAULT '',
	stats_json TEXT NOT NULL,
	calls_json TEXT NOT NULL DEFAULT '[]',
	findings_json TEXT NOT NULL DEFAULT '[]',
	warnings_json TEXT NOT NULL DEFAULT '[]'
);
CREATE INDEX IF NOT EXISTS idx_sessions_completed ON sessions(completed_at);

CREATE TABLE IF NOT EXISTS mapping_results (
	id TEXT PRIMARY KEY,
	session_id TEXT NOT NULL REFERENCES sessions(id),
	source_record_id TEXT NOT NULL,
	snapshot_json TEXT NOT NULL,
	mapped_code TEXT NOT NULL DEFAULT '',
	confidence INTEGER NOT NULL,
	method TEXT NOT NULL,
	status TEXT NOT NULL,
	alternatives_json TEXT NOT NULL DEFAULT '[]',
	reasoning TEXT NOT NULL DEFAULT '',
	created_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_results_source ON mapping_results(source_record_id);
CREATE INDEX IF NOT EXISTS idx_results_session ON mapping_results(session_id);
`

// timeLayout is fixed width, unlike RFC3339Nano which drops trailing zeros,
// so stored timestamps sort lexicographically and ORDER BY completed_at
// matches chronological order.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// SQLite is the file-backed Store.
type SQLite struct {
	db *sql.DB
}

// Open opens (creating if needed) a SQLite store at the given path and
// applies the schema. Use ":memory:" for an ephemeral store.
func Open(path string) (*SQLite, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, errors.WrapPersistence("open", "", err)
	}
	// modernc.org/sqlite serializes access per connection; a single
	// connection avoids SQLITE_BUSY under concurrent commits.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(Schema); err != nil {
		db.Close()
		return nil, errors.WrapPersistence("migrate", "", err)
	}
	return &SQLite{db: db}, nil
}

// CommitRun implements Store. The session row, all result rows, and the
// publish flip happen in one transaction.
func (s *SQLite) CommitRun(ctx context.Context, results []session.MappingResult, sess *session.Session) error {
	if err := validateCommit(results, sess); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.WrapPersistence("commit", sess.ID, err)
	}
	defer tx.Rollback()

	if err := insertSession(ctx, tx, sess); err != nil {
		return errors.WrapPersistence("commit", sess.ID, err)
	}
	if err := insertResults(ctx, tx, results); err != nil {
		return errors.WrapPersistence("commit", sess.ID, err)
	}
	if _, err := tx.ExecContext(ctx, `UPDATE sessions SET published = 1 WHERE id = ?`, sess.ID); err != nil {
		return errors.WrapPersistence("publish", sess.ID, err)
	}
	if err := tx.Commit(); err != nil {
		return errors.WrapPersistence("commit", sess.ID, err)
	}
	return nil
}

func insertSession(ctx context.Context, tx *sql.Tx, sess *session.Session) error {
	stats, err := json.Marshal(sess.Stats)
	if err != nil {
		return err
	}
	calls, err := marshalList(sess.ExternalCalls)
	if err != nil {
		return err
	}
	findings, err := marshalList(sess.Findings)
	if err != nil {
		return err
	}
	warnings, err := marshalList(sess.Warnings)
	if err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO sessions (id, started_at, completed_at, published, error, stats_json, calls_json, findings_json, warnings_json)
		VALUES (?, ?, ?, 0, ?, ?, ?, ?, ?)`,
		sess.ID,
		sess.StartedAt.Format(timeLayout),
		sess.CompletedAt.Format(timeLayout),
		sess.Error, string(stats), calls, findings, warnings)
	return err
}

func insertResults(ctx context.Context, tx *sql.Tx, results []session.MappingResult) error {
	if len(results) == 0 {
		return nil
	}
	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO mapping_results (id, session_id, source_record_id, snapshot_json, mapped_code, confidence, method, status, alternatives_json, reasoning, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, r := range results {
		snapshot, err := json.Marshal(r.SourceSnapshot)
		if err != nil {
			return err
		}
		alternatives, err := marshalList(r.Alternatives)
		if err != nil {
			return err
		}
		if _, err := stmt.ExecContext(ctx,
			r.ID, r.SessionID, r.SourceRecordID, string(snapshot),
			r.MappedCode, r.Confidence, string(r.Method), string(r.Status),
			alternatives, r.Reasoning,
			r.CreatedAt.Format(timeLayout)); err != nil {
			return err
		}
	}
	return nil
}

// marshalList marshals a slice, mapping nil to the empty JSON array so the
// NOT NULL columns stay uniform.
func marshalList[T any](v []T) (string, error) {
	if v == nil {
		return "[]", nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// LatestMapping implements Store. Among published sessions the most recently
// completed wins; ties break on session id.
func (s *SQLite) LatestMapping(ctx context.Context, sourceRecordID string) (*session.MappingResult, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT r.id, r.session_id, r.source_record_id, r.snapshot_json, r.mapped_code,
		       r.confidence, r.method, r.status, r.alternatives_json, r.reasoning, r.created_at
		FROM mapping_results r
		JOIN sessions s ON s.id = r.session_id
		WHERE r.source_record_id = ? AND s.published = 1
		ORDER BY s.completed_at DESC, s.id DESC
		LIMIT 1`, sourceRecordID)

	r, err := scanResult(row)
	if err == sql.ErrNoRows {
		return nil, errors.NewNotFoundError("mapping", sourceRecordID)
	}
	if err != nil {
		return nil, errors.WrapPersistence("read", "", err)
	}
	return r, nil
}

func scanResult(row *sql.Row) (*session.MappingResult, error) {
	var (
		r            session.MappingResult
		snapshot     string
		alternatives string
		method       string
		status       string
		createdAt    string
	)
	if err := row.Scan(&r.ID, &r.SessionID, &r.SourceRecordID, &snapshot, &r.MappedCode,
		&r.Confidence, &method, &status, &alternatives, &r.Reasoning, &createdAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(snapshot), &r.SourceSnapshot); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(alternatives), &r.Alternatives); err != nil {
		return nil, err
	}
	r.Method = session.Method(method)
	r.Status = session.Status(status)
	ts, err := parseTime(createdAt)
	if err != nil {
		return nil, err
	}
	r.CreatedAt = ts
	return &r, nil
}

// Session implements Store.
func (s *SQLite) Session(ctx context.Context, id string) (*session.Session, error) {
	rows, err := s.db.QueryContext(ctx, sessionSelect+` WHERE id = ? AND published = 1`, id)
	if err != nil {
		return nil, errors.WrapPersistence("read", id, err)
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, errors.WrapPersistence("read", id, err)
		}
		return nil, errors.NewNotFoundError("session", id)
	}
	sess, err := scanSession(rows)
	if err != nil {
		return nil, errors.WrapPersistence("read", id, err)
	}
	return sess, nil
}

// Sessions implements Store.
func (s *SQLite) Sessions(ctx context.Context) ([]*session.Session, error) {
	rows, err := s.db.QueryContext(ctx, sessionSelect+` WHERE published = 1 ORDER BY completed_at DESC, id DESC`)
	if err != nil {
		return nil, errors.WrapPersistence("read", "", err)
	}
	defer rows.Close()

	var out []*session.Session
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, errors.WrapPersistence("read", "", err)
		}
		out = append(out, sess)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.WrapPersistence("read", "", err)
	}
	return out, nil
}

const sessionSelect = `
	SELECT id, started_at, completed_at, error, stats_json, calls_json, findings_json, warnings_json
	FROM sessions`

func scanSession(rows *sql.Rows) (*session.Session, error) {
	var (
		sess      session.Session
		startedAt string
		completed string
		stats     string
		calls     string
		findings  string
		warnings  string
	)
	if err := rows.Scan(&sess.ID, &startedAt, &completed, &sess.Error,
		&stats, &calls, &findings, &warnings); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(stats), &sess.Stats); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(calls), &sess.ExternalCalls); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(findings), &sess.Findings); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(warnings), &sess.Warnings); err != nil {
		return nil, err
	}
	var err error
	if sess.StartedAt, err = parseTime(startedAt); err != nil {
		return nil, err
	}
	if sess.CompletedAt, err = parseTime(completed); err != nil {
		return nil, err
	}
	return &sess, nil
}

func parseTime(s string) (utc.Time, error) {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return utc.Time{}, err
	}
	return utc.New(t), nil
}

// Close implements Store.
func (s *SQLite) Close() error {
	return s.db.Close()
}
