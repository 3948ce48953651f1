package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/ezextender/backend/internal/storage/models"
	"github.com/ezextender/backend/pkg/logger"
)

type Client struct {
	db *sql.DB
}

func NewClient(dbPath string) (*Client, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	pragmas := []string{
		"PRAGMA foreign_keys = ON",
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return nil, fmt.Errorf("failed to apply %q: %w", pragma, err)
		}
	}

	logger.Info("SQLite client initialized", zap.String("path", dbPath))

	return &Client{db: db}, nil
}

func (c *Client) Close() error {
	return c.db.Close()
}

func (c *Client) InitSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS precedent_log (
		id TEXT PRIMARY KEY,
		raw_text TEXT NOT NULL,
		normalized_text TEXT,
		tag TEXT NOT NULL,
		outcome TEXT NOT NULL CHECK (outcome IN ('allow', 'deny')),
		reviewer TEXT,
		days_requested INTEGER,
		deadline_iso TEXT,
		created_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_precedent_tag ON precedent_log(tag);
	CREATE INDEX IF NOT EXISTS idx_precedent_created ON precedent_log(created_at);

	CREATE TABLE IF NOT EXISTS tag_counters (
		tag TEXT PRIMARY KEY,
		allow_count INTEGER NOT NULL DEFAULT 0,
		deny_count INTEGER NOT NULL DEFAULT 0
	);

	CREATE TABLE IF NOT EXISTS decision_history (
		id TEXT PRIMARY KEY,
		reason_text TEXT NOT NULL,
		tag TEXT,
		recommend TEXT,
		via TEXT,
		confidence REAL,
		latency_ms INTEGER,
		created_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_decision_created ON decision_history(created_at);
	`

	_, err := c.db.Exec(schema)
	if err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}

	logger.Info("SQLite schema initialized")
	return nil
}

// RecordCase appends the case to the precedent log and bumps the per-tag
// counter in one transaction. Either both land or neither does, so the
// counters can never drift from the log under concurrent reviews.
func (c *Client) RecordCase(ctx context.Context, pc *models.PrecedentCase) error {
	allowInc, denyInc := 0, 0
	switch pc.Outcome {
	case "allow":
		allowInc = 1
	case "deny":
		denyInc = 1
	default:
		return fmt.Errorf("outcome must be 'allow' or 'deny', got %q", pc.Outcome)
	}

	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO precedent_log (id, raw_text, normalized_text, tag, outcome, reviewer, days_requested, deadline_iso, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		pc.ID,
		pc.RawText,
		pc.NormalizedText,
		pc.Tag,
		pc.Outcome,
		pc.Reviewer,
		pc.DaysRequested,
		pc.DeadlineISO,
		pc.CreatedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert precedent case: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO tag_counters (tag, allow_count, deny_count)
		VALUES (?, ?, ?)
		ON CONFLICT(tag) DO UPDATE SET
			allow_count = allow_count + excluded.allow_count,
			deny_count = deny_count + excluded.deny_count`,
		pc.Tag, allowInc, denyInc,
	)
	if err != nil {
		return fmt.Errorf("failed to increment tag counter: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit precedent case: %w", err)
	}

	logger.Info("Precedent case recorded",
		zap.String("case_id", pc.ID),
		zap.String("tag", pc.Tag),
		zap.String("outcome", pc.Outcome),
	)

	return nil
}

// GetCounter returns the aggregate for a tag, zero-valued when the tag has
// no recorded cases yet.
func (c *Client) GetCounter(ctx context.Context, tag string) (models.TagCounter, error) {
	counter := models.TagCounter{Tag: tag}

	err := c.db.QueryRowContext(ctx,
		`SELECT allow_count, deny_count FROM tag_counters WHERE tag = ?`, tag,
	).Scan(&counter.Allow, &counter.Deny)

	if err == sql.ErrNoRows {
		return counter, nil
	}
	if err != nil {
		return counter, fmt.Errorf("failed to get tag counter: %w", err)
	}

	return counter, nil
}

func (c *Client) AllCounters(ctx context.Context) ([]models.TagCounter, error) {
	rows, err := c.db.QueryContext(ctx,
		`SELECT tag, allow_count, deny_count FROM tag_counters ORDER BY tag`)
	if err != nil {
		return nil, fmt.Errorf("failed to list tag counters: %w", err)
	}
	defer rows.Close()

	var counters []models.TagCounter
	for rows.Next() {
		var tc models.TagCounter
		if err := rows.Scan(&tc.Tag, &tc.Allow, &tc.Deny); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		counters = append(counters, tc)
	}

	return counters, rows.Err()
}

// RebuildCounters recomputes the counter table from the precedent log.
// The counters are a derived cache; the log is the source of truth.
func (c *Client) RebuildCounters(ctx context.Context) error {
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM tag_counters`); err != nil {
		return fmt.Errorf("failed to reset tag counters: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO tag_counters (tag, allow_count, deny_count)
		SELECT tag,
			SUM(CASE WHEN outcome = 'allow' THEN 1 ELSE 0 END),
			SUM(CASE WHEN outcome = 'deny' THEN 1 ELSE 0 END)
		FROM precedent_log
		GROUP BY tag`)
	if err != nil {
		return fmt.Errorf("failed to rebuild tag counters: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit counter rebuild: %w", err)
	}

	logger.Info("Tag counters rebuilt from precedent log")
	return nil
}

func (c *Client) ListCases(ctx context.Context, limit int) ([]models.PrecedentCase, error) {
	rows, err := c.db.QueryContext(ctx, `
		SELECT id, raw_text, normalized_text, tag, outcome, reviewer, days_requested, deadline_iso, created_at
		FROM precedent_log
		ORDER BY created_at DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list precedent cases: %w", err)
	}
	defer rows.Close()

	var cases []models.PrecedentCase
	for rows.Next() {
		var pc models.PrecedentCase
		var createdAt int64

		err := rows.Scan(&pc.ID, &pc.RawText, &pc.NormalizedText, &pc.Tag, &pc.Outcome,
			&pc.Reviewer, &pc.DaysRequested, &pc.DeadlineISO, &createdAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}

		pc.CreatedAt = time.Unix(createdAt, 0)
		cases = append(cases, pc)
	}

	return cases, rows.Err()
}

func (c *Client) InsertDecision(ctx context.Context, record *models.DecisionRecord) error {
	_, err := c.db.ExecContext(ctx, `
		INSERT INTO decision_history (id, reason_text, tag, recommend, via, confidence, latency_ms, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		record.ID,
		record.ReasonText,
		record.Tag,
		record.Recommend,
		record.Via,
		record.Confidence,
		record.LatencyMS,
		record.CreatedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert decision record: %w", err)
	}

	return nil
}

func (c *Client) ListDecisions(ctx context.Context, limit int) ([]models.DecisionRecord, error) {
	rows, err := c.db.QueryContext(ctx, `
		SELECT id, reason_text, tag, recommend, via, confidence, latency_ms, created_at
		FROM decision_history
		ORDER BY created_at DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list decisions: %w", err)
	}
	defer rows.Close()

	var records []models.DecisionRecord
	for rows.Next() {
		var r models.DecisionRecord
		var createdAt int64

		err := rows.Scan(&r.ID, &r.ReasonText, &r.Tag, &r.Recommend, &r.Via, &r.Confidence, &r.LatencyMS, &createdAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}

		r.CreatedAt = time.Unix(createdAt, 0)
		records = append(records, r)
	}

	return records, rows.Err()
}
