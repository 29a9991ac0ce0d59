// Package logstore persists the audit trail: one row per completed chat
// request, holding the original input, the masked variant sent upstream, the
// retrieved context, the raw and sanitized outputs, and the pseudonym
// mappings used. Queries support date ranges and substring search with
// pagination.
package logstore

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"llm-privacy-gateway/internal/logger"
)

const defaultQueryLimit = 50

// Entry is one audit row.
type Entry struct {
	ID            uuid.UUID       `json:"id"`
	Timestamp     time.Time       `json:"timestamp"`
	OriginalInput string          `json:"original_input"`
	MaskedInput   string          `json:"masked_input"`
	RAGContext    *string         `json:"rag_context"`
	LLMOutput     string          `json:"llm_output"`
	FinalOutput   string          `json:"final_output"`
	PIIMappings   json.RawMessage `json:"pii_mappings"`
}

// Query filters and paginates an audit log listing. Nil fields are
// unconstrained.
type Query struct {
	StartDate  *string `json:"start_date"`
	EndDate    *string `json:"end_date"`
	SearchTerm *string `json:"search_term"`
	Limit      *int    `json:"limit"`
	Offset     *int    `json:"offset"`
}

// Response is a page of audit rows plus the unpaginated match count.
type Response struct {
	Logs  []Entry `json:"logs"`
	Total int64   `json:"total"`
}

// Store wraps the connection pool.
type Store struct {
	pool *pgxpool.Pool
	log  zerolog.Logger
}

// New connects to databaseURL with a capped pool.
func New(ctx context.Context, databaseURL string) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("logstore: parse database url: %w", err)
	}
	cfg.MaxConns = 5

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("logstore: connect: %w", err)
	}
	return &Store{pool: pool, log: logger.Component("logstore")}, nil
}

// InitSchema creates the prompt_logs table and its indexes if missing.
func (s *Store) InitSchema(ctx context.Context) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS prompt_logs (
			id UUID PRIMARY KEY,
			timestamp TIMESTAMPTZ NOT NULL,
			original_input TEXT NOT NULL,
			masked_input TEXT NOT NULL,
			rag_context TEXT,
			llm_output TEXT NOT NULL,
			final_output TEXT NOT NULL,
			pii_mappings JSONB NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_timestamp ON prompt_logs(timestamp DESC)`,
		`CREATE INDEX IF NOT EXISTS idx_pii_mappings ON prompt_logs USING GIN(pii_mappings)`,
	}
	for _, stmt := range statements {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("logstore: init schema: %w", err)
		}
	}
	return nil
}

// LogRequest inserts one audit row.
func (s *Store) LogRequest(ctx context.Context, entry Entry) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO prompt_logs
		(id, timestamp, original_input, masked_input, rag_context, llm_output, final_output, pii_mappings)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		entry.ID, entry.Timestamp, entry.OriginalInput, entry.MaskedInput,
		entry.RAGContext, entry.LLMOutput, entry.FinalOutput, entry.PIIMappings,
	)
	if err != nil {
		return fmt.Errorf("logstore: insert: %w", err)
	}
	return nil
}

// QueryLogs returns one page of rows matching q, newest first, plus the
// total match count before pagination.
func (s *Store) QueryLogs(ctx context.Context, q Query) (*Response, error) {
	sql, countSQL, args := buildLogQuery(q)

	rows, err := s.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("logstore: query: %w", err)
	}
	logs, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (Entry, error) {
		var e Entry
		err := row.Scan(&e.ID, &e.Timestamp, &e.OriginalInput, &e.MaskedInput,
			&e.RAGContext, &e.LLMOutput, &e.FinalOutput, &e.PIIMappings)
		return e, err
	})
	if err != nil {
		return nil, fmt.Errorf("logstore: scan: %w", err)
	}

	var total int64
	// The count query shares the filter args but not limit and offset,
	// which buildLogQuery appends last.
	if err := s.pool.QueryRow(ctx, countSQL, args[:len(args)-2]...).Scan(&total); err != nil {
		return nil, fmt.Errorf("logstore: count: %w", err)
	}

	if logs == nil {
		logs = []Entry{}
	}
	return &Response{Logs: logs, Total: total}, nil
}

// Close releases the pool.
func (s *Store) Close() {
	s.pool.Close()
}

// buildLogQuery assembles the filtered listing and count statements. Every
// user-supplied value is bound as a parameter, never spliced into the SQL
// text. Limit and offset are the last two args, in that order.
func buildLogQuery(q Query) (sql, countSQL string, args []any) {
	var where []string
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if q.StartDate != nil {
		where = append(where, "timestamp >= "+arg(*q.StartDate))
	}
	if q.EndDate != nil {
		where = append(where, "timestamp <= "+arg(*q.EndDate))
	}
	if q.SearchTerm != nil {
		p := arg("%" + *q.SearchTerm + "%")
		where = append(where, fmt.Sprintf("(original_input ILIKE %s OR final_output ILIKE %s)", p, p))
	}

	clause := "1=1"
	if len(where) > 0 {
		clause = strings.Join(where, " AND ")
	}

	countSQL = "SELECT COUNT(*) FROM prompt_logs WHERE " + clause

	limit := defaultQueryLimit
	if q.Limit != nil {
		limit = *q.Limit
	}
	offset := 0
	if q.Offset != nil {
		offset = *q.Offset
	}
	sql = fmt.Sprintf(
		"SELECT id, timestamp, original_input, masked_input, rag_context, llm_output, final_output, pii_mappings"+
			" FROM prompt_logs WHERE %s ORDER BY timestamp DESC LIMIT %s OFFSET %s",
		clause, arg(limit), arg(offset))

	return sql, countSQL, args
}
