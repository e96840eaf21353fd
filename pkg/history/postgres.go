package history

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// PostgresStore keeps history in the agent.history table. Run the
// migrations in migrations/ before use.
type PostgresStore struct {
	pool   *pgxpool.Pool
	limit  int
	logger *zap.Logger
}

// NewPostgresStore creates a store over pool.
func NewPostgresStore(pool *pgxpool.Pool, limit int, logger *zap.Logger) *PostgresStore {
	if limit <= 0 {
		limit = DefaultLimit
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PostgresStore{pool: pool, limit: limit, logger: logger.Named("history")}
}

func (s *PostgresStore) AppendAccepted(ctx context.Context, prompt, sql string) error {
	return s.append(ctx, KindAccepted, prompt, sql, "")
}

func (s *PostgresStore) AppendRejected(ctx context.Context, prompt, badSQL, reason string) error {
	return s.append(ctx, KindRejected, prompt, badSQL, reason)
}

func (s *PostgresStore) RecentAccepted(ctx context.Context, n int) ([]Record, error) {
	return s.recent(ctx, KindAccepted, n)
}

func (s *PostgresStore) RecentRejected(ctx context.Context, n int) ([]Record, error) {
	return s.recent(ctx, KindRejected, n)
}

// append inserts the record and trims the kind back to the limit in one
// transaction.
func (s *PostgresStore) append(ctx context.Context, kind Kind, prompt, sqlText, reason string) error {
	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	return pgx.BeginFunc(ctx, conn, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `
			INSERT INTO agent.history (kind, prompt, sql_text, reason, created_at)
			VALUES ($1, $2, $3, $4, $5)`,
			string(kind), prompt, sqlText, reason, nowFunc()); err != nil {
			return fmt.Errorf("insert %s history: %w", kind, err)
		}
		if _, err := tx.Exec(ctx, `
			DELETE FROM agent.history
			WHERE kind = $1 AND id NOT IN (
				SELECT id FROM agent.history WHERE kind = $1 ORDER BY id DESC LIMIT $2
			)`, string(kind), s.limit); err != nil {
			return fmt.Errorf("trim %s history: %w", kind, err)
		}
		return nil
	})
}

func (s *PostgresStore) recent(ctx context.Context, kind Kind, n int) ([]Record, error) {
	if n <= 0 {
		n = s.limit
	}

	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	rows, err := conn.Query(ctx, `
		SELECT prompt, sql_text, reason, created_at
		FROM agent.history
		WHERE kind = $1
		ORDER BY id DESC
		LIMIT $2`, string(kind), n)
	if err != nil {
		return nil, fmt.Errorf("query %s history: %w", kind, err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		var rec Record
		var sqlText string
		if err := rows.Scan(&rec.Prompt, &sqlText, &rec.Reason, &rec.Timestamp); err != nil {
			return nil, fmt.Errorf("scan %s history: %w", kind, err)
		}
		if kind == KindAccepted {
			rec.SQL = sqlText
		} else {
			rec.BadSQL = sqlText
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate %s history: %w", kind, err)
	}

	// Newest first from the query; callers want oldest first.
	for i, j := 0, len(records)-1; i < j; i, j = i+1, j-1 {
		records[i], records[j] = records[j], records[i]
	}
	return records, nil
}

var _ Store = (*PostgresStore)(nil)
