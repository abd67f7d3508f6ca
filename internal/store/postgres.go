package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"specforge/internal/pattern"
)

// PostgresStore implements Store on PostgreSQL.
type PostgresStore struct {
	db *sqlx.DB
}

// NewPostgres opens and pings a PostgreSQL-backed store.
func NewPostgres(connectionString string) (*PostgresStore, error) {
	db, err := sqlx.Open("postgres", connectionString)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	return &PostgresStore{db: db}, nil
}

// NewPostgresFromDB wraps an existing connection; tests use this with
// sqlmock.
func NewPostgresFromDB(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: sqlx.NewDb(db, "postgres")}
}

// Close releases the underlying connection pool.
func (s *PostgresStore) Close() error {
	return s.db.Close()
}

func (s *PostgresStore) InsertPattern(ctx context.Context, p *pattern.Pattern) error {
	query := `
		INSERT INTO specforge.patterns (name, category, description, signature, complexity)
		VALUES ($1, $2, $3, $4, $5)`
	_, err := s.db.ExecContext(ctx, query, p.Name, p.Category, p.Description, p.Signature, p.Complexity)
	if err != nil {
		return fmt.Errorf("failed to insert pattern %q: %w", p.Name, err)
	}
	return nil
}

func (s *PostgresStore) GetPattern(ctx context.Context, name string) (*pattern.Pattern, error) {
	query := `
		SELECT name, category, description, signature, complexity
		FROM specforge.patterns
		WHERE name = $1`
	var p pattern.Pattern
	if err := s.db.GetContext(ctx, &p, query, name); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("pattern %q: %w", name, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get pattern %q: %w", name, err)
	}
	return &p, nil
}

func (s *PostgresStore) ListPatterns(ctx context.Context, category string) ([]*pattern.Pattern, error) {
	query := `
		SELECT name, category, description, signature, complexity
		FROM specforge.patterns`
	args := []interface{}{}
	if category != "" {
		query += ` WHERE category = $1`
		args = append(args, category)
	}
	query += ` ORDER BY name`

	var out []*pattern.Pattern
	if err := s.db.SelectContext(ctx, &out, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list patterns: %w", err)
	}
	return out, nil
}

func (s *PostgresStore) UpsertImplementation(ctx context.Context, impl *pattern.Implementation) error {
	query := `
		INSERT INTO specforge.pattern_implementations (pattern_name, language, template, supported, notes)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (pattern_name, language)
		DO UPDATE SET template = EXCLUDED.template, supported = EXCLUDED.supported, notes = EXCLUDED.notes`
	_, err := s.db.ExecContext(ctx, query,
		impl.PatternName, impl.Language, impl.Template, impl.Supported, impl.Notes)
	if err != nil {
		return fmt.Errorf("failed to upsert implementation %s/%s: %w", impl.PatternName, impl.Language, err)
	}
	return nil
}

func (s *PostgresStore) GetImplementation(ctx context.Context, patternName, language string) (*pattern.Implementation, error) {
	query := `
		SELECT pattern_name, language, template, supported, notes
		FROM specforge.pattern_implementations
		WHERE pattern_name = $1 AND language = $2`
	var impl pattern.Implementation
	if err := s.db.GetContext(ctx, &impl, query, patternName, language); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("implementation %s/%s: %w", patternName, language, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get implementation %s/%s: %w", patternName, language, err)
	}
	return &impl, nil
}

// InsertIfAbsent relies on the unique index on signature_hash; a conflicting
// insert is a no-op and reports inserted=false.
func (s *PostgresStore) InsertIfAbsent(ctx context.Context, sg *pattern.Suggestion) (bool, error) {
	query := `
		INSERT INTO specforge.pattern_suggestions (
			id, name, category, description, signature, signature_hash,
			complexity, step_count, best_score, source_entity, source_action,
			language, template, status, reason, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
		ON CONFLICT (signature_hash) DO NOTHING`
	res, err := s.db.ExecContext(ctx, query,
		sg.ID, sg.Name, sg.Category, sg.Description, sg.Signature, sg.SignatureHash,
		sg.Complexity, sg.StepCount, sg.BestScore, sg.SourceEntity, sg.SourceAction,
		sg.Language, sg.Template, sg.Status, sg.Reason, sg.CreatedAt)
	if err != nil {
		return false, fmt.Errorf("failed to insert suggestion: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read insert outcome: %w", err)
	}
	return rows == 1, nil
}

const suggestionColumns = `
	id, name, category, description, signature, signature_hash,
	complexity, step_count, best_score, source_entity, source_action,
	language, template, status, reason, created_at`

func (s *PostgresStore) GetSuggestion(ctx context.Context, id string) (*pattern.Suggestion, error) {
	query := `SELECT ` + suggestionColumns + `
		FROM specforge.pattern_suggestions
		WHERE id = $1`
	var sg pattern.Suggestion
	if err := s.db.GetContext(ctx, &sg, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("suggestion %s: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get suggestion %s: %w", id, err)
	}
	return &sg, nil
}

func (s *PostgresStore) ListPending(ctx context.Context, limit int) ([]*pattern.Suggestion, error) {
	query := `SELECT ` + suggestionColumns + `
		FROM specforge.pattern_suggestions
		WHERE status = 'pending'
		ORDER BY created_at ASC
		LIMIT $1`
	if limit <= 0 {
		limit = 50
	}
	var out []*pattern.Suggestion
	if err := s.db.SelectContext(ctx, &out, query, limit); err != nil {
		return nil, fmt.Errorf("failed to list pending suggestions: %w", err)
	}
	return out, nil
}

func (s *PostgresStore) CountsByStatus(ctx context.Context) (map[pattern.SuggestionStatus]int, error) {
	query := `
		SELECT status, COUNT(*) AS n
		FROM specforge.pattern_suggestions
		GROUP BY status`
	rows, err := s.db.QueryxContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to count suggestions: %w", err)
	}
	defer rows.Close()

	counts := make(map[pattern.SuggestionStatus]int)
	for rows.Next() {
		var status pattern.SuggestionStatus
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("failed to scan suggestion count: %w", err)
		}
		counts[status] = n
	}
	return counts, rows.Err()
}

// Approve performs the compare-and-set transition and promotes the pattern
// and its authored implementation in one transaction. A suggestion that
// already left pending loses the race explicitly.
func (s *PostgresStore) Approve(ctx context.Context, id string) (*pattern.Pattern, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx, `
		UPDATE specforge.pattern_suggestions
		SET status = 'approved'
		WHERE id = $1 AND status = 'pending'`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to approve suggestion %s: %w", id, err)
	}
	if err := s.requireTransition(ctx, tx, res, id); err != nil {
		return nil, err
	}

	var sg pattern.Suggestion
	if err := tx.GetContext(ctx, &sg, `SELECT `+suggestionColumns+`
		FROM specforge.pattern_suggestions
		WHERE id = $1`, id); err != nil {
		return nil, fmt.Errorf("failed to load approved suggestion %s: %w", id, err)
	}

	p, impl := sg.Promote()
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO specforge.patterns (name, category, description, signature, complexity)
		VALUES ($1, $2, $3, $4, $5)`,
		p.Name, p.Category, p.Description, p.Signature, p.Complexity); err != nil {
		return nil, fmt.Errorf("failed to promote pattern %q: %w", p.Name, err)
	}
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO specforge.pattern_implementations (pattern_name, language, template, supported, notes)
		VALUES ($1, $2, $3, $4, $5)`,
		impl.PatternName, impl.Language, impl.Template, impl.Supported, impl.Notes); err != nil {
		return nil, fmt.Errorf("failed to promote implementation %s/%s: %w", impl.PatternName, impl.Language, err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit approval: %w", err)
	}
	return p, nil
}

func (s *PostgresStore) Reject(ctx context.Context, id, reason string) error {
	if reason == "" {
		return fmt.Errorf("a rejection reason is required")
	}
	res, err := s.db.ExecContext(ctx, `
		UPDATE specforge.pattern_suggestions
		SET status = 'rejected', reason = $2
		WHERE id = $1 AND status = 'pending'`, id, reason)
	if err != nil {
		return fmt.Errorf("failed to reject suggestion %s: %w", id, err)
	}
	return s.requireTransition(ctx, nil, res, id)
}

// requireTransition inspects a CAS update outcome: zero rows means the
// suggestion is either missing or already decided.
func (s *PostgresStore) requireTransition(ctx context.Context, tx *sqlx.Tx, res sql.Result, id string) error {
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read transition outcome: %w", err)
	}
	if rows == 1 {
		return nil
	}

	var status pattern.SuggestionStatus
	query := `SELECT status FROM specforge.pattern_suggestions WHERE id = $1`
	if tx != nil {
		err = tx.GetContext(ctx, &status, query, id)
	} else {
		err = s.db.GetContext(ctx, &status, query, id)
	}
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("suggestion %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("failed to check suggestion %s: %w", id, err)
	}
	return &pattern.StaleSuggestionError{ID: id, Status: status}
}
