package store

import (
	"context"
	"errors"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"

	"specforge/internal/pattern"
)

func newMockStore(t *testing.T) (*PostgresStore, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create sqlmock: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return NewPostgresFromDB(db), mock
}

func TestPostgres_GetPattern(t *testing.T) {
	s, mock := newMockStore(t)

	rows := sqlmock.NewRows([]string{"name", "category", "description", "signature", "complexity"}).
		AddRow("state_transition", "workflow", "guarded state change", "validate/1;update/1", 2)
	mock.ExpectQuery(`FROM specforge\.patterns`).
		WithArgs("state_transition").
		WillReturnRows(rows)

	p, err := s.GetPattern(context.Background(), "state_transition")
	if err != nil {
		t.Fatalf("GetPattern returned error: %v", err)
	}
	if p.Signature != "validate/1;update/1" || p.Complexity != 2 {
		t.Errorf("unexpected pattern: %+v", p)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet sqlmock expectations: %v", err)
	}
}

func TestPostgres_GetImplementationNotFound(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery(`FROM specforge\.pattern_implementations`).
		WithArgs("state_transition", "rust").
		WillReturnRows(sqlmock.NewRows([]string{"pattern_name", "language", "template", "supported", "notes"}))

	_, err := s.GetImplementation(context.Background(), "state_transition", "rust")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestPostgres_InsertIfAbsentConflictIsNoop(t *testing.T) {
	s, mock := newMockStore(t)
	sg := pendingSuggestion("11111111-1111-1111-1111-111111111111", "hash-a")

	mock.ExpectExec(`INSERT INTO specforge\.pattern_suggestions`).
		WillReturnResult(sqlmock.NewResult(0, 0)) // ON CONFLICT DO NOTHING

	inserted, err := s.InsertIfAbsent(context.Background(), sg)
	if err != nil {
		t.Fatalf("InsertIfAbsent returned error: %v", err)
	}
	if inserted {
		t.Error("conflicting insert must report inserted=false")
	}
}

func TestPostgres_ApprovePromotesInOneTransaction(t *testing.T) {
	s, mock := newMockStore(t)
	id := "11111111-1111-1111-1111-111111111111"

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE specforge\.pattern_suggestions`).
		WithArgs(id).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(`FROM specforge\.pattern_suggestions`).
		WithArgs(id).
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "name", "category", "description", "signature", "signature_hash",
			"complexity", "step_count", "best_score", "source_entity", "source_action",
			"language", "template", "status", "reason", "created_at",
		}).AddRow(
			id, "claim_settle", "discovered", "settle a claim", "validate/1;update/1", "hash-a",
			2, 2, 0.4, "Claim", "settle",
			"postgres", "-- {{.op0}}", "approved", "", time.Now(),
		))
	mock.ExpectExec(`INSERT INTO specforge\.patterns`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO specforge\.pattern_implementations`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	p, err := s.Approve(context.Background(), id)
	if err != nil {
		t.Fatalf("Approve returned error: %v", err)
	}
	if p.Name != "claim_settle" {
		t.Errorf("promoted pattern name = %q", p.Name)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet sqlmock expectations: %v", err)
	}
}

func TestPostgres_ApproveAlreadyDecidedIsStale(t *testing.T) {
	s, mock := newMockStore(t)
	id := "11111111-1111-1111-1111-111111111111"

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE specforge\.pattern_suggestions`).
		WithArgs(id).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(`SELECT status FROM specforge\.pattern_suggestions`).
		WithArgs(id).
		WillReturnRows(sqlmock.NewRows([]string{"status"}).AddRow("rejected"))
	mock.ExpectRollback()

	_, err := s.Approve(context.Background(), id)
	var stale *pattern.StaleSuggestionError
	if !errors.As(err, &stale) {
		t.Fatalf("expected StaleSuggestionError, got %v", err)
	}
	if stale.Status != pattern.StatusRejected {
		t.Errorf("stale error should carry the winning status, got %s", stale.Status)
	}
}

func TestPostgres_RejectMissingSuggestion(t *testing.T) {
	s, mock := newMockStore(t)
	id := "22222222-2222-2222-2222-222222222222"

	mock.ExpectExec(`UPDATE specforge\.pattern_suggestions`).
		WithArgs(id, "duplicate of state_transition").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(`SELECT status FROM specforge\.pattern_suggestions`).
		WithArgs(id).
		WillReturnRows(sqlmock.NewRows([]string{"status"}))

	err := s.Reject(context.Background(), id, "duplicate of state_transition")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
