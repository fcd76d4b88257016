package feedback

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"reviewflow/internal/platform/db"
)

type Store struct {
	DB *pgxpool.Pool
}

func NewStore(db *pgxpool.Pool) *Store {
	return &Store{DB: db}
}

const selectForm = `
  SELECT f.id::text, f.employee_id::text, f.reviewer_id::text, f.performance_cycle_id::text,
         f.strengths, f.improvements, f.overall_rating, f.status, f.submitted_at, f.created_at, f.updated_at,
         COALESCE(e.name, ''), COALESCE(r.name, '')
  FROM feedback_forms f
  LEFT JOIN users e ON e.id = f.employee_id
  LEFT JOIN users r ON r.id = f.reviewer_id`

func scanForm(row pgx.Row) (Form, error) {
	var f Form
	err := row.Scan(&f.ID, &f.EmployeeID, &f.ReviewerID, &f.PerformanceCycleID,
		&f.Strengths, &f.Improvements, &f.OverallRating, &f.Status, &f.SubmittedAt, &f.CreatedAt, &f.UpdatedAt,
		&f.EmployeeName, &f.ReviewerName)
	if errors.Is(err, pgx.ErrNoRows) || db.IsInvalidInput(err) {
		return Form{}, ErrNotFound
	}
	return f, err
}

func collectForms(rows pgx.Rows) ([]Form, error) {
	defer rows.Close()
	out := []Form{}
	for rows.Next() {
		f, err := scanForm(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

func (s *Store) Insert(ctx context.Context, form Form) (Form, error) {
	var id string
	err := s.DB.QueryRow(ctx, `
    INSERT INTO feedback_forms (employee_id, reviewer_id, performance_cycle_id, strengths, improvements, overall_rating, status, submitted_at)
    VALUES ($1,$2,$3,$4,$5,$6,$7, CASE WHEN $7 = 'submitted' THEN now() END)
    RETURNING id::text
  `, form.EmployeeID, form.ReviewerID, form.PerformanceCycleID, form.Strengths, form.Improvements,
		string(form.OverallRating), string(form.Status)).Scan(&id)
	if err != nil {
		if db.IsUniqueViolation(err) {
			return Form{}, ErrDuplicate
		}
		return Form{}, fmt.Errorf("insert feedback form: %w", err)
	}
	return s.Get(ctx, id)
}

func (s *Store) Get(ctx context.Context, id string) (Form, error) {
	return scanForm(s.DB.QueryRow(ctx, selectForm+" WHERE f.id = $1::uuid", id))
}

func (s *Store) Exists(ctx context.Context, reviewerID, employeeID, cycleID string) (bool, error) {
	var exists bool
	err := s.DB.QueryRow(ctx, `
    SELECT EXISTS (
      SELECT 1 FROM feedback_forms
      WHERE reviewer_id = $1::uuid AND employee_id = $2::uuid AND performance_cycle_id = $3::uuid
    )
  `, reviewerID, employeeID, cycleID).Scan(&exists)
	return exists, err
}

func (s *Store) UpdateDraft(ctx context.Context, form Form) (Form, error) {
	tag, err := s.DB.Exec(ctx, `
    UPDATE feedback_forms
    SET strengths = $2, improvements = $3, overall_rating = $4, status = $5,
        submitted_at = CASE WHEN $5 = 'submitted' THEN now() END,
        updated_at = now()
    WHERE id = $1::uuid AND status = 'draft'
  `, form.ID, form.Strengths, form.Improvements, string(form.OverallRating), string(form.Status))
	if err != nil {
		return Form{}, err
	}
	if tag.RowsAffected() == 0 {
		return Form{}, s.missingOrSubmitted(ctx, form.ID)
	}
	return s.Get(ctx, form.ID)
}

func (s *Store) DeleteDraft(ctx context.Context, id string) error {
	if !db.ValidID(id) {
		return ErrNotFound
	}
	tag, err := s.DB.Exec(ctx, "DELETE FROM feedback_forms WHERE id = $1::uuid AND status = 'draft'", id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return s.missingOrSubmitted(ctx, id)
	}
	return nil
}

func (s *Store) missingOrSubmitted(ctx context.Context, id string) error {
	var exists bool
	if err := s.DB.QueryRow(ctx, "SELECT EXISTS (SELECT 1 FROM feedback_forms WHERE id = $1::uuid)", id).Scan(&exists); err != nil {
		return err
	}
	if !exists {
		return ErrNotFound
	}
	return ErrSubmitted
}

func (s *Store) ListByReviewer(ctx context.Context, reviewerID string, filter Filter, limit, offset int) ([]Form, error) {
	rows, err := s.DB.Query(ctx, selectForm+`
    WHERE f.reviewer_id = $1::uuid
      AND ($2 = '' OR f.status = $2)
      AND ($3::uuid IS NULL OR f.performance_cycle_id = $3::uuid)
    ORDER BY f.updated_at DESC
    LIMIT $4 OFFSET $5
  `, reviewerID, string(filter.Status), db.OptionalID(filter.CycleID), limit, offset)
	if err != nil {
		return nil, err
	}
	return collectForms(rows)
}

func (s *Store) CountByReviewer(ctx context.Context, reviewerID string, filter Filter) (int, error) {
	var total int
	err := s.DB.QueryRow(ctx, `
    SELECT COUNT(1) FROM feedback_forms
    WHERE reviewer_id = $1::uuid
      AND ($2 = '' OR status = $2)
      AND ($3::uuid IS NULL OR performance_cycle_id = $3::uuid)
  `, reviewerID, string(filter.Status), db.OptionalID(filter.CycleID)).Scan(&total)
	return total, err
}

func (s *Store) ListSubmittedForEmployee(ctx context.Context, employeeID, cycleID string) ([]Form, error) {
	rows, err := s.DB.Query(ctx, selectForm+`
    WHERE f.employee_id = $1::uuid
      AND f.status = 'submitted'
      AND ($2::uuid IS NULL OR f.performance_cycle_id = $2::uuid)
    ORDER BY f.submitted_at DESC
  `, employeeID, db.OptionalID(cycleID))
	if err != nil {
		return nil, err
	}
	return collectForms(rows)
}

func (s *Store) ListAll(ctx context.Context, filter Filter, limit, offset int) ([]Form, error) {
	rows, err := s.DB.Query(ctx, selectForm+`
    WHERE ($1 = '' OR f.status = $1)
      AND ($2::uuid IS NULL OR f.performance_cycle_id = $2::uuid)
    ORDER BY f.updated_at DESC
    LIMIT $3 OFFSET $4
  `, string(filter.Status), db.OptionalID(filter.CycleID), limit, offset)
	if err != nil {
		return nil, err
	}
	return collectForms(rows)
}

func (s *Store) CountAll(ctx context.Context, filter Filter) (int, error) {
	var total int
	err := s.DB.QueryRow(ctx, `
    SELECT COUNT(1) FROM feedback_forms
    WHERE ($1 = '' OR status = $1)
      AND ($2::uuid IS NULL OR performance_cycle_id = $2::uuid)
  `, string(filter.Status), db.OptionalID(filter.CycleID)).Scan(&total)
	return total, err
}

func (s *Store) Person(ctx context.Context, id string) (Person, error) {
	var p Person
	err := s.DB.QueryRow(ctx, "SELECT id::text, name, email, is_active FROM users WHERE id = $1::uuid", id).
		Scan(&p.ID, &p.Name, &p.Email, &p.IsActive)
	if errors.Is(err, pgx.ErrNoRows) || db.IsInvalidInput(err) {
		return Person{}, ErrEmployeeNotFound
	}
	return p, err
}
