package selections

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

const selectSelection = `
  SELECT s.id::text, s.performance_cycle_id::text, s.mentee_id::text, s.status, s.comments, s.submitted_at,
         s.mentor_feedback, s.required_changes, s.reviewed_by::text, s.reviewed_at, s.created_at, s.updated_at,
         ARRAY(SELECT d.reviewer_id::text FROM reviewer_selection_details d WHERE d.selection_id = s.id ORDER BY d.position)
  FROM reviewer_selections s`

func scanSelection(row pgx.Row) (Selection, error) {
	var sel Selection
	err := row.Scan(&sel.ID, &sel.PerformanceCycleID, &sel.MenteeID, &sel.Status, &sel.Comments, &sel.SubmittedAt,
		&sel.MentorFeedback, &sel.RequiredChanges, &sel.ReviewedBy, &sel.ReviewedAt, &sel.CreatedAt, &sel.UpdatedAt,
		&sel.ReviewerIDs)
	if errors.Is(err, pgx.ErrNoRows) || db.IsInvalidInput(err) {
		return Selection{}, ErrNotFound
	}
	if sel.RequiredChanges == nil {
		sel.RequiredChanges = []string{}
	}
	return sel, err
}

func (s *Store) Insert(ctx context.Context, sel Selection) (Selection, error) {
	tx, err := s.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return Selection{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var id string
	err = tx.QueryRow(ctx, `
    INSERT INTO reviewer_selections (performance_cycle_id, mentee_id, status, comments, submitted_at)
    VALUES ($1, $2, $3, $4, now())
    RETURNING id::text
  `, sel.PerformanceCycleID, sel.MenteeID, sel.Status, sel.Comments).Scan(&id)
	if err != nil {
		if db.IsUniqueViolation(err) {
			return Selection{}, ErrDuplicate
		}
		return Selection{}, fmt.Errorf("insert reviewer selection: %w", err)
	}
	if err := insertReviewers(ctx, tx, id, sel.ReviewerIDs); err != nil {
		return Selection{}, err
	}

	created, err := scanSelection(tx.QueryRow(ctx, selectSelection+" WHERE s.id = $1::uuid", id))
	if err != nil {
		return Selection{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return Selection{}, err
	}
	return created, nil
}

func insertReviewers(ctx context.Context, tx pgx.Tx, selectionID string, reviewerIDs []string) error {
	for i, reviewerID := range reviewerIDs {
		if _, err := tx.Exec(ctx, `
      INSERT INTO reviewer_selection_details (selection_id, reviewer_id, position)
      VALUES ($1, $2, $3)
    `, selectionID, reviewerID, i); err != nil {
			return fmt.Errorf("insert reviewer %s: %w", reviewerID, err)
		}
	}
	return nil
}

func (s *Store) Get(ctx context.Context, id string) (Selection, error) {
	return scanSelection(s.DB.QueryRow(ctx, selectSelection+" WHERE s.id = $1::uuid", id))
}

func (s *Store) FindByMentee(ctx context.Context, menteeID, cycleID string) (*Selection, error) {
	sel, err := scanSelection(s.DB.QueryRow(ctx, selectSelection+`
    WHERE s.mentee_id = $1::uuid AND ($2::uuid IS NULL OR s.performance_cycle_id = $2::uuid)
    ORDER BY s.created_at DESC
    LIMIT 1
  `, menteeID, db.OptionalID(cycleID)))
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &sel, nil
}

func (s *Store) Resubmit(ctx context.Context, id string, from []Status, reviewerIDs []string, comments string) (Selection, error) {
	tx, err := s.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return Selection{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	states := make([]string, 0, len(from))
	for _, status := range from {
		states = append(states, string(status))
	}
	tag, err := tx.Exec(ctx, `
    UPDATE reviewer_selections
    SET status = 'pending', comments = $2, submitted_at = now(), updated_at = now()
    WHERE id = $1::uuid AND status = ANY($3)
  `, id, comments, states)
	if err != nil {
		return Selection{}, err
	}
	if tag.RowsAffected() == 0 {
		return Selection{}, s.missingOrStale(ctx, tx, id)
	}

	if _, err := tx.Exec(ctx, "DELETE FROM reviewer_selection_details WHERE selection_id = $1::uuid", id); err != nil {
		return Selection{}, err
	}
	if err := insertReviewers(ctx, tx, id, reviewerIDs); err != nil {
		return Selection{}, err
	}

	updated, err := scanSelection(tx.QueryRow(ctx, selectSelection+" WHERE s.id = $1::uuid", id))
	if err != nil {
		return Selection{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return Selection{}, err
	}
	return updated, nil
}

func (s *Store) Review(ctx context.Context, id string, review Review) (Selection, error) {
	changes := review.RequiredChanges
	if changes == nil {
		changes = []string{}
	}
	tag, err := s.DB.Exec(ctx, `
    UPDATE reviewer_selections
    SET status = $2, mentor_feedback = $3, required_changes = $4, reviewed_by = $5, reviewed_at = now(), updated_at = now()
    WHERE id = $1::uuid AND status = 'pending'
  `, id, review.Status, review.MentorFeedback, changes, review.ReviewedBy)
	if err != nil {
		return Selection{}, err
	}
	if tag.RowsAffected() == 0 {
		return Selection{}, s.missingOrStale(ctx, s.DB, id)
	}
	return s.Get(ctx, id)
}

func (s *Store) DeletePending(ctx context.Context, id string) error {
	if !db.ValidID(id) {
		return ErrNotFound
	}
	tag, err := s.DB.Exec(ctx, "DELETE FROM reviewer_selections WHERE id = $1::uuid AND status = 'pending'", id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return s.missingOrStale(ctx, s.DB, id)
	}
	return nil
}

type querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// missingOrStale explains why a conditional write touched no rows.
func (s *Store) missingOrStale(ctx context.Context, q querier, id string) error {
	var exists bool
	if err := q.QueryRow(ctx, "SELECT EXISTS (SELECT 1 FROM reviewer_selections WHERE id = $1::uuid)", id).Scan(&exists); err != nil {
		return err
	}
	if !exists {
		return ErrNotFound
	}
	return ErrStateChanged
}

func (s *Store) List(ctx context.Context, status Status, limit, offset int) ([]Selection, error) {
	rows, err := s.DB.Query(ctx, selectSelection+`
    WHERE ($1 = '' OR s.status = $1)
    ORDER BY s.submitted_at DESC NULLS LAST, s.created_at DESC
    LIMIT $2 OFFSET $3
  `, string(status), limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Selection{}
	for rows.Next() {
		sel, err := scanSelection(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, sel)
	}
	return out, rows.Err()
}

func (s *Store) Count(ctx context.Context, status Status) (int, error) {
	var total int
	err := s.DB.QueryRow(ctx, "SELECT COUNT(1) FROM reviewer_selections WHERE ($1 = '' OR status = $1)", string(status)).Scan(&total)
	return total, err
}

func (s *Store) Users(ctx context.Context, ids []string) ([]UserSummary, error) {
	if len(ids) == 0 {
		return []UserSummary{}, nil
	}
	rows, err := s.DB.Query(ctx, `
    SELECT id::text, name, email, role, department, position, is_active
    FROM users
    WHERE id = ANY($1::uuid[])
  `, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []UserSummary{}
	for rows.Next() {
		var u UserSummary
		if err := rows.Scan(&u.ID, &u.Name, &u.Email, &u.Role, &u.Department, &u.Position, &u.IsActive); err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

func (s *Store) Assignments(ctx context.Context, reviewerID string) ([]Assignment, error) {
	rows, err := s.DB.Query(ctx, `
    SELECT s.id::text,
           u.id::text, u.name, u.email, u.role, u.department, u.position, u.is_active,
           c.id::text, c.name, c.start_date, c.end_date, c.status,
           f.id::text, f.status
    FROM reviewer_selection_details d
    JOIN reviewer_selections s ON s.id = d.selection_id AND s.status = 'approved'
    JOIN users u ON u.id = s.mentee_id
    JOIN performance_cycles c ON c.id = s.performance_cycle_id
    LEFT JOIN feedback_forms f
      ON f.reviewer_id = d.reviewer_id AND f.employee_id = s.mentee_id AND f.performance_cycle_id = s.performance_cycle_id
    WHERE d.reviewer_id = $1::uuid
    ORDER BY c.start_date DESC, u.name
  `, reviewerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Assignment{}
	for rows.Next() {
		var a Assignment
		var formStatus *string
		if err := rows.Scan(&a.SelectionID,
			&a.Mentee.ID, &a.Mentee.Name, &a.Mentee.Email, &a.Mentee.Role, &a.Mentee.Department, &a.Mentee.Position, &a.Mentee.IsActive,
			&a.PerformanceCycle.ID, &a.PerformanceCycle.Name, &a.PerformanceCycle.StartDate, &a.PerformanceCycle.EndDate, &a.PerformanceCycle.Status,
			&a.FeedbackFormID, &formStatus); err != nil {
			return nil, err
		}
		a.FeedbackStatus = FeedbackNotStarted
		if formStatus != nil {
			a.FeedbackStatus = *formStatus
		}
		out = append(out, a)
	}
	return out, rows.Err()
}
