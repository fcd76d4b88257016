package cycles

import (
	"context"
	"errors"
	"time"

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

const cycleColumns = "id, name, start_date, end_date, status, description, created_at, updated_at"

func scanCycle(row pgx.Row) (Cycle, error) {
	var c Cycle
	err := row.Scan(&c.ID, &c.Name, &c.StartDate, &c.EndDate, &c.Status, &c.Description, &c.CreatedAt, &c.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) || db.IsInvalidInput(err) {
		return Cycle{}, ErrNotFound
	}
	return c, err
}

func (s *Store) Insert(ctx context.Context, c Cycle, deactivateOthers bool) (Cycle, error) {
	return s.write(ctx, "", deactivateOthers, func(tx pgx.Tx) (Cycle, error) {
		return scanCycle(tx.QueryRow(ctx, `
      INSERT INTO performance_cycles (name, start_date, end_date, status, description)
      VALUES ($1,$2,$3,$4,$5)
      RETURNING `+cycleColumns,
			c.Name, c.StartDate, c.EndDate, c.Status, c.Description))
	})
}

func (s *Store) Update(ctx context.Context, c Cycle, deactivateOthers bool) (Cycle, error) {
	return s.write(ctx, c.ID, deactivateOthers, func(tx pgx.Tx) (Cycle, error) {
		return scanCycle(tx.QueryRow(ctx, `
      UPDATE performance_cycles
      SET name = $2, start_date = $3, end_date = $4, status = $5, description = $6, updated_at = now()
      WHERE id = $1::uuid
      RETURNING `+cycleColumns,
			c.ID, c.Name, c.StartDate, c.EndDate, c.Status, c.Description))
	})
}

// write runs fn in a transaction. Activation takes a table lock so two
// concurrent activations serialize; the partial unique index on active
// status backs this up.
func (s *Store) write(ctx context.Context, keepID string, deactivateOthers bool, fn func(pgx.Tx) (Cycle, error)) (Cycle, error) {
	tx, err := s.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return Cycle{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if deactivateOthers {
		if _, err := tx.Exec(ctx, "LOCK TABLE performance_cycles IN SHARE ROW EXCLUSIVE MODE"); err != nil {
			return Cycle{}, err
		}
		if _, err := tx.Exec(ctx, `
      UPDATE performance_cycles SET status = 'inactive', updated_at = now()
      WHERE status = 'active' AND ($1::uuid IS NULL OR id <> $1::uuid)
    `, db.OptionalID(keepID)); err != nil {
			return Cycle{}, err
		}
	}

	out, err := fn(tx)
	if err != nil {
		if db.IsUniqueViolation(err) {
			return Cycle{}, ErrActiveConflict
		}
		return Cycle{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		if db.IsUniqueViolation(err) {
			return Cycle{}, ErrActiveConflict
		}
		return Cycle{}, err
	}
	return out, nil
}

func (s *Store) Get(ctx context.Context, id string) (Cycle, error) {
	return scanCycle(s.DB.QueryRow(ctx, "SELECT "+cycleColumns+" FROM performance_cycles WHERE id = $1::uuid", id))
}

func (s *Store) Active(ctx context.Context) (*Cycle, error) {
	c, err := scanCycle(s.DB.QueryRow(ctx, "SELECT "+cycleColumns+" FROM performance_cycles WHERE status = 'active' LIMIT 1"))
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (s *Store) List(ctx context.Context, status Status, limit, offset int) ([]Cycle, error) {
	rows, err := s.DB.Query(ctx, `
    SELECT `+cycleColumns+`
    FROM performance_cycles
    WHERE ($1 = '' OR status = $1)
    ORDER BY start_date DESC, created_at DESC
    LIMIT $2 OFFSET $3
  `, string(status), limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Cycle{}
	for rows.Next() {
		c, err := scanCycle(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *Store) Count(ctx context.Context, status Status) (int, error) {
	var total int
	err := s.DB.QueryRow(ctx, "SELECT COUNT(1) FROM performance_cycles WHERE ($1 = '' OR status = $1)", string(status)).Scan(&total)
	return total, err
}

func (s *Store) Delete(ctx context.Context, id string) error {
	if !db.ValidID(id) {
		return ErrNotFound
	}
	tag, err := s.DB.Exec(ctx, "DELETE FROM performance_cycles WHERE id = $1::uuid", id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Store) CompleteEndedBefore(ctx context.Context, day time.Time) ([]string, error) {
	rows, err := s.DB.Query(ctx, `
    UPDATE performance_cycles SET status = 'completed', updated_at = now()
    WHERE status = 'active' AND end_date < $1::date
    RETURNING id::text
  `, day)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ids := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
