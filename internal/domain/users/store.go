package users

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"reviewflow/internal/domain/auth"
	"reviewflow/internal/platform/db"
)

type Store struct {
	DB *pgxpool.Pool
}

func NewStore(db *pgxpool.Pool) *Store {
	return &Store{DB: db}
}

const userColumns = "id, email, name, role, department, position, is_active, mfa_enabled, last_login, created_at, updated_at"

func scanUser(row pgx.Row) (User, error) {
	var u User
	err := row.Scan(&u.ID, &u.Email, &u.Name, &u.Role, &u.Department, &u.Position, &u.IsActive, &u.MFAEnabled, &u.LastLogin, &u.CreatedAt, &u.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) || db.IsInvalidInput(err) {
		return User{}, ErrNotFound
	}
	return u, err
}

func collectUsers(rows pgx.Rows) ([]User, error) {
	defer rows.Close()
	out := []User{}
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

func (s *Store) Create(ctx context.Context, user NewUser) (User, error) {
	created, err := scanUser(s.DB.QueryRow(ctx, `
    INSERT INTO users (email, name, role, department, position, password_hash, is_active)
    VALUES ($1,$2,$3,$4,$5,$6,$7)
    RETURNING `+userColumns,
		user.Email, user.Name, user.Role, user.Department, user.Position, user.PasswordHash, user.IsActive))
	if db.IsUniqueViolation(err) {
		return User{}, ErrEmailTaken
	}
	return created, err
}

func (s *Store) Get(ctx context.Context, id string) (User, error) {
	return scanUser(s.DB.QueryRow(ctx, "SELECT "+userColumns+" FROM users WHERE id = $1::uuid", id))
}

func (s *Store) EmailTaken(ctx context.Context, email, excludeID string) (bool, error) {
	var count int
	if err := s.DB.QueryRow(ctx, `
    SELECT COUNT(1) FROM users WHERE lower(email) = lower($1) AND id <> $2::uuid
  `, email, excludeID).Scan(&count); err != nil {
		return false, err
	}
	return count > 0, nil
}

func (s *Store) List(ctx context.Context, filter Filter, limit, offset int) ([]User, error) {
	query, args := buildFilterQuery("SELECT "+userColumns, filter)
	query += fmt.Sprintf(" ORDER BY name, email LIMIT $%d OFFSET $%d", len(args)+1, len(args)+2)
	args = append(args, limit, offset)

	rows, err := s.DB.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	return collectUsers(rows)
}

func (s *Store) Count(ctx context.Context, filter Filter) (int, error) {
	query, args := buildFilterQuery("SELECT COUNT(1)", filter)
	var total int
	if err := s.DB.QueryRow(ctx, query, args...).Scan(&total); err != nil {
		return 0, err
	}
	return total, nil
}

func (s *Store) Update(ctx context.Context, id string, patch Patch) (User, error) {
	sets := []string{}
	args := []any{}
	add := func(column string, value any) {
		args = append(args, value)
		sets = append(sets, fmt.Sprintf("%s = $%d", column, len(args)))
	}
	if patch.Email != nil {
		add("email", *patch.Email)
	}
	if patch.Name != nil {
		add("name", *patch.Name)
	}
	if patch.Role != nil {
		add("role", *patch.Role)
	}
	if patch.Department != nil {
		add("department", *patch.Department)
	}
	if patch.Position != nil {
		add("position", *patch.Position)
	}
	if patch.PasswordHash != nil {
		add("password_hash", *patch.PasswordHash)
	}
	if patch.IsActive != nil {
		add("is_active", *patch.IsActive)
	}
	if len(sets) == 0 {
		return s.Get(ctx, id)
	}
	sets = append(sets, "updated_at = now()")
	args = append(args, id)

	updated, err := scanUser(s.DB.QueryRow(ctx,
		fmt.Sprintf("UPDATE users SET %s WHERE id = $%d::uuid RETURNING %s", strings.Join(sets, ", "), len(args), userColumns),
		args...))
	if db.IsUniqueViolation(err) {
		return User{}, ErrEmailTaken
	}
	return updated, err
}

func (s *Store) Delete(ctx context.Context, id string) error {
	if !db.ValidID(id) {
		return ErrNotFound
	}
	tag, err := s.DB.Exec(ctx, "DELETE FROM users WHERE id = $1::uuid", id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Store) AvailableReviewers(ctx context.Context, excludeID, department string) ([]User, error) {
	rows, err := s.DB.Query(ctx, `
    SELECT `+userColumns+`
    FROM users
    WHERE is_active = true
      AND role = ANY($1)
      AND ($2::uuid IS NULL OR id <> $2::uuid)
      AND ($3 = '' OR department = $3)
    ORDER BY name, email
  `, auth.ReviewerRoles, db.OptionalID(excludeID), department)
	if err != nil {
		return nil, err
	}
	return collectUsers(rows)
}

func buildFilterQuery(prefix string, filter Filter) (string, []any) {
	query := prefix + " FROM users WHERE 1=1"
	args := []any{}
	if filter.Role != "" {
		args = append(args, filter.Role)
		query += fmt.Sprintf(" AND role = $%d", len(args))
	}
	if filter.Department != "" {
		args = append(args, filter.Department)
		query += fmt.Sprintf(" AND department = $%d", len(args))
	}
	return query, args
}
