package users

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
)

type PGRepo struct {
	DB *sql.DB
}

func (r *PGRepo) Upsert(ctx context.Context, user User) error {
	const query = `
INSERT INTO users (id, email, full_name, created_at, updated_at)
VALUES ($1, $2, $3, now(), now())
ON CONFLICT (id) DO UPDATE SET
  email = EXCLUDED.email,
  full_name = EXCLUDED.full_name,
  updated_at = now()`
	_, err := r.DB.ExecContext(ctx, query, user.ID, user.Email, nullableString(user.FullName))
	return err
}

func (r *PGRepo) GetByID(ctx context.Context, userID string) (User, error) {
	const query = `
SELECT id, email, full_name, is_glp1, tags, created_at, updated_at
FROM users
WHERE id = $1
LIMIT 1`
	return scanUser(r.DB.QueryRowContext(ctx, query, userID))
}

func (r *PGRepo) UpdateMetadata(ctx context.Context, userID string, meta Metadata) (User, error) {
	tags, err := json.Marshal(nonNilTags(meta.Tags))
	if err != nil {
		return User{}, fmt.Errorf("encode tags: %w", err)
	}
	const query = `
INSERT INTO users (id, is_glp1, tags, created_at, updated_at)
VALUES ($1, $2, $3, now(), now())
ON CONFLICT (id) DO UPDATE SET
  is_glp1 = EXCLUDED.is_glp1,
  tags = EXCLUDED.tags,
  updated_at = now()
RETURNING id, email, full_name, is_glp1, tags, created_at, updated_at`
	return scanUser(r.DB.QueryRowContext(ctx, query, userID, meta.IsGLP1, tags))
}

func scanUser(row *sql.Row) (User, error) {
	var user User
	var fullName sql.NullString
	var tags []byte
	err := row.Scan(
		&user.ID,
		&user.Email,
		&fullName,
		&user.Metadata.IsGLP1,
		&tags,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return User{}, ErrNotFound
		}
		return User{}, err
	}
	if fullName.Valid {
		user.FullName = fullName.String
	}
	if len(tags) > 0 {
		if err := json.Unmarshal(tags, &user.Metadata.Tags); err != nil {
			return User{}, fmt.Errorf("decode tags: %w", err)
		}
	}
	return user, nil
}

func nonNilTags(tags []string) []string {
	if tags == nil {
		return []string{}
	}
	return tags
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}
