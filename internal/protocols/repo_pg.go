package protocols

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"wellness-backend/internal/protocols/engine"
)

const uniqueViolation = "23505"

// PGRepo implements Repo using Postgres.
type PGRepo struct {
	DB *sql.DB
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

const insertProtocol = `
INSERT INTO protocols (
	id, user_id, day, title, category, focus_area, coach, duration_minutes, intensity_level,
	instructions, clinical_evidence, derived_from_signal_score, derived_from_cycle_phase,
	rule, variety_fallback, catalog_version, created_at
)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)`

const selectProtocol = `
SELECT id, user_id, day, title, category, focus_area, coach, duration_minutes, intensity_level,
       instructions, clinical_evidence, derived_from_signal_score, derived_from_cycle_phase,
       rule, variety_fallback, catalog_version, created_at
FROM protocols`

// Create inserts a protocol; a second protocol for the same user and day is rejected.
func (r *PGRepo) Create(ctx context.Context, p Protocol) error {
	return insertWith(ctx, r.DB, p)
}

// Replace deletes the day's protocol and inserts p in one transaction.
func (r *PGRepo) Replace(ctx context.Context, p Protocol) error {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM protocols WHERE user_id = $1 AND day = $2`, p.UserID, p.Day); err != nil {
		return err
	}
	if err := insertWith(ctx, tx, p); err != nil {
		return err
	}
	return tx.Commit()
}

func (r *PGRepo) GetForDay(ctx context.Context, userID, day string) (Protocol, error) {
	rows, err := r.DB.QueryContext(ctx, selectProtocol+`
WHERE user_id = $1 AND day = $2
LIMIT 1`, userID, day)
	if err != nil {
		return Protocol{}, err
	}
	list, err := scanProtocols(rows)
	if err != nil {
		return Protocol{}, err
	}
	if len(list) == 0 {
		return Protocol{}, ErrNotFound
	}
	return list[0], nil
}

func (r *PGRepo) ListByUserSince(ctx context.Context, userID string, since time.Time, limit int) ([]Protocol, error) {
	rows, err := r.DB.QueryContext(ctx, selectProtocol+`
WHERE user_id = $1 AND day >= $2::date
ORDER BY day DESC, created_at DESC
LIMIT $3`, userID, DayOf(since), limit)
	if err != nil {
		return nil, err
	}
	return scanProtocols(rows)
}

func (r *PGRepo) ListByUser(ctx context.Context, userID string, limit, offset int) ([]Protocol, error) {
	rows, err := r.DB.QueryContext(ctx, selectProtocol+`
WHERE user_id = $1
ORDER BY day DESC, created_at DESC
LIMIT $2 OFFSET $3`, userID, limit, offset)
	if err != nil {
		return nil, err
	}
	return scanProtocols(rows)
}

func insertWith(ctx context.Context, ex execer, p Protocol) error {
	instructions, err := marshalJSONB(p.Instructions)
	if err != nil {
		return err
	}
	evidence, err := marshalJSONB(p.ClinicalEvidence)
	if err != nil {
		return err
	}
	_, err = ex.ExecContext(ctx, insertProtocol,
		p.ID,
		p.UserID,
		p.Day,
		p.Title,
		string(p.Category),
		p.FocusArea,
		p.Coach,
		p.DurationMinutes,
		p.IntensityLevel,
		instructions,
		evidence,
		nullableInt(p.DerivedFromSignalScore),
		nullableString(p.DerivedFromCyclePhase),
		string(p.Rule),
		p.VarietyFallback,
		p.CatalogVersion,
		p.CreatedAt.UTC(),
	)
	if isUniqueViolation(err) {
		return ErrAlreadyExists
	}
	return err
}

func scanProtocols(rows *sql.Rows) ([]Protocol, error) {
	defer rows.Close()
	out := make([]Protocol, 0)
	for rows.Next() {
		var p Protocol
		var day time.Time
		var category, rule string
		var instructions, evidence []byte
		var score sql.NullInt64
		var phase sql.NullString
		if err := rows.Scan(
			&p.ID,
			&p.UserID,
			&day,
			&p.Title,
			&category,
			&p.FocusArea,
			&p.Coach,
			&p.DurationMinutes,
			&p.IntensityLevel,
			&instructions,
			&evidence,
			&score,
			&phase,
			&rule,
			&p.VarietyFallback,
			&p.CatalogVersion,
			&p.CreatedAt,
		); err != nil {
			return nil, err
		}
		p.Day = day.Format(DayLayout)
		p.Category = engine.Category(category)
		p.Rule = engine.Rule(rule)
		if err := json.Unmarshal(instructions, &p.Instructions); err != nil {
			return nil, fmt.Errorf("decode instructions for %s: %w", p.ID, err)
		}
		if len(evidence) > 0 {
			if err := json.Unmarshal(evidence, &p.ClinicalEvidence); err != nil {
				return nil, fmt.Errorf("decode clinical evidence for %s: %w", p.ID, err)
			}
		}
		if score.Valid {
			v := int(score.Int64)
			p.DerivedFromSignalScore = &v
		}
		if phase.Valid {
			v := phase.String
			p.DerivedFromCyclePhase = &v
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func marshalJSONB(value any) ([]byte, error) {
	payload, err := json.Marshal(value)
	if err != nil {
		return nil, err
	}
	if string(payload) == "null" {
		return []byte("[]"), nil
	}
	return payload, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

func nullableInt(v *int) any {
	if v == nil {
		return nil
	}
	return int64(*v)
}

func nullableString(v *string) any {
	if v == nil {
		return nil
	}
	return *v
}
