package repository

// This file defines the calculation repository.  Every query is filtered by
// both the calculation id and the owning user id, so ownership is enforced
// in SQL and a foreign record looks exactly like a missing one.

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"

	"github.com/iliyamo/calculations-api/internal/database"
	"github.com/iliyamo/calculations-api/internal/model"
)

var calculationColumns = []string{"id", "user_id", "type", "inputs", "result", "created_at", "updated_at"}

// CalculationRepo encapsulates all database queries related to
// calculations.
type CalculationRepo struct {
	db *sql.DB
}

// NewCalculationRepo constructs a CalculationRepo with the provided DB handle.
func NewCalculationRepo(db *sql.DB) *CalculationRepo {
	return &CalculationRepo{db: db}
}

// Create inserts c.  The caller supplies id, result and timestamps.
func (r *CalculationRepo) Create(ctx context.Context, c *model.Calculation) error {
	inputs, err := json.Marshal(c.Inputs)
	if err != nil {
		return fmt.Errorf("encode inputs: %w", err)
	}
	q, args, err := sq.Insert("calculations").
		Columns(calculationColumns...).
		Values(c.ID, c.UserID, c.Type, inputs, c.Result, c.CreatedAt, c.UpdatedAt).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}
	if _, err := r.db.ExecContext(ctx, q, args...); err != nil {
		return fmt.Errorf("insert calculation: %w", err)
	}
	return nil
}

// ListByOwner returns all calculations of ownerID, oldest first.  Ties on
// created_at are broken by id so repeated calls return the same order.
func (r *CalculationRepo) ListByOwner(ctx context.Context, ownerID string) ([]model.Calculation, error) {
	q, args, err := sq.Select(calculationColumns...).
		From("calculations").
		Where(sq.Eq{"user_id": ownerID}).
		OrderBy("created_at", "id").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select: %w", err)
	}
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list calculations: %w", err)
	}
	defer rows.Close()

	out := make([]model.Calculation, 0)
	for rows.Next() {
		c, err := scanCalculation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// GetByIDAndOwner fetches a calculation by id but only if it belongs to
// ownerID.  Otherwise ErrCalculationNotFound is returned.
func (r *CalculationRepo) GetByIDAndOwner(ctx context.Context, id, ownerID string) (model.Calculation, error) {
	q, args, err := selectOwned(id, ownerID).ToSql()
	if err != nil {
		return model.Calculation{}, fmt.Errorf("build select: %w", err)
	}
	return scanCalculation(r.db.QueryRowContext(ctx, q, args...))
}

// Update locks the owned row, applies mutate to it and writes the result
// back in one transaction.  If mutate returns an error nothing is written and
// that error is returned unchanged.
func (r *CalculationRepo) Update(ctx context.Context, id, ownerID string, mutate func(*model.Calculation) error) (model.Calculation, error) {
	var updated model.Calculation
	err := database.WithTx(ctx, r.db, func(tx *sql.Tx) error {
		q, args, err := selectOwned(id, ownerID).Suffix("FOR UPDATE").ToSql()
		if err != nil {
			return fmt.Errorf("build select: %w", err)
		}
		c, err := scanCalculation(tx.QueryRowContext(ctx, q, args...))
		if err != nil {
			return err
		}
		if err := mutate(&c); err != nil {
			return err
		}

		inputs, err := json.Marshal(c.Inputs)
		if err != nil {
			return fmt.Errorf("encode inputs: %w", err)
		}
		uq, uargs, err := sq.Update("calculations").
			Set("inputs", inputs).
			Set("result", c.Result).
			Set("updated_at", c.UpdatedAt).
			Where(sq.Eq{"id": id}).
			Where(sq.Eq{"user_id": ownerID}).
			ToSql()
		if err != nil {
			return fmt.Errorf("build update: %w", err)
		}
		if _, err := tx.ExecContext(ctx, uq, uargs...); err != nil {
			return fmt.Errorf("update calculation: %w", err)
		}
		updated = c
		return nil
	})
	if err != nil {
		return model.Calculation{}, err
	}
	return updated, nil
}

// DeleteByIDAndOwner removes an owned calculation.  A missing or foreign
// row yields ErrCalculationNotFound, so a repeated delete fails.
func (r *CalculationRepo) DeleteByIDAndOwner(ctx context.Context, id, ownerID string) error {
	q, args, err := sq.Delete("calculations").
		Where(sq.Eq{"id": id}).
		Where(sq.Eq{"user_id": ownerID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build delete: %w", err)
	}
	res, err := r.db.ExecContext(ctx, q, args...)
	if err != nil {
		return fmt.Errorf("delete calculation: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrCalculationNotFound
	}
	return nil
}

func selectOwned(id, ownerID string) sq.SelectBuilder {
	return sq.Select(calculationColumns...).
		From("calculations").
		Where(sq.Eq{"id": id}).
		Where(sq.Eq{"user_id": ownerID})
}

// scanner is satisfied by *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanCalculation(s scanner) (model.Calculation, error) {
	var (
		c      model.Calculation
		inputs []byte
	)
	if err := s.Scan(&c.ID, &c.UserID, &c.Type, &inputs, &c.Result, &c.CreatedAt, &c.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Calculation{}, ErrCalculationNotFound
		}
		return model.Calculation{}, fmt.Errorf("scan calculation: %w", err)
	}
	if err := json.Unmarshal(inputs, &c.Inputs); err != nil {
		return model.Calculation{}, fmt.Errorf("decode inputs: %w", err)
	}
	return c, nil
}
