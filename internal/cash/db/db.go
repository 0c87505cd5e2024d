package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/uptrace/bun"

	"ms-pos/internal/models"
)

type DB struct {
	Bun *bun.DB
}

// ---------------- SESSIONS ----------------

// CreateSession inserts a new session. A unique-index violation surfaces unchanged
// so the caller can map it to a conflict.
func (d *DB) CreateSession(ctx context.Context, s *models.CashSession) error {
	_, err := d.Bun.NewInsert().Model(s).Exec(ctx)
	return err
}

// GetSession returns the session and its movements, or nil if it does not exist.
func (d *DB) GetSession(ctx context.Context, id string) (*models.CashSession, error) {
	var s models.CashSession
	err := d.Bun.NewSelect().
		Model(&s).
		Where("id = ?", id).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get cash session %s: %w", id, err)
	}
	if s.Movements, err = d.ListMovements(ctx, id); err != nil {
		return nil, err
	}
	return &s, nil
}

// FindOpenByCashier returns the cashier's open session, confirmed or not, or nil.
func (d *DB) FindOpenByCashier(ctx context.Context, cashierID string) (*models.CashSession, error) {
	var s models.CashSession
	err := d.Bun.NewSelect().
		Model(&s).
		Where("cashier_id = ?", cashierID).
		Where("status IN (?)", bun.In(models.OpenSessionStatuses)).
		OrderExpr("opened_at DESC").
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find open session for cashier %s: %w", cashierID, err)
	}
	return &s, nil
}

// ListSessions returns sessions newest first, optionally for one cashier.
func (d *DB) ListSessions(ctx context.Context, cashierID string) ([]models.CashSession, error) {
	sessions := []models.CashSession{}
	q := d.Bun.NewSelect().Model(&sessions).OrderExpr("opened_at DESC")
	if cashierID != "" {
		q = q.Where("cashier_id = ?", cashierID)
	}
	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("failed to list cash sessions: %w", err)
	}
	return sessions, nil
}

// ConfirmSession moves an unconfirmed session to confirmed. When ownerID is set
// the session must also belong to that cashier. Reports whether a row matched.
func (d *DB) ConfirmSession(ctx context.Context, id, ownerID string, at time.Time) (bool, error) {
	q := d.Bun.NewUpdate().
		Model((*models.CashSession)(nil)).
		Set("status = ?", models.SessionOpenConfirmed).
		Set("confirmed_at = ?", at).
		Where("id = ?", id).
		Where("status = ?", models.SessionOpenUnconfirmed)
	if ownerID != "" {
		q = q.Where("cashier_id = ?", ownerID)
	}
	return affected(q.Exec(ctx))
}

// CloseSession closes an open session, storing the counted amount and the
// difference against the running total in the same statement.
func (d *DB) CloseSession(ctx context.Context, id, ownerID string, counted float64, at time.Time) (bool, error) {
	q := d.Bun.NewUpdate().
		Model((*models.CashSession)(nil)).
		Set("status = ?", models.SessionClosed).
		Set("closing_amount = ?", counted).
		Set("difference = ? - (opening_amount + total_inflow - total_outflow)", counted).
		Set("closed_at = ?", at).
		Where("id = ?", id).
		Where("status IN (?)", bun.In(models.OpenSessionStatuses))
	if ownerID != "" {
		q = q.Where("cashier_id = ?", ownerID)
	}
	return affected(q.Exec(ctx))
}

// ---------------- MOVEMENTS ----------------

// AppendMovement bumps the session totals under a status guard and inserts the
// movement in one transaction. Returns false when the session is not in one of
// the allowed statuses (or not owned by ownerID when set).
func (d *DB) AppendMovement(ctx context.Context, mv *models.Movement, ownerID string, allowed []models.SessionStatus) (bool, error) {
	column := "total_inflow"
	if mv.Type == models.MovementOutflow {
		column = "total_outflow"
	}

	matched := false
	err := d.Bun.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		q := tx.NewUpdate().
			Model((*models.CashSession)(nil)).
			Set("? = ? + ?", bun.Ident(column), bun.Ident(column), mv.Amount).
			Where("id = ?", mv.SessionID).
			Where("status IN (?)", bun.In(allowed))
		if ownerID != "" {
			q = q.Where("cashier_id = ?", ownerID)
		}
		ok, err := affected(q.Exec(ctx))
		if err != nil || !ok {
			return err
		}
		if _, err := tx.NewInsert().Model(mv).Exec(ctx); err != nil {
			return fmt.Errorf("failed to insert movement: %w", err)
		}
		matched = true
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("failed to append movement to session %s: %w", mv.SessionID, err)
	}
	return matched, nil
}

func (d *DB) ListMovements(ctx context.Context, sessionID string) ([]models.Movement, error) {
	movements := []models.Movement{}
	err := d.Bun.NewSelect().
		Model(&movements).
		Where("session_id = ?", sessionID).
		OrderExpr("created_at ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list movements for session %s: %w", sessionID, err)
	}
	return movements, nil
}

// FindInflowForOrder returns the first inflow movement linked to the order, or nil.
func (d *DB) FindInflowForOrder(ctx context.Context, orderID string) (*models.Movement, error) {
	var mv models.Movement
	err := d.Bun.NewSelect().
		Model(&mv).
		Where("order_id = ?", orderID).
		Where("type = ?", models.MovementInflow).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find inflow for order %s: %w", orderID, err)
	}
	return &mv, nil
}

// OrderIDsWithInflow returns the set of order ids that have an inflow movement.
func (d *DB) OrderIDsWithInflow(ctx context.Context) (map[string]bool, error) {
	var ids []string
	err := d.Bun.NewSelect().
		Model((*models.Movement)(nil)).
		Column("order_id").
		Where("order_id IS NOT NULL").
		Where("type = ?", models.MovementInflow).
		Scan(ctx, &ids)
	if err != nil {
		return nil, fmt.Errorf("failed to list paid order ids: %w", err)
	}
	set := make(map[string]bool, len(ids))
	for _, id := range ids {
		set[id] = true
	}
	return set, nil
}

func affected(res sql.Result, err error) (bool, error) {
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
