package tables

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"ms-pos/internal/apperr"
	"ms-pos/internal/database"
	"ms-pos/internal/events"
	"ms-pos/internal/logger"
	"ms-pos/internal/models"
)

type DBLayer interface {
	CreateTable(ctx context.Context, t *models.Table) error
	GetTable(ctx context.Context, id string) (*models.Table, error)
	ListTables(ctx context.Context) ([]models.Table, error)
	ListOccupied(ctx context.Context) ([]models.Table, error)
	RenumberTable(ctx context.Context, id string, number int, at time.Time) (bool, error)
	DeleteTable(ctx context.Context, id string) (bool, error)
	AssignWaiter(ctx context.Context, id, waiterID string, at time.Time) (bool, error)
	ReleaseWaiter(ctx context.Context, id, waiterID string, at time.Time) (bool, error)
	SetActiveOrder(ctx context.Context, id string, active bool, at time.Time) (bool, error)
}

// TableService owns table occupancy and waiter attendance. Order flows write
// only has_active_order; waiter actions write only the waiter fields.
type TableService struct {
	DB       DBLayer
	Notifier events.Notifier
	Logger   *logger.Logger
	Now      func() time.Time
}

func NewTableService(db DBLayer, notifier events.Notifier, log *logger.Logger) *TableService {
	return &TableService{DB: db, Notifier: notifier, Logger: log, Now: time.Now}
}

// ---------------- ADMINISTRATION ----------------

func (s *TableService) Create(ctx context.Context, number int) (*models.Table, error) {
	if number <= 0 {
		return nil, apperr.Validation("table number must be positive")
	}
	now := s.Now().UTC()
	t := &models.Table{
		ID:               uuid.New().String(),
		Number:           number,
		WaiterAttendance: models.AttendanceFree,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if err := s.DB.CreateTable(ctx, t); err != nil {
		if database.IsUniqueViolation(err) {
			return nil, apperr.Conflict("table number %d already exists", number)
		}
		return nil, apperr.Internal(err, "failed to create table")
	}
	s.Logger.LogTable("CREATE", t.ID, fmt.Sprintf("number=%d", number))
	s.notify(ctx, t)
	return t, nil
}

func (s *TableService) Get(ctx context.Context, id string) (*models.Table, error) {
	t, err := s.DB.GetTable(ctx, id)
	if err != nil {
		return nil, apperr.Internal(err, "failed to load table")
	}
	if t == nil {
		return nil, apperr.NotFound("table %s not found", id)
	}
	return t, nil
}

func (s *TableService) List(ctx context.Context) ([]models.Table, error) {
	tables, err := s.DB.ListTables(ctx)
	if err != nil {
		return nil, apperr.Internal(err, "failed to list tables")
	}
	return tables, nil
}

// ListOccupied returns tables currently flagged with an active order.
func (s *TableService) ListOccupied(ctx context.Context) ([]models.Table, error) {
	tables, err := s.DB.ListOccupied(ctx)
	if err != nil {
		return nil, apperr.Internal(err, "failed to list occupied tables")
	}
	return tables, nil
}

func (s *TableService) Renumber(ctx context.Context, id string, number int) (*models.Table, error) {
	if number <= 0 {
		return nil, apperr.Validation("table number must be positive")
	}
	ok, err := s.DB.RenumberTable(ctx, id, number, s.Now().UTC())
	if err != nil {
		if database.IsUniqueViolation(err) {
			return nil, apperr.Conflict("table number %d already exists", number)
		}
		return nil, apperr.Internal(err, "failed to renumber table")
	}
	if !ok {
		return nil, apperr.NotFound("table %s not found", id)
	}
	return s.reload(ctx, id)
}

func (s *TableService) Delete(ctx context.Context, id string) error {
	if _, err := s.Get(ctx, id); err != nil {
		return err
	}
	ok, err := s.DB.DeleteTable(ctx, id)
	if err != nil {
		return apperr.Internal(err, "failed to delete table")
	}
	if !ok {
		return apperr.Conflict("table %s has an active order or an assigned waiter", id)
	}
	s.Logger.LogTable("DELETE", id, "table removed")
	return nil
}

// ---------------- WAITER ATTENDANCE ----------------

// AssignWaiter lets a waiter take a table that is free of orders and unattended.
func (s *TableService) AssignWaiter(ctx context.Context, id string, waiter models.Actor) (*models.Table, error) {
	ok, err := s.DB.AssignWaiter(ctx, id, waiter.ID, s.Now().UTC())
	if err != nil {
		return nil, apperr.Internal(err, "failed to assign waiter")
	}
	if !ok {
		if _, err := s.Get(ctx, id); err != nil {
			return nil, err
		}
		return nil, apperr.Conflict("table %s is not available", id)
	}
	s.Logger.LogTable("ASSIGN", id, fmt.Sprintf("waiter=%s", waiter.ID))
	return s.reload(ctx, id)
}

// ReleaseWaiter clears the attendance; only the assigned waiter may release.
func (s *TableService) ReleaseWaiter(ctx context.Context, id string, waiter models.Actor) (*models.Table, error) {
	ok, err := s.DB.ReleaseWaiter(ctx, id, waiter.ID, s.Now().UTC())
	if err != nil {
		return nil, apperr.Internal(err, "failed to release waiter")
	}
	if !ok {
		if _, err := s.Get(ctx, id); err != nil {
			return nil, err
		}
		return nil, apperr.Conflict("table %s is not attended by %s", id, waiter.ID)
	}
	s.Logger.LogTable("RELEASE", id, fmt.Sprintf("waiter=%s", waiter.ID))
	return s.reload(ctx, id)
}

// ---------------- ORDER OCCUPANCY ----------------

// MarkOccupied sets has_active_order. changed is false when the table was
// already occupied; a missing table is NotFound.
func (s *TableService) MarkOccupied(ctx context.Context, id string) (bool, error) {
	return s.setActive(ctx, id, true)
}

// MarkFree clears has_active_order; repeated calls are no-ops.
func (s *TableService) MarkFree(ctx context.Context, id string) (bool, error) {
	return s.setActive(ctx, id, false)
}

func (s *TableService) setActive(ctx context.Context, id string, active bool) (bool, error) {
	changed, err := s.DB.SetActiveOrder(ctx, id, active, s.Now().UTC())
	if err != nil {
		return false, apperr.Internal(err, "failed to update table occupancy")
	}
	if !changed {
		if _, err := s.Get(ctx, id); err != nil {
			return false, err
		}
		return false, nil
	}
	state := models.OccupancyFree
	if active {
		state = models.OccupancyOccupied
	}
	s.Logger.LogTable("OCCUPANCY", id, string(state))
	if t, err := s.DB.GetTable(ctx, id); err == nil && t != nil {
		s.notify(ctx, t)
	}
	return true, nil
}

func (s *TableService) reload(ctx context.Context, id string) (*models.Table, error) {
	t, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	s.notify(ctx, t)
	return t, nil
}

func (s *TableService) notify(ctx context.Context, t *models.Table) {
	s.Notifier.Notify(ctx, models.NewEvent(models.EventTableUpdated, t.ID, t, models.ChannelTables))
}
