package cash

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
	CreateSession(ctx context.Context, s *models.CashSession) error
	GetSession(ctx context.Context, id string) (*models.CashSession, error)
	FindOpenByCashier(ctx context.Context, cashierID string) (*models.CashSession, error)
	ListSessions(ctx context.Context, cashierID string) ([]models.CashSession, error)
	ConfirmSession(ctx context.Context, id, ownerID string, at time.Time) (bool, error)
	CloseSession(ctx context.Context, id, ownerID string, counted float64, at time.Time) (bool, error)
	AppendMovement(ctx context.Context, mv *models.Movement, ownerID string, allowed []models.SessionStatus) (bool, error)
	FindInflowForOrder(ctx context.Context, orderID string) (*models.Movement, error)
	OrderIDsWithInflow(ctx context.Context) (map[string]bool, error)
}

// MovementInput is a cashier-entered manual movement.
type MovementInput struct {
	Type        models.MovementType `json:"type"`
	Amount      float64             `json:"amount"`
	Description string              `json:"description"`
}

type CashService struct {
	DB       DBLayer
	Notifier events.Notifier
	Logger   *logger.Logger
	Now      func() time.Time
}

func NewCashService(db DBLayer, notifier events.Notifier, log *logger.Logger) *CashService {
	return &CashService{DB: db, Notifier: notifier, Logger: log, Now: time.Now}
}

// ---------------- LIFECYCLE ----------------

// Open creates an unconfirmed session for the cashier. Only one open session
// per cashier may exist; the unique index catches concurrent opens.
func (s *CashService) Open(ctx context.Context, cashierID string, openingAmount float64, openedBy string) (*models.CashSession, error) {
	if cashierID == "" {
		return nil, apperr.Validation("cashier id is required")
	}
	if openingAmount < 0 {
		return nil, apperr.Validation("opening amount must not be negative")
	}

	existing, err := s.DB.FindOpenByCashier(ctx, cashierID)
	if err != nil {
		return nil, apperr.Internal(err, "failed to check open session")
	}
	if existing != nil {
		return nil, apperr.Conflict("cashier %s already has an open cash session", cashierID)
	}

	session := &models.CashSession{
		ID:            uuid.New().String(),
		CashierID:     cashierID,
		OpenedBy:      openedBy,
		OpeningAmount: openingAmount,
		Status:        models.SessionOpenUnconfirmed,
		OpenedAt:      s.Now().UTC(),
		Movements:     []models.Movement{},
	}
	if err := s.DB.CreateSession(ctx, session); err != nil {
		if database.IsUniqueViolation(err) {
			return nil, apperr.Conflict("cashier %s already has an open cash session", cashierID)
		}
		return nil, apperr.Internal(err, "failed to open cash session")
	}

	s.Logger.LogCash("OPEN", session.ID, fmt.Sprintf("cashier=%s amount=%.2f by=%s", cashierID, openingAmount, openedBy))
	s.notify(ctx, session)
	return session, nil
}

// Confirm moves the session from unconfirmed to confirmed. Only the owning
// cashier (or an admin) may confirm.
func (s *CashService) Confirm(ctx context.Context, sessionID string, actor models.Actor) (*models.CashSession, error) {
	ok, err := s.DB.ConfirmSession(ctx, sessionID, ownerGuard(actor), s.Now().UTC())
	if err != nil {
		return nil, apperr.Internal(err, "failed to confirm cash session")
	}
	if !ok {
		return nil, apperr.NotFound("no unconfirmed cash session %s for this cashier", sessionID)
	}
	s.Logger.LogCash("CONFIRM", sessionID, fmt.Sprintf("confirmed by %s", actor.ID))
	return s.reload(ctx, sessionID)
}

// RecordMovement appends a manual movement. The session must be confirmed.
func (s *CashService) RecordMovement(ctx context.Context, sessionID string, in MovementInput, actor models.Actor) (*models.CashSession, error) {
	if !in.Type.Valid() {
		return nil, apperr.Validation("movement type must be inflow or outflow")
	}
	if in.Amount <= 0 {
		return nil, apperr.Validation("movement amount must be positive")
	}

	mv := s.newMovement(sessionID, in.Type, in.Amount, in.Description, nil)
	ok, err := s.DB.AppendMovement(ctx, mv, ownerGuard(actor), []models.SessionStatus{models.SessionOpenConfirmed})
	if err != nil {
		return nil, apperr.Internal(err, "failed to record movement")
	}
	if !ok {
		return nil, apperr.NotFound("no confirmed cash session %s for this cashier", sessionID)
	}
	s.Logger.LogCash("MOVEMENT", sessionID, fmt.Sprintf("%s %.2f %q", in.Type, in.Amount, in.Description))
	return s.reload(ctx, sessionID)
}

// AppendSettlement records a payment inflow linked to an order. Payment does not
// require confirmation, so any open session qualifies.
func (s *CashService) AppendSettlement(ctx context.Context, sessionID, orderID string, amount float64) (*models.Movement, error) {
	mv := s.newMovement(sessionID, models.MovementInflow, amount, fmt.Sprintf("Payment for order %s", orderID), &orderID)
	ok, err := s.DB.AppendMovement(ctx, mv, "", models.OpenSessionStatuses)
	if err != nil {
		return nil, apperr.Internal(err, "failed to record payment movement")
	}
	if !ok {
		return nil, apperr.Precondition("cash session %s is not open", sessionID)
	}
	s.Logger.LogCash("SETTLE", sessionID, fmt.Sprintf("order=%s amount=%.2f", orderID, amount))
	if session, err := s.DB.GetSession(ctx, sessionID); err == nil && session != nil {
		s.notify(ctx, session)
	}
	return mv, nil
}

// Close stores the counted amount and its difference from the running total.
// A nonzero difference is informational and never blocks closing.
func (s *CashService) Close(ctx context.Context, sessionID string, counted float64, actor models.Actor) (*models.CashSession, error) {
	if counted < 0 {
		return nil, apperr.Validation("counted amount must not be negative")
	}
	ok, err := s.DB.CloseSession(ctx, sessionID, ownerGuard(actor), counted, s.Now().UTC())
	if err != nil {
		return nil, apperr.Internal(err, "failed to close cash session")
	}
	if !ok {
		return nil, apperr.NotFound("no open cash session %s for this cashier", sessionID)
	}
	session, err := s.reload(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if session.Difference != nil && *session.Difference != 0 {
		s.Logger.Warn("CASH", fmt.Sprintf("Session %s closed with difference %.2f", sessionID, *session.Difference))
	}
	s.Logger.LogCash("CLOSE", sessionID, fmt.Sprintf("counted=%.2f", counted))
	return session, nil
}

// ---------------- QUERIES ----------------

// CurrentOpen returns the cashier's open session or nil when there is none.
func (s *CashService) CurrentOpen(ctx context.Context, cashierID string) (*models.CashSession, error) {
	session, err := s.DB.FindOpenByCashier(ctx, cashierID)
	if err != nil {
		return nil, apperr.Internal(err, "failed to load open session")
	}
	return session, nil
}

// CurrentConfirmed returns the cashier's open session, failing unless it is confirmed.
func (s *CashService) CurrentConfirmed(ctx context.Context, cashierID string) (*models.CashSession, error) {
	session, err := s.CurrentOpen(ctx, cashierID)
	if err != nil {
		return nil, err
	}
	if session == nil || session.Status != models.SessionOpenConfirmed {
		return nil, apperr.Precondition("cash session not confirmed")
	}
	return session, nil
}

func (s *CashService) Get(ctx context.Context, sessionID string) (*models.CashSession, error) {
	session, err := s.DB.GetSession(ctx, sessionID)
	if err != nil {
		return nil, apperr.Internal(err, "failed to load cash session")
	}
	if session == nil {
		return nil, apperr.NotFound("cash session %s not found", sessionID)
	}
	return session, nil
}

// SettlementFor returns the inflow recorded for an order, or nil when it was never settled.
func (s *CashService) SettlementFor(ctx context.Context, orderID string) (*models.Movement, error) {
	mv, err := s.DB.FindInflowForOrder(ctx, orderID)
	if err != nil {
		return nil, apperr.Internal(err, "failed to look up settlement")
	}
	return mv, nil
}

func (s *CashService) SettledOrderIDs(ctx context.Context) (map[string]bool, error) {
	ids, err := s.DB.OrderIDsWithInflow(ctx)
	if err != nil {
		return nil, apperr.Internal(err, "failed to list settled orders")
	}
	return ids, nil
}

// History lists sessions newest first; an empty cashier id lists all cashiers.
func (s *CashService) History(ctx context.Context, cashierID string) ([]models.CashSession, error) {
	sessions, err := s.DB.ListSessions(ctx, cashierID)
	if err != nil {
		return nil, apperr.Internal(err, "failed to load session history")
	}
	return sessions, nil
}

func (s *CashService) reload(ctx context.Context, sessionID string) (*models.CashSession, error) {
	session, err := s.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	s.notify(ctx, session)
	return session, nil
}

func (s *CashService) newMovement(sessionID string, t models.MovementType, amount float64, description string, orderID *string) *models.Movement {
	return &models.Movement{
		ID:          uuid.New().String(),
		SessionID:   sessionID,
		Type:        t,
		Amount:      amount,
		Description: description,
		OrderID:     orderID,
		CreatedAt:   s.Now().UTC(),
	}
}

func (s *CashService) notify(ctx context.Context, session *models.CashSession) {
	s.Notifier.Notify(ctx, models.NewEvent(models.EventCashUpdated, session.ID, session, models.ChannelCash))
}

// ownerGuard restricts a write to the actor's own session unless the actor is an admin.
func ownerGuard(actor models.Actor) string {
	if actor.IsAdmin() {
		return ""
	}
	return actor.ID
}
