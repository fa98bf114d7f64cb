package ledger

import (
	"context"
	"errors"
	"log/slog"
	"math"

	"github.com/mcoot/pokersession/internal/dependencies/clock"
	"github.com/mcoot/pokersession/internal/dependencies/idgen"
	"github.com/mcoot/pokersession/internal/events"
	"github.com/mcoot/pokersession/internal/model"
	"github.com/mcoot/pokersession/internal/storage"
)

// Service records money movements against a session's append-only ledger
type Service struct {
	storage   storage.Storage
	clock     clock.Clock
	ids       idgen.Generator
	publisher events.Publisher
	logger    *slog.Logger
}

// New creates a new ledger Service
func New(
	storage storage.Storage,
	clock clock.Clock,
	ids idgen.Generator,
	publisher events.Publisher,
	logger *slog.Logger,
) *Service {
	return &Service{
		storage:   storage,
		clock:     clock,
		ids:       ids,
		publisher: publisher,
		logger:    logger,
	}
}

// RecordBuyin appends a buy-in for the player
func (s *Service) RecordBuyin(ctx context.Context, sessionID model.SessionID, playerID model.PlayerID, amount float64) (*model.Transaction, error) {
	return s.Record(ctx, sessionID, playerID, model.TransactionBuyin, amount)
}

// RecordCashout appends a cash-out for the player
func (s *Service) RecordCashout(ctx context.Context, sessionID model.SessionID, playerID model.PlayerID, amount float64) (*model.Transaction, error) {
	return s.Record(ctx, sessionID, playerID, model.TransactionCashout, amount)
}

// Record appends a transaction. The store refuses it atomically if the session is
// finalized or the player is not seated.
func (s *Service) Record(ctx context.Context, sessionID model.SessionID, playerID model.PlayerID, kind model.TransactionType, amount float64) (*model.Transaction, error) {
	if !kind.Valid() {
		return nil, model.ErrInvalidTransactionType
	}
	if math.IsNaN(amount) || math.IsInf(amount, 0) || amount < 0 {
		return nil, model.ErrInvalidAmount
	}

	txn := &model.Transaction{
		ID:        model.TransactionID(s.ids.NewID()),
		SessionID: sessionID,
		PlayerID:  playerID,
		Type:      kind,
		Amount:    amount,
		CreatedAt: s.clock.Now(),
	}

	if err := s.storage.AppendTransaction(ctx, txn); err != nil {
		if isRefusal(err) {
			return nil, err
		}
		s.logger.Error("failed to append transaction",
			slog.String("session_id", string(sessionID)),
			slog.String("player_id", string(playerID)),
			slog.String("error", err.Error()),
		)
		return nil, err
	}

	s.logger.Info("transaction recorded",
		slog.String("session_id", string(sessionID)),
		slog.String("player_id", string(playerID)),
		slog.String("type", string(kind)),
		slog.Float64("amount", amount),
	)

	s.publish(ctx, model.Event{
		Type:      model.EventTransactionRecorded,
		Timestamp: txn.CreatedAt,
		SessionID: sessionID,
		Payload: model.TransactionPayload{
			TransactionID: txn.ID,
			PlayerID:      playerID,
			Type:          kind,
			Amount:        amount,
		},
	})

	return txn, nil
}

// ListTransactions returns the session's ledger ordered by creation time
func (s *Service) ListTransactions(ctx context.Context, sessionID model.SessionID) ([]model.Transaction, error) {
	if _, err := s.storage.GetSession(ctx, sessionID); err != nil {
		return nil, err
	}
	return s.storage.ListTransactions(ctx, sessionID)
}

func (s *Service) publish(ctx context.Context, event model.Event) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(ctx, event); err != nil {
		s.logger.Warn("failed to publish event",
			slog.String("type", string(event.Type)),
			slog.String("error", err.Error()),
		)
	}
}

// isRefusal reports whether the store rejected the write on a ledger rule rather than failing
func isRefusal(err error) bool {
	return errors.Is(err, model.ErrSessionNotFound) ||
		errors.Is(err, model.ErrSessionFinalized) ||
		errors.Is(err, model.ErrPlayerNotFound)
}
