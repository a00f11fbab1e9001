package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/iliyamo/calculations-api/internal/calc"
	"github.com/iliyamo/calculations-api/internal/logger"
	"github.com/iliyamo/calculations-api/internal/model"
	"github.com/iliyamo/calculations-api/internal/queue"
	"github.com/iliyamo/calculations-api/internal/repository"
)

// CalculationStore is the ownership-scoped persistence the service needs.
type CalculationStore interface {
	Create(ctx context.Context, c *model.Calculation) error
	ListByOwner(ctx context.Context, ownerID string) ([]model.Calculation, error)
	GetByIDAndOwner(ctx context.Context, id, ownerID string) (model.Calculation, error)
	Update(ctx context.Context, id, ownerID string, mutate func(*model.Calculation) error) (model.Calculation, error)
	DeleteByIDAndOwner(ctx context.Context, id, ownerID string) error
}

// EventPublisher delivers calculation events.  Failures never fail the
// request that produced the event.
type EventPublisher interface {
	Publish(ctx context.Context, ev queue.CalculationEvent) error
}

// CalculationService implements BREAD for calculations.  Every method takes
// the caller's user id and never touches another user's records.
type CalculationService struct {
	store  CalculationStore
	events EventPublisher
	now    func() time.Time
}

// NewCalculationService builds the service.  events may be nil.
func NewCalculationService(store CalculationStore, events EventPublisher) *CalculationService {
	return &CalculationService{store: store, events: events, now: time.Now}
}

// Create evaluates inputs with the operation typ and stores the result.
func (s *CalculationService) Create(ctx context.Context, ownerID, typ string, inputs []float64) (model.Calculation, error) {
	t, err := calc.ParseType(typ)
	if err != nil {
		return model.Calculation{}, calcError(err)
	}
	result, err := calc.Compute(t, inputs)
	if err != nil {
		return model.Calculation{}, calcError(err)
	}

	now := s.timestamp()
	c := model.Calculation{
		ID:        uuid.NewString(),
		UserID:    ownerID,
		Type:      string(t),
		Inputs:    append([]float64(nil), inputs...),
		Result:    result,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.store.Create(ctx, &c); err != nil {
		return model.Calculation{}, fmt.Errorf("create calculation: %w", err)
	}
	s.publish(ctx, queue.ActionCreated, c)
	return c, nil
}

// List returns the caller's calculations, oldest first.
func (s *CalculationService) List(ctx context.Context, ownerID string) ([]model.Calculation, error) {
	out, err := s.store.ListByOwner(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list calculations: %w", err)
	}
	return out, nil
}

// Get returns one calculation or ErrNotFound.
func (s *CalculationService) Get(ctx context.Context, id, ownerID string) (model.Calculation, error) {
	c, err := s.store.GetByIDAndOwner(ctx, id, ownerID)
	if err != nil {
		return model.Calculation{}, notFound(err)
	}
	return c, nil
}

// Update replaces the inputs when inputs is non-nil and recomputes the
// result.  updated_at moves forward on every accepted call, even when
// nothing else changes.
func (s *CalculationService) Update(ctx context.Context, id, ownerID string, inputs *[]float64) (model.Calculation, error) {
	c, err := s.store.Update(ctx, id, ownerID, func(c *model.Calculation) error {
		if inputs != nil {
			result, err := calc.Compute(calc.Type(c.Type), *inputs)
			if err != nil {
				return calcError(err)
			}
			c.Inputs = append([]float64(nil), (*inputs)...)
			c.Result = result
		}
		now := s.timestamp()
		if !now.After(c.UpdatedAt) {
			now = c.UpdatedAt.Add(time.Microsecond)
		}
		c.UpdatedAt = now
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrValidation) {
			return model.Calculation{}, err
		}
		return model.Calculation{}, notFound(err)
	}
	s.publish(ctx, queue.ActionUpdated, c)
	return c, nil
}

// Delete removes the calculation.  A second delete returns ErrNotFound.
func (s *CalculationService) Delete(ctx context.Context, id, ownerID string) error {
	c, err := s.store.GetByIDAndOwner(ctx, id, ownerID)
	if err != nil {
		return notFound(err)
	}
	if err := s.store.DeleteByIDAndOwner(ctx, id, ownerID); err != nil {
		return notFound(err)
	}
	s.publish(ctx, queue.ActionDeleted, c)
	return nil
}

// timestamp is now at the column precision, DATETIME(6).
func (s *CalculationService) timestamp() time.Time {
	return s.now().UTC().Truncate(time.Microsecond)
}

func (s *CalculationService) publish(ctx context.Context, action queue.Action, c model.Calculation) {
	if s.events == nil {
		return
	}
	ev := queue.NewCalculationEvent(action, c, s.now())
	if err := s.events.Publish(ctx, ev); err != nil {
		logger.FromContext(ctx).Warn().Err(err).
			Str("calculation_id", c.ID).
			Str("action", string(action)).
			Msg("publish calculation event failed")
	}
}

func notFound(err error) error {
	if errors.Is(err, repository.ErrCalculationNotFound) {
		return ErrNotFound
	}
	return err
}

func calcError(err error) error {
	if errors.Is(err, calc.ErrUnknownType) {
		return invalid("type", "must be one of addition, subtraction, multiplication, division")
	}
	return invalid("inputs", err.Error())
}
