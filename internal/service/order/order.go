package order

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"gorm.io/gorm"

	"github.com/ndmitriev/estore/internal/models"
	"github.com/ndmitriev/estore/internal/notify"
	"github.com/ndmitriev/estore/internal/repo"
)

var (
	ErrValidation = errors.New("validation") // 400
	ErrNotFound   = errors.New("not found")  // 404
)

// EventSink is the best-effort stream boundary: implementations must
// never return an error to the pipeline.
type EventSink interface {
	PublishOrderEvent(ctx context.Context, eventType string, order *models.Order)
}

// Notifier fans a status update out to live observers of one order.
type Notifier interface {
	Publish(orderID uint, u notify.Update)
}

const emitQueueSize = 256

// Service orchestrates the order lifecycle: durable state first, then
// the analytics event and the live notification. Steps two and three
// run only after the store has committed and can never fail the call.
type Service struct {
	Repo *repo.GormRepo
	Sink EventSink
	Hub  Notifier

	emitOnce sync.Once
	emitCh   chan emission
}

type emission struct {
	ctx       context.Context
	eventType string
	order     *models.Order
}

func (s *Service) Checkout(ctx context.Context, userID uint, lines []repo.CheckoutLine) (*models.Order, error) {
	if len(lines) == 0 {
		return nil, fmt.Errorf("%w: cart is empty", ErrValidation)
	}
	for i := range lines {
		if lines[i].Quantity == 0 {
			return nil, fmt.Errorf("%w: quantity must be > 0", ErrValidation)
		}
	}

	order, err := s.Repo.CreateOrder(ctx, userID, lines)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: %v", ErrValidation, err)
		}
		return nil, err
	}

	s.dispatch(ctx, "order_placed", order)
	return order, nil
}

func (s *Service) SetStatus(ctx context.Context, orderID uint, status string) (*models.Order, error) {
	if status == "" {
		return nil, fmt.Errorf("%w: status required", ErrValidation)
	}

	order, err := s.Repo.SetStatus(ctx, orderID, status)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: order %d", ErrNotFound, orderID)
		}
		return nil, err
	}

	s.dispatch(ctx, "order_status_changed", order)
	return order, nil
}

func (s *Service) GetOrder(ctx context.Context, orderID uint) (*models.Order, error) {
	order, err := s.Repo.GetOrder(ctx, orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: order %d", ErrNotFound, orderID)
		}
		return nil, err
	}
	return order, nil
}

func (s *Service) ListOrders(ctx context.Context, offset, limit int) ([]models.Order, error) {
	return s.Repo.ListOrders(ctx, offset, limit)
}

// dispatch runs after the state is durable. Sink emissions are moved
// off the request goroutine, detached from request cancellation, and
// funneled through a single emitter so events for one order reach the
// writer in the order their transitions committed. The hub fan-out is
// synchronous but built on non-blocking sends.
func (s *Service) dispatch(ctx context.Context, eventType string, order *models.Order) {
	s.emitOnce.Do(func() {
		s.emitCh = make(chan emission, emitQueueSize)
		go s.emitLoop()
	})

	select {
	case s.emitCh <- emission{ctx: context.WithoutCancel(ctx), eventType: eventType, order: order}:
	default:
		// The sink is best-effort: with the queue backed up behind a
		// stalled broker the record is dropped, not the request.
	}

	s.Hub.Publish(order.ID, notify.Update{OrderID: order.ID, Status: order.Status})
}

func (s *Service) emitLoop() {
	for e := range s.emitCh {
		s.Sink.PublishOrderEvent(e.ctx, e.eventType, e.order)
	}
}
