package order

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/ndmitriev/estore/internal/models"
	"github.com/ndmitriev/estore/internal/notify"
	"github.com/ndmitriev/estore/internal/repo"
)

type sinkEvent struct {
	EventType string
	OrderID   uint
	Status    string
}

type fakeSink struct {
	mu         sync.Mutex
	events     []sinkEvent
	block      chan struct{} // non-nil: PublishOrderEvent hangs until closed
	stallFirst chan struct{} // non-nil: only the first emission hangs until closed
}

func (f *fakeSink) PublishOrderEvent(ctx context.Context, eventType string, order *models.Order) {
	if f.block != nil {
		<-f.block
	}
	f.mu.Lock()
	first := len(f.events) == 0
	f.mu.Unlock()
	if first && f.stallFirst != nil {
		<-f.stallFirst
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, sinkEvent{EventType: eventType, OrderID: order.ID, Status: order.Status})
}

func (f *fakeSink) snapshot() []sinkEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]sinkEvent(nil), f.events...)
}

func newTestService(t *testing.T) (*Service, *gorm.DB, *fakeSink, *notify.Hub) {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.Product{}, &models.Order{}, &models.OrderItem{}))

	sink := &fakeSink{}
	hub := notify.NewHub()
	svc := &Service{
		Repo: &repo.GormRepo{DB: db},
		Sink: sink,
		Hub:  hub,
	}
	return svc, db, sink, hub
}

func seedProduct(t *testing.T, db *gorm.DB, id uint, name, price string) {
	t.Helper()
	require.NoError(t, db.Create(&models.Product{
		ID:    id,
		Name:  name,
		Price: decimal.RequireFromString(price),
	}).Error)
}

func waitForEvents(t *testing.T, sink *fakeSink, n int) []sinkEvent {
	t.Helper()
	require.Eventually(t, func() bool {
		return len(sink.snapshot()) >= n
	}, time.Second, 5*time.Millisecond)
	return sink.snapshot()
}

func TestCheckout_CreatesPlacedOrderAndEmits(t *testing.T) {
	svc, db, sink, _ := newTestService(t)
	seedProduct(t, db, 7, "Wireless Mouse", "10.00")
	seedProduct(t, db, 9, "USB-C Charger", "5.00")

	order, err := svc.Checkout(context.Background(), 1, []repo.CheckoutLine{
		{ProductID: 7, Quantity: 2},
		{ProductID: 9, Quantity: 1},
	})
	require.NoError(t, err)

	assert.Equal(t, models.OrderStatusPlaced, order.Status)
	assert.True(t, order.TotalAmount.Equal(decimal.RequireFromString("25.00")))

	events := waitForEvents(t, sink, 1)
	assert.Equal(t, "order_placed", events[0].EventType)
	assert.Equal(t, order.ID, events[0].OrderID)
}

func TestCheckout_EmptyCart(t *testing.T) {
	svc, db, sink, _ := newTestService(t)

	_, err := svc.Checkout(context.Background(), 1, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrValidation)

	var count int64
	require.NoError(t, db.Model(&models.Order{}).Count(&count).Error)
	assert.Zero(t, count)
	assert.Empty(t, sink.snapshot())
}

func TestCheckout_UnknownProduct(t *testing.T) {
	svc, db, sink, _ := newTestService(t)
	seedProduct(t, db, 1, "Keyboard", "89.99")

	_, err := svc.Checkout(context.Background(), 1, []repo.CheckoutLine{
		{ProductID: 1, Quantity: 1},
		{ProductID: 404, Quantity: 2},
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrValidation)

	var count int64
	require.NoError(t, db.Model(&models.Order{}).Count(&count).Error)
	assert.Zero(t, count)
	assert.Empty(t, sink.snapshot())
}

func TestCheckout_ZeroQuantity(t *testing.T) {
	svc, db, _, _ := newTestService(t)
	seedProduct(t, db, 1, "Keyboard", "89.99")

	_, err := svc.Checkout(context.Background(), 1, []repo.CheckoutLine{{ProductID: 1, Quantity: 0}})
	assert.ErrorIs(t, err, ErrValidation)
}

func TestCheckout_StalledSinkDoesNotBlock(t *testing.T) {
	svc, db, sink, _ := newTestService(t)
	seedProduct(t, db, 1, "Keyboard", "89.99")

	sink.block = make(chan struct{})
	defer close(sink.block)

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, err := svc.Checkout(context.Background(), 1, []repo.CheckoutLine{{ProductID: 1, Quantity: 1}})
		assert.NoError(t, err)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("checkout blocked on a stalled event sink")
	}
}

func TestOrderEventsKeepTransitionOrder(t *testing.T) {
	svc, db, sink, _ := newTestService(t)
	seedProduct(t, db, 1, "Keyboard", "89.99")

	// The placement emission hangs on a slow broker round trip while
	// the strictly later status change is submitted.
	sink.stallFirst = make(chan struct{})

	order, err := svc.Checkout(context.Background(), 1, []repo.CheckoutLine{{ProductID: 1, Quantity: 1}})
	require.NoError(t, err)

	_, err = svc.SetStatus(context.Background(), order.ID, "SHIPPED")
	require.NoError(t, err)

	close(sink.stallFirst)

	events := waitForEvents(t, sink, 2)
	assert.Equal(t, "order_placed", events[0].EventType)
	assert.Equal(t, "order_status_changed", events[1].EventType)
}

func TestSetStatus_NotifiesSubscribersAndEmits(t *testing.T) {
	svc, db, sink, hub := newTestService(t)
	seedProduct(t, db, 1, "Keyboard", "89.99")

	order, err := svc.Checkout(context.Background(), 1, []repo.CheckoutLine{{ProductID: 1, Quantity: 1}})
	require.NoError(t, err)
	waitForEvents(t, sink, 1)

	sub := hub.Subscribe(order.ID)
	other := hub.Subscribe(order.ID + 1)

	updated, err := svc.SetStatus(context.Background(), order.ID, "SHIPPED")
	require.NoError(t, err)
	assert.Equal(t, "SHIPPED", updated.Status)

	select {
	case u := <-sub.C():
		assert.Equal(t, order.ID, u.OrderID)
		assert.Equal(t, "SHIPPED", u.Status)
	case <-time.After(time.Second):
		t.Fatal("subscriber not notified")
	}

	select {
	case u := <-other.C():
		t.Fatalf("unrelated subscriber received %+v", u)
	case <-time.After(50 * time.Millisecond):
	}

	events := waitForEvents(t, sink, 2)
	assert.Equal(t, "order_status_changed", events[1].EventType)
	assert.Equal(t, order.ID, events[1].OrderID)
	assert.Equal(t, "SHIPPED", events[1].Status)
}

func TestSetStatus_UnknownOrder(t *testing.T) {
	svc, _, sink, _ := newTestService(t)

	_, err := svc.SetStatus(context.Background(), 12345, "SHIPPED")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Empty(t, sink.snapshot())
}

func TestSetStatus_EmptyStatus(t *testing.T) {
	svc, _, _, _ := newTestService(t)

	_, err := svc.SetStatus(context.Background(), 1, "")
	assert.ErrorIs(t, err, ErrValidation)
}

func TestGetOrder_UnknownOrder(t *testing.T) {
	svc, _, _, _ := newTestService(t)

	_, err := svc.GetOrder(context.Background(), 777)
	assert.ErrorIs(t, err, ErrNotFound)
}
