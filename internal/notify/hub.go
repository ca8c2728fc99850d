package notify

import (
	"sync"
)

const subscriberBuffer = 16

// Update is the payload delivered to order observers.
type Update struct {
	OrderID uint   `json:"order_id"`
	Status  string `json:"status"`
}

// Subscriber is one live observer of a single order.
type Subscriber struct {
	ch   chan Update
	once sync.Once
}

// C is the stream of updates for the subscribed order. It is closed on
// unsubscribe.
func (s *Subscriber) C() <-chan Update {
	return s.ch
}

func (s *Subscriber) close() {
	s.once.Do(func() { close(s.ch) })
}

// Hub fans order status updates out to every observer currently
// subscribed to that order. Delivery is at-most-once per connected
// observer: there is no replay, late joiners re-fetch current state
// from the order store instead.
type Hub struct {
	mu    sync.RWMutex
	rooms map[uint]map[*Subscriber]struct{}
}

func NewHub() *Hub {
	return &Hub{rooms: make(map[uint]map[*Subscriber]struct{})}
}

func (h *Hub) Subscribe(orderID uint) *Subscriber {
	sub := &Subscriber{ch: make(chan Update, subscriberBuffer)}

	h.mu.Lock()
	defer h.mu.Unlock()

	room, ok := h.rooms[orderID]
	if !ok {
		room = make(map[*Subscriber]struct{})
		h.rooms[orderID] = room
	}
	room[sub] = struct{}{}
	return sub
}

func (h *Hub) Unsubscribe(orderID uint, sub *Subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()

	room, ok := h.rooms[orderID]
	if !ok {
		return
	}
	if _, ok := room[sub]; !ok {
		return
	}
	delete(room, sub)
	if len(room) == 0 {
		delete(h.rooms, orderID)
	}
	sub.close()
}

// Publish delivers u to every subscriber of orderID registered at this
// moment. Sends never block: a subscriber whose buffer is full simply
// misses the update, which is fine because the order store stays the
// source of truth. Publishes to different orders only contend on the
// read lock.
func (h *Hub) Publish(orderID uint, u Update) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for sub := range h.rooms[orderID] {
		select {
		case sub.ch <- u:
		default:
		}
	}
}

// Subscribers reports the current number of observers of an order.
func (h *Hub) Subscribers(orderID uint) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[orderID])
}
