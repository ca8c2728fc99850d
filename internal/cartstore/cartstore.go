package cartstore

import (
	"context"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"
)

// Store keeps per-user carts as Redis hashes (product id -> quantity).
// The cart is session-scoped working state, not part of the durable
// order ledger: it exists to feed checkout and is cleared afterwards.
type Store struct {
	client *redis.Client
}

func New(addr string) *Store {
	return &Store{client: redis.NewClient(&redis.Options{Addr: addr})}
}

func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *Store) Add(ctx context.Context, userID, productID, quantity uint) error {
	return s.client.HIncrBy(ctx, key(userID), field(productID), int64(quantity)).Err()
}

func (s *Store) Remove(ctx context.Context, userID, productID uint) error {
	return s.client.HDel(ctx, key(userID), field(productID)).Err()
}

func (s *Store) Get(ctx context.Context, userID uint) (map[uint]uint, error) {
	raw, err := s.client.HGetAll(ctx, key(userID)).Result()
	if err != nil {
		return nil, err
	}

	cart := make(map[uint]uint, len(raw))
	for pid, qty := range raw {
		p, err := strconv.ParseUint(pid, 10, 64)
		if err != nil {
			continue
		}
		q, err := strconv.ParseUint(qty, 10, 64)
		if err != nil || q == 0 {
			continue
		}
		cart[uint(p)] = uint(q)
	}
	return cart, nil
}

func (s *Store) Clear(ctx context.Context, userID uint) error {
	return s.client.Del(ctx, key(userID)).Err()
}

func (s *Store) Close() error {
	return s.client.Close()
}

func key(userID uint) string {
	return fmt.Sprintf("cart:%d", userID)
}

func field(productID uint) string {
	return strconv.FormatUint(uint64(productID), 10)
}
