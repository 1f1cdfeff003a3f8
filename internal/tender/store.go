package tender

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	redis "github.com/redis/go-redis/v9"
)

// ErrSessionNotFound is returned when no session exists for the cart.
var ErrSessionNotFound = errors.New("tender session not found")

// Store keeps tender sessions in Redis, one per cart, expiring after TTL so
// abandoned registers clean themselves up.
type Store struct {
	R   *redis.Client
	TTL time.Duration
}

func (s Store) key(cartID string) string {
	return "tender:" + cartID
}

func (s Store) ttl() time.Duration {
	if s.TTL <= 0 {
		return 30 * time.Minute
	}
	return s.TTL
}

// Get loads the session for the cart.
func (s Store) Get(ctx context.Context, cartID string) (*Session, error) {
	if s.R == nil {
		return nil, errors.New("tender store not configured")
	}
	data, err := s.R.Get(ctx, s.key(cartID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrSessionNotFound
		}
		return nil, err
	}
	var sess Session
	if err := json.Unmarshal(data, &sess); err != nil {
		return nil, err
	}
	return &sess, nil
}

// Save writes the session back, refreshing its TTL.
func (s Store) Save(ctx context.Context, sess *Session) error {
	if s.R == nil {
		return errors.New("tender store not configured")
	}
	data, err := json.Marshal(sess)
	if err != nil {
		return err
	}
	return s.R.Set(ctx, s.key(sess.CartID), data, s.ttl()).Err()
}

// Delete drops the session, typically after settlement.
func (s Store) Delete(ctx context.Context, cartID string) error {
	if s.R == nil {
		return nil
	}
	return s.R.Del(ctx, s.key(cartID)).Err()
}
