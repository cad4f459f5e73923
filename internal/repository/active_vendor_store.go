package repository

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

const activeVendorKey = "desk:active_vendor"

// ActiveVendorTTL bounds how long a vendor stays "online" for the storefront widget
// without refreshing.
const ActiveVendorTTL = 12 * time.Hour

// ErrNoActiveVendor is returned when no vendor has announced itself.
var ErrNoActiveVendor = errors.New("no active vendor")

// ActiveVendorStore remembers which vendor the storefront widget should route to.
type ActiveVendorStore interface {
	Set(ctx context.Context, vendorUID string) error
	Get(ctx context.Context) (string, error)
}

type redisActiveVendorStore struct {
	client *redis.Client
}

// NewActiveVendorStore returns a Redis-backed store.
func NewActiveVendorStore(client *redis.Client) ActiveVendorStore {
	return &redisActiveVendorStore{client: client}
}

func (s *redisActiveVendorStore) Set(ctx context.Context, vendorUID string) error {
	return s.client.Set(ctx, activeVendorKey, vendorUID, ActiveVendorTTL).Err()
}

func (s *redisActiveVendorStore) Get(ctx context.Context) (string, error) {
	uid, err := s.client.Get(ctx, activeVendorKey).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrNoActiveVendor
	}
	return uid, err
}
