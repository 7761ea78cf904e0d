package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"waypool/internal/models"

	"github.com/redis/go-redis/v9"
)

// ErrCacheMiss is returned when a key is absent.
var ErrCacheMiss = errors.New("cache miss")

// Service is a JSON-over-Redis cache for wallet reads. Writers must
// invalidate after every balance mutation; the database stays the source of
// truth.
type Service struct {
	client *redis.Client
	ttl    time.Duration
}

func NewService(client *redis.Client, defaultTTL time.Duration) *Service {
	return &Service{
		client: client,
		ttl:    defaultTTL,
	}
}

func (s *Service) Set(ctx context.Context, key string, value interface{}) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal cache value: %w", err)
	}
	return s.client.Set(ctx, key, data, s.ttl).Err()
}

func (s *Service) Get(ctx context.Context, key string, dest interface{}) error {
	data, err := s.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return ErrCacheMiss
		}
		return fmt.Errorf("failed to get cache value: %w", err)
	}
	if err := json.Unmarshal(data, dest); err != nil {
		return fmt.Errorf("failed to unmarshal cache value: %w", err)
	}
	return nil
}

func (s *Service) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	return s.client.Del(ctx, keys...).Err()
}

func walletKey(userID uint) string {
	return fmt.Sprintf("wallet:user:%d", userID)
}

func tripWalletKey(tripID uint) string {
	return fmt.Sprintf("wallet:trip:%d", tripID)
}

// CacheWallet stores a personal wallet snapshot.
func (s *Service) CacheWallet(ctx context.Context, wallet *models.Wallet) error {
	if wallet == nil {
		return errors.New("cannot cache nil wallet")
	}
	return s.Set(ctx, walletKey(wallet.UserID), wallet)
}

// GetWallet fetches a cached personal wallet, ErrCacheMiss if absent.
func (s *Service) GetWallet(ctx context.Context, userID uint) (*models.Wallet, error) {
	var wallet models.Wallet
	if err := s.Get(ctx, walletKey(userID), &wallet); err != nil {
		return nil, err
	}
	return &wallet, nil
}

// InvalidateWallet drops a personal wallet snapshot.
func (s *Service) InvalidateWallet(ctx context.Context, userID uint) error {
	return s.Delete(ctx, walletKey(userID))
}

// CacheTripWallet stores a pooled-wallet snapshot.
func (s *Service) CacheTripWallet(ctx context.Context, wallet *models.TripWallet) error {
	if wallet == nil {
		return errors.New("cannot cache nil trip wallet")
	}
	return s.Set(ctx, tripWalletKey(wallet.TripID), wallet)
}

// GetTripWallet fetches a cached pooled wallet, ErrCacheMiss if absent.
func (s *Service) GetTripWallet(ctx context.Context, tripID uint) (*models.TripWallet, error) {
	var wallet models.TripWallet
	if err := s.Get(ctx, tripWalletKey(tripID), &wallet); err != nil {
		return nil, err
	}
	return &wallet, nil
}

// InvalidateTripWallet drops a pooled-wallet snapshot.
func (s *Service) InvalidateTripWallet(ctx context.Context, tripID uint) error {
	return s.Delete(ctx, tripWalletKey(tripID))
}

// FlushAll clears the cache, used at startup.
func (s *Service) FlushAll(ctx context.Context) error {
	return s.client.FlushAll(ctx).Err()
}

// Close closes the Redis client connection.
func (s *Service) Close() error {
	return s.client.Close()
}
