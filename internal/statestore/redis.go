package statestore

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/rueidis"
)

const handshakePrefix = "oauth_handshake:"

// RedisStore keeps handshakes in Redis so callbacks can land on any instance.
type RedisStore struct {
	client rueidis.Client
}

// NewRedisStore creates a RedisStore with the provided rueidis client.
func NewRedisStore(client rueidis.Client) *RedisStore {
	return &RedisStore{client: client}
}

// RedisOptions contains configuration for Redis connection.
type RedisOptions struct {
	Addr     string
	Password string
	DB       int
}

// NewRedisStoreFromOptions creates a RedisStore with simplified options.
func NewRedisStoreFromOptions(opts RedisOptions) (*RedisStore, error) {
	client, err := rueidis.NewClient(rueidis.ClientOption{
		InitAddress: []string{opts.Addr},
		Password:    opts.Password,
		SelectDB:    opts.DB,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create redis client: %w", err)
	}
	return NewRedisStore(client), nil
}

func (r *RedisStore) Put(ctx context.Context, h *Handshake, ttl time.Duration) error {
	if err := validate(h); err != nil {
		return err
	}
	seconds := int64(ttl / time.Second)
	if seconds <= 0 {
		return fmt.Errorf("handshake ttl must be at least one second, got %s", ttl)
	}
	data, err := json.Marshal(h)
	if err != nil {
		return fmt.Errorf("failed to marshal handshake: %w", err)
	}
	cmd := r.client.B().Set().Key(handshakePrefix + h.Key).Value(string(data)).Nx().ExSeconds(seconds).Build()
	if err := r.client.Do(ctx, cmd).Error(); err != nil {
		if rueidis.IsRedisNil(err) {
			return fmt.Errorf("handshake key already in use")
		}
		return fmt.Errorf("failed to save handshake to redis: %w", err)
	}
	return nil
}

// Take uses GETDEL so two concurrent callbacks cannot both consume the state.
func (r *RedisStore) Take(ctx context.Context, key string) (*Handshake, error) {
	if key == "" {
		return nil, ErrEmptyKey
	}
	cmd := r.client.B().Getdel().Key(handshakePrefix + key).Build()
	result, err := r.client.Do(ctx, cmd).ToString()
	if err != nil {
		if rueidis.IsRedisNil(err) {
			return nil, ErrStateNotFound
		}
		return nil, fmt.Errorf("failed to take handshake from redis: %w", err)
	}
	var h Handshake
	if err := json.Unmarshal([]byte(result), &h); err != nil {
		return nil, fmt.Errorf("failed to unmarshal handshake: %w", err)
	}
	return &h, nil
}

func (r *RedisStore) Delete(ctx context.Context, key string) error {
	cmd := r.client.B().Del().Key(handshakePrefix + key).Build()
	if err := r.client.Do(ctx, cmd).Error(); err != nil {
		return fmt.Errorf("failed to delete handshake from redis: %w", err)
	}
	return nil
}

// Ping checks connectivity.
func (r *RedisStore) Ping(ctx context.Context) error {
	return r.client.Do(ctx, r.client.B().Ping().Build()).Error()
}

func (r *RedisStore) Close() {
	r.client.Close()
}
