// Package redisstore keeps the store tree in Redis, one string key per
// path, and pushes changes to subscribers over Redis pub/sub so that every
// server process sees every write.
package redisstore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/cognicore/recettes/pkg/recettes/store"
)

const (
	scanBatch = 256

	// maxIncrementAttempts bounds the retries of an increment whose WATCH
	// was invalidated by a concurrent write.
	maxIncrementAttempts = 100
)

// Store implements store.Store on a Redis client.
type Store struct {
	client    redis.UniversalClient
	namespace string
	owned     bool
	logger    zerolog.Logger
}

// Options configures Dial.
type Options struct {
	Addr      string
	Password  string
	DB        int
	Namespace string // key prefix, default "recettes:"
}

// Dial connects to Redis and verifies the connection with PING.
func Dial(ctx context.Context, opts Options) (*Store, error) {
	client := redis.NewUniversalClient(&redis.UniversalOptions{
		Addrs:       []string{opts.Addr},
		Password:    opts.Password,
		DB:          opts.DB,
		DialTimeout: 5 * time.Second,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis %s: %w", opts.Addr, err)
	}

	s := New(client, opts.Namespace)
	s.owned = true
	return s, nil
}

// New wraps an existing client. Close leaves the client open.
func New(client redis.UniversalClient, namespace string) *Store {
	if namespace == "" {
		namespace = "recettes:"
	}
	return &Store{client: client, namespace: namespace, logger: zerolog.Nop()}
}

// WithLogger sets the logger used for malformed change messages.
func (s *Store) WithLogger(l zerolog.Logger) *Store {
	s.logger = l
	return s
}

// Close closes the client if this Store dialed it.
func (s *Store) Close() error {
	if !s.owned {
		return nil
	}
	return s.client.Close()
}

func (s *Store) key(path string) string { return s.namespace + path }

func (s *Store) channel() string { return s.namespace + "changes" }

type changeMessage struct {
	Path    string          `json:"path"`
	Value   json.RawMessage `json:"value,omitempty"`
	Deleted bool            `json:"deleted,omitempty"`
}

func (s *Store) publish(ctx context.Context, ev store.Event) {
	msg, err := json.Marshal(changeMessage{Path: ev.Path, Value: ev.Value, Deleted: ev.Deleted})
	if err != nil {
		return
	}
	if err := s.client.Publish(ctx, s.channel(), msg).Err(); err != nil {
		s.logger.Warn().Err(err).Str("path", ev.Path).Msg("publish change failed")
	}
}

// Read decodes the value at path into dst.
func (s *Store) Read(ctx context.Context, path string, dst any) (bool, error) {
	if err := store.ValidatePath(path); err != nil {
		return false, err
	}

	data, err := s.client.Get(ctx, s.key(path)).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("read %s: %w", path, err)
	}
	return true, store.Decode(data, dst)
}

// Write replaces the value at path.
func (s *Store) Write(ctx context.Context, path string, v any) error {
	if err := store.ValidatePath(path); err != nil {
		return err
	}
	data, err := store.Encode(v)
	if err != nil {
		return err
	}

	if err := s.client.Set(ctx, s.key(path), data, 0).Err(); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	s.publish(ctx, store.Event{Path: path, Value: data})
	return nil
}

// Delete removes path and its descendants.
func (s *Store) Delete(ctx context.Context, path string) error {
	if err := store.ValidatePath(path); err != nil {
		return err
	}

	keys, err := s.scan(ctx, path)
	if err != nil {
		return err
	}
	keys = append(keys, s.key(path))

	if err := s.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("delete %s: %w", path, err)
	}
	s.publish(ctx, store.Event{Path: path, Deleted: true})
	return nil
}

// List returns the direct children of prefix.
func (s *Store) List(ctx context.Context, prefix string) (map[string][]byte, error) {
	if err := store.ValidatePath(prefix); err != nil {
		return nil, err
	}

	keys, err := s.scan(ctx, prefix)
	if err != nil {
		return nil, err
	}

	out := make(map[string][]byte)
	var (
		wanted []string
		names  []string
	)
	for _, k := range keys {
		if name, ok := store.ChildName(prefix, strings.TrimPrefix(k, s.namespace)); ok {
			wanted = append(wanted, k)
			names = append(names, name)
		}
	}
	if len(wanted) == 0 {
		return out, nil
	}

	values, err := s.client.MGet(ctx, wanted...).Result()
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", prefix, err)
	}
	for i, v := range values {
		if str, ok := v.(string); ok {
			out[names[i]] = []byte(str)
		}
	}
	return out, nil
}

// scan returns every key strictly below path.
func (s *Store) scan(ctx context.Context, path string) ([]string, error) {
	pattern := escapeGlob(s.key(path)) + "/*"

	var (
		keys   []string
		cursor uint64
	)
	for {
		batch, next, err := s.client.Scan(ctx, cursor, pattern, scanBatch).Result()
		if err != nil {
			return nil, fmt.Errorf("scan %s: %w", path, err)
		}
		keys = append(keys, batch...)
		if next == 0 {
			return keys, nil
		}
		cursor = next
	}
}

// Subscribe listens on the namespace change channel and forwards events at
// path or below. It returns once Redis has confirmed the subscription.
func (s *Store) Subscribe(ctx context.Context, path string, fn func(store.Event)) (func(), error) {
	if err := store.ValidatePath(path); err != nil {
		return nil, err
	}

	ps := s.client.Subscribe(ctx, s.channel())
	if _, err := ps.Receive(ctx); err != nil {
		ps.Close()
		return nil, fmt.Errorf("subscribe %s: %w", path, err)
	}

	go func() {
		for msg := range ps.Channel() {
			var change changeMessage
			if err := json.Unmarshal([]byte(msg.Payload), &change); err != nil {
				s.logger.Warn().Err(err).Msg("malformed change message")
				continue
			}
			if !store.Covers(path, change.Path) && !(change.Deleted && store.Covers(change.Path, path)) {
				continue
			}
			fn(store.Event{Path: change.Path, Value: change.Value, Deleted: change.Deleted})
		}
	}()

	stop := context.AfterFunc(ctx, func() { ps.Close() })
	return func() {
		stop()
		ps.Close()
	}, nil
}

// IncrementFields adds deltas to the object at path with WATCH/MULTI.
// A transaction aborted by a concurrent write to the same key is retried.
func (s *Store) IncrementFields(ctx context.Context, path string, deltas map[string]int64) error {
	if err := store.ValidatePath(path); err != nil {
		return err
	}
	key := s.key(path)

	var data []byte
	increment := func(tx *redis.Tx) error {
		current, err := tx.Get(ctx, key).Bytes()
		if err != nil && !errors.Is(err, redis.Nil) {
			return err
		}
		data, err = store.AddFields(current, deltas)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, data, 0)
			return nil
		})
		return err
	}

	var err error
	for attempt := 0; attempt < maxIncrementAttempts; attempt++ {
		err = s.client.Watch(ctx, increment, key)
		if !errors.Is(err, redis.TxFailedErr) {
			break
		}
		if ctx.Err() != nil {
			break
		}
	}
	if err != nil {
		return fmt.Errorf("increment %s: %w", path, err)
	}

	s.publish(ctx, store.Event{Path: path, Value: data})
	return nil
}

func escapeGlob(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `*`, `\*`, `?`, `\?`, `[`, `\[`, `]`, `\]`)
	return r.Replace(s)
}
