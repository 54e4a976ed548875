package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/npezzotti/go-agritour/internal/observable"
	"github.com/redis/go-redis/v9"
)

const keyPrefix = "agritour:"

// RedisStore keeps each list in a redis list and announces changes over
// pub/sub, so subscribers on every instance see every append.
type RedisStore struct {
	rdb *redis.Client
	log *log.Logger
}

func NewRedisStore(ctx context.Context, redisURL string, logger *log.Logger) (*RedisStore, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	return &RedisStore{rdb: rdb, log: logger}, nil
}

func (s *RedisStore) Close() error {
	return s.rdb.Close()
}

func listKey(p string) string          { return keyPrefix + "list:" + p }
func childrenKey(parent string) string { return keyPrefix + "children:" + parent }
func changedChannel(p string) string   { return keyPrefix + "changed:" + p }

func (s *RedisStore) Append(ctx context.Context, p, key string, value []byte) error {
	parent, child, err := splitPath(p)
	if err != nil {
		return err
	}

	raw, err := json.Marshal(Entry{Key: key, Value: value})
	if err != nil {
		return fmt.Errorf("encode entry: %w", err)
	}

	full := parent + "/" + child
	_, err = s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.RPush(ctx, listKey(full), raw)
		pipe.SAdd(ctx, childrenKey(parent), child)
		pipe.Publish(ctx, changedChannel(full), key)
		pipe.Publish(ctx, changedChannel(parent), child)
		return nil
	})
	if err != nil {
		return fmt.Errorf("append %q: %w", full, err)
	}

	return nil
}

func (s *RedisStore) List(ctx context.Context, p string) ([]Entry, error) {
	parent, child, err := splitPath(p)
	if err != nil {
		return nil, err
	}

	return s.list(ctx, parent+"/"+child)
}

func (s *RedisStore) list(ctx context.Context, full string) ([]Entry, error) {
	raws, err := s.rdb.LRange(ctx, listKey(full), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("lrange %q: %w", full, err)
	}

	entries := make([]Entry, 0, len(raws))
	for _, raw := range raws {
		var e Entry
		if err := json.Unmarshal([]byte(raw), &e); err != nil {
			s.log.Printf("skipping malformed entry in %q: %v", full, err)
			continue
		}
		entries = append(entries, e)
	}

	return entries, nil
}

func (s *RedisStore) Children(ctx context.Context, parent string) (map[string][]Entry, error) {
	children, err := s.rdb.SMembers(ctx, childrenKey(parent)).Result()
	if err != nil {
		return nil, fmt.Errorf("smembers %q: %w", parent, err)
	}

	out := make(map[string][]Entry, len(children))
	for _, child := range children {
		entries, err := s.list(ctx, parent+"/"+child)
		if err != nil {
			return nil, err
		}
		out[child] = entries
	}

	return out, nil
}

func (s *RedisStore) Subscribe(ctx context.Context, p string) (<-chan []Entry, error) {
	parent, child, err := splitPath(p)
	if err != nil {
		return nil, err
	}
	full := parent + "/" + child

	return subscribe(ctx, s, changedChannel(full), func(ctx context.Context) ([]Entry, error) {
		return s.list(ctx, full)
	})
}

func (s *RedisStore) SubscribeChildren(ctx context.Context, parent string) (<-chan map[string][]Entry, error) {
	return subscribe(ctx, s, changedChannel(parent), func(ctx context.Context) (map[string][]Entry, error) {
		return s.Children(ctx, parent)
	})
}

// subscribe re-reads the snapshot every time channel announces a change.
func subscribe[T any](ctx context.Context, s *RedisStore, channel string, read func(context.Context) (T, error)) (<-chan T, error) {
	ps := s.rdb.Subscribe(ctx, channel)
	if _, err := ps.Receive(ctx); err != nil {
		ps.Close()
		return nil, fmt.Errorf("subscribe %q: %w", channel, err)
	}

	initial, err := read(ctx)
	if err != nil {
		ps.Close()
		return nil, err
	}

	out := make(chan T, 1)
	out <- initial

	go func() {
		defer close(out)
		defer ps.Close()

		changes := ps.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case _, ok := <-changes:
				if !ok {
					return
				}

				snapshot, err := read(ctx)
				if err != nil {
					s.log.Printf("read snapshot for %q: %v", channel, err)
					continue
				}
				observable.Offer(out, snapshot)
			}
		}
	}()

	return out, nil
}
