package persistence

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"runtime/debug"

	"peakshare/internal/models"
	"peakshare/internal/observability"
	"peakshare/internal/store"

	"github.com/redis/go-redis/v9"
)

// ChangesChannel carries every applied change event as JSON.
const ChangesChannel = "peakshare:changes"

const (
	keyPrefix = "peakshare:"
	seqKey    = keyPrefix + "seq"
)

func docKey(entity store.Entity, id string) string {
	return keyPrefix + string(entity) + ":" + id
}

// indexKey is a sorted set of ids scored by first-write sequence.
func indexKey(entity store.Entity) string {
	return keyPrefix + string(entity) + "s"
}

// userDoc keeps the password hash, which models.User hides from JSON.
type userDoc struct {
	User         *models.User `json:"user"`
	PasswordHash string       `json:"password_hash"`
}

// RedisSink stores each entity as a JSON document and publishes every
// change on ChangesChannel.
type RedisSink struct {
	rdb *redis.Client
	log *observability.Logger
}

// NewRedisSink wraps rdb.
func NewRedisSink(rdb *redis.Client, log *observability.Logger) *RedisSink {
	if log == nil {
		log = observability.GlobalLogger
	}
	return &RedisSink{rdb: rdb, log: log}
}

// Name implements Sink.
func (s *RedisSink) Name() string { return "redis" }

// Apply implements Sink.
func (s *RedisSink) Apply(ctx context.Context, ev store.ChangeEvent) error {
	var doc interface{}
	switch ev.Entity {
	case store.EntityUser:
		if ev.User != nil {
			doc = userDoc{User: ev.User, PasswordHash: ev.User.PasswordHash}
		}
	case store.EntityPost:
		if ev.Post != nil {
			doc = ev.Post
		}
	case store.EntityFollow:
		if ev.Follow != nil {
			doc = ev.Follow
		}
	default:
		return fmt.Errorf("redis sink: unknown entity %q", ev.Entity)
	}

	switch ev.Op {
	case store.OpUpsert:
		if doc == nil {
			return fmt.Errorf("redis sink: upsert %s %s without payload", ev.Entity, ev.ID)
		}
		if err := s.put(ctx, ev.Entity, ev.ID, doc); err != nil {
			return err
		}
	case store.OpDelete:
		if err := s.del(ctx, ev.Entity, ev.ID); err != nil {
			return err
		}
	default:
		return fmt.Errorf("redis sink: unknown op %q", ev.Op)
	}

	return s.publish(ctx, ev)
}

func (s *RedisSink) put(ctx context.Context, entity store.Entity, id string, doc interface{}) error {
	payload, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("redis sink: encode %s %s: %w", entity, id, err)
	}

	seq, err := s.rdb.Incr(ctx, seqKey).Result()
	if err != nil {
		return fmt.Errorf("redis sink: next seq: %w", err)
	}

	_, err = s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, docKey(entity, id), payload, 0)
		pipe.ZAddNX(ctx, indexKey(entity), redis.Z{Score: float64(seq), Member: id})
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis sink: write %s %s: %w", entity, id, err)
	}
	return nil
}

func (s *RedisSink) del(ctx context.Context, entity store.Entity, id string) error {
	_, err := s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, docKey(entity, id))
		pipe.ZRem(ctx, indexKey(entity), id)
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis sink: delete %s %s: %w", entity, id, err)
	}
	return nil
}

func (s *RedisSink) publish(ctx context.Context, ev store.ChangeEvent) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("redis sink: encode event: %w", err)
	}
	if err := s.rdb.Publish(ctx, ChangesChannel, payload).Err(); err != nil {
		return fmt.Errorf("redis sink: publish: %w", err)
	}
	return nil
}

// Load implements Sink.
func (s *RedisSink) Load(ctx context.Context) (store.Snapshot, error) {
	snap := store.Snapshot{
		Users:   []*models.User{},
		Posts:   []*models.Post{},
		Follows: []*models.Follow{},
	}

	err := s.scan(ctx, store.EntityUser, func(raw []byte) error {
		var d userDoc
		if err := json.Unmarshal(raw, &d); err != nil {
			return err
		}
		if d.User == nil {
			return errors.New("user document without user")
		}
		d.User.PasswordHash = d.PasswordHash
		snap.Users = append(snap.Users, d.User)
		return nil
	})
	if err != nil {
		return snap, err
	}

	err = s.scan(ctx, store.EntityPost, func(raw []byte) error {
		var p models.Post
		if err := json.Unmarshal(raw, &p); err != nil {
			return err
		}
		if p.LikedBy == nil {
			p.LikedBy = []string{}
		}
		if p.Comments == nil {
			p.Comments = []*models.Comment{}
		}
		snap.Posts = append(snap.Posts, &p)
		return nil
	})
	if err != nil {
		return snap, err
	}

	err = s.scan(ctx, store.EntityFollow, func(raw []byte) error {
		var f models.Follow
		if err := json.Unmarshal(raw, &f); err != nil {
			return err
		}
		snap.Follows = append(snap.Follows, &f)
		return nil
	})
	return snap, err
}

// scan decodes every document of entity in index order.
func (s *RedisSink) scan(ctx context.Context, entity store.Entity, decode func([]byte) error) error {
	ids, err := s.rdb.ZRange(ctx, indexKey(entity), 0, -1).Result()
	if err != nil {
		return fmt.Errorf("redis sink: read %s index: %w", entity, err)
	}
	if len(ids) == 0 {
		return nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = docKey(entity, id)
	}
	values, err := s.rdb.MGet(ctx, keys...).Result()
	if err != nil {
		return fmt.Errorf("redis sink: read %s documents: %w", entity, err)
	}

	for i, v := range values {
		str, ok := v.(string)
		if !ok {
			s.log.WarnContext(ctx, "redis sink index points at missing document",
				"entity", string(entity), "id", ids[i])
			continue
		}
		if err := decode([]byte(str)); err != nil {
			return fmt.Errorf("redis sink: decode %s %s: %w", entity, ids[i], err)
		}
	}
	return nil
}

// WatchChanges subscribes to ChangesChannel and calls onEvent for each
// decoded event until ctx ends.
func (s *RedisSink) WatchChanges(ctx context.Context, onEvent func(store.ChangeEvent)) error {
	sub := s.rdb.Subscribe(ctx, ChangesChannel)
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return fmt.Errorf("redis sink: subscribe: %w", err)
	}
	ch := sub.Channel()

	go func() {
		defer func() { _ = sub.Close() }()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				var ev store.ChangeEvent
				if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
					s.log.WarnContext(ctx, "undecodable change event", "error", err)
					continue
				}
				func() {
					defer func() {
						if r := recover(); r != nil {
							s.log.ErrorContext(ctx, "change watcher panic",
								"panic", fmt.Sprint(r), "stack", string(debug.Stack()))
						}
					}()
					onEvent(ev)
				}()
			}
		}
	}()

	return nil
}
