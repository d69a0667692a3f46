package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	jsoniter "github.com/json-iterator/go"
	goredis "github.com/redis/go-redis/v9"

	"driverledger/config"
	"driverledger/pkg/address"
	"driverledger/pkg/logger"
	"driverledger/pkg/models"
	"driverledger/storage"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Store keeps each record under prefix+hex(address). Transactions WATCH every
// key they touch and write through MULTI/EXEC, so a key changed by another
// client aborts the commit with storage.ErrConflictingMutation.
type Store struct {
	client        *goredis.Client
	prefix        string
	maxRecordSize int
	log           logger.ILogger
}

func New(ctx context.Context, cfg config.Config, log logger.ILogger) (*Store, error) {
	client := goredis.NewClient(&goredis.Options{
		Addr:         cfg.RedisAddr(),
		Password:     cfg.RedisPassword,
		DB:           cfg.RedisDB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     10,
		MinIdleConns: 2,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		log.Error("failed to connect Redis", logger.Error(err))
		_ = client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	log.Info("Redis connected", logger.String("addr", cfg.RedisAddr()))
	return NewWithClient(client, cfg.RedisKeyPrefix, cfg.MaxRecordSize, log), nil
}

func NewWithClient(client *goredis.Client, prefix string, maxRecordSize int, log logger.ILogger) *Store {
	return &Store{
		client:        client,
		prefix:        prefix,
		maxRecordSize: maxRecordSize,
		log:           log,
	}
}

func (s *Store) Registry() storage.IRegistryStorage { return s }

func (s *Store) Close() {
	if err := s.client.Close(); err != nil {
		s.log.Warning("failed to close Redis client", logger.Error(err))
	}
}

func (s *Store) key(addr address.Address) string {
	return s.prefix + addr.String()
}

type envelope struct {
	Kind    string          `json:"kind"`
	Payer   models.Identity `json:"payer"`
	Data    []byte          `json:"data"`
	Version int64           `json:"version"`
}

func (s *Store) Read(ctx context.Context, addr address.Address) (*storage.Record, error) {
	return s.get(ctx, s.client, addr)
}

type getter interface {
	Get(ctx context.Context, key string) *goredis.StringCmd
}

func (s *Store) get(ctx context.Context, c getter, addr address.Address) (*storage.Record, error) {
	raw, err := c.Get(ctx, s.key(addr)).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, storage.ErrRecordNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("redis get: %w", err)
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("decode envelope: %w", err)
	}
	return &storage.Record{
		Address: addr,
		Kind:    env.Kind,
		Payer:   env.Payer,
		Data:    env.Data,
		Version: env.Version,
	}, nil
}

func (s *Store) InTx(ctx context.Context, fn func(tx storage.ITx) error) error {
	err := s.client.Watch(ctx, func(rtx *goredis.Tx) error {
		t := &tx{
			store:    s,
			rtx:      rtx,
			watched:  make(map[address.Address]bool),
			observed: make(map[address.Address]int64),
			writes:   make(map[address.Address]*storage.Record),
		}
		if err := fn(t); err != nil {
			return err
		}
		if len(t.writes) == 0 {
			return nil
		}

		_, err := rtx.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
			for addr, rec := range t.writes {
				raw, err := json.Marshal(envelope{Kind: rec.Kind, Payer: rec.Payer, Data: rec.Data, Version: rec.Version})
				if err != nil {
					return fmt.Errorf("encode envelope: %w", err)
				}
				pipe.Set(ctx, s.key(addr), raw, 0)
			}
			return nil
		})
		return err
	})
	if errors.Is(err, goredis.TxFailedErr) {
		return storage.ErrConflictingMutation
	}
	return err
}

type tx struct {
	store    *Store
	rtx      *goredis.Tx
	watched  map[address.Address]bool
	observed map[address.Address]int64
	writes   map[address.Address]*storage.Record
}

func (t *tx) watch(ctx context.Context, addr address.Address) error {
	if t.watched[addr] {
		return nil
	}
	if err := t.rtx.Watch(ctx, t.store.key(addr)).Err(); err != nil {
		return fmt.Errorf("redis watch: %w", err)
	}
	t.watched[addr] = true
	return nil
}

func (t *tx) Read(ctx context.Context, addr address.Address) (*storage.Record, error) {
	if rec, ok := t.writes[addr]; ok {
		return rec.Clone(), nil
	}
	if err := t.watch(ctx, addr); err != nil {
		return nil, err
	}
	rec, err := t.store.get(ctx, t.rtx, addr)
	if err != nil {
		return nil, err
	}
	if _, seen := t.observed[addr]; !seen {
		t.observed[addr] = rec.Version
	}
	return rec, nil
}

// stale reports whether a record this transaction read has changed since.
// EXEC would fail anyway; checking early turns a collision caused by a lost
// race into storage.ErrConflictingMutation instead of ErrAlreadyExists.
func (t *tx) stale(ctx context.Context) (bool, error) {
	for addr, version := range t.observed {
		cur, err := t.store.get(ctx, t.rtx, addr)
		if errors.Is(err, storage.ErrRecordNotFound) {
			return true, nil
		}
		if err != nil {
			return false, err
		}
		if cur.Version != version {
			return true, nil
		}
	}
	return false, nil
}

func (t *tx) Create(ctx context.Context, addr address.Address, payer models.Identity, kind string, data []byte) (*storage.Record, error) {
	_, err := t.Read(ctx, addr)
	if err == nil {
		stale, err := t.stale(ctx)
		if err != nil {
			return nil, err
		}
		if stale {
			return nil, storage.ErrConflictingMutation
		}
		return nil, storage.ErrAlreadyExists
	}
	if !errors.Is(err, storage.ErrRecordNotFound) {
		return nil, err
	}
	if err := storage.CheckSize(data, t.store.maxRecordSize); err != nil {
		return nil, err
	}

	rec := &storage.Record{
		Address: addr,
		Kind:    kind,
		Payer:   payer,
		Data:    append([]byte(nil), data...),
		Version: 1,
	}
	t.writes[addr] = rec
	return rec.Clone(), nil
}

func (t *tx) Mutate(ctx context.Context, addr address.Address, fn storage.MutateFunc) (*storage.Record, error) {
	_, pending := t.writes[addr]
	cur, err := t.Read(ctx, addr)
	if err != nil {
		return nil, err
	}
	data, err := fn(cur.Data)
	if err != nil {
		return nil, err
	}
	if err := storage.CheckSize(data, t.store.maxRecordSize); err != nil {
		return nil, err
	}

	next := cur.Clone()
	next.Data = append([]byte(nil), data...)
	if !pending {
		next.Version = cur.Version + 1
	}
	t.writes[addr] = next
	return next.Clone(), nil
}

// Reset deletes every key under the store prefix. Development use only.
func (s *Store) Reset(ctx context.Context) (int, error) {
	var deleted int
	iter := s.client.Scan(ctx, 0, s.prefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		if err := s.client.Del(ctx, iter.Val()).Err(); err != nil {
			return deleted, fmt.Errorf("redis del: %w", err)
		}
		deleted++
	}
	if err := iter.Err(); err != nil {
		return deleted, fmt.Errorf("redis scan: %w", err)
	}
	return deleted, nil
}
