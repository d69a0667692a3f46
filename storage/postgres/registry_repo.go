package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"driverledger/pkg/address"
	"driverledger/pkg/logger"
	"driverledger/pkg/models"
	"driverledger/storage"
)

const (
	sqlStateUniqueViolation      = "23505"
	sqlStateSerializationFailure = "40001"
	sqlStateDeadlockDetected     = "40P01"
)

type registryRepo struct {
	db            *pgxpool.Pool
	log           logger.ILogger
	maxRecordSize int
}

func NewRegistryRepo(db *pgxpool.Pool, maxRecordSize int, log logger.ILogger) storage.IRegistryStorage {
	return &registryRepo{db: db, log: log, maxRecordSize: maxRecordSize}
}

type querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func readRecord(ctx context.Context, q querier, query string, addr address.Address) (*storage.Record, error) {
	rec := storage.Record{Address: addr}
	var payer string
	err := q.QueryRow(ctx, query, addr.Bytes()).Scan(&rec.Kind, &payer, &rec.Data, &rec.Version)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, storage.ErrRecordNotFound
		}
		return nil, mapError(err)
	}
	rec.Payer = models.Identity(payer)
	return &rec, nil
}

func (r *registryRepo) Read(ctx context.Context, addr address.Address) (*storage.Record, error) {
	query := `SELECT kind, payer, data, version FROM registry_records WHERE address = $1`
	rec, err := readRecord(ctx, r.db, query, addr)
	if err != nil && !errors.Is(err, storage.ErrRecordNotFound) {
		r.log.Error("failed to read record", logger.Stringer("address", addr), logger.Error(err))
	}
	return rec, err
}

// InTx runs fn in a READ COMMITTED transaction. Reads inside it lock their rows,
// so two operations on one record run one after the other and the later one
// sees the earlier one's writes.
func (r *registryRepo) InTx(ctx context.Context, fn func(tx storage.ITx) error) error {
	pgTx, err := r.db.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		r.log.Error("failed to begin transaction", logger.Error(err))
		return mapError(err)
	}
	defer func() {
		_ = pgTx.Rollback(ctx)
	}()

	if err := fn(&tx{tx: pgTx, maxRecordSize: r.maxRecordSize}); err != nil {
		return err
	}
	if err := pgTx.Commit(ctx); err != nil {
		r.log.Error("failed to commit transaction", logger.Error(err))
		return mapError(err)
	}
	return nil
}

type tx struct {
	tx            pgx.Tx
	maxRecordSize int
}

func (t *tx) Read(ctx context.Context, addr address.Address) (*storage.Record, error) {
	query := `SELECT kind, payer, data, version FROM registry_records WHERE address = $1 FOR UPDATE`
	return readRecord(ctx, t.tx, query, addr)
}

func (t *tx) Create(ctx context.Context, addr address.Address, payer models.Identity, kind string, data []byte) (*storage.Record, error) {
	if err := storage.CheckSize(data, t.maxRecordSize); err != nil {
		return nil, err
	}
	query := `
		INSERT INTO registry_records (address, kind, payer, data, version)
		VALUES ($1, $2, $3, $4, 1)
		ON CONFLICT (address) DO NOTHING
	`
	tag, err := t.tx.Exec(ctx, query, addr.Bytes(), kind, payer.String(), data)
	if err != nil {
		return nil, mapError(err)
	}
	if tag.RowsAffected() == 0 {
		return nil, storage.ErrAlreadyExists
	}
	return &storage.Record{
		Address: addr,
		Kind:    kind,
		Payer:   payer,
		Data:    append([]byte(nil), data...),
		Version: 1,
	}, nil
}

func (t *tx) Mutate(ctx context.Context, addr address.Address, fn storage.MutateFunc) (*storage.Record, error) {
	cur, err := t.Read(ctx, addr)
	if err != nil {
		return nil, err
	}
	data, err := fn(cur.Data)
	if err != nil {
		return nil, err
	}
	if err := storage.CheckSize(data, t.maxRecordSize); err != nil {
		return nil, err
	}

	query := `
		UPDATE registry_records
		SET data = $2, version = version + 1, updated_at = NOW()
		WHERE address = $1 AND version = $3
	`
	tag, err := t.tx.Exec(ctx, query, addr.Bytes(), data, cur.Version)
	if err != nil {
		return nil, mapError(err)
	}
	if tag.RowsAffected() == 0 {
		return nil, storage.ErrConflictingMutation
	}

	next := cur.Clone()
	next.Data = append([]byte(nil), data...)
	next.Version = cur.Version + 1
	return next, nil
}

func mapError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case sqlStateUniqueViolation:
			return fmt.Errorf("%w: %s", storage.ErrAlreadyExists, pgErr.Message)
		case sqlStateSerializationFailure, sqlStateDeadlockDetected:
			return fmt.Errorf("%w: %s", storage.ErrConflictingMutation, pgErr.Message)
		}
	}
	return err
}
