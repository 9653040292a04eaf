package db

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/AquaSenseApp/aquasense/internal/repository"
)

// Store is the PostgreSQL repository. The embedded Queries run outside any
// transaction; WithTx hands fn a Queries bound to a single transaction.
type Store struct {
	Pool *pgxpool.Pool
	*Queries
}

var _ repository.Store = (*Store)(nil)

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{Pool: pool, Queries: New(pool)}
}

func (s *Store) WithTx(ctx context.Context, fn func(repository.Tx) error) error {
	tx, err := s.Pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	queries := s.Queries.WithTx(tx)
	if err := fn(queries); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}
	return tx.Commit(ctx)
}

func (s *Store) Ping(ctx context.Context) error {
	return s.Pool.Ping(ctx)
}

// The cascading deletes issue several statements, so outside a caller's
// transaction they get one of their own.

func (s *Store) DeleteAccount(ctx context.Context, accountID string) (bool, error) {
	var deleted bool
	err := s.WithTx(ctx, func(tx repository.Tx) error {
		var err error
		deleted, err = tx.DeleteAccount(ctx, accountID)
		return err
	})
	return deleted, err
}

func (s *Store) DeleteSensor(ctx context.Context, sensorID string) (bool, error) {
	var deleted bool
	err := s.WithTx(ctx, func(tx repository.Tx) error {
		var err error
		deleted, err = tx.DeleteSensor(ctx, sensorID)
		return err
	})
	return deleted, err
}

func (s *Store) DeleteReadingsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	var removed int64
	err := s.WithTx(ctx, func(tx repository.Tx) error {
		var err error
		removed, err = tx.DeleteReadingsBefore(ctx, cutoff)
		return err
	})
	return removed, err
}
