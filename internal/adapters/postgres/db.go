// Package postgres implements ports.DataStore over pgx. One repository file
// per aggregate; transactions run every repository over the same pgx.Tx.
package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"econexus/internal/apperrors"
	"econexus/internal/ports"
)

type DB struct {
	Pool *pgxpool.Pool
}

func Connect(ctx context.Context, url string) (*DB, error) {
	cfg, err := pgxpool.ParseConfig(url)
	if err != nil {
		return nil, err
	}
	cfg.MaxConns = 10
	cfg.HealthCheckPeriod = 30 * time.Second
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return &DB{Pool: pool}, nil
}

func (db *DB) Close() { db.Pool.Close() }

// querier is the subset of pgx shared by *pgxpool.Pool and pgx.Tx.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func (db *DB) Companies() ports.CompanyRepository          { return &companyRepo{q: db.Pool} }
func (db *DB) Materials() ports.MaterialRepository         { return &materialRepo{q: db.Pool} }
func (db *DB) WasteStreams() ports.WasteStreamRepository   { return &wasteStreamRepo{q: db.Pool} }
func (db *DB) Deals() ports.DealRepository                 { return &dealRepo{q: db.Pool} }
func (db *DB) Passports() ports.PassportRepository         { return &passportRepo{q: db.Pool} }
func (db *DB) Events() ports.PassportEventRepository       { return &eventRepo{q: db.Pool} }
func (db *DB) Transfers() ports.PassportTransferRepository { return &transferRepo{q: db.Pool} }
func (db *DB) Documents() ports.PassportDocumentRepository { return &documentRepo{q: db.Pool} }
func (db *DB) Notifications() ports.NotificationRepository { return &notificationRepo{q: db.Pool} }
func (db *DB) KPI() ports.KPIRepository                    { return &kpiRepo{q: db.Pool} }

type txStore struct{ tx pgx.Tx }

func (t *txStore) Companies() ports.CompanyRepository          { return &companyRepo{q: t.tx} }
func (t *txStore) Materials() ports.MaterialRepository         { return &materialRepo{q: t.tx} }
func (t *txStore) WasteStreams() ports.WasteStreamRepository   { return &wasteStreamRepo{q: t.tx} }
func (t *txStore) Deals() ports.DealRepository                 { return &dealRepo{q: t.tx} }
func (t *txStore) Passports() ports.PassportRepository         { return &passportRepo{q: t.tx} }
func (t *txStore) Events() ports.PassportEventRepository       { return &eventRepo{q: t.tx} }
func (t *txStore) Transfers() ports.PassportTransferRepository { return &transferRepo{q: t.tx} }
func (t *txStore) Documents() ports.PassportDocumentRepository { return &documentRepo{q: t.tx} }
func (t *txStore) Notifications() ports.NotificationRepository { return &notificationRepo{q: t.tx} }
func (t *txStore) KPI() ports.KPIRepository                    { return &kpiRepo{q: t.tx} }

// RunInTx runs fn in one transaction: everything commits or nothing does.
func (db *DB) RunInTx(ctx context.Context, fn func(ports.Store) error) (err error) {
	tx, err := db.Pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return wrapInfra(err, "begin transaction")
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		} else {
			err = tx.Commit(ctx)
			if err != nil {
				err = wrapInfra(err, "commit transaction")
			}
		}
	}()
	err = fn(&txStore{tx: tx})
	return err
}

// wrapInfra classifies a driver error: deadline problems are retryable
// timeouts, everything else is internal. Connection details stay out of the
// message.
func wrapInfra(err error, op string) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return apperrors.Wrap(err, apperrors.CodeTimeout, op+" timed out")
	}
	return apperrors.Wrap(err, apperrors.CodeInternal, op+" failed")
}

func notFound(entity, id string) error {
	return apperrors.New(apperrors.CodeNotFound, entity+" "+id+" not found")
}
