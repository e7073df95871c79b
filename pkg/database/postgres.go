package database

import (
	"context"
	"fmt"
	"time"

	tx "github.com/Thiht/transactor/pgx"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	defaultMaxPoolSize       = 10
	defaultConnTimeout       = 5 // seconds
	defaultHealthCheckPeriod = 1 // minutes
)

// Postgres wraps the connection pool together with the transactor used to
// scope repository calls to a single database transaction. DBGetter resolves
// to the pool outside a transaction and to the active transaction inside one.
type Postgres struct {
	Pool       *pgxpool.Pool
	DBGetter   tx.DBGetter
	Transactor *tx.Transactor
}

type settings struct {
	maxPoolSize       int32
	connTimeout       int
	healthCheckPeriod int
	isolation         pgx.TxIsoLevel
}

type Option func(*settings)

func MaxPoolSize(size int32) Option {
	return func(s *settings) { s.maxPoolSize = size }
}

func ConnTimeout(seconds int) Option {
	return func(s *settings) { s.connTimeout = seconds }
}

func HealthCheckPeriod(minutes int) Option {
	return func(s *settings) { s.healthCheckPeriod = minutes }
}

// Isolation sets the default transaction isolation level for every
// connection in the pool.
func Isolation(level pgx.TxIsoLevel) Option {
	return func(s *settings) { s.isolation = level }
}

func New(databaseURL string, opts ...Option) (*Postgres, error) {
	s := settings{
		maxPoolSize:       defaultMaxPoolSize,
		connTimeout:       defaultConnTimeout,
		healthCheckPeriod: defaultHealthCheckPeriod,
		isolation:         pgx.ReadCommitted,
	}
	for _, opt := range opts {
		opt(&s)
	}

	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database url: %w", err)
	}

	cfg.MaxConns = s.maxPoolSize
	cfg.HealthCheckPeriod = time.Duration(s.healthCheckPeriod) * time.Minute
	cfg.ConnConfig.ConnectTimeout = time.Duration(s.connTimeout) * time.Second
	cfg.ConnConfig.RuntimeParams["default_transaction_isolation"] = string(s.isolation)

	pool, err := pgxpool.NewWithConfig(context.Background(), cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err = pool.Ping(context.Background()); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	transactor, dbGetter := tx.NewTransactorFromPool(pool)

	return &Postgres{
		Pool:       pool,
		DBGetter:   dbGetter,
		Transactor: transactor,
	}, nil
}

func (p *Postgres) Close() {
	if p.Pool != nil {
		p.Pool.Close()
	}
}
