package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/rpattn/leadstream/internal/db"
)

type postgresStore struct {
	pool   *pgxpool.Pool
	conn   db.DBTX
	inTx   bool
	logger *zap.Logger
}

// NewPostgresStore wires the repositories over a pgx pool.
func NewPostgresStore(pool *pgxpool.Pool, logger *zap.Logger) Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &postgresStore{pool: pool, conn: pool, logger: logger}
}

func (s *postgresStore) Uploads() UploadRepository {
	return &uploadRepository{db: s.conn, concurrent: !s.inTx}
}

func (s *postgresStore) Persons() PersonRepository {
	return &personRepository{db: s.conn, concurrent: !s.inTx}
}

func (s *postgresStore) Enrichments() EnrichmentRepository {
	return &enrichmentRepository{db: s.conn}
}

func (s *postgresStore) Ownership() OwnershipRepository {
	return &ownershipRepository{db: s.conn}
}

func (s *postgresStore) IngestionLogs() IngestionLogRepository {
	return &ingestionLogRepository{db: s.conn}
}

// WithinTx runs fn in a transaction. Nested calls reuse the outer transaction.
func (s *postgresStore) WithinTx(ctx context.Context, fn func(Store) error) error {
	if s.inTx {
		return fn(s)
	}
	if s.pool == nil {
		return errors.New("postgres store not initialized")
	}
	return db.WithTx(ctx, s.pool, s.logger, func(tx pgx.Tx) error {
		return fn(&postgresStore{pool: s.pool, conn: tx, inTx: true, logger: s.logger})
	})
}
