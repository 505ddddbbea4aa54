package blueprint

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"uxy/pkg/db"
)

// HistoryEntry is one persisted deployment as recorded by PostgresStore.
type HistoryEntry struct {
	ID         uuid.UUID `db:"id" yaml:"id"`
	Stage      string    `db:"stage" yaml:"stage"`
	Count      int       `db:"count" yaml:"count"`
	FinishedAt time.Time `db:"finished_at" yaml:"finished_at"`
}

// PostgresStore keeps blueprints in the blueprints table and appends every
// save that carries a deployment id to the deployments table.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// OpenPostgresStore connects to dsn and applies pending migrations.
func OpenPostgresStore(ctx context.Context, dsn string) (*PostgresStore, error) {
	pool, err := db.Open(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect blueprint database: %w", err)
	}
	if err := db.Migrate(ctx, pool); err != nil {
		pool.Close()
		return nil, fmt.Errorf("migrate blueprint database: %w", err)
	}
	return &PostgresStore{pool: pool}, nil
}

type blueprintRow struct {
	AppName string `db:"app_name"`
	Data    []byte `db:"data"`
}

func (s *PostgresStore) Load(ctx context.Context, app string) (*Blueprint, error) {
	if app == "" {
		return nil, errors.New("app name is required")
	}

	var row blueprintRow
	err := db.Get(ctx, s.pool, &row, `SELECT app_name, data FROM blueprints WHERE app_name = $1`, app)
	if err != nil {
		if pgxscan.NotFound(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, app)
		}
		return nil, fmt.Errorf("query blueprint: %w", err)
	}

	var bp Blueprint
	if err := json.Unmarshal(row.Data, &bp); err != nil {
		return nil, fmt.Errorf("decode blueprint: %w", err)
	}
	if bp.Checksums == nil {
		bp.Checksums = map[string]string{}
	}
	if err := bp.Validate(); err != nil {
		return nil, err
	}
	return &bp, nil
}

func (s *PostgresStore) Save(ctx context.Context, bp *Blueprint) error {
	if err := bp.Validate(); err != nil {
		return err
	}
	if bp.AppName == "" {
		return errors.New("blueprint app:name is required")
	}

	data, err := json.Marshal(bp)
	if err != nil {
		return fmt.Errorf("encode blueprint: %w", err)
	}
	checksums, err := json.Marshal(bp.Checksums)
	if err != nil {
		return fmt.Errorf("encode checksums: %w", err)
	}

	return db.InTx(ctx, s.pool, func(ctx context.Context, tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `
INSERT INTO blueprints (app_name, region, stage, deployment_count, data, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5::jsonb, now(), now())
ON CONFLICT (app_name) DO UPDATE SET
	region = EXCLUDED.region,
	stage = EXCLUDED.stage,
	deployment_count = EXCLUDED.deployment_count,
	data = EXCLUDED.data,
	updated_at = now()`,
			bp.AppName, bp.Region, bp.Stage, bp.DeploymentCount, string(data))
		if err != nil {
			return fmt.Errorf("upsert blueprint: %w", err)
		}

		if bp.LastDeploymentID == "" {
			return nil
		}
		id, err := uuid.Parse(bp.LastDeploymentID)
		if err != nil {
			return fmt.Errorf("parse deployment id: %w", err)
		}
		finishedAt := time.Now().UTC()
		if bp.LastDeployedAt != nil {
			finishedAt = bp.LastDeployedAt.UTC()
		}

		_, err = tx.Exec(ctx, `
INSERT INTO deployments (id, app_name, stage, count, checksums, finished_at)
VALUES ($1, $2, $3, $4, $5::jsonb, $6)
ON CONFLICT (id) DO NOTHING`,
			id, bp.AppName, bp.Stage, bp.DeploymentCount, string(checksums), finishedAt)
		if err != nil {
			return fmt.Errorf("record deployment: %w", err)
		}
		return nil
	})
}

// History lists the recorded deployments of app, newest first.
func (s *PostgresStore) History(ctx context.Context, app string, limit int) ([]HistoryEntry, error) {
	if limit <= 0 {
		limit = 20
	}
	var entries []HistoryEntry
	err := db.Select(ctx, s.pool, &entries, `
SELECT id, stage, count, finished_at
FROM deployments
WHERE app_name = $1
ORDER BY finished_at DESC
LIMIT $2`, app, limit)
	if err != nil {
		return nil, fmt.Errorf("query deployments: %w", err)
	}
	return entries, nil
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}
