package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/outfitlab/outfit-relay/internal/core/domain"
)

type CatalogRepository struct {
	db *sql.DB
}

func NewCatalogRepository(db *sql.DB) *CatalogRepository {
	return &CatalogRepository{db: db}
}

func OpenDB(dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("sql open: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("db ping: %w", err)
	}
	return db, nil
}

func (r *CatalogRepository) EnsureSchema(ctx context.Context) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	// Serialize bootstrap DDL across relay replicas.
	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, int64(2026101901)); err != nil {
		return fmt.Errorf("acquire schema lock: %w", err)
	}

	const query = `
CREATE TABLE IF NOT EXISTS catalog_products (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	category TEXT NOT NULL,
	colors JSONB NOT NULL DEFAULT '[]'::jsonb,
	image TEXT NOT NULL DEFAULT '',
	position INTEGER NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_catalog_products_position ON catalog_products(position);
`
	if _, err := tx.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("execute schema ddl: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema tx: %w", err)
	}
	return nil
}

// Seed upserts catalog rows keeping the document order in position.
func (r *CatalogRepository) Seed(ctx context.Context, catalog domain.Catalog) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin seed tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	const query = `
INSERT INTO catalog_products (id, name, category, colors, image, position)
VALUES ($1, $2, $3, $4, $5, $6)
ON CONFLICT (id) DO UPDATE SET
	name = EXCLUDED.name,
	category = EXCLUDED.category,
	colors = EXCLUDED.colors,
	image = EXCLUDED.image,
	position = EXCLUDED.position
`
	for idx, p := range catalog {
		colors := p.Colors
		if colors == nil {
			colors = []string{}
		}
		colorsJSON, err := json.Marshal(colors)
		if err != nil {
			return fmt.Errorf("marshal colors for %s: %w", p.ID, err)
		}
		if _, err := tx.ExecContext(ctx, query, p.ID, p.Name, p.Category, string(colorsJSON), p.Image, idx); err != nil {
			return fmt.Errorf("upsert product %s: %w", p.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit seed tx: %w", err)
	}
	return nil
}

func (r *CatalogRepository) Load(ctx context.Context) (domain.Catalog, error) {
	const query = `
SELECT id, name, category, colors, image
FROM catalog_products
ORDER BY position ASC, id ASC
`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, domain.WrapError(domain.ErrCatalogUnavailable, "query catalog", err)
	}
	defer rows.Close()

	catalog := domain.Catalog{}
	for rows.Next() {
		var (
			p         domain.Product
			colorsRaw []byte
		)
		if err := rows.Scan(&p.ID, &p.Name, &p.Category, &colorsRaw, &p.Image); err != nil {
			return nil, domain.WrapError(domain.ErrCatalogMalformed, "scan catalog row", err)
		}
		if err := json.Unmarshal(colorsRaw, &p.Colors); err != nil {
			return nil, domain.WrapError(domain.ErrCatalogMalformed, "decode colors", fmt.Errorf("id=%s: %w", p.ID, err))
		}
		if p.Colors == nil {
			p.Colors = []string{}
		}
		catalog = append(catalog, p)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.WrapError(domain.ErrCatalogUnavailable, "iterate catalog rows", err)
	}
	return catalog, nil
}
