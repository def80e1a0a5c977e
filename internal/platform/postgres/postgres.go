package postgres

import (
	"context"
	"fmt"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// New opens the pool. gormCfg carries the logger chosen at bootstrap.
func New(ctx context.Context, dsn string, gormCfg *gorm.Config) (*gorm.DB, error) {
	if gormCfg == nil {
		gormCfg = &gorm.Config{}
	}
	db, err := gorm.Open(postgres.Open(dsn), gormCfg)
	if err != nil {
		return nil, fmt.Errorf("open postgres failed: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("get postgres sql db failed: %w", err)
	}

	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(50)
	sqlDB.SetConnMaxLifetime(1 * time.Hour)
	sqlDB.SetConnMaxIdleTime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := sqlDB.PingContext(pingCtx); err != nil {
		return nil, fmt.Errorf("ping postgres failed: %w", err)
	}

	if err := db.WithContext(ctx).Exec("CREATE EXTENSION IF NOT EXISTS vector").Error; err != nil {
		return nil, fmt.Errorf("enable pgvector extension failed: %w", err)
	}
	return db, nil
}

// matchDocumentsSQL mirrors the similarity RPC the policy index is queried through.
const matchDocumentsSQL = `
CREATE OR REPLACE FUNCTION match_documents(
	query_embedding vector(%[1]d),
	match_threshold float,
	match_count int,
	filter_section text DEFAULT NULL
)
RETURNS TABLE (
	id bigint,
	section text,
	plan_type text,
	content text,
	metadata jsonb,
	similarity float
)
LANGUAGE sql STABLE
AS $$
	SELECT
		d.id::bigint,
		d.section::text,
		d.plan_type::text,
		d.content::text,
		d.metadata::jsonb,
		1 - (d.embedding <=> query_embedding) AS similarity
	FROM policy_documents d
	WHERE d.embedding IS NOT NULL
		AND (filter_section IS NULL OR d.section = filter_section)
		AND 1 - (d.embedding <=> query_embedding) >= match_threshold
	ORDER BY d.embedding <=> query_embedding
	LIMIT match_count;
$$;`

// EnsureMatchDocuments installs the match_documents function for vectors of
// the given width. It must run after policy_documents exists.
func EnsureMatchDocuments(ctx context.Context, db *gorm.DB, dimensions int) error {
	if err := db.WithContext(ctx).Exec(fmt.Sprintf(matchDocumentsSQL, dimensions)).Error; err != nil {
		return fmt.Errorf("create match_documents failed: %w", err)
	}
	return nil
}
