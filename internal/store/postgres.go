package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"

	"github.com/castlens/castlens/internal/profile"
)

type PostgresConfig struct {
	Host         string
	Port         int
	User         string
	Password     string
	Database     string
	SSLInsecure  bool
	MaxOpenConns int
	MaxIdleConns int
}

// scoreRow mirrors the managed talent_scores table. The profile payload
// is stored as jsonb so score slugs can vary without schema changes.
type scoreRow struct {
	bun.BaseModel `bun:"table:talent_scores"`

	FID           string          `bun:"fid,pk"`
	Profile       profile.Profile `bun:"profile,type:jsonb,notnull"`
	LastRefreshed time.Time       `bun:"last_refreshed,notnull"`
	CreatedAt     time.Time       `bun:"created_at,notnull"`
}

type postgresStore struct {
	db *bun.DB
}

// NewPostgres connects to the managed Postgres table and ensures the
// schema exists before serving. The table keeps exactly one row per fid.
func NewPostgres(ctx context.Context, cfg PostgresConfig) (Store, error) {
	if cfg.Host == "" {
		return nil, errors.New("store: postgres host required")
	}
	port := cfg.Port
	if port <= 0 {
		port = 5432
	}

	sqldb := sql.OpenDB(pgdriver.NewConnector(
		pgdriver.WithAddr(fmt.Sprintf("%s:%d", cfg.Host, port)),
		pgdriver.WithUser(cfg.User),
		pgdriver.WithPassword(cfg.Password),
		pgdriver.WithDatabase(cfg.Database),
		pgdriver.WithInsecure(cfg.SSLInsecure),
		pgdriver.WithApplicationName("castlens"),
	))
	if cfg.MaxOpenConns > 0 {
		sqldb.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		sqldb.SetMaxIdleConns(cfg.MaxIdleConns)
	}

	db := bun.NewDB(sqldb, pgdialect.New())
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("store: postgres ping: %w", err)
	}
	if _, err := db.NewCreateTable().Model((*scoreRow)(nil)).IfNotExists().Exec(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("store: postgres schema: %w", err)
	}
	return &postgresStore{db: db}, nil
}

func (s *postgresStore) Get(ctx context.Context, fid string) (Entry, bool, error) {
	var row scoreRow
	err := s.db.NewSelect().Model(&row).Where("fid = ?", fid).Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Entry{}, false, nil
		}
		return Entry{}, false, fmt.Errorf("store: postgres select: %w", err)
	}
	return Entry{
		FID:           row.FID,
		Profile:       row.Profile,
		LastRefreshed: row.LastRefreshed,
		CreatedAt:     row.CreatedAt,
	}, true, nil
}

func (s *postgresStore) Upsert(ctx context.Context, fid string, p profile.Profile, refreshedAt time.Time) (Entry, error) {
	row := &scoreRow{
		FID:           fid,
		Profile:       p,
		LastRefreshed: refreshedAt.UTC(),
		CreatedAt:     refreshedAt.UTC(),
	}
	// created_at is deliberately absent from the update set so the
	// first-insert timestamp survives refreshes.
	_, err := s.db.NewInsert().
		Model(row).
		On("CONFLICT (fid) DO UPDATE").
		Set("profile = EXCLUDED.profile").
		Set("last_refreshed = EXCLUDED.last_refreshed").
		Returning("created_at").
		Exec(ctx)
	if err != nil {
		return Entry{}, fmt.Errorf("store: postgres upsert: %w", err)
	}
	return Entry{
		FID:           row.FID,
		Profile:       row.Profile,
		LastRefreshed: row.LastRefreshed,
		CreatedAt:     row.CreatedAt,
	}, nil
}

func (s *postgresStore) Close(context.Context) error {
	return s.db.Close()
}
