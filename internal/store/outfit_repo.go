package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // pgx driver
	"go.uber.org/zap"

	"github.com/wha7/wha7/pkg/pipeline"
)

const schema = `
create table if not exists outfits (
	id          uuid primary key,
	sender      text not null,
	gender      text not null default '',
	images      int  not null,
	items       jsonb not null,
	duration_ms bigint not null,
	created_at  timestamptz not null default now()
);
create index if not exists outfits_sender_idx on outfits(sender, created_at desc);`

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// item is the persisted form of a candidate; crops are not stored.
type item struct {
	Concept    string   `json:"concept"`
	Confidence float64  `json:"confidence"`
	Tags       string   `json:"tags,omitempty"`
	Style      string   `json:"style,omitempty"`
	CategoryID string   `json:"category_id"`
	SourceURL  string   `json:"source_url,omitempty"`
	Links      []string `json:"links"`
}

// OutfitRepo records processed messages in Postgres.
type OutfitRepo struct {
	DB  execer
	log *zap.Logger
}

// Open connects to Postgres and ensures the schema exists.
func Open(ctx context.Context, dsn string, log *zap.Logger) (*OutfitRepo, *sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, nil, fmt.Errorf("sql.Open: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(time.Hour)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("db.Ping: %w", err)
	}

	repo := NewOutfitRepo(db, log)
	if err := repo.Migrate(ctx); err != nil {
		db.Close()
		return nil, nil, err
	}
	return repo, db, nil
}

func NewOutfitRepo(db execer, log *zap.Logger) *OutfitRepo {
	if log == nil {
		log = zap.NewNop()
	}
	return &OutfitRepo{DB: db, log: log}
}

// Migrate creates the outfits table when missing.
func (r *OutfitRepo) Migrate(ctx context.Context) error {
	if _, err := r.DB.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("migrate outfits: %w", err)
	}
	return nil
}

// Record stores one processed message with its items and links.
func (r *OutfitRepo) Record(ctx context.Context, res *pipeline.Result) error {
	items := make([]item, 0, len(res.Candidates))
	for _, c := range res.Candidates {
		items = append(items, item{
			Concept:    c.ConceptName,
			Confidence: c.Confidence,
			Tags:       c.Tags,
			Style:      c.Style,
			CategoryID: c.CategoryID,
			SourceURL:  c.SourceURL,
			Links:      c.TopLinks,
		})
	}
	js, err := json.Marshal(items)
	if err != nil {
		return err
	}

	const q = `
insert into outfits(id, sender, gender, images, items, duration_ms)
values ($1,$2,$3,$4,$5,$6)
on conflict (id) do update set items=excluded.items, duration_ms=excluded.duration_ms`
	if _, err := r.DB.ExecContext(ctx, q, res.ID, res.Sender, string(res.Gender), res.Images, js, res.Duration.Milliseconds()); err != nil {
		return fmt.Errorf("insert outfit: %w", err)
	}

	r.log.Debug("outfit recorded", zap.String("id", res.ID), zap.Int("items", len(items)))
	return nil
}
