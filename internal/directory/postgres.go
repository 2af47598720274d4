package directory

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/Adithya-Monish-Kumar-K/corpus-search/internal/posting"
	apperrors "github.com/Adithya-Monish-Kumar-K/corpus-search/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/corpus-search/pkg/postgres"
	"github.com/lib/pq"
)

const createDocumentsTable = `
CREATE TABLE IF NOT EXISTS documents (
	generation TEXT   NOT NULL,
	index_name TEXT   NOT NULL,
	doc_id     BIGINT NOT NULL,
	file       TEXT   NOT NULL,
	url        TEXT   NOT NULL,
	props      JSONB  NOT NULL DEFAULT '{}',
	PRIMARY KEY (generation, index_name, doc_id)
)`

// MirrorIndex is the index name a generation's shared directory is
// mirrored under.
const MirrorIndex = "corpus"

// SyncPostgres mirrors d into the documents table under (generation,
// index), replacing any previous rows for the pair. Rows are bulk loaded
// with COPY.
func SyncPostgres(ctx context.Context, pg *postgres.Client, generation, index string, d *Directory) (int, error) {
	if _, err := pg.DB.ExecContext(ctx, createDocumentsTable); err != nil {
		return 0, fmt.Errorf("creating documents table: %w", err)
	}
	ids := d.IDs()
	err := pg.InTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM documents WHERE generation = $1 AND index_name = $2`, generation, index); err != nil {
			return fmt.Errorf("clearing documents: %w", err)
		}
		stmt, err := tx.PrepareContext(ctx, pq.CopyIn("documents",
			"generation", "index_name", "doc_id", "file", "url", "props"))
		if err != nil {
			return fmt.Errorf("preparing copy: %w", err)
		}
		for _, id := range ids {
			rec, _ := d.Record(id)
			props, err := json.Marshal(rec.Props)
			if err != nil {
				stmt.Close()
				return fmt.Errorf("encoding props of %d: %w", id, err)
			}
			if _, err := stmt.ExecContext(ctx, generation, index, int64(rec.ID), rec.File, rec.URL, string(props)); err != nil {
				stmt.Close()
				return fmt.Errorf("copying document %d: %w", id, err)
			}
		}
		if _, err := stmt.ExecContext(ctx); err != nil {
			stmt.Close()
			return fmt.Errorf("flushing copy: %w", err)
		}
		return stmt.Close()
	})
	if err != nil {
		return 0, err
	}
	return len(ids), nil
}

// PGResolver answers URL lookups from the documents table.
type PGResolver struct {
	db         *sql.DB
	generation string
	index      string
}

func NewPGResolver(pg *postgres.Client, generation, index string) *PGResolver {
	return &PGResolver{db: pg.DB, generation: generation, index: index}
}

func (r *PGResolver) FindURLByID(ctx context.Context, id posting.DocID) (string, error) {
	var u string
	err := r.db.QueryRowContext(ctx,
		`SELECT url FROM documents WHERE generation = $1 AND index_name = $2 AND doc_id = $3`,
		r.generation, r.index, int64(id),
	).Scan(&u)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("document %d: %w", id, apperrors.ErrNotFound)
	}
	if err != nil {
		return "", fmt.Errorf("querying document %d: %w", id, err)
	}
	return u, nil
}
