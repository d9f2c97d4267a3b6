package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/ChrisMcGann/tidesearch/pkg/core"
	"github.com/ChrisMcGann/tidesearch/pkg/index"
)

const peptideQuery = `
	SELECT p.PeptideId, p.Sequence, p.Modifications, p.Mass, p.Decoy,
		COALESCE(GROUP_CONCAT(pr.Accession, ','), '')
	FROM PeptideTable p
	LEFT JOIN PeptideProteinTable pp ON pp.PeptideId = p.PeptideId
	LEFT JOIN ProteinTable pr ON pr.ProteinId = pp.ProteinId
	GROUP BY p.PeptideId
	ORDER BY p.Mass, p.PeptideId
`

// Index is a read-only peptide index backed by SQLite. Each call to
// Peptides runs its own query, so workers may scan concurrently.
type Index struct {
	db     *sql.DB
	path   string
	header index.Header
}

// Open opens an index built by Builder.
func Open(path string) (*Index, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("failed to open index: %w", err)
	}

	db, err := sql.Open("sqlite3", "file:"+path+"?mode=ro")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	idx := &Index{db: db, path: path}
	if err := idx.readHeader(); err != nil {
		db.Close()
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return idx, nil
}

func (idx *Index) readHeader() error {
	var (
		version int
		mods    sql.NullString
		decoy   sql.NullString
	)
	row := idx.db.QueryRow(`SELECT version, DecoyType, Modifications, PeptideCount, ProteinCount FROM HeaderTable LIMIT 1`)
	err := row.Scan(&version, &decoy, &mods, &idx.header.PeptideCount, &idx.header.ProteinCount)
	if errors.Is(err, sql.ErrNoRows) {
		return errors.New("index has no header; it was not finalized")
	}
	if err != nil {
		return fmt.Errorf("failed to read header: %w", err)
	}
	if version != SchemaVersion {
		return fmt.Errorf("unsupported index version %d", version)
	}

	idx.header.DecoyType = index.DecoyNone
	if decoy.Valid && decoy.String != "" {
		idx.header.DecoyType = decoy.String
	}
	if mods.Valid && mods.String != "" {
		idx.header.Modifications = strings.Split(mods.String, ";")
	}
	return nil
}

// Path returns the database file.
func (idx *Index) Path() string {
	return idx.path
}

// Header returns the index header.
func (idx *Index) Header() index.Header {
	return idx.header
}

// Peptides returns a mass-ordered cursor over every peptide.
func (idx *Index) Peptides(ctx context.Context) (index.Source, error) {
	rows, err := idx.db.QueryContext(ctx, peptideQuery)
	if err != nil {
		return nil, fmt.Errorf("failed to query peptides: %w", err)
	}
	return &cursor{rows: rows, mods: core.NewModDatabase()}, nil
}

// Close closes the database.
func (idx *Index) Close() error {
	return idx.db.Close()
}

type cursor struct {
	rows    *sql.Rows
	mods    *core.ModDatabase
	peptide *core.Peptide
	err     error
}

func (c *cursor) Next() bool {
	if c.err != nil || !c.rows.Next() {
		return false
	}

	var (
		p        core.Peptide
		mods     sql.NullString
		proteins string
	)
	if err := c.rows.Scan(&p.ID, &p.Sequence, &mods, &p.Mass, &p.Decoy, &proteins); err != nil {
		c.err = fmt.Errorf("failed to scan peptide: %w", err)
		return false
	}
	if mods.Valid && mods.String != "" {
		parsed, err := c.mods.ParseModString(mods.String, p.Sequence)
		if err != nil {
			c.err = fmt.Errorf("peptide %d: %w", p.ID, err)
			return false
		}
		p.Modifications = parsed
	}
	if proteins != "" {
		p.Proteins = strings.Split(proteins, ",")
	}
	c.peptide = &p
	return true
}

func (c *cursor) Peptide() *core.Peptide {
	return c.peptide
}

func (c *cursor) Err() error {
	if c.err != nil {
		return c.err
	}
	return c.rows.Err()
}

func (c *cursor) Close() error {
	return c.rows.Close()
}
