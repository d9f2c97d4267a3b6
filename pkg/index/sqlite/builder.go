// Package sqlite stores peptide indexes in SQLite databases.
package sqlite

import (
	"database/sql"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/cespare/xxhash/v2"
	_ "github.com/mattn/go-sqlite3"

	"github.com/ChrisMcGann/tidesearch/pkg/core"
	"github.com/ChrisMcGann/tidesearch/pkg/index"
)

const (
	// SchemaVersion is written to HeaderTable and checked by Open.
	SchemaVersion = 1

	headerDateFormat = "2006-01-02"
)

const schema = `
CREATE TABLE IF NOT EXISTS PeptideTable (
	PeptideId INTEGER PRIMARY KEY,
	Sequence TEXT NOT NULL,
	Modifications TEXT,
	Mass DOUBLE NOT NULL,
	Decoy BOOL NOT NULL DEFAULT 0,
	Hash INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS ProteinTable (
	ProteinId INTEGER PRIMARY KEY,
	Accession TEXT NOT NULL UNIQUE
);

CREATE TABLE IF NOT EXISTS PeptideProteinTable (
	PeptideId INTEGER REFERENCES PeptideTable(PeptideId),
	ProteinId INTEGER REFERENCES ProteinTable(ProteinId),
	PRIMARY KEY (PeptideId, ProteinId)
);

CREATE TABLE IF NOT EXISTS HeaderTable (
	version INTEGER NOT NULL DEFAULT 0,
	CreationDate TEXT,
	DecoyType TEXT,
	Modifications TEXT,
	PeptideCount INTEGER,
	ProteinCount INTEGER
);

CREATE INDEX IF NOT EXISTS PeptideMassIndex ON PeptideTable(Mass);
`

type peptideKey struct {
	id  int64
	key string
}

// Builder writes a peptide index. Peptides with the same modified sequence
// and decoy status are stored once, with their proteins merged.
type Builder struct {
	db          *sql.DB
	tx          *sql.Tx
	outputPath  string
	decoyType   string
	peptideStmt *sql.Stmt
	proteinStmt *sql.Stmt
	linkStmt    *sql.Stmt

	nextPeptide int64
	peptides    map[uint64][]peptideKey
	proteins    map[string]int64
	modMasses   map[string]struct{}
}

// NewBuilder creates an index database at outputPath. Existing files are
// not truncated; callers remove them first.
func NewBuilder(outputPath, decoyType string) (*Builder, error) {
	if decoyType == "" {
		decoyType = index.DecoyNone
	}

	db, err := sql.Open("sqlite3", outputPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	b := &Builder{
		db:          db,
		outputPath:  outputPath,
		decoyType:   decoyType,
		nextPeptide: 1,
		peptides:    map[uint64][]peptideKey{},
		proteins:    map[string]int64{},
		modMasses:   map[string]struct{}{},
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	if err := b.prepareStatements(); err != nil {
		db.Close()
		return nil, err
	}

	return b, nil
}

func (b *Builder) prepareStatements() error {
	tx, err := b.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	b.tx = tx

	b.peptideStmt, err = tx.Prepare(`
		INSERT INTO PeptideTable (PeptideId, Sequence, Modifications, Mass, Decoy, Hash)
		VALUES (?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("failed to prepare peptide statement: %w", err)
	}

	b.proteinStmt, err = tx.Prepare(`INSERT INTO ProteinTable (ProteinId, Accession) VALUES (?, ?)`)
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("failed to prepare protein statement: %w", err)
	}

	b.linkStmt, err = tx.Prepare(`INSERT OR IGNORE INTO PeptideProteinTable (PeptideId, ProteinId) VALUES (?, ?)`)
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("failed to prepare link statement: %w", err)
	}

	return nil
}

// AddPeptide stores a peptide and links it to its proteins. It returns the
// id of the stored row, which is shared by duplicate peptides.
func (b *Builder) AddPeptide(p *core.Peptide) (int64, error) {
	key := dedupKey(p)
	hash := xxhash.Sum64String(key)

	id, seen := b.lookup(hash, key)
	if !seen {
		id = b.nextPeptide
		_, err := b.peptideStmt.Exec(
			id,
			p.Sequence,
			core.FormatModString(p.Modifications),
			p.Mass,
			p.Decoy,
			int64(hash),
		)
		if err != nil {
			return 0, fmt.Errorf("failed to insert peptide %s: %w", p.Sequence, err)
		}
		b.peptides[hash] = append(b.peptides[hash], peptideKey{id: id, key: key})
		b.nextPeptide++

		for _, mod := range p.Modifications {
			b.modMasses[strconv.FormatFloat(mod.Mass, 'f', -1, 64)] = struct{}{}
		}
	}

	for _, acc := range p.Proteins {
		proteinID, err := b.protein(acc)
		if err != nil {
			return 0, err
		}
		if _, err := b.linkStmt.Exec(id, proteinID); err != nil {
			return 0, fmt.Errorf("failed to link peptide %s to %s: %w", p.Sequence, acc, err)
		}
	}
	return id, nil
}

// PeptideCount returns the number of distinct peptides stored so far.
func (b *Builder) PeptideCount() int {
	return int(b.nextPeptide - 1)
}

func (b *Builder) lookup(hash uint64, key string) (int64, bool) {
	for _, pk := range b.peptides[hash] {
		if pk.key == key {
			return pk.id, true
		}
	}
	return 0, false
}

func (b *Builder) protein(accession string) (int64, error) {
	if id, ok := b.proteins[accession]; ok {
		return id, nil
	}
	id := int64(len(b.proteins) + 1)
	if _, err := b.proteinStmt.Exec(id, accession); err != nil {
		return 0, fmt.Errorf("failed to insert protein %s: %w", accession, err)
	}
	b.proteins[accession] = id
	return id, nil
}

func dedupKey(p *core.Peptide) string {
	prefix := "T:"
	if p.Decoy {
		prefix = "D:"
	}
	return prefix + p.Sequence + "|" + core.FormatModString(p.Modifications)
}

// Finalize writes the header table, commits and closes the database.
func (b *Builder) Finalize() error {
	mods := make([]string, 0, len(b.modMasses))
	for m := range b.modMasses {
		mods = append(mods, m)
	}
	sort.Strings(mods)

	_, err := b.tx.Exec(`
		INSERT INTO HeaderTable (version, CreationDate, DecoyType, Modifications, PeptideCount, ProteinCount)
		VALUES (?, ?, ?, ?, ?, ?)
	`, SchemaVersion, time.Now().Format(headerDateFormat), b.decoyType, strings.Join(mods, ";"), b.PeptideCount(), len(b.proteins))
	if err != nil {
		b.tx.Rollback()
		b.db.Close()
		return fmt.Errorf("failed to insert header: %w", err)
	}

	b.closeStatements()
	if err := b.tx.Commit(); err != nil {
		b.db.Close()
		return fmt.Errorf("failed to commit index: %w", err)
	}

	if err := b.db.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}
	return nil
}

// Abort discards everything written and closes the database.
func (b *Builder) Abort() error {
	b.closeStatements()
	b.tx.Rollback()
	return b.db.Close()
}

func (b *Builder) closeStatements() {
	for _, stmt := range []*sql.Stmt{b.peptideStmt, b.proteinStmt, b.linkStmt} {
		if stmt != nil {
			stmt.Close()
		}
	}
}
