// Package store is the relational side of the dual write: one row per
// embedded chunk in the patent_chunks table, keyed by the same vector id as
// the vector index entry. Rows carry the full text needed for summarization.
package store

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// TableName is the single table managed by this package.
const TableName = "patent_chunks"

// ErrDuplicateID is returned when a vector id is inserted twice.
var ErrDuplicateID = errors.New("store: duplicate vector id")

// ChunkRow is one chunk of one patent.
type ChunkRow struct {
	VectorID        string `gorm:"column:vector_id;type:text;primaryKey"`
	PatentNumber    string `gorm:"column:patent_number;type:text"`
	PublicationID   string `gorm:"column:publication_id;type:text"`
	FamilyID        string `gorm:"column:family_id;type:text"`
	PublicationDate string `gorm:"column:publication_date;type:text"`
	Title           string `gorm:"column:title;type:text"`
	Description     string `gorm:"column:description;type:text"`
	Abstract        string `gorm:"column:abstract;type:text"`
	ClaimsText      string `gorm:"column:claims_text;type:text"`
	ChunkText       string `gorm:"column:chunk_text;type:text"`
}

// TableName implements gorm's tabler.
func (ChunkRow) TableName() string { return TableName }

// Store owns one SQLite connection.
type Store struct {
	db   *gorm.DB
	path string
}

// Open opens (creating if needed) the SQLite file at path and ensures the
// patent_chunks table exists. Safe to call when the table already exists.
func Open(path string) (*Store, error) {
	return open(path, true)
}

// OpenExisting opens the SQLite file without creating the table, for
// inspection of a database written by an earlier ingestion run.
func OpenExisting(path string) (*Store, error) {
	return open(path, false)
}

func open(path string, migrate bool) (*Store, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger:         logger.Discard,
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("store: open %s: %w", path, err)
	}
	if migrate {
		if err := db.AutoMigrate(&ChunkRow{}); err != nil {
			closeDB(db)
			return nil, fmt.Errorf("store: migrate %s: %w", path, err)
		}
	}
	return &Store{db: db, path: path}, nil
}

// Path returns the database file path.
func (s *Store) Path() string { return s.path }

// Insert appends one row. A duplicate vector id is reported as ErrDuplicateID.
func (s *Store) Insert(ctx context.Context, row ChunkRow) error {
	err := s.db.WithContext(ctx).Create(&row).Error
	if err == nil {
		return nil
	}
	if isDuplicate(err) {
		return fmt.Errorf("%w: %s", ErrDuplicateID, row.VectorID)
	}
	return fmt.Errorf("store: insert %s: %w", row.VectorID, err)
}

// FetchByIDs returns the rows whose vector id is in ids. Order is not
// guaranteed; callers re-associate rows by VectorID.
func (s *Store) FetchByIDs(ctx context.Context, ids []string) ([]ChunkRow, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var rows []ChunkRow
	if err := s.db.WithContext(ctx).Where("vector_id IN ?", ids).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("store: fetch %d ids: %w", len(ids), err)
	}
	return rows, nil
}

// Count returns the number of stored chunk rows.
func (s *Store) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := s.db.WithContext(ctx).Model(&ChunkRow{}).Count(&n).Error; err != nil {
		return 0, fmt.Errorf("store: count: %w", err)
	}
	return n, nil
}

// Sample returns up to limit rows in storage order.
func (s *Store) Sample(ctx context.Context, limit int) ([]ChunkRow, error) {
	var rows []ChunkRow
	if err := s.db.WithContext(ctx).Limit(limit).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("store: sample: %w", err)
	}
	return rows, nil
}

// HasTable reports whether the patent_chunks table exists.
func (s *Store) HasTable() bool {
	return s.db.Migrator().HasTable(&ChunkRow{})
}

// Close flushes and releases the connection.
func (s *Store) Close() error {
	return closeDB(s.db)
}

func closeDB(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("store: close: %w", err)
	}
	return sqlDB.Close()
}

func isDuplicate(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") || strings.Contains(msg, "PRIMARY KEY")
}
