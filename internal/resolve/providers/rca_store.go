package providers

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
)

// RCADocument is one curated root-cause-analysis document.
type RCADocument struct {
	ID        string    `db:"id" json:"id"`
	Title     string    `db:"title" json:"title"`
	Body      string    `db:"body" json:"body"`
	ErrorType string    `db:"error_type" json:"error_type"`
	URL       string    `db:"url" json:"url,omitempty"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

const rcaSchema = `
CREATE TABLE IF NOT EXISTS rca_documents (
	id         TEXT PRIMARY KEY,
	title      TEXT NOT NULL,
	body       TEXT NOT NULL,
	error_type TEXT NOT NULL DEFAULT '',
	url        TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_rca_documents_error_type ON rca_documents(error_type);
`

// RCAStore is the SQLite-backed store for the curated knowledge base.
type RCAStore struct {
	db *sqlx.DB
}

// NewRCAStore opens (creating if needed) the knowledge-base database at path.
func NewRCAStore(path string) (*RCAStore, error) {
	db, err := sqlx.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open RCA database: %w", err)
	}
	if _, err := db.Exec(rcaSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize RCA schema: %w", err)
	}
	return &RCAStore{db: db}, nil
}

// Close closes the underlying database.
func (s *RCAStore) Close() error {
	return s.db.Close()
}

// Add inserts a document and returns its generated ID.
func (s *RCAStore) Add(ctx context.Context, doc RCADocument) (string, error) {
	if doc.ID == "" {
		doc.ID = uuid.New().String()
	}
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.NamedExecContext(ctx, `
		INSERT INTO rca_documents (id, title, body, error_type, url, created_at)
		VALUES (:id, :title, :body, :error_type, :url, :created_at)
	`, doc)
	if err != nil {
		return "", fmt.Errorf("failed to insert RCA document: %w", err)
	}
	return doc.ID, nil
}

// Candidates returns the documents to score for an error. Documents tagged
// with the error's type come first; untagged documents are always candidates.
func (s *RCAStore) Candidates(ctx context.Context, errorType string) ([]RCADocument, error) {
	var docs []RCADocument
	err := s.db.SelectContext(ctx, &docs, `
		SELECT id, title, body, error_type, url, created_at
		FROM rca_documents
		WHERE error_type = ? OR error_type = ''
		ORDER BY CASE WHEN error_type = ? THEN 0 ELSE 1 END, created_at DESC
	`, errorType, errorType)
	if err != nil {
		return nil, fmt.Errorf("failed to query RCA documents: %w", err)
	}
	return docs, nil
}

// Count returns the number of stored documents.
func (s *RCAStore) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.GetContext(ctx, &n, `SELECT COUNT(*) FROM rca_documents`); err != nil {
		return 0, fmt.Errorf("failed to count RCA documents: %w", err)
	}
	return n, nil
}
