package queryscope

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/golang/snappy"

	// SQLite driver using pure Go implementation
	_ "modernc.org/sqlite"
)

// ErrHistoryClosed is returned for operations on a closed history store.
var ErrHistoryClosed = errors.New("history store is closed")

// HistoryEntry is one recorded query together with its parse outcome.
type HistoryEntry struct {
	ID        int64       `json:"id"`
	Query     string      `json:"query"`
	Success   bool        `json:"success"`
	Error     string      `json:"error,omitempty"`
	AST       *ParsedNode `json:"ast,omitempty"`
	CreatedAt time.Time   `json:"created_at"`
}

// HistoryStore persists parsed queries in SQLite so sessions can be
// reviewed later. AST trees are stored as snappy-compressed JSON blobs.
// Safe for concurrent use.
type HistoryStore struct {
	db         *sql.DB
	maxEntries int

	mu     sync.Mutex
	closed bool

	insertStmt *sql.Stmt
	recentStmt *sql.Stmt
	pruneStmt  *sql.Stmt
}

// NewHistoryStore opens (or creates) the history database at the configured
// path and prepares its statements.
func NewHistoryStore(cfg HistoryConfig) (*HistoryStore, error) {
	if cfg.Path == "" {
		cfg.Path = "queryscope.db"
	}
	if cfg.MaxEntries <= 0 {
		cfg.MaxEntries = 1000
	}

	dsn := fmt.Sprintf("%s?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000", cfg.Path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open history database: %w", err)
	}

	store := &HistoryStore{
		db:         db,
		maxEntries: cfg.MaxEntries,
	}

	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize history schema: %w", err)
	}
	if err := store.prepareStatements(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to prepare history statements: %w", err)
	}

	return store, nil
}

func (h *HistoryStore) initSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS query_history (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			query TEXT NOT NULL,
			success INTEGER NOT NULL,
			error TEXT,
			ast BLOB,  -- snappy-compressed JSON
			created_at INTEGER NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_history_created ON query_history(created_at);
	`
	_, err := h.db.Exec(schema)
	return err
}

func (h *HistoryStore) prepareStatements() error {
	var err error

	h.insertStmt, err = h.db.Prepare(
		`INSERT INTO query_history (query, success, error, ast, created_at) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}

	h.recentStmt, err = h.db.Prepare(
		`SELECT id, query, success, error, ast, created_at FROM query_history ORDER BY id DESC LIMIT ?`)
	if err != nil {
		return err
	}

	h.pruneStmt, err = h.db.Prepare(
		`DELETE FROM query_history WHERE id NOT IN (SELECT id FROM query_history ORDER BY id DESC LIMIT ?)`)
	return err
}

// Record stores one query with its parse outcome and prunes rows beyond
// the retention limit.
func (h *HistoryStore) Record(query string, res ParseResult) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return ErrHistoryClosed
	}

	var astBlob []byte
	if res.AST != nil {
		raw, err := json.Marshal(res.AST)
		if err != nil {
			return fmt.Errorf("failed to encode AST: %w", err)
		}
		astBlob = snappy.Encode(nil, raw)
	}

	success := 0
	if res.Success {
		success = 1
	}

	if _, err := h.insertStmt.Exec(query, success, res.Error, astBlob, time.Now().UnixMilli()); err != nil {
		return fmt.Errorf("failed to record query: %w", err)
	}
	if _, err := h.pruneStmt.Exec(h.maxEntries); err != nil {
		return fmt.Errorf("failed to prune history: %w", err)
	}
	return nil
}

// Recent returns up to limit entries, newest first.
func (h *HistoryStore) Recent(limit int) ([]HistoryEntry, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil, ErrHistoryClosed
	}
	if limit <= 0 {
		limit = 50
	}

	rows, err := h.recentStmt.Query(limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query history: %w", err)
	}
	defer rows.Close()

	var entries []HistoryEntry
	for rows.Next() {
		var (
			e         HistoryEntry
			success   int
			errText   sql.NullString
			astBlob   []byte
			createdAt int64
		)
		if err := rows.Scan(&e.ID, &e.Query, &success, &errText, &astBlob, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan history row: %w", err)
		}
		e.Success = success != 0
		e.Error = errText.String
		e.CreatedAt = time.UnixMilli(createdAt)

		if len(astBlob) > 0 {
			raw, err := snappy.Decode(nil, astBlob)
			if err != nil {
				return nil, fmt.Errorf("failed to decompress AST blob: %w", err)
			}
			var node ParsedNode
			if err := json.Unmarshal(raw, &node); err != nil {
				return nil, fmt.Errorf("failed to decode AST blob: %w", err)
			}
			e.AST = &node
		}

		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Close releases the underlying database. Further operations return
// ErrHistoryClosed.
func (h *HistoryStore) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil
	}
	h.closed = true

	h.insertStmt.Close()
	h.recentStmt.Close()
	h.pruneStmt.Close()
	return h.db.Close()
}
