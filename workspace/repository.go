package workspace

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"time"

	"github.com/RCFilm/AiRC-LLM/internal/fsutil"
	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// Repository persists workspace records.
type Repository interface {
	Load() ([]Record, error)
	// Save replaces every stored record with records.
	Save(records []Record) error
}

// JSONFileRepository keeps all records in one JSON array on disk.
type JSONFileRepository struct {
	path string
}

func NewJSONFileRepository(path string) *JSONFileRepository {
	return &JSONFileRepository{path: path}
}

func (r *JSONFileRepository) Load() ([]Record, error) {
	data, err := os.ReadFile(r.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read workspaces: %w", err)
	}
	var records []Record
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", r.path, err)
	}
	return records, nil
}

func (r *JSONFileRepository) Save(records []Record) error {
	if records == nil {
		records = []Record{}
	}
	return fsutil.WriteFileAtomic(r.path, func(w io.Writer) error {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(records)
	})
}

// timeLayout sorts lexically in UTC.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

const sqliteSchema = `CREATE TABLE IF NOT EXISTS workspaces (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL UNIQUE,
	model TEXT NOT NULL DEFAULT '',
	backend TEXT NOT NULL DEFAULT '',
	chat_history TEXT NOT NULL DEFAULT '[]',
	agent_settings TEXT NOT NULL DEFAULT '{}',
	created_at TEXT NOT NULL
)`

// SQLiteRepository keeps records in a SQLite database.
type SQLiteRepository struct {
	db *sql.DB
}

func NewSQLiteRepository(path string) (*SQLiteRepository, error) {
	db, err := sql.Open("sqlite", "file:"+path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("failed to open workspace db: %w", err)
	}
	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}
	return &SQLiteRepository{db: db}, nil
}

func (r *SQLiteRepository) Close() error {
	return r.db.Close()
}

func (r *SQLiteRepository) Load() ([]Record, error) {
	rows, err := r.db.Query(`SELECT id, name, model, backend, chat_history, agent_settings, created_at
		FROM workspaces ORDER BY created_at, name`)
	if err != nil {
		return nil, fmt.Errorf("failed to query workspaces: %w", err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		var (
			rec                   Record
			id, history, settings string
			createdAt             string
		)
		if err := rows.Scan(&id, &rec.Name, &rec.Model, &rec.Backend, &history, &settings, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan workspace: %w", err)
		}
		if rec.ID, err = uuid.Parse(id); err != nil {
			return nil, fmt.Errorf("invalid workspace id %q: %w", id, err)
		}
		if rec.CreatedAt, err = time.Parse(timeLayout, createdAt); err != nil {
			return nil, fmt.Errorf("invalid creation time of %s: %w", rec.Name, err)
		}
		if err := json.Unmarshal([]byte(history), &rec.ChatHistory); err != nil {
			return nil, fmt.Errorf("invalid chat history of %s: %w", rec.Name, err)
		}
		if err := json.Unmarshal([]byte(settings), &rec.AgentSettings); err != nil {
			return nil, fmt.Errorf("invalid agent settings of %s: %w", rec.Name, err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

func (r *SQLiteRepository) Save(records []Record) (err error) {
	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.Exec(`DELETE FROM workspaces`); err != nil {
		return fmt.Errorf("failed to clear workspaces: %w", err)
	}
	stmt, err := tx.Prepare(`INSERT INTO workspaces (id, name, model, backend, chat_history, agent_settings, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, rec := range records {
		history, err := json.Marshal(rec.ChatHistory)
		if err != nil {
			return fmt.Errorf("failed to encode chat history of %s: %w", rec.Name, err)
		}
		settings, err := json.Marshal(rec.AgentSettings)
		if err != nil {
			return fmt.Errorf("failed to encode agent settings of %s: %w", rec.Name, err)
		}
		_, err = stmt.Exec(rec.ID.String(), rec.Name, rec.Model, rec.Backend, string(history), string(settings),
			rec.CreatedAt.UTC().Format(timeLayout))
		if err != nil {
			return fmt.Errorf("failed to insert workspace %s: %w", rec.Name, err)
		}
	}
	return tx.Commit()
}
