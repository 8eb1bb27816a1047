// Package mirror is the durable local state of the client: the mirrored
// active exam session (so a crash or restart resumes the attempt instead of
// starting a duplicate) and the saved login credentials.
package mirror

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/vqbank/vqb/internal/model"

	_ "modernc.org/sqlite"
)

// Store is the SQLite-backed local state store. One active exam session is
// mirrored at a time, keyed globally.
type Store struct {
	db *sql.DB
}

// New opens (and if needed creates) the local database at dbPath.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}
	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS exam_mirror (
		id INTEGER PRIMARY KEY CHECK (id = 1),
		payload TEXT NOT NULL,
		saved_at DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS credentials (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

// SaveSession writes the active exam session, replacing any previous mirror.
// Only the session store may call this.
func (s *Store) SaveSession(sess *model.ExamSession) error {
	payload, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	_, err = s.db.Exec(
		`INSERT INTO exam_mirror (id, payload, saved_at) VALUES (1, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET payload = excluded.payload, saved_at = excluded.saved_at`,
		string(payload), time.Now(),
	)
	return err
}

// LoadSession returns the mirrored session, or nil if none is stored.
func (s *Store) LoadSession() (*model.ExamSession, error) {
	var payload string
	err := s.db.QueryRow(`SELECT payload FROM exam_mirror WHERE id = 1`).Scan(&payload)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var sess model.ExamSession
	if err := json.Unmarshal([]byte(payload), &sess); err != nil {
		return nil, fmt.Errorf("decode mirrored session: %w", err)
	}
	return &sess, nil
}

// ClearSession removes the mirrored session. Called exactly once per attempt,
// when the finish submission succeeds.
func (s *Store) ClearSession() error {
	_, err := s.db.Exec(`DELETE FROM exam_mirror WHERE id = 1`)
	return err
}

const (
	credToken  = "access_token"
	credUserID = "user_id"
	credName   = "user_name"
	credRole   = "role"
)

// setCredential upserts a key-value pair in the credentials table.
func (s *Store) setCredential(key, value string) error {
	_, err := s.db.Exec(
		`INSERT INTO credentials (key, value) VALUES (?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = ?`,
		key, value, value,
	)
	return err
}

// credential returns the value for a key, or empty string if missing.
func (s *Store) credential(key string) (string, error) {
	var value string
	err := s.db.QueryRow(`SELECT value FROM credentials WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	return value, err
}

// SaveLogin stores the access token and user identity after a login.
func (s *Store) SaveLogin(token string, user model.User) error {
	pairs := []struct{ k, v string }{
		{credToken, token},
		{credUserID, user.ID},
		{credName, user.Name},
		{credRole, user.Role},
	}
	for _, p := range pairs {
		if err := s.setCredential(p.k, p.v); err != nil {
			return err
		}
	}
	return nil
}

// Token returns the stored access token, or empty string when logged out.
func (s *Store) Token() (string, error) {
	return s.credential(credToken)
}

// UserID returns the stored user id.
func (s *Store) UserID() (string, error) {
	return s.credential(credUserID)
}

// Role returns the stored user role.
func (s *Store) Role() (string, error) {
	return s.credential(credRole)
}

// ClearLogin removes all stored credentials.
func (s *Store) ClearLogin() error {
	_, err := s.db.Exec(`DELETE FROM credentials`)
	return err
}
