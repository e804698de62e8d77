package ringslog

import (
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// ErrNotFound is returned when a requested review or user does not exist.
var ErrNotFound = sql.ErrNoRows

// ErrEmailTaken is returned by CreateUser for a duplicate email.
var ErrEmailTaken = errors.New("email already registered")

// Store wraps a SQLite database holding reviews and users.
type Store struct {
	db *sql.DB
}

// NewStore opens (or creates) the SQLite database at path, ensures the data
// directory exists, and creates the schema.
func NewStore(path string) (*Store, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, err
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// WAL lets the review list be read while a post is being saved; the busy
	// timeout makes writers wait instead of failing with SQLITE_BUSY.
	if _, err := db.Exec(`
		PRAGMA journal_mode=WAL;
		PRAGMA busy_timeout=5000;
		PRAGMA synchronous=NORMAL;
		PRAGMA foreign_keys=ON;
	`); err != nil {
		db.Close()
		return nil, err
	}
	if path == ":memory:" {
		db.SetMaxOpenConns(1)
	} else {
		db.SetMaxOpenConns(4)
		db.SetMaxIdleConns(4)
	}
	s := &Store{db: db}
	if err := s.ensureSchema(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) ensureSchema() error {
	_, err := s.db.Exec(`
CREATE TABLE IF NOT EXISTS users (
    id TEXT PRIMARY KEY,
    name TEXT NOT NULL,
    email TEXT NOT NULL UNIQUE,
    password_hash TEXT NOT NULL,
    created_at TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS reviews (
    uid TEXT PRIMARY KEY,
    user_id TEXT NOT NULL REFERENCES users(id),
    isbn TEXT NOT NULL,
    title TEXT NOT NULL,
    author TEXT NOT NULL,
    content TEXT NOT NULL,
    image TEXT NOT NULL DEFAULT '',
    created_at TEXT NOT NULL,
    updated_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS reviews_created_at ON reviews(created_at DESC);
`)
	return err
}

const reviewColumns = `uid, user_id, isbn, title, author, content, image, created_at, updated_at`

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanReview(row scanner) (Review, error) {
	var r Review
	var created, updated string
	if err := row.Scan(&r.UID, &r.UserID, &r.ISBN, &r.Title, &r.Author, &r.Content, &r.Image, &created, &updated); err != nil {
		return Review{}, err
	}
	r.CreatedAt, _ = time.Parse(time.RFC3339Nano, created)
	r.UpdatedAt, _ = time.Parse(time.RFC3339Nano, updated)
	return r, nil
}

// ListReviews returns every review, newest first.
func (s *Store) ListReviews() ([]Review, error) {
	rows, err := s.db.Query(`SELECT ` + reviewColumns + ` FROM reviews ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var reviews []Review
	for rows.Next() {
		r, err := scanReview(rows)
		if err != nil {
			return nil, err
		}
		reviews = append(reviews, r)
	}
	return reviews, rows.Err()
}

// GetReview returns a single review by uid.
func (s *Store) GetReview(uid string) (Review, error) {
	return scanReview(s.db.QueryRow(`SELECT `+reviewColumns+` FROM reviews WHERE uid = ?`, uid))
}

// SaveReview upserts a review. CreatedAt is preserved on update.
func (s *Store) SaveReview(r Review) error {
	now := time.Now().UTC()
	if r.CreatedAt.IsZero() {
		r.CreatedAt = now
	}
	if r.UpdatedAt.IsZero() {
		r.UpdatedAt = now
	}
	_, err := s.db.Exec(`
INSERT INTO reviews (`+reviewColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(uid) DO UPDATE SET
    isbn = excluded.isbn,
    title = excluded.title,
    author = excluded.author,
    content = excluded.content,
    image = excluded.image,
    updated_at = excluded.updated_at`,
		r.UID, r.UserID, r.ISBN, r.Title, r.Author, r.Content, r.Image,
		r.CreatedAt.Format(time.RFC3339Nano), r.UpdatedAt.Format(time.RFC3339Nano))
	return err
}

// DeleteReview removes a review by uid.
func (s *Store) DeleteReview(uid string) error {
	_, err := s.db.Exec(`DELETE FROM reviews WHERE uid = ?`, uid)
	return err
}

// CreateUser inserts a new user. Emails are compared case-insensitively.
func (s *Store) CreateUser(u User) error {
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.Exec(`INSERT INTO users (id, name, email, password_hash, created_at) VALUES (?, ?, ?, ?, ?)`,
		u.ID, u.Name, normalizeEmail(u.Email), u.PasswordHash, u.CreatedAt.Format(time.RFC3339Nano))
	if err != nil && strings.Contains(strings.ToLower(err.Error()), "unique") {
		return ErrEmailTaken
	}
	return err
}

// GetUser returns a user by id.
func (s *Store) GetUser(id string) (User, error) {
	return s.scanUser(s.db.QueryRow(`SELECT id, name, email, password_hash, created_at FROM users WHERE id = ?`, id))
}

// GetUserByEmail returns a user by email.
func (s *Store) GetUserByEmail(email string) (User, error) {
	return s.scanUser(s.db.QueryRow(`SELECT id, name, email, password_hash, created_at FROM users WHERE email = ?`, normalizeEmail(email)))
}

func (s *Store) scanUser(row scanner) (User, error) {
	var u User
	var created string
	if err := row.Scan(&u.ID, &u.Name, &u.Email, &u.PasswordHash, &created); err != nil {
		return User{}, err
	}
	u.CreatedAt, _ = time.Parse(time.RFC3339Nano, created)
	return u, nil
}

func normalizeEmail(e string) string {
	return strings.ToLower(strings.TrimSpace(e))
}
