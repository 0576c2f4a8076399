package web

import (
	"database/sql"
	"errors"
	"fmt"
	"log"
	"time"

	"golang.org/x/crypto/bcrypt"
)

var ErrInvalidCredentials = errors.New("models: invalid credentials")

// UserModel wraps the users table in the shared SQLite database.
type UserModel struct {
	DB *sql.DB
}

// Authenticate checks an email/password pair and returns the user ID.
func (m *UserModel) Authenticate(email, password string) (int, error) {
	var id int
	var hashedPassword []byte

	stmt := "SELECT id, password FROM users WHERE email = ?"
	err := m.DB.QueryRow(stmt, email).Scan(&id, &hashedPassword)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, ErrInvalidCredentials
		}
		return 0, err
	}

	err = bcrypt.CompareHashAndPassword(hashedPassword, []byte(password))
	if err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return 0, ErrInvalidCredentials
		}
		return 0, err
	}
	return id, nil
}

// Exists reports whether a user with the given ID is present.
func (m *UserModel) Exists(id int) (bool, error) {
	var exists bool
	stmt := "SELECT EXISTS(SELECT true FROM users WHERE id = ?)"
	err := m.DB.QueryRow(stmt, id).Scan(&exists)
	return exists, err
}

// CreateSessionTable makes the table the scs sqlite3store expects.
func CreateSessionTable(db *sql.DB) error {
	stmt := `
		CREATE TABLE IF NOT EXISTS sessions (
			token CHAR(43) PRIMARY KEY,
			data BLOB NOT NULL,
			expiry TIMESTAMP(6) NOT NULL
		);
		CREATE INDEX IF NOT EXISTS sessions_expiry_idx ON sessions (expiry);
	`
	_, err := db.Exec(stmt)
	return err
}

// CreateUserTable makes the users table.
func CreateUserTable(db *sql.DB) error {
	stmt := `
		CREATE TABLE IF NOT EXISTS users (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			username VARCHAR(255) NOT NULL,
			email VARCHAR(255) NOT NULL UNIQUE,
			password CHAR(60) NOT NULL,
			authorised INTEGER DEFAULT 0,
			admin INTEGER DEFAULT 0,
			created DATETIME NOT NULL
		);
	`
	_, err := db.Exec(stmt)
	return err
}

// AdminUser is the seed account from config.json.
type AdminUser struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// SeedAdmin inserts the admin account on first boot; if any admin
// already exists it does nothing.
func SeedAdmin(db *sql.DB, admin AdminUser) error {
	var existingID int
	err := db.QueryRow("SELECT id FROM users WHERE admin = 1 LIMIT 1").Scan(&existingID)
	if err == nil {
		log.Println("Admin user already exists, skipping seeding.")
		return nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("error checking for existing admin: %w", err)
	}

	password, err := bcrypt.GenerateFromPassword([]byte(admin.Password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}

	_, err = db.Exec("INSERT INTO users (username, email, password, authorised, admin, created) VALUES (?, ?, ?, ?, ?, ?)",
		admin.Username, admin.Email, string(password), 1, 1, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("error inserting admin user: %w", err)
	}

	log.Println("Admin user created successfully.")
	return nil
}
