package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/iliyamo/secure-file-vault/internal/auth"
	"github.com/iliyamo/secure-file-vault/internal/model"
)

type UserRepo struct{ DB *sql.DB }

func NewUserRepo(db *sql.DB) *UserRepo { return &UserRepo{DB: db} }

// NewUserParams carries the signup fields. The password arrives in plain
// text and is hashed here so callers never handle the stored form.
type NewUserParams struct {
	FirstName   string
	LastName    string
	Email       string
	DateOfBirth string
	Password    string
}

// Create inserts a user and returns its ID. New accounts always start as
// unapproved regular users; role and approval are mutated only by an
// external process.
func (r *UserRepo) Create(ctx context.Context, p NewUserParams, bcryptCost int) (uint64, error) {
	email := strings.ToLower(strings.TrimSpace(p.Email))
	hash, err := auth.HashPassword(p.Password, bcryptCost)
	if err != nil {
		return 0, err
	}
	res, err := r.DB.ExecContext(ctx,
		"INSERT INTO users (first_name, last_name, email, date_of_birth, password_hash, role, approved) VALUES (?,?,?,?,?,?,?)",
		p.FirstName, p.LastName, email, p.DateOfBirth, hash, model.RoleUser, false)
	if err != nil {
		// MySQL error 1062: duplicate entry on the unique email index.
		if strings.Contains(strings.ToLower(err.Error()), "1062") {
			return 0, ErrEmailExists
		}
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	return uint64(id), nil
}

// GetByEmail fetches a user by normalized email.
func (r *UserRepo) GetByEmail(ctx context.Context, email string) (model.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	var u model.User
	err := r.DB.QueryRowContext(ctx,
		"SELECT id,first_name,last_name,email,date_of_birth,password_hash,role,approved,created_at FROM users WHERE email=? LIMIT 1",
		email).Scan(&u.ID, &u.FirstName, &u.LastName, &u.Email, &u.DateOfBirth, &u.PasswordHash, &u.Role, &u.Approved, &u.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return model.User{}, ErrNotFound
	}
	return u, err
}

// GetByID fetches a user by id.
func (r *UserRepo) GetByID(ctx context.Context, id uint64) (model.User, error) {
	var u model.User
	err := r.DB.QueryRowContext(ctx,
		"SELECT id,first_name,last_name,email,date_of_birth,password_hash,role,approved,created_at FROM users WHERE id=? LIMIT 1",
		id).Scan(&u.ID, &u.FirstName, &u.LastName, &u.Email, &u.DateOfBirth, &u.PasswordHash, &u.Role, &u.Approved, &u.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return model.User{}, ErrNotFound
	}
	return u, err
}
