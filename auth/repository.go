package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"bookingflow/directory"
)

// ErrDuplicateEmail signals that the email is already registered.
var ErrDuplicateEmail = errors.New("auth: email already exists")

// Repository handles account storage for authentication.
type Repository interface {
	CreateUser(ctx context.Context, params CreateUserParams) (directory.User, error)
	UserByEmail(ctx context.Context, email string) (directory.User, error)
	UserByID(ctx context.Context, id int64) (directory.User, error)
}

// CreateUserParams contains write parameters for creating users.
type CreateUserParams struct {
	Email        string
	Name         string
	Mobile       string
	PasswordHash string
	Role         directory.Role
	Meta         directory.Meta
}

// PGRepository writes accounts to PostgreSQL and reads them back through the
// directory.
type PGRepository struct {
	*directory.PGRepository
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{PGRepository: directory.NewRepository(pool), pool: pool}
}

// CreateUser inserts the user and its meta row in one transaction.
func (r *PGRepository) CreateUser(ctx context.Context, params CreateUserParams) (directory.User, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return directory.User{}, fmt.Errorf("auth: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	const insertUser = `
		INSERT INTO users (email, name, mobile, role, password_hash)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id`
	var id int64
	email := strings.ToLower(strings.TrimSpace(params.Email))
	if err := tx.QueryRow(ctx, insertUser, email, params.Name, params.Mobile, params.Role, params.PasswordHash).Scan(&id); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return directory.User{}, ErrDuplicateEmail
		}
		return directory.User{}, fmt.Errorf("auth: create user: %w", err)
	}

	const insertMeta = `
		INSERT INTO user_meta (user_id, consumer_type, customer_type, translator_type, translator_level, gender, city)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`
	m := params.Meta
	if _, err := tx.Exec(ctx, insertMeta, id, m.ConsumerType, m.CustomerType, m.TranslatorType, m.TranslatorLevel, m.Gender, m.City); err != nil {
		return directory.User{}, fmt.Errorf("auth: create user meta: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return directory.User{}, fmt.Errorf("auth: commit tx: %w", err)
	}
	return r.UserByID(ctx, id)
}
