package directory

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	// ErrUserNotFound is returned when no user matches the lookup.
	ErrUserNotFound = errors.New("directory: user not found")
	// ErrLanguageNotFound is returned for an unknown language id.
	ErrLanguageNotFound = errors.New("directory: language not found")
)

const userColumns = `u.id, u.email, u.name, u.mobile, u.role, u.active, u.password_hash, u.created_at,
       COALESCE(m.consumer_type, ''), COALESCE(m.customer_type, ''), COALESCE(m.translator_type, ''),
       COALESCE(m.translator_level, ''), COALESCE(m.gender, ''), COALESCE(m.city, ''),
       COALESCE(m.address, ''), COALESCE(m.instructions, ''), COALESCE(m.not_get_emergency, FALSE),
       COALESCE(m.not_get_nighttime, FALSE), COALESCE(m.not_get_notification, FALSE)`

// PGRepository answers user, profile and proximity lookups from PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

func (r *PGRepository) UserByID(ctx context.Context, id int64) (User, error) {
	query := `SELECT ` + userColumns + ` FROM users u LEFT JOIN user_meta m ON m.user_id = u.id WHERE u.id = $1`
	u, err := scanUser(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return User{}, ErrUserNotFound
		}
		return User{}, fmt.Errorf("directory: get user by id: %w", err)
	}
	return u, nil
}

func (r *PGRepository) UserByEmail(ctx context.Context, email string) (User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return User{}, ErrUserNotFound
	}
	query := `SELECT ` + userColumns + ` FROM users u LEFT JOIN user_meta m ON m.user_id = u.id WHERE lower(u.email) = $1`
	u, err := scanUser(r.pool.QueryRow(ctx, query, email))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return User{}, ErrUserNotFound
		}
		return User{}, fmt.Errorf("directory: get user by email: %w", err)
	}
	return u, nil
}

// ActiveTranslators lists every active translator account.
func (r *PGRepository) ActiveTranslators(ctx context.Context) ([]User, error) {
	query := `SELECT ` + userColumns + `
FROM users u
LEFT JOIN user_meta m ON m.user_id = u.id
WHERE u.role = $1 AND u.active
ORDER BY u.id`
	return r.listUsers(ctx, query, RoleTranslator)
}

// FindTranslators lists active translators of the given population speaking
// the language, matching gender when one is requested and holding any of the
// levels, minus the excluded ids.
func (r *PGRepository) FindTranslators(ctx context.Context, q TranslatorQuery) ([]User, error) {
	if len(q.Levels) == 0 {
		return nil, nil
	}
	exclude := q.Exclude
	if exclude == nil {
		exclude = []int64{}
	}

	query := `SELECT ` + userColumns + `
FROM users u
JOIN user_meta m ON m.user_id = u.id
WHERE u.role = $1
  AND u.active
  AND m.translator_type = $2
  AND m.translator_level = ANY($3)
  AND ($4 = '' OR m.gender = $4)
  AND EXISTS (SELECT 1 FROM user_languages l WHERE l.user_id = u.id AND l.lang_id = $5)
  AND NOT (u.id = ANY($6))
ORDER BY u.id`
	return r.listUsers(ctx, query, RoleTranslator, q.TranslatorType, q.Levels, q.Gender, q.LanguageID, exclude)
}

// Blacklist returns the translators the owner refuses to work with.
func (r *PGRepository) Blacklist(ctx context.Context, ownerID int64) ([]int64, error) {
	return r.listIDs(ctx, `SELECT translator_id FROM users_blacklist WHERE user_id = $1 ORDER BY translator_id`, ownerID)
}

// TranslatorLanguages returns the language ids a translator works in.
func (r *PGRepository) TranslatorLanguages(ctx context.Context, userID int64) ([]int64, error) {
	return r.listIDs(ctx, `SELECT lang_id FROM user_languages WHERE user_id = $1 ORDER BY lang_id`, userID)
}

func (r *PGRepository) LanguageName(ctx context.Context, langID int64) (string, error) {
	var name string
	if err := r.pool.QueryRow(ctx, `SELECT name FROM languages WHERE id = $1`, langID).Scan(&name); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", ErrLanguageNotFound
		}
		return "", fmt.Errorf("directory: get language: %w", err)
	}
	return name, nil
}

// TownsOverlap reports whether the customer and translator share a town.
func (r *PGRepository) TownsOverlap(ctx context.Context, customerID, translatorID int64) (bool, error) {
	const query = `
SELECT EXISTS (
    SELECT 1
    FROM user_towns c
    JOIN user_towns t ON t.town_id = c.town_id
    WHERE c.user_id = $1 AND t.user_id = $2
)`
	var ok bool
	if err := r.pool.QueryRow(ctx, query, customerID, translatorID).Scan(&ok); err != nil {
		return false, fmt.Errorf("directory: check towns: %w", err)
	}
	return ok, nil
}

func (r *PGRepository) listUsers(ctx context.Context, query string, args ...any) ([]User, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("directory: list users: %w", err)
	}
	defer rows.Close()

	users := make([]User, 0, 16)
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("directory: scan user: %w", err)
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("directory: iterate users: %w", err)
	}
	return users, nil
}

func (r *PGRepository) listIDs(ctx context.Context, query string, args ...any) ([]int64, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("directory: list ids: %w", err)
	}
	defer rows.Close()

	ids := make([]int64, 0, 8)
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("directory: scan id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("directory: iterate ids: %w", err)
	}
	return ids, nil
}

func scanUser(row pgx.Row) (User, error) {
	var u User
	err := row.Scan(
		&u.ID, &u.Email, &u.Name, &u.Mobile, &u.Role, &u.Active, &u.PasswordHash, &u.CreatedAt,
		&u.Meta.ConsumerType, &u.Meta.CustomerType, &u.Meta.TranslatorType, &u.Meta.TranslatorLevel,
		&u.Meta.Gender, &u.Meta.City, &u.Meta.Address, &u.Meta.Instructions, &u.Meta.NotGetEmergency,
		&u.Meta.NotGetNighttime, &u.Meta.NotGetNotification,
	)
	return u, err
}
