package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"eventmanagement/internal/payments/domain"
)

// UserRepository implements domain.UserRepository using PostgreSQL.
type UserRepository struct {
	db Executor
}

// NewUserRepository creates a new PostgreSQL user repository.
func NewUserRepository(db Executor) *UserRepository {
	return &UserRepository{db: db}
}

const userColumns = `id, username, credential_hash, account_number, role, created_at`

// Save inserts the user or updates it in place.
func (r *UserRepository) Save(ctx context.Context, user *domain.User) error {
	id, err := uuidArg(user.ID())
	if err != nil {
		return err
	}

	_, err = r.db.Exec(ctx, `
		INSERT INTO payments.users (`+userColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE SET
			username = EXCLUDED.username,
			credential_hash = EXCLUDED.credential_hash,
			account_number = EXCLUDED.account_number,
			role = EXCLUDED.role`,
		id, user.Username(), user.CredentialHash(), user.AccountNumber(), string(user.Role()), user.CreatedAt(),
	)
	if isUniqueViolation(err) {
		return fmt.Errorf("%w: username %q is taken", domain.ErrInvalidUser, user.Username())
	}
	return err
}

// FindByID retrieves a user by ID.
func (r *UserRepository) FindByID(ctx context.Context, id domain.UserID) (*domain.User, error) {
	arg, err := uuidArg(id)
	if err != nil {
		return nil, domain.ErrUserNotFound
	}
	row := r.db.QueryRow(ctx, `SELECT `+userColumns+` FROM payments.users WHERE id = $1`, arg)
	return scanUser(row)
}

// FindByUsername retrieves a user by username.
func (r *UserRepository) FindByUsername(ctx context.Context, username string) (*domain.User, error) {
	row := r.db.QueryRow(ctx, `SELECT `+userColumns+` FROM payments.users WHERE username = $1`, username)
	return scanUser(row)
}

func scanUser(row pgx.Row) (*domain.User, error) {
	var (
		id                                  uuid.UUID
		username, hash, accountNumber, role string
		createdAt                           time.Time
	)
	err := row.Scan(&id, &username, &hash, &accountNumber, &role, &createdAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}

	userID, err := domain.ParseUserID(id.String())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrCorruptData, err)
	}
	return domain.ReconstructUser(userID, username, hash, accountNumber, domain.Role(role), createdAt), nil
}

var _ domain.UserRepository = (*UserRepository)(nil)
