package mysql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"auction-site/internal/domain"

	mysqldriver "github.com/go-sql-driver/mysql"
)

// errDuplicateEntry is MySQL's ER_DUP_ENTRY.
const errDuplicateEntry = 1062

type MySQLUserRepository struct {
	db *sql.DB
}

func NewMySQLUserRepository(db *sql.DB) *MySQLUserRepository {
	return &MySQLUserRepository{db: db}
}

func (r *MySQLUserRepository) CreateUser(ctx context.Context, user *domain.User) error {
	query := `INSERT INTO users (id, email, disabled, created_at) VALUES (?, ?, ?, ?)`
	_, err := r.db.ExecContext(ctx, query, user.ID, user.Email, user.Disabled, user.CreatedAt)
	if err != nil {
		var myErr *mysqldriver.MySQLError
		if errors.As(err, &myErr) && myErr.Number == errDuplicateEntry {
			return fmt.Errorf("%s: %w", user.Email, domain.ErrEmailTaken)
		}
		return err
	}
	return nil
}

func (r *MySQLUserRepository) GetUser(ctx context.Context, userID string) (*domain.User, error) {
	return r.getBy(ctx, "id", userID)
}

func (r *MySQLUserRepository) GetUserByEmail(ctx context.Context, email string) (*domain.User, error) {
	return r.getBy(ctx, "email", email)
}

func (r *MySQLUserRepository) getBy(ctx context.Context, column, value string) (*domain.User, error) {
	query := `SELECT id, email, disabled, created_at FROM users WHERE ` + column + ` = ?`

	var user domain.User
	err := r.db.QueryRowContext(ctx, query, value).Scan(&user.ID, &user.Email, &user.Disabled, &user.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("user %s: %w", value, domain.ErrNotFound)
		}
		return nil, err
	}
	return &user, nil
}
