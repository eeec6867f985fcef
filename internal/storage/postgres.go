package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"booking_service/internal/models"

	"github.com/jackc/pgconn"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
)

const uniqueViolation = "23505"

var _ Storage = (*PostgresStorage)(nil)

type PostgresStorage struct {
	db *pgxpool.Pool
}

func NewPostgresStorage(ctx context.Context, dbURL string) (*PostgresStorage, error) {
	const op = "storage.NewPostgresStorage"

	conn, err := pgxpool.Connect(ctx, dbURL)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &PostgresStorage{
		db: conn,
	}, nil
}

func (p *PostgresStorage) CreateUser(ctx context.Context, user models.User) (int64, error) {
	const op = "storage.CreateUser"

	var userID int64
	query := fmt.Sprintf(`INSERT INTO %s(name, email, role, password_hash)
	VALUES ($1, $2, $3, $4) RETURNING id;`, usersTable)

	err := p.db.QueryRow(ctx, query, user.Name, user.Email, string(user.Role), user.PasswordHash).Scan(&userID)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return 0, fmt.Errorf("%s: %w", op, ErrUserExists)
		}
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	return userID, nil
}

func (p *PostgresStorage) GetUserByID(ctx context.Context, userID int64) (models.User, error) {
	const op = "storage.GetUserByID"

	query := fmt.Sprintf(`SELECT id, name, email, role, password_hash, created_at, updated_at
	FROM %s WHERE id=$1;`, usersTable)

	user, err := scanUser(p.db.QueryRow(ctx, query, userID))
	if err != nil {
		return models.User{}, fmt.Errorf("%s: %w", op, err)
	}

	return user, nil
}

func (p *PostgresStorage) GetUserByEmail(ctx context.Context, email string) (models.User, error) {
	const op = "storage.GetUserByEmail"

	query := fmt.Sprintf(`SELECT id, name, email, role, password_hash, created_at, updated_at
	FROM %s WHERE email=$1;`, usersTable)

	user, err := scanUser(p.db.QueryRow(ctx, query, email))
	if err != nil {
		return models.User{}, fmt.Errorf("%s: %w", op, err)
	}

	return user, nil
}

func (p *PostgresStorage) ListUsers(ctx context.Context) ([]models.User, error) {
	const op = "storage.ListUsers"

	query := fmt.Sprintf(`SELECT id, name, email, role, password_hash, created_at, updated_at
	FROM %s ORDER BY created_at DESC;`, usersTable)

	rows, err := p.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	var users []models.User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}

		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s (rows): %w", op, err)
	}

	return users, nil
}

func (p *PostgresStorage) UpdatePassword(ctx context.Context, userID int64, passwordHash string) error {
	const op = "storage.UpdatePassword"

	query := fmt.Sprintf(`UPDATE %s SET password_hash=$1, updated_at=now() WHERE id=$2`, usersTable)

	tag, err := p.db.Exec(ctx, query, passwordHash, userID)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%s: %w", op, ErrUserNotFound)
	}

	return nil
}

func (p *PostgresStorage) UpdateUser(ctx context.Context, user models.User) error {
	const op = "storage.UpdateUser"

	query := fmt.Sprintf(`UPDATE %s SET name=$1, email=$2, role=$3, password_hash=$4, updated_at=now()
	WHERE id=$5`, usersTable)

	tag, err := p.db.Exec(ctx, query, user.Name, user.Email, string(user.Role), user.PasswordHash, user.ID)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return fmt.Errorf("%s: %w", op, ErrUserExists)
		}
		return fmt.Errorf("%s: %w", op, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%s: %w", op, ErrUserNotFound)
	}

	return nil
}

func (p *PostgresStorage) DeleteUser(ctx context.Context, userID int64) error {
	const op = "storage.DeleteUser"

	tx, err := p.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, fmt.Sprintf(`DELETE FROM %s WHERE user_id=$1`, refreshTokensTable), userID); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	tag, err := tx.Exec(ctx, fmt.Sprintf(`DELETE FROM %s WHERE id=$1`, usersTable), userID)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%s: %w", op, ErrUserNotFound)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

func (p *PostgresStorage) RevokeAllActive(ctx context.Context, userID int64) (int64, error) {
	const op = "storage.RevokeAllActive"

	tx, err := p.db.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	// An unknown user has nothing to revoke.
	if err := lockUserTx(ctx, tx, userID); err != nil && !errors.Is(err, ErrUserNotFound) {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	tag, err := tx.Exec(ctx, revokeAllActiveQuery(), userID)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	return tag.RowsAffected(), nil
}

func (p *PostgresStorage) StoreRefreshToken(ctx context.Context, userID int64, tokenHash string, expiresAt time.Time) (int64, error) {
	const op = "storage.StoreRefreshToken"

	var id int64
	if err := p.db.QueryRow(ctx, insertRefreshTokenQuery(), userID, tokenHash, expiresAt).Scan(&id); err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	return id, nil
}

func (p *PostgresStorage) ReplaceRefreshTokens(ctx context.Context, userID int64, tokenHash string, expiresAt time.Time) (int64, error) {
	const op = "storage.ReplaceRefreshTokens"

	tx, err := p.db.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := lockUserTx(ctx, tx, userID); err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	if _, err := tx.Exec(ctx, revokeAllActiveQuery(), userID); err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	var id int64
	if err := tx.QueryRow(ctx, insertRefreshTokenQuery(), userID, tokenHash, expiresAt).Scan(&id); err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	return id, nil
}

func (p *PostgresStorage) FindActiveRefreshToken(ctx context.Context, userID int64, tokenHash string, now time.Time) (models.RefreshToken, error) {
	const op = "storage.FindActiveRefreshToken"

	query := fmt.Sprintf(`SELECT id, user_id, token_hash, expires_at, is_revoked, created_at
	FROM %s
	WHERE user_id=$1 AND token_hash=$2 AND is_revoked=FALSE AND expires_at > $3
	LIMIT 1;`, refreshTokensTable)

	var t models.RefreshToken
	err := p.db.QueryRow(ctx, query, userID, tokenHash, now).Scan(
		&t.ID,
		&t.UserID,
		&t.TokenHash,
		&t.ExpiresAt,
		&t.IsRevoked,
		&t.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.RefreshToken{}, fmt.Errorf("%s: %w", op, ErrTokenNotFound)
	}
	if err != nil {
		return models.RefreshToken{}, fmt.Errorf("%s: %w", op, err)
	}

	return t, nil
}

// RotateRefreshToken takes the user row lock first, so it never interleaves
// with another rotation, a login or a logout of the same user. A second
// rotation of the same row then finds it revoked and matches nothing.
func (p *PostgresStorage) RotateRefreshToken(ctx context.Context, oldID, userID int64, newHash string, newExpiresAt time.Time) (int64, error) {
	const op = "storage.RotateRefreshToken"

	tx, err := p.db.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := lockUserTx(ctx, tx, userID); err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	tag, err := tx.Exec(ctx, fmt.Sprintf(`UPDATE %s SET is_revoked=TRUE
	WHERE id=$1 AND user_id=$2 AND is_revoked=FALSE`, refreshTokensTable), oldID, userID)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	if tag.RowsAffected() != 1 {
		return 0, fmt.Errorf("%s: %w", op, ErrTokenNotFound)
	}

	var id int64
	if err := tx.QueryRow(ctx, insertRefreshTokenQuery(), userID, newHash, newExpiresAt).Scan(&id); err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	return id, nil
}

func (p *PostgresStorage) PurgeExpiredRevoked(ctx context.Context, now time.Time) (int64, error) {
	const op = "storage.PurgeExpiredRevoked"

	query := fmt.Sprintf(`DELETE FROM %s WHERE expires_at < $1 AND is_revoked=TRUE`, refreshTokensTable)

	tag, err := p.db.Exec(ctx, query, now)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	return tag.RowsAffected(), nil
}

func (p *PostgresStorage) Close() {
	p.db.Close()
}

// lockUserTx serializes ledger writes per user. Every transaction that
// revokes or inserts refresh rows takes this lock first, so under READ
// COMMITTED no writer misses a row inserted by a concurrent one.
func lockUserTx(ctx context.Context, tx pgx.Tx, userID int64) error {
	var id int64
	err := tx.QueryRow(ctx, fmt.Sprintf(`SELECT id FROM %s WHERE id=$1 FOR UPDATE`, usersTable), userID).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrUserNotFound
	}

	return err
}

func revokeAllActiveQuery() string {
	return fmt.Sprintf(`UPDATE %s SET is_revoked=TRUE WHERE user_id=$1 AND is_revoked=FALSE`, refreshTokensTable)
}

func insertRefreshTokenQuery() string {
	return fmt.Sprintf(`INSERT INTO %s(user_id, token_hash, expires_at, is_revoked)
	VALUES ($1, $2, $3, FALSE) RETURNING id;`, refreshTokensTable)
}

func scanUser(row pgx.Row) (models.User, error) {
	var (
		user models.User
		role string
	)

	err := row.Scan(&user.ID, &user.Name, &user.Email, &role, &user.PasswordHash, &user.CreatedAt, &user.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.User{}, ErrUserNotFound
	}
	if err != nil {
		return models.User{}, err
	}
	user.Role = models.Role(role)

	return user, nil
}
