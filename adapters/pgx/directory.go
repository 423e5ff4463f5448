package pgx

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/lborres/bantay/core"
	"github.com/lborres/bantay/pkg/crypto"
)

const selectUser = `SELECT id, user_type, username, name, email, role, department, phone, status, password_hash, created_at, updated_at FROM public.bantay_users`

const uniqueViolation = "23505"

func (a *Adapter) Create(ctx context.Context, entry *core.DirectoryEntry) error {
	if entry.User.ID == "" {
		id, err := crypto.NewID()
		if err != nil {
			return err
		}
		entry.User.ID = id
	}

	u := entry.User
	q := `INSERT INTO public.bantay_users (id, user_type, username, name, email, role, department, phone, status, password_hash)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10) RETURNING created_at, updated_at`
	err := a.pool.QueryRow(ctx, q,
		u.ID, string(u.UserType), u.Username, u.Name, u.Email, u.Role, u.Department, u.Phone, u.Status, entry.PasswordHash,
	).Scan(&entry.CreatedAt, &entry.UpdatedAt)
	if isUniqueViolation(err) {
		return core.ErrUserExists
	}
	return err
}

func (a *Adapter) FindByUsername(ctx context.Context, class core.IdentityClass, username string) (*core.DirectoryEntry, error) {
	return a.findOne(ctx, selectUser+` WHERE user_type = $1 AND lower(username) = lower($2)`, string(class), username)
}

func (a *Adapter) FindByEmail(ctx context.Context, class core.IdentityClass, email string) (*core.DirectoryEntry, error) {
	if email == "" {
		return nil, core.ErrUserNotFound
	}
	return a.findOne(ctx, selectUser+` WHERE user_type = $1 AND lower(email) = lower($2) ORDER BY created_at LIMIT 1`, string(class), email)
}

func (a *Adapter) FindByID(ctx context.Context, class core.IdentityClass, id string) (*core.DirectoryEntry, error) {
	return a.findOne(ctx, selectUser+` WHERE user_type = $1 AND id = $2`, string(class), id)
}

func (a *Adapter) Update(ctx context.Context, user *core.UserRecord) error {
	q := `UPDATE public.bantay_users SET username = $1, name = $2, email = $3, role = $4, department = $5, phone = $6, status = $7, updated_at = now()
		WHERE user_type = $8 AND id = $9`
	tag, err := a.pool.Exec(ctx, q,
		user.Username, user.Name, user.Email, user.Role, user.Department, user.Phone, user.Status, string(user.UserType), user.ID,
	)
	if isUniqueViolation(err) {
		return core.ErrUserExists
	}
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return core.ErrUserNotFound
	}
	return nil
}

func (a *Adapter) SetPassword(ctx context.Context, class core.IdentityClass, id, passwordHash string) error {
	tag, err := a.pool.Exec(ctx,
		`UPDATE public.bantay_users SET password_hash = $1, updated_at = now() WHERE user_type = $2 AND id = $3`,
		passwordHash, string(class), id,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return core.ErrUserNotFound
	}
	return nil
}

func (a *Adapter) findOne(ctx context.Context, q string, args ...any) (*core.DirectoryEntry, error) {
	row := a.pool.QueryRow(ctx, q, args...)
	entry, err := scanEntry(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, core.ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}
	return entry, nil
}

func scanEntry(row pgx.Row) (*core.DirectoryEntry, error) {
	var (
		e        core.DirectoryEntry
		userType string
	)
	err := row.Scan(
		&e.User.ID, &userType, &e.User.Username, &e.User.Name, &e.User.Email,
		&e.User.Role, &e.User.Department, &e.User.Phone, &e.User.Status,
		&e.PasswordHash, &e.CreatedAt, &e.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	e.User.UserType = core.IdentityClass(userType)
	return &e, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}
