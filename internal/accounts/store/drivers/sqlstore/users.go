package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/aussiebroadwan/accounts/internal/accounts/domain"
	"github.com/aussiebroadwan/accounts/internal/accounts/store"
)

const userColumns = `id, email, hashed_password, first_name, last_name,
	is_active, is_superuser, is_verified, profile_picture_path,
	otp_enabled, otp_verified, otp_base32, otp_auth_url, otp_enabled_at,
	created_at, updated_at`

type usersRepo struct {
	db  DBTX
	d   Dialect
	now func() time.Time
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (domain.User, error) {
	var (
		u                              domain.User
		otpEnabledAt, created, updated dbTime
	)
	err := row.Scan(
		&u.ID, &u.Email, &u.HashedPassword, &u.FirstName, &u.LastName,
		&u.IsActive, &u.IsSuperuser, &u.IsVerified, &u.ProfilePicturePath,
		&u.OTPEnabled, &u.OTPVerified, &u.OTPBase32, &u.OTPAuthURL, &otpEnabledAt,
		&created, &updated,
	)
	if err != nil {
		return domain.User{}, mapNotFound(err)
	}
	if otpEnabledAt.Valid {
		t := otpEnabledAt.Time
		u.OTPEnabledAt = &t
	}
	u.CreatedAt = created.Time
	u.UpdatedAt = updated.Time
	return u, nil
}

func (r *usersRepo) GetUserByID(ctx context.Context, id string) (domain.User, error) {
	q := r.d.Rebind(`SELECT ` + userColumns + ` FROM users WHERE id = ?`)
	return scanUser(r.db.QueryRowContext(ctx, q, id))
}

func (r *usersRepo) GetUserByEmail(ctx context.Context, email string) (domain.User, error) {
	q := r.d.Rebind(`SELECT ` + userColumns + ` FROM users WHERE ` + r.d.EmailMatch)
	return scanUser(r.db.QueryRowContext(ctx, q, email))
}

func (r *usersRepo) CreateUser(ctx context.Context, u domain.User) error {
	now := r.now()
	if u.CreatedAt.IsZero() {
		u.CreatedAt = now
	}
	if u.UpdatedAt.IsZero() {
		u.UpdatedAt = u.CreatedAt
	}

	q := r.d.Rebind(`INSERT INTO users (` + userColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	_, err := r.db.ExecContext(ctx, q,
		u.ID, u.Email, u.HashedPassword, u.FirstName, u.LastName,
		u.IsActive, u.IsSuperuser, u.IsVerified, u.ProfilePicturePath,
		u.OTPEnabled, u.OTPVerified, u.OTPBase32, u.OTPAuthURL, nullTime(u.OTPEnabledAt),
		u.CreatedAt, u.UpdatedAt,
	)
	if err != nil {
		if r.d.IsUniqueViolation != nil && r.d.IsUniqueViolation(err) {
			return fmt.Errorf("%w: %s", store.ErrAlreadyExists, u.Email)
		}
		return err
	}
	return nil
}

// UpdateUser issues a single UPDATE ... RETURNING so the write and the
// snapshot come from the same statement.
func (r *usersRepo) UpdateUser(ctx context.Context, id string, p domain.UserPatch) (domain.User, error) {
	var (
		sets []string
		args []any
	)
	set := func(col string, v any) {
		sets = append(sets, col+" = ?")
		args = append(args, v)
	}

	if p.HashedPassword != nil {
		set("hashed_password", *p.HashedPassword)
	}
	if p.IsActive != nil {
		set("is_active", *p.IsActive)
	}
	if p.IsSuperuser != nil {
		set("is_superuser", *p.IsSuperuser)
	}
	if p.IsVerified != nil {
		set("is_verified", *p.IsVerified)
	}
	if p.ProfilePicturePath != nil {
		set("profile_picture_path", *p.ProfilePicturePath)
	}
	if p.OTPEnabled != nil {
		set("otp_enabled", *p.OTPEnabled)
	}
	if p.OTPVerified != nil {
		set("otp_verified", *p.OTPVerified)
	}
	if p.OTPBase32 != nil {
		set("otp_base32", *p.OTPBase32)
	}
	if p.OTPAuthURL != nil {
		set("otp_auth_url", *p.OTPAuthURL)
	}
	switch {
	case p.ClearOTPEnabledAt:
		set("otp_enabled_at", sql.NullTime{})
	case p.OTPEnabledAt != nil:
		set("otp_enabled_at", p.OTPEnabledAt.UTC())
	}

	if len(sets) == 0 {
		return r.GetUserByID(ctx, id)
	}

	set("updated_at", r.now())
	args = append(args, id)

	q := r.d.Rebind(`UPDATE users SET ` + strings.Join(sets, ", ") +
		` WHERE id = ? RETURNING ` + userColumns)
	return scanUser(r.db.QueryRowContext(ctx, q, args...))
}

func (r *usersRepo) DeleteUser(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, r.d.Rebind(`DELETE FROM users WHERE id = ?`), id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (r *usersRepo) CountUsers(ctx context.Context) (int64, error) {
	var n int64
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM users`).Scan(&n)
	return n, err
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}
