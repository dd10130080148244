package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgconn"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"streamgate/internal/domain"
	"streamgate/internal/domain/model"
	"streamgate/internal/domain/ports/repository"
)

// Ensure implementation satisfies the interface.
var _ repository.AccessCodeRepository = (*accessCodeRepo)(nil)

type accessCodeRepo struct {
	pool *pgxpool.Pool
}

func NewAccessCodeRepo(pool *pgxpool.Pool) repository.AccessCodeRepository {
	return &accessCodeRepo{pool: pool}
}

const accessCodeColumns = `
id, code, prefix, created_at, expires_at, used_at, used_by,
auto_expire_on_use, max_uses, current_uses, revoked, revoked_at, expiry_logged`

func (r *accessCodeRepo) Save(ctx context.Context, tx repository.Tx, code *model.AccessCode) error {
	const q = `
INSERT INTO access_codes (id, code, prefix, created_at, expires_at, auto_expire_on_use, max_uses, current_uses, revoked, expiry_logged)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10);
`
	_, err := execSQL(ctx, r.pool, tx, q,
		code.ID, code.Code, code.Prefix, code.CreatedAt, code.ExpiresAt,
		code.AutoExpireOnUse, code.MaxUses, code.CurrentUses, code.Revoked, code.ExpiryLogged,
	)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return domain.ErrAlreadyExists
	}
	return err
}

func (r *accessCodeRepo) FindByCode(ctx context.Context, tx repository.Tx, codeStr string) (*model.AccessCode, error) {
	const q = `
SELECT ` + accessCodeColumns + `
  FROM access_codes
 WHERE code = $1;
`
	row, err := pickRow(ctx, r.pool, tx, q, codeStr)
	if err != nil {
		return nil, err
	}
	return scanAccessCode(row)
}

// Redeem is the single atomic conditional consume. The consumability
// predicate lives in the WHERE clause, so under concurrent validation the
// row lock serializes attempts and only the permitted number ever match.
func (r *accessCodeRepo) Redeem(ctx context.Context, tx repository.Tx, codeStr, usedBy string, now time.Time) (*model.AccessCode, error) {
	const q = `
UPDATE access_codes
   SET current_uses = current_uses + 1,
       used_at = COALESCE(used_at, $2),
       used_by = COALESCE(used_by, NULLIF($3, ''))
 WHERE code = $1
   AND revoked = FALSE
   AND expires_at > $2
   AND NOT (auto_expire_on_use AND current_uses >= 1)
   AND (max_uses IS NULL OR current_uses < max_uses)
RETURNING ` + accessCodeColumns + `;
`
	row, err := pickRow(ctx, r.pool, tx, q, codeStr, now, usedBy)
	if err != nil {
		return nil, err
	}
	code, err := scanAccessCode(row)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.ErrCodeNotFound
		}
		return nil, err
	}
	return code, nil
}

func (r *accessCodeRepo) MarkRevoked(ctx context.Context, tx repository.Tx, codeStr string, now time.Time) (bool, *model.AccessCode, error) {
	const q = `
UPDATE access_codes
   SET revoked = TRUE, revoked_at = $2
 WHERE code = $1 AND revoked = FALSE
RETURNING ` + accessCodeColumns + `;
`
	row, err := pickRow(ctx, r.pool, tx, q, codeStr, now)
	if err != nil {
		return false, nil, err
	}
	code, err := scanAccessCode(row)
	if err == nil {
		return true, code, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return false, nil, err
	}

	// Nothing transitioned: the code is already revoked, or unknown.
	code, err = r.FindByCode(ctx, tx, codeStr)
	if err != nil {
		return false, nil, err
	}
	return false, code, nil
}

func (r *accessCodeRepo) List(ctx context.Context, tx repository.Tx, page model.Page) ([]*model.AccessCode, int, error) {
	const countQ = `SELECT COUNT(*) FROM access_codes;`
	row, err := pickRow(ctx, r.pool, tx, countQ)
	if err != nil {
		return nil, 0, err
	}
	var total int
	if err := row.Scan(&total); err != nil {
		return nil, 0, domain.ErrReadDatabaseRow
	}

	const q = `
SELECT ` + accessCodeColumns + `
  FROM access_codes
 ORDER BY created_at DESC
 LIMIT $1 OFFSET $2;
`
	rows, err := pickRows(ctx, r.pool, tx, q, page.Limit, page.Offset())
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var codes []*model.AccessCode
	for rows.Next() {
		code, err := scanAccessCodeValues(rows)
		if err != nil {
			return nil, 0, err
		}
		codes = append(codes, code)
	}
	return codes, total, rows.Err()
}

func (r *accessCodeRepo) ClaimExpired(ctx context.Context, tx repository.Tx, now time.Time, limit int) ([]*model.AccessCode, error) {
	const q = `
UPDATE access_codes
   SET expiry_logged = TRUE
 WHERE id IN (
       SELECT id FROM access_codes
        WHERE expiry_logged = FALSE AND revoked = FALSE AND expires_at <= $1
        ORDER BY expires_at
        LIMIT $2
          FOR UPDATE SKIP LOCKED)
RETURNING ` + accessCodeColumns + `;
`
	rows, err := pickRows(ctx, r.pool, tx, q, now, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var codes []*model.AccessCode
	for rows.Next() {
		code, err := scanAccessCodeValues(rows)
		if err != nil {
			return nil, err
		}
		codes = append(codes, code)
	}
	return codes, rows.Err()
}

func scanAccessCode(row pgx.Row) (*model.AccessCode, error) {
	var c model.AccessCode
	err := row.Scan(
		&c.ID, &c.Code, &c.Prefix, &c.CreatedAt, &c.ExpiresAt, &c.UsedAt, &c.UsedBy,
		&c.AutoExpireOnUse, &c.MaxUses, &c.CurrentUses, &c.Revoked, &c.RevokedAt, &c.ExpiryLogged,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, domain.ErrReadDatabaseRow
	}
	return &c, nil
}

func scanAccessCodeValues(rows pgx.Rows) (*model.AccessCode, error) {
	var c model.AccessCode
	err := rows.Scan(
		&c.ID, &c.Code, &c.Prefix, &c.CreatedAt, &c.ExpiresAt, &c.UsedAt, &c.UsedBy,
		&c.AutoExpireOnUse, &c.MaxUses, &c.CurrentUses, &c.Revoked, &c.RevokedAt, &c.ExpiryLogged,
	)
	if err != nil {
		return nil, domain.ErrReadDatabaseRow
	}
	return &c, nil
}
