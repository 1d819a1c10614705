package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ivankudzin/tgapp/chatguard/internal/domain/enums"
	"github.com/ivankudzin/tgapp/chatguard/internal/domain/model"
)

type PunishmentRepo struct {
	pool *pgxpool.Pool
}

func NewPunishmentRepo(pool *pgxpool.Pool) *PunishmentRepo {
	return &PunishmentRepo{pool: pool}
}

// UpsertPunishment replaces the record for (chat, category, user).
// created_at is stored at microsecond precision so compare-and-delete matches
// what a later read returns.
func (r *PunishmentRepo) UpsertPunishment(ctx context.Context, record model.PunishmentRecord) error {
	if r.pool == nil {
		return fmt.Errorf("postgres pool is nil")
	}
	if record.UserID == 0 {
		return fmt.Errorf("upsert punishment: %w", model.ErrValidation)
	}

	var expiresAt *time.Time
	if record.ExpiresAt != nil {
		value := record.ExpiresAt.UTC()
		expiresAt = &value
	}

	if _, err := r.pool.Exec(ctx, `
INSERT INTO punishment_records (
	tenant_id,
	chat_id,
	category,
	user_id,
	kind,
	expires_at,
	created_at
) VALUES ($1, $2, $3, $4, $5, $6, $7)
ON CONFLICT (tenant_id, chat_id, category, user_id) DO UPDATE SET
	kind = EXCLUDED.kind,
	expires_at = EXCLUDED.expires_at,
	created_at = EXCLUDED.created_at
`,
		record.Key.TenantID,
		record.Key.ChatID,
		string(record.Category),
		record.UserID,
		string(record.Kind),
		expiresAt,
		record.CreatedAt.UTC().Truncate(time.Microsecond),
	); err != nil {
		return fmt.Errorf("upsert punishment: %w", err)
	}
	return nil
}

// ListPunishments returns the next page after the cursor in key order.
func (r *PunishmentRepo) ListPunishments(ctx context.Context, after model.PunishmentCursor, limit int) ([]model.PunishmentRecord, error) {
	if r.pool == nil {
		return nil, fmt.Errorf("postgres pool is nil")
	}
	if limit <= 0 {
		limit = 500
	}

	rows, err := r.pool.Query(ctx, `
SELECT tenant_id, chat_id, category, user_id, kind, expires_at, created_at
FROM punishment_records
WHERE $5 OR (tenant_id, chat_id, category, user_id) > ($1, $2, $3, $4)
ORDER BY tenant_id, chat_id, category, user_id
LIMIT $6
`,
		after.TenantID,
		after.ChatID,
		string(after.Category),
		after.UserID,
		after == (model.PunishmentCursor{}),
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list punishments: %w", err)
	}
	return collectPunishments(rows)
}

func (r *PunishmentRepo) ListChatPunishments(ctx context.Context, key model.ChatKey) ([]model.PunishmentRecord, error) {
	if r.pool == nil {
		return nil, fmt.Errorf("postgres pool is nil")
	}

	rows, err := r.pool.Query(ctx, `
SELECT tenant_id, chat_id, category, user_id, kind, expires_at, created_at
FROM punishment_records
WHERE tenant_id = $1 AND chat_id = $2
ORDER BY category, user_id
`, key.TenantID, key.ChatID)
	if err != nil {
		return nil, fmt.Errorf("list chat punishments: %w", err)
	}
	return collectPunishments(rows)
}

// DeletePunishment removes the record only if it was not replaced since it was read.
func (r *PunishmentRepo) DeletePunishment(ctx context.Context, record model.PunishmentRecord) (bool, error) {
	if r.pool == nil {
		return false, fmt.Errorf("postgres pool is nil")
	}

	tag, err := r.pool.Exec(ctx, `
DELETE FROM punishment_records
WHERE tenant_id = $1 AND chat_id = $2 AND category = $3 AND user_id = $4 AND created_at = $5
`,
		record.Key.TenantID,
		record.Key.ChatID,
		string(record.Category),
		record.UserID,
		record.CreatedAt.UTC(),
	)
	if err != nil {
		return false, fmt.Errorf("delete punishment: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

func collectPunishments(rows pgx.Rows) ([]model.PunishmentRecord, error) {
	defer rows.Close()

	out := make([]model.PunishmentRecord, 0)
	for rows.Next() {
		var (
			record   model.PunishmentRecord
			category string
			kind     string
		)
		if err := rows.Scan(
			&record.Key.TenantID,
			&record.Key.ChatID,
			&category,
			&record.UserID,
			&kind,
			&record.ExpiresAt,
			&record.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan punishment: %w", err)
		}
		record.Category = enums.RuleCategory(category)
		record.Kind = enums.PunishmentKind(kind)
		out = append(out, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate punishments: %w", err)
	}
	return out, nil
}
