package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ivankudzin/tgapp/chatguard/internal/domain/enums"
	"github.com/ivankudzin/tgapp/chatguard/internal/domain/model"
)

type WarnRepo struct {
	pool *pgxpool.Pool
}

func NewWarnRepo(pool *pgxpool.Pool) *WarnRepo {
	return &WarnRepo{pool: pool}
}

// IncrementWarn bumps the ladder in a serializable transaction that is retried
// on conflicts. Reaching the limit deletes the row inside the same transaction.
func (r *WarnRepo) IncrementWarn(ctx context.Context, inc model.WarnIncrement) (int, error) {
	if r.pool == nil {
		return 0, fmt.Errorf("postgres pool is nil")
	}
	if inc.UserID == 0 || inc.Limit <= 0 {
		return 0, fmt.Errorf("increment warn: %w", model.ErrValidation)
	}

	var count int
	err := WithSerializableTx(ctx, r.pool, func(ctx context.Context, tx pgx.Tx) error {
		if err := tx.QueryRow(ctx, `
INSERT INTO warn_records (
	tenant_id,
	chat_id,
	category,
	user_id,
	count,
	expires_at
) VALUES ($1, $2, $3, $4, 1, $6)
ON CONFLICT (tenant_id, chat_id, category, user_id) DO UPDATE SET
	count = CASE
		WHEN warn_records.expires_at <= $5 THEN 1
		ELSE warn_records.count + 1
	END,
	expires_at = EXCLUDED.expires_at
RETURNING count
`,
			inc.Key.TenantID,
			inc.Key.ChatID,
			string(inc.Category),
			inc.UserID,
			inc.Now.UTC(),
			inc.ExpiresAt.UTC(),
		).Scan(&count); err != nil {
			return fmt.Errorf("upsert warn: %w", err)
		}

		if count < inc.Limit {
			return nil
		}
		count = inc.Limit
		if _, err := tx.Exec(ctx, `
DELETE FROM warn_records
WHERE tenant_id = $1 AND chat_id = $2 AND category = $3 AND user_id = $4
`, inc.Key.TenantID, inc.Key.ChatID, string(inc.Category), inc.UserID); err != nil {
			return fmt.Errorf("clear warn at limit: %w", err)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return count, nil
}

func (r *WarnRepo) GetWarn(ctx context.Context, key model.ChatKey, category enums.RuleCategory, userID int64) (model.WarnRecord, error) {
	if r.pool == nil {
		return model.WarnRecord{}, fmt.Errorf("postgres pool is nil")
	}

	record := model.WarnRecord{Key: key, Category: category, UserID: userID}
	err := r.pool.QueryRow(ctx, `
SELECT count, expires_at
FROM warn_records
WHERE tenant_id = $1 AND chat_id = $2 AND category = $3 AND user_id = $4
`, key.TenantID, key.ChatID, string(category), userID).Scan(&record.Count, &record.ExpiresAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.WarnRecord{}, model.ErrNotFound
		}
		return model.WarnRecord{}, fmt.Errorf("get warn: %w", err)
	}
	return record, nil
}

func (r *WarnRepo) DeleteExpiredWarns(ctx context.Context, now time.Time) (int64, error) {
	if r.pool == nil {
		return 0, fmt.Errorf("postgres pool is nil")
	}

	tag, err := r.pool.Exec(ctx, `DELETE FROM warn_records WHERE expires_at <= $1`, now.UTC())
	if err != nil {
		return 0, fmt.Errorf("delete expired warns: %w", err)
	}
	return tag.RowsAffected(), nil
}
