package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ivankudzin/tgapp/chatguard/internal/domain/enums"
	"github.com/ivankudzin/tgapp/chatguard/internal/domain/model"
)

// DeletionRepo stores engine-sent messages waiting for deletion and the
// per-chat auto-delete settings.
type DeletionRepo struct {
	pool *pgxpool.Pool
}

func NewDeletionRepo(pool *pgxpool.Pool) *DeletionRepo {
	return &DeletionRepo{pool: pool}
}

func (r *DeletionRepo) ScheduleDeletion(ctx context.Context, deletion model.ScheduledDeletion) error {
	if r.pool == nil {
		return fmt.Errorf("postgres pool is nil")
	}
	if deletion.ChatID == 0 || deletion.MessageID <= 0 {
		return fmt.Errorf("schedule deletion: %w", model.ErrValidation)
	}

	if _, err := r.pool.Exec(ctx, `
INSERT INTO scheduled_deletions (chat_id, message_id, kind, due_at, status)
VALUES ($1, $2, $3, $4, 'pending')
ON CONFLICT (chat_id, message_id) DO UPDATE SET
	kind = EXCLUDED.kind,
	due_at = EXCLUDED.due_at,
	status = 'pending'
`, deletion.ChatID, deletion.MessageID, string(deletion.Kind), deletion.DueAt.UTC()); err != nil {
		return fmt.Errorf("schedule deletion: %w", err)
	}
	return nil
}

func (r *DeletionRepo) ListDueDeletions(ctx context.Context, now time.Time, limit int) ([]model.ScheduledDeletion, error) {
	if r.pool == nil {
		return nil, fmt.Errorf("postgres pool is nil")
	}
	if limit <= 0 {
		limit = 200
	}

	rows, err := r.pool.Query(ctx, `
SELECT chat_id, message_id, kind, due_at, status
FROM scheduled_deletions
WHERE due_at <= $1
ORDER BY due_at, chat_id, message_id
LIMIT $2
`, now.UTC(), limit)
	if err != nil {
		return nil, fmt.Errorf("list due deletions: %w", err)
	}
	defer rows.Close()

	out := make([]model.ScheduledDeletion, 0)
	for rows.Next() {
		var (
			item   model.ScheduledDeletion
			kind   string
			status string
		)
		if err := rows.Scan(&item.ChatID, &item.MessageID, &kind, &item.DueAt, &status); err != nil {
			return nil, fmt.Errorf("scan scheduled deletion: %w", err)
		}
		item.Kind = enums.DeletionKind(kind)
		item.Status = enums.DeletionStatus(status)
		out = append(out, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate scheduled deletions: %w", err)
	}
	return out, nil
}

func (r *DeletionRepo) DeleteScheduled(ctx context.Context, chatID int64, messageID int) error {
	if r.pool == nil {
		return fmt.Errorf("postgres pool is nil")
	}
	if _, err := r.pool.Exec(ctx, `DELETE FROM scheduled_deletions WHERE chat_id = $1 AND message_id = $2`, chatID, messageID); err != nil {
		return fmt.Errorf("delete scheduled deletion: %w", err)
	}
	return nil
}

func (r *DeletionRepo) MarkDeletionFailed(ctx context.Context, chatID int64, messageID int) error {
	if r.pool == nil {
		return fmt.Errorf("postgres pool is nil")
	}
	tag, err := r.pool.Exec(ctx, `
UPDATE scheduled_deletions SET status = 'failed'
WHERE chat_id = $1 AND message_id = $2
`, chatID, messageID)
	if err != nil {
		return fmt.Errorf("mark deletion failed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return model.ErrNotFound
	}
	return nil
}

func (r *DeletionRepo) GetAutoDeleteSetting(ctx context.Context, key model.ChatKey, kind enums.DeletionKind) (model.AutoDeleteSetting, bool, error) {
	if r.pool == nil {
		return model.AutoDeleteSetting{}, false, fmt.Errorf("postgres pool is nil")
	}

	rows, err := r.pool.Query(ctx, `
SELECT enabled, ttl_seconds
FROM autodelete_settings
WHERE tenant_id = $1 AND chat_id = $2 AND kind = $3
`, key.TenantID, key.ChatID, string(kind))
	if err != nil {
		return model.AutoDeleteSetting{}, false, fmt.Errorf("get autodelete setting: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return model.AutoDeleteSetting{}, false, fmt.Errorf("get autodelete setting: %w", err)
		}
		return model.AutoDeleteSetting{}, false, nil
	}

	setting := model.AutoDeleteSetting{Kind: kind}
	var ttlSeconds int64
	if err := rows.Scan(&setting.Enabled, &ttlSeconds); err != nil {
		return model.AutoDeleteSetting{}, false, fmt.Errorf("scan autodelete setting: %w", err)
	}
	setting.TTL = time.Duration(ttlSeconds) * time.Second
	return setting, true, nil
}

func (r *DeletionRepo) UpsertAutoDeleteSetting(ctx context.Context, key model.ChatKey, setting model.AutoDeleteSetting) error {
	if r.pool == nil {
		return fmt.Errorf("postgres pool is nil")
	}
	if _, ok := enums.ParseDeletionKind(string(setting.Kind)); !ok {
		return fmt.Errorf("upsert autodelete setting: %w", model.ErrValidation)
	}

	if _, err := r.pool.Exec(ctx, `
INSERT INTO autodelete_settings (tenant_id, chat_id, kind, enabled, ttl_seconds)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (tenant_id, chat_id, kind) DO UPDATE SET
	enabled = EXCLUDED.enabled,
	ttl_seconds = EXCLUDED.ttl_seconds
`, key.TenantID, key.ChatID, string(setting.Kind), setting.Enabled, int64(setting.TTL/time.Second)); err != nil {
		return fmt.Errorf("upsert autodelete setting: %w", err)
	}
	return nil
}
