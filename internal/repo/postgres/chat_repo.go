package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ivankudzin/tgapp/chatguard/internal/domain/model"
)

// ChatRepo maps chats to the tenant whose settings govern them.
type ChatRepo struct {
	pool *pgxpool.Pool
}

func NewChatRepo(pool *pgxpool.Pool) *ChatRepo {
	return &ChatRepo{pool: pool}
}

func (r *ChatRepo) BindChat(ctx context.Context, chatID, tenantID int64) error {
	if r.pool == nil {
		return fmt.Errorf("postgres pool is nil")
	}
	if chatID == 0 || tenantID <= 0 {
		return fmt.Errorf("bind chat: %w", model.ErrValidation)
	}

	if _, err := r.pool.Exec(ctx, `
INSERT INTO chat_tenants (chat_id, tenant_id, created_at)
VALUES ($1, $2, NOW())
ON CONFLICT (chat_id) DO UPDATE SET
	tenant_id = EXCLUDED.tenant_id
`, chatID, tenantID); err != nil {
		return fmt.Errorf("bind chat: %w", err)
	}
	return nil
}

func (r *ChatRepo) TenantForChat(ctx context.Context, chatID int64) (int64, error) {
	if r.pool == nil {
		return 0, fmt.Errorf("postgres pool is nil")
	}

	var tenantID int64
	err := r.pool.QueryRow(ctx, `SELECT tenant_id FROM chat_tenants WHERE chat_id = $1`, chatID).Scan(&tenantID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, model.ErrNotFound
		}
		return 0, fmt.Errorf("get chat tenant: %w", err)
	}
	return tenantID, nil
}
