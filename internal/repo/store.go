// Package repo selects the storage backend shared by the binaries.
package repo

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/ivankudzin/tgapp/chatguard/internal/domain/enums"
	"github.com/ivankudzin/tgapp/chatguard/internal/domain/model"
	"github.com/ivankudzin/tgapp/chatguard/internal/repo/memory"
	"github.com/ivankudzin/tgapp/chatguard/internal/repo/postgres"
)

type Store interface {
	BindChat(ctx context.Context, chatID, tenantID int64) error
	TenantForChat(ctx context.Context, chatID int64) (int64, error)

	GetChatConfig(ctx context.Context, key model.ChatKey) (model.ChatModerationConfig, error)
	UpsertRule(ctx context.Context, key model.ChatKey, rule model.RuleConfig) error
	AddWhitelist(ctx context.Context, key model.ChatKey, category enums.RuleCategory, entries []string) ([]string, error)
	RemoveWhitelist(ctx context.Context, key model.ChatKey, category enums.RuleCategory, entries []string) ([]string, error)

	IncrementWarn(ctx context.Context, inc model.WarnIncrement) (int, error)
	DeleteExpiredWarns(ctx context.Context, now time.Time) (int64, error)

	UpsertPunishment(ctx context.Context, record model.PunishmentRecord) error
	ListPunishments(ctx context.Context, after model.PunishmentCursor, limit int) ([]model.PunishmentRecord, error)
	ListChatPunishments(ctx context.Context, key model.ChatKey) ([]model.PunishmentRecord, error)
	DeletePunishment(ctx context.Context, record model.PunishmentRecord) (bool, error)

	ScheduleDeletion(ctx context.Context, deletion model.ScheduledDeletion) error
	ListDueDeletions(ctx context.Context, now time.Time, limit int) ([]model.ScheduledDeletion, error)
	DeleteScheduled(ctx context.Context, chatID int64, messageID int) error
	MarkDeletionFailed(ctx context.Context, chatID int64, messageID int) error

	GetAutoDeleteSetting(ctx context.Context, key model.ChatKey, kind enums.DeletionKind) (model.AutoDeleteSetting, bool, error)
	UpsertAutoDeleteSetting(ctx context.Context, key model.ChatKey, setting model.AutoDeleteSetting) error
}

var (
	_ Store = (*memory.Store)(nil)
	_ Store = (*postgres.Store)(nil)
)

// Open connects to Postgres and applies migrations. An empty dsn selects the
// in-process store, which loses everything on restart.
func Open(ctx context.Context, dsn string, logger *zap.Logger) (Store, func(), error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	if strings.TrimSpace(dsn) == "" {
		logger.Warn("POSTGRES_DSN is empty, using in-memory store")
		return memory.NewStore(), func() {}, nil
	}

	pool, err := postgres.NewPool(ctx, dsn)
	if err != nil {
		return nil, nil, fmt.Errorf("init postgres: %w", err)
	}
	if err := postgres.Migrate(ctx, pool); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("migrate postgres: %w", err)
	}

	return postgres.NewStore(pool), pool.Close, nil
}
