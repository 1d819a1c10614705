package autodelete

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ivankudzin/tgapp/chatguard/internal/domain/enums"
	"github.com/ivankudzin/tgapp/chatguard/internal/domain/model"
)

const defaultTTL = 10 * time.Minute

type SettingsStore interface {
	GetAutoDeleteSetting(ctx context.Context, key model.ChatKey, kind enums.DeletionKind) (model.AutoDeleteSetting, bool, error)
	UpsertAutoDeleteSetting(ctx context.Context, key model.ChatKey, setting model.AutoDeleteSetting) error
}

type DeletionStore interface {
	ScheduleDeletion(ctx context.Context, deletion model.ScheduledDeletion) error
}

type Config struct {
	DefaultTTL time.Duration
}

// Service registers engine-sent messages for delayed deletion.
type Service struct {
	settings  SettingsStore
	deletions DeletionStore
	cfg       Config
	now       func() time.Time
}

func NewService(settings SettingsStore, deletions DeletionStore, cfg Config) *Service {
	if cfg.DefaultTTL <= 0 {
		cfg.DefaultTTL = defaultTTL
	}
	return &Service{
		settings:  settings,
		deletions: deletions,
		cfg:       cfg,
		now:       time.Now,
	}
}

// Setting returns the effective setting. Unconfigured kinds are enabled with
// the default TTL.
func (s *Service) Setting(ctx context.Context, key model.ChatKey, kind enums.DeletionKind) (model.AutoDeleteSetting, error) {
	if _, ok := enums.ParseDeletionKind(string(kind)); !ok {
		return model.AutoDeleteSetting{}, model.ErrValidation
	}

	fallback := model.AutoDeleteSetting{Kind: kind, Enabled: true, TTL: s.cfg.DefaultTTL}
	if s.settings == nil {
		return fallback, nil
	}

	setting, ok, err := s.settings.GetAutoDeleteSetting(ctx, key, kind)
	if err != nil {
		return model.AutoDeleteSetting{}, fmt.Errorf("get autodelete setting: %w", err)
	}
	if !ok {
		return fallback, nil
	}
	if setting.TTL <= 0 {
		setting.TTL = s.cfg.DefaultTTL
	}
	return setting, nil
}

func (s *Service) UpdateSetting(ctx context.Context, key model.ChatKey, setting model.AutoDeleteSetting) error {
	if _, ok := enums.ParseDeletionKind(string(setting.Kind)); !ok || setting.TTL < 0 {
		return model.ErrValidation
	}
	if s.settings == nil {
		return errors.New("autodelete settings store is nil")
	}
	return s.settings.UpsertAutoDeleteSetting(ctx, key, setting)
}

// Schedule records a deletion intent for messageID. Disabled kinds are skipped.
func (s *Service) Schedule(ctx context.Context, key model.ChatKey, messageID int, kind enums.DeletionKind) error {
	if key.ChatID == 0 || messageID <= 0 {
		return model.ErrValidation
	}
	if s.deletions == nil {
		return errors.New("deletion store is nil")
	}

	setting, err := s.Setting(ctx, key, kind)
	if err != nil {
		return err
	}
	if !setting.Enabled {
		return nil
	}

	if err := s.deletions.ScheduleDeletion(ctx, model.ScheduledDeletion{
		ChatID:    key.ChatID,
		MessageID: messageID,
		Kind:      kind,
		DueAt:     s.now().UTC().Add(setting.TTL),
		Status:    enums.DeletionStatusPending,
	}); err != nil {
		return fmt.Errorf("schedule deletion: %w", err)
	}
	return nil
}
