package settings

import (
	"context"
	"errors"
	"fmt"

	"github.com/ivankudzin/tgapp/chatguard/internal/domain/enums"
	"github.com/ivankudzin/tgapp/chatguard/internal/domain/model"
	"github.com/ivankudzin/tgapp/chatguard/internal/domain/rules"
)

var (
	ErrChatNotFound = errors.New("chat not found")
	ErrChatTaken    = errors.New("chat is bound to another tenant")
	ErrValidation   = model.ErrValidation
)

type Store interface {
	BindChat(ctx context.Context, chatID, tenantID int64) error
	TenantForChat(ctx context.Context, chatID int64) (int64, error)
	GetChatConfig(ctx context.Context, key model.ChatKey) (model.ChatModerationConfig, error)
	UpsertRule(ctx context.Context, key model.ChatKey, rule model.RuleConfig) error
	AddWhitelist(ctx context.Context, key model.ChatKey, category enums.RuleCategory, entries []string) ([]string, error)
	RemoveWhitelist(ctx context.Context, key model.ChatKey, category enums.RuleCategory, entries []string) ([]string, error)
	ListChatPunishments(ctx context.Context, key model.ChatKey) ([]model.PunishmentRecord, error)
}

type RuleUpdate struct {
	Penalty           enums.Penalty
	DeleteOnViolation bool
	Duration          model.PenaltyDuration
	IncludeUsernames  bool
}

// Service edits rule configuration on behalf of a tenant.
type Service struct {
	store Store
}

func NewService(store Store) *Service {
	return &Service{store: store}
}

// ChatKey resolves the tenant that owns chatID.
func (s *Service) ChatKey(ctx context.Context, chatID int64) (model.ChatKey, error) {
	if chatID == 0 {
		return model.ChatKey{}, ErrValidation
	}
	tenantID, err := s.store.TenantForChat(ctx, chatID)
	if errors.Is(err, model.ErrNotFound) {
		return model.ChatKey{}, ErrChatNotFound
	}
	if err != nil {
		return model.ChatKey{}, fmt.Errorf("resolve chat tenant: %w", err)
	}
	return model.ChatKey{TenantID: tenantID, ChatID: chatID}, nil
}

// Authorize returns the chat key when tenantID owns chatID. Foreign chats
// look exactly like missing ones.
func (s *Service) Authorize(ctx context.Context, tenantID, chatID int64) (model.ChatKey, error) {
	key, err := s.ChatKey(ctx, chatID)
	if err != nil {
		return model.ChatKey{}, err
	}
	if key.TenantID != tenantID {
		return model.ChatKey{}, ErrChatNotFound
	}
	return key, nil
}

// BindChat attaches chatID to tenantID. Rebinding to the same tenant is a no-op;
// a chat owned by another tenant is never taken over.
func (s *Service) BindChat(ctx context.Context, tenantID, chatID int64) (model.ChatKey, error) {
	if tenantID <= 0 || chatID == 0 {
		return model.ChatKey{}, ErrValidation
	}

	key, err := s.ChatKey(ctx, chatID)
	switch {
	case err == nil && key.TenantID == tenantID:
		return key, nil
	case err == nil:
		return model.ChatKey{}, ErrChatTaken
	case !errors.Is(err, ErrChatNotFound):
		return model.ChatKey{}, err
	}

	if err := s.store.BindChat(ctx, chatID, tenantID); err != nil {
		return model.ChatKey{}, fmt.Errorf("bind chat: %w", err)
	}
	return model.ChatKey{TenantID: tenantID, ChatID: chatID}, nil
}

// Rules returns every category, filling unconfigured ones with defaults.
func (s *Service) Rules(ctx context.Context, tenantID, chatID int64) ([]model.RuleConfig, error) {
	key, err := s.Authorize(ctx, tenantID, chatID)
	if err != nil {
		return nil, err
	}
	cfg, err := s.store.GetChatConfig(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("load chat config: %w", err)
	}

	out := make([]model.RuleConfig, 0, len(enums.RuleCategories))
	for _, category := range enums.RuleCategories {
		out = append(out, cfg.Rule(category))
	}
	return out, nil
}

func (s *Service) UpdateRule(ctx context.Context, tenantID, chatID int64, category enums.RuleCategory, update RuleUpdate) (model.RuleConfig, error) {
	if _, ok := enums.ParseRuleCategory(string(category)); !ok {
		return model.RuleConfig{}, ErrValidation
	}
	if _, ok := enums.ParsePenalty(string(update.Penalty)); !ok {
		return model.RuleConfig{}, ErrValidation
	}
	if update.Duration.Value < 0 {
		return model.RuleConfig{}, ErrValidation
	}

	key, err := s.Authorize(ctx, tenantID, chatID)
	if err != nil {
		return model.RuleConfig{}, err
	}

	rule := model.RuleConfig{
		Category:          category,
		Penalty:           update.Penalty,
		DeleteOnViolation: update.DeleteOnViolation,
		Duration:          update.Duration,
		IncludeUsernames:  update.IncludeUsernames && category == enums.RuleCategoryTelegramLinks,
	}
	if !rule.Penalty.Timed() {
		rule.Duration = model.PenaltyDuration{}
	}

	if err := s.store.UpsertRule(ctx, key, rule); err != nil {
		return model.RuleConfig{}, fmt.Errorf("save rule: %w", err)
	}

	cfg, err := s.store.GetChatConfig(ctx, key)
	if err != nil {
		return model.RuleConfig{}, fmt.Errorf("load chat config: %w", err)
	}
	return cfg.Rule(category), nil
}

// AddWhitelist stores the valid entries in canonical form. It fails when none
// of the entries is valid for the category.
func (s *Service) AddWhitelist(ctx context.Context, key model.ChatKey, category enums.RuleCategory, entries []string) ([]string, int, error) {
	if _, ok := enums.ParseRuleCategory(string(category)); !ok {
		return nil, 0, ErrValidation
	}
	valid := rules.CanonicalizeFor(category, entries)
	if len(valid) == 0 {
		return nil, 0, ErrValidation
	}

	whitelist, err := s.store.AddWhitelist(ctx, key, category, valid)
	if err != nil {
		return nil, 0, fmt.Errorf("add whitelist entries: %w", err)
	}
	return whitelist, len(valid), nil
}

func (s *Service) RemoveWhitelist(ctx context.Context, key model.ChatKey, category enums.RuleCategory, entries []string) ([]string, error) {
	if _, ok := enums.ParseRuleCategory(string(category)); !ok {
		return nil, ErrValidation
	}
	drop := rules.CanonicalizeFor(category, entries)
	if len(drop) == 0 {
		return nil, ErrValidation
	}
	whitelist, err := s.store.RemoveWhitelist(ctx, key, category, drop)
	if err != nil {
		return nil, fmt.Errorf("remove whitelist entries: %w", err)
	}
	return whitelist, nil
}

func (s *Service) Punishments(ctx context.Context, tenantID, chatID int64) ([]model.PunishmentRecord, error) {
	key, err := s.Authorize(ctx, tenantID, chatID)
	if err != nil {
		return nil, err
	}
	records, err := s.store.ListChatPunishments(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("list punishments: %w", err)
	}
	return records, nil
}
