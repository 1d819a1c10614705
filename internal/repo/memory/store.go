// Package memory is an in-process store used when Postgres is not configured
// and by tests. Every method holds one mutex, which serializes each
// read-modify-write the same way the SQL upserts do.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/ivankudzin/tgapp/chatguard/internal/domain/enums"
	"github.com/ivankudzin/tgapp/chatguard/internal/domain/model"
	"github.com/ivankudzin/tgapp/chatguard/internal/domain/rules"
)

type recordKey struct {
	key      model.ChatKey
	category enums.RuleCategory
	userID   int64
}

type messageKey struct {
	chatID    int64
	messageID int
}

type settingKey struct {
	key  model.ChatKey
	kind enums.DeletionKind
}

type Store struct {
	mu sync.Mutex

	tenants     map[int64]int64
	rules       map[model.ChatKey]map[enums.RuleCategory]model.RuleConfig
	warns       map[recordKey]model.WarnRecord
	punishments map[recordKey]model.PunishmentRecord
	deletions   map[messageKey]model.ScheduledDeletion
	settings    map[settingKey]model.AutoDeleteSetting
	now         func() time.Time
}

func NewStore() *Store {
	return &Store{
		tenants:     make(map[int64]int64),
		rules:       make(map[model.ChatKey]map[enums.RuleCategory]model.RuleConfig),
		warns:       make(map[recordKey]model.WarnRecord),
		punishments: make(map[recordKey]model.PunishmentRecord),
		deletions:   make(map[messageKey]model.ScheduledDeletion),
		settings:    make(map[settingKey]model.AutoDeleteSetting),
		now:         time.Now,
	}
}

func (s *Store) BindChat(_ context.Context, chatID, tenantID int64) error {
	if chatID == 0 || tenantID <= 0 {
		return fmt.Errorf("bind chat: %w", model.ErrValidation)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tenants[chatID] = tenantID
	return nil
}

func (s *Store) TenantForChat(_ context.Context, chatID int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	tenantID, ok := s.tenants[chatID]
	if !ok {
		return 0, model.ErrNotFound
	}
	return tenantID, nil
}

func (s *Store) GetChatConfig(_ context.Context, key model.ChatKey) (model.ChatModerationConfig, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cfg := model.ChatModerationConfig{
		Key:   key,
		Rules: make(map[enums.RuleCategory]model.RuleConfig, len(enums.RuleCategories)),
	}
	for category, rule := range s.rules[key] {
		rule.Whitelist = append([]string(nil), rule.Whitelist...)
		cfg.Rules[category] = rule
	}
	return cfg, nil
}

// UpsertRule replaces the rule settings and keeps the stored whitelist.
func (s *Store) UpsertRule(_ context.Context, key model.ChatKey, rule model.RuleConfig) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	chat := s.chatRules(key)
	current, ok := chat[rule.Category]
	if ok {
		rule.Whitelist = current.Whitelist
	} else {
		rule.Whitelist = nil
	}
	rule.UpdatedAt = s.now().UTC()
	chat[rule.Category] = rule
	return nil
}

func (s *Store) AddWhitelist(_ context.Context, key model.ChatKey, category enums.RuleCategory, entries []string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	chat := s.chatRules(key)
	rule, ok := chat[category]
	if !ok {
		rule = model.DefaultRuleConfig(category)
	}
	rule.Whitelist = rules.CanonicalizeFor(category, append(append([]string(nil), rule.Whitelist...), entries...))
	rule.UpdatedAt = s.now().UTC()
	chat[category] = rule
	return append([]string(nil), rule.Whitelist...), nil
}

func (s *Store) RemoveWhitelist(_ context.Context, key model.ChatKey, category enums.RuleCategory, entries []string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	chat := s.chatRules(key)
	rule, ok := chat[category]
	if !ok {
		return nil, nil
	}

	drop := make(map[string]struct{}, len(entries))
	for _, entry := range rules.CanonicalizeFor(category, entries) {
		drop[entry] = struct{}{}
	}
	kept := rule.Whitelist[:0:0]
	for _, entry := range rule.Whitelist {
		if _, ok := drop[entry]; !ok {
			kept = append(kept, entry)
		}
	}
	rule.Whitelist = kept
	rule.UpdatedAt = s.now().UTC()
	chat[category] = rule
	return append([]string(nil), kept...), nil
}

func (s *Store) IncrementWarn(_ context.Context, inc model.WarnIncrement) (int, error) {
	if inc.UserID == 0 || inc.Limit <= 0 {
		return 0, fmt.Errorf("increment warn: %w", model.ErrValidation)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	k := recordKey{key: inc.Key, category: inc.Category, userID: inc.UserID}
	record, ok := s.warns[k]
	if !ok || !record.ExpiresAt.After(inc.Now) {
		record = model.WarnRecord{Key: inc.Key, Category: inc.Category, UserID: inc.UserID}
	}
	record.Count++
	record.ExpiresAt = inc.ExpiresAt

	if record.Count >= inc.Limit {
		delete(s.warns, k)
		return inc.Limit, nil
	}
	s.warns[k] = record
	return record.Count, nil
}

func (s *Store) GetWarn(_ context.Context, key model.ChatKey, category enums.RuleCategory, userID int64) (model.WarnRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	record, ok := s.warns[recordKey{key: key, category: category, userID: userID}]
	if !ok {
		return model.WarnRecord{}, model.ErrNotFound
	}
	return record, nil
}

func (s *Store) DeleteExpiredWarns(_ context.Context, now time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var deleted int64
	for k, record := range s.warns {
		if !record.ExpiresAt.After(now) {
			delete(s.warns, k)
			deleted++
		}
	}
	return deleted, nil
}

func (s *Store) UpsertPunishment(_ context.Context, record model.PunishmentRecord) error {
	if record.UserID == 0 {
		return fmt.Errorf("upsert punishment: %w", model.ErrValidation)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if record.ExpiresAt != nil {
		expiresAt := record.ExpiresAt.UTC()
		record.ExpiresAt = &expiresAt
	}
	s.punishments[recordKey{key: record.Key, category: record.Category, userID: record.UserID}] = record
	return nil
}

func (s *Store) ListPunishments(_ context.Context, after model.PunishmentCursor, limit int) ([]model.PunishmentRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]model.PunishmentRecord, 0)
	for _, record := range s.punishments {
		if after != (model.PunishmentCursor{}) && !cursorLess(after, model.CursorAfter(record)) {
			continue
		}
		out = append(out, record)
	}
	sort.Slice(out, func(i, j int) bool {
		return cursorLess(model.CursorAfter(out[i]), model.CursorAfter(out[j]))
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *Store) ListChatPunishments(_ context.Context, key model.ChatKey) ([]model.PunishmentRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]model.PunishmentRecord, 0)
	for k, record := range s.punishments {
		if k.key == key {
			out = append(out, record)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return cursorLess(model.CursorAfter(out[i]), model.CursorAfter(out[j]))
	})
	return out, nil
}

// DeletePunishment removes the record only if it was not replaced since it was read.
func (s *Store) DeletePunishment(_ context.Context, record model.PunishmentRecord) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	k := recordKey{key: record.Key, category: record.Category, userID: record.UserID}
	current, ok := s.punishments[k]
	if !ok || !current.CreatedAt.Equal(record.CreatedAt) {
		return false, nil
	}
	delete(s.punishments, k)
	return true, nil
}

func (s *Store) ScheduleDeletion(_ context.Context, deletion model.ScheduledDeletion) error {
	if deletion.ChatID == 0 || deletion.MessageID <= 0 {
		return fmt.Errorf("schedule deletion: %w", model.ErrValidation)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	deletion.DueAt = deletion.DueAt.UTC()
	deletion.Status = enums.DeletionStatusPending
	s.deletions[messageKey{chatID: deletion.ChatID, messageID: deletion.MessageID}] = deletion
	return nil
}

func (s *Store) ListDueDeletions(_ context.Context, now time.Time, limit int) ([]model.ScheduledDeletion, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]model.ScheduledDeletion, 0)
	for _, deletion := range s.deletions {
		if !deletion.DueAt.After(now) {
			out = append(out, deletion)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].DueAt.Equal(out[j].DueAt) {
			return out[i].DueAt.Before(out[j].DueAt)
		}
		if out[i].ChatID != out[j].ChatID {
			return out[i].ChatID < out[j].ChatID
		}
		return out[i].MessageID < out[j].MessageID
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *Store) DeleteScheduled(_ context.Context, chatID int64, messageID int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.deletions, messageKey{chatID: chatID, messageID: messageID})
	return nil
}

func (s *Store) MarkDeletionFailed(_ context.Context, chatID int64, messageID int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	k := messageKey{chatID: chatID, messageID: messageID}
	deletion, ok := s.deletions[k]
	if !ok {
		return model.ErrNotFound
	}
	deletion.Status = enums.DeletionStatusFailed
	s.deletions[k] = deletion
	return nil
}

func (s *Store) GetAutoDeleteSetting(_ context.Context, key model.ChatKey, kind enums.DeletionKind) (model.AutoDeleteSetting, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	setting, ok := s.settings[settingKey{key: key, kind: kind}]
	return setting, ok, nil
}

func (s *Store) UpsertAutoDeleteSetting(_ context.Context, key model.ChatKey, setting model.AutoDeleteSetting) error {
	if _, ok := enums.ParseDeletionKind(string(setting.Kind)); !ok {
		return fmt.Errorf("upsert autodelete setting: %w", model.ErrValidation)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.settings[settingKey{key: key, kind: setting.Kind}] = setting
	return nil
}

func (s *Store) chatRules(key model.ChatKey) map[enums.RuleCategory]model.RuleConfig {
	chat, ok := s.rules[key]
	if !ok {
		chat = make(map[enums.RuleCategory]model.RuleConfig)
		s.rules[key] = chat
	}
	return chat
}

func cursorLess(a, b model.PunishmentCursor) bool {
	if a.TenantID != b.TenantID {
		return a.TenantID < b.TenantID
	}
	if a.ChatID != b.ChatID {
		return a.ChatID < b.ChatID
	}
	if a.Category != b.Category {
		return a.Category < b.Category
	}
	return a.UserID < b.UserID
}
