package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/ivankudzin/tgapp/chatguard/internal/domain/enums"
	"github.com/ivankudzin/tgapp/chatguard/internal/domain/model"
	authsvc "github.com/ivankudzin/tgapp/chatguard/internal/services/auth"
	autodeletesvc "github.com/ivankudzin/tgapp/chatguard/internal/services/autodelete"
	settingssvc "github.com/ivankudzin/tgapp/chatguard/internal/services/settings"
	"github.com/ivankudzin/tgapp/chatguard/internal/transport/http/dto"
	httperrors "github.com/ivankudzin/tgapp/chatguard/internal/transport/http/errors"
)

// ChatsHandler serves tenant-scoped moderation settings for bound chats.
type ChatsHandler struct {
	settings   *settingssvc.Service
	autodelete *autodeletesvc.Service
}

func NewChatsHandler(settings *settingssvc.Service, autodelete *autodeletesvc.Service) *ChatsHandler {
	return &ChatsHandler{settings: settings, autodelete: autodelete}
}

func (h *ChatsHandler) Bind(w http.ResponseWriter, r *http.Request) {
	identity, chatID, ok := h.prepare(w, r)
	if !ok {
		return
	}

	key, err := h.settings.BindChat(r.Context(), identity.TenantID, chatID)
	if err != nil {
		writeServiceError(w, err, "failed to bind chat")
		return
	}

	httperrors.Write(w, http.StatusOK, dto.ChatResponse{ChatID: key.ChatID, TenantID: key.TenantID})
}

func (h *ChatsHandler) Rules(w http.ResponseWriter, r *http.Request) {
	identity, chatID, ok := h.prepare(w, r)
	if !ok {
		return
	}

	rules, err := h.settings.Rules(r.Context(), identity.TenantID, chatID)
	if err != nil {
		writeServiceError(w, err, "failed to load rules")
		return
	}

	resp := dto.RulesResponse{ChatID: chatID, Rules: make([]dto.RuleResponse, 0, len(rules))}
	for _, rule := range rules {
		resp.Rules = append(resp.Rules, ruleResponse(rule))
	}
	httperrors.Write(w, http.StatusOK, resp)
}

func (h *ChatsHandler) UpdateRule(w http.ResponseWriter, r *http.Request) {
	identity, chatID, ok := h.prepare(w, r)
	if !ok {
		return
	}
	category, ok := categoryParam(r)
	if !ok {
		writeBadRequest(w, "INVALID_CATEGORY", "unknown rule category")
		return
	}

	var req dto.RuleUpdateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, "INVALID_JSON", "invalid request body")
		return
	}
	penalty, ok := enums.ParsePenalty(req.Penalty)
	if !ok {
		writeBadRequest(w, "INVALID_PENALTY", "unknown penalty")
		return
	}
	if req.DurationSec < 0 {
		writeBadRequest(w, "INVALID_DURATION", "duration_sec must not be negative")
		return
	}

	rule, err := h.settings.UpdateRule(r.Context(), identity.TenantID, chatID, category, settingssvc.RuleUpdate{
		Penalty:           penalty,
		DeleteOnViolation: req.DeleteOnViolation,
		Duration: model.PenaltyDuration{
			Permanent: req.Permanent,
			Value:     time.Duration(req.DurationSec) * time.Second,
		},
		IncludeUsernames: req.IncludeUsernames,
	})
	if err != nil {
		writeServiceError(w, err, "failed to update rule")
		return
	}

	httperrors.Write(w, http.StatusOK, ruleResponse(rule))
}

func (h *ChatsHandler) AddWhitelist(w http.ResponseWriter, r *http.Request) {
	identity, chatID, ok := h.prepare(w, r)
	if !ok {
		return
	}
	category, req, ok := whitelistRequest(w, r)
	if !ok {
		return
	}

	key, err := h.settings.Authorize(r.Context(), identity.TenantID, chatID)
	if err != nil {
		writeServiceError(w, err, "failed to update whitelist")
		return
	}
	whitelist, added, err := h.settings.AddWhitelist(r.Context(), key, category, req.Entries)
	if err != nil {
		writeServiceError(w, err, "failed to update whitelist")
		return
	}

	httperrors.Write(w, http.StatusOK, dto.WhitelistResponse{
		Category:  string(category),
		Added:     added,
		Whitelist: nonNil(whitelist),
	})
}

func (h *ChatsHandler) RemoveWhitelist(w http.ResponseWriter, r *http.Request) {
	identity, chatID, ok := h.prepare(w, r)
	if !ok {
		return
	}
	category, req, ok := whitelistRequest(w, r)
	if !ok {
		return
	}

	key, err := h.settings.Authorize(r.Context(), identity.TenantID, chatID)
	if err != nil {
		writeServiceError(w, err, "failed to update whitelist")
		return
	}
	whitelist, err := h.settings.RemoveWhitelist(r.Context(), key, category, req.Entries)
	if err != nil {
		writeServiceError(w, err, "failed to update whitelist")
		return
	}

	httperrors.Write(w, http.StatusOK, dto.WhitelistResponse{
		Category:  string(category),
		Whitelist: nonNil(whitelist),
	})
}

func (h *ChatsHandler) Punishments(w http.ResponseWriter, r *http.Request) {
	identity, chatID, ok := h.prepare(w, r)
	if !ok {
		return
	}

	records, err := h.settings.Punishments(r.Context(), identity.TenantID, chatID)
	if err != nil {
		writeServiceError(w, err, "failed to load punishments")
		return
	}

	resp := dto.PunishmentsResponse{ChatID: chatID, Items: make([]dto.PunishmentResponse, 0, len(records))}
	for _, record := range records {
		resp.Items = append(resp.Items, dto.PunishmentResponse{
			Category:  string(record.Category),
			UserID:    record.UserID,
			Kind:      string(record.Kind),
			ExpiresAt: record.ExpiresAt,
			CreatedAt: record.CreatedAt,
		})
	}
	httperrors.Write(w, http.StatusOK, resp)
}

func (h *ChatsHandler) AutoDelete(w http.ResponseWriter, r *http.Request) {
	identity, chatID, ok := h.prepare(w, r)
	if !ok {
		return
	}
	if h.autodelete == nil {
		writeInternal(w, "AUTODELETE_SERVICE_UNAVAILABLE", "autodelete service is unavailable")
		return
	}

	key, err := h.settings.Authorize(r.Context(), identity.TenantID, chatID)
	if err != nil {
		writeServiceError(w, err, "failed to load autodelete settings")
		return
	}

	resp := dto.AutoDeleteSettingsResponse{ChatID: chatID}
	for _, kind := range enums.DeletionKinds {
		setting, err := h.autodelete.Setting(r.Context(), key, kind)
		if err != nil {
			writeServiceError(w, err, "failed to load autodelete settings")
			return
		}
		resp.Settings = append(resp.Settings, autoDeleteResponse(setting))
	}
	httperrors.Write(w, http.StatusOK, resp)
}

func (h *ChatsHandler) UpdateAutoDelete(w http.ResponseWriter, r *http.Request) {
	identity, chatID, ok := h.prepare(w, r)
	if !ok {
		return
	}
	if h.autodelete == nil {
		writeInternal(w, "AUTODELETE_SERVICE_UNAVAILABLE", "autodelete service is unavailable")
		return
	}
	kind, ok := enums.ParseDeletionKind(strings.TrimSpace(chi.URLParam(r, "kind")))
	if !ok {
		writeBadRequest(w, "INVALID_KIND", "unknown deletion kind")
		return
	}

	var req dto.AutoDeleteSettingRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, "INVALID_JSON", "invalid request body")
		return
	}
	if req.TTLSec < 0 {
		writeBadRequest(w, "INVALID_TTL", "ttl_sec must not be negative")
		return
	}

	key, err := h.settings.Authorize(r.Context(), identity.TenantID, chatID)
	if err != nil {
		writeServiceError(w, err, "failed to update autodelete setting")
		return
	}
	if err := h.autodelete.UpdateSetting(r.Context(), key, model.AutoDeleteSetting{
		Kind:    kind,
		Enabled: req.Enabled,
		TTL:     time.Duration(req.TTLSec) * time.Second,
	}); err != nil {
		writeServiceError(w, err, "failed to update autodelete setting")
		return
	}

	setting, err := h.autodelete.Setting(r.Context(), key, kind)
	if err != nil {
		writeServiceError(w, err, "failed to load autodelete setting")
		return
	}
	httperrors.Write(w, http.StatusOK, autoDeleteResponse(setting))
}

func (h *ChatsHandler) prepare(w http.ResponseWriter, r *http.Request) (authsvc.Identity, int64, bool) {
	identity, ok := authsvc.IdentityFromContext(r.Context())
	if !ok {
		writeUnauthorized(w, "UNAUTHORIZED", "authentication required")
		return authsvc.Identity{}, 0, false
	}
	if h.settings == nil {
		writeInternal(w, "SETTINGS_SERVICE_UNAVAILABLE", "settings service is unavailable")
		return authsvc.Identity{}, 0, false
	}
	chatID, ok := chatIDParam(r)
	if !ok {
		writeBadRequest(w, "INVALID_CHAT_ID", "chat id must be a non-zero integer")
		return authsvc.Identity{}, 0, false
	}
	return identity, chatID, true
}

func categoryParam(r *http.Request) (enums.RuleCategory, bool) {
	return enums.ParseRuleCategory(strings.TrimSpace(chi.URLParam(r, "category")))
}

func whitelistRequest(w http.ResponseWriter, r *http.Request) (enums.RuleCategory, dto.WhitelistRequest, bool) {
	category, ok := categoryParam(r)
	if !ok {
		writeBadRequest(w, "INVALID_CATEGORY", "unknown rule category")
		return "", dto.WhitelistRequest{}, false
	}
	var req dto.WhitelistRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, "INVALID_JSON", "invalid request body")
		return "", dto.WhitelistRequest{}, false
	}
	if len(req.Entries) == 0 {
		writeBadRequest(w, "EMPTY_ENTRIES", "entries must not be empty")
		return "", dto.WhitelistRequest{}, false
	}
	return category, req, true
}

func ruleResponse(rule model.RuleConfig) dto.RuleResponse {
	resp := dto.RuleResponse{
		Category:          string(rule.Category),
		Penalty:           string(rule.Penalty),
		DeleteOnViolation: rule.DeleteOnViolation,
		DurationSec:       int64(rule.Duration.Value / time.Second),
		Permanent:         rule.Duration.Permanent,
		IncludeUsernames:  rule.IncludeUsernames,
		Whitelist:         nonNil(rule.Whitelist),
	}
	if !rule.UpdatedAt.IsZero() {
		updatedAt := rule.UpdatedAt
		resp.UpdatedAt = &updatedAt
	}
	return resp
}

func autoDeleteResponse(setting model.AutoDeleteSetting) dto.AutoDeleteSettingResponse {
	return dto.AutoDeleteSettingResponse{
		Kind:    string(setting.Kind),
		Enabled: setting.Enabled,
		TTLSec:  int64(setting.TTL / time.Second),
	}
}

func nonNil(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}
