package dto

import "time"

type ChatResponse struct {
	ChatID   int64 `json:"chat_id"`
	TenantID int64 `json:"tenant_id"`
}

type RuleResponse struct {
	Category          string    `json:"category"`
	Penalty           string    `json:"penalty"`
	DeleteOnViolation bool      `json:"delete_on_violation"`
	DurationSec       int64     `json:"duration_sec"`
	Permanent         bool      `json:"permanent"`
	IncludeUsernames  bool      `json:"include_usernames"`
	Whitelist         []string  `json:"whitelist"`
	UpdatedAt         *time.Time `json:"updated_at"`
}

type RulesResponse struct {
	ChatID int64          `json:"chat_id"`
	Rules  []RuleResponse `json:"rules"`
}

type RuleUpdateRequest struct {
	Penalty           string `json:"penalty"`
	DeleteOnViolation bool   `json:"delete_on_violation"`
	DurationSec       int64  `json:"duration_sec"`
	Permanent         bool   `json:"permanent"`
	IncludeUsernames  bool   `json:"include_usernames"`
}

type WhitelistRequest struct {
	Entries []string `json:"entries"`
}

type WhitelistResponse struct {
	Category  string   `json:"category"`
	Added     int      `json:"added,omitempty"`
	Whitelist []string `json:"whitelist"`
}

type PunishmentResponse struct {
	Category  string     `json:"category"`
	UserID    int64      `json:"user_id"`
	Kind      string     `json:"kind"`
	ExpiresAt *time.Time `json:"expires_at"`
	CreatedAt time.Time  `json:"created_at"`
}

type PunishmentsResponse struct {
	ChatID int64                `json:"chat_id"`
	Items  []PunishmentResponse `json:"items"`
}

type AutoDeleteSettingResponse struct {
	Kind    string `json:"kind"`
	Enabled bool   `json:"enabled"`
	TTLSec  int64  `json:"ttl_sec"`
}

type AutoDeleteSettingsResponse struct {
	ChatID   int64                       `json:"chat_id"`
	Settings []AutoDeleteSettingResponse `json:"settings"`
}

type AutoDeleteSettingRequest struct {
	Enabled bool  `json:"enabled"`
	TTLSec  int64 `json:"ttl_sec"`
}
