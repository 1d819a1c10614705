package model

import (
	"time"

	"github.com/ivankudzin/tgapp/chatguard/internal/domain/enums"
)

// ChatKey addresses one chat inside a tenant's settings aggregate.
type ChatKey struct {
	TenantID int64
	ChatID   int64
}

type PenaltyDuration struct {
	Permanent bool
	Value     time.Duration
}

// Resolve returns the effective duration. Zero or negative values fall back to def.
func (d PenaltyDuration) Resolve(def time.Duration) (time.Duration, bool) {
	if d.Permanent {
		return 0, true
	}
	if d.Value <= 0 {
		return def, false
	}
	return d.Value, false
}

type RuleConfig struct {
	Category          enums.RuleCategory
	Penalty           enums.Penalty
	DeleteOnViolation bool
	Duration          PenaltyDuration
	// IncludeUsernames turns bare @mentions into targets for the telegram links rule.
	IncludeUsernames bool
	Whitelist        []string
	UpdatedAt        time.Time
}

// Active reports whether the rule can produce any effect.
func (r RuleConfig) Active() bool {
	return r.Penalty != enums.PenaltyOff || r.DeleteOnViolation
}

func DefaultRuleConfig(category enums.RuleCategory) RuleConfig {
	return RuleConfig{
		Category: category,
		Penalty:  enums.PenaltyOff,
	}
}

type ChatModerationConfig struct {
	Key   ChatKey
	Rules map[enums.RuleCategory]RuleConfig
}

func (c ChatModerationConfig) Rule(category enums.RuleCategory) RuleConfig {
	if rule, ok := c.Rules[category]; ok {
		return rule
	}
	return DefaultRuleConfig(category)
}

type AutoDeleteSetting struct {
	Kind    enums.DeletionKind
	Enabled bool
	TTL     time.Duration
}
