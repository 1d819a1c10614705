package evaluator

import (
	"github.com/ivankudzin/tgapp/chatguard/internal/domain/enums"
	"github.com/ivankudzin/tgapp/chatguard/internal/domain/model"
	"github.com/ivankudzin/tgapp/chatguard/internal/domain/rules"
	"github.com/ivankudzin/tgapp/chatguard/internal/ui"
)

type Action string

const (
	ActionAllow      Action = "allow"
	ActionDeleteOnly Action = "delete_only"
	ActionEnforce    Action = "enforce"
)

type Decision struct {
	Action        Action
	Category      enums.RuleCategory
	Penalty       enums.Penalty
	DeleteMessage bool
	Duration      model.PenaltyDuration
	Reason        string
	// Violations lists the non-whitelisted targets that triggered the rule.
	Violations []string
}

type Config struct {
	// EvaluateAll checks every category and keeps the most severe decision
	// instead of returning on the first violating category.
	EvaluateAll bool
}

type Service struct {
	cfg Config
}

func NewService(cfg Config) *Service {
	return &Service{cfg: cfg}
}

func (s *Service) Evaluate(chat model.ChatModerationConfig, event model.Event) Decision {
	linkRule := chat.Rule(enums.RuleCategoryTelegramLinks)
	targets := rules.Extract(event, rules.ExtractOptions{IncludeUsernames: linkRule.IncludeUsernames})

	best := Decision{Action: ActionAllow}
	deleteRequested := false

	for _, category := range enums.RuleCategories {
		rule := chat.Rule(category)
		if !rule.Active() {
			continue
		}

		violations := Violations(category, targets, rule.Whitelist)
		if len(violations) == 0 {
			continue
		}

		decision := decide(category, rule, violations)
		if decision.Action == ActionAllow {
			continue
		}
		if !s.cfg.EvaluateAll {
			return decision
		}

		deleteRequested = deleteRequested || decision.DeleteMessage
		if best.Action == ActionAllow || severity(decision) > severity(best) {
			best = decision
		}
	}

	if best.Action == ActionEnforce && deleteRequested {
		best.DeleteMessage = true
	}
	return best
}

// Violations returns the targets of category that the whitelist does not cover.
func Violations(category enums.RuleCategory, targets rules.Targets, whitelist []string) []string {
	switch category {
	case enums.RuleCategoryTelegramLinks:
		return linkViolations(targets.TelegramLinks, whitelist)
	case enums.RuleCategoryLinksBlock:
		return linkViolations(targets.Links, whitelist)
	case enums.RuleCategoryForwarding:
		return originViolation(targets.HasForward, targets.ForwardTokens, whitelist)
	case enums.RuleCategoryQuoting:
		return originViolation(targets.HasQuote, targets.QuoteTokens, whitelist)
	default:
		return nil
	}
}

func linkViolations(candidates []rules.Target, whitelist []string) []string {
	if len(candidates) == 0 {
		return nil
	}
	allowed := rules.NormalizeWhitelist(whitelist)

	var out []string
	for _, candidate := range candidates {
		if !rules.Whitelisted(candidate, allowed) {
			out = append(out, candidate.Value)
		}
	}
	return out
}

func originViolation(present bool, tokens []string, whitelist []string) []string {
	if !present {
		return nil
	}
	if rules.OriginWhitelisted(tokens, rules.NormalizeOriginWhitelist(whitelist)) {
		return nil
	}
	if len(tokens) == 0 {
		return []string{"hidden"}
	}
	return []string{tokens[0]}
}

func decide(category enums.RuleCategory, rule model.RuleConfig, violations []string) Decision {
	decision := Decision{
		Category:      category,
		Penalty:       rule.Penalty,
		DeleteMessage: rule.DeleteOnViolation,
		Duration:      rule.Duration,
		Reason:        ui.RuleReason(category),
		Violations:    violations,
	}

	switch {
	case rule.Penalty == enums.PenaltyOff && rule.DeleteOnViolation:
		decision.Action = ActionDeleteOnly
	case rule.Penalty == enums.PenaltyOff:
		decision.Action = ActionAllow
	default:
		decision.Action = ActionEnforce
	}
	return decision
}

func severity(d Decision) int {
	if d.Action == ActionDeleteOnly {
		return 0
	}
	return d.Penalty.Severity()
}
