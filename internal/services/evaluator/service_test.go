package evaluator

import (
	"testing"
	"time"

	"github.com/ivankudzin/tgapp/chatguard/internal/domain/enums"
	"github.com/ivankudzin/tgapp/chatguard/internal/domain/model"
)

func chatConfig(rules ...model.RuleConfig) model.ChatModerationConfig {
	cfg := model.ChatModerationConfig{
		Key:   model.ChatKey{TenantID: 1, ChatID: -100500},
		Rules: make(map[enums.RuleCategory]model.RuleConfig),
	}
	for _, rule := range rules {
		cfg.Rules[rule.Category] = rule
	}
	return cfg
}

func linkEvent(text string) model.Event {
	return model.Event{ChatID: -100500, MessageID: 10, Sender: model.Sender{UserID: 7}, Text: text}
}

func TestEvaluateDeleteOnlyWhenPenaltyOff(t *testing.T) {
	svc := NewService(Config{})
	cfg := chatConfig(model.RuleConfig{
		Category:          enums.RuleCategoryLinksBlock,
		Penalty:           enums.PenaltyOff,
		DeleteOnViolation: true,
	})

	decision := svc.Evaluate(cfg, linkEvent("see https://spam.example/offer"))
	if decision.Action != ActionDeleteOnly {
		t.Fatalf("expected delete-only, got %+v", decision)
	}
	if decision.Category != enums.RuleCategoryLinksBlock {
		t.Fatalf("unexpected category: %s", decision.Category)
	}
}

func TestEvaluateAllowsWhitelistedTargets(t *testing.T) {
	svc := NewService(Config{})
	cfg := chatConfig(model.RuleConfig{
		Category:  enums.RuleCategoryLinksBlock,
		Penalty:   enums.PenaltyWarn,
		Whitelist: []string{"example.com/docs"},
	})

	decision := svc.Evaluate(cfg, linkEvent("read https://www.example.com/docs/setup"))
	if decision.Action != ActionAllow {
		t.Fatalf("expected allow for whitelisted link, got %+v", decision)
	}

	decision = svc.Evaluate(cfg, linkEvent("read https://example.com/blog"))
	if decision.Action != ActionEnforce || decision.Penalty != enums.PenaltyWarn {
		t.Fatalf("expected warn enforcement, got %+v", decision)
	}
}

func TestEvaluateOffWithoutDeletionIsNoop(t *testing.T) {
	svc := NewService(Config{})
	cfg := chatConfig(model.RuleConfig{Category: enums.RuleCategoryLinksBlock, Penalty: enums.PenaltyOff})

	if decision := svc.Evaluate(cfg, linkEvent("https://spam.example")); decision.Action != ActionAllow {
		t.Fatalf("expected allow, got %+v", decision)
	}
}

func TestEvaluateFirstViolationWins(t *testing.T) {
	svc := NewService(Config{})
	cfg := chatConfig(
		model.RuleConfig{Category: enums.RuleCategoryTelegramLinks, Penalty: enums.PenaltyWarn},
		model.RuleConfig{Category: enums.RuleCategoryForwarding, Penalty: enums.PenaltyBan, Duration: model.PenaltyDuration{Value: time.Hour}},
	)

	event := linkEvent("join t.me/spamchat")
	event.ForwardOrigin = &model.Origin{Kind: model.OriginChannel, ID: -1009999}

	decision := svc.Evaluate(cfg, event)
	if decision.Category != enums.RuleCategoryTelegramLinks || decision.Penalty != enums.PenaltyWarn {
		t.Fatalf("expected the first category to win, got %+v", decision)
	}

	all := NewService(Config{EvaluateAll: true}).Evaluate(cfg, event)
	if all.Category != enums.RuleCategoryForwarding || all.Penalty != enums.PenaltyBan {
		t.Fatalf("expected the most severe category with EvaluateAll, got %+v", all)
	}
}

func TestEvaluateForwardFromWhitelistedChannelID(t *testing.T) {
	svc := NewService(Config{})
	cfg := chatConfig(model.RuleConfig{
		Category:  enums.RuleCategoryForwarding,
		Penalty:   enums.PenaltyMute,
		Whitelist: []string{"-1001234567890"},
	})

	event := linkEvent("")
	event.ForwardOrigin = &model.Origin{Kind: model.OriginChannel, ID: -1001234567890}

	if decision := svc.Evaluate(cfg, event); decision.Action != ActionAllow {
		t.Fatalf("expected whitelisted forward to be allowed, got %+v", decision)
	}

	event.ForwardOrigin = &model.Origin{Kind: model.OriginHiddenUser, Title: "anon"}
	decision := svc.Evaluate(cfg, event)
	if decision.Action != ActionEnforce || decision.Violations[0] != "hidden" {
		t.Fatalf("expected hidden forward to be enforced, got %+v", decision)
	}
}

func TestEvaluateUsernamesRespectRuleToggle(t *testing.T) {
	svc := NewService(Config{})
	rule := model.RuleConfig{Category: enums.RuleCategoryTelegramLinks, Penalty: enums.PenaltyKick}

	event := linkEvent("ask @someseller for prices")
	if decision := svc.Evaluate(chatConfig(rule), event); decision.Action != ActionAllow {
		t.Fatalf("mentions must be ignored without IncludeUsernames, got %+v", decision)
	}

	rule.IncludeUsernames = true
	if decision := svc.Evaluate(chatConfig(rule), event); decision.Action != ActionEnforce {
		t.Fatalf("expected mention to be enforced, got %+v", decision)
	}

	rule.Whitelist = []string{"@SomeSeller"}
	if decision := svc.Evaluate(chatConfig(rule), event); decision.Action != ActionAllow {
		t.Fatalf("expected whitelisted mention to pass, got %+v", decision)
	}
}
