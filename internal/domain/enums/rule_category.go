package enums

import "strings"

type RuleCategory string

const (
	RuleCategoryTelegramLinks RuleCategory = "telegram_links"
	RuleCategoryForwarding    RuleCategory = "forwarding"
	RuleCategoryQuoting       RuleCategory = "quoting"
	RuleCategoryLinksBlock    RuleCategory = "links_block"
)

// RuleCategories is the fixed evaluation order. The first violating category wins.
var RuleCategories = []RuleCategory{
	RuleCategoryTelegramLinks,
	RuleCategoryForwarding,
	RuleCategoryQuoting,
	RuleCategoryLinksBlock,
}

func ParseRuleCategory(raw string) (RuleCategory, bool) {
	value := RuleCategory(strings.ToLower(strings.TrimSpace(raw)))
	for _, category := range RuleCategories {
		if category == value {
			return category, true
		}
	}
	return "", false
}

// UsesOriginTokens reports whether the category matches identities (ids, handles)
// rather than links.
func (c RuleCategory) UsesOriginTokens() bool {
	return c == RuleCategoryForwarding || c == RuleCategoryQuoting
}
