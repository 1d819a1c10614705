package rules

import "github.com/ivankudzin/tgapp/chatguard/internal/domain/enums"

// CanonicalizeFor normalizes whitelist entries the way the category compares them.
func CanonicalizeFor(category enums.RuleCategory, entries []string) []string {
	if category.UsesOriginTokens() {
		return CanonicalOriginEntries(entries)
	}
	return CanonicalEntries(entries)
}
