package ui

import (
	"fmt"

	"github.com/ivankudzin/tgapp/chatguard/internal/domain/enums"
)

const (
	WizardUsage        = "Usage: /whitelist <chat_id> <telegram_links|forwarding|quoting|links_block>"
	WizardNotAdmin     = "Only admins of that chat can edit its whitelist."
	WizardUnmanaged    = "That chat is not managed by this bot."
	WizardNothingToEnd = "Nothing to finish."
	WizardCancelled    = "Whitelist editing cancelled."
	WizardExpired      = "Whitelist editing timed out. Start again with /whitelist."
	WizardSaveFailed   = "Could not save the whitelist, try again later."
)

func WizardStarted(chatID int64, category enums.RuleCategory) string {
	return fmt.Sprintf("Send whitelist entries for %s in chat %d, one or more per message. Send /done when finished or /cancel to abort.", category, chatID)
}

func WizardAccepted(added, rejected int) string {
	if rejected > 0 {
		return fmt.Sprintf("Added %d entries, %d were not recognized.", added, rejected)
	}
	return fmt.Sprintf("Added %d entries.", added)
}

func WizardFinished(total int) string {
	return fmt.Sprintf("Done. %d entries added in this session.", total)
}
