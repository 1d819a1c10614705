package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/ivankudzin/tgapp/chatguard/internal/domain/enums"
	"github.com/ivankudzin/tgapp/chatguard/internal/domain/model"
)

func RuleReason(category enums.RuleCategory) string {
	switch category {
	case enums.RuleCategoryTelegramLinks:
		return "links to other Telegram chats are not allowed here"
	case enums.RuleCategoryForwarding:
		return "forwarding from other chats is not allowed here"
	case enums.RuleCategoryQuoting:
		return "quoting messages from other chats is not allowed here"
	case enums.RuleCategoryLinksBlock:
		return "links are not allowed here"
	default:
		return "this message breaks the chat rules"
	}
}

func Mention(sender model.Sender) string {
	if name := strings.TrimSpace(sender.Username); name != "" {
		return "@" + name
	}
	if name := strings.TrimSpace(sender.FirstName); name != "" {
		return name
	}
	return fmt.Sprintf("user %d", sender.UserID)
}

func WarnNotice(sender model.Sender, reason string, step, limit int) string {
	if step >= limit {
		return fmt.Sprintf("%s, %s. Warning %d/%d, this was your last warning.", Mention(sender), reason, step, limit)
	}
	return fmt.Sprintf("%s, %s. Warning %d/%d.", Mention(sender), reason, step, limit)
}

func EnforcementNotice(sender model.Sender, reason string, penalty enums.Penalty, duration time.Duration, permanent bool) string {
	who := Mention(sender)
	switch penalty {
	case enums.PenaltyKick:
		return fmt.Sprintf("%s was removed from the chat: %s.", who, reason)
	case enums.PenaltyMute:
		return fmt.Sprintf("%s was muted %s: %s.", who, FormatTerm(duration, permanent), reason)
	case enums.PenaltyBan:
		return fmt.Sprintf("%s was banned %s: %s.", who, FormatTerm(duration, permanent), reason)
	default:
		return fmt.Sprintf("%s, %s.", who, reason)
	}
}

// DegradedNotice is sent when the bot lacks the rights to enforce a penalty.
func DegradedNotice(sender model.Sender, reason string, penalty enums.Penalty) string {
	verb := "punished"
	switch penalty {
	case enums.PenaltyKick:
		verb = "removed"
	case enums.PenaltyMute:
		verb = "muted"
	case enums.PenaltyBan:
		verb = "banned"
	}
	return fmt.Sprintf("%s, %s. You would have been %s, but the bot has no admin rights in this chat.", Mention(sender), reason, verb)
}

func FormatTerm(duration time.Duration, permanent bool) string {
	if permanent || duration <= 0 {
		return "permanently"
	}
	switch {
	case duration%(24*time.Hour) == 0:
		return fmt.Sprintf("for %dd", int(duration/(24*time.Hour)))
	case duration%time.Hour == 0:
		return fmt.Sprintf("for %dh", int(duration/time.Hour))
	case duration%time.Minute == 0:
		return fmt.Sprintf("for %dm", int(duration/time.Minute))
	default:
		return "for " + duration.String()
	}
}
