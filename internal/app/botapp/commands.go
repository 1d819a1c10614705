package botapp

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/ivankudzin/tgapp/chatguard/internal/domain/enums"
	"github.com/ivankudzin/tgapp/chatguard/internal/domain/model"
	tginfra "github.com/ivankudzin/tgapp/chatguard/internal/infra/telegram"
	settingssvc "github.com/ivankudzin/tgapp/chatguard/internal/services/settings"
	"github.com/ivankudzin/tgapp/chatguard/internal/services/session"
	"github.com/ivankudzin/tgapp/chatguard/internal/ui"
)

type replier interface {
	SendText(ctx context.Context, chatID int64, text string) error
}

type adminChecker interface {
	Member(ctx context.Context, chatID, userID int64) enums.Privilege
}

type whitelistEditor interface {
	ChatKey(ctx context.Context, chatID int64) (model.ChatKey, error)
	AddWhitelist(ctx context.Context, key model.ChatKey, category enums.RuleCategory, entries []string) ([]string, int, error)
}

// commandHandler drives the whitelist wizard from private chats.
type commandHandler struct {
	replies  replier
	admins   adminChecker
	settings whitelistEditor
	sessions *session.Manager
	logger   *zap.Logger
}

func newCommandHandler(replies replier, admins adminChecker, settings whitelistEditor, sessions *session.Manager, logger *zap.Logger) *commandHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &commandHandler{
		replies:  replies,
		admins:   admins,
		settings: settings,
		sessions: sessions,
		logger:   logger,
	}
}

func (h *commandHandler) handleCommand(ctx context.Context, update tginfra.CommandUpdate) {
	if !update.Private {
		return
	}
	key := session.Key{UserID: update.UserID, ConversationID: update.ChatID}

	switch strings.ToLower(update.Command) {
	case "start", "help":
		h.reply(ctx, update.ChatID, ui.WizardUsage)
	case "whitelist":
		h.reply(ctx, update.ChatID, h.startWizard(ctx, key, update.Args))
	case "done":
		wizard, err := h.sessions.Done(ctx, key)
		h.reply(ctx, update.ChatID, h.finishText(err, ui.WizardFinished(wizard.Added)))
	case "cancel":
		_, err := h.sessions.Cancel(ctx, key)
		h.reply(ctx, update.ChatID, h.finishText(err, ui.WizardCancelled))
	}
}

func (h *commandHandler) handleText(ctx context.Context, update tginfra.TextUpdate) {
	key := session.Key{UserID: update.UserID, ConversationID: update.ChatID}

	wizard, err := h.sessions.Active(ctx, key)
	switch {
	case errors.Is(err, session.ErrNoSession):
		h.reply(ctx, update.ChatID, ui.WizardUsage)
		return
	case errors.Is(err, session.ErrExpired):
		h.reply(ctx, update.ChatID, ui.WizardExpired)
		return
	case err != nil:
		h.logger.Warn("load wizard failed", zap.Error(err), zap.Int64("user_id", update.UserID))
		h.reply(ctx, update.ChatID, ui.WizardSaveFailed)
		return
	}

	entries := splitEntries(update.Text)
	_, added, err := h.settings.AddWhitelist(ctx, wizard.Target, wizard.Category, entries)
	if err != nil && !errors.Is(err, settingssvc.ErrValidation) {
		h.logger.Warn("add whitelist entries failed",
			zap.Error(err),
			zap.Int64("chat_id", wizard.Target.ChatID),
			zap.String("category", string(wizard.Category)),
		)
		h.reply(ctx, update.ChatID, ui.WizardSaveFailed)
		return
	}

	if _, err := h.sessions.Input(ctx, key, added); err != nil {
		h.logger.Warn("update wizard failed", zap.Error(err), zap.Int64("user_id", update.UserID))
	}
	h.reply(ctx, update.ChatID, ui.WizardAccepted(added, len(entries)-added))
}

func (h *commandHandler) startWizard(ctx context.Context, key session.Key, args string) string {
	fields := strings.Fields(args)
	if len(fields) != 2 {
		return ui.WizardUsage
	}
	chatID, err := strconv.ParseInt(fields[0], 10, 64)
	if err != nil || chatID == 0 {
		return ui.WizardUsage
	}
	category, ok := enums.ParseRuleCategory(fields[1])
	if !ok {
		return ui.WizardUsage
	}

	target, err := h.settings.ChatKey(ctx, chatID)
	if errors.Is(err, settingssvc.ErrChatNotFound) {
		return ui.WizardUnmanaged
	}
	if err != nil {
		h.logger.Warn("resolve wizard chat failed", zap.Error(err), zap.Int64("chat_id", chatID))
		return ui.WizardSaveFailed
	}

	if !h.admins.Member(ctx, chatID, key.UserID).Granted() {
		return ui.WizardNotAdmin
	}

	if _, err := h.sessions.Start(ctx, key, target, category); err != nil {
		h.logger.Warn("start wizard failed", zap.Error(err), zap.Int64("user_id", key.UserID))
		return ui.WizardSaveFailed
	}
	return ui.WizardStarted(chatID, category)
}

func (h *commandHandler) finishText(err error, ok string) string {
	switch {
	case err == nil:
		return ok
	case errors.Is(err, session.ErrNoSession):
		return ui.WizardNothingToEnd
	case errors.Is(err, session.ErrExpired):
		return ui.WizardExpired
	default:
		h.logger.Warn("finish wizard failed", zap.Error(err))
		return ui.WizardSaveFailed
	}
}

func (h *commandHandler) reply(ctx context.Context, chatID int64, text string) {
	if err := h.replies.SendText(ctx, chatID, text); err != nil {
		h.logger.Warn("send reply failed", zap.Error(err), zap.Int64("chat_id", chatID))
	}
}

// splitEntries accepts entries separated by whitespace or commas.
func splitEntries(text string) []string {
	return strings.FieldsFunc(text, func(r rune) bool {
		return r == ',' || r == ' ' || r == '\n' || r == '\t' || r == '\r'
	})
}
