package telegram

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/ivankudzin/tgapp/chatguard/internal/domain/model"
)

// Bot wraps the Bot API client. All outbound calls pass through the limiter and
// return errors already classified by Classify.
type Bot struct {
	api         *tgbotapi.BotAPI
	limiter     *rate.Limiter
	pollTimeout int
	logger      *zap.Logger

	linkedMu sync.Mutex
	linked   map[int64]linkedChat
}

const linkedChatTTL = 10 * time.Minute

type linkedChat struct {
	chatID    int64
	expiresAt time.Time
}

type CommandUpdate struct {
	ChatID   int64
	UserID   int64
	Username string
	Private  bool
	Command  string
	Args     string
}

type TextUpdate struct {
	ChatID int64
	UserID int64
	Text   string
}

type Handlers struct {
	// OnEvent receives every group or supergroup message.
	OnEvent   func(context.Context, model.Event)
	OnCommand func(context.Context, CommandUpdate)
	// OnText receives non-command private messages.
	OnText func(context.Context, TextUpdate)
}

func NewBot(token string, pollTimeout int, limiter *rate.Limiter, logger *zap.Logger) (*Bot, error) {
	if strings.TrimSpace(token) == "" {
		return nil, fmt.Errorf("telegram bot token is empty")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if pollTimeout <= 0 {
		pollTimeout = 30
	}

	api, err := tgbotapi.NewBotAPI(strings.TrimSpace(token))
	if err != nil {
		return nil, fmt.Errorf("create telegram bot api: %w", err)
	}

	return &Bot{
		api:         api,
		limiter:     limiter,
		pollTimeout: pollTimeout,
		logger:      logger,
		linked:      make(map[int64]linkedChat),
	}, nil
}

func (b *Bot) SelfID() int64 {
	if b == nil || b.api == nil {
		return 0
	}
	return b.api.Self.ID
}

// Listen long-polls getUpdates and routes messages until ctx is done.
func (b *Bot) Listen(ctx context.Context, handlers Handlers) error {
	if b == nil || b.api == nil {
		return fmt.Errorf("telegram bot is not initialized")
	}

	updates := make(chan Update, b.api.Buffer)
	go b.poll(ctx, updates)

	for {
		select {
		case <-ctx.Done():
			return nil
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			b.route(ctx, update, handlers)
		}
	}
}

// poll fetches updates through a raw getUpdates request so fields tgbotapi
// does not know about survive decoding.
func (b *Bot) poll(ctx context.Context, out chan<- Update) {
	defer close(out)

	cfg := tgbotapi.NewUpdate(0)
	cfg.Timeout = b.pollTimeout
	cfg.AllowedUpdates = []string{"message", "edited_message"}
	retry := backoff.NewExponentialBackOff()
	retry.MaxInterval = 30 * time.Second

	for ctx.Err() == nil {
		resp, err := b.api.Request(cfg)
		var updates []Update
		if err == nil {
			updates, err = DecodeUpdates(resp.Result)
		}
		if err != nil {
			wait := retry.NextBackOff()
			if wait <= 0 {
				wait = retry.MaxInterval
			}
			b.logger.Warn("get telegram updates failed", zap.Error(Classify(err)), zap.Duration("retry_in", wait))
			select {
			case <-ctx.Done():
				return
			case <-time.After(wait):
			}
			continue
		}
		retry.Reset()

		for _, update := range updates {
			if update.UpdateID >= cfg.Offset {
				cfg.Offset = update.UpdateID + 1
			}
			select {
			case <-ctx.Done():
				return
			case out <- update:
			}
		}
	}
}

func (b *Bot) route(ctx context.Context, update Update, handlers Handlers) {
	msg := update.Message
	if msg == nil {
		msg = update.EditedMessage
	}
	if msg == nil || msg.Chat == nil {
		return
	}

	if msg.Chat.IsPrivate() {
		if msg.From == nil {
			return
		}
		if msg.IsCommand() {
			if handlers.OnCommand != nil {
				handlers.OnCommand(ctx, CommandUpdate{
					ChatID:   msg.Chat.ID,
					UserID:   msg.From.ID,
					Username: msg.From.UserName,
					Private:  true,
					Command:  msg.Command(),
					Args:     strings.TrimSpace(msg.CommandArguments()),
				})
			}
			return
		}
		if text := strings.TrimSpace(msg.Text); text != "" && handlers.OnText != nil {
			handlers.OnText(ctx, TextUpdate{ChatID: msg.Chat.ID, UserID: msg.From.ID, Text: text})
		}
		return
	}

	if (msg.Chat.IsGroup() || msg.Chat.IsSuperGroup()) && handlers.OnEvent != nil {
		handlers.OnEvent(ctx, EventFromMessage(msg))
	}
}

// LinkedChatID returns the channel linked to a discussion group, or 0. Results
// are cached for linkedChatTTL.
func (b *Bot) LinkedChatID(ctx context.Context, chatID int64) (int64, error) {
	b.linkedMu.Lock()
	entry, ok := b.linked[chatID]
	b.linkedMu.Unlock()
	if ok && time.Now().Before(entry.expiresAt) {
		return entry.chatID, nil
	}

	if err := b.ready(ctx); err != nil {
		return 0, err
	}
	resp, err := b.api.Request(tgbotapi.ChatInfoConfig{ChatConfig: tgbotapi.ChatConfig{ChatID: chatID}})
	if err != nil {
		return 0, fmt.Errorf("get chat: %w", Classify(err))
	}
	var info struct {
		LinkedChatID int64 `json:"linked_chat_id"`
	}
	if err := json.Unmarshal(resp.Result, &info); err != nil {
		return 0, fmt.Errorf("decode chat info: %w", err)
	}

	b.linkedMu.Lock()
	b.linked[chatID] = linkedChat{chatID: info.LinkedChatID, expiresAt: time.Now().Add(linkedChatTTL)}
	b.linkedMu.Unlock()
	return info.LinkedChatID, nil
}

func (b *Bot) SendText(ctx context.Context, chatID int64, text string) error {
	_, err := b.SendNotice(ctx, chatID, text, 0)
	return err
}

func (b *Bot) SendNotice(ctx context.Context, chatID int64, text string, replyTo int) (int, error) {
	if err := b.ready(ctx); err != nil {
		return 0, err
	}
	if chatID == 0 {
		return 0, fmt.Errorf("chat id is required")
	}

	msg := tgbotapi.NewMessage(chatID, text)
	msg.DisableWebPagePreview = true
	if replyTo > 0 {
		msg.ReplyToMessageID = replyTo
	}

	sent, err := b.api.Send(msg)
	if err != nil {
		return 0, fmt.Errorf("send telegram message: %w", Classify(err))
	}
	return sent.MessageID, nil
}

func (b *Bot) DeleteMessage(ctx context.Context, chatID int64, messageID int) error {
	if err := b.ready(ctx); err != nil {
		return err
	}
	if _, err := b.api.Request(tgbotapi.NewDeleteMessage(chatID, messageID)); err != nil {
		return fmt.Errorf("delete telegram message: %w", Classify(err))
	}
	return nil
}

// Restrict revokes every send permission. A zero until restricts forever.
func (b *Bot) Restrict(ctx context.Context, chatID, userID int64, until time.Time) error {
	if err := b.ready(ctx); err != nil {
		return err
	}
	cfg := tgbotapi.RestrictChatMemberConfig{
		ChatMemberConfig: tgbotapi.ChatMemberConfig{ChatID: chatID, UserID: userID},
		UntilDate:        untilDate(until),
		Permissions:      &tgbotapi.ChatPermissions{},
	}
	if _, err := b.api.Request(cfg); err != nil {
		return fmt.Errorf("restrict chat member: %w", Classify(err))
	}
	return nil
}

func (b *Bot) Unrestrict(ctx context.Context, chatID, userID int64) error {
	if err := b.ready(ctx); err != nil {
		return err
	}
	cfg := tgbotapi.RestrictChatMemberConfig{
		ChatMemberConfig: tgbotapi.ChatMemberConfig{ChatID: chatID, UserID: userID},
		Permissions: &tgbotapi.ChatPermissions{
			CanSendMessages:       true,
			CanSendMediaMessages:  true,
			CanSendPolls:          true,
			CanSendOtherMessages:  true,
			CanAddWebPagePreviews: true,
			CanInviteUsers:        true,
		},
	}
	if _, err := b.api.Request(cfg); err != nil {
		return fmt.Errorf("unrestrict chat member: %w", Classify(err))
	}
	return nil
}

// Ban removes the member. A zero until bans forever.
func (b *Bot) Ban(ctx context.Context, chatID, userID int64, until time.Time) error {
	if err := b.ready(ctx); err != nil {
		return err
	}
	cfg := tgbotapi.BanChatMemberConfig{
		ChatMemberConfig: tgbotapi.ChatMemberConfig{ChatID: chatID, UserID: userID},
		UntilDate:        untilDate(until),
	}
	if _, err := b.api.Request(cfg); err != nil {
		return fmt.Errorf("ban chat member: %w", Classify(err))
	}
	return nil
}

func (b *Bot) Unban(ctx context.Context, chatID, userID int64) error {
	if err := b.ready(ctx); err != nil {
		return err
	}
	cfg := tgbotapi.UnbanChatMemberConfig{
		ChatMemberConfig: tgbotapi.ChatMemberConfig{ChatID: chatID, UserID: userID},
		OnlyIfBanned:     true,
	}
	if _, err := b.api.Request(cfg); err != nil {
		return fmt.Errorf("unban chat member: %w", Classify(err))
	}
	return nil
}

func (b *Bot) GetMember(ctx context.Context, chatID, userID int64) (model.MemberState, error) {
	if err := b.ready(ctx); err != nil {
		return model.MemberState{}, err
	}
	member, err := b.api.GetChatMember(tgbotapi.GetChatMemberConfig{
		ChatConfigWithUser: tgbotapi.ChatConfigWithUser{ChatID: chatID, UserID: userID},
	})
	if err != nil {
		return model.MemberState{}, fmt.Errorf("get chat member: %w", Classify(err))
	}
	return memberState(member), nil
}

func (b *Bot) GetSelfMembership(ctx context.Context, chatID int64) (model.MemberState, error) {
	return b.GetMember(ctx, chatID, b.SelfID())
}

func (b *Bot) ready(ctx context.Context) error {
	if b == nil || b.api == nil {
		return fmt.Errorf("telegram bot is not initialized")
	}
	if b.limiter == nil {
		return nil
	}
	if err := b.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("wait telegram rate limit: %w", err)
	}
	return nil
}

func untilDate(until time.Time) int64 {
	if until.IsZero() {
		return 0
	}
	return until.Unix()
}
