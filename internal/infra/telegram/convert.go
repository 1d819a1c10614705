package telegram

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/ivankudzin/tgapp/chatguard/internal/domain/model"
)

// Update is the subset of a Bot API update the bot routes.
type Update struct {
	UpdateID      int      `json:"update_id"`
	Message       *Message `json:"message,omitempty"`
	EditedMessage *Message `json:"edited_message,omitempty"`
}

// Message adds the Bot API fields tgbotapi v5 does not decode.
type Message struct {
	tgbotapi.Message
	ForwardOrigin      *MessageOrigin `json:"forward_origin,omitempty"`
	ExternalReply      *ExternalReply `json:"external_reply,omitempty"`
	IsAutomaticForward bool           `json:"is_automatic_forward,omitempty"`
}

type MessageOrigin struct {
	Type           string         `json:"type"`
	SenderUser     *tgbotapi.User `json:"sender_user,omitempty"`
	SenderUserName string         `json:"sender_user_name,omitempty"`
	SenderChat     *tgbotapi.Chat `json:"sender_chat,omitempty"`
	Chat           *tgbotapi.Chat `json:"chat,omitempty"`
}

// ExternalReply describes a message from another chat or topic that the
// message replies to or quotes.
type ExternalReply struct {
	Origin *MessageOrigin `json:"origin,omitempty"`
	Chat   *tgbotapi.Chat `json:"chat,omitempty"`
}

// DecodeUpdates parses the result of getUpdates.
func DecodeUpdates(raw json.RawMessage) ([]Update, error) {
	var updates []Update
	if err := json.Unmarshal(raw, &updates); err != nil {
		return nil, fmt.Errorf("decode telegram updates: %w", err)
	}
	return updates, nil
}

// EventFromMessage normalizes a group message. Captions stand in for text on
// media messages.
func EventFromMessage(msg *Message) model.Event {
	if msg == nil {
		return model.Event{}
	}

	event := model.Event{
		MessageID:  msg.MessageID,
		Text:       msg.Text,
		Entities:   convertEntities(msg.Entities),
		ReceivedAt: time.Unix(int64(msg.Date), 0).UTC(),
	}
	if msg.Chat != nil {
		event.ChatID = msg.Chat.ID
	}
	if event.Text == "" && msg.Caption != "" {
		event.Text = msg.Caption
		event.Entities = convertEntities(msg.CaptionEntities)
	}
	if msg.From != nil {
		event.Sender = model.Sender{
			UserID:    msg.From.ID,
			Username:  msg.From.UserName,
			FirstName: msg.From.FirstName,
			IsBot:     msg.From.IsBot,
		}
	}
	if msg.SenderChat != nil {
		event.Sender.SenderChatID = msg.SenderChat.ID
		event.Sender.AutomaticForward = msg.IsAutomaticForward
	}

	event.ForwardOrigin = forwardOrigin(msg)
	event.QuoteOrigin = quoteOrigin(msg)
	return event
}

func convertEntities(entities []tgbotapi.MessageEntity) []model.Entity {
	if len(entities) == 0 {
		return nil
	}
	out := make([]model.Entity, 0, len(entities))
	for _, entity := range entities {
		item := model.Entity{
			Type:   entity.Type,
			Offset: entity.Offset,
			Length: entity.Length,
			URL:    entity.URL,
		}
		if entity.User != nil {
			item.UserID = entity.User.ID
		}
		out = append(out, item)
	}
	return out
}

// forwardOrigin prefers forward_origin and falls back to the legacy
// forward_from fields older servers still send.
func forwardOrigin(msg *Message) *model.Origin {
	if origin := fromMessageOrigin(msg.ForwardOrigin); origin != nil {
		return origin
	}
	switch {
	case msg.ForwardFromChat != nil:
		return chatOrigin(msg.ForwardFromChat)
	case msg.ForwardFrom != nil:
		return userOrigin(msg.ForwardFrom)
	case strings.TrimSpace(msg.ForwardSenderName) != "":
		return &model.Origin{Kind: model.OriginHiddenUser, Title: msg.ForwardSenderName}
	default:
		return nil
	}
}

// quoteOrigin reports replies to and quotes of messages from another chat.
// Replies inside the chat arrive as reply_to_message and are not quotes.
func quoteOrigin(msg *Message) *model.Origin {
	reply := msg.ExternalReply
	if reply == nil {
		return nil
	}
	if reply.Chat != nil {
		if msg.Chat != nil && reply.Chat.ID == msg.Chat.ID {
			return nil
		}
		return chatOrigin(reply.Chat)
	}
	return fromMessageOrigin(reply.Origin)
}

func fromMessageOrigin(origin *MessageOrigin) *model.Origin {
	if origin == nil {
		return nil
	}
	switch origin.Type {
	case "user":
		if origin.SenderUser != nil {
			return userOrigin(origin.SenderUser)
		}
	case "hidden_user":
		if name := strings.TrimSpace(origin.SenderUserName); name != "" {
			return &model.Origin{Kind: model.OriginHiddenUser, Title: name}
		}
	case "chat":
		if origin.SenderChat != nil {
			return chatOrigin(origin.SenderChat)
		}
	case "channel":
		if origin.Chat != nil {
			return chatOrigin(origin.Chat)
		}
	}
	return nil
}

func userOrigin(user *tgbotapi.User) *model.Origin {
	return &model.Origin{
		Kind:     model.OriginUser,
		ID:       user.ID,
		Username: user.UserName,
	}
}

func chatOrigin(chat *tgbotapi.Chat) *model.Origin {
	kind := model.OriginChat
	if chat.IsChannel() {
		kind = model.OriginChannel
	}
	return &model.Origin{
		Kind:     kind,
		ID:       chat.ID,
		Username: chat.UserName,
		Title:    chat.Title,
	}
}

func memberState(member tgbotapi.ChatMember) model.MemberState {
	state := model.MemberState{
		Status:          member.Status,
		IsMember:        member.IsMember,
		CanSendMessages: member.CanSendMessages,
		CanRestrict:     member.CanRestrictMembers,
		CanDelete:       member.CanDeleteMessages,
	}

	switch member.Status {
	case model.MemberStatusCreator:
		state.IsMember = true
		state.CanSendMessages = true
		state.CanRestrict = true
		state.CanDelete = true
	case model.MemberStatusAdministrator, model.MemberStatusMember:
		state.IsMember = true
		state.CanSendMessages = true
	}

	if member.UntilDate > 0 {
		until := time.Unix(member.UntilDate, 0).UTC()
		state.UntilDate = &until
	}
	return state
}
