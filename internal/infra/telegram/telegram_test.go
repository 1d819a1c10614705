package telegram

import (
	"errors"
	"fmt"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/ivankudzin/tgapp/chatguard/internal/domain/enums"
	"github.com/ivankudzin/tgapp/chatguard/internal/domain/model"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want enums.ErrorClass
	}{
		{"nil", nil, enums.ErrorClassNone},
		{"network", errors.New("dial tcp: i/o timeout"), enums.ErrorClassTransient},
		{"rate limit", &tgbotapi.Error{Code: 429, Message: "Too Many Requests: retry after 7", ResponseParameters: tgbotapi.ResponseParameters{RetryAfter: 7}}, enums.ErrorClassTransient},
		{"server", &tgbotapi.Error{Code: 502, Message: "Bad Gateway"}, enums.ErrorClassTransient},
		{"rights", &tgbotapi.Error{Code: 400, Message: "Bad Request: not enough rights to restrict/unrestrict chat member"}, enums.ErrorClassPermission},
		{"forbidden", &tgbotapi.Error{Code: 403, Message: "Forbidden: bot can't initiate conversation"}, enums.ErrorClassPermission},
		{"kicked", &tgbotapi.Error{Code: 403, Message: "Forbidden: bot was kicked from the supergroup chat"}, enums.ErrorClassPermanent},
		{"gone", &tgbotapi.Error{Code: 400, Message: "Bad Request: message to delete not found"}, enums.ErrorClassPermanent},
		{"wrapped", fmt.Errorf("call: %w", &tgbotapi.Error{Code: 400, Message: "Bad Request: chat not found"}), enums.ErrorClassPermanent},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := model.ErrorClassOf(Classify(tc.err))
			if got != tc.want {
				t.Fatalf("expected %s, got %s", tc.want, got)
			}
		})
	}
}

func TestClassifyKeepsRetryAfter(t *testing.T) {
	err := Classify(&tgbotapi.Error{Code: 429, ResponseParameters: tgbotapi.ResponseParameters{RetryAfter: 3}})
	if got := model.RetryAfterOf(err); got != 3*time.Second {
		t.Fatalf("expected 3s retry hint, got %v", got)
	}
}

func TestEventFromMessageUsesCaptionAndForwardOrigin(t *testing.T) {
	msg := &Message{Message: tgbotapi.Message{
		MessageID: 42,
		Date:      1700000000,
		Chat:      &tgbotapi.Chat{ID: -1001, Type: "supergroup"},
		From:      &tgbotapi.User{ID: 7, UserName: "alice", FirstName: "Alice"},
		Caption:   "see t.me/spam",
		CaptionEntities: []tgbotapi.MessageEntity{
			{Type: "url", Offset: 4, Length: 9},
		},
		ForwardFromChat: &tgbotapi.Chat{ID: -1002, Type: "channel", UserName: "spamchan", Title: "Spam"},
	}}

	event := EventFromMessage(msg)
	if event.ChatID != -1001 || event.MessageID != 42 || event.Sender.UserID != 7 {
		t.Fatalf("unexpected identity fields: %+v", event)
	}
	if event.Text != "see t.me/spam" || len(event.Entities) != 1 || event.Entities[0].Type != model.EntityURL {
		t.Fatalf("caption was not used as text: %+v", event)
	}
	if event.ForwardOrigin == nil || event.ForwardOrigin.Kind != model.OriginChannel || event.ForwardOrigin.Username != "spamchan" {
		t.Fatalf("unexpected forward origin: %+v", event.ForwardOrigin)
	}
	if event.QuoteOrigin != nil {
		t.Fatalf("expected no quote origin, got %+v", event.QuoteOrigin)
	}
	if !event.ReceivedAt.Equal(time.Unix(1700000000, 0)) {
		t.Fatalf("unexpected received at: %v", event.ReceivedAt)
	}
}

const updatesPayload = `[
  {
    "update_id": 500,
    "message": {
      "message_id": 10,
      "date": 1700000000,
      "chat": {"id": -1001, "type": "supergroup", "title": "Group"},
      "from": {"id": 7, "is_bot": false, "first_name": "Alice"},
      "text": "look at this",
      "external_reply": {
        "origin": {"type": "channel", "date": 1699990000, "message_id": 3,
          "chat": {"id": -1002222, "type": "channel", "title": "Promo", "username": "promo"}},
        "chat": {"id": -1002222, "type": "channel", "title": "Promo", "username": "promo"},
        "message_id": 3
      },
      "quote": {"text": "buy now", "position": 0}
    }
  },
  {
    "update_id": 501,
    "message": {
      "message_id": 11,
      "date": 1700000001,
      "chat": {"id": -1001, "type": "supergroup", "title": "Group"},
      "from": {"id": 8, "is_bot": false, "first_name": "Bob"},
      "text": "fwd",
      "forward_origin": {"type": "hidden_user", "date": 1699990000, "sender_user_name": "Someone"}
    }
  },
  {
    "update_id": 502,
    "message": {
      "message_id": 12,
      "date": 1700000002,
      "chat": {"id": -1001, "type": "supergroup", "title": "Group"},
      "from": {"id": 9, "is_bot": false, "first_name": "Carol"},
      "text": "fwd",
      "forward_origin": {"type": "user", "date": 1699990000,
        "sender_user": {"id": 55, "is_bot": false, "first_name": "Dan", "username": "dan"}},
      "reply_to_message": {
        "message_id": 9,
        "date": 1699999999,
        "chat": {"id": -1001, "type": "supergroup", "title": "Group"},
        "from": {"id": 8, "is_bot": false, "first_name": "Bob"},
        "text": "earlier"
      }
    }
  },
  {
    "update_id": 503,
    "edited_message": {
      "message_id": 13,
      "date": 1700000003,
      "chat": {"id": -1001, "type": "supergroup", "title": "Group"},
      "from": {"id": 136817688, "is_bot": true, "first_name": "Channel"},
      "sender_chat": {"id": -1003333, "type": "channel", "title": "News"},
      "is_automatic_forward": true,
      "text": "post",
      "external_reply": {
        "origin": {"type": "chat", "date": 1699990000,
          "sender_chat": {"id": -1004444, "type": "supergroup", "title": "Elsewhere"}}
      }
    }
  }
]`

func TestDecodeUpdatesReadsOrigins(t *testing.T) {
	updates, err := DecodeUpdates([]byte(updatesPayload))
	if err != nil {
		t.Fatalf("decode updates: %v", err)
	}
	if len(updates) != 4 || updates[3].EditedMessage == nil {
		t.Fatalf("unexpected updates: %+v", updates)
	}

	quoted := EventFromMessage(updates[0].Message)
	if quoted.QuoteOrigin == nil || quoted.QuoteOrigin.Kind != model.OriginChannel || quoted.QuoteOrigin.ID != -1002222 || quoted.QuoteOrigin.Username != "promo" {
		t.Fatalf("unexpected quote origin: %+v", quoted.QuoteOrigin)
	}
	if quoted.ForwardOrigin != nil {
		t.Fatalf("expected no forward origin, got %+v", quoted.ForwardOrigin)
	}

	hidden := EventFromMessage(updates[1].Message)
	if hidden.ForwardOrigin == nil || hidden.ForwardOrigin.Kind != model.OriginHiddenUser || hidden.ForwardOrigin.Title != "Someone" {
		t.Fatalf("unexpected hidden forward origin: %+v", hidden.ForwardOrigin)
	}

	forwarded := EventFromMessage(updates[2].Message)
	if forwarded.ForwardOrigin == nil || forwarded.ForwardOrigin.Kind != model.OriginUser || forwarded.ForwardOrigin.ID != 55 {
		t.Fatalf("unexpected user forward origin: %+v", forwarded.ForwardOrigin)
	}
	if forwarded.QuoteOrigin != nil {
		t.Fatalf("a reply inside the chat is not a quote: %+v", forwarded.QuoteOrigin)
	}

	channelPost := EventFromMessage(updates[3].EditedMessage)
	if channelPost.Sender.SenderChatID != -1003333 || !channelPost.Sender.AutomaticForward {
		t.Fatalf("unexpected sender: %+v", channelPost.Sender)
	}
	if channelPost.QuoteOrigin == nil || channelPost.QuoteOrigin.Kind != model.OriginChat || channelPost.QuoteOrigin.ID != -1004444 {
		t.Fatalf("unexpected quote origin from chat origin: %+v", channelPost.QuoteOrigin)
	}
}

func TestQuoteOriginIgnoresExternalReplyFromSameChat(t *testing.T) {
	event := EventFromMessage(&Message{
		Message: tgbotapi.Message{
			Chat: &tgbotapi.Chat{ID: -1001, Type: "supergroup"},
			From: &tgbotapi.User{ID: 7},
		},
		ExternalReply: &ExternalReply{Chat: &tgbotapi.Chat{ID: -1001, Type: "supergroup"}},
	})
	if event.QuoteOrigin != nil {
		t.Fatalf("a quote from another topic of the same chat is not external: %+v", event.QuoteOrigin)
	}
}

func TestMemberState(t *testing.T) {
	creator := memberState(tgbotapi.ChatMember{Status: "creator"})
	if !creator.IsAdmin() || !creator.CanRestrict {
		t.Fatalf("creator must be able to restrict: %+v", creator)
	}

	muted := memberState(tgbotapi.ChatMember{Status: "restricted", IsMember: true, UntilDate: 1700000000})
	if !muted.Muted() || muted.UntilDate == nil {
		t.Fatalf("expected muted member with until date: %+v", muted)
	}

	member := memberState(tgbotapi.ChatMember{Status: "member"})
	if member.Muted() || !member.IsMember {
		t.Fatalf("plain member must not be muted: %+v", member)
	}
}
