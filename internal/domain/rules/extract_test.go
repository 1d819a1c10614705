package rules

import (
	"testing"

	"github.com/ivankudzin/tgapp/chatguard/internal/domain/model"
)

func TestExtractLinksFromEntitiesAndText(t *testing.T) {
	text := "Join t.me/SpamChannel and https://example.com/Offer now"
	event := model.Event{
		Text: text,
		Entities: []model.Entity{
			{Type: model.EntityURL, Offset: 5, Length: 16},
			{Type: model.EntityTextLink, Offset: 0, Length: 4, URL: "https://T.ME/spamchannel/"},
			{Type: model.EntityURL, Offset: 500, Length: 3},
		},
	}

	targets := Extract(event, ExtractOptions{})

	if len(targets.Links) != 2 {
		t.Fatalf("expected two distinct links, got %v", targets.Links)
	}
	if len(targets.TelegramLinks) != 1 || targets.TelegramLinks[0].Value != "https://t.me/spamchannel" {
		t.Fatalf("unexpected telegram links: %v", targets.TelegramLinks)
	}
}

func TestExtractHandlesUTF16Offsets(t *testing.T) {
	text := "😀 @SomeUser hi"
	event := model.Event{
		Text: text,
		Entities: []model.Entity{
			{Type: model.EntityMention, Offset: 3, Length: 9},
		},
	}

	targets := Extract(event, ExtractOptions{IncludeUsernames: true})
	if len(targets.TelegramLinks) != 1 || targets.TelegramLinks[0].Value != "@someuser" {
		t.Fatalf("unexpected targets: %v", targets.TelegramLinks)
	}
}

func TestExtractUsernamesOnlyWhenEnabled(t *testing.T) {
	event := model.Event{Text: "ping @someone please, mail me at a@b.com"}

	disabled := Extract(event, ExtractOptions{})
	if len(disabled.TelegramLinks) != 0 {
		t.Fatalf("usernames must be ignored when disabled: %v", disabled.TelegramLinks)
	}

	enabled := Extract(event, ExtractOptions{IncludeUsernames: true})
	if len(enabled.TelegramLinks) != 1 || enabled.TelegramLinks[0].Value != "@someone" {
		t.Fatalf("unexpected usernames: %v", enabled.TelegramLinks)
	}
}

func TestExtractOrigins(t *testing.T) {
	event := model.Event{
		ForwardOrigin: &model.Origin{Kind: model.OriginChannel, ID: -1001234567890, Username: "NewsFeed"},
		QuoteOrigin:   &model.Origin{Kind: model.OriginHiddenUser, Title: "Someone"},
	}

	targets := Extract(event, ExtractOptions{})
	if !targets.HasForward || len(targets.ForwardTokens) != 3 {
		t.Fatalf("unexpected forward tokens: %v", targets.ForwardTokens)
	}
	if !targets.HasQuote || len(targets.QuoteTokens) != 0 {
		t.Fatalf("hidden quote origin must have no tokens: %v", targets.QuoteTokens)
	}
}

func TestExtractNeverFailsOnMalformedEntities(t *testing.T) {
	event := model.Event{
		Text: "short",
		Entities: []model.Entity{
			{Type: model.EntityURL, Offset: -1, Length: 3},
			{Type: model.EntityURL, Offset: 2, Length: 0},
			{Type: model.EntityMention, Offset: 4, Length: 10},
			{Type: model.EntityTextLink, URL: "::::"},
		},
	}

	targets := Extract(event, ExtractOptions{IncludeUsernames: true})
	if len(targets.Links) != 0 || len(targets.TelegramLinks) != 0 {
		t.Fatalf("expected no targets, got %+v", targets)
	}
}
