package model

import "time"

// Entity types follow the Bot API names.
const (
	EntityURL         = "url"
	EntityTextLink    = "text_link"
	EntityMention     = "mention"
	EntityTextMention = "text_mention"
)

// Entity is a rich-text span. Offset and Length are in UTF-16 code units.
type Entity struct {
	Type   string
	Offset int
	Length int
	URL    string
	UserID int64
}

type OriginKind string

const (
	OriginUser       OriginKind = "user"
	OriginHiddenUser OriginKind = "hidden_user"
	OriginChat       OriginKind = "chat"
	OriginChannel    OriginKind = "channel"
)

// Origin identifies where forwarded or quoted content came from.
type Origin struct {
	Kind     OriginKind
	ID       int64
	Username string
	Title    string
}

type Sender struct {
	UserID    int64
	Username  string
	FirstName string
	IsBot     bool
	// SenderChatID is set when the message was sent on behalf of a chat:
	// an anonymous admin, the linked channel or any other channel.
	SenderChatID int64
	// AutomaticForward marks a linked channel post copied into its
	// discussion group.
	AutomaticForward bool
}

// Event is one normalized inbound chat message.
type Event struct {
	ChatID        int64
	MessageID     int
	Sender        Sender
	Text          string
	Entities      []Entity
	ForwardOrigin *Origin
	QuoteOrigin   *Origin
	ReceivedAt    time.Time
}
