package rules

import (
	"regexp"
	"strings"
	"unicode/utf16"

	"github.com/ivankudzin/tgapp/chatguard/internal/domain/model"
)

var (
	// Fallback scanners for text that arrives without entity spans. Bare
	// domains are only picked up for Telegram hosts.
	linkPattern    = regexp.MustCompile(`(?i)(?:https?://|www\.)[^\s<>"']+|\b(?:t\.me|telegram\.me|telegram\.dog)/[^\s<>"']+`)
	mentionPattern = regexp.MustCompile(`(?:^|[^\w@/.])@([A-Za-z][A-Za-z0-9_]{2,31})\b`)
)

type ExtractOptions struct {
	IncludeUsernames bool
}

// Targets holds the candidates of one event, one list per rule category.
type Targets struct {
	TelegramLinks []Target
	Links         []Target

	HasForward    bool
	ForwardTokens []string
	HasQuote      bool
	QuoteTokens   []string
}

// Extract derives enforcement candidates from an event. Malformed entities are
// skipped; the function never fails.
func Extract(event model.Event, opts ExtractOptions) Targets {
	var targets Targets

	links := newTargetSet()
	usernames := newTargetSet()

	units := utf16.Encode([]rune(event.Text))
	for _, entity := range event.Entities {
		switch entity.Type {
		case model.EntityURL:
			if raw, ok := entitySpan(units, entity); ok {
				links.addLink(raw)
			}
		case model.EntityTextLink:
			links.addLink(entity.URL)
		case model.EntityMention:
			if raw, ok := entitySpan(units, entity); ok {
				usernames.addUsername(raw)
			}
		}
	}

	for _, raw := range linkPattern.FindAllString(event.Text, -1) {
		links.addLink(raw)
	}
	for _, match := range mentionPattern.FindAllStringSubmatch(event.Text, -1) {
		usernames.addUsername(match[1])
	}

	targets.Links = links.items
	for _, link := range links.items {
		if isTelegramLink(link) {
			targets.TelegramLinks = append(targets.TelegramLinks, link)
		}
	}
	if opts.IncludeUsernames {
		targets.TelegramLinks = append(targets.TelegramLinks, usernames.items...)
	}

	if event.ForwardOrigin != nil {
		targets.HasForward = true
		targets.ForwardTokens = OriginTokens(*event.ForwardOrigin)
	}
	if event.QuoteOrigin != nil {
		targets.HasQuote = true
		targets.QuoteTokens = OriginTokens(*event.QuoteOrigin)
	}

	return targets
}

// OriginTokens lists every comparable identity of an origin. Hidden users
// have none and can therefore never be whitelisted.
func OriginTokens(origin model.Origin) []string {
	if origin.Kind == model.OriginHiddenUser {
		return nil
	}

	var tokens []string
	if origin.ID != 0 {
		tokens = append(tokens, idTokens(origin.ID)...)
	}
	if handle, ok := NormalizeUsername(origin.Username); ok {
		tokens = append(tokens, handle.Value)
	}
	return tokens
}

func isTelegramLink(target Target) bool {
	return target.Kind == TargetLink &&
		(target.Value == "https://"+telegramHost || strings.HasPrefix(target.Value, "https://"+telegramHost+"/"))
}

func entitySpan(units []uint16, entity model.Entity) (string, bool) {
	if entity.Offset < 0 || entity.Length <= 0 {
		return "", false
	}
	end := entity.Offset + entity.Length
	if end > len(units) || end < entity.Offset {
		return "", false
	}
	return string(utf16.Decode(units[entity.Offset:end])), true
}

type targetSet struct {
	seen  map[string]struct{}
	items []Target
}

func newTargetSet() *targetSet {
	return &targetSet{seen: make(map[string]struct{})}
}

func (s *targetSet) addLink(raw string) {
	if target, ok := NormalizeLink(raw); ok {
		s.add(target)
	}
}

func (s *targetSet) addUsername(raw string) {
	if target, ok := NormalizeUsername(raw); ok {
		s.add(target)
	}
}

func (s *targetSet) add(target Target) {
	key := strings.ToLower(target.Value)
	if _, ok := s.seen[key]; ok {
		return
	}
	s.seen[key] = struct{}{}
	s.items = append(s.items, target)
}
