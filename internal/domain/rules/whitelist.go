package rules

import (
	"net/url"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

type TargetKind string

const (
	TargetUsername TargetKind = "username"
	TargetLink     TargetKind = "link"
)

// Target is a canonical enforcement target: "@handle" or "https://host/path".
type Target struct {
	Kind  TargetKind
	Value string
}

func (t Target) String() string {
	return t.Value
}

const telegramHost = "t.me"

var (
	usernamePattern = regexp.MustCompile(`^[a-z0-9_]{3,32}$`)
	hostPattern     = regexp.MustCompile(`^[a-z0-9]([a-z0-9-]*[a-z0-9])?(\.[a-z0-9]([a-z0-9-]*[a-z0-9])?)+$`)

	telegramAliases = map[string]struct{}{
		"t.me":         {},
		"telegram.me":  {},
		"telegram.dog": {},
	}

	// Path prefixes on t.me that are not usernames.
	reservedSegments = map[string]struct{}{
		"joinchat":    {},
		"s":           {},
		"c":           {},
		"addstickers": {},
		"addemoji":    {},
		"addlist":     {},
		"share":       {},
		"proxy":       {},
		"socks":       {},
		"iv":          {},
		"boost":       {},
		"m":           {},
	}
)

// NormalizeUsername returns "@handle" in lowercase.
func NormalizeUsername(raw string) (Target, bool) {
	value := strings.ToLower(strings.TrimSpace(raw))
	value = strings.TrimPrefix(value, "@")
	if !usernamePattern.MatchString(value) {
		return Target{}, false
	}
	return Target{Kind: TargetUsername, Value: "@" + value}, true
}

// NormalizeLink returns the canonical https form. Scheme, www prefix, query,
// fragment, port and trailing slashes are dropped. Telegram host aliases and
// username subdomains fold to t.me.
func NormalizeLink(raw string) (Target, bool) {
	value := strings.TrimSpace(raw)
	value = strings.TrimRight(value, ".,;:!?)]}'\"")
	if value == "" {
		return Target{}, false
	}

	lower := strings.ToLower(value)
	if !strings.HasPrefix(lower, "http://") && !strings.HasPrefix(lower, "https://") {
		if strings.Contains(lower, "://") {
			return Target{}, false
		}
		value = "https://" + value
	}

	parsed, err := url.Parse(value)
	if err != nil || parsed.Host == "" {
		return Target{}, false
	}

	host := strings.ToLower(parsed.Hostname())
	host = strings.TrimSuffix(host, ".")
	host = strings.TrimPrefix(host, "www.")
	if !hostPattern.MatchString(host) {
		return Target{}, false
	}

	segments := splitPath(parsed.EscapedPath())

	if _, ok := telegramAliases[host]; ok {
		host = telegramHost
	} else if sub, ok := telegramSubdomain(host); ok {
		host = telegramHost
		segments = append([]string{sub}, segments...)
	}

	lowerFirstSegment(segments, host == telegramHost)

	canonical := "https://" + host
	if len(segments) > 0 {
		canonical += "/" + strings.Join(segments, "/")
	}
	return Target{Kind: TargetLink, Value: canonical}, true
}

// NormalizeEntry classifies a stored whitelist entry. Entries starting with
// "@" or made only of handle characters are usernames, everything else is a link.
func NormalizeEntry(raw string) (Target, bool) {
	value := strings.TrimSpace(raw)
	if value == "" {
		return Target{}, false
	}
	if strings.HasPrefix(value, "@") {
		return NormalizeUsername(value)
	}
	if !strings.ContainsAny(value, "./:") {
		return NormalizeUsername(value)
	}
	return NormalizeLink(value)
}

// NormalizeWhitelist canonicalizes entries, dropping invalid ones and duplicates.
func NormalizeWhitelist(entries []string) []Target {
	seen := make(map[Target]struct{}, len(entries))
	out := make([]Target, 0, len(entries))
	for _, entry := range entries {
		target, ok := NormalizeEntry(entry)
		if !ok {
			continue
		}
		if _, dup := seen[target]; dup {
			continue
		}
		seen[target] = struct{}{}
		out = append(out, target)
	}
	return out
}

// Whitelisted reports whether target is covered by one of the entries.
// Usernames only match usernames and links only match links. A whitelisted
// link covers itself and every deeper path under it.
func Whitelisted(target Target, whitelist []Target) bool {
	for _, entry := range whitelist {
		if entry.Kind != target.Kind {
			continue
		}
		switch target.Kind {
		case TargetUsername:
			if entry.Value == target.Value {
				return true
			}
		case TargetLink:
			if entry.Value == target.Value || strings.HasPrefix(target.Value, entry.Value+"/") {
				return true
			}
		}
	}
	return false
}

// NormalizeOriginEntry turns a forwarding/quoting whitelist entry into tokens.
// Numbers are kept as signed ids; "-100" channel ids also yield the bare id.
// Handles and t.me links yield "@handle".
func NormalizeOriginEntry(raw string) []string {
	value := strings.TrimSpace(raw)
	if value == "" {
		return nil
	}

	if id, err := strconv.ParseInt(strings.TrimPrefix(value, "+"), 10, 64); err == nil && id != 0 {
		return idTokens(id)
	}

	if target, ok := NormalizeEntry(value); ok {
		switch target.Kind {
		case TargetUsername:
			return []string{target.Value}
		case TargetLink:
			if handle, ok := telegramHandle(target); ok {
				return []string{handle}
			}
		}
	}
	return nil
}

func NormalizeOriginWhitelist(entries []string) map[string]struct{} {
	tokens := make(map[string]struct{}, len(entries))
	for _, entry := range entries {
		for _, token := range NormalizeOriginEntry(entry) {
			tokens[token] = struct{}{}
		}
	}
	return tokens
}

// OriginWhitelisted reports whether the origin token set intersects the whitelist.
func OriginWhitelisted(origin []string, whitelist map[string]struct{}) bool {
	for _, token := range origin {
		if _, ok := whitelist[token]; ok {
			return true
		}
	}
	return false
}

// CanonicalEntries renders normalized entries back to sorted strings for storage.
func CanonicalEntries(entries []string) []string {
	targets := NormalizeWhitelist(entries)
	out := make([]string, 0, len(targets))
	for _, target := range targets {
		out = append(out, target.Value)
	}
	sort.Strings(out)
	return out
}

// CanonicalOriginEntries keeps entries whose origin form is valid, normalized
// to their first token.
func CanonicalOriginEntries(entries []string) []string {
	seen := make(map[string]struct{}, len(entries))
	out := make([]string, 0, len(entries))
	for _, entry := range entries {
		tokens := NormalizeOriginEntry(entry)
		if len(tokens) == 0 {
			continue
		}
		if _, dup := seen[tokens[0]]; dup {
			continue
		}
		seen[tokens[0]] = struct{}{}
		out = append(out, tokens[0])
	}
	sort.Strings(out)
	return out
}

func idTokens(id int64) []string {
	signed := strconv.FormatInt(id, 10)
	tokens := []string{signed}
	if bare, ok := strings.CutPrefix(signed, "-100"); ok && bare != "" {
		tokens = append(tokens, bare)
	}
	return tokens
}

func telegramHandle(target Target) (string, bool) {
	rest, ok := strings.CutPrefix(target.Value, "https://"+telegramHost+"/")
	if !ok {
		return "", false
	}
	first, _, _ := strings.Cut(rest, "/")
	if _, reserved := reservedSegments[first]; reserved {
		return "", false
	}
	handle, ok := NormalizeUsername(first)
	if !ok {
		return "", false
	}
	return handle.Value, true
}

func telegramSubdomain(host string) (string, bool) {
	sub, ok := strings.CutSuffix(host, "."+telegramHost)
	if !ok || strings.Contains(sub, ".") {
		return "", false
	}
	if !usernamePattern.MatchString(sub) {
		return "", false
	}
	return sub, true
}

func splitPath(path string) []string {
	parts := strings.Split(path, "/")
	segments := make([]string, 0, len(parts))
	for _, part := range parts {
		if part == "" {
			continue
		}
		segments = append(segments, part)
	}
	return segments
}

func lowerFirstSegment(segments []string, telegram bool) {
	for i, segment := range segments {
		lowered := strings.ToLower(segment)
		if telegram {
			if _, reserved := reservedSegments[lowered]; reserved {
				segments[i] = lowered
				continue
			}
		}
		segments[i] = lowered
		return
	}
}
