package enums

import "strings"

type Penalty string

const (
	PenaltyOff  Penalty = "off"
	PenaltyWarn Penalty = "warn"
	PenaltyKick Penalty = "kick"
	PenaltyMute Penalty = "mute"
	PenaltyBan  Penalty = "ban"
)

func ParsePenalty(raw string) (Penalty, bool) {
	switch Penalty(strings.ToLower(strings.TrimSpace(raw))) {
	case PenaltyOff:
		return PenaltyOff, true
	case PenaltyWarn:
		return PenaltyWarn, true
	case PenaltyKick:
		return PenaltyKick, true
	case PenaltyMute:
		return PenaltyMute, true
	case PenaltyBan:
		return PenaltyBan, true
	default:
		return "", false
	}
}

// Severity orders penalties when several categories fire on one event.
func (p Penalty) Severity() int {
	switch p {
	case PenaltyWarn:
		return 1
	case PenaltyKick:
		return 2
	case PenaltyMute:
		return 3
	case PenaltyBan:
		return 4
	default:
		return 0
	}
}

// RequiresPrivilege reports whether applying the penalty changes membership state.
func (p Penalty) RequiresPrivilege() bool {
	return p == PenaltyKick || p == PenaltyMute || p == PenaltyBan
}

// Timed reports whether penalty_duration has a meaning for the penalty.
func (p Penalty) Timed() bool {
	return p == PenaltyWarn || p == PenaltyMute || p == PenaltyBan
}

type PunishmentKind string

const (
	PunishmentKindMute PunishmentKind = "mute"
	PunishmentKindBan  PunishmentKind = "ban"
)

func PunishmentKindFor(p Penalty) (PunishmentKind, bool) {
	switch p {
	case PenaltyMute:
		return PunishmentKindMute, true
	case PenaltyBan:
		return PunishmentKindBan, true
	default:
		return "", false
	}
}
