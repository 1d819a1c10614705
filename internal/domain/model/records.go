package model

import (
	"time"

	"github.com/ivankudzin/tgapp/chatguard/internal/domain/enums"
)

const MaxWarnCount = 3

type WarnRecord struct {
	Key       ChatKey
	Category  enums.RuleCategory
	UserID    int64
	Count     int
	ExpiresAt time.Time
}

type PunishmentRecord struct {
	Key      ChatKey
	Category enums.RuleCategory
	UserID   int64
	Kind     enums.PunishmentKind
	// ExpiresAt is nil for permanent punishments.
	ExpiresAt *time.Time
	CreatedAt time.Time
}

func (p PunishmentRecord) Expired(now time.Time) bool {
	return p.ExpiresAt != nil && !p.ExpiresAt.After(now)
}

type ScheduledDeletion struct {
	ChatID    int64
	MessageID int
	Kind      enums.DeletionKind
	DueAt     time.Time
	Status    enums.DeletionStatus
}

// MemberState is the live platform view of one chat member.
type MemberState struct {
	Status          string
	IsMember        bool
	CanSendMessages bool
	CanRestrict     bool
	CanDelete       bool
	UntilDate       *time.Time
}

const (
	MemberStatusCreator       = "creator"
	MemberStatusAdministrator = "administrator"
	MemberStatusMember        = "member"
	MemberStatusRestricted    = "restricted"
	MemberStatusLeft          = "left"
	MemberStatusKicked        = "kicked"
)

func (m MemberState) IsAdmin() bool {
	return m.Status == MemberStatusCreator || m.Status == MemberStatusAdministrator
}

func (m MemberState) Banned() bool {
	return m.Status == MemberStatusKicked
}

func (m MemberState) Muted() bool {
	return m.Status == MemberStatusRestricted && !m.CanSendMessages
}

// WarnIncrement is one atomic warn-ladder step. A stored record that expired
// before Now restarts at 1. Reaching Limit deletes the record in the same write.
type WarnIncrement struct {
	Key       ChatKey
	Category  enums.RuleCategory
	UserID    int64
	Now       time.Time
	ExpiresAt time.Time
	Limit     int
}

// PunishmentCursor is the keyset position of a punishment scan. The zero value
// starts from the beginning.
type PunishmentCursor struct {
	TenantID int64
	ChatID   int64
	Category enums.RuleCategory
	UserID   int64
}

func CursorAfter(record PunishmentRecord) PunishmentCursor {
	return PunishmentCursor{
		TenantID: record.Key.TenantID,
		ChatID:   record.Key.ChatID,
		Category: record.Category,
		UserID:   record.UserID,
	}
}
