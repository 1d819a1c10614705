package enums

import "strings"

type DeletionKind string

const (
	DeletionKindWarning     DeletionKind = "warning"
	DeletionKindEnforcement DeletionKind = "enforcement"
	DeletionKindWelcome     DeletionKind = "welcome"
	DeletionKindGoodbye     DeletionKind = "goodbye"
	DeletionKindService     DeletionKind = "service"
)

var DeletionKinds = []DeletionKind{
	DeletionKindWarning,
	DeletionKindEnforcement,
	DeletionKindWelcome,
	DeletionKindGoodbye,
	DeletionKindService,
}

func ParseDeletionKind(raw string) (DeletionKind, bool) {
	value := DeletionKind(strings.ToLower(strings.TrimSpace(raw)))
	for _, kind := range DeletionKinds {
		if kind == value {
			return kind, true
		}
	}
	return "", false
}

type DeletionStatus string

const (
	DeletionStatusPending DeletionStatus = "pending"
	DeletionStatusFailed  DeletionStatus = "failed"
)
