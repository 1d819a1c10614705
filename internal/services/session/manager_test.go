package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ivankudzin/tgapp/chatguard/internal/domain/enums"
	"github.com/ivankudzin/tgapp/chatguard/internal/domain/model"
)

var (
	wizardKey = Key{UserID: 7, ConversationID: 7}
	target    = model.ChatKey{TenantID: 1, ChatID: -100100}
)

func TestWizardHappyPath(t *testing.T) {
	m := NewManager(nil, time.Minute)
	ctx := context.Background()

	wizard, err := m.Start(ctx, wizardKey, target, enums.RuleCategoryForwarding)
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if wizard.State != StateAwaitingEntries {
		t.Fatalf("unexpected state after start: %s", wizard.State)
	}

	if _, err := m.Input(ctx, wizardKey, 2); err != nil {
		t.Fatalf("input: %v", err)
	}
	wizard, err = m.Input(ctx, wizardKey, 1)
	if err != nil {
		t.Fatalf("input: %v", err)
	}
	if wizard.Added != 3 {
		t.Fatalf("unexpected added count: %d", wizard.Added)
	}

	wizard, err = m.Done(ctx, wizardKey)
	if err != nil {
		t.Fatalf("done: %v", err)
	}
	if wizard.State != StateIdle || wizard.Added != 3 {
		t.Fatalf("unexpected wizard after done: %+v", wizard)
	}

	if _, err := m.Active(ctx, wizardKey); !errors.Is(err, ErrNoSession) {
		t.Fatalf("expected no session after done, got %v", err)
	}
}

func TestWizardTimeoutTransition(t *testing.T) {
	m := NewManager(nil, time.Minute)
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return now }
	ctx := context.Background()

	if _, err := m.Start(ctx, wizardKey, target, enums.RuleCategoryQuoting); err != nil {
		t.Fatalf("start: %v", err)
	}

	now = now.Add(2 * time.Minute)
	if _, err := m.Input(ctx, wizardKey, 1); !errors.Is(err, ErrExpired) {
		t.Fatalf("expected ErrExpired, got %v", err)
	}
	if _, err := m.Active(ctx, wizardKey); !errors.Is(err, ErrNoSession) {
		t.Fatalf("expired wizard must be gone, got %v", err)
	}
}

func TestWizardCancelWithoutSession(t *testing.T) {
	m := NewManager(nil, time.Minute)
	if _, err := m.Cancel(context.Background(), wizardKey); !errors.Is(err, ErrNoSession) {
		t.Fatalf("expected ErrNoSession, got %v", err)
	}
}

func TestWizardsAreKeyedPerConversation(t *testing.T) {
	m := NewManager(nil, time.Minute)
	ctx := context.Background()

	if _, err := m.Start(ctx, wizardKey, target, enums.RuleCategoryForwarding); err != nil {
		t.Fatalf("start: %v", err)
	}
	other := Key{UserID: wizardKey.UserID, ConversationID: -100555}
	if _, err := m.Active(ctx, other); !errors.Is(err, ErrNoSession) {
		t.Fatalf("wizard leaked into another conversation: %v", err)
	}
}

func TestTransitionTable(t *testing.T) {
	if _, err := Next(StateIdle, EventInput); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("input must be rejected while idle")
	}
	if to, err := Next(StateAwaitingEntries, EventTimeout); err != nil || to != StateIdle {
		t.Fatalf("unexpected timeout transition: %s %v", to, err)
	}
}
