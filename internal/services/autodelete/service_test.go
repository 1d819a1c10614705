package autodelete

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ivankudzin/tgapp/chatguard/internal/domain/enums"
	"github.com/ivankudzin/tgapp/chatguard/internal/domain/model"
	"github.com/ivankudzin/tgapp/chatguard/internal/repo/memory"
)

var key = model.ChatKey{TenantID: 2, ChatID: -100300}

func TestScheduleDefaultsToTenMinutes(t *testing.T) {
	store := memory.NewStore()
	svc := NewService(store, store, Config{})
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return now }

	if err := svc.Schedule(context.Background(), key, 55, enums.DeletionKindWarning); err != nil {
		t.Fatalf("schedule: %v", err)
	}

	due, err := store.ListDueDeletions(context.Background(), now.Add(10*time.Minute), 10)
	if err != nil {
		t.Fatalf("list due: %v", err)
	}
	if len(due) != 1 || due[0].MessageID != 55 || !due[0].DueAt.Equal(now.Add(10*time.Minute)) {
		t.Fatalf("unexpected scheduled deletions: %+v", due)
	}
}

func TestScheduleHonorsChatSetting(t *testing.T) {
	store := memory.NewStore()
	svc := NewService(store, store, Config{})
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return now }
	ctx := context.Background()

	if err := svc.UpdateSetting(ctx, key, model.AutoDeleteSetting{Kind: enums.DeletionKindWelcome, Enabled: true, TTL: 30 * time.Second}); err != nil {
		t.Fatalf("update setting: %v", err)
	}
	if err := svc.UpdateSetting(ctx, key, model.AutoDeleteSetting{Kind: enums.DeletionKindGoodbye, Enabled: false}); err != nil {
		t.Fatalf("update setting: %v", err)
	}

	if err := svc.Schedule(ctx, key, 1, enums.DeletionKindWelcome); err != nil {
		t.Fatalf("schedule welcome: %v", err)
	}
	if err := svc.Schedule(ctx, key, 2, enums.DeletionKindGoodbye); err != nil {
		t.Fatalf("schedule goodbye: %v", err)
	}

	due, _ := store.ListDueDeletions(ctx, now.Add(time.Hour), 10)
	if len(due) != 1 || due[0].MessageID != 1 || !due[0].DueAt.Equal(now.Add(30*time.Second)) {
		t.Fatalf("unexpected scheduled deletions: %+v", due)
	}
}

func TestScheduleRejectsUnknownKind(t *testing.T) {
	store := memory.NewStore()
	svc := NewService(store, store, Config{})

	if err := svc.Schedule(context.Background(), key, 1, enums.DeletionKind("banner")); !errors.Is(err, model.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}
