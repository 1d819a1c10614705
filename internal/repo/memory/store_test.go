package memory

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/ivankudzin/tgapp/chatguard/internal/domain/enums"
	"github.com/ivankudzin/tgapp/chatguard/internal/domain/model"
)

var testKey = model.ChatKey{TenantID: 1, ChatID: -100777}

func TestIncrementWarnDeletesRecordAtLimit(t *testing.T) {
	store := NewStore()
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	inc := model.WarnIncrement{
		Key:       testKey,
		Category:  enums.RuleCategoryLinksBlock,
		UserID:    5,
		Now:       now,
		ExpiresAt: now.Add(time.Hour),
		Limit:     3,
	}

	for want := 1; want <= 3; want++ {
		got, err := store.IncrementWarn(ctx, inc)
		if err != nil {
			t.Fatalf("increment #%d: %v", want, err)
		}
		if got != want {
			t.Fatalf("unexpected count: got %d want %d", got, want)
		}
	}

	if _, err := store.GetWarn(ctx, testKey, enums.RuleCategoryLinksBlock, 5); !errors.Is(err, model.ErrNotFound) {
		t.Fatalf("expected warn record to be gone at the limit, got %v", err)
	}

	got, err := store.IncrementWarn(ctx, inc)
	if err != nil {
		t.Fatalf("increment after terminal: %v", err)
	}
	if got != 1 {
		t.Fatalf("expected a fresh ladder, got %d", got)
	}
}

func TestIncrementWarnRestartsExpiredRecord(t *testing.T) {
	store := NewStore()
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	inc := model.WarnIncrement{Key: testKey, Category: enums.RuleCategoryForwarding, UserID: 9, Now: now, ExpiresAt: now.Add(time.Minute), Limit: 3}
	if _, err := store.IncrementWarn(ctx, inc); err != nil {
		t.Fatalf("increment: %v", err)
	}

	inc.Now = now.Add(2 * time.Minute)
	inc.ExpiresAt = inc.Now.Add(time.Minute)
	got, err := store.IncrementWarn(ctx, inc)
	if err != nil {
		t.Fatalf("increment: %v", err)
	}
	if got != 1 {
		t.Fatalf("expected expired record to restart, got %d", got)
	}
}

func TestIncrementWarnConcurrentOffendersKeepCounts(t *testing.T) {
	store := NewStore()
	ctx := context.Background()
	now := time.Now()

	var wg sync.WaitGroup
	for userID := int64(1); userID <= 20; userID++ {
		wg.Add(1)
		go func(userID int64) {
			defer wg.Done()
			for i := 0; i < 2; i++ {
				_, _ = store.IncrementWarn(ctx, model.WarnIncrement{
					Key: testKey, Category: enums.RuleCategoryLinksBlock, UserID: userID,
					Now: now, ExpiresAt: now.Add(time.Hour), Limit: 3,
				})
			}
		}(userID)
	}
	wg.Wait()

	for userID := int64(1); userID <= 20; userID++ {
		record, err := store.GetWarn(ctx, testKey, enums.RuleCategoryLinksBlock, userID)
		if err != nil {
			t.Fatalf("get warn %d: %v", userID, err)
		}
		if record.Count != 2 {
			t.Fatalf("lost update for user %d: count=%d", userID, record.Count)
		}
	}
}

func TestDeletePunishmentComparesCreatedAt(t *testing.T) {
	store := NewStore()
	ctx := context.Background()
	first := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	old := model.PunishmentRecord{Key: testKey, Category: enums.RuleCategoryQuoting, UserID: 3, Kind: enums.PunishmentKindBan, CreatedAt: first}
	if err := store.UpsertPunishment(ctx, old); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	replacement := old
	replacement.CreatedAt = first.Add(time.Minute)
	if err := store.UpsertPunishment(ctx, replacement); err != nil {
		t.Fatalf("upsert replacement: %v", err)
	}

	deleted, err := store.DeletePunishment(ctx, old)
	if err != nil {
		t.Fatalf("delete: %v", err)
	}
	if deleted {
		t.Fatalf("stale read must not delete the replacement record")
	}

	deleted, err = store.DeletePunishment(ctx, replacement)
	if err != nil || !deleted {
		t.Fatalf("expected replacement to be deleted, deleted=%v err=%v", deleted, err)
	}
}

func TestListPunishmentsPagesByCursor(t *testing.T) {
	store := NewStore()
	ctx := context.Background()

	for userID := int64(1); userID <= 5; userID++ {
		if err := store.UpsertPunishment(ctx, model.PunishmentRecord{
			Key: testKey, Category: enums.RuleCategoryLinksBlock, UserID: userID, Kind: enums.PunishmentKindMute,
		}); err != nil {
			t.Fatalf("upsert: %v", err)
		}
	}

	var seen []int64
	cursor := model.PunishmentCursor{}
	for {
		page, err := store.ListPunishments(ctx, cursor, 2)
		if err != nil {
			t.Fatalf("list: %v", err)
		}
		if len(page) == 0 {
			break
		}
		for _, record := range page {
			seen = append(seen, record.UserID)
		}
		cursor = model.CursorAfter(page[len(page)-1])
	}

	if len(seen) != 5 || seen[0] != 1 || seen[4] != 5 {
		t.Fatalf("unexpected scan order: %v", seen)
	}
}

func TestWhitelistAddRemoveNormalizes(t *testing.T) {
	store := NewStore()
	ctx := context.Background()

	got, err := store.AddWhitelist(ctx, testKey, enums.RuleCategoryTelegramLinks, []string{"@Good_Chat", "https://t.me/Good_Chat/", "bad entry"})
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("unexpected whitelist after add: %v", got)
	}

	got, err = store.RemoveWhitelist(ctx, testKey, enums.RuleCategoryTelegramLinks, []string{"@good_chat"})
	if err != nil {
		t.Fatalf("remove: %v", err)
	}
	if len(got) != 1 || got[0] != "https://t.me/good_chat" {
		t.Fatalf("unexpected whitelist after remove: %v", got)
	}
}

func TestDueDeletionsAndFailureMark(t *testing.T) {
	store := NewStore()
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	_ = store.ScheduleDeletion(ctx, model.ScheduledDeletion{ChatID: -1, MessageID: 10, Kind: enums.DeletionKindWarning, DueAt: now.Add(-time.Minute)})
	_ = store.ScheduleDeletion(ctx, model.ScheduledDeletion{ChatID: -1, MessageID: 11, Kind: enums.DeletionKindWarning, DueAt: now.Add(time.Minute)})

	due, err := store.ListDueDeletions(ctx, now, 10)
	if err != nil {
		t.Fatalf("list due: %v", err)
	}
	if len(due) != 1 || due[0].MessageID != 10 || due[0].Status != enums.DeletionStatusPending {
		t.Fatalf("unexpected due deletions: %+v", due)
	}

	if err := store.MarkDeletionFailed(ctx, -1, 10); err != nil {
		t.Fatalf("mark failed: %v", err)
	}
	due, _ = store.ListDueDeletions(ctx, now, 10)
	if due[0].Status != enums.DeletionStatusFailed {
		t.Fatalf("expected failed status, got %s", due[0].Status)
	}
}
