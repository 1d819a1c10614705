package redis

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"

	"github.com/ivankudzin/tgapp/chatguard/internal/domain/enums"
	"github.com/ivankudzin/tgapp/chatguard/internal/domain/model"
	"github.com/ivankudzin/tgapp/chatguard/internal/services/session"
)

func newTestClient(t *testing.T) (*miniredis.Miniredis, *goredis.Client) {
	t.Helper()

	mini, err := miniredis.Run()
	if err != nil {
		t.Fatalf("start miniredis: %v", err)
	}
	t.Cleanup(mini.Close)

	client := NewClient(mini.Addr(), "", 0)
	t.Cleanup(func() { _ = client.Close() })
	return mini, client
}

func TestLockRepoIsExclusiveAndTokenBound(t *testing.T) {
	mini, client := newTestClient(t)
	repo := NewLockRepo(client)
	ctx := context.Background()

	ok, err := repo.TryLock(ctx, "reconcile", "a", time.Minute)
	if err != nil || !ok {
		t.Fatalf("first lock: ok=%v err=%v", ok, err)
	}
	ok, err = repo.TryLock(ctx, "reconcile", "b", time.Minute)
	if err != nil || ok {
		t.Fatalf("second lock must fail: ok=%v err=%v", ok, err)
	}

	if err := repo.Unlock(ctx, "reconcile", "b"); err != nil {
		t.Fatalf("foreign unlock: %v", err)
	}
	if !mini.Exists(lockKey("reconcile")) {
		t.Fatalf("foreign token must not release the lock")
	}

	if err := repo.Unlock(ctx, "reconcile", "a"); err != nil {
		t.Fatalf("unlock: %v", err)
	}
	ok, err = repo.TryLock(ctx, "reconcile", "b", time.Minute)
	if err != nil || !ok {
		t.Fatalf("lock after release: ok=%v err=%v", ok, err)
	}
}

func TestLockRepoExpires(t *testing.T) {
	mini, client := newTestClient(t)
	repo := NewLockRepo(client)
	ctx := context.Background()

	if ok, err := repo.TryLock(ctx, "autodelete", "a", 10*time.Second); err != nil || !ok {
		t.Fatalf("lock: ok=%v err=%v", ok, err)
	}
	mini.FastForward(11 * time.Second)

	if ok, err := repo.TryLock(ctx, "autodelete", "b", 10*time.Second); err != nil || !ok {
		t.Fatalf("expired lock must be free: ok=%v err=%v", ok, err)
	}
}

func TestPrivilegeRepo(t *testing.T) {
	mini, client := newTestClient(t)
	repo := NewPrivilegeRepo(client)
	ctx := context.Background()

	if _, ok, err := repo.GetPrivilege(ctx, -100, 7); err != nil || ok {
		t.Fatalf("expected cache miss: ok=%v err=%v", ok, err)
	}

	if err := repo.SetPrivilege(ctx, -100, 7, enums.PrivilegeUnknown, time.Minute); err != nil {
		t.Fatalf("set unknown: %v", err)
	}
	if _, ok, _ := repo.GetPrivilege(ctx, -100, 7); ok {
		t.Fatalf("unknown must not be cached")
	}

	if err := repo.SetPrivilege(ctx, -100, 7, enums.PrivilegeAdmin, time.Minute); err != nil {
		t.Fatalf("set admin: %v", err)
	}
	privilege, ok, err := repo.GetPrivilege(ctx, -100, 7)
	if err != nil || !ok || privilege != enums.PrivilegeAdmin {
		t.Fatalf("unexpected cached privilege: %s ok=%v err=%v", privilege, ok, err)
	}

	mini.FastForward(2 * time.Minute)
	if _, ok, _ := repo.GetPrivilege(ctx, -100, 7); ok {
		t.Fatalf("expected entry to expire")
	}
}

func TestWizardRepoRoundTripWithManager(t *testing.T) {
	mini, client := newTestClient(t)
	repo := NewWizardRepo(client)
	manager := session.NewManager(repo, 5*time.Minute)
	ctx := context.Background()
	key := session.Key{UserID: 7, ConversationID: 7}
	target := model.ChatKey{TenantID: 1, ChatID: -100}

	if _, err := manager.Start(ctx, key, target, enums.RuleCategoryForwarding); err != nil {
		t.Fatalf("start wizard: %v", err)
	}
	if _, err := manager.Input(ctx, key, 2); err != nil {
		t.Fatalf("input: %v", err)
	}

	wizard, err := manager.Active(ctx, key)
	if err != nil {
		t.Fatalf("active: %v", err)
	}
	if wizard.Target != target || wizard.Category != enums.RuleCategoryForwarding || wizard.Added != 2 {
		t.Fatalf("unexpected wizard: %+v", wizard)
	}
	if ttl := mini.TTL(wizardKey(key)); ttl <= 5*time.Minute {
		t.Fatalf("expected ttl beyond the timeout, got %v", ttl)
	}

	if _, err := manager.Done(ctx, key); err != nil {
		t.Fatalf("done: %v", err)
	}
	if mini.Exists(wizardKey(key)) {
		t.Fatalf("expected wizard to be deleted")
	}
}
