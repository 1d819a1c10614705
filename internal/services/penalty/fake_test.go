package penalty

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ivankudzin/tgapp/chatguard/internal/domain/enums"
	"github.com/ivankudzin/tgapp/chatguard/internal/domain/model"
)

type sentNotice struct {
	text    string
	replyTo int
}

type fakePlatform struct {
	mu sync.Mutex

	self    model.MemberState
	selfErr error

	calls   []string
	notices []sentNotice
	nextID  int

	// failures queues errors per operation name; each call pops one.
	failures      map[string][]error
	restrictUntil []time.Time
	banUntil      []time.Time
}

func newFakePlatform(privileged bool) *fakePlatform {
	self := model.MemberState{Status: model.MemberStatusMember, IsMember: true}
	if privileged {
		self = model.MemberState{Status: model.MemberStatusAdministrator, IsMember: true, CanRestrict: true, CanDelete: true}
	}
	return &fakePlatform{self: self, nextID: 1000, failures: make(map[string][]error)}
}

func (f *fakePlatform) fail(op string, errs ...error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failures[op] = append(f.failures[op], errs...)
}

func (f *fakePlatform) record(op string) error {
	f.calls = append(f.calls, op)
	queue := f.failures[op]
	if len(queue) == 0 {
		return nil
	}
	f.failures[op] = queue[1:]
	return queue[0]
}

func (f *fakePlatform) count(op string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, call := range f.calls {
		if call == op {
			n++
		}
	}
	return n
}

func (f *fakePlatform) DeleteMessage(_ context.Context, _ int64, _ int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.record("delete")
}

func (f *fakePlatform) SendNotice(_ context.Context, _ int64, text string, replyTo int) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("send"); err != nil {
		return 0, err
	}
	f.nextID++
	f.notices = append(f.notices, sentNotice{text: text, replyTo: replyTo})
	return f.nextID, nil
}

func (f *fakePlatform) Restrict(_ context.Context, _, _ int64, until time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("restrict"); err != nil {
		return err
	}
	f.restrictUntil = append(f.restrictUntil, until)
	return nil
}

func (f *fakePlatform) Unrestrict(_ context.Context, _, _ int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.record("unrestrict")
}

func (f *fakePlatform) Ban(_ context.Context, _, _ int64, until time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("ban"); err != nil {
		return err
	}
	f.banUntil = append(f.banUntil, until)
	return nil
}

func (f *fakePlatform) Unban(_ context.Context, _, _ int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.record("unban")
}

func (f *fakePlatform) GetMember(_ context.Context, _, _ int64) (model.MemberState, error) {
	return model.MemberState{Status: model.MemberStatusMember, IsMember: true}, nil
}

func (f *fakePlatform) GetSelfMembership(_ context.Context, _ int64) (model.MemberState, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, "self")
	return f.self, f.selfErr
}

type scheduled struct {
	messageID int
	kind      enums.DeletionKind
}

type fakeScheduler struct {
	items []scheduled
}

func (f *fakeScheduler) Schedule(_ context.Context, _ model.ChatKey, messageID int, kind enums.DeletionKind) error {
	f.items = append(f.items, scheduled{messageID: messageID, kind: kind})
	return nil
}

type failingWarnStore struct{}

func (failingWarnStore) IncrementWarn(context.Context, model.WarnIncrement) (int, error) {
	return 0, fmt.Errorf("connection refused")
}

func transientErr() error {
	return &model.PlatformError{Class: enums.ErrorClassTransient, Err: fmt.Errorf("Too Many Requests")}
}

func permanentErr() error {
	return &model.PlatformError{Class: enums.ErrorClassPermanent, Err: fmt.Errorf("Bad Request: message to delete not found")}
}

func permissionErr() error {
	return &model.PlatformError{Class: enums.ErrorClassPermission, Err: fmt.Errorf("Bad Request: not enough rights")}
}
