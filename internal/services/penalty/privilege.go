package penalty

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/ivankudzin/tgapp/chatguard/internal/domain/enums"
	"github.com/ivankudzin/tgapp/chatguard/internal/domain/model"
)

// botUserID keys the bot's own privilege in the cache.
const botUserID int64 = 0

type MemberLookup interface {
	GetMember(ctx context.Context, chatID, userID int64) (model.MemberState, error)
	GetSelfMembership(ctx context.Context, chatID int64) (model.MemberState, error)
}

type PrivilegeCache interface {
	GetPrivilege(ctx context.Context, chatID, userID int64) (enums.Privilege, bool, error)
	SetPrivilege(ctx context.Context, chatID, userID int64, privilege enums.Privilege, ttl time.Duration) error
}

// Privileges answers admin lookups as a tri-state. Lookup failures yield
// PrivilegeUnknown, which callers treat as not admin. Unknown is never cached.
type Privileges struct {
	members MemberLookup
	cache   PrivilegeCache
	ttl     time.Duration
	logger  *zap.Logger
}

func NewPrivileges(members MemberLookup, cache PrivilegeCache, ttl time.Duration, logger *zap.Logger) *Privileges {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Privileges{
		members: members,
		cache:   cache,
		ttl:     ttl,
		logger:  logger,
	}
}

// Bot reports whether the bot may restrict members in chatID.
func (p *Privileges) Bot(ctx context.Context, chatID int64) enums.Privilege {
	return p.lookup(ctx, chatID, botUserID, func(ctx context.Context) (model.MemberState, error) {
		return p.members.GetSelfMembership(ctx, chatID)
	}, func(state model.MemberState) bool {
		return state.Status == model.MemberStatusCreator || (state.IsAdmin() && state.CanRestrict)
	})
}

// Member reports whether userID administers chatID.
func (p *Privileges) Member(ctx context.Context, chatID, userID int64) enums.Privilege {
	return p.lookup(ctx, chatID, userID, func(ctx context.Context) (model.MemberState, error) {
		return p.members.GetMember(ctx, chatID, userID)
	}, model.MemberState.IsAdmin)
}

// Forget drops the cached bot privilege, e.g. after a permission error.
func (p *Privileges) Forget(ctx context.Context, chatID int64) {
	if p.cache == nil {
		return
	}
	if err := p.cache.SetPrivilege(ctx, chatID, botUserID, enums.PrivilegeNotAdmin, time.Second); err != nil {
		p.logger.Warn("reset privilege cache failed", zap.Error(err), zap.Int64("chat_id", chatID))
	}
}

func (p *Privileges) lookup(
	ctx context.Context,
	chatID, userID int64,
	fetch func(ctx context.Context) (model.MemberState, error),
	admin func(model.MemberState) bool,
) enums.Privilege {
	if p.cache != nil {
		cached, ok, err := p.cache.GetPrivilege(ctx, chatID, userID)
		if err != nil {
			p.logger.Warn("read privilege cache failed", zap.Error(err), zap.Int64("chat_id", chatID), zap.Int64("user_id", userID))
		} else if ok {
			return cached
		}
	}

	if p.members == nil {
		return enums.PrivilegeUnknown
	}
	state, err := fetch(ctx)
	if err != nil {
		p.logger.Debug("privilege lookup failed",
			zap.Error(err),
			zap.Int64("chat_id", chatID),
			zap.Int64("user_id", userID),
			zap.String("class", string(model.ErrorClassOf(err))),
		)
		return enums.PrivilegeUnknown
	}

	privilege := enums.PrivilegeNotAdmin
	if admin(state) {
		privilege = enums.PrivilegeAdmin
	}

	if p.cache != nil && p.ttl > 0 {
		if err := p.cache.SetPrivilege(ctx, chatID, userID, privilege, p.ttl); err != nil {
			p.logger.Warn("write privilege cache failed", zap.Error(err), zap.Int64("chat_id", chatID), zap.Int64("user_id", userID))
		}
	}
	return privilege
}
