package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/ivankudzin/tgapp/chatguard/internal/domain/enums"
)

const privilegePrefix = "privilege:"

// PrivilegeRepo caches resolved admin lookups per (chat, user).
type PrivilegeRepo struct {
	client *goredis.Client
}

func NewPrivilegeRepo(client *goredis.Client) *PrivilegeRepo {
	return &PrivilegeRepo{client: client}
}

func (r *PrivilegeRepo) GetPrivilege(ctx context.Context, chatID, userID int64) (enums.Privilege, bool, error) {
	if r.client == nil {
		return enums.PrivilegeUnknown, false, fmt.Errorf("redis client is nil")
	}

	value, err := r.client.Get(ctx, privilegeKey(chatID, userID)).Result()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return enums.PrivilegeUnknown, false, nil
		}
		return enums.PrivilegeUnknown, false, fmt.Errorf("get privilege: %w", err)
	}

	switch privilege := enums.Privilege(value); privilege {
	case enums.PrivilegeAdmin, enums.PrivilegeNotAdmin:
		return privilege, true, nil
	default:
		return enums.PrivilegeUnknown, false, nil
	}
}

// SetPrivilege stores a resolved privilege. Unknown is never cached.
func (r *PrivilegeRepo) SetPrivilege(ctx context.Context, chatID, userID int64, privilege enums.Privilege, ttl time.Duration) error {
	if r.client == nil {
		return fmt.Errorf("redis client is nil")
	}
	if privilege != enums.PrivilegeAdmin && privilege != enums.PrivilegeNotAdmin {
		return nil
	}
	if ttl <= 0 {
		ttl = time.Minute
	}

	if err := r.client.Set(ctx, privilegeKey(chatID, userID), string(privilege), ttl).Err(); err != nil {
		return fmt.Errorf("set privilege: %w", err)
	}
	return nil
}

func privilegeKey(chatID, userID int64) string {
	return privilegePrefix + strconv.FormatInt(chatID, 10) + ":" + strconv.FormatInt(userID, 10)
}
