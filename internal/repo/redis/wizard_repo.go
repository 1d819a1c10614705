package redis

import (
	"context"
	"fmt"
	"strconv"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/ivankudzin/tgapp/chatguard/internal/domain/enums"
	"github.com/ivankudzin/tgapp/chatguard/internal/domain/model"
	"github.com/ivankudzin/tgapp/chatguard/internal/services/session"
)

const wizardPrefix = "wizard:"

// WizardRepo keeps whitelist wizards so that they survive bot restarts.
type WizardRepo struct {
	client *goredis.Client
}

func NewWizardRepo(client *goredis.Client) *WizardRepo {
	return &WizardRepo{client: client}
}

func (r *WizardRepo) Load(ctx context.Context, key session.Key) (session.Wizard, bool, error) {
	if r.client == nil {
		return session.Wizard{}, false, fmt.Errorf("redis client is nil")
	}

	values, err := r.client.HGetAll(ctx, wizardKey(key)).Result()
	if err != nil {
		return session.Wizard{}, false, fmt.Errorf("load wizard: %w", err)
	}
	if len(values) == 0 {
		return session.Wizard{}, false, nil
	}

	wizard := session.Wizard{
		State:    session.State(values["state"]),
		Category: enums.RuleCategory(values["category"]),
		Target: model.ChatKey{
			TenantID: parseInt64(values["tenant_id"]),
			ChatID:   parseInt64(values["chat_id"]),
		},
		Added:     int(parseInt64(values["added"])),
		StartedAt: time.Unix(0, parseInt64(values["started_at"])).UTC(),
		TouchedAt: time.Unix(0, parseInt64(values["touched_at"])).UTC(),
	}
	return wizard, true, nil
}

func (r *WizardRepo) Save(ctx context.Context, key session.Key, wizard session.Wizard, ttl time.Duration) error {
	if r.client == nil {
		return fmt.Errorf("redis client is nil")
	}

	fields := map[string]interface{}{
		"state":      string(wizard.State),
		"category":   string(wizard.Category),
		"tenant_id":  wizard.Target.TenantID,
		"chat_id":    wizard.Target.ChatID,
		"added":      wizard.Added,
		"started_at": wizard.StartedAt.UnixNano(),
		"touched_at": wizard.TouchedAt.UnixNano(),
	}

	pipe := r.client.TxPipeline()
	pipe.HSet(ctx, wizardKey(key), fields)
	if ttl > 0 {
		pipe.Expire(ctx, wizardKey(key), ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("save wizard: %w", err)
	}
	return nil
}

func (r *WizardRepo) Delete(ctx context.Context, key session.Key) error {
	if r.client == nil {
		return fmt.Errorf("redis client is nil")
	}
	if err := r.client.Del(ctx, wizardKey(key)).Err(); err != nil {
		return fmt.Errorf("delete wizard: %w", err)
	}
	return nil
}

func wizardKey(key session.Key) string {
	return wizardPrefix + strconv.FormatInt(key.UserID, 10) + ":" + strconv.FormatInt(key.ConversationID, 10)
}

func parseInt64(raw string) int64 {
	value, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0
	}
	return value
}
