package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ivankudzin/tgapp/chatguard/internal/domain/enums"
	"github.com/ivankudzin/tgapp/chatguard/internal/domain/model"
	"github.com/ivankudzin/tgapp/chatguard/internal/domain/rules"
)

// RuleRepo stores per-chat rule configuration. Whitelist edits are single
// statements over the text[] column, so concurrent edits never lose entries.
type RuleRepo struct {
	pool *pgxpool.Pool
}

func NewRuleRepo(pool *pgxpool.Pool) *RuleRepo {
	return &RuleRepo{pool: pool}
}

func (r *RuleRepo) GetChatConfig(ctx context.Context, key model.ChatKey) (model.ChatModerationConfig, error) {
	if r.pool == nil {
		return model.ChatModerationConfig{}, fmt.Errorf("postgres pool is nil")
	}

	rows, err := r.pool.Query(ctx, `
SELECT
	category,
	penalty,
	delete_on_violation,
	duration_permanent,
	duration_seconds,
	include_usernames,
	whitelist,
	updated_at
FROM moderation_rules
WHERE tenant_id = $1 AND chat_id = $2
`, key.TenantID, key.ChatID)
	if err != nil {
		return model.ChatModerationConfig{}, fmt.Errorf("query chat rules: %w", err)
	}
	defer rows.Close()

	cfg := model.ChatModerationConfig{
		Key:   key,
		Rules: make(map[enums.RuleCategory]model.RuleConfig, len(enums.RuleCategories)),
	}
	for rows.Next() {
		var (
			category        string
			penalty         string
			durationSeconds int64
			rule            model.RuleConfig
		)
		if err := rows.Scan(
			&category,
			&penalty,
			&rule.DeleteOnViolation,
			&rule.Duration.Permanent,
			&durationSeconds,
			&rule.IncludeUsernames,
			&rule.Whitelist,
			&rule.UpdatedAt,
		); err != nil {
			return model.ChatModerationConfig{}, fmt.Errorf("scan chat rule: %w", err)
		}

		parsedCategory, ok := enums.ParseRuleCategory(category)
		if !ok {
			continue
		}
		rule.Category = parsedCategory
		rule.Penalty, ok = enums.ParsePenalty(penalty)
		if !ok {
			rule.Penalty = enums.PenaltyOff
		}
		rule.Duration.Value = time.Duration(durationSeconds) * time.Second
		cfg.Rules[parsedCategory] = rule
	}
	if err := rows.Err(); err != nil {
		return model.ChatModerationConfig{}, fmt.Errorf("iterate chat rules: %w", err)
	}

	return cfg, nil
}

// UpsertRule replaces the rule settings and keeps the stored whitelist.
func (r *RuleRepo) UpsertRule(ctx context.Context, key model.ChatKey, rule model.RuleConfig) error {
	if r.pool == nil {
		return fmt.Errorf("postgres pool is nil")
	}

	if _, err := r.pool.Exec(ctx, `
INSERT INTO moderation_rules (
	tenant_id,
	chat_id,
	category,
	penalty,
	delete_on_violation,
	duration_permanent,
	duration_seconds,
	include_usernames,
	updated_at
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW())
ON CONFLICT (tenant_id, chat_id, category) DO UPDATE SET
	penalty = EXCLUDED.penalty,
	delete_on_violation = EXCLUDED.delete_on_violation,
	duration_permanent = EXCLUDED.duration_permanent,
	duration_seconds = EXCLUDED.duration_seconds,
	include_usernames = EXCLUDED.include_usernames,
	updated_at = NOW()
`,
		key.TenantID,
		key.ChatID,
		string(rule.Category),
		string(rule.Penalty),
		rule.DeleteOnViolation,
		rule.Duration.Permanent,
		int64(rule.Duration.Value/time.Second),
		rule.IncludeUsernames,
	); err != nil {
		return fmt.Errorf("upsert rule: %w", err)
	}
	return nil
}

// AddWhitelist merges canonical entries into the stored set and returns the
// resulting whitelist in byte order.
func (r *RuleRepo) AddWhitelist(ctx context.Context, key model.ChatKey, category enums.RuleCategory, entries []string) ([]string, error) {
	if r.pool == nil {
		return nil, fmt.Errorf("postgres pool is nil")
	}

	var whitelist []string
	err := r.pool.QueryRow(ctx, `
INSERT INTO moderation_rules (tenant_id, chat_id, category, whitelist, updated_at)
VALUES ($1, $2, $3, $4::text[], NOW())
ON CONFLICT (tenant_id, chat_id, category) DO UPDATE SET
	whitelist = ARRAY(
		SELECT entry
		FROM unnest(moderation_rules.whitelist || EXCLUDED.whitelist) AS t(entry)
		GROUP BY entry
		ORDER BY entry COLLATE "C"
	),
	updated_at = NOW()
RETURNING whitelist
`, key.TenantID, key.ChatID, string(category), textArray(rules.CanonicalizeFor(category, entries))).Scan(&whitelist)
	if err != nil {
		return nil, fmt.Errorf("add whitelist entries: %w", err)
	}
	return whitelist, nil
}

func (r *RuleRepo) RemoveWhitelist(ctx context.Context, key model.ChatKey, category enums.RuleCategory, entries []string) ([]string, error) {
	if r.pool == nil {
		return nil, fmt.Errorf("postgres pool is nil")
	}

	rows, err := r.pool.Query(ctx, `
UPDATE moderation_rules SET
	whitelist = ARRAY(
		SELECT entry
		FROM unnest(whitelist) WITH ORDINALITY AS t(entry, pos)
		WHERE entry <> ALL($4::text[])
		ORDER BY pos
	),
	updated_at = NOW()
WHERE tenant_id = $1 AND chat_id = $2 AND category = $3
RETURNING whitelist
`, key.TenantID, key.ChatID, string(category), textArray(rules.CanonicalizeFor(category, entries)))
	if err != nil {
		return nil, fmt.Errorf("remove whitelist entries: %w", err)
	}
	defer rows.Close()

	var whitelist []string
	for rows.Next() {
		if err := rows.Scan(&whitelist); err != nil {
			return nil, fmt.Errorf("scan whitelist: %w", err)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("remove whitelist entries: %w", err)
	}
	return whitelist, nil
}

// textArray keeps pgx from encoding a nil slice as NULL.
func textArray(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}
