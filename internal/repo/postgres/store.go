package postgres

import "github.com/jackc/pgx/v5/pgxpool"

// Store bundles the repositories over one pool.
type Store struct {
	*ChatRepo
	*RuleRepo
	*WarnRepo
	*PunishmentRepo
	*DeletionRepo
}

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{
		ChatRepo:       NewChatRepo(pool),
		RuleRepo:       NewRuleRepo(pool),
		WarnRepo:       NewWarnRepo(pool),
		PunishmentRepo: NewPunishmentRepo(pool),
		DeletionRepo:   NewDeletionRepo(pool),
	}
}
