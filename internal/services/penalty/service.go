package penalty

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/ivankudzin/tgapp/chatguard/internal/domain/enums"
	"github.com/ivankudzin/tgapp/chatguard/internal/domain/model"
	"github.com/ivankudzin/tgapp/chatguard/internal/ui"
)

const (
	defaultPenaltyDuration = 365 * 24 * time.Hour
	defaultPersistTimeout  = 5 * time.Second
)

var ErrValidation = model.ErrValidation

// Both stores must write atomically per (chat, category, user) so that
// concurrent offenders never lose updates.
type WarnStore interface {
	IncrementWarn(ctx context.Context, inc model.WarnIncrement) (int, error)
}

type PunishmentStore interface {
	UpsertPunishment(ctx context.Context, record model.PunishmentRecord) error
}

type Config struct {
	WarnLimit       int
	DefaultDuration time.Duration
	PersistTimeout  time.Duration
}

// Offense is one violation handed over by the rule evaluator.
type Offense struct {
	Key           model.ChatKey
	Category      enums.RuleCategory
	Penalty       enums.Penalty
	Duration      model.PenaltyDuration
	DeleteMessage bool
	Reason        string
	Sender        model.Sender
	MessageID     int
}

type Result struct {
	Penalty   enums.Penalty
	WarnCount int
	Terminal  bool
	Recorded  bool
	Outcome   Outcome
}

// Service runs the warn ladder and direct penalties.
type Service struct {
	warns       WarnStore
	punishments PunishmentStore
	executor    *Executor
	cfg         Config
	now         func() time.Time
	logger      *zap.Logger
}

func NewService(warns WarnStore, punishments PunishmentStore, executor *Executor, cfg Config, logger *zap.Logger) *Service {
	if cfg.WarnLimit <= 0 || cfg.WarnLimit > model.MaxWarnCount {
		cfg.WarnLimit = model.MaxWarnCount
	}
	if cfg.DefaultDuration <= 0 {
		cfg.DefaultDuration = defaultPenaltyDuration
	}
	if cfg.PersistTimeout <= 0 {
		cfg.PersistTimeout = defaultPersistTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Service{
		warns:       warns,
		punishments: punishments,
		executor:    executor,
		cfg:         cfg,
		now:         time.Now,
		logger:      logger,
	}
}

func (s *Service) Enforce(ctx context.Context, offense Offense) (Result, error) {
	if offense.Key.ChatID == 0 || offense.Sender.UserID == 0 {
		return Result{}, ErrValidation
	}
	if s.executor == nil || s.warns == nil || s.punishments == nil {
		return Result{}, errors.New("penalty service is not configured")
	}

	switch offense.Penalty {
	case enums.PenaltyOff:
		out := s.executor.Apply(ctx, Action{
			Key:           offense.Key,
			Penalty:       enums.PenaltyOff,
			UserID:        offense.Sender.UserID,
			MessageID:     offense.MessageID,
			DeleteMessage: offense.DeleteMessage,
		})
		return Result{Penalty: enums.PenaltyOff, Outcome: out}, nil
	case enums.PenaltyWarn:
		return s.warn(ctx, offense), nil
	case enums.PenaltyKick, enums.PenaltyMute, enums.PenaltyBan:
		return s.direct(ctx, offense), nil
	default:
		return Result{}, ErrValidation
	}
}

func (s *Service) warn(ctx context.Context, offense Offense) Result {
	now := s.now().UTC()
	ttl, permanent := offense.Duration.Resolve(s.cfg.DefaultDuration)
	if permanent {
		ttl = s.cfg.DefaultDuration
	}

	count, err := s.warns.IncrementWarn(ctx, model.WarnIncrement{
		Key:       offense.Key,
		Category:  offense.Category,
		UserID:    offense.Sender.UserID,
		Now:       now,
		ExpiresAt: now.Add(ttl),
		Limit:     s.cfg.WarnLimit,
	})
	if err != nil {
		// An unsaved increment under-counts by one step at most.
		s.logger.Warn("increment warn failed",
			zap.Error(err),
			zap.Int64("chat_id", offense.Key.ChatID),
			zap.Int64("user_id", offense.Sender.UserID),
			zap.String("category", string(offense.Category)),
		)
		count = 1
	}

	result := Result{Penalty: enums.PenaltyWarn, WarnCount: count}
	result.Outcome = s.executor.Apply(ctx, Action{
		Key:           offense.Key,
		Penalty:       enums.PenaltyWarn,
		UserID:        offense.Sender.UserID,
		MessageID:     offense.MessageID,
		DeleteMessage: offense.DeleteMessage,
		Notice:        ui.WarnNotice(offense.Sender, offense.Reason, count, s.cfg.WarnLimit),
	})
	if count < s.cfg.WarnLimit {
		return result
	}

	result.Terminal = true
	result.Penalty = enums.PenaltyMute
	terminal := s.executor.Apply(ctx, Action{
		Key:            offense.Key,
		Penalty:        enums.PenaltyMute,
		UserID:         offense.Sender.UserID,
		Notice:         ui.EnforcementNotice(offense.Sender, offense.Reason, enums.PenaltyMute, 0, true),
		DegradedNotice: ui.DegradedNotice(offense.Sender, offense.Reason, enums.PenaltyMute),
	})
	terminal.Deleted = result.Outcome.Deleted
	result.Outcome = terminal

	if terminal.Applied {
		result.Recorded = s.record(ctx, model.PunishmentRecord{
			Key:       offense.Key,
			Category:  offense.Category,
			UserID:    offense.Sender.UserID,
			Kind:      enums.PunishmentKindMute,
			CreatedAt: now,
		})
	}
	return result
}

func (s *Service) direct(ctx context.Context, offense Offense) Result {
	now := s.now().UTC()
	duration, permanent := offense.Duration.Resolve(s.cfg.DefaultDuration)
	if permanent || offense.Penalty == enums.PenaltyKick {
		duration = 0
	}

	result := Result{Penalty: offense.Penalty}
	result.Outcome = s.executor.Apply(ctx, Action{
		Key:            offense.Key,
		Penalty:        offense.Penalty,
		UserID:         offense.Sender.UserID,
		Duration:       duration,
		MessageID:      offense.MessageID,
		DeleteMessage:  offense.DeleteMessage,
		Notice:         ui.EnforcementNotice(offense.Sender, offense.Reason, offense.Penalty, duration, permanent),
		DegradedNotice: ui.DegradedNotice(offense.Sender, offense.Reason, offense.Penalty),
	})
	if !result.Outcome.Applied {
		return result
	}

	kind, ok := enums.PunishmentKindFor(offense.Penalty)
	if !ok {
		return result
	}

	record := model.PunishmentRecord{
		Key:       offense.Key,
		Category:  offense.Category,
		UserID:    offense.Sender.UserID,
		Kind:      kind,
		CreatedAt: now,
	}
	if duration > 0 {
		expiresAt := now.Add(duration)
		record.ExpiresAt = &expiresAt
	}
	result.Recorded = s.record(ctx, record)
	return result
}

// record persists after the remote effect has been applied, so it must not
// be abandoned when the caller is cancelled.
func (s *Service) record(ctx context.Context, record model.PunishmentRecord) bool {
	persistCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.cfg.PersistTimeout)
	defer cancel()

	if err := s.punishments.UpsertPunishment(persistCtx, record); err != nil {
		s.logger.Error("persist punishment failed",
			zap.Error(err),
			zap.Int64("chat_id", record.Key.ChatID),
			zap.Int64("user_id", record.UserID),
			zap.String("kind", string(record.Kind)),
		)
		return false
	}
	return true
}
