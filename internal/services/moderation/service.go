package moderation

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/ivankudzin/tgapp/chatguard/internal/domain/enums"
	"github.com/ivankudzin/tgapp/chatguard/internal/domain/model"
	"github.com/ivankudzin/tgapp/chatguard/internal/infra/metrics"
	"github.com/ivankudzin/tgapp/chatguard/internal/services/evaluator"
	"github.com/ivankudzin/tgapp/chatguard/internal/services/penalty"
)

// Outcome labels what the pipeline did with one event.
type Outcome string

const (
	OutcomeUnmanaged Outcome = "unmanaged"
	OutcomeExempt    Outcome = "exempt"
	OutcomeAllowed   Outcome = "allowed"
	OutcomeDeleted   Outcome = "deleted"
	OutcomeEnforced  Outcome = "enforced"
	OutcomeFailed    Outcome = "failed"
)

type ChatDirectory interface {
	TenantForChat(ctx context.Context, chatID int64) (int64, error)
}

type ConfigStore interface {
	GetChatConfig(ctx context.Context, key model.ChatKey) (model.ChatModerationConfig, error)
}

type AdminChecker interface {
	Member(ctx context.Context, chatID, userID int64) enums.Privilege
}

// LinkedChats resolves the channel linked to a discussion group, 0 when none.
type LinkedChats interface {
	LinkedChatID(ctx context.Context, chatID int64) (int64, error)
}

type MessageDeleter interface {
	DeleteMessage(ctx context.Context, chatID int64, messageID int) bool
}

type Enforcer interface {
	Enforce(ctx context.Context, offense penalty.Offense) (penalty.Result, error)
}

type Config struct {
	BotID int64
}

type Service struct {
	chats     ChatDirectory
	configs   ConfigStore
	admins    AdminChecker
	evaluator *evaluator.Service
	deleter   MessageDeleter
	enforcer  Enforcer
	linked    LinkedChats
	cfg       Config
	metrics   *metrics.Metrics
	logger    *zap.Logger
}

func NewService(
	chats ChatDirectory,
	configs ConfigStore,
	admins AdminChecker,
	eval *evaluator.Service,
	deleter MessageDeleter,
	enforcer Enforcer,
	cfg Config,
	logger *zap.Logger,
) *Service {
	if eval == nil {
		eval = evaluator.NewService(evaluator.Config{})
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Service{
		chats:     chats,
		configs:   configs,
		admins:    admins,
		evaluator: eval,
		deleter:   deleter,
		enforcer:  enforcer,
		cfg:       cfg,
		logger:    logger,
	}
}

func (s *Service) AttachMetrics(m *metrics.Metrics) {
	s.metrics = m
}

func (s *Service) AttachLinkedChats(linked LinkedChats) {
	s.linked = linked
}

// HandleEvent runs one inbound message through the rules. Platform and storage
// failures are logged and reported as OutcomeFailed, never returned.
func (s *Service) HandleEvent(ctx context.Context, event model.Event) Outcome {
	outcome := s.handle(ctx, event)
	s.metrics.Event(string(outcome))
	return outcome
}

func (s *Service) handle(ctx context.Context, event model.Event) Outcome {
	tenantID, err := s.chats.TenantForChat(ctx, event.ChatID)
	if errors.Is(err, model.ErrNotFound) {
		return OutcomeUnmanaged
	}
	if err != nil {
		s.logger.Warn("resolve chat tenant failed", zap.Error(err), zap.Int64("chat_id", event.ChatID))
		return OutcomeFailed
	}

	if s.exempt(ctx, event) {
		return OutcomeExempt
	}

	key := model.ChatKey{TenantID: tenantID, ChatID: event.ChatID}
	cfg, err := s.configs.GetChatConfig(ctx, key)
	if err != nil {
		s.logger.Warn("load chat config failed", zap.Error(err), zap.Int64("chat_id", event.ChatID))
		return OutcomeFailed
	}

	decision := s.evaluator.Evaluate(cfg, event)
	if decision.Action == evaluator.ActionAllow {
		return OutcomeAllowed
	}
	s.metrics.Violation(string(decision.Category), string(decision.Action))

	logger := s.logger.With(
		zap.Int64("chat_id", event.ChatID),
		zap.Int64("user_id", event.Sender.UserID),
		zap.Int("message_id", event.MessageID),
		zap.String("category", string(decision.Category)),
		zap.Strings("violations", decision.Violations),
	)

	// Sender chats have no member to restrict; their violations only delete.
	if decision.Action == evaluator.ActionDeleteOnly || event.Sender.SenderChatID != 0 {
		if !s.deleter.DeleteMessage(ctx, event.ChatID, event.MessageID) {
			logger.Info("violating message could not be deleted")
			return OutcomeFailed
		}
		logger.Debug("violating message deleted")
		return OutcomeDeleted
	}

	result, err := s.enforcer.Enforce(ctx, penalty.Offense{
		Key:           key,
		Category:      decision.Category,
		Penalty:       decision.Penalty,
		Duration:      decision.Duration,
		DeleteMessage: decision.DeleteMessage,
		Reason:        decision.Reason,
		Sender:        event.Sender,
		MessageID:     event.MessageID,
	})
	if err != nil {
		logger.Warn("enforce penalty failed", zap.Error(err))
		return OutcomeFailed
	}

	logger.Info("penalty enforced",
		zap.String("penalty", string(result.Penalty)),
		zap.Int("warn_count", result.WarnCount),
		zap.Bool("applied", result.Outcome.Applied),
		zap.String("privilege", string(result.Outcome.Privilege)),
	)
	return OutcomeEnforced
}

// exempt skips the bot itself, chat admins, anonymous admins and posts of the
// chat's own linked channel. Posts made as any other chat are evaluated.
func (s *Service) exempt(ctx context.Context, event model.Event) bool {
	if event.Sender.UserID == 0 {
		return true
	}
	if event.Sender.SenderChatID != 0 {
		return s.ownChat(ctx, event)
	}
	if s.cfg.BotID != 0 && event.Sender.UserID == s.cfg.BotID {
		return true
	}
	if s.admins == nil {
		return false
	}
	return s.admins.Member(ctx, event.ChatID, event.Sender.UserID).Granted()
}

func (s *Service) ownChat(ctx context.Context, event model.Event) bool {
	senderChatID := event.Sender.SenderChatID
	if senderChatID == event.ChatID || event.Sender.AutomaticForward {
		return true
	}
	if s.linked == nil {
		return false
	}
	linkedID, err := s.linked.LinkedChatID(ctx, event.ChatID)
	if err != nil {
		s.logger.Debug("resolve linked channel failed", zap.Error(err), zap.Int64("chat_id", event.ChatID))
		return false
	}
	return linkedID != 0 && linkedID == senderChatID
}
