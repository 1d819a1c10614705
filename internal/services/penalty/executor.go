package penalty

import (
	"context"
	"errors"
	"math"
	"time"

	"github.com/cenkalti/backoff/v5"
	"go.uber.org/zap"

	"github.com/ivankudzin/tgapp/chatguard/internal/domain/enums"
	"github.com/ivankudzin/tgapp/chatguard/internal/domain/model"
	"github.com/ivankudzin/tgapp/chatguard/internal/infra/metrics"
)

const (
	defaultRetryAttempts  = 3
	defaultRetryBaseDelay = 500 * time.Millisecond
	defaultMaxRetryAfter  = 10 * time.Second
	defaultKickWindow     = time.Minute
)

// Platform is the chat platform action surface. A zero until means forever.
type Platform interface {
	MemberLookup
	DeleteMessage(ctx context.Context, chatID int64, messageID int) error
	SendNotice(ctx context.Context, chatID int64, text string, replyTo int) (int, error)
	Restrict(ctx context.Context, chatID, userID int64, until time.Time) error
	Unrestrict(ctx context.Context, chatID, userID int64) error
	Ban(ctx context.Context, chatID, userID int64, until time.Time) error
	Unban(ctx context.Context, chatID, userID int64) error
}

// Scheduler registers engine-sent messages for delayed deletion.
type Scheduler interface {
	Schedule(ctx context.Context, key model.ChatKey, messageID int, kind enums.DeletionKind) error
}

type ExecutorConfig struct {
	RetryAttempts  int
	RetryBaseDelay time.Duration
	// MaxRetryAfter caps how long a rate-limit hint may delay a retry.
	MaxRetryAfter time.Duration
	KickWindow    time.Duration
}

// Action is one enforcement request. Duration zero means permanent.
type Action struct {
	Key            model.ChatKey
	Penalty        enums.Penalty
	UserID         int64
	Duration       time.Duration
	MessageID      int
	DeleteMessage  bool
	Notice         string
	DegradedNotice string
}

type Outcome struct {
	Applied   bool
	Deleted   bool
	Privilege enums.Privilege
	NoticeID  int
	Until     time.Time
}

// Executor performs moderation side effects. Failures are logged and reported
// through Outcome, never returned.
type Executor struct {
	platform   Platform
	privileges *Privileges
	scheduler  Scheduler
	cfg        ExecutorConfig
	metrics    *metrics.Metrics
	now        func() time.Time
	logger     *zap.Logger
}

func NewExecutor(platform Platform, privileges *Privileges, cfg ExecutorConfig, logger *zap.Logger) *Executor {
	if cfg.RetryAttempts <= 0 {
		cfg.RetryAttempts = defaultRetryAttempts
	}
	if cfg.RetryBaseDelay <= 0 {
		cfg.RetryBaseDelay = defaultRetryBaseDelay
	}
	if cfg.MaxRetryAfter <= 0 {
		cfg.MaxRetryAfter = defaultMaxRetryAfter
	}
	if cfg.KickWindow <= 0 {
		cfg.KickWindow = defaultKickWindow
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if privileges == nil {
		privileges = NewPrivileges(platform, nil, 0, logger)
	}

	return &Executor{
		platform:   platform,
		privileges: privileges,
		cfg:        cfg,
		now:        time.Now,
		logger:     logger,
	}
}

func (e *Executor) AttachScheduler(scheduler Scheduler) {
	e.scheduler = scheduler
}

func (e *Executor) AttachMetrics(m *metrics.Metrics) {
	e.metrics = m
}

func (e *Executor) Apply(ctx context.Context, action Action) Outcome {
	out := Outcome{Privilege: enums.PrivilegeUnknown}

	if action.DeleteMessage && action.MessageID > 0 {
		out.Deleted = e.DeleteMessage(ctx, action.Key.ChatID, action.MessageID)
	}
	replyTo := action.MessageID
	if out.Deleted {
		replyTo = 0
	}

	switch action.Penalty {
	case enums.PenaltyOff:
		return out
	case enums.PenaltyWarn:
		out.NoticeID = e.Notify(ctx, action.Key, action.Notice, replyTo, enums.DeletionKindWarning)
		out.Applied = true
		e.metrics.Action(string(action.Penalty), "applied")
		return out
	}

	out.Privilege = e.privileges.Bot(ctx, action.Key.ChatID)
	if !out.Privilege.Granted() {
		e.logger.Info("enforcement degraded",
			zap.Int64("chat_id", action.Key.ChatID),
			zap.Int64("user_id", action.UserID),
			zap.String("penalty", string(action.Penalty)),
			zap.String("privilege", string(out.Privilege)),
		)
		out.NoticeID = e.Notify(ctx, action.Key, action.DegradedNotice, replyTo, enums.DeletionKindEnforcement)
		e.metrics.Action(string(action.Penalty), "degraded")
		return out
	}

	until, err := e.enforce(ctx, action)
	if err != nil {
		class := model.ErrorClassOf(err)
		e.logger.Warn("enforcement failed",
			zap.Error(err),
			zap.Int64("chat_id", action.Key.ChatID),
			zap.Int64("user_id", action.UserID),
			zap.String("penalty", string(action.Penalty)),
			zap.String("class", string(class)),
		)
		e.metrics.Action(string(action.Penalty), "failed")
		if class == enums.ErrorClassPermission {
			e.privileges.Forget(ctx, action.Key.ChatID)
			out.Privilege = enums.PrivilegeNotAdmin
			out.NoticeID = e.Notify(ctx, action.Key, action.DegradedNotice, replyTo, enums.DeletionKindEnforcement)
		}
		return out
	}

	out.Applied = true
	out.Until = until
	e.metrics.Action(string(action.Penalty), "applied")
	out.NoticeID = e.Notify(ctx, action.Key, action.Notice, replyTo, enums.DeletionKindEnforcement)
	return out
}

func (e *Executor) enforce(ctx context.Context, action Action) (time.Time, error) {
	chatID, userID := action.Key.ChatID, action.UserID
	var until time.Time
	if action.Duration > 0 {
		until = e.now().Add(action.Duration)
	}

	switch action.Penalty {
	case enums.PenaltyKick:
		until = e.now().Add(e.cfg.KickWindow)
		if err := e.call(ctx, func(ctx context.Context) error {
			return e.platform.Ban(ctx, chatID, userID, until)
		}); err != nil {
			return time.Time{}, err
		}
		return until, e.call(ctx, func(ctx context.Context) error {
			return e.platform.Unban(ctx, chatID, userID)
		})
	case enums.PenaltyMute:
		return until, e.call(ctx, func(ctx context.Context) error {
			return e.platform.Restrict(ctx, chatID, userID, until)
		})
	case enums.PenaltyBan:
		return until, e.call(ctx, func(ctx context.Context) error {
			return e.platform.Ban(ctx, chatID, userID, until)
		})
	default:
		return time.Time{}, nil
	}
}

// DeleteMessage reports whether the message is gone afterwards. A message
// that no longer exists counts as deleted.
func (e *Executor) DeleteMessage(ctx context.Context, chatID int64, messageID int) bool {
	err := e.call(ctx, func(ctx context.Context) error {
		return e.platform.DeleteMessage(ctx, chatID, messageID)
	})
	if err == nil {
		return true
	}
	class := model.ErrorClassOf(err)
	e.logger.Debug("delete message failed",
		zap.Error(err),
		zap.Int64("chat_id", chatID),
		zap.Int("message_id", messageID),
		zap.String("class", string(class)),
	)
	return class == enums.ErrorClassPermanent
}

// Notify sends text and schedules its deletion. It returns the message id or 0.
func (e *Executor) Notify(ctx context.Context, key model.ChatKey, text string, replyTo int, kind enums.DeletionKind) int {
	if text == "" {
		return 0
	}

	var messageID int
	err := e.call(ctx, func(ctx context.Context) error {
		id, err := e.platform.SendNotice(ctx, key.ChatID, text, replyTo)
		if err == nil {
			messageID = id
		}
		return err
	})
	if err != nil {
		e.logger.Warn("send notice failed", zap.Error(err), zap.Int64("chat_id", key.ChatID))
		return 0
	}

	if e.scheduler != nil && messageID > 0 {
		if err := e.scheduler.Schedule(ctx, key, messageID, kind); err != nil {
			e.logger.Warn("schedule notice deletion failed",
				zap.Error(err),
				zap.Int64("chat_id", key.ChatID),
				zap.Int("message_id", messageID),
			)
		}
	}
	return messageID
}

// call retries transient platform errors with exponential backoff. It returns
// the last platform error, not a retry wrapper.
func (e *Executor) call(ctx context.Context, fn func(ctx context.Context) error) error {
	var lastErr error
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = e.cfg.RetryBaseDelay

	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		lastErr = fn(ctx)
		switch model.ErrorClassOf(lastErr) {
		case enums.ErrorClassNone:
			return struct{}{}, nil
		case enums.ErrorClassTransient:
			wait := model.RetryAfterOf(lastErr)
			if wait > e.cfg.MaxRetryAfter {
				return struct{}{}, backoff.Permanent(lastErr)
			}
			if wait > 0 {
				return struct{}{}, backoff.RetryAfter(int(math.Ceil(wait.Seconds())))
			}
			return struct{}{}, lastErr
		default:
			return struct{}{}, backoff.Permanent(lastErr)
		}
	}, backoff.WithBackOff(policy), backoff.WithMaxTries(uint(e.cfg.RetryAttempts)))
	if err == nil {
		return nil
	}

	if lastErr == nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		lastErr = err
	}
	e.metrics.PlatformError(string(model.ErrorClassOf(lastErr)))
	return lastErr
}
