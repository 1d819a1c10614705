package autodelete

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/ivankudzin/tgapp/chatguard/internal/domain/enums"
	"github.com/ivankudzin/tgapp/chatguard/internal/domain/model"
	"github.com/ivankudzin/tgapp/chatguard/internal/infra/metrics"
	"github.com/ivankudzin/tgapp/chatguard/internal/jobs"
)

const (
	defaultBatch   = 200
	persistTimeout = 5 * time.Second
)

type Store interface {
	ListDueDeletions(ctx context.Context, now time.Time, limit int) ([]model.ScheduledDeletion, error)
	DeleteScheduled(ctx context.Context, chatID int64, messageID int) error
	MarkDeletionFailed(ctx context.Context, chatID int64, messageID int) error
}

// Deleter is the raw platform call. The sweeper does its own bounded retry.
type Deleter interface {
	DeleteMessage(ctx context.Context, chatID int64, messageID int) error
}

// Sweeper deletes due ephemeral messages. A transient failure marks the record
// failed; a second one drops it.
type Sweeper struct {
	store   Store
	deleter Deleter
	batch   int
	metrics *metrics.Metrics
	now     func() time.Time
	logger  *zap.Logger
}

func NewSweeper(store Store, deleter Deleter, batch int, logger *zap.Logger) *Sweeper {
	if batch <= 0 {
		batch = defaultBatch
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Sweeper{
		store:   store,
		deleter: deleter,
		batch:   batch,
		now:     time.Now,
		logger:  logger,
	}
}

func (s *Sweeper) AttachMetrics(m *metrics.Metrics) {
	s.metrics = m
}

func (s *Sweeper) Name() string {
	return "autodelete"
}

func (s *Sweeper) Run(ctx context.Context) error {
	if s.store == nil || s.deleter == nil {
		return nil
	}

	due, err := s.store.ListDueDeletions(ctx, s.now().UTC(), s.batch)
	if err != nil {
		return fmt.Errorf("list due deletions: %w", err)
	}
	if len(due) == 0 {
		return nil
	}

	logger := s.logger.With(zap.String("run_id", jobs.RunID(ctx)))
	var deleted, retried, dropped int
	for _, item := range due {
		if ctx.Err() != nil {
			break
		}
		switch s.sweep(ctx, logger, item) {
		case "deleted":
			deleted++
		case "retry":
			retried++
		case "dropped":
			dropped++
		}
	}

	logger.Info("autodelete sweep completed",
		zap.Int("due", len(due)),
		zap.Int("deleted", deleted),
		zap.Int("retry", retried),
		zap.Int("dropped", dropped),
	)
	return nil
}

func (s *Sweeper) sweep(ctx context.Context, logger *zap.Logger, item model.ScheduledDeletion) string {
	err := s.deleter.DeleteMessage(ctx, item.ChatID, item.MessageID)
	if errors.Is(err, context.Canceled) {
		return ""
	}
	class := model.ErrorClassOf(err)

	// The remote call already happened; the bookkeeping must not be cut short.
	persistCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), persistTimeout)
	defer cancel()

	result := "deleted"
	switch {
	case class == enums.ErrorClassNone:
	case class.Final():
		result = "dropped"
	case item.Status == enums.DeletionStatusFailed:
		result = "dropped"
	default:
		result = "retry"
	}

	if result == "retry" {
		if markErr := s.store.MarkDeletionFailed(persistCtx, item.ChatID, item.MessageID); markErr != nil {
			logger.Warn("mark deletion failed", zap.Error(markErr), zap.Int64("chat_id", item.ChatID), zap.Int("message_id", item.MessageID))
		}
	} else if delErr := s.store.DeleteScheduled(persistCtx, item.ChatID, item.MessageID); delErr != nil {
		logger.Warn("remove scheduled deletion failed", zap.Error(delErr), zap.Int64("chat_id", item.ChatID), zap.Int("message_id", item.MessageID))
	}

	if err != nil {
		logger.Debug("scheduled deletion failed",
			zap.Error(err),
			zap.Int64("chat_id", item.ChatID),
			zap.Int("message_id", item.MessageID),
			zap.String("class", string(class)),
			zap.String("result", result),
		)
	}
	s.metrics.Deletion(result)
	return result
}
