package reconcile

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/ivankudzin/tgapp/chatguard/internal/domain/enums"
	"github.com/ivankudzin/tgapp/chatguard/internal/domain/model"
	"github.com/ivankudzin/tgapp/chatguard/internal/infra/metrics"
	"github.com/ivankudzin/tgapp/chatguard/internal/jobs"
)

const (
	defaultBatch   = 500
	persistTimeout = 5 * time.Second
)

type Store interface {
	DeleteExpiredWarns(ctx context.Context, now time.Time) (int64, error)
	ListPunishments(ctx context.Context, after model.PunishmentCursor, limit int) ([]model.PunishmentRecord, error)
	DeletePunishment(ctx context.Context, record model.PunishmentRecord) (bool, error)
}

type Platform interface {
	GetMember(ctx context.Context, chatID, userID int64) (model.MemberState, error)
	Unrestrict(ctx context.Context, chatID, userID int64) error
	Unban(ctx context.Context, chatID, userID int64) error
}

type result string

const (
	resultKept    result = "kept"
	resultLifted  result = "lifted"
	resultCleared result = "cleared"
	resultDropped result = "dropped"
)

// Worker expires warn records and reconciles punishment records against the
// live member state. The platform is the source of truth once observable.
type Worker struct {
	store    Store
	platform Platform
	batch    int
	metrics  *metrics.Metrics
	now      func() time.Time
	logger   *zap.Logger
}

func NewWorker(store Store, platform Platform, batch int, logger *zap.Logger) *Worker {
	if batch <= 0 {
		batch = defaultBatch
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Worker{
		store:    store,
		platform: platform,
		batch:    batch,
		now:      time.Now,
		logger:   logger,
	}
}

func (w *Worker) AttachMetrics(m *metrics.Metrics) {
	w.metrics = m
}

func (w *Worker) Name() string {
	return "reconcile"
}

func (w *Worker) Run(ctx context.Context) error {
	if w.store == nil {
		return nil
	}
	logger := w.logger.With(zap.String("run_id", jobs.RunID(ctx)))
	now := w.now().UTC()

	warns, err := w.store.DeleteExpiredWarns(ctx, now)
	if err != nil {
		return fmt.Errorf("delete expired warns: %w", err)
	}
	if warns > 0 {
		w.metrics.Reconciled("warn", string(resultCleared))
	}

	if w.platform == nil {
		return nil
	}

	counts := make(map[result]int)
	cursor := model.PunishmentCursor{}
	for ctx.Err() == nil {
		page, err := w.store.ListPunishments(ctx, cursor, w.batch)
		if err != nil {
			return fmt.Errorf("list punishments: %w", err)
		}
		for _, record := range page {
			if ctx.Err() != nil {
				break
			}
			res := w.reconcile(ctx, logger, record, now)
			counts[res]++
			w.metrics.Reconciled("punishment", string(res))
		}
		if len(page) < w.batch {
			break
		}
		cursor = model.CursorAfter(page[len(page)-1])
	}

	logger.Info("reconcile completed",
		zap.Int64("expired_warns", warns),
		zap.Int("lifted", counts[resultLifted]),
		zap.Int("cleared", counts[resultCleared]),
		zap.Int("dropped", counts[resultDropped]),
		zap.Int("kept", counts[resultKept]),
	)
	return nil
}

func (w *Worker) reconcile(ctx context.Context, logger *zap.Logger, record model.PunishmentRecord, now time.Time) result {
	expired := record.Expired(now)
	logger = logger.With(
		zap.Int64("chat_id", record.Key.ChatID),
		zap.Int64("user_id", record.UserID),
		zap.String("kind", string(record.Kind)),
		zap.Bool("expired", expired),
	)

	state, err := w.platform.GetMember(ctx, record.Key.ChatID, record.UserID)
	if err != nil {
		class := model.ErrorClassOf(err)
		if class.Final() && expired {
			// The chat is out of reach; the record would never be cleaned up otherwise.
			return w.remove(ctx, logger, record, resultCleared)
		}
		logger.Debug("member lookup failed", zap.Error(err), zap.String("class", string(class)))
		return resultKept
	}

	if !active(record.Kind, state) {
		if expired {
			return w.remove(ctx, logger, record, resultCleared)
		}
		return w.remove(ctx, logger, record, resultDropped)
	}
	if !expired {
		return resultKept
	}

	if err := w.lift(ctx, record); err != nil {
		class := model.ErrorClassOf(err)
		if !class.Final() {
			logger.Warn("lift punishment failed, will retry", zap.Error(err))
			return resultKept
		}
		logger.Warn("lift punishment failed permanently", zap.Error(err), zap.String("class", string(class)))
		return w.remove(ctx, logger, record, resultCleared)
	}
	return w.remove(ctx, logger, record, resultLifted)
}

func (w *Worker) lift(ctx context.Context, record model.PunishmentRecord) error {
	switch record.Kind {
	case enums.PunishmentKindMute:
		return w.platform.Unrestrict(ctx, record.Key.ChatID, record.UserID)
	case enums.PunishmentKindBan:
		return w.platform.Unban(ctx, record.Key.ChatID, record.UserID)
	default:
		return nil
	}
}

// remove deletes the record unless a newer punishment replaced it meanwhile.
func (w *Worker) remove(ctx context.Context, logger *zap.Logger, record model.PunishmentRecord, res result) result {
	persistCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), persistTimeout)
	defer cancel()

	deleted, err := w.store.DeletePunishment(persistCtx, record)
	if err != nil {
		logger.Warn("delete punishment record failed", zap.Error(err))
		return resultKept
	}
	if !deleted {
		logger.Debug("punishment record replaced meanwhile")
		return resultKept
	}
	logger.Info("punishment record removed", zap.String("result", string(res)))
	return res
}

func active(kind enums.PunishmentKind, state model.MemberState) bool {
	switch kind {
	case enums.PunishmentKindMute:
		return state.Muted()
	case enums.PunishmentKindBan:
		return state.Banned()
	default:
		return false
	}
}
