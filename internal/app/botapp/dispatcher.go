package botapp

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/ivankudzin/tgapp/chatguard/internal/domain/model"
	"github.com/ivankudzin/tgapp/chatguard/internal/infra/metrics"
)

const (
	defaultIdleAfter     = time.Minute
	defaultQueueSize     = 256
	defaultHandleTimeout = 30 * time.Second
)

// chatQueue is guarded by Dispatcher.mu.
type chatQueue struct {
	events []model.Event
	wake   chan struct{}
}

// Dispatcher runs events of one chat strictly in delivery order and events of
// different chats concurrently. Each chat gets a worker that exits after
// idleAfter without events.
type Dispatcher struct {
	handle        func(context.Context, model.Event)
	idleAfter     time.Duration
	queueSize     int
	handleTimeout time.Duration
	metrics       *metrics.Metrics
	logger        *zap.Logger

	// base outlives shutdown so queued events are handled while draining.
	base context.Context

	mu     sync.Mutex
	queues map[int64]*chatQueue
	closed bool
	done   chan struct{}
	wg     sync.WaitGroup
}

func NewDispatcher(handle func(context.Context, model.Event), idleAfter time.Duration, queueSize int, logger *zap.Logger) *Dispatcher {
	if idleAfter <= 0 {
		idleAfter = defaultIdleAfter
	}
	if queueSize <= 0 {
		queueSize = defaultQueueSize
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dispatcher{
		handle:        handle,
		idleAfter:     idleAfter,
		queueSize:     queueSize,
		handleTimeout: defaultHandleTimeout,
		logger:        logger,
		base:          context.Background(),
		queues:        make(map[int64]*chatQueue),
		done:          make(chan struct{}),
	}
}

func (d *Dispatcher) AttachMetrics(m *metrics.Metrics) {
	d.metrics = m
}

// Dispatch enqueues the event without blocking. It returns false when the
// dispatcher is closed or the chat already has queueSize events waiting, in
// which case the event is dropped.
func (d *Dispatcher) Dispatch(event model.Event) bool {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return false
	}
	queue, ok := d.queues[event.ChatID]
	if !ok {
		queue = &chatQueue{wake: make(chan struct{}, 1)}
		d.queues[event.ChatID] = queue
		d.wg.Add(1)
		go d.work(event.ChatID, queue)
	}
	if len(queue.events) >= d.queueSize {
		d.mu.Unlock()
		d.metrics.Event("dropped")
		d.logger.Warn("chat queue full, event dropped",
			zap.Int64("chat_id", event.ChatID),
			zap.Int("message_id", event.MessageID),
		)
		return false
	}
	queue.events = append(queue.events, event)
	d.mu.Unlock()

	select {
	case queue.wake <- struct{}{}:
	default:
	}
	return true
}

// Close stops accepting events and waits until queued events are handled.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		close(d.done)
	}
	d.mu.Unlock()
	d.wg.Wait()
}

// Active returns the number of live chat workers.
func (d *Dispatcher) Active() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.queues)
}

func (d *Dispatcher) work(chatID int64, queue *chatQueue) {
	defer d.wg.Done()

	idle := time.NewTimer(d.idleAfter)
	defer idle.Stop()

	for {
		if event, ok := d.next(queue); ok {
			d.run(event)
			resetTimer(idle, d.idleAfter)
			continue
		}

		select {
		case <-queue.wake:
		case <-idle.C:
			if d.retire(chatID, queue) {
				return
			}
			idle.Reset(d.idleAfter)
		case <-d.done:
			d.drain(chatID, queue)
			return
		}
	}
}

func (d *Dispatcher) next(queue *chatQueue) (model.Event, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(queue.events) == 0 {
		return model.Event{}, false
	}
	event := queue.events[0]
	queue.events[0] = model.Event{}
	queue.events = queue.events[1:]
	return event, true
}

// retire removes an idle worker unless an event arrived meanwhile.
func (d *Dispatcher) retire(chatID int64, queue *chatQueue) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(queue.events) > 0 {
		return false
	}
	delete(d.queues, chatID)
	return true
}

// drain handles what is still queued and removes the worker. Dispatch rejects
// events once closed, so the queue only shrinks here.
func (d *Dispatcher) drain(chatID int64, queue *chatQueue) {
	for {
		event, ok := d.next(queue)
		if !ok {
			break
		}
		d.run(event)
	}
	d.mu.Lock()
	delete(d.queues, chatID)
	d.mu.Unlock()
}

func (d *Dispatcher) run(event model.Event) {
	ctx, cancel := context.WithTimeout(d.base, d.handleTimeout)
	defer cancel()

	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("event handler panicked",
				zap.Any("panic", r),
				zap.Int64("chat_id", event.ChatID),
				zap.Int("message_id", event.MessageID),
			)
		}
	}()

	d.handle(ctx, event)
}

func resetTimer(timer *time.Timer, after time.Duration) {
	if !timer.Stop() {
		select {
		case <-timer.C:
		default:
		}
	}
	timer.Reset(after)
}
