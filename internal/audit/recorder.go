package audit

/*
Recorder — асинхронный журнал решений пайплайна.

- Log не блокирует вызывающего: событие уходит в буферизованный канал,
  при переполнении сбрасывается с записью в лог (load shedding).
- Воркер копит пачку и пишет ее в Storage по таймеру или по достижении batchSize.
- Stop закрывает канал и ждет, пока воркер вычитает остатки и сделает финальный flush.
*/

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/xela07ax/issue-router/internal/metrics"
)

const (
	batchSize     = 100
	flushInterval = 500 * time.Millisecond
)

// Storage определяет, куда физически сохраняются события
type Storage interface {
	// WriteBatch сохраняет пачку событий за один раз
	WriteBatch(ctx context.Context, events []Event) error
}

type Auditor interface {
	Log(event Event)
}

type Recorder struct {
	ch      chan Event
	repo    Storage
	logger  *zap.Logger
	metrics *metrics.Metrics
	wg      sync.WaitGroup
	closed  atomic.Bool
	stop    sync.Once
}

func NewRecorder(repo Storage, bufferSize int, m *metrics.Metrics, logger *zap.Logger) *Recorder {
	if bufferSize <= 0 {
		bufferSize = 1000
	}
	if m == nil {
		m = metrics.New(nil)
	}
	return &Recorder{
		ch:      make(chan Event, bufferSize),
		repo:    repo,
		logger:  logger.With(zap.String("mod", "audit")),
		metrics: m,
	}
}

func (r *Recorder) Start() {
	r.wg.Add(1)
	go r.worker()
}

// Stop «запирает» вход в канал и ждет, пока воркер всё допишет. Повторный вызов безопасен.
func (r *Recorder) Stop() {
	r.stop.Do(func() {
		r.closed.Store(true)
		r.logger.Debug("stopping audit recorder: closing channel and flushing buffer")
		close(r.ch)
		r.wg.Wait()
	})
}

func (r *Recorder) Log(event Event) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	if r.closed.Load() {
		r.logger.Warn("audit event dropped: recorder is stopped", zap.String("id", event.ID))
		return
	}

	// Load Shedding: переполненный буфер не должен тормозить пайплайн
	select {
	case r.ch <- event:
		r.metrics.AuditBufferFill.Set(float64(len(r.ch)))
	default:
		r.logger.Error("audit_buffer_overflow",
			zap.Int("issue", event.IssueNumber),
			zap.String("trace_id", event.TraceID),
		)
	}
}

func (r *Recorder) worker() {
	defer r.wg.Done()

	batch := make([]Event, 0, batchSize)
	ticker := time.NewTicker(flushInterval)
	defer ticker.Stop()

	flush := func() {
		if len(batch) == 0 {
			return
		}
		// Background: к моменту финального flush контекст приложения уже отменен
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := r.repo.WriteBatch(ctx, batch); err != nil {
			r.logger.Error("audit flush failed", zap.Int("events", len(batch)), zap.Error(err))
		}
		batch = batch[:0]
		r.metrics.AuditBufferFill.Set(float64(len(r.ch)))
	}

	for {
		select {
		case event, ok := <-r.ch:
			if !ok {
				flush()
				return
			}
			batch = append(batch, event)
			if len(batch) >= batchSize {
				flush()
			}
		case <-ticker.C:
			flush()
		}
	}
}
