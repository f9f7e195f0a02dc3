// internal/app/system/workers/profilesync.go
package workers

import (
	"context"
	"sync"
	"time"

	"github.com/tradeya/tradeya/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// DisplayFieldUpdater rewrites a user's denormalized name and photo in one
// collection. The trade, proposal, collaboration and application stores
// implement it.
type DisplayFieldUpdater interface {
	UpdateDisplayFields(ctx context.Context, ref models.UserRef) (int64, error)
}

// ProfileSync is a background worker that propagates profile changes to
// the documents that copy a user's display name and photo.
//
// Enqueue never blocks. Several updates for the same user before the worker
// runs collapse into the most recent one.
type ProfileSync struct {
	targets map[string]DisplayFieldUpdater
	log     *zap.Logger
	timeout time.Duration

	mu      sync.Mutex
	pending map[primitive.ObjectID]models.UserRef
	order   []primitive.ObjectID

	wake   chan struct{}
	stopCh chan struct{}
	wg     sync.WaitGroup
}

// NewProfileSync creates a profile sync worker.
//
// Parameters:
//   - targets: collection name to updater
//   - logger: zap logger for logging
//   - timeout: deadline for propagating one user to every target
func NewProfileSync(targets map[string]DisplayFieldUpdater, logger *zap.Logger, timeout time.Duration) *ProfileSync {
	return &ProfileSync{
		targets: targets,
		log:     logger,
		timeout: timeout,
		pending: make(map[primitive.ObjectID]models.UserRef),
		wake:    make(chan struct{}, 1),
		stopCh:  make(chan struct{}),
	}
}

// Start begins the background loop.
func (w *ProfileSync) Start() {
	w.wg.Add(1)
	go w.run()
	w.log.Info("profile sync worker started", zap.Int("targets", len(w.targets)))
}

// Stop signals the worker to stop and waits for it to finish. Queued
// updates are flushed first.
func (w *ProfileSync) Stop() {
	close(w.stopCh)
	w.wg.Wait()
	w.log.Info("profile sync worker stopped")
}

// Enqueue schedules ref for propagation.
func (w *ProfileSync) Enqueue(ref models.UserRef) {
	w.mu.Lock()
	if _, queued := w.pending[ref.ID]; !queued {
		w.order = append(w.order, ref.ID)
	}
	w.pending[ref.ID] = ref
	w.mu.Unlock()

	select {
	case w.wake <- struct{}{}:
	default:
	}
}

// Pending reports how many users are waiting to be propagated.
func (w *ProfileSync) Pending() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.order)
}

func (w *ProfileSync) run() {
	defer w.wg.Done()

	for {
		select {
		case <-w.stopCh:
			w.drain()
			return
		case <-w.wake:
			w.drain()
		}
	}
}

func (w *ProfileSync) next() (models.UserRef, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if len(w.order) == 0 {
		return models.UserRef{}, false
	}
	id := w.order[0]
	w.order = w.order[1:]
	ref := w.pending[id]
	delete(w.pending, id)
	return ref, true
}

func (w *ProfileSync) drain() {
	for {
		ref, ok := w.next()
		if !ok {
			return
		}
		w.sync(ref)
	}
}

func (w *ProfileSync) sync(ref models.UserRef) {
	ctx, cancel := context.WithTimeout(context.Background(), w.timeout)
	defer cancel()

	var total int64
	for name, t := range w.targets {
		n, err := t.UpdateDisplayFields(ctx, ref)
		if err != nil {
			w.log.Error("profile sync failed",
				zap.String("collection", name),
				zap.String("user_id", ref.ID.Hex()),
				zap.Error(err))
			continue
		}
		total += n
	}
	if total > 0 {
		w.log.Debug("profile synced",
			zap.String("user_id", ref.ID.Hex()),
			zap.Int64("documents", total))
	}
}
