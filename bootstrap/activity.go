package bootstrap

import (
	"context"
	"sync"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/inventorius/inventorius-web/adapters/clock"
	"github.com/inventorius/inventorius-web/ports"
	"github.com/rs/zerolog"
)

// ActivityRecorderConfig tunes an ActivityRecorder.
type ActivityRecorderConfig struct {
	BatchSize     int
	FlushInterval time.Duration
	Retention     time.Duration // Zero keeps entries forever
	PruneInterval time.Duration
	Clock         ports.Clock
}

// ActivityRecorder buffers activity entries and writes them to the store in
// batches. Reads flush the buffer first, so a page rendered after a redirect
// shows the mutation that caused it.
type ActivityRecorder struct {
	store         ports.PrunableActivityStore
	buffer        []ports.Activity
	mu            sync.Mutex
	batchSize     int
	flushInterval time.Duration
	retention     time.Duration
	pruneInterval time.Duration
	clock         ports.Clock
	logger        zerolog.Logger
	stopCh        chan struct{}
	wg            sync.WaitGroup
	closeOnce     sync.Once
}

// NewActivityRecorder creates a recorder and starts its flush loop.
func NewActivityRecorder(store ports.PrunableActivityStore, cfg ActivityRecorderConfig, logger zerolog.Logger) *ActivityRecorder {
	if cfg.BatchSize == 0 {
		cfg.BatchSize = 50
	}
	if cfg.FlushInterval == 0 {
		cfg.FlushInterval = 5 * time.Second
	}
	if cfg.PruneInterval == 0 {
		cfg.PruneInterval = time.Hour
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.Real{}
	}

	r := &ActivityRecorder{
		store:         store,
		buffer:        make([]ports.Activity, 0, cfg.BatchSize),
		batchSize:     cfg.BatchSize,
		flushInterval: cfg.FlushInterval,
		retention:     cfg.Retention,
		pruneInterval: cfg.PruneInterval,
		clock:         cfg.Clock,
		logger:        logger.With().Str("component", "activity").Logger(),
		stopCh:        make(chan struct{}),
	}

	r.wg.Add(1)
	go r.flushLoop()

	return r
}

// Record queues an entry. It is written once the batch fills, on the next
// tick, or before the next read.
func (r *ActivityRecorder) Record(ctx context.Context, a ports.Activity) error {
	if a.CreatedAt.IsZero() {
		a.CreatedAt = r.clock.Now()
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.buffer = append(r.buffer, a)
	if len(r.buffer) >= r.batchSize {
		return r.flushLocked(ctx)
	}
	return nil
}

// Recent returns the newest entries, most recent first.
func (r *ActivityRecorder) Recent(ctx context.Context, limit int) ([]ports.Activity, error) {
	if err := r.Flush(ctx); err != nil {
		r.logger.Warn().Err(err).Msg("flush before read failed")
	}
	return r.store.Recent(ctx, limit)
}

// ForResource returns the newest entries touching one resource.
func (r *ActivityRecorder) ForResource(ctx context.Context, resourceID string, limit int) ([]ports.Activity, error) {
	if err := r.Flush(ctx); err != nil {
		r.logger.Warn().Err(err).Msg("flush before read failed")
	}
	return r.store.ForResource(ctx, resourceID, limit)
}

// Flush writes queued entries now.
func (r *ActivityRecorder) Flush(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.flushLocked(ctx)
}

func (r *ActivityRecorder) flushLocked(ctx context.Context) error {
	if len(r.buffer) == 0 {
		return nil
	}

	var result *multierror.Error
	for _, a := range r.buffer {
		if err := r.store.Record(ctx, a); err != nil {
			result = multierror.Append(result, err)
		}
	}
	r.buffer = r.buffer[:0]
	return result.ErrorOrNil()
}

// Prune deletes entries older than the retention window.
func (r *ActivityRecorder) Prune(ctx context.Context) (int64, error) {
	cutoff := clock.Cutoff(r.clock, r.retention)
	if cutoff.IsZero() {
		return 0, nil
	}
	return r.store.Prune(ctx, cutoff)
}

func (r *ActivityRecorder) flushLoop() {
	defer r.wg.Done()
	flush := time.NewTicker(r.flushInterval)
	defer flush.Stop()
	prune := time.NewTicker(r.pruneInterval)
	defer prune.Stop()

	for {
		select {
		case <-flush.C:
			if err := r.Flush(context.Background()); err != nil {
				r.logger.Error().Err(err).Msg("flush activity")
			}
		case <-prune.C:
			n, err := r.Prune(context.Background())
			if err != nil {
				r.logger.Error().Err(err).Msg("prune activity")
			} else if n > 0 {
				r.logger.Debug().Int64("removed", n).Msg("pruned activity")
			}
		case <-r.stopCh:
			return
		}
	}
}

// Close stops the recorder and writes remaining entries.
func (r *ActivityRecorder) Close() error {
	var err error
	r.closeOnce.Do(func() {
		close(r.stopCh)
		r.wg.Wait()

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		err = r.Flush(ctx)
	})
	return err
}

var _ ports.ActivityStore = (*ActivityRecorder)(nil)
