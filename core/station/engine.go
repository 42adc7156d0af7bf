package station

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/voltq/stationd/core/logger"
	"github.com/voltq/stationd/core/model"
	"github.com/voltq/stationd/core/storage"
)

// Engine owns the in-memory scheduling state of the station: the tier waiting
// queues, the per-pile queues and the queue-number counters. Every mutation
// runs under a single mutex so request handlers and the periodic scheduler
// and monitor passes never interleave. The persisted store is the source of
// truth; mutations commit there before the in-memory structures change.
type Engine struct {
	store  storage.Store
	cfg    Config
	tariff Tariff
	log    logger.Logger

	mu         sync.Mutex
	waiting    map[model.Tier][]model.ChargingRequest
	pileQueues map[string][]model.ChargingRequest
	counters   map[model.Tier]int
	strategy   Strategy

	now   func() time.Time
	newID func() string
}

// New creates an Engine. The configuration and tariff must be valid.
func New(store storage.Store, cfg Config, tariff Tariff, log logger.Logger) (*Engine, error) {
	if store == nil || log == nil {
		return nil, fmt.Errorf("station: nil parameter provided to New")
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("station config: %w", err)
	}
	if err := tariff.Validate(); err != nil {
		return nil, fmt.Errorf("tariff: %w", err)
	}
	strategy, err := ParseStrategy(cfg.DefaultStrategy)
	if err != nil {
		return nil, err
	}
	return &Engine{
		store:      store,
		cfg:        cfg,
		tariff:     tariff,
		log:        log,
		waiting:    map[model.Tier][]model.ChargingRequest{},
		pileQueues: map[string][]model.ChargingRequest{},
		counters:   map[model.Tier]int{model.TierFast: 1, model.TierTrickle: 1},
		strategy:   strategy,
		now:        time.Now,
		newID:      uuid.NewString,
	}, nil
}

// Initialize rebuilds the in-memory queues and counters from the persisted
// store. It makes the engine resilient to restarts: admission order, issued
// queue numbers and running sessions all survive.
func (e *Engine) Initialize(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	piles, err := e.store.Piles(ctx)
	if err != nil {
		return fmt.Errorf("load piles: %w", err)
	}
	e.pileQueues = make(map[string][]model.ChargingRequest, len(piles))
	for _, p := range piles {
		e.pileQueues[p.ID] = nil
	}

	for _, tier := range []model.Tier{model.TierFast, model.TierTrickle} {
		max, err := e.store.MaxQueueNumber(ctx, tier)
		if err != nil {
			return fmt.Errorf("max queue number for %s: %w", tier, err)
		}
		e.counters[tier] = max + 1
	}

	active, err := e.store.Requests(ctx, storage.RequestFilter{
		Statuses: []model.RequestStatus{model.RequestWaiting, model.RequestCharging},
	})
	if err != nil {
		return fmt.Errorf("load active requests: %w", err)
	}
	e.waiting = map[model.Tier][]model.ChargingRequest{}
	for _, r := range active {
		switch r.Status {
		case model.RequestWaiting:
			e.waiting[r.Tier] = append(e.waiting[r.Tier], r)
		case model.RequestCharging:
			if _, ok := e.pileQueues[r.PileID]; ok {
				e.pileQueues[r.PileID] = append(e.pileQueues[r.PileID], r)
			}
		}
	}
	e.updateOccupancyGauge()

	e.log.Infof("engine initialized: %d fast waiting, %d trickle waiting, next F%d, next T%d",
		len(e.waiting[model.TierFast]), len(e.waiting[model.TierTrickle]),
		e.counters[model.TierFast], e.counters[model.TierTrickle])
	return nil
}

// nextQueueNumber issues a fresh tier-prefixed queue number. Numbers are
// monotonically increasing per tier and never reused. Callers hold e.mu.
func (e *Engine) nextQueueNumber(tier model.Tier) string {
	n := e.counters[tier]
	e.counters[tier] = n + 1
	return fmt.Sprintf("%s%d", tier.Prefix(), n)
}

func (e *Engine) waitingCount() int {
	return len(e.waiting[model.TierFast]) + len(e.waiting[model.TierTrickle])
}

func (e *Engine) updateOccupancyGauge() {
	waitingOccupancy.Set(float64(e.waitingCount()))
}
