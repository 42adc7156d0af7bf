package station

import (
	"context"
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/stat/combin"

	"github.com/voltq/stationd/core/model"
	"github.com/voltq/stationd/core/storage"
)

// Strategy selects how waiting requests are assigned to pile queues.
type Strategy string

const (
	// StrategyIndividualShortest assigns the head of each tier queue to the
	// pile minimizing its own completion time.
	StrategyIndividualShortest Strategy = "INDIVIDUAL_SHORTEST"
	// StrategyBatchShortest assigns a batch of head requests per tier by
	// enumerating every permutation onto the eligible piles and committing
	// the one minimizing the summed completion times.
	StrategyBatchShortest Strategy = "BATCH_SHORTEST"
	// StrategyFullLoadShortest assigns every waiting request at once,
	// ignoring tiers, when the station is fully idle and the waiting count
	// matches the eligible pile count exactly.
	StrategyFullLoadShortest Strategy = "FULL_LOAD_SHORTEST"
)

// Strategies lists every valid strategy.
func Strategies() []Strategy {
	return []Strategy{StrategyIndividualShortest, StrategyBatchShortest, StrategyFullLoadShortest}
}

// ParseStrategy converts a configuration value into a Strategy.
func ParseStrategy(s string) (Strategy, error) {
	for _, st := range Strategies() {
		if Strategy(s) == st {
			return st, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidStrategy, s)
}

// Strategy returns the strategy used by the next scheduling pass.
func (e *Engine) Strategy() Strategy {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.strategy
}

// SetStrategy switches the active strategy. The change takes effect on the
// next scheduling pass.
func (e *Engine) SetStrategy(s Strategy) error {
	if _, err := ParseStrategy(string(s)); err != nil {
		return err
	}
	e.mu.Lock()
	e.strategy = s
	e.mu.Unlock()
	e.log.Infof("scheduling strategy set to %s", s)
	return nil
}

// Schedule runs one scheduling pass under the active strategy. It is a no-op
// when nothing is assignable.
func (e *Engine) Schedule(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	switch e.strategy {
	case StrategyIndividualShortest:
		return e.scheduleIndividual(ctx)
	case StrategyBatchShortest:
		return e.scheduleBatch(ctx)
	case StrategyFullLoadShortest:
		return e.scheduleFullLoad(ctx)
	}
	return fmt.Errorf("%w: %q", ErrInvalidStrategy, e.strategy)
}

// chargeHours is the time a request needs at a pile. A non-positive power
// rate yields +Inf so the pile is never selected.
func chargeHours(amountKWh, powerRate float64) float64 {
	if powerRate <= 0 {
		return math.Inf(1)
	}
	return amountKWh / powerRate
}

// pileWaitHours sums the time a newcomer would wait behind the requests
// already queued at the pile. The charging head contributes only its
// remaining time, floored at zero. Callers hold e.mu.
func (e *Engine) pileWaitHours(pile model.ChargingPile) float64 {
	wait := 0.0
	for i, r := range e.pileQueues[pile.ID] {
		total := chargeHours(r.AmountKWh, pile.PowerRate)
		if i == 0 && r.Status == model.RequestCharging && r.StartTime != nil {
			remaining := total - e.now().Sub(*r.StartTime).Hours()
			if remaining < 0 {
				remaining = 0
			}
			wait += remaining
		} else {
			wait += total
		}
	}
	return wait
}

// eligiblePiles returns piles that can accept another request, in ascending
// pile-code order (the tie-break order for all strategies).
func (e *Engine) eligiblePiles(ctx context.Context) ([]model.ChargingPile, error) {
	piles, err := e.store.Piles(ctx)
	if err != nil {
		return nil, fmt.Errorf("load piles: %w", err)
	}
	var out []model.ChargingPile
	for _, p := range piles {
		if p.Status == model.PileFaulty || p.Status == model.PileOff {
			continue
		}
		if _, ok := e.pileQueues[p.ID]; !ok {
			e.pileQueues[p.ID] = nil
		}
		if len(e.pileQueues[p.ID]) >= e.cfg.PileQueueDepth {
			continue
		}
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out, nil
}

func splitByTier(piles []model.ChargingPile) map[model.Tier][]model.ChargingPile {
	byTier := map[model.Tier][]model.ChargingPile{}
	for _, p := range piles {
		byTier[p.Tier] = append(byTier[p.Tier], p)
	}
	return byTier
}

func (e *Engine) scheduleIndividual(ctx context.Context) error {
	piles, err := e.eligiblePiles(ctx)
	if err != nil {
		return err
	}
	byTier := splitByTier(piles)
	for _, tier := range []model.Tier{model.TierFast, model.TierTrickle} {
		queue := e.waiting[tier]
		if len(queue) == 0 || len(byTier[tier]) == 0 {
			continue
		}
		req := queue[0]
		best := -1
		bestTime := math.Inf(1)
		for i, p := range byTier[tier] {
			completion := e.pileWaitHours(p) + chargeHours(req.AmountKWh, p.PowerRate)
			if completion < bestTime {
				bestTime = completion
				best = i
			}
		}
		if best < 0 {
			continue
		}
		if err := e.commitAssignment(ctx, req, byTier[tier][best], StrategyIndividualShortest); err != nil {
			e.log.Errorf("assign %s: %v", req.QueueNumber, err)
			continue
		}
		e.waiting[tier] = queue[1:]
	}
	e.updateOccupancyGauge()
	return nil
}

func (e *Engine) scheduleBatch(ctx context.Context) error {
	piles, err := e.eligiblePiles(ctx)
	if err != nil {
		return err
	}
	byTier := splitByTier(piles)
	for _, tier := range []model.Tier{model.TierFast, model.TierTrickle} {
		queue := e.waiting[tier]
		tierPiles := byTier[tier]
		if len(queue) == 0 || len(tierPiles) == 0 {
			continue
		}
		k := len(queue)
		if len(tierPiles) < k {
			k = len(tierPiles)
		}
		batch := queue[:k]

		perms := combin.Permutations(len(tierPiles), k)
		best := -1
		bestTime := math.Inf(1)
		for pi, perm := range perms {
			total := 0.0
			for i, pileIdx := range perm {
				p := tierPiles[pileIdx]
				total += e.pileWaitHours(p) + chargeHours(batch[i].AmountKWh, p.PowerRate)
			}
			if total < bestTime {
				bestTime = total
				best = pi
			}
		}
		if best < 0 {
			continue
		}
		assigned := 0
		for i, pileIdx := range perms[best] {
			if err := e.commitAssignment(ctx, batch[i], tierPiles[pileIdx], StrategyBatchShortest); err != nil {
				e.log.Errorf("assign %s: %v", batch[i].QueueNumber, err)
				break
			}
			assigned++
		}
		e.waiting[tier] = queue[assigned:]
	}
	e.updateOccupancyGauge()
	return nil
}

// scheduleFullLoad applies only when every pile queue is empty and the total
// waiting count across both tiers equals the total eligible pile count. With
// every pile idle, completion time reduces to self charge time.
func (e *Engine) scheduleFullLoad(ctx context.Context) error {
	for _, q := range e.pileQueues {
		if len(q) > 0 {
			return nil
		}
	}
	piles, err := e.eligiblePiles(ctx)
	if err != nil {
		return err
	}
	waiting := append(append([]model.ChargingRequest{}, e.waiting[model.TierFast]...), e.waiting[model.TierTrickle]...)
	if len(waiting) == 0 || len(waiting) != len(piles) {
		return nil
	}

	perms := combin.Permutations(len(piles), len(waiting))
	best := -1
	bestTime := math.Inf(1)
	for pi, perm := range perms {
		total := 0.0
		for i, pileIdx := range perm {
			total += chargeHours(waiting[i].AmountKWh, piles[pileIdx].PowerRate)
		}
		if total < bestTime {
			bestTime = total
			best = pi
		}
	}
	if best < 0 {
		return nil
	}

	assigned := map[string]bool{}
	for i, pileIdx := range perms[best] {
		if err := e.commitAssignment(ctx, waiting[i], piles[pileIdx], StrategyFullLoadShortest); err != nil {
			e.log.Errorf("assign %s: %v", waiting[i].QueueNumber, err)
			break
		}
		assigned[waiting[i].ID] = true
	}
	for _, tier := range []model.Tier{model.TierFast, model.TierTrickle} {
		var keep []model.ChargingRequest
		for _, r := range e.waiting[tier] {
			if !assigned[r.ID] {
				keep = append(keep, r)
			}
		}
		e.waiting[tier] = keep
	}
	e.updateOccupancyGauge()
	return nil
}

// commitAssignment binds a request to a pile. The first request in an empty
// pile queue starts charging immediately and flips the pile to CHARGING. The
// persisted records commit before the in-memory queue changes. Callers hold
// e.mu and remove the request from its waiting queue afterwards.
func (e *Engine) commitAssignment(ctx context.Context, req model.ChargingRequest, pile model.ChargingPile, strategy Strategy) error {
	first := len(e.pileQueues[pile.ID]) == 0
	req.PileID = pile.ID
	if first {
		req.Status = model.RequestCharging
		start := e.now()
		req.StartTime = &start
		pile.Status = model.PileCharging
	}
	err := e.store.WithTx(ctx, func(tx storage.Store) error {
		if err := tx.UpdateRequest(ctx, req); err != nil {
			return fmt.Errorf("persist request: %w", err)
		}
		if first {
			if err := tx.UpdatePile(ctx, pile); err != nil {
				return fmt.Errorf("persist pile: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	e.pileQueues[pile.ID] = append(e.pileQueues[pile.ID], req)
	assignmentsTotal.WithLabelValues(string(strategy)).Inc()
	e.log.Infof("assigned request %s to pile %s", req.QueueNumber, pile.Code)
	return nil
}
