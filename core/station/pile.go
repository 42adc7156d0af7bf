package station

import (
	"context"
	"errors"
	"fmt"

	"github.com/voltq/stationd/core/model"
	"github.com/voltq/stationd/core/storage"
)

// Piles lists every pile from the persisted store.
func (e *Engine) Piles(ctx context.Context) ([]model.ChargingPile, error) {
	return e.store.Piles(ctx)
}

// Pile returns a single pile.
func (e *Engine) Pile(ctx context.Context, pileID string) (model.ChargingPile, error) {
	p, err := e.store.Pile(ctx, pileID)
	if errors.Is(err, storage.ErrNotFound) {
		return model.ChargingPile{}, ErrPileNotFound
	}
	return p, err
}

// SetPileStatus applies an operator status change (AVAILABLE or OFF) and
// writes an audit log entry. FAULTY is reserved for ReportFault. Powering a
// pile off is refused while anything is charging or queued at it, so no
// session is orphaned; operators drain the pile first or report a fault.
func (e *Engine) SetPileStatus(ctx context.Context, pileID string, status model.PileStatus, details string) (model.ChargingPile, error) {
	if status == model.PileFaulty || status == model.PileCharging {
		return model.ChargingPile{}, fmt.Errorf("status %s cannot be set by an operator", status)
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	if status == model.PileOff && len(e.pileQueues[pileID]) > 0 {
		return model.ChargingPile{}, ErrPilesBusy
	}

	pile, err := e.store.Pile(ctx, pileID)
	if errors.Is(err, storage.ErrNotFound) {
		return model.ChargingPile{}, ErrPileNotFound
	}
	if err != nil {
		return model.ChargingPile{}, fmt.Errorf("load pile: %w", err)
	}
	if pile.Status == status {
		return pile, nil
	}

	old := pile.Status
	pile.Status = status
	err = e.store.WithTx(ctx, func(tx storage.Store) error {
		if err := tx.UpdatePile(ctx, pile); err != nil {
			return fmt.Errorf("persist pile: %w", err)
		}
		return tx.AppendPileLog(ctx, model.PileLog{
			ID:        e.newID(),
			PileID:    pileID,
			Timestamp: e.now(),
			EventType: "STATUS_CHANGE",
			Details:   fmt.Sprintf("status changed from %s to %s: %s", old, status, details),
		})
	})
	if err != nil {
		return model.ChargingPile{}, err
	}
	e.log.Infof("pile %s status %s -> %s", pile.Code, old, status)
	return pile, nil
}

// SetupPiles replaces the pile fleet with the given count of fast and
// trickle piles. It refuses while any existing pile is charging, queued or
// faulty, so no session or assignment is lost.
func (e *Engine) SetupPiles(ctx context.Context, fastCount, trickleCount int, fastRate, trickleRate float64) ([]model.ChargingPile, error) {
	if fastCount < 0 || trickleCount < 0 {
		return nil, fmt.Errorf("pile counts must not be negative")
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	existing, err := e.store.Piles(ctx)
	if err != nil {
		return nil, fmt.Errorf("load piles: %w", err)
	}
	for _, p := range existing {
		if p.Status != model.PileAvailable {
			return nil, ErrPilesBusy
		}
	}
	for _, q := range e.pileQueues {
		if len(q) > 0 {
			return nil, ErrPilesBusy
		}
	}

	var piles []model.ChargingPile
	for i := 0; i < fastCount; i++ {
		piles = append(piles, model.ChargingPile{
			ID:        e.newID(),
			Code:      fmt.Sprintf("F%d", i+1),
			Tier:      model.TierFast,
			Status:    model.PileAvailable,
			PowerRate: fastRate,
		})
	}
	for i := 0; i < trickleCount; i++ {
		piles = append(piles, model.ChargingPile{
			ID:        e.newID(),
			Code:      fmt.Sprintf("T%d", i+1),
			Tier:      model.TierTrickle,
			Status:    model.PileAvailable,
			PowerRate: trickleRate,
		})
	}
	if err := e.store.ResetPiles(ctx, piles); err != nil {
		return nil, fmt.Errorf("reset piles: %w", err)
	}
	e.pileQueues = make(map[string][]model.ChargingRequest, len(piles))
	for _, p := range piles {
		e.pileQueues[p.ID] = nil
	}
	e.log.Infof("pile fleet reset: %d fast, %d trickle", fastCount, trickleCount)
	return piles, nil
}

// PileLogs returns the audit log for a pile.
func (e *Engine) PileLogs(ctx context.Context, pileID string) ([]model.PileLog, error) {
	if _, err := e.Pile(ctx, pileID); err != nil {
		return nil, err
	}
	return e.store.PileLogs(ctx, pileID)
}
