package station

import (
	"context"
	"sort"
	"time"

	"github.com/voltq/stationd/core/model"
)

// CheckCompletedSessions finalizes sessions that have organically delivered
// their requested energy. For the charging head of each pile queue, the
// projected completion is start + amount/rate; once reached, the session is
// closed at the projected instant with the full requested amount. Piles with
// a non-positive power rate are skipped.
func (e *Engine) CheckCompletedSessions(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	now := e.now()
	pileIDs := make([]string, 0, len(e.pileQueues))
	for id, q := range e.pileQueues {
		if len(q) > 0 {
			pileIDs = append(pileIDs, id)
		}
	}
	sort.Strings(pileIDs)

	for _, pileID := range pileIDs {
		q := e.pileQueues[pileID]
		if len(q) == 0 {
			continue
		}
		head := q[0]
		if head.Status != model.RequestCharging || head.StartTime == nil {
			continue
		}
		pile, err := e.store.Pile(ctx, pileID)
		if err != nil {
			e.log.Errorf("monitor: load pile %s: %v", pileID, err)
			continue
		}
		if pile.PowerRate <= 0 {
			continue
		}
		duration := time.Duration(head.AmountKWh / pile.PowerRate * float64(time.Hour))
		projected := head.StartTime.Add(duration)
		if now.Before(projected) {
			continue
		}
		if _, err := e.finalizeSession(ctx, head.ID, projected, head.AmountKWh, "organic"); err != nil {
			e.log.Errorf("monitor: finalize %s: %v", head.QueueNumber, err)
		}
	}
	return nil
}
