package station

import (
	"context"
	"errors"
	"fmt"

	"github.com/voltq/stationd/core/model"
	"github.com/voltq/stationd/core/storage"
)

// FaultReport summarizes what a fault recovery did.
type FaultReport struct {
	PileID            string `json:"pile_id"`
	StoppedSession    bool   `json:"stopped_session"`
	OrderID           string `json:"order_id,omitempty"`
	RequeuedRequestID string `json:"requeued_request_id,omitempty"`
}

// ReportFault marks a pile FAULTY and unwinds whatever was running on it. An
// active session is billed for the energy delivered so far, and when more
// than the re-queue threshold remains, a fresh request for the remainder is
// inserted at the front of its tier's waiting queue. The whole recovery
// commits as one transaction; partial application is never observable.
func (e *Engine) ReportFault(ctx context.Context, pileID string) (FaultReport, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	pile, err := e.store.Pile(ctx, pileID)
	if errors.Is(err, storage.ErrNotFound) {
		return FaultReport{}, ErrPileNotFound
	}
	if err != nil {
		return FaultReport{}, fmt.Errorf("load pile: %w", err)
	}
	switch pile.Status {
	case model.PileFaulty:
		return FaultReport{}, ErrPileAlreadyFaulty
	case model.PileOff:
		return FaultReport{}, ErrPileOff
	}

	active := e.activeRequestAt(ctx, pileID)

	// Requests queued behind the head go back to the waiting area.
	var displaced []model.ChargingRequest
	for _, r := range e.pileQueues[pileID] {
		if active != nil && r.ID == active.ID {
			continue
		}
		if r.Status == model.RequestWaiting {
			displaced = append(displaced, r)
		}
	}

	report := FaultReport{PileID: pileID}
	var requeued *model.ChargingRequest
	err = e.store.WithTx(ctx, func(tx storage.Store) error {
		if active != nil && active.StartTime != nil {
			end := e.now()
			energy := end.Sub(*active.StartTime).Hours() * pile.PowerRate
			if energy < 0 {
				energy = 0
			}
			order, err := e.buildOrder(ctx, tx, *active, pile, end, energy)
			if err != nil {
				return err
			}
			report.StoppedSession = true
			report.OrderID = order.ID

			active.Status = model.RequestFinished
			active.EndTime = &end
			if err := tx.UpdateRequest(ctx, *active); err != nil {
				return fmt.Errorf("persist interrupted request: %w", err)
			}

			if remaining := active.AmountKWh - energy; remaining > e.cfg.RequeueThresholdKWh {
				nr := model.ChargingRequest{
					ID:          e.newID(),
					UserID:      active.UserID,
					QueueNumber: e.nextQueueNumber(active.Tier),
					Tier:        active.Tier,
					AmountKWh:   remaining,
					Status:      model.RequestWaiting,
					SubmittedAt: e.now(),
				}
				if err := tx.CreateRequest(ctx, nr); err != nil {
					return fmt.Errorf("persist re-queued request: %w", err)
				}
				requeued = &nr
				report.RequeuedRequestID = nr.ID
			}
		}
		for i := range displaced {
			displaced[i].PileID = ""
			if err := tx.UpdateRequest(ctx, displaced[i]); err != nil {
				return fmt.Errorf("persist displaced request: %w", err)
			}
		}
		pile.Status = model.PileFaulty
		if err := tx.UpdatePile(ctx, pile); err != nil {
			return fmt.Errorf("persist pile: %w", err)
		}
		return tx.AppendPileLog(ctx, model.PileLog{
			ID:        e.newID(),
			PileID:    pileID,
			Timestamp: e.now(),
			EventType: "FAULT_REPORTED",
			Details:   fmt.Sprintf("pile %s reported faulty", pile.Code),
		})
	})
	if err != nil {
		return FaultReport{}, err
	}

	// Priority re-entry: the remainder goes to the front of its tier queue,
	// displaced requests line up right behind it.
	for i := len(displaced) - 1; i >= 0; i-- {
		r := displaced[i]
		e.waiting[r.Tier] = append([]model.ChargingRequest{r}, e.waiting[r.Tier]...)
	}
	if requeued != nil {
		e.waiting[requeued.Tier] = append([]model.ChargingRequest{*requeued}, e.waiting[requeued.Tier]...)
	}
	e.pileQueues[pileID] = nil
	e.updateOccupancyGauge()
	faultReportsTotal.Inc()
	if report.StoppedSession {
		sessionsFinalizedTotal.WithLabelValues("fault").Inc()
	}
	e.log.Warnf("pile %s marked faulty (stopped session: %v)", pile.Code, report.StoppedSession)
	return report, nil
}

// activeRequestAt finds the request currently charging at a pile, preferring
// the in-memory queue head and falling back to the persisted store when the
// cache is stale. Callers hold e.mu.
func (e *Engine) activeRequestAt(ctx context.Context, pileID string) *model.ChargingRequest {
	if q := e.pileQueues[pileID]; len(q) > 0 && q[0].Status == model.RequestCharging {
		r := q[0]
		return &r
	}
	r, err := e.store.ChargingRequestForPile(ctx, pileID)
	if err != nil {
		return nil
	}
	return &r
}
