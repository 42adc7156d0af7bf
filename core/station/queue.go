package station

import (
	"context"
	"errors"
	"fmt"

	"github.com/voltq/stationd/core/model"
	"github.com/voltq/stationd/core/storage"
)

// Admit places a new request in the waiting area. It fails with
// ErrWaitingAreaFull when the area is at capacity; no queue number is issued
// in that case.
func (e *Engine) Admit(ctx context.Context, userID string, tier model.Tier, amountKWh float64) (model.ChargingRequest, error) {
	if amountKWh <= 0 {
		return model.ChargingRequest{}, fmt.Errorf("requested energy must be positive")
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.waitingCount() >= e.cfg.WaitingAreaCapacity {
		return model.ChargingRequest{}, ErrWaitingAreaFull
	}
	req := model.ChargingRequest{
		ID:          e.newID(),
		UserID:      userID,
		QueueNumber: e.nextQueueNumber(tier),
		Tier:        tier,
		AmountKWh:   amountKWh,
		Status:      model.RequestWaiting,
		SubmittedAt: e.now(),
	}
	if err := e.store.CreateRequest(ctx, req); err != nil {
		return model.ChargingRequest{}, fmt.Errorf("persist request: %w", err)
	}
	e.waiting[tier] = append(e.waiting[tier], req)
	e.updateOccupancyGauge()
	admissionsTotal.WithLabelValues(string(tier)).Inc()
	e.log.Infof("admitted request %s for user %s (%.2f kWh %s)", req.QueueNumber, userID, amountKWh, tier)
	return req, nil
}

// Cancel removes a request from the waiting area. Only the owning user may
// cancel, and only while the request is still waiting.
func (e *Engine) Cancel(ctx context.Context, requestID, userID string) (model.ChargingRequest, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	tier, idx, req, ok := e.findWaiting(requestID)
	if !ok {
		return model.ChargingRequest{}, e.notInWaitingArea(ctx, requestID, "cancelled")
	}
	if req.UserID != userID {
		return model.ChargingRequest{}, ErrPermissionDenied
	}
	req.Status = model.RequestCancelled
	if err := e.store.UpdateRequest(ctx, req); err != nil {
		return model.ChargingRequest{}, fmt.Errorf("persist cancellation: %w", err)
	}
	e.waiting[tier] = append(e.waiting[tier][:idx], e.waiting[tier][idx+1:]...)
	e.updateOccupancyGauge()
	cancellationsTotal.Inc()
	e.log.Infof("cancelled request %s", req.QueueNumber)
	return req, nil
}

// ModifyUpdates carries the mutable fields of a waiting request. Nil fields
// are left unchanged.
type ModifyUpdates struct {
	Tier      *model.Tier
	AmountKWh *float64
}

// Modify changes the tier or the requested energy of a waiting request.
// Changing the tier moves the request to the back of the new tier's queue
// with a freshly issued queue number; changing only the amount preserves the
// queue position.
func (e *Engine) Modify(ctx context.Context, requestID, userID string, updates ModifyUpdates) (model.ChargingRequest, error) {
	if updates.AmountKWh != nil && *updates.AmountKWh <= 0 {
		return model.ChargingRequest{}, fmt.Errorf("requested energy must be positive")
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	tier, idx, req, ok := e.findWaiting(requestID)
	if !ok {
		return model.ChargingRequest{}, e.notInWaitingArea(ctx, requestID, "modified")
	}
	if req.UserID != userID {
		return model.ChargingRequest{}, ErrPermissionDenied
	}

	if updates.AmountKWh != nil {
		req.AmountKWh = *updates.AmountKWh
	}
	tierChanged := updates.Tier != nil && *updates.Tier != req.Tier
	if tierChanged {
		req.Tier = *updates.Tier
		req.QueueNumber = e.nextQueueNumber(req.Tier)
	}
	if err := e.store.UpdateRequest(ctx, req); err != nil {
		return model.ChargingRequest{}, fmt.Errorf("persist modification: %w", err)
	}
	if tierChanged {
		e.waiting[tier] = append(e.waiting[tier][:idx], e.waiting[tier][idx+1:]...)
		e.waiting[req.Tier] = append(e.waiting[req.Tier], req)
	} else {
		e.waiting[tier][idx] = req
	}
	e.log.Infof("modified request %s", req.QueueNumber)
	return req, nil
}

// findWaiting locates a request in either waiting queue. Callers hold e.mu.
func (e *Engine) findWaiting(requestID string) (model.Tier, int, model.ChargingRequest, bool) {
	for _, tier := range []model.Tier{model.TierFast, model.TierTrickle} {
		for i, r := range e.waiting[tier] {
			if r.ID == requestID {
				return tier, i, r, true
			}
		}
	}
	return "", 0, model.ChargingRequest{}, false
}

// notInWaitingArea distinguishes an unknown request from one that has left
// the waiting area, surfacing the current status in the latter case.
func (e *Engine) notInWaitingArea(ctx context.Context, requestID, op string) error {
	r, err := e.store.Request(ctx, requestID)
	if errors.Is(err, storage.ErrNotFound) {
		return ErrRequestNotFound
	}
	if err != nil {
		return fmt.Errorf("look up request: %w", err)
	}
	return &StateError{Op: op, Status: r.Status}
}

// WaitingArea returns a snapshot of both waiting queues, fast tier first.
func (e *Engine) WaitingArea() []model.ChargingRequest {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]model.ChargingRequest, 0, e.waitingCount())
	out = append(out, e.waiting[model.TierFast]...)
	out = append(out, e.waiting[model.TierTrickle]...)
	return out
}

// PileQueues returns a snapshot of every per-pile queue keyed by pile ID.
func (e *Engine) PileQueues() map[string][]model.ChargingRequest {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make(map[string][]model.ChargingRequest, len(e.pileQueues))
	for id, q := range e.pileQueues {
		out[id] = append([]model.ChargingRequest(nil), q...)
	}
	return out
}

// ActiveRequestForUser returns the user's WAITING or CHARGING request, or
// ErrRequestNotFound when the user has none.
func (e *Engine) ActiveRequestForUser(ctx context.Context, userID string) (model.ChargingRequest, error) {
	r, err := e.store.ActiveRequestForUser(ctx, userID)
	if errors.Is(err, storage.ErrNotFound) {
		return model.ChargingRequest{}, ErrRequestNotFound
	}
	return r, err
}
