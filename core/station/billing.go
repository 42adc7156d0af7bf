package station

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/voltq/stationd/core/model"
	"github.com/voltq/stationd/core/storage"
)

// RateWindow is one hour-of-day window of the time-of-use tariff. StartHour
// is inclusive, EndHour is exclusive.
type RateWindow struct {
	StartHour int     `json:"start_hour"`
	EndHour   int     `json:"end_hour"`
	Rate      float64 `json:"rate"`
}

// Tariff is the piecewise time-of-use tariff plus the flat per-kWh service
// rate. The windows must fully partition the 24-hour clock.
type Tariff struct {
	Windows []RateWindow `json:"windows"`
	// StandardRate is the fallback when no window matches.
	StandardRate float64 `json:"standard_rate"`
	// ServiceRate is charged per kWh delivered.
	ServiceRate float64 `json:"service_rate"`
}

// DefaultTariff returns the operator tariff card: peak 1.0 (10-15, 18-21),
// standard 0.7 (7-10, 15-18, 21-23) and off-peak 0.4 (23-24, 0-7), with a
// 0.8/kWh service rate.
func DefaultTariff() Tariff {
	return Tariff{
		Windows: []RateWindow{
			{StartHour: 10, EndHour: 15, Rate: 1.0},
			{StartHour: 18, EndHour: 21, Rate: 1.0},
			{StartHour: 7, EndHour: 10, Rate: 0.7},
			{StartHour: 15, EndHour: 18, Rate: 0.7},
			{StartHour: 21, EndHour: 23, Rate: 0.7},
			{StartHour: 23, EndHour: 24, Rate: 0.4},
			{StartHour: 0, EndHour: 7, Rate: 0.4},
		},
		StandardRate: 0.7,
		ServiceRate:  0.8,
	}
}

// Validate checks that the windows cover every hour of the day exactly once.
func (t Tariff) Validate() error {
	var covered [24]int
	for _, w := range t.Windows {
		if w.StartHour < 0 || w.EndHour > 24 || w.StartHour >= w.EndHour {
			return fmt.Errorf("invalid window [%d, %d)", w.StartHour, w.EndHour)
		}
		if w.Rate < 0 {
			return fmt.Errorf("negative rate in window [%d, %d)", w.StartHour, w.EndHour)
		}
		for h := w.StartHour; h < w.EndHour; h++ {
			covered[h]++
		}
	}
	for h, n := range covered {
		if n != 1 {
			return fmt.Errorf("hour %d covered %d times, want exactly once", h, n)
		}
	}
	if t.ServiceRate < 0 {
		return fmt.Errorf("service rate must not be negative")
	}
	return nil
}

// PriceAt returns the per-kWh rate active at the given instant. Tariff hours
// are evaluated on the UTC clock.
func (t Tariff) PriceAt(ts time.Time) float64 {
	hour := ts.UTC().Hour()
	for _, w := range t.Windows {
		if w.StartHour <= hour && hour < w.EndHour {
			return w.Rate
		}
	}
	return t.StandardRate
}

// ChargeFee integrates energy times the time-varying rate over [start, end)
// by walking hour-aligned sub-intervals. Within a sub-interval the rate is
// constant, so the result matches a continuous integral of the piecewise
// tariff to cent precision.
func (t Tariff) ChargeFee(start, end time.Time, powerRate float64) float64 {
	fee := 0.0
	cur := start
	for cur.Before(end) {
		rate := t.PriceAt(cur)
		boundary := cur.Truncate(time.Hour).Add(time.Hour)
		if boundary.After(end) {
			boundary = end
		}
		seconds := boundary.Sub(cur).Seconds()
		fee += powerRate * (seconds / 3600) * rate
		cur = boundary
	}
	return fee
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// buildOrder computes the fees for a finished session and persists the order
// on the given (usually transactional) store.
func (e *Engine) buildOrder(ctx context.Context, st storage.Store, req model.ChargingRequest, pile model.ChargingPile, end time.Time, energyKWh float64) (model.ChargingOrder, error) {
	chargeFee := e.tariff.ChargeFee(*req.StartTime, end, pile.PowerRate)
	serviceFee := energyKWh * e.tariff.ServiceRate
	order := model.ChargingOrder{
		ID:         e.newID(),
		RequestID:  req.ID,
		UserID:     req.UserID,
		PileID:     pile.ID,
		StartTime:  *req.StartTime,
		EndTime:    end,
		EnergyKWh:  round2(energyKWh),
		ChargeFee:  round2(chargeFee),
		ServiceFee: round2(serviceFee),
		TotalFee:   round2(chargeFee + serviceFee),
		CreatedAt:  e.now(),
	}
	if err := st.CreateOrder(ctx, order); err != nil {
		return model.ChargingOrder{}, fmt.Errorf("persist order: %w", err)
	}
	return order, nil
}

// FinalizeSession closes a charging session: it bills [start, end] at the
// pile's power rate, creates the order, marks the request FINISHED, removes
// it from the pile queue and either promotes the next request at that pile
// or frees the pile. Everything commits as one transaction.
//
// A request without a start time or assigned pile indicates a data-integrity
// bug; the call logs it and returns a nil order without failing.
func (e *Engine) FinalizeSession(ctx context.Context, requestID string, end time.Time, energyKWh float64) (*model.ChargingOrder, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.finalizeSession(ctx, requestID, end, energyKWh, "manual")
}

// finalizeSession is FinalizeSession under an already-held engine lock.
func (e *Engine) finalizeSession(ctx context.Context, requestID string, end time.Time, energyKWh float64, cause string) (*model.ChargingOrder, error) {
	req, err := e.store.Request(ctx, requestID)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, ErrRequestNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load request: %w", err)
	}
	if req.StartTime == nil || req.PileID == "" {
		e.log.Warnf("inconsistent state on request %s: no start time or assigned pile, skipping finalize", req.ID)
		return nil, nil
	}
	pile, err := e.store.Pile(ctx, req.PileID)
	if errors.Is(err, storage.ErrNotFound) {
		e.log.Warnf("inconsistent state on request %s: assigned pile %s missing, skipping finalize", req.ID, req.PileID)
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load pile: %w", err)
	}

	// The successor, if any, starts charging the moment the head leaves.
	var successor *model.ChargingRequest
	for _, r := range e.pileQueues[pile.ID] {
		if r.ID != req.ID {
			r := r
			successor = &r
			break
		}
	}

	var order model.ChargingOrder
	promotedAt := e.now()
	err = e.store.WithTx(ctx, func(tx storage.Store) error {
		var err error
		order, err = e.buildOrder(ctx, tx, req, pile, end, energyKWh)
		if err != nil {
			return err
		}
		req.Status = model.RequestFinished
		req.EndTime = &end
		if err := tx.UpdateRequest(ctx, req); err != nil {
			return fmt.Errorf("persist request: %w", err)
		}
		if successor != nil {
			successor.Status = model.RequestCharging
			successor.StartTime = &promotedAt
			if err := tx.UpdateRequest(ctx, *successor); err != nil {
				return fmt.Errorf("persist successor: %w", err)
			}
			pile.Status = model.PileCharging
		} else {
			pile.Status = model.PileAvailable
		}
		if err := tx.UpdatePile(ctx, pile); err != nil {
			return fmt.Errorf("persist pile: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	// Commit succeeded; bring the cache in line.
	queue := e.pileQueues[pile.ID][:0]
	for _, r := range e.pileQueues[pile.ID] {
		if r.ID == req.ID {
			continue
		}
		if successor != nil && r.ID == successor.ID {
			r = *successor
		}
		queue = append(queue, r)
	}
	e.pileQueues[pile.ID] = queue

	sessionsFinalizedTotal.WithLabelValues(cause).Inc()
	e.log.Infof("finalized request %s at pile %s: %.2f kWh, total fee %.2f", req.QueueNumber, pile.Code, order.EnergyKWh, order.TotalFee)
	return &order, nil
}

// StopSession manually closes an active session on behalf of its owner. The
// energy delivered so far is derived from the elapsed time and the pile's
// power rate, clamped at zero.
func (e *Engine) StopSession(ctx context.Context, requestID, userID string) (*model.ChargingOrder, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	req, err := e.store.Request(ctx, requestID)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, ErrRequestNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load request: %w", err)
	}
	if req.UserID != userID {
		return nil, ErrPermissionDenied
	}
	if req.Status != model.RequestCharging {
		return nil, &StateError{Op: "stopped", Status: req.Status}
	}
	if req.StartTime == nil || req.PileID == "" {
		e.log.Warnf("inconsistent state on request %s: cannot stop", req.ID)
		return nil, nil
	}
	pile, err := e.store.Pile(ctx, req.PileID)
	if err != nil {
		return nil, fmt.Errorf("load pile: %w", err)
	}

	end := e.now()
	energy := end.Sub(*req.StartTime).Hours() * pile.PowerRate
	if energy < 0 {
		energy = 0
	}
	return e.finalizeSession(ctx, requestID, end, energy, "manual")
}
