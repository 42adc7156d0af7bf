package station

import (
	"context"
	"testing"

	"github.com/voltq/stationd/core/model"
)

func TestCheckCompletedSessions_FinalizesAtProjectedEnd(t *testing.T) {
	e, store, clock := newTestEngine(t)
	ctx := context.Background()
	piles := setupFleet(t, e, 1, 0, 30, 7)
	f1 := pileByCode(t, piles, "F1")

	clock.At(8, 0)
	r, _ := e.Admit(ctx, "u1", model.TierFast, 30)
	if err := e.Schedule(ctx); err != nil {
		t.Fatalf("schedule: %v", err)
	}

	// Half way through nothing completes.
	clock.At(8, 30)
	if err := e.CheckCompletedSessions(ctx); err != nil {
		t.Fatalf("monitor: %v", err)
	}
	if got, _ := store.Request(ctx, r.ID); got.Status != model.RequestCharging {
		t.Fatalf("session finalized early, status = %s", got.Status)
	}

	// Past the projected end the session closes at exactly 09:00 with the
	// full requested amount.
	clock.At(9, 10)
	if err := e.CheckCompletedSessions(ctx); err != nil {
		t.Fatalf("monitor: %v", err)
	}
	got, _ := store.Request(ctx, r.ID)
	if got.Status != model.RequestFinished {
		t.Fatalf("status = %s, want FINISHED", got.Status)
	}
	if got.EndTime == nil || !got.EndTime.Equal(hour(9, 0)) {
		t.Fatalf("end time = %v, want 09:00", got.EndTime)
	}

	orders, err := store.OrdersForUser(ctx, "u1")
	if err != nil || len(orders) != 1 {
		t.Fatalf("orders = %v %v", orders, err)
	}
	o := orders[0]
	if o.EnergyKWh != 30 || o.ChargeFee != 21 || o.ServiceFee != 24 {
		t.Fatalf("order = %+v, want 30 kWh, 21.00 charge, 24.00 service", o)
	}
	pile, _ := store.Pile(ctx, f1.ID)
	if pile.Status != model.PileAvailable {
		t.Fatalf("pile status = %s, want AVAILABLE", pile.Status)
	}
}

func TestCheckCompletedSessions_PromotesSuccessor(t *testing.T) {
	e, _, clock := newTestEngine(t)
	ctx := context.Background()
	piles := setupFleet(t, e, 1, 0, 30, 7)
	f1 := pileByCode(t, piles, "F1")

	clock.At(8, 0)
	e.Admit(ctx, "u1", model.TierFast, 30)
	if err := e.Schedule(ctx); err != nil {
		t.Fatalf("schedule: %v", err)
	}
	r2, _ := e.Admit(ctx, "u2", model.TierFast, 15)
	if err := e.Schedule(ctx); err != nil {
		t.Fatalf("schedule: %v", err)
	}

	clock.At(9, 5)
	if err := e.CheckCompletedSessions(ctx); err != nil {
		t.Fatalf("monitor: %v", err)
	}
	q := e.PileQueues()[f1.ID]
	if len(q) != 1 || q[0].ID != r2.ID || q[0].Status != model.RequestCharging {
		t.Fatalf("successor not promoted, queue = %+v", q)
	}
}

func TestCheckCompletedSessions_EmptyStation(t *testing.T) {
	e, _, _ := newTestEngine(t)
	if err := e.CheckCompletedSessions(context.Background()); err != nil {
		t.Fatalf("monitor on empty station: %v", err)
	}
}
