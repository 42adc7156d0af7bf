package station

import (
	"context"
	"errors"
	"testing"

	"github.com/voltq/stationd/core/model"
	"github.com/voltq/stationd/infra/logger"
)

func TestAdmit_SequentialNumbers(t *testing.T) {
	e, _, _ := newTestEngine(t)
	ctx := context.Background()

	r1, err := e.Admit(ctx, "u1", model.TierFast, 10)
	if err != nil {
		t.Fatalf("admit: %v", err)
	}
	r2, err := e.Admit(ctx, "u2", model.TierFast, 10)
	if err != nil {
		t.Fatalf("admit: %v", err)
	}
	r3, err := e.Admit(ctx, "u3", model.TierTrickle, 5)
	if err != nil {
		t.Fatalf("admit: %v", err)
	}
	if r1.QueueNumber != "F1" || r2.QueueNumber != "F2" || r3.QueueNumber != "T1" {
		t.Fatalf("got numbers %s %s %s, want F1 F2 T1", r1.QueueNumber, r2.QueueNumber, r3.QueueNumber)
	}
	if r1.Status != model.RequestWaiting {
		t.Fatalf("status = %s, want WAITING", r1.Status)
	}
}

func TestAdmit_CapacityRejection(t *testing.T) {
	e, _, _ := newTestEngine(t)
	ctx := context.Background()

	var last model.ChargingRequest
	for i := 0; i < 6; i++ {
		var err error
		last, err = e.Admit(ctx, "u1", model.TierFast, 10)
		if err != nil {
			t.Fatalf("admit %d: %v", i, err)
		}
	}
	if _, err := e.Admit(ctx, "u7", model.TierFast, 10); !errors.Is(err, ErrWaitingAreaFull) {
		t.Fatalf("err = %v, want ErrWaitingAreaFull", err)
	}

	// A rejected admission must not consume a queue number.
	if _, err := e.Cancel(ctx, last.ID, "u1"); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	r, err := e.Admit(ctx, "u7", model.TierFast, 10)
	if err != nil {
		t.Fatalf("admit after cancel: %v", err)
	}
	if r.QueueNumber != "F7" {
		t.Fatalf("queue number = %s, want F7", r.QueueNumber)
	}
}

func TestAdmit_RejectsNonPositiveAmount(t *testing.T) {
	e, _, _ := newTestEngine(t)
	if _, err := e.Admit(context.Background(), "u1", model.TierFast, 0); err == nil {
		t.Fatal("expected error for zero amount")
	}
}

func TestCancel_WrongUser(t *testing.T) {
	e, _, _ := newTestEngine(t)
	ctx := context.Background()
	r, err := e.Admit(ctx, "u1", model.TierFast, 10)
	if err != nil {
		t.Fatalf("admit: %v", err)
	}
	if _, err := e.Cancel(ctx, r.ID, "intruder"); !errors.Is(err, ErrPermissionDenied) {
		t.Fatalf("err = %v, want ErrPermissionDenied", err)
	}
}

func TestCancel_UnknownRequest(t *testing.T) {
	e, _, _ := newTestEngine(t)
	if _, err := e.Cancel(context.Background(), "nope", "u1"); !errors.Is(err, ErrRequestNotFound) {
		t.Fatalf("err = %v, want ErrRequestNotFound", err)
	}
}

func TestCancel_ChargingRequest(t *testing.T) {
	e, _, _ := newTestEngine(t)
	ctx := context.Background()
	setupFleet(t, e, 1, 0, 30, 7)

	r, err := e.Admit(ctx, "u1", model.TierFast, 10)
	if err != nil {
		t.Fatalf("admit: %v", err)
	}
	if err := e.Schedule(ctx); err != nil {
		t.Fatalf("schedule: %v", err)
	}

	_, err = e.Cancel(ctx, r.ID, "u1")
	var se *StateError
	if !errors.As(err, &se) {
		t.Fatalf("err = %v, want StateError", err)
	}
	if se.Status != model.RequestCharging {
		t.Fatalf("status in error = %s, want CHARGING", se.Status)
	}
}

func TestModify_TierChangeMovesToBack(t *testing.T) {
	e, _, _ := newTestEngine(t)
	ctx := context.Background()

	r1, _ := e.Admit(ctx, "u1", model.TierFast, 10)
	e.Admit(ctx, "u2", model.TierTrickle, 5)

	trickle := model.TierTrickle
	got, err := e.Modify(ctx, r1.ID, "u1", ModifyUpdates{Tier: &trickle})
	if err != nil {
		t.Fatalf("modify: %v", err)
	}
	if got.Tier != model.TierTrickle || got.QueueNumber != "T2" {
		t.Fatalf("got %s %s, want TRICKLE T2", got.Tier, got.QueueNumber)
	}
	area := e.WaitingArea()
	if len(area) != 2 || area[len(area)-1].ID != r1.ID {
		t.Fatalf("modified request should sit at the back of the trickle queue, got %+v", area)
	}
}

func TestModify_AmountKeepsPosition(t *testing.T) {
	e, _, _ := newTestEngine(t)
	ctx := context.Background()

	r1, _ := e.Admit(ctx, "u1", model.TierFast, 10)
	e.Admit(ctx, "u2", model.TierFast, 10)

	amount := 25.0
	got, err := e.Modify(ctx, r1.ID, "u1", ModifyUpdates{AmountKWh: &amount})
	if err != nil {
		t.Fatalf("modify: %v", err)
	}
	if got.QueueNumber != "F1" || got.AmountKWh != 25 {
		t.Fatalf("got %s %.1f, want F1 25.0", got.QueueNumber, got.AmountKWh)
	}
	if area := e.WaitingArea(); area[0].ID != r1.ID {
		t.Fatalf("amount-only modification must keep the queue position")
	}
}

func TestInitialize_RestoresStateAfterRestart(t *testing.T) {
	e, store, _ := newTestEngine(t)
	ctx := context.Background()
	setupFleet(t, e, 1, 0, 30, 7)

	r1, _ := e.Admit(ctx, "u1", model.TierFast, 10)
	if err := e.Schedule(ctx); err != nil {
		t.Fatalf("schedule: %v", err)
	}
	r2, _ := e.Admit(ctx, "u2", model.TierFast, 10)
	e.Admit(ctx, "u3", model.TierTrickle, 5)

	// A fresh engine over the same store stands in for a restart.
	cfg := Config{}
	cfg.SetDefaults()
	e2, err := New(store, cfg, DefaultTariff(), logger.NopLogger{})
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}
	if err := e2.Initialize(ctx); err != nil {
		t.Fatalf("initialize: %v", err)
	}

	area := e2.WaitingArea()
	if len(area) != 2 || area[0].ID != r2.ID {
		t.Fatalf("waiting area after restart = %+v", area)
	}
	charging, err := store.Request(ctx, r1.ID)
	if err != nil {
		t.Fatalf("load request: %v", err)
	}
	queues := e2.PileQueues()
	if len(queues[charging.PileID]) != 1 || queues[charging.PileID][0].ID != r1.ID {
		t.Fatalf("charging session lost after restart")
	}

	// Issued numbers must not repeat across restarts.
	r4, err := e2.Admit(ctx, "u4", model.TierFast, 10)
	if err != nil {
		t.Fatalf("admit: %v", err)
	}
	if r4.QueueNumber != "F3" {
		t.Fatalf("queue number after restart = %s, want F3", r4.QueueNumber)
	}
}
