package station

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/voltq/stationd/core/model"
)

func hour(h, min int) time.Time {
	return time.Date(2026, 3, 1, h, min, 0, 0, time.UTC)
}

func TestDefaultTariff_Valid(t *testing.T) {
	if err := DefaultTariff().Validate(); err != nil {
		t.Fatalf("default tariff invalid: %v", err)
	}
}

func TestTariff_ValidateRejectsGaps(t *testing.T) {
	bad := Tariff{
		Windows:      []RateWindow{{StartHour: 0, EndHour: 12, Rate: 0.5}},
		StandardRate: 0.7,
	}
	if err := bad.Validate(); err == nil {
		t.Fatal("tariff with uncovered hours must not validate")
	}
	overlap := Tariff{
		Windows: []RateWindow{
			{StartHour: 0, EndHour: 24, Rate: 0.5},
			{StartHour: 10, EndHour: 12, Rate: 1.0},
		},
	}
	if err := overlap.Validate(); err == nil {
		t.Fatal("overlapping windows must not validate")
	}
}

func TestTariff_PriceAt(t *testing.T) {
	tariff := DefaultTariff()
	cases := []struct {
		h, m int
		want float64
	}{
		{0, 0, 0.4},
		{6, 59, 0.4},
		{7, 0, 0.7},
		{9, 59, 0.7},
		{10, 0, 1.0},
		{14, 59, 1.0},
		{15, 0, 0.7},
		{18, 0, 1.0},
		{21, 0, 0.7},
		{23, 0, 0.4},
	}
	for _, c := range cases {
		if got := tariff.PriceAt(hour(c.h, c.m)); got != c.want {
			t.Errorf("PriceAt(%02d:%02d) = %.1f, want %.1f", c.h, c.m, got, c.want)
		}
	}
}

func TestTariff_ChargeFeeCrossesWindowBoundary(t *testing.T) {
	tariff := DefaultTariff()
	// 09:30-10:30 at 30 kW: half an hour at 0.7, half an hour at 1.0.
	got := tariff.ChargeFee(hour(9, 30), hour(10, 30), 30)
	want := 0.5*30*0.7 + 0.5*30*1.0
	if math.Abs(got-want) > 1e-9 {
		t.Fatalf("fee = %.4f, want %.4f", got, want)
	}
}

func TestTariff_ChargeFeeSingleWindow(t *testing.T) {
	tariff := DefaultTariff()
	got := tariff.ChargeFee(hour(8, 0), hour(9, 0), 30)
	if want := 30 * 0.7; math.Abs(got-want) > 1e-9 {
		t.Fatalf("fee = %.4f, want %.4f", got, want)
	}
}

func TestStopSession_BillsElapsedEnergy(t *testing.T) {
	e, store, clock := newTestEngine(t)
	ctx := context.Background()
	setupFleet(t, e, 1, 0, 30, 7)

	clock.At(8, 0)
	r, err := e.Admit(ctx, "u1", model.TierFast, 60)
	if err != nil {
		t.Fatalf("admit: %v", err)
	}
	if err := e.Schedule(ctx); err != nil {
		t.Fatalf("schedule: %v", err)
	}

	clock.At(9, 0)
	order, err := e.StopSession(ctx, r.ID, "u1")
	if err != nil {
		t.Fatalf("stop: %v", err)
	}
	if order == nil {
		t.Fatal("expected an order")
	}
	if order.EnergyKWh != 30 {
		t.Fatalf("energy = %.2f, want 30.00", order.EnergyKWh)
	}
	// One hour at the 0.7 standard rate, service fee 0.8/kWh.
	if order.ChargeFee != 21 || order.ServiceFee != 24 || order.TotalFee != 45 {
		t.Fatalf("fees = %.2f/%.2f/%.2f, want 21.00/24.00/45.00", order.ChargeFee, order.ServiceFee, order.TotalFee)
	}

	got, err := store.Request(ctx, r.ID)
	if err != nil {
		t.Fatalf("load request: %v", err)
	}
	if got.Status != model.RequestFinished || got.EndTime == nil {
		t.Fatalf("request after stop = %+v, want FINISHED with end time", got)
	}
	pile, err := store.Pile(ctx, got.PileID)
	if err != nil {
		t.Fatalf("load pile: %v", err)
	}
	if pile.Status != model.PileAvailable {
		t.Fatalf("pile status = %s, want AVAILABLE", pile.Status)
	}
	if len(e.PileQueues()[pile.ID]) != 0 {
		t.Fatalf("pile queue should be empty after stop")
	}
}

func TestStopSession_WrongUser(t *testing.T) {
	e, _, _ := newTestEngine(t)
	ctx := context.Background()
	setupFleet(t, e, 1, 0, 30, 7)
	r, _ := e.Admit(ctx, "u1", model.TierFast, 30)
	if err := e.Schedule(ctx); err != nil {
		t.Fatalf("schedule: %v", err)
	}
	if _, err := e.StopSession(ctx, r.ID, "intruder"); !errors.Is(err, ErrPermissionDenied) {
		t.Fatalf("err = %v, want ErrPermissionDenied", err)
	}
}

func TestStopSession_NotCharging(t *testing.T) {
	e, _, _ := newTestEngine(t)
	ctx := context.Background()
	r, _ := e.Admit(ctx, "u1", model.TierFast, 30)

	_, err := e.StopSession(ctx, r.ID, "u1")
	var se *StateError
	if !errors.As(err, &se) {
		t.Fatalf("err = %v, want StateError", err)
	}
	if se.Status != model.RequestWaiting {
		t.Fatalf("status in error = %s, want WAITING", se.Status)
	}
}

func TestFinalize_PromotesSuccessor(t *testing.T) {
	e, store, clock := newTestEngine(t)
	ctx := context.Background()
	piles := setupFleet(t, e, 1, 0, 30, 7)
	f1 := pileByCode(t, piles, "F1")

	clock.At(8, 0)
	r1, _ := e.Admit(ctx, "u1", model.TierFast, 30)
	if err := e.Schedule(ctx); err != nil {
		t.Fatalf("schedule: %v", err)
	}
	r2, _ := e.Admit(ctx, "u2", model.TierFast, 15)
	if err := e.Schedule(ctx); err != nil {
		t.Fatalf("schedule: %v", err)
	}

	clock.At(9, 0)
	if _, err := e.StopSession(ctx, r1.ID, "u1"); err != nil {
		t.Fatalf("stop: %v", err)
	}

	q := e.PileQueues()[f1.ID]
	if len(q) != 1 || q[0].ID != r2.ID {
		t.Fatalf("successor not promoted, queue = %+v", q)
	}
	if q[0].Status != model.RequestCharging || q[0].StartTime == nil || !q[0].StartTime.Equal(hour(9, 0)) {
		t.Fatalf("successor should charge from 09:00, got %+v", q[0])
	}
	pile, _ := store.Pile(ctx, f1.ID)
	if pile.Status != model.PileCharging {
		t.Fatalf("pile status = %s, want CHARGING", pile.Status)
	}
}

func TestFinalizeSession_UnknownRequest(t *testing.T) {
	e, _, _ := newTestEngine(t)
	if _, err := e.FinalizeSession(context.Background(), "nope", time.Now(), 1); !errors.Is(err, ErrRequestNotFound) {
		t.Fatalf("err = %v, want ErrRequestNotFound", err)
	}
}
