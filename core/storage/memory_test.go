package storage

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/voltq/stationd/core/model"
)

func TestMemory_WithTxRollsBack(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	pile := model.ChargingPile{ID: "p1", Code: "F1", Tier: model.TierFast, Status: model.PileAvailable, PowerRate: 30}
	if err := m.CreatePile(ctx, pile); err != nil {
		t.Fatalf("create pile: %v", err)
	}

	boom := errors.New("boom")
	err := m.WithTx(ctx, func(tx Store) error {
		pile.Status = model.PileFaulty
		if err := tx.UpdatePile(ctx, pile); err != nil {
			return err
		}
		if err := tx.CreateRequest(ctx, model.ChargingRequest{ID: "r1"}); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v, want boom", err)
	}

	got, err := m.Pile(ctx, "p1")
	if err != nil {
		t.Fatalf("pile: %v", err)
	}
	if got.Status != model.PileAvailable {
		t.Fatalf("rolled-back pile status = %s, want AVAILABLE", got.Status)
	}
	if _, err := m.Request(ctx, "r1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("rolled-back request should not exist, err = %v", err)
	}
}

func TestMemory_WithTxCommits(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	err := m.WithTx(ctx, func(tx Store) error {
		return tx.CreateRequest(ctx, model.ChargingRequest{ID: "r1", UserID: "u1", Status: model.RequestWaiting})
	})
	if err != nil {
		t.Fatalf("tx: %v", err)
	}
	if _, err := m.Request(ctx, "r1"); err != nil {
		t.Fatalf("committed request missing: %v", err)
	}
}

func TestMemory_MaxQueueNumber(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	for i, qn := range []string{"F1", "F3", "T2"} {
		if err := m.CreateRequest(ctx, model.ChargingRequest{ID: fmt.Sprintf("r%d", i), QueueNumber: qn}); err != nil {
			t.Fatalf("create: %v", err)
		}
	}
	if n, _ := m.MaxQueueNumber(ctx, model.TierFast); n != 3 {
		t.Fatalf("fast max = %d, want 3", n)
	}
	if n, _ := m.MaxQueueNumber(ctx, model.TierTrickle); n != 2 {
		t.Fatalf("trickle max = %d, want 2", n)
	}

	empty := NewMemory()
	if n, _ := empty.MaxQueueNumber(ctx, model.TierFast); n != 0 {
		t.Fatalf("empty store max = %d, want 0", n)
	}
}

func TestMemory_RequestsOrderedBySubmission(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	m.CreateRequest(ctx, model.ChargingRequest{ID: "r2", QueueNumber: "F2", Status: model.RequestWaiting, SubmittedAt: base.Add(time.Minute)})
	m.CreateRequest(ctx, model.ChargingRequest{ID: "r1", QueueNumber: "F1", Status: model.RequestWaiting, SubmittedAt: base})
	m.CreateRequest(ctx, model.ChargingRequest{ID: "r3", QueueNumber: "F3", Status: model.RequestCancelled, SubmittedAt: base.Add(2 * time.Minute)})

	got, err := m.Requests(ctx, RequestFilter{Statuses: []model.RequestStatus{model.RequestWaiting}})
	if err != nil {
		t.Fatalf("requests: %v", err)
	}
	if len(got) != 2 || got[0].ID != "r1" || got[1].ID != "r2" {
		t.Fatalf("order = %+v", got)
	}
}

func TestMemory_ActiveRequestForUser(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	m.CreateRequest(ctx, model.ChargingRequest{ID: "r1", UserID: "u1", QueueNumber: "F1", Status: model.RequestFinished})
	m.CreateRequest(ctx, model.ChargingRequest{ID: "r2", UserID: "u1", QueueNumber: "F2", Status: model.RequestCharging})

	got, err := m.ActiveRequestForUser(ctx, "u1")
	if err != nil {
		t.Fatalf("active: %v", err)
	}
	if got.ID != "r2" {
		t.Fatalf("active = %+v, want r2", got)
	}
	if _, err := m.ActiveRequestForUser(ctx, "u2"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestMemory_UpdateMissingRecord(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	if err := m.UpdatePile(ctx, model.ChargingPile{ID: "nope"}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
	if err := m.UpdateRequest(ctx, model.ChargingRequest{ID: "nope"}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestQueueNumberValue(t *testing.T) {
	cases := map[string]int{"F12": 12, "T1": 1, "F": 0, "": 0, "Fx": 0}
	for qn, want := range cases {
		if got := QueueNumberValue(qn); got != want {
			t.Errorf("QueueNumberValue(%q) = %d, want %d", qn, got, want)
		}
	}
}
