package station

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/voltq/stationd/core/model"
	"github.com/voltq/stationd/core/storage"
	"github.com/voltq/stationd/infra/logger"
)

// testClock drives the engine's notion of time in tests.
type testClock struct {
	t time.Time
}

func (c *testClock) Now() time.Time          { return c.t }
func (c *testClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func (c *testClock) At(hour, min int) {
	c.t = time.Date(2026, 3, 1, hour, min, 0, 0, time.UTC)
}

func newTestEngine(t *testing.T) (*Engine, *storage.Memory, *testClock) {
	t.Helper()
	store := storage.NewMemory()
	cfg := Config{}
	cfg.SetDefaults()
	e, err := New(store, cfg, DefaultTariff(), logger.NopLogger{})
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}
	clock := &testClock{t: time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)}
	e.now = clock.Now
	seq := 0
	e.newID = func() string {
		seq++
		return fmt.Sprintf("id-%04d", seq)
	}
	if err := e.Initialize(context.Background()); err != nil {
		t.Fatalf("initialize: %v", err)
	}
	return e, store, clock
}

func setupFleet(t *testing.T, e *Engine, fast, trickle int, fastRate, trickleRate float64) []model.ChargingPile {
	t.Helper()
	piles, err := e.SetupPiles(context.Background(), fast, trickle, fastRate, trickleRate)
	if err != nil {
		t.Fatalf("setup piles: %v", err)
	}
	return piles
}

func pileByCode(t *testing.T, piles []model.ChargingPile, code string) model.ChargingPile {
	t.Helper()
	for _, p := range piles {
		if p.Code == code {
			return p
		}
	}
	t.Fatalf("no pile with code %s", code)
	return model.ChargingPile{}
}
