package storage

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/voltq/stationd/core/model"
)

// Memory is an in-process Store used by tests and single-node deployments.
// All records are kept in maps guarded by a single mutex; WithTx snapshots
// the maps so a failed transaction leaves no trace.
type Memory struct {
	mu   sync.Mutex
	data *memData
}

type memData struct {
	piles    map[string]model.ChargingPile
	requests map[string]model.ChargingRequest
	orders   map[string]model.ChargingOrder
	logs     map[string][]model.PileLog
}

func newMemData() *memData {
	return &memData{
		piles:    map[string]model.ChargingPile{},
		requests: map[string]model.ChargingRequest{},
		orders:   map[string]model.ChargingOrder{},
		logs:     map[string][]model.PileLog{},
	}
}

func (d *memData) clone() *memData {
	c := newMemData()
	for k, v := range d.piles {
		c.piles[k] = v
	}
	for k, v := range d.requests {
		c.requests[k] = v
	}
	for k, v := range d.orders {
		c.orders[k] = v
	}
	for k, v := range d.logs {
		c.logs[k] = append([]model.PileLog(nil), v...)
	}
	return c
}

// NewMemory returns an empty Memory store.
func NewMemory() *Memory {
	return &Memory{data: newMemData()}
}

func (m *Memory) Pile(_ context.Context, id string) (model.ChargingPile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.data.pile(id)
}

func (m *Memory) Piles(_ context.Context) ([]model.ChargingPile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.data.pileList(), nil
}

func (m *Memory) CreatePile(_ context.Context, p model.ChargingPile) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data.piles[p.ID] = p
	return nil
}

func (m *Memory) UpdatePile(_ context.Context, p model.ChargingPile) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.data.updatePile(p)
}

func (m *Memory) ResetPiles(_ context.Context, piles []model.ChargingPile) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data.piles = map[string]model.ChargingPile{}
	for _, p := range piles {
		m.data.piles[p.ID] = p
	}
	return nil
}

func (m *Memory) Request(_ context.Context, id string) (model.ChargingRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.data.request(id)
}

func (m *Memory) Requests(_ context.Context, f RequestFilter) ([]model.ChargingRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.data.requestList(f), nil
}

func (m *Memory) CreateRequest(_ context.Context, r model.ChargingRequest) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data.requests[r.ID] = r
	return nil
}

func (m *Memory) UpdateRequest(_ context.Context, r model.ChargingRequest) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.data.updateRequest(r)
}

func (m *Memory) ActiveRequestForUser(_ context.Context, userID string) (model.ChargingRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.data.requestList(RequestFilter{UserID: userID}) {
		if r.Status == model.RequestWaiting || r.Status == model.RequestCharging {
			return r, nil
		}
	}
	return model.ChargingRequest{}, ErrNotFound
}

func (m *Memory) ChargingRequestForPile(_ context.Context, pileID string) (model.ChargingRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.data.requestList(RequestFilter{PileID: pileID, Statuses: []model.RequestStatus{model.RequestCharging}}) {
		return r, nil
	}
	return model.ChargingRequest{}, ErrNotFound
}

func (m *Memory) MaxQueueNumber(_ context.Context, tier model.Tier) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	max := 0
	for _, r := range m.data.requests {
		if !strings.HasPrefix(r.QueueNumber, tier.Prefix()) {
			continue
		}
		if n := QueueNumberValue(r.QueueNumber); n > max {
			max = n
		}
	}
	return max, nil
}

func (m *Memory) CreateOrder(_ context.Context, o model.ChargingOrder) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data.orders[o.ID] = o
	return nil
}

func (m *Memory) Order(_ context.Context, id string) (model.ChargingOrder, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.data.orders[id]
	if !ok {
		return model.ChargingOrder{}, ErrNotFound
	}
	return o, nil
}

func (m *Memory) OrdersForUser(_ context.Context, userID string) ([]model.ChargingOrder, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.ChargingOrder
	for _, o := range m.data.orders {
		if o.UserID == userID {
			out = append(out, o)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (m *Memory) AppendPileLog(_ context.Context, l model.PileLog) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data.logs[l.PileID] = append(m.data.logs[l.PileID], l)
	return nil
}

func (m *Memory) PileLogs(_ context.Context, pileID string) ([]model.PileLog, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]model.PileLog(nil), m.data.logs[pileID]...), nil
}

// WithTx applies fn to a shadow copy of the data and swaps it in on success.
func (m *Memory) WithTx(ctx context.Context, fn func(Store) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	shadow := &Memory{data: m.data.clone()}
	if err := fn(shadow); err != nil {
		return err
	}
	m.data = shadow.data
	return nil
}

func (d *memData) pile(id string) (model.ChargingPile, error) {
	p, ok := d.piles[id]
	if !ok {
		return model.ChargingPile{}, ErrNotFound
	}
	return p, nil
}

func (d *memData) pileList() []model.ChargingPile {
	out := make([]model.ChargingPile, 0, len(d.piles))
	for _, p := range d.piles {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out
}

func (d *memData) updatePile(p model.ChargingPile) error {
	if _, ok := d.piles[p.ID]; !ok {
		return ErrNotFound
	}
	d.piles[p.ID] = p
	return nil
}

func (d *memData) request(id string) (model.ChargingRequest, error) {
	r, ok := d.requests[id]
	if !ok {
		return model.ChargingRequest{}, ErrNotFound
	}
	return r, nil
}

func (d *memData) updateRequest(r model.ChargingRequest) error {
	if _, ok := d.requests[r.ID]; !ok {
		return ErrNotFound
	}
	d.requests[r.ID] = r
	return nil
}

func (d *memData) requestList(f RequestFilter) []model.ChargingRequest {
	var out []model.ChargingRequest
	for _, r := range d.requests {
		if f.UserID != "" && r.UserID != f.UserID {
			continue
		}
		if f.PileID != "" && r.PileID != f.PileID {
			continue
		}
		if len(f.Statuses) > 0 {
			matched := false
			for _, s := range f.Statuses {
				if r.Status == s {
					matched = true
					break
				}
			}
			if !matched {
				continue
			}
		}
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].SubmittedAt.Equal(out[j].SubmittedAt) {
			return out[i].SubmittedAt.Before(out[j].SubmittedAt)
		}
		return QueueNumberValue(out[i].QueueNumber) < QueueNumberValue(out[j].QueueNumber)
	})
	return out
}
