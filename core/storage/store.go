package storage

import (
	"context"
	"errors"
	"strconv"

	"github.com/voltq/stationd/core/model"
)

// ErrNotFound is returned when a record does not exist.
var ErrNotFound = errors.New("storage: not found")

// RequestFilter narrows a request listing. Zero-value fields are ignored.
type RequestFilter struct {
	Statuses []model.RequestStatus
	UserID   string
	PileID   string
}

// Store is the persisted source of truth for piles, requests, orders and pile
// logs. The in-memory queue state is a cache rebuilt from it at startup.
// Implementations must order request listings by submission time.
type Store interface {
	Pile(ctx context.Context, id string) (model.ChargingPile, error)
	Piles(ctx context.Context) ([]model.ChargingPile, error)
	CreatePile(ctx context.Context, p model.ChargingPile) error
	UpdatePile(ctx context.Context, p model.ChargingPile) error
	// ResetPiles removes every pile and installs the given fleet.
	ResetPiles(ctx context.Context, piles []model.ChargingPile) error

	Request(ctx context.Context, id string) (model.ChargingRequest, error)
	Requests(ctx context.Context, f RequestFilter) ([]model.ChargingRequest, error)
	CreateRequest(ctx context.Context, r model.ChargingRequest) error
	UpdateRequest(ctx context.Context, r model.ChargingRequest) error
	// ActiveRequestForUser returns the user's WAITING or CHARGING request.
	ActiveRequestForUser(ctx context.Context, userID string) (model.ChargingRequest, error)
	// ChargingRequestForPile returns the request currently CHARGING at the pile.
	ChargingRequestForPile(ctx context.Context, pileID string) (model.ChargingRequest, error)
	// MaxQueueNumber returns the highest issued queue number for the tier,
	// or 0 when none exists.
	MaxQueueNumber(ctx context.Context, tier model.Tier) (int, error)

	CreateOrder(ctx context.Context, o model.ChargingOrder) error
	Order(ctx context.Context, id string) (model.ChargingOrder, error)
	OrdersForUser(ctx context.Context, userID string) ([]model.ChargingOrder, error)

	AppendPileLog(ctx context.Context, l model.PileLog) error
	PileLogs(ctx context.Context, pileID string) ([]model.PileLog, error)

	// WithTx runs fn against a transactional view of the store. The whole
	// operation commits atomically; any error rolls it back. Transactions
	// do not nest.
	WithTx(ctx context.Context, fn func(Store) error) error
}

// QueueNumberValue parses the numeric part of a tier-prefixed queue number
// such as "F12". Malformed numbers yield 0.
func QueueNumberValue(qn string) int {
	if len(qn) < 2 {
		return 0
	}
	n, err := strconv.Atoi(qn[1:])
	if err != nil {
		return 0
	}
	return n
}
