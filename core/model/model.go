package model

import (
	"fmt"
	"time"
)

// Tier separates fast and trickle charging. Requests and piles carry a tier
// and queues are tier-scoped.
type Tier string

const (
	TierFast    Tier = "FAST"
	TierTrickle Tier = "TRICKLE"
)

// ParseTier converts a string into a Tier.
func ParseTier(s string) (Tier, error) {
	switch Tier(s) {
	case TierFast, TierTrickle:
		return Tier(s), nil
	}
	return "", fmt.Errorf("unknown tier %q", s)
}

// Prefix returns the queue-number prefix for the tier ("F" or "T").
func (t Tier) Prefix() string {
	if t == TierFast {
		return "F"
	}
	return "T"
}

// PileStatus reflects the operational state of a charging pile.
type PileStatus string

const (
	PileAvailable PileStatus = "AVAILABLE"
	PileCharging  PileStatus = "CHARGING"
	PileFaulty    PileStatus = "FAULTY"
	PileOff       PileStatus = "OFF"
)

// ParsePileStatus converts a string into a PileStatus.
func ParsePileStatus(s string) (PileStatus, error) {
	switch PileStatus(s) {
	case PileAvailable, PileCharging, PileFaulty, PileOff:
		return PileStatus(s), nil
	}
	return "", fmt.Errorf("unknown pile status %q", s)
}

// RequestStatus is the lifecycle state of a charging request.
type RequestStatus string

const (
	RequestWaiting   RequestStatus = "WAITING"
	RequestCharging  RequestStatus = "CHARGING"
	RequestFinished  RequestStatus = "FINISHED"
	RequestCancelled RequestStatus = "CANCELLED"
)

// ChargingPile is a single charging resource.
type ChargingPile struct {
	ID     string     `json:"id"`
	Code   string     `json:"code"`
	Tier   Tier       `json:"tier"`
	Status PileStatus `json:"status"`
	// PowerRate is the energy delivered per hour in kWh.
	PowerRate float64 `json:"power_rate"`
}

// ChargingRequest is one admission unit moving through the waiting area and a
// pile queue.
type ChargingRequest struct {
	ID          string        `json:"id"`
	UserID      string        `json:"user_id"`
	QueueNumber string        `json:"queue_number"`
	Tier        Tier          `json:"tier"`
	AmountKWh   float64       `json:"amount_kwh"` // requested energy
	Status      RequestStatus `json:"status"`
	SubmittedAt time.Time     `json:"submitted_at"`
	// PileID is empty until the scheduler assigns a pile.
	PileID    string     `json:"pile_id,omitempty"`
	StartTime *time.Time `json:"start_time,omitempty"`
	EndTime   *time.Time `json:"end_time,omitempty"`
}

// ChargingOrder is the immutable billing record of a finished request.
type ChargingOrder struct {
	ID         string    `json:"id"`
	RequestID  string    `json:"request_id"`
	UserID     string    `json:"user_id"`
	PileID     string    `json:"pile_id"`
	StartTime  time.Time `json:"start_time"`
	EndTime    time.Time `json:"end_time"`
	EnergyKWh  float64   `json:"energy_kwh"`
	ChargeFee  float64   `json:"charge_fee"`
	ServiceFee float64   `json:"service_fee"`
	TotalFee   float64   `json:"total_fee"`
	CreatedAt  time.Time `json:"created_at"`
}

// PileLog is an audit entry attached to a pile.
type PileLog struct {
	ID        string    `json:"id"`
	PileID    string    `json:"pile_id"`
	Timestamp time.Time `json:"timestamp"`
	EventType string    `json:"event_type"`
	Details   string    `json:"details"`
}
